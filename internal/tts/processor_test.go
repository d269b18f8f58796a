// Package tts_test tests the synthesizer implementations.
package tts_test

import (
	"context"
	"testing"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/tts"
	"github.com/book-expert/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()

	testLogger, err := logger.New(t.TempDir(), "test-log.log")
	require.NoError(t, err)

	return testLogger
}

func newShellSynthesizer(t *testing.T, script string, args ...string) *tts.CommandSynthesizer {
	t.Helper()

	synthesizer, err := tts.NewCommandSynthesizer(tts.CommandConfig{
		BinaryPath:    "/bin/sh",
		Args:          append([]string{"-c", script}, args...),
		MinAudioBytes: 1000,
	}, newTestLogger(t))
	require.NoError(t, err)

	return synthesizer
}

func TestNewCommandSynthesizer_RequiresBinary(t *testing.T) {
	t.Parallel()

	_, err := tts.NewCommandSynthesizer(tts.CommandConfig{}, newTestLogger(t))
	require.ErrorIs(t, err, tts.ErrBinaryPathEmpty)
}

func TestCommandSynthesizer_ReadsOutputFile(t *testing.T) {
	t.Parallel()

	// $0 is the output path and $1 the text.
	synthesizer := newShellSynthesizer(t,
		`test "$1" = "hello there." && head -c 2048 /dev/zero > "$0"`,
		tts.PlaceholderOutput, tts.PlaceholderText)

	audio, err := synthesizer.Synthesize(context.Background(), "hello there.")
	require.NoError(t, err)
	assert.Len(t, audio, 2048)
}

func TestCommandSynthesizer_ReadsStdout(t *testing.T) {
	t.Parallel()

	synthesizer := newShellSynthesizer(t, `head -c 1500 /dev/zero`)

	audio, err := synthesizer.Synthesize(context.Background(), "hello there.")
	require.NoError(t, err)
	assert.Len(t, audio, 1500)
}

func TestCommandSynthesizer_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		wantErr error
	}{
		{"nonzero exit", `echo boom >&2; exit 3`, 5 * time.Second, core.ErrSynthesisFailed},
		{"undersized output", `printf abc > "$0"`, 5 * time.Second, core.ErrAudioTooSmall},
		{"missing output", `rm -f "$0"`, 5 * time.Second, core.ErrAudioTooSmall},
		{"timeout", `exec sleep 10`, 200 * time.Millisecond, core.ErrSynthesisTimeout},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			synthesizer := newShellSynthesizer(t, testCase.script, tts.PlaceholderOutput)

			ctx, cancel := context.WithTimeout(context.Background(), testCase.timeout)
			defer cancel()

			_, err := synthesizer.Synthesize(ctx, "hello there.")
			require.ErrorIs(t, err, testCase.wantErr)
		})
	}
}

func TestCommandSynthesizer_EmptyText(t *testing.T) {
	t.Parallel()

	synthesizer := newShellSynthesizer(t, `true`)

	_, err := synthesizer.Synthesize(context.Background(), "")
	require.ErrorIs(t, err, tts.ErrTextEmpty)
}
