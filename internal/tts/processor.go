// Package tts provides the synthesizer implementations used by the worker.
package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/logger"
)

// Argument placeholders substituted per call.
const (
	PlaceholderText   = "{text}"
	PlaceholderOutput = "{output}"
)

const (
	commandWaitDelay  = 2 * time.Second
	maxLoggedOutput   = 512
	tempOutputPattern = "tts-output-*.wav"
)

var (
	// ErrBinaryPathEmpty indicates that no synthesis binary was configured.
	ErrBinaryPathEmpty = errors.New("binary path cannot be empty")
	// ErrTextEmpty indicates an attempt to synthesize empty text.
	ErrTextEmpty = errors.New("text cannot be empty")
)

// CommandConfig describes how the synthesis binary is invoked.
type CommandConfig struct {
	BinaryPath    string
	Args          []string
	MinAudioBytes int
}

// CommandSynthesizer runs an external TTS binary once per request. When the
// argument template names {output} the audio is read from that temp file,
// otherwise from the process's stdout.
type CommandSynthesizer struct {
	config CommandConfig
	log    *logger.Logger
}

// NewCommandSynthesizer creates a CommandSynthesizer.
func NewCommandSynthesizer(cfg CommandConfig, log *logger.Logger) (*CommandSynthesizer, error) {
	if cfg.BinaryPath == "" {
		return nil, ErrBinaryPathEmpty
	}

	return &CommandSynthesizer{
		config: cfg,
		log:    log,
	}, nil
}

// Synthesize runs the binary for text and returns the audio it produced.
func (p *CommandSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	tempFile, err := os.CreateTemp("", tempOutputPattern)
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file for tts output: %w", err)
	}

	outputPath := tempFile.Name()
	_ = tempFile.Close()

	defer func() {
		removeErr := os.Remove(outputPath)
		if removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			p.log.Warn("Failed to remove temp file '%s': %v", outputPath, removeErr)
		}
	}()

	args, usesOutputFile := p.expandArgs(text, outputPath)

	// #nosec G204 -- the binary and template come from operator configuration
	cmd := exec.CommandContext(ctx, p.config.BinaryPath, args...)
	cmd.WaitDelay = commandWaitDelay

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s", core.ErrSynthesisTimeout, p.config.BinaryPath)
		}

		return nil, fmt.Errorf("%w: %w", core.ErrSynthesisFailed, ctxErr)
	}

	if runErr != nil {
		return nil, fmt.Errorf("%w: %s: %w - output: %s",
			core.ErrSynthesisFailed, p.config.BinaryPath, runErr, truncateOutput(stderr.String()))
	}

	audioData := stdout.Bytes()

	if usesOutputFile {
		audioData, err = os.ReadFile(outputPath)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to read audio data from temp file: %w", core.ErrAudioTooSmall, err)
		}
	}

	if len(audioData) == 0 || len(audioData) < p.config.MinAudioBytes {
		return nil, fmt.Errorf("%w: got %d bytes, need %d", core.ErrAudioTooSmall, len(audioData), p.config.MinAudioBytes)
	}

	return audioData, nil
}

func (p *CommandSynthesizer) expandArgs(text, outputPath string) ([]string, bool) {
	usesOutputFile := false
	args := make([]string, 0, len(p.config.Args))

	for _, arg := range p.config.Args {
		if strings.Contains(arg, PlaceholderOutput) {
			usesOutputFile = true
		}

		arg = strings.ReplaceAll(arg, PlaceholderOutput, outputPath)
		arg = strings.ReplaceAll(arg, PlaceholderText, text)
		args = append(args, arg)
	}

	return args, usesOutputFile
}

func truncateOutput(output string) string {
	output = strings.TrimSpace(output)
	if len(output) > maxLoggedOutput {
		return output[:maxLoggedOutput] + "..."
	}

	return output
}
