package tts_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAudio = append([]byte("RIFF....WAVE"), bytes.Repeat([]byte{0}, 2000)...)

func newTestSynthesizer(serverURL string, timeout time.Duration) *tts.HTTPSynthesizer {
	return tts.NewHTTPSynthesizer(tts.HTTPConfig{
		BaseURL:       serverURL,
		Language:      "ru",
		Timeout:       timeout,
		MinAudioBytes: 1000,
	})
}

func TestHTTPSynthesizer_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/generate/speech", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "audio/wav", r.Header.Get("Accept"))

		var req tts.TTSRequest

		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "привет чат.", req.Text)
		assert.Equal(t, "ru", req.Language)

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write(testAudio)
	}))
	defer server.Close()

	audio, err := newTestSynthesizer(server.URL, 5*time.Second).Synthesize(context.Background(), "привет чат.")
	require.NoError(t, err)
	assert.Equal(t, testAudio, audio)
}

func TestHTTPSynthesizer_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantErr error
		wantMsg string
	}{
		{
			name: "structured service error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"detail":"Invalid speaker reference path","error_code":"INVALID_SPEAKER_PATH"}`))
			},
			wantErr: core.ErrSynthesisFailed,
			wantMsg: "INVALID_SPEAKER_PATH",
		},
		{
			name: "plain service error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte("model crashed"))
			},
			wantErr: core.ErrSynthesisFailed,
			wantMsg: "model crashed",
		},
		{
			name: "wrong content type",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "text/plain")
				_, _ = w.Write(testAudio)
			},
			wantErr: tts.ErrUnexpectedContentType,
		},
		{
			name: "undersized audio",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.Header().Set("Content-Type", "audio/wav")
				_, _ = w.Write([]byte("RIFF"))
			},
			wantErr: core.ErrAudioTooSmall,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			server := httptest.NewServer(testCase.handler)
			defer server.Close()

			_, err := newTestSynthesizer(server.URL, 5*time.Second).Synthesize(context.Background(), "hello.")
			require.ErrorIs(t, err, testCase.wantErr)

			if testCase.wantMsg != "" {
				assert.Contains(t, err.Error(), testCase.wantMsg)
			}
		})
	}
}

func TestHTTPSynthesizer_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})

	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := newTestSynthesizer(server.URL, 5*time.Second).Synthesize(ctx, "hello.")
	require.ErrorIs(t, err, core.ErrSynthesisTimeout)
}

func TestHTTPSynthesizer_Unreachable(t *testing.T) {
	t.Parallel()

	_, err := newTestSynthesizer("http://127.0.0.1:1", time.Second).Synthesize(context.Background(), "hello.")
	require.ErrorIs(t, err, core.ErrSynthesisFailed)
}

func TestHTTPSynthesizer_HealthCheck(t *testing.T) {
	t.Parallel()

	var healthy atomic.Bool

	healthy.Store(true)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)

		if !healthy.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)

			return
		}

		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer server.Close()

	synthesizer := newTestSynthesizer(server.URL, time.Second)

	require.NoError(t, synthesizer.HealthCheck(context.Background()))

	healthy.Store(false)

	require.Error(t, synthesizer.HealthCheck(context.Background()))
}
