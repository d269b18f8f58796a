package main

import (
	"fmt"
	"time"

	"github.com/book-expert/chat-tts-service/internal/tts"
	"github.com/spf13/cobra"
)

func newHealthCmd() *cobra.Command {
	var (
		serviceURL string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the HTTP synthesis engine health endpoint",
		RunE: func(cmd *cobra.Command, _ []string) error {
			synthesizer := tts.NewHTTPSynthesizer(tts.HTTPConfig{
				BaseURL:       serviceURL,
				Language:      "",
				Timeout:       timeout,
				MinAudioBytes: 0,
			})

			err := synthesizer.HealthCheck(cmd.Context())
			if err != nil {
				return fmt.Errorf("TTS service is not healthy: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "TTS service is healthy")

			return nil
		},
	}

	cmd.Flags().StringVar(&serviceURL, "service-url", "http://127.0.0.1:8000", "TTS service base URL")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}
