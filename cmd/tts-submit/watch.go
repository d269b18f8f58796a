package main

import (
	"encoding/json"
	"fmt"

	"github.com/book-expert/chat-tts-service/internal/chat"
	"github.com/book-expert/chat-tts-service/internal/worker"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

// formatAudioReady renders one audio-ready event as a single line.
func formatAudioReady(event worker.AudioReadyEvent) string {
	source := "synthesized"
	if event.FromCache {
		source = "cached"
	}

	if !event.OK {
		return fmt.Sprintf("FAILED %s for %s: %s (fallback %s)", event.JobID, event.RequestedBy, event.Error, event.OutputPath)
	}

	return fmt.Sprintf("READY  %s for %s: %s (%s)", event.JobID, event.RequestedBy, event.OutputPath, source)
}

func formatNotice(event chat.NoticeEvent) string {
	return fmt.Sprintf("NOTICE #%s: %s", event.Channel, event.Message)
}

// offer drops the line when the printer has fallen behind.
func offer(lines chan<- string, line string) {
	select {
	case lines <- line:
	default:
	}
}

func newWatchCmd() *cobra.Command {
	var (
		natsURL       string
		readySubject  string
		noticeSubject string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Print audio-ready events and chat notices until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			natsConnection, err := nats.Connect(natsURL, nats.Name("tts-submit-watch"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS at %s: %w", natsURL, err)
			}
			defer natsConnection.Close()

			out := cmd.OutOrStdout()
			lines := make(chan string, 64)

			readySub, err := natsConnection.Subscribe(readySubject, func(msg *nats.Msg) {
				var event worker.AudioReadyEvent
				if json.Unmarshal(msg.Data, &event) != nil {
					return
				}
				offer(lines, formatAudioReady(event))
			})
			if err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", readySubject, err)
			}
			defer func() { _ = readySub.Unsubscribe() }()

			noticeSub, err := natsConnection.Subscribe(noticeSubject, func(msg *nats.Msg) {
				var event chat.NoticeEvent
				if json.Unmarshal(msg.Data, &event) != nil {
					return
				}
				offer(lines, formatNotice(event))
			})
			if err != nil {
				return fmt.Errorf("failed to subscribe to %s: %w", noticeSubject, err)
			}
			defer func() { _ = noticeSub.Unsubscribe() }()

			fmt.Fprintf(out, "Watching %s and %s\n", readySubject, noticeSubject)

			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case line := <-lines:
					fmt.Fprintln(out, line)
				}
			}
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&natsURL, "url", defaultNatsURL, "NATS server URL")
	flags.StringVar(&readySubject, "ready-subject", "tts.audio.ready", "audio-ready event subject")
	flags.StringVar(&noticeSubject, "notice-subject", "chat.notices", "chat notice subject")

	return cmd
}
