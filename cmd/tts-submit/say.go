package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/book-expert/chat-tts-service/internal/chat"
	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

const flushTimeout = 5 * time.Second

var errUserRequired = errors.New("--user is required")

type sayOptions struct {
	natsURL     string
	subject     string
	channel     string
	user        string
	moderator   bool
	subscriber  bool
	broadcaster bool
	rewardID    string
	raw         bool
}

// buildMessageEvent turns the say arguments into the event the chat gateway
// would publish. Unless raw is set the words are sent as a !tts command.
func buildMessageEvent(opts sayOptions, words []string, now time.Time) (chat.MessageEvent, error) {
	if opts.user == "" {
		return chat.MessageEvent{}, errUserRequired
	}

	text := strings.Join(words, " ")
	if !opts.raw && opts.rewardID == "" {
		text = strings.TrimSpace(chat.CommandTTS + " " + text)
	}

	return chat.MessageEvent{
		Header: events.EventHeader{
			Timestamp:  now,
			WorkflowID: uuid.NewString(),
			EventID:    uuid.NewString(),
			UserID:     opts.user,
			TenantID:   "",
		},
		Channel:        opts.channel,
		Username:       opts.user,
		Text:           text,
		IsBroadcaster:  opts.broadcaster,
		IsModerator:    opts.moderator,
		IsSubscriber:   opts.subscriber,
		CustomRewardID: opts.rewardID,
		Echo:           false,
	}, nil
}

func newSayCmd() *cobra.Command {
	var opts sayOptions

	cmd := &cobra.Command{
		Use:   "say [text...]",
		Short: "Publish a chat message as if a viewer had typed it",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			event, err := buildMessageEvent(opts, args, time.Now())
			if err != nil {
				return err
			}

			data, err := json.Marshal(event)
			if err != nil {
				return fmt.Errorf("failed to marshal chat message: %w", err)
			}

			natsConnection, err := nats.Connect(opts.natsURL, nats.Name("tts-submit"))
			if err != nil {
				return fmt.Errorf("failed to connect to NATS at %s: %w", opts.natsURL, err)
			}
			defer natsConnection.Close()

			err = natsConnection.Publish(opts.subject, data)
			if err != nil {
				return fmt.Errorf("failed to publish chat message: %w", err)
			}

			err = natsConnection.FlushTimeout(flushTimeout)
			if err != nil {
				return fmt.Errorf("failed to flush chat message: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published %q from %s to %s\n", event.Text, event.Username, opts.subject)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.natsURL, "url", defaultNatsURL, "NATS server URL")
	flags.StringVar(&opts.subject, "subject", "chat.messages", "chat message subject")
	flags.StringVar(&opts.channel, "channel", "", "channel name")
	flags.StringVarP(&opts.user, "user", "u", "", "chat username")
	flags.BoolVar(&opts.moderator, "mod", false, "mark the sender as a moderator")
	flags.BoolVar(&opts.subscriber, "sub", false, "mark the sender as a subscriber")
	flags.BoolVar(&opts.broadcaster, "broadcaster", false, "mark the sender as the broadcaster")
	flags.StringVar(&opts.rewardID, "reward", "", "send as a redemption of this reward id")
	flags.BoolVar(&opts.raw, "raw", false, "send the text as-is instead of prefixing !tts")

	return cmd
}
