package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// DefaultMessageLimit is the maximum chat message length in runes.
const DefaultMessageLimit = 480

// NatsNotifier publishes NoticeEvents for the chat gateway.
type NatsNotifier struct {
	natsConnection *nats.Conn
	subject        string
	channel        string
	messageLimit   int
}

// NewNatsNotifier creates a notifier publishing to subject. Messages longer
// than messageLimit runes are truncated.
func NewNatsNotifier(natsConnection *nats.Conn, subject, channel string, messageLimit int) *NatsNotifier {
	if messageLimit <= 0 {
		messageLimit = DefaultMessageLimit
	}

	return &NatsNotifier{
		natsConnection: natsConnection,
		subject:        subject,
		channel:        channel,
		messageLimit:   messageLimit,
	}
}

// Notify publishes message as a NoticeEvent.
func (n *NatsNotifier) Notify(_ context.Context, message string) error {
	if runes := []rune(message); len(runes) > n.messageLimit {
		message = string(runes[:n.messageLimit])
	}

	event := NoticeEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: "",
			EventID:    uuid.NewString(),
			UserID:     "",
			TenantID:   "",
		},
		Channel: n.channel,
		Message: message,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notice: %w", err)
	}

	err = n.natsConnection.Publish(n.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish notice to %s: %w", n.subject, err)
	}

	return nil
}
