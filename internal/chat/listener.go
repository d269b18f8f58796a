package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/chat-tts-service/internal/pipeline"
	"github.com/book-expert/logger"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 30 * time.Second

// Submitter accepts routed requests.
type Submitter interface {
	Submit(ctx context.Context, req pipeline.Request) pipeline.Status
}

// Listener consumes MessageEvents from a NATS subject.
type Listener struct {
	natsConnection *nats.Conn
	subject        string
	router         *Router
	submitter      Submitter
	notifier       core.Notifier
	log            *logger.Logger
}

// NewListener creates a Listener.
func NewListener(
	natsConnection *nats.Conn,
	subject string,
	router *Router,
	submitter Submitter,
	notifier core.Notifier,
	log *logger.Logger,
) *Listener {
	return &Listener{
		natsConnection: natsConnection,
		subject:        subject,
		router:         router,
		submitter:      submitter,
		notifier:       notifier,
		log:            log,
	}
}

// Run subscribes and handles messages until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	sub, err := l.natsConnection.Subscribe(l.subject, l.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", l.subject, err)
	}

	l.log.Info("Listening for chat messages on %s", l.subject)

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (l *Listener) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	var event MessageEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		l.log.Error("Failed to unmarshal chat message: %v", err)

		return
	}

	action := l.router.Route(event)

	switch action.Kind {
	case ActionSubmit:
		status := l.submitter.Submit(ctx, action.Request)
		l.log.Info("Request from %s: %s", action.Request.Identity, status)
	case ActionReply:
		if l.notifier == nil {
			return
		}

		notifyErr := l.notifier.Notify(ctx, action.Reply)
		if notifyErr != nil {
			l.log.Warn("Failed to send reply to %s: %v", event.Username, notifyErr)
		}
	case ActionIgnore:
	}
}
