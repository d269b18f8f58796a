package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/book-expert/chat-tts-service/internal/core"
	"github.com/book-expert/events"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// AudioReadyEvent announces that a job's output file is final.
type AudioReadyEvent struct {
	Header      events.EventHeader `json:"header"`
	JobID       string             `json:"job_id"`
	CacheKey    string             `json:"cache_key"`
	OutputPath  string             `json:"output_path"`
	RequestedBy string             `json:"requested_by"`
	FromCache   bool               `json:"from_cache"`
	OK          bool               `json:"ok"`
	Error       string             `json:"error,omitempty"`
}

// NatsResultPublisher publishes AudioReadyEvents on a NATS subject.
type NatsResultPublisher struct {
	natsConnection *nats.Conn
	subject        string
}

// NewNatsResultPublisher creates a publisher for subject.
func NewNatsResultPublisher(natsConnection *nats.Conn, subject string) *NatsResultPublisher {
	return &NatsResultPublisher{
		natsConnection: natsConnection,
		subject:        subject,
	}
}

// PublishResult marshals result into an AudioReadyEvent and publishes it.
func (p *NatsResultPublisher) PublishResult(_ context.Context, result core.JobResult) error {
	event := AudioReadyEvent{
		Header: events.EventHeader{
			Timestamp:  time.Now(),
			WorkflowID: result.JobID,
			EventID:    uuid.NewString(),
			UserID:     result.RequestedBy,
			TenantID:   "",
		},
		JobID:       result.JobID,
		CacheKey:    result.CacheKey,
		OutputPath:  result.OutputPath,
		RequestedBy: result.RequestedBy,
		FromCache:   result.FromCache,
		OK:          result.OK,
		Error:       result.Error,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audio ready event: %w", err)
	}

	err = p.natsConnection.Publish(p.subject, data)
	if err != nil {
		return fmt.Errorf("failed to publish audio ready event to %s: %w", p.subject, err)
	}

	return nil
}
