package pipeline

import (
	"fmt"

	"github.com/book-expert/chat-tts-service/internal/admission"
)

// Kind is the outcome class of a submission.
type Kind int

const (
	// KindSkipped is a silent drop.
	KindSkipped Kind = iota
	// KindRejected is a drop the requester is told about.
	KindRejected
	// KindDone means the output was materialized from cache.
	KindDone
	// KindAccepted means a job was queued for synthesis.
	KindAccepted
)

func (k Kind) String() string {
	switch k {
	case KindSkipped:
		return "skipped"
	case KindRejected:
		return "rejected"
	case KindDone:
		return "done"
	case KindAccepted:
		return "accepted"
	default:
		return "unknown"
	}
}

// Reason qualifies a Kind.
type Reason int

// Reasons reported alongside a Kind.
const (
	ReasonNone Reason = iota
	ReasonTooShort
	ReasonFiltered
	ReasonOnCooldown
	ReasonQueueFull
	ReasonCached
	ReasonUnavailable
)

func (r Reason) String() string {
	switch r {
	case ReasonTooShort:
		return "too_short"
	case ReasonFiltered:
		return "filtered"
	case ReasonOnCooldown:
		return "on_cooldown"
	case ReasonQueueFull:
		return "queue_full"
	case ReasonCached:
		return "cached"
	case ReasonUnavailable:
		return "unavailable"
	default:
		return ""
	}
}

// Status is the result of Coordinator.Submit.
type Status struct {
	Kind   Kind
	Reason Reason
	Tier   admission.Tier

	// RemainingSeconds is set for ReasonOnCooldown.
	RemainingSeconds int
	// Current and Limit are set for a QueueFull rejection by the admission window.
	Current int
	Limit   int
	// Position is the 1-based queue position hint of an accepted job.
	Position int

	JobID      string
	CacheKey   string
	OutputPath string

	// Notice is the chat message that was sent, empty when none was.
	Notice string
}

func (s Status) String() string {
	if s.Reason == ReasonNone {
		return s.Kind.String()
	}

	return fmt.Sprintf("%s(%s)", s.Kind, s.Reason)
}
