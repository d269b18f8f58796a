// Package admission decides whether a chat request may enter the synthesis
// queue. It combines a per-identity cooldown with a sliding-window limit on
// the number of acceptances across all identities.
package admission

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	// ErrOnCooldown indicates the identity was accepted too recently.
	ErrOnCooldown = errors.New("identity is on cooldown")
	// ErrQueueFull indicates the global window already holds the maximum number of acceptances.
	ErrQueueFull = errors.New("global queue limit reached")
)

// Tier is the cooldown class of a requester.
type Tier int

const (
	// TierViewer is the default, slowest tier.
	TierViewer Tier = iota
	// TierSubscriber applies to subscribers when subscriber access is enabled.
	TierSubscriber
	// TierModerator applies to the broadcaster and to moderators when moderator access is enabled.
	TierModerator
)

// String returns the tier name used in logs and metrics.
func (t Tier) String() string {
	switch t {
	case TierModerator:
		return "moderator"
	case TierSubscriber:
		return "subscriber"
	default:
		return "viewer"
	}
}

// Roles are the per-request role flags supplied by the chat source.
type Roles struct {
	IsBroadcaster bool
	IsModerator   bool
	IsSubscriber  bool
}

// CooldownError is returned when the requester must wait before the next request.
type CooldownError struct {
	Remaining time.Duration
	Tier      Tier
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: %d seconds remaining", ErrOnCooldown, e.RemainingSeconds())
}

// Unwrap allows errors.Is(err, ErrOnCooldown).
func (e *CooldownError) Unwrap() error {
	return ErrOnCooldown
}

// RemainingSeconds rounds the remaining wait up to whole seconds.
func (e *CooldownError) RemainingSeconds() int {
	return int(math.Ceil(e.Remaining.Seconds()))
}

// QueueFullError is returned when the global window is saturated.
type QueueFullError struct {
	Current int
	Limit   int
}

func (e *QueueFullError) Error() string {
	return fmt.Sprintf("%v (%d/%d)", ErrQueueFull, e.Current, e.Limit)
}

// Unwrap allows errors.Is(err, ErrQueueFull).
func (e *QueueFullError) Unwrap() error {
	return ErrQueueFull
}

// Policy holds the limits the controller enforces.
type Policy struct {
	CooldownMods       time.Duration
	CooldownSubs       time.Duration
	CooldownViewers    time.Duration
	FreeForMods        bool
	FreeForSubscribers bool
	GlobalLimit        int
	Window             time.Duration
}

// TierFor selects the cooldown tier, most privileged first.
func (p Policy) TierFor(roles Roles) Tier {
	switch {
	case roles.IsBroadcaster || (roles.IsModerator && p.FreeForMods):
		return TierModerator
	case roles.IsSubscriber && p.FreeForSubscribers:
		return TierSubscriber
	default:
		return TierViewer
	}
}

// Cooldown returns the minimum re-request interval for a tier.
func (p Policy) Cooldown(tier Tier) time.Duration {
	switch tier {
	case TierModerator:
		return p.CooldownMods
	case TierSubscriber:
		return p.CooldownSubs
	default:
		return p.CooldownViewers
	}
}

// state is the shared mutable admission state. It is only touched while
// Controller.mu is held.
type state struct {
	lastAccepted map[string]time.Time
	window       []time.Time
}

// Controller is the admission controller. It is safe for concurrent use.
type Controller struct {
	policy Policy

	mu    sync.Mutex
	state state
}

// NewController creates a controller enforcing policy.
func NewController(policy Policy) *Controller {
	return &Controller{
		policy: policy,
		state: state{
			lastAccepted: make(map[string]time.Time),
			window:       make([]time.Time, 0, policy.GlobalLimit),
		},
	}
}

// Policy returns the policy the controller enforces.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Decide admits or rejects a request from identity at now. On success it
// records the acceptance and returns the tier that was applied. A rejection
// is a *CooldownError or *QueueFullError and leaves the state untouched.
// The cooldown check, the window prune, the capacity check and the append run
// under a single lock.
func (c *Controller) Decide(identity string, roles Roles, now time.Time) (Tier, error) {
	tier := c.policy.TierFor(roles)
	cooldown := c.policy.Cooldown(tier)

	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.state.lastAccepted[identity]; ok {
		elapsed := now.Sub(last)
		if elapsed < cooldown {
			return tier, &CooldownError{Remaining: cooldown - elapsed, Tier: tier}
		}
	}

	c.pruneLocked(now)

	if len(c.state.window) >= c.policy.GlobalLimit {
		return tier, &QueueFullError{Current: len(c.state.window), Limit: c.policy.GlobalLimit}
	}

	c.state.window = append(c.state.window, now)
	c.state.lastAccepted[identity] = now

	return tier, nil
}

// ResetCooldown forgets the last acceptance of identity.
func (c *Controller) ResetCooldown(identity string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.state.lastAccepted, identity)
}

// InWindow returns the number of acceptances inside the window ending at now.
func (c *Controller) InWindow(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked(now)

	return len(c.state.window)
}

// pruneLocked drops acceptances older than the window. Callers sample now
// before taking the lock, so entries are not assumed to be sorted.
func (c *Controller) pruneLocked(now time.Time) {
	kept := c.state.window[:0]
	for _, acceptedAt := range c.state.window {
		if now.Sub(acceptedAt) < c.policy.Window {
			kept = append(kept, acceptedAt)
		}
	}

	c.state.window = kept
}
