// SPDX-License-Identifier: MIT

// Package bus carries job progress events from workers to any attached
// clients. Topics are job ids; delivery is in-process and best-effort
// while the publish context remains active.
package bus

import "context"

// Kind tags a progress event.
type Kind string

const (
	KindProgress      Kind = "progress"
	KindComplete      Kind = "complete"
	KindError         Kind = "error"
	KindRegenUpdate   Kind = "regen_update"
	KindRegenComplete Kind = "regen_complete"
	KindRegenError    Kind = "regen_error"
)

// Event is one progress update for a job.
type Event struct {
	JobID    string `json:"job_id"`
	Kind     Kind   `json:"kind"`
	Progress int    `json:"progress"`
	Message  string `json:"message"`
	State    string `json:"state,omitempty"`
}

// Publisher is the capability workers hold.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev Event) error
}

// Subscriber receives events for one topic until closed.
type Subscriber interface {
	C() <-chan Event
	Close() error
}

// Bus is the full pub/sub surface.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context, topic string) (Subscriber, error)
}
