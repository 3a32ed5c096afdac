package ingress

import (
	"context"

	"github.com/eclipse-pass/depositsvc/internal/logger"
)

// ChannelSource is an in-process Source backed by a buffered channel.
// Publish is non-blocking: a full buffer drops the event rather than
// blocking the publisher, since spec.md §4.11 already tolerates
// redelivery of uncommitted events and nothing here promises
// at-least-once delivery across a process restart. Ack is a no-op —
// there is no durable offset to advance for an in-process channel.
type ChannelSource struct {
	ch chan Event
}

func NewChannelSource(bufferSize int) *ChannelSource {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &ChannelSource{ch: make(chan Event, bufferSize)}
}

func (s *ChannelSource) Events() <-chan Event { return s.ch }

func (s *ChannelSource) Ack(ctx context.Context, ev Event) error { return nil }

// Publish enqueues ev for delivery. It returns false if the buffer was
// full and the event was dropped.
func (s *ChannelSource) Publish(ev Event) bool {
	select {
	case s.ch <- ev:
		return true
	default:
		logger.Warn("ingress: channel source buffer full, dropping event",
			"entity_kind", string(ev.EntityKind), "entity_id", ev.EntityID)
		return false
	}
}

// Close stops accepting further delivery; any worker still ranging
// over Events() sees the channel close and exits.
func (s *ChannelSource) Close() { close(s.ch) }
