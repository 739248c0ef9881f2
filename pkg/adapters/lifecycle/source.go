// Package lifecycle exposes folder change notifications as lifecycle events.
package lifecycle

import (
	"context"

	"github.com/aretw0/lifecycle"

	"github.com/aretw0/docsync/pkg/core"
)

// changeSource forwards one folder subscription. Its output is closed when
// the subscription ends or the start context is done.
type changeSource struct {
	changes <-chan core.ChangeEvent
	out     chan lifecycle.Event
}

// NewSource creates a lifecycle.Source over a channel returned by
// core.Notifier.Watch.
func NewSource(changes <-chan core.ChangeEvent) lifecycle.Source {
	return &changeSource{
		changes: changes,
		out:     make(chan lifecycle.Event),
	}
}

func (s *changeSource) Events() <-chan lifecycle.Event {
	return s.out
}

func (s *changeSource) Start(ctx context.Context) error {
	lifecycle.Go(ctx, s.forward)
	return nil
}

func (s *changeSource) forward(ctx context.Context) error {
	defer close(s.out)
	for {
		var change core.ChangeEvent
		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case change, ok = <-s.changes:
			if !ok {
				return nil
			}
		}

		select {
		case s.out <- change:
		case <-ctx.Done():
			return nil
		}
	}
}
