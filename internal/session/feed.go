package session

import (
	"context"
	"sync"
	"time"

	"mediafetch/internal/entity"
)

// Feed is a consumer of controller events that keeps the most recent ones for polling clients.
type Feed struct {
	size int

	mu      sync.Mutex
	events  []entity.Event
	changed chan struct{}
}

// NewFeed creates a feed keeping up to size events.
func NewFeed(size int) *Feed {
	return &Feed{
		size:    max(size, 1),
		changed: make(chan struct{}),
	}
}

// Consume stores events until the channel is closed or ctx is done.
func (f *Feed) Consume(ctx context.Context, events <-chan entity.Event) {
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return
			}

			f.add(e)
		case <-ctx.Done():
			return
		}
	}
}

func (f *Feed) add(e entity.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.events = append(f.events, e)
	if over := len(f.events) - f.size; over > 0 {
		f.events = append(f.events[:0], f.events[over:]...)
	}

	close(f.changed)
	f.changed = make(chan struct{})
}

// Since returns the kept events with a sequence number above after. When there are none
// it waits up to wait for new ones.
func (f *Feed) Since(ctx context.Context, after uint64, wait time.Duration) []entity.Event {
	got, changed := f.since(after)
	if len(got) > 0 || wait <= 0 {
		return got
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-changed:
	case <-timer.C:
	case <-ctx.Done():
	}

	got, _ = f.since(after)

	return got
}

func (f *Feed) since(after uint64) ([]entity.Event, <-chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []entity.Event

	for _, e := range f.events {
		if e.Seq > after {
			out = append(out, e)
		}
	}

	return out, f.changed
}
