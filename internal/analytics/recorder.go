package analytics

import (
	"sync"

	"github.com/posthog/posthog-go"
)

// Recorder keeps captured events in memory. Tests and the CLI dry-run use it.
type Recorder struct {
	mu     sync.Mutex
	events []posthog.Capture
}

func (r *Recorder) Enqueue(m posthog.Message) error {
	if c, ok := m.(posthog.Capture); ok {
		r.mu.Lock()
		r.events = append(r.events, c)
		r.mu.Unlock()
	}
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns the names of captured events in order.
func (r *Recorder) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Event
	}
	return out
}

// Last returns the most recent capture of an event.
func (r *Recorder) Last(event string) (posthog.Capture, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			return r.events[i], true
		}
	}
	return posthog.Capture{}, false
}
