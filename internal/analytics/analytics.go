// Package analytics captures product events in PostHog.
package analytics

import (
	"fmt"
	"log/slog"

	"github.com/posthog/posthog-go"
)

// Enqueuer is the part of posthog.Client the emitters need.
type Enqueuer interface {
	Enqueue(posthog.Message) error
}

// Client is an Enqueuer that can be flushed on shutdown.
type Client interface {
	Enqueuer
	Close() error
}

// New returns a PostHog client, or a no-op client when apiKey is empty.
func New(apiKey, endpoint string, logger *slog.Logger) (Client, error) {
	if apiKey == "" {
		return Noop{}, nil
	}
	client, err := posthog.NewWithConfig(apiKey, posthog.Config{Endpoint: endpoint})
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics client: %w", err)
	}
	if logger != nil {
		logger.Info("analytics enabled", "endpoint", endpoint)
	}
	return client, nil
}

// Noop discards every event.
type Noop struct{}

func (Noop) Enqueue(posthog.Message) error { return nil }

func (Noop) Close() error { return nil }
