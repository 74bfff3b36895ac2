package health

import (
	"context"
	"errors"
	"fmt"
)

// ErrIndexNotReady is reported while no content index has been loaded.
var ErrIndexNotReady = errors.New("content index not loaded")

// Readiness is implemented by the index holder.
type Readiness interface {
	Ready() bool
}

// IndexProbe reports down until an index snapshot is being served.
func IndexProbe(r Readiness) Probe {
	return func(context.Context) error {
		if !r.Ready() {
			return ErrIndexNotReady
		}
		return nil
	}
}

// Pinger is satisfied by the Redis, Postgres and Kafka clients.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingProbe wraps a client's Ping, naming the dependency in the error.
func PingProbe(name string, p Pinger) Probe {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ping: %w", name, err)
		}
		return nil
	}
}
