// Package counter provides the shared integer cells mutated by a trial.
package counter

import (
	"context"
	"fmt"
)

// Counter is an integer cell whose operations are each indivisible.
// Local implementations never return an error.
type Counter interface {
	Increment(ctx context.Context) error
	Decrement(ctx context.Context) error
	// GetAndIncrement returns the value before the update.
	GetAndIncrement(ctx context.Context) (int64, error)
	// GetAndDecrement returns the value before the update.
	GetAndDecrement(ctx context.Context) (int64, error)
	Get(ctx context.Context) (int64, error)
}

type Backend string

const (
	BackendSync  Backend = "sync"
	BackendUber  Backend = "uber"
	BackendRedis Backend = "redis"
)

var Backends = []Backend{BackendSync, BackendUber, BackendRedis}

func ParseBackend(s string) (Backend, error) {
	for _, b := range Backends {
		if string(b) == s {
			return b, nil
		}
	}
	return "", fmt.Errorf("unknown backend: %q", s)
}
