package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Factory creates a fresh zero-valued counter for one trial. release discards it.
type Factory func(ctx context.Context, trialID string) (c Counter, release func(ctx context.Context) error, err error)

type factoryOptions struct {
	client    redis.UniversalClient
	keyPrefix string
}

type FactoryOption func(o *factoryOptions)

func WithRedisClient(client redis.UniversalClient) FactoryOption {
	return FactoryOption(func(o *factoryOptions) {
		o.client = client
	})
}

func WithKeyPrefix(prefix string) FactoryOption {
	return FactoryOption(func(o *factoryOptions) {
		o.keyPrefix = prefix
	})
}

var ErrNoRedisClient = errors.New("redis backend requires a client")

func NewFactory(backend Backend, opts ...FactoryOption) (Factory, error) {
	options := factoryOptions{
		keyPrefix: "atomic-trial",
	}
	for _, e := range opts {
		e(&options)
	}

	nop := func(context.Context) error { return nil }

	switch backend {
	case BackendSync:
		return func(context.Context, string) (Counter, func(context.Context) error, error) {
			return &SyncCounter{}, nop, nil
		}, nil
	case BackendUber:
		return func(context.Context, string) (Counter, func(context.Context) error, error) {
			return NewUberCounter(), nop, nil
		}, nil
	case BackendRedis:
		if options.client == nil {
			return nil, ErrNoRedisClient
		}
		return func(ctx context.Context, trialID string) (Counter, func(context.Context) error, error) {
			c, err := NewRedisCounter(ctx, options.client, options.keyPrefix+":"+trialID)
			if err != nil {
				return nil, nil, err
			}
			return c, c.Close, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend: %q", backend)
	}
}
