package counter

import (
	"context"
	"sync/atomic"

	uberatomic "go.uber.org/atomic"
)

var (
	_ Counter = (*SyncCounter)(nil)
	_ Counter = (*UberCounter)(nil)
)

// SyncCounter is backed by the runtime's sync/atomic.
type SyncCounter struct {
	count atomic.Int64
}

func (c *SyncCounter) Increment(ctx context.Context) error {
	c.count.Add(1)
	return nil
}

func (c *SyncCounter) Decrement(ctx context.Context) error {
	c.count.Add(-1)
	return nil
}

func (c *SyncCounter) GetAndIncrement(ctx context.Context) (int64, error) {
	return c.count.Add(1) - 1, nil
}

func (c *SyncCounter) GetAndDecrement(ctx context.Context) (int64, error) {
	return c.count.Add(-1) + 1, nil
}

func (c *SyncCounter) Get(ctx context.Context) (int64, error) {
	return c.count.Load(), nil
}

// UberCounter is backed by go.uber.org/atomic.
type UberCounter struct {
	count *uberatomic.Int64
}

func NewUberCounter() *UberCounter {
	return &UberCounter{count: uberatomic.NewInt64(0)}
}

func (c *UberCounter) Increment(ctx context.Context) error {
	c.count.Inc()
	return nil
}

func (c *UberCounter) Decrement(ctx context.Context) error {
	c.count.Dec()
	return nil
}

func (c *UberCounter) GetAndIncrement(ctx context.Context) (int64, error) {
	return c.count.Inc() - 1, nil
}

func (c *UberCounter) GetAndDecrement(ctx context.Context) (int64, error) {
	return c.count.Dec() + 1, nil
}

func (c *UberCounter) Get(ctx context.Context) (int64, error) {
	return c.count.Load(), nil
}
