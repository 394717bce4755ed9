package trial

import (
	"context"
	"sync"
)

// completion counts finished workers. The harness blocks in wait until the
// count reaches the worker total; the mutex gives the happens-before edge
// from each worker's last counter operation to the harness's final read.
type completion struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newCompletion() *completion {
	c := &completion{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

func (c *completion) done() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++
	c.cond.Broadcast()
}

func (c *completion) get() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// wait returns ctx.Err() if ctx ends while the count is still below target.
func (c *completion) wait(ctx context.Context, target int) error {
	stop := context.AfterFunc(ctx, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.cond.Broadcast()
	})
	defer stop()

	c.mu.Lock()
	defer c.mu.Unlock()
	for c.count < target {
		if err := ctx.Err(); err != nil {
			return err
		}
		c.cond.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}
