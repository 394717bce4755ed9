// Package trial runs one concurrency trial against a shared counter: a fixed
// number of goroutines each apply a fixed number of +1 or -1 updates, then the
// final value is checked against the closed-form total.
package trial

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tckz/go-atomic-trial/internal/counter"
	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	DefaultStartOffset    = 10 * time.Millisecond
	DefaultPerThreadDelay = 1 * time.Millisecond
)

type Direction int

const (
	Increment Direction = iota
	Decrement
)

func (d Direction) String() string {
	switch d {
	case Increment:
		return "increment"
	case Decrement:
		return "decrement"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

func (d Direction) sign() int64 {
	if d == Decrement {
		return -1
	}
	return 1
}

// Config is read-only once a trial starts. Values are not validated.
type Config struct {
	Direction  Direction
	Threads    int
	Iterations int

	// Workers sleep until now + Threads*PerThreadDelay + StartOffset so they
	// begin at roughly the same moment.
	StartOffset    time.Duration
	PerThreadDelay time.Duration
}

func NewConfig(d Direction, threads, iterations int) Config {
	return Config{
		Direction:      d,
		Threads:        threads,
		Iterations:     iterations,
		StartOffset:    DefaultStartOffset,
		PerThreadDelay: DefaultPerThreadDelay,
	}
}

func (c Config) Expected() int64 {
	return int64(c.Threads) * int64(c.Iterations) * c.Direction.sign()
}

type Result struct {
	ID     string
	Config Config

	Expected int64
	Actual   int64
	// Applied is the number of counter updates that returned without error.
	Applied int64
	// Interrupted is set when ctx ended before every worker reported; the
	// value was not checked.
	Interrupted bool
	Elapsed     time.Duration
}

type options struct {
	logger *zap.Logger
	id     string
}

type Option func(o *options)

func WithLogger(zl *zap.Logger) Option {
	return Option(func(o *options) {
		o.logger = zl
	})
}

func WithTrialID(id string) Option {
	return Option(func(o *options) {
		o.id = id
	})
}

type trial struct {
	cfg     Config
	counter counter.Counter
	start   time.Time

	done    *completion
	applied *atomic.Int64

	mu   sync.Mutex
	errs error
}

// Run executes one trial against c, which must start at zero.
//
// It returns *ConsistencyViolationError when the final value is wrong, and a
// nil error with Result.Interrupted set when ctx ends during the wait.
func Run(ctx context.Context, cfg Config, c counter.Counter, opts ...Option) (*Result, error) {
	options := options{
		logger: zap.NewNop(),
	}
	for _, e := range opts {
		e(&options)
	}
	if options.id == "" {
		options.id = uuid.New().String()
	}
	logger := options.logger.With(
		zap.String("trial", options.id),
		zap.Stringer("direction", cfg.Direction),
		zap.Int("threads", cfg.Threads),
		zap.Int("iterations", cfg.Iterations),
	)

	now := time.Now()
	t := &trial{
		cfg:     cfg,
		counter: c,
		start:   now.Add(time.Duration(cfg.Threads)*cfg.PerThreadDelay + cfg.StartOffset),
		done:    newCompletion(),
		applied: atomic.NewInt64(0),
	}
	res := &Result{
		ID:       options.id,
		Config:   cfg,
		Expected: cfg.Expected(),
	}

	logger.Debug("trial start", zap.Time("startAt", t.start))
	for i := 0; i < cfg.Threads; i++ {
		go t.work(ctx)
	}

	if err := t.done.wait(ctx, cfg.Threads); err != nil {
		res.Interrupted = true
		res.Applied = t.applied.Load()
		res.Elapsed = time.Since(now)
		return res, nil
	}
	res.Applied = t.applied.Load()

	t.mu.Lock()
	errs := t.errs
	t.mu.Unlock()
	if errs != nil {
		res.Elapsed = time.Since(now)
		return res, fmt.Errorf("trial %s: %w", options.id, errs)
	}

	v, err := c.Get(ctx)
	res.Elapsed = time.Since(now)
	if err != nil {
		return res, fmt.Errorf("trial %s: counter.Get: %w", options.id, err)
	}
	res.Actual = v
	logger.Debug("trial finished", zap.Int64("actual", v), zap.Duration("elapsed", res.Elapsed))

	if res.Actual != res.Expected {
		return res, &ConsistencyViolationError{Actual: res.Actual, Expected: res.Expected}
	}
	return res, nil
}

// RunFresh runs a trial on a counter created by f and released afterwards.
func RunFresh(ctx context.Context, cfg Config, f counter.Factory, opts ...Option) (res *Result, retErr error) {
	id := uuid.New().String()
	c, release, err := f(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("counter.Factory: %w", err)
	}
	defer multierr.AppendInvoke(&retErr, multierr.Invoke(func() error {
		return release(context.WithoutCancel(ctx))
	}))

	return Run(ctx, cfg, c, append([]Option{WithTrialID(id)}, opts...)...)
}

func (t *trial) work(ctx context.Context) {
	defer t.done.done()

	if d := time.Until(t.start); d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
	}

	apply, applyAndGet := t.counter.Increment, t.counter.GetAndIncrement
	if t.cfg.Direction == Decrement {
		apply, applyAndGet = t.counter.Decrement, t.counter.GetAndDecrement
	}

	flip := true
	for i := 0; i < t.cfg.Iterations; i++ {
		var err error
		if flip {
			err = apply(ctx)
		} else {
			_, err = applyAndGet(ctx)
		}
		if err != nil {
			t.fail(fmt.Errorf("iteration %d: %w", i, err))
			return
		}
		t.applied.Inc()
		flip = !flip
	}
}

func (t *trial) fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.errs = multierr.Append(t.errs, err)
}
