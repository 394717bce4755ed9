package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"
	"github.com/tckz/go-atomic-trial/internal/counter"
	"github.com/tckz/go-atomic-trial/internal/log"
	"github.com/tckz/go-atomic-trial/internal/trial"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	myName  = filepath.Base(os.Args[0])
	logger  *zap.SugaredLogger
	version string
)

var (
	optBackend    = flag.String("backend", string(counter.BackendSync), strings.Join(lo.Map(counter.Backends, func(b counter.Backend, _ int) string { return string(b) }), "|"))
	optThreads    = flag.Int("threads", 10, "Number of goroutines per trial")
	optIterations = flag.Int("iterations", 100, "Number of updates per goroutine")
	optRepeat     = flag.Int("repeat", 1, "Number of increment+decrement rounds")
	optParallel   = flag.Int("parallel", 1, "Number of rounds run at the same time")
	optRedis      = flag.String("redis", "", "addr:port of redis, defaults to $REDIS_ADDR")
	optKeyPrefix  = flag.String("redis-key-prefix", "atomic-trial", "prefix of redis keys")
	optLogLevel   = flag.String("log-level", "info", "debug|info|warn|error")
)

func init() {
	godotenv.Load()

	flag.Parse()

	logger = log.Must(log.NewLogger(log.WithLogLevel(*optLogLevel))).Sugar().With(zap.String("app", myName))
}

func main() {
	logger.Infof("ver=%s, args=%s", version, os.Args)
	{
		now := time.Now()
		defer func() {
			logger.Infof("done, dur=%s", time.Since(now))
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx); err != nil {
		var violation *trial.ConsistencyViolationError
		if errors.As(err, &violation) {
			logger.With(zap.Int64("actual", violation.Actual), zap.Int64("expected", violation.Expected)).
				Fatalf("*** consistency violation: %v", err)
		}
		logger.Fatalf("*** run: %v", err)
	}
}

func run(ctx context.Context) error {
	backend, err := counter.ParseBackend(*optBackend)
	if err != nil {
		return err
	}

	var factoryOpts []counter.FactoryOption
	if backend == counter.BackendRedis {
		addr := lo.Ternary(*optRedis != "", *optRedis, os.Getenv("REDIS_ADDR"))
		if addr == "" {
			return errors.New("--redis or REDIS_ADDR must be specified for redis backend")
		}
		cl := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:        []string{addr},
			DialTimeout:  time.Second * 2,
			ReadTimeout:  time.Second * 2,
			WriteTimeout: time.Second * 2,
			PoolSize:     *optThreads * *optParallel,
			PoolTimeout:  time.Second * 5,
		})
		defer cl.Close()
		factoryOpts = append(factoryOpts, counter.WithRedisClient(cl), counter.WithKeyPrefix(*optKeyPrefix))
	}

	f, err := counter.NewFactory(backend, factoryOpts...)
	if err != nil {
		return err
	}

	rounds := lo.Map(lo.Range(*optRepeat), func(_ int, _ int) []trial.Config {
		return []trial.Config{
			trial.NewConfig(trial.Increment, *optThreads, *optIterations),
			trial.NewConfig(trial.Decrement, *optThreads, *optIterations),
		}
	})

	var mu sync.Mutex
	var results []*trial.Result

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(*optParallel)
	for i, round := range rounds {
		i, round := i, round
		eg.Go(func() error {
			for _, cfg := range round {
				res, err := trial.RunFresh(ctx, cfg, f, trial.WithLogger(logger.Desugar()))
				if res != nil {
					mu.Lock()
					results = append(results, res)
					mu.Unlock()
				}
				if err != nil {
					return err
				}
				if res.Interrupted {
					return nil
				}
				logger.Debugf("round=%d, %s ok, value=%d, dur=%s", i, cfg.Direction, res.Actual, res.Elapsed)
			}
			return nil
		})
	}
	err = eg.Wait()

	applied := lo.SumBy(results, func(r *trial.Result) int64 { return r.Applied })
	interrupted := lo.CountBy(results, func(r *trial.Result) bool { return r.Interrupted })
	logger.Infof("backend=%s, trials=%d, interrupted=%d, updates=%s",
		backend, len(results), interrupted, humanize.Comma(applied))

	return err
}
