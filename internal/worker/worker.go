package worker

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	PollTimeout  = 1 * time.Second
	RetryBackoff = 5 * time.Second
)

// ListPopper is the part of the Redis client the workers consume from.
type ListPopper interface {
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LPop(ctx context.Context, key string) *redis.StringCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// Requeuer appends a job to a queue.
type Requeuer interface {
	Enqueue(ctx context.Context, queue string, job any) error
}

// pollLoop blocks on queue until ctx ends, calling handle for each payload.
// A handler error sleeps RetryBackoff unless ctx ends first.
func pollLoop(ctx context.Context, rdb ListPopper, queue string, log zerolog.Logger, handle func(context.Context, string) error) {
	for {
		if ctx.Err() != nil {
			return
		}

		item, err := rdb.BLPop(ctx, PollTimeout, queue).Result()
		if err != nil {
			if !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Error().Err(err).Msg("BLPop error")
				sleep(ctx, RetryBackoff)
			}
			continue
		}
		if len(item) < 2 {
			continue
		}

		if err := handle(ctx, item[1]); err != nil {
			sleep(ctx, RetryBackoff)
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
