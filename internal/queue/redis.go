// Package queue publishes background jobs and progress events over Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-assessment/internal/config"
	"github.com/stemsi/exstem-assessment/internal/model"
)

// Redis pushes JSON jobs onto Redis lists and ingestion events onto Pub/Sub channels.
type Redis struct {
	rdb *redis.Client
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb}
}

// Enqueue appends job to the tail of the named list.
func (q *Redis) Enqueue(ctx context.Context, queue string, job any) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	if err := q.rdb.RPush(ctx, queue, data).Err(); err != nil {
		return fmt.Errorf("enqueue %s: %w", queue, err)
	}
	return nil
}

// PublishIngest broadcasts a progress event on the curriculum's ingest channel.
func (q *Redis) PublishIngest(ctx context.Context, ev model.IngestEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	channel := config.CacheKey.CurriculumIngestChannel(ev.CurriculumID)
	if err := q.rdb.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Depths returns the pending length of each named list in one pipeline.
func (q *Redis) Depths(ctx context.Context, queues ...string) (map[string]int64, error) {
	pipe := q.rdb.Pipeline()
	cmds := make(map[string]*redis.IntCmd, len(queues))
	for _, name := range queues {
		cmds[name] = pipe.LLen(ctx, name)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("queue depths: %w", err)
	}

	depths := make(map[string]int64, len(cmds))
	for name, cmd := range cmds {
		depths[name] = cmd.Val()
	}
	return depths, nil
}

// SubscribeIngest listens on the curriculum's ingest channel. The returned
// channel closes when ctx ends or the close func is called. Malformed payloads
// are skipped.
func (q *Redis) SubscribeIngest(ctx context.Context, curriculumID string) (<-chan model.IngestEvent, func() error, error) {
	channel := config.CacheKey.CurriculumIngestChannel(curriculumID)
	pubsub := q.rdb.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	events := make(chan model.IngestEvent)
	go func() {
		defer close(events)
		msgs := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev model.IngestEvent
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, pubsub.Close, nil
}
