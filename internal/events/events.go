// Package events streams completed hands and chip movements to external
// consumers over a Redis stream. Publishing is advisory: every failure is
// logged and none of them touch game state, so the feed can lag or vanish
// without the tables noticing.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"pokerarena/internal/store"
)

const (
	defaultStream  = "arena.hands"
	publishTimeout = 2 * time.Second
	streamMaxLen   = 10000
)

type Publisher interface {
	HandCompleted(rec *store.HandRecord)
	ChipTx(tx *store.ChipTx)
	Close() error
}

// NewPublisherFromEnv connects to REDIS_ADDR, or returns the noop publisher
// when it is unset. REDIS_STREAM overrides the stream name.
func NewPublisherFromEnv() (Publisher, string, error) {
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return NewNoop(), "off", nil
	}
	stream := strings.TrimSpace(os.Getenv("REDIS_STREAM"))
	if stream == "" {
		stream = defaultStream
	}
	pub, err := NewRedisPublisher(addr, stream)
	if err != nil {
		return nil, "", err
	}
	return pub, "redis", nil
}

type noopPublisher struct{}

func NewNoop() Publisher { return noopPublisher{} }

func (noopPublisher) HandCompleted(*store.HandRecord) {}
func (noopPublisher) ChipTx(*store.ChipTx)            {}
func (noopPublisher) Close() error                    { return nil }

// RedisPublisher XAdds one JSON entry per record, trimming the stream to a
// bounded length so an idle consumer cannot grow it without limit.
type RedisPublisher struct {
	client *redis.Client
	stream string
}

func NewRedisPublisher(addr, stream string) (*RedisPublisher, error) {
	if strings.TrimSpace(stream) == "" {
		return nil, fmt.Errorf("empty redis stream name")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisPublisher{client: client, stream: stream}, nil
}

func (p *RedisPublisher) Close() error { return p.client.Close() }

func (p *RedisPublisher) HandCompleted(rec *store.HandRecord) {
	if rec == nil {
		return
	}
	go p.publish("hand.completed", rec)
}

func (p *RedisPublisher) ChipTx(tx *store.ChipTx) {
	if tx == nil {
		return
	}
	go p.publish("chip.tx", tx)
}

func (p *RedisPublisher) publish(kind string, payload any) {
	values, err := streamValues(kind, payload)
	if err != nil {
		log.Warnf("[Events] marshal %s failed: %v", kind, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: values,
	}).Err()
	if err != nil {
		log.Warnf("[Events] publish %s to %s failed: %v", kind, p.stream, err)
	}
}

func streamValues(kind string, payload any) (map[string]any, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"kind":    kind,
		"ts":      time.Now().UTC().UnixMilli(),
		"payload": string(raw),
	}, nil
}
