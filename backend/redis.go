package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const redisNamespace = "ecolife"

// Redis stores preferences as plain string keys and announces every write on
// a per-profile channel, so stores in other processes can follow along.
type Redis struct {
	client  *redis.Client
	profile string
	origin  string
	logger  *slog.Logger
}

type redisChange struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

// NewRedis returns a backend for profile. The caller owns client.
func NewRedis(client *redis.Client, profile string, logger *slog.Logger) *Redis {
	return &Redis{
		client:  client,
		profile: profile,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

func (r *Redis) nsKey(key string) string {
	return fmt.Sprintf("%s:%s:%s", redisNamespace, r.profile, key)
}

func (r *Redis) channel() string {
	return fmt.Sprintf("%s:%s:changes", redisNamespace, r.profile)
}

func (r *Redis) Read(ctx context.Context, key string) (string, bool, error) {
	v, err := r.client.Get(ctx, r.nsKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return v, true, nil
}

func (r *Redis) Write(ctx context.Context, key, value string) error {
	payload, err := json.Marshal(redisChange{Origin: r.origin, Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("encoding change: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.nsKey(key), value, 0)
		pipe.Publish(ctx, r.channel(), payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis SET %s: %w", key, err)
	}
	return nil
}

// OnExternalChange subscribes to the profile's change channel. Messages this
// backend published itself are dropped.
func (r *Redis) OnExternalChange(fn func(key, value string)) (func(), error) {
	ctx := context.Background()
	sub := r.client.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis SUBSCRIBE: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range sub.Channel() {
			var c redisChange
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				r.logger.Warn("malformed preference change", "channel", msg.Channel, "error", err)
				continue
			}
			if c.Origin == r.origin {
				continue
			}
			fn(c.Key, c.Value)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := sub.Close(); err != nil {
				r.logger.Warn("closing redis subscription", "error", err)
			}
			<-done
		})
	}, nil
}
