package replica

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"teamsync/api/internal/workspace"
)

// RedisStore keeps the snapshot under a single key and announces every save
// on a pub/sub channel so other local consumers can pick it up.
type RedisStore struct {
	client  *redis.Client
	key     string
	channel string
	logger  zerolog.Logger
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL, key string, logger zerolog.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, key, logger), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, key string, logger zerolog.Logger) *RedisStore {
	return &RedisStore{
		client:  client,
		key:     key,
		channel: key + ":updates",
		logger:  logger,
	}
}

func (s *RedisStore) LoadLocal(ctx context.Context) (workspace.Snapshot, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return workspace.Empty(), nil
	}
	if err != nil {
		return workspace.Snapshot{}, fmt.Errorf("load replica: %w", err)
	}
	return workspace.Decode(data)
}

func (s *RedisStore) SaveLocal(ctx context.Context, snapshot workspace.Snapshot) error {
	data, err := workspace.Encode(snapshot)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key, data, 0)
	pipe.Publish(ctx, s.channel, data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save replica: %w", err)
	}
	return nil
}

// SubscribeLocalUpdates calls fn with every snapshot published by SaveLocal.
// It returns once the subscription is confirmed by the server.
func (s *RedisStore) SubscribeLocalUpdates(ctx context.Context, fn func(workspace.Snapshot)) (func(), error) {
	pubsub := s.client.Subscribe(ctx, s.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe replica updates: %w", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range pubsub.Channel() {
			snapshot, err := workspace.Decode([]byte(msg.Payload))
			if err != nil {
				s.logger.Debug().Err(err).Str("channel", s.channel).Msg("skip malformed replica update")
				continue
			}
			fn(snapshot)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = pubsub.Close()
			<-done
		})
	}, nil
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
