package transport

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the part of the go-redis client used by RedisSink
type RedisClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// RedisSinkConfig configures a RedisSink. At least one of List and Channel
// must be set.
type RedisSinkConfig struct {
	Addr     string
	Password string
	DB       int
	// List receives every message with RPUSH
	List string
	// Channel receives every message with PUBLISH
	Channel string
}

// RedisSink writes messages as JSON to a Redis list and/or channel
type RedisSink struct {
	client  RedisClient
	list    string
	channel string
}

// NewRedisSink connects to the server in cfg
func NewRedisSink(cfg RedisSinkConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	s, err := NewRedisSinkWithClient(client, cfg.List, cfg.Channel)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return s, nil
}

// NewRedisSinkWithClient creates a sink over an existing client
func NewRedisSinkWithClient(client RedisClient, list, channel string) (*RedisSink, error) {
	if list == "" && channel == "" {
		return nil, errors.New("redis sink needs a list or a channel")
	}
	return &RedisSink{client: client, list: list, channel: channel}, nil
}

// Deliver pushes and publishes msg
func (s *RedisSink) Deliver(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	if s.list != "" {
		if err := s.client.RPush(ctx, s.list, data).Err(); err != nil {
			return err
		}
	}
	if s.channel != "" {
		if err := s.client.Publish(ctx, s.channel, data).Err(); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the client
func (s *RedisSink) Close() error {
	return s.client.Close()
}
