package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	pushed    map[string][]string
	published map[string][]string
	err       error
	closed    bool
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{pushed: map[string][]string{}, published: map[string][]string{}}
}

func (f *fakeRedis) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	for _, v := range values {
		f.pushed[key] = append(f.pushed[key], string(v.([]byte)))
	}
	return redis.NewIntResult(int64(len(f.pushed[key])), nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.published[channel] = append(f.published[channel], string(message.([]byte)))
	return redis.NewIntResult(1, nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisSinkPushesAndPublishes(t *testing.T) {
	client := newFakeRedis()
	sink, err := NewRedisSinkWithClient(client, "captures", "captures:live")
	require.NoError(t, err)

	msg := NewMessage(`{"log":{}}`, "/users/{id}", "cust")
	require.NoError(t, sink.Deliver(context.Background(), msg))

	require.Len(t, client.pushed["captures"], 1)
	require.Len(t, client.published["captures:live"], 1)

	var got Message
	require.NoError(t, json.Unmarshal([]byte(client.pushed["captures"][0]), &got))
	assert.Equal(t, msg.ID, got.ID)
	assert.Equal(t, msg.HAR, got.HAR)
	assert.Equal(t, "/users/{id}", got.PathHint)
	assert.Equal(t, "cust", got.CustomerID)

	require.NoError(t, sink.Close())
	assert.True(t, client.closed)
}

func TestRedisSinkListOnly(t *testing.T) {
	client := newFakeRedis()
	sink, err := NewRedisSinkWithClient(client, "captures", "")
	require.NoError(t, err)

	require.NoError(t, sink.Deliver(context.Background(), NewMessage("{}", "/", "")))
	assert.Len(t, client.pushed["captures"], 1)
	assert.Empty(t, client.published)
}

func TestRedisSinkPropagatesErrors(t *testing.T) {
	client := newFakeRedis()
	client.err = errors.New("connection refused")
	sink, err := NewRedisSinkWithClient(client, "", "captures:live")
	require.NoError(t, err)

	assert.EqualError(t, sink.Deliver(context.Background(), NewMessage("{}", "/", "")), "connection refused")
}

func TestRedisSinkNeedsTarget(t *testing.T) {
	_, err := NewRedisSinkWithClient(newFakeRedis(), "", "")
	assert.Error(t, err)
}
