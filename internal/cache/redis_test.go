package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestUnreachableRedisIsNotAMiss(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	c := NewCache(client, "test:")
	ctx := context.Background()

	var out string
	err := c.Get(ctx, "k", &out)
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrMiss) {
		t.Error("connection failure reported as a miss")
	}
	if err := c.Ping(ctx); err == nil {
		t.Error("Ping() succeeded against a closed port")
	}
	if err := c.Set(ctx, "k", "v", time.Minute); err == nil {
		t.Error("Set() succeeded against a closed port")
	}
}
