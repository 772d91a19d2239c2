package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestNewLoginThrottle_Defaults(t *testing.T) {
	th := NewLoginThrottle(nil, 0, 0)
	if th.maxAttempts != defaultMaxAttempts || th.window != defaultWindow {
		t.Errorf("expected defaults, got %d / %v", th.maxAttempts, th.window)
	}
	if got := th.key("alice"); got != "login_failures:alice" {
		t.Errorf("unexpected key: %s", got)
	}
}

func TestLoginThrottle_UnreachableRedis(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()

	th := NewLoginThrottle(client, 3, time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := th.Allowed(ctx, "alice"); err == nil {
		t.Error("expected an error when redis is unreachable")
	}
	if err := th.RecordFailure(ctx, "alice"); err == nil {
		t.Error("expected an error when redis is unreachable")
	}
}
