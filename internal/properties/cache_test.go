package properties

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/huhlig/wyldlands-gw/internal/wyerr"
)

type fakePuller struct {
	values map[string]string
	calls  int
}

func (f *fakePuller) PullProperties(ctx context.Context, keys []string) (map[string]string, error) {
	f.calls++
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := f.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func TestCache_MissReturnsNotFound(t *testing.T) {
	c := New(time.Minute, &fakePuller{values: map[string]string{}}, nil)
	if _, err := c.Get(context.Background(), "banner.welcome"); !errors.Is(err, wyerr.NotFound) {
		t.Fatalf("got %v, want NotFound", err)
	}
}

func TestCache_RefreshThenHit(t *testing.T) {
	puller := &fakePuller{values: map[string]string{"banner.welcome": "Welcome to Wyldlands MUD!"}}
	c := New(time.Minute, puller, nil)

	if err := c.Refresh(context.Background(), DefaultKeys); err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	v, err := c.Get(context.Background(), "banner.welcome")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "Welcome to Wyldlands MUD!" {
		t.Fatalf("got %q", v)
	}
}

func TestCache_TTLExpiry(t *testing.T) {
	puller := &fakePuller{values: map[string]string{"banner.motd": "msg of the day"}}
	c := New(5*time.Millisecond, puller, nil)

	if err := c.Refresh(context.Background(), []string{"banner.motd"}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get(context.Background(), "banner.motd"); err != nil {
		t.Fatalf("expected a hit before expiry: %v", err)
	}

	time.Sleep(20 * time.Millisecond)
	if _, err := c.Get(context.Background(), "banner.motd"); !errors.Is(err, wyerr.NotFound) {
		t.Fatalf("got %v, want NotFound after TTL expiry", err)
	}
}

type fakeBacking struct {
	store map[string]string
}

func (f *fakeBacking) Get(ctx context.Context, key string) (string, bool) {
	v, ok := f.store[key]
	return v, ok
}

func (f *fakeBacking) Set(ctx context.Context, key, value string, ttl time.Duration) {
	f.store[key] = value
}

// TestCache_RunRefreshLoopRefreshesImmediately drives §4.7 scenario 1: a
// banner must be available right after startup, not only after the first
// TTL tick.
func TestCache_RunRefreshLoopRefreshesImmediately(t *testing.T) {
	puller := &fakePuller{values: map[string]string{"banner.welcome": "Welcome to Wyldlands MUD!"}}
	c := New(time.Hour, puller, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.RunRefreshLoop(ctx)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		if v, err := c.Get(context.Background(), "banner.welcome"); err == nil {
			if v != "Welcome to Wyldlands MUD!" {
				t.Fatalf("got %q", v)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("banner never became available; RunRefreshLoop did not refresh on startup")
		}
		time.Sleep(time.Millisecond)
	}

	cancel()
	<-done
}

func TestCache_FallsBackToBackingOnMiss(t *testing.T) {
	backing := &fakeBacking{store: map[string]string{"banner.login": "login banner"}}
	c := New(time.Minute, &fakePuller{values: map[string]string{}}, backing)

	v, err := c.Get(context.Background(), "banner.login")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != "login banner" {
		t.Fatalf("got %q, want %q", v, "login banner")
	}
}
