package cache

import (
	"testing"
	"time"
)

type sample struct {
	Key     string `json:"key"`
	Summary string `json:"summary"`
}

func TestSetGetRoundTrip(t *testing.T) {
	c := New(time.Minute)
	if err := c.Set("issue:DEMO-1", sample{Key: "DEMO-1", Summary: "Fix login"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	var loaded sample
	ok, err := c.Get("issue:DEMO-1", &loaded)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !ok || loaded.Summary != "Fix login" {
		t.Fatalf("unexpected value: ok=%v %+v", ok, loaded)
	}

	if ok, _ := c.Get("issue:OTHER-1", &loaded); ok {
		t.Fatal("expected miss for unknown key")
	}
}

func TestExpiry(t *testing.T) {
	c := New(time.Minute)
	current := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return current }

	if err := c.Set("k", sample{Key: "DEMO-1"}); err != nil {
		t.Fatalf("set: %v", err)
	}

	current = current.Add(2 * time.Minute)
	var loaded sample
	if ok, _ := c.Get("k", &loaded); ok {
		t.Fatal("expected expired entry to miss")
	}
	if c.Len() != 0 {
		t.Fatalf("expected expired entry dropped on read, len=%d", c.Len())
	}
}

func TestSweepDropsExpired(t *testing.T) {
	c := New(time.Minute)
	current := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return current }

	_ = c.Set("fresh", sample{})
	current = current.Add(-2 * time.Minute)
	_ = c.Set("stale", sample{})
	current = current.Add(2 * time.Minute)

	c.sweepOnce()
	if c.Len() != 1 {
		t.Fatalf("expected only fresh entry to survive, len=%d", c.Len())
	}
	var loaded sample
	if ok, _ := c.Get("fresh", &loaded); !ok {
		t.Fatal("fresh entry must survive sweep")
	}
}

func TestDelete(t *testing.T) {
	c := New(time.Minute)
	_ = c.Set("k", sample{})
	c.Delete("k")
	var loaded sample
	if ok, _ := c.Get("k", &loaded); ok {
		t.Fatal("expected deleted entry to miss")
	}
}
