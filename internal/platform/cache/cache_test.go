package cache

import (
	"testing"
	"time"
)

func TestGetPutExpiry(t *testing.T) {
	c := New[string](time.Minute)
	base := time.Unix(100, 0)
	c.SetClock(func() time.Time { return base })

	if _, ok := c.Get("a"); ok {
		t.Fatalf("empty cache returned a value")
	}
	c.Put("a", "v1")
	if v, ok := c.Get("a"); !ok || v != "v1" {
		t.Fatalf("Get = %q, %v", v, ok)
	}

	// not expired one tick before the deadline
	c.SetClock(func() time.Time { return base.Add(time.Minute - time.Nanosecond) })
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("entry expired early")
	}

	// expired exactly at the deadline, and removed
	c.SetClock(func() time.Time { return base.Add(time.Minute) })
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expired entry returned")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry not dropped")
	}
}

func TestPutReplacesAtomically(t *testing.T) {
	c := New[int](time.Minute)
	c.Put("k", 1)
	c.Put("k", 2)
	if v, _ := c.Get("k"); v != 2 {
		t.Fatalf("Get = %d", v)
	}
	if c.Len() != 1 {
		t.Fatalf("Len = %d", c.Len())
	}
}

func TestPutForAndDelete(t *testing.T) {
	c := New[string](0) // default: never expires
	base := time.Unix(100, 0)
	c.SetClock(func() time.Time { return base })

	c.Put("forever", "x")
	c.PutFor("short", "y", time.Second)

	c.SetClock(func() time.Time { return base.Add(time.Hour) })
	if _, ok := c.Get("forever"); !ok {
		t.Fatalf("zero-ttl entry expired")
	}
	if _, ok := c.Get("short"); ok {
		t.Fatalf("short entry survived")
	}

	c.Delete("forever")
	if _, ok := c.Get("forever"); ok {
		t.Fatalf("deleted entry returned")
	}
}
