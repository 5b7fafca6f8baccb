package dedup

import (
	"fmt"
	"testing"
	"time"
)

func TestCheckStampsOnAccept(t *testing.T) {
	c := New(16)
	now := time.Now()

	if !c.Check("25-SWT-01", now, 3*time.Second) {
		t.Fatal("first scan should pass")
	}
	if c.Check("25-SWT-01", now.Add(time.Second), 3*time.Second) {
		t.Error("scan inside the window should be blocked")
	}
	if !c.Check("25-SWT-01", now.Add(3*time.Second), 3*time.Second) {
		t.Error("scan at the window boundary should pass")
	}
}

func TestCheckIndependentKeys(t *testing.T) {
	c := New(16)
	now := time.Now()

	if !c.Check("25-SWT-01", now, 3*time.Second) {
		t.Fatal("first key should pass")
	}
	if !c.Check("25-SWT-02", now, 3*time.Second) {
		t.Error("a different key must not be blocked")
	}
}

func TestForget(t *testing.T) {
	c := New(16)
	now := time.Now()

	c.Check("25-SWT-01", now, 3*time.Second)
	c.Forget("25-SWT-01")
	if !c.Check("25-SWT-01", now.Add(time.Millisecond), 3*time.Second) {
		t.Error("forgotten key should pass immediately")
	}
}

func TestEvictionKeepsCap(t *testing.T) {
	const cap = 8
	c := New(cap)
	now := time.Now()

	for i := 0; i < cap*3; i++ {
		id := fmt.Sprintf("25-SWT-%02d", i)
		if !c.Check(id, now.Add(time.Duration(i)*time.Millisecond), time.Minute) {
			t.Fatalf("fresh key %s should pass", id)
		}
		if c.Len() > cap {
			t.Fatalf("cache grew to %d, cap is %d", c.Len(), cap)
		}
	}
}

func TestEvictionPrefersExpired(t *testing.T) {
	c := New(2)
	now := time.Now()

	c.Check("old", now.Add(-time.Hour), time.Minute)
	c.Check("fresh", now, time.Minute)
	// Third key forces an eviction; the expired entry goes first and the
	// fresh one keeps blocking.
	if !c.Check("new", now, time.Minute) {
		t.Fatal("new key should pass")
	}
	if c.Check("fresh", now, time.Minute) {
		t.Error("fresh entry should have survived eviction")
	}
}

func TestZeroCapDefaults(t *testing.T) {
	c := New(0)
	if !c.Check("x", time.Now(), time.Second) {
		t.Error("default-capped cache should accept")
	}
}
