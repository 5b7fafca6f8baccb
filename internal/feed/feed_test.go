package feed

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestInMemoryNewestFirst(t *testing.T) {
	f := NewInMemory(10)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := f.Publish(ctx, Entry{
			StudentID: fmt.Sprintf("25-SWT-%02d", i),
			Status:    "CheckedIn",
			Time:      time.Now(),
		})
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	got, err := f.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[0].StudentID != "25-SWT-02" || got[2].StudentID != "25-SWT-00" {
		t.Errorf("entries not newest-first: %v", got)
	}
}

func TestInMemoryCap(t *testing.T) {
	f := NewInMemory(2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = f.Publish(ctx, Entry{StudentID: fmt.Sprintf("id-%d", i)})
	}
	got, _ := f.Recent(ctx, 10)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want cap of 2", len(got))
	}
	if got[0].StudentID != "id-4" {
		t.Errorf("newest entry = %s, want id-4", got[0].StudentID)
	}
}

func TestInMemoryRecentLimit(t *testing.T) {
	f := NewInMemory(10)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_ = f.Publish(ctx, Entry{StudentID: fmt.Sprintf("id-%d", i)})
	}

	got, _ := f.Recent(ctx, 2)
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	got, _ = f.Recent(ctx, 0)
	if len(got) != 5 {
		t.Fatalf("n<=0 should return everything, got %d", len(got))
	}
}
