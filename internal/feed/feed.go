// Package feed is the live scan board: the gateway and the absence sweep
// publish events, the recent-scans endpoint reads them back newest-first.
package feed

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is one row on the scan board.
type Entry struct {
	StudentName string    `json:"student_name"`
	StudentID   string    `json:"student_id"`
	Status      string    `json:"status"`
	Time        time.Time `json:"time"`
}

// Feed is the abstraction over different backends.
type Feed interface {
	Publish(ctx context.Context, e Entry) error
	Recent(ctx context.Context, n int) ([]Entry, error)
}

// InMemory is a bounded ring for dev/testing and single-process deployments.
type InMemory struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
}

// NewInMemory creates a ring holding the newest size entries.
func NewInMemory(size int) *InMemory {
	if size <= 0 {
		size = 50
	}
	return &InMemory{cap: size}
}

// Publish prepends an entry, dropping the oldest past the cap.
func (f *InMemory) Publish(_ context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append([]Entry{e}, f.entries...)
	if len(f.entries) > f.cap {
		f.entries = f.entries[:f.cap]
	}
	return nil
}

// Recent returns up to n newest entries.
func (f *InMemory) Recent(_ context.Context, n int) ([]Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n <= 0 || n > len(f.entries) {
		n = len(f.entries)
	}
	out := make([]Entry, n)
	copy(out, f.entries[:n])
	return out, nil
}

// RedisFeed keeps the board in a capped Redis list so every API instance
// serves the same feed.
type RedisFeed struct {
	client *redis.Client
	key    string
	cap    int
}

// NewRedisFeed builds a feed using LPUSH/LTRIM/LRANGE semantics.
func NewRedisFeed(client *redis.Client, key string, size int) *RedisFeed {
	if key == "" {
		key = "attendance:scanfeed"
	}
	if size <= 0 {
		size = 50
	}
	return &RedisFeed{client: client, key: key, cap: size}
}

// Publish pushes the entry and trims the list to the cap.
func (f *RedisFeed) Publish(ctx context.Context, e Entry) error {
	raw, err := json.Marshal(e)
	if err != nil {
		return err
	}
	pipe := f.client.TxPipeline()
	pipe.LPush(ctx, f.key, raw)
	pipe.LTrim(ctx, f.key, 0, int64(f.cap-1))
	_, err = pipe.Exec(ctx)
	return err
}

// Recent reads the newest n entries; undecodable rows are skipped.
func (f *RedisFeed) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 || n > f.cap {
		n = f.cap
	}
	raws, err := f.client.LRange(ctx, f.key, 0, int64(n-1)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	out := make([]Entry, 0, len(raws))
	for _, raw := range raws {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
