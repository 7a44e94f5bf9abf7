package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisEventStreamPublishAndRecent(t *testing.T) {
	s, ctx := newTestEventStream(t)

	first, err := s.Publish(ctx, RecordEvent{Type: EventCreated, RecordID: "64b7f0c2a1b2c3d4e5f60718"})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if first.ID == "" || first.At.IsZero() {
		t.Fatalf("expected id and timestamp to be filled, got %+v", first)
	}
	if _, err := s.Publish(ctx, RecordEvent{Type: EventDeleted, RecordID: "64b7f0c2a1b2c3d4e5f60718"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	events, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
	if events[0].Type != EventDeleted || events[1].Type != EventCreated {
		t.Fatalf("events not newest first: %+v", events)
	}
	if events[1].ID != first.ID || !events[1].At.Equal(first.At) {
		t.Fatalf("events[1] = %+v, want %+v", events[1], first)
	}
}

func TestRedisEventStreamRejectsIncompleteEvent(t *testing.T) {
	s, ctx := newTestEventStream(t)

	if _, err := s.Publish(ctx, RecordEvent{Type: EventUpdated}); err == nil {
		t.Fatalf("expected error for missing record id")
	}
	n, err := s.client.XLen(ctx, s.stream).Result()
	if err != nil {
		t.Fatalf("xlen: %v", err)
	}
	if n != 0 {
		t.Fatalf("stream len = %d, want 0", n)
	}
}

func TestRedisEventStreamRecentSkipsForeignEntries(t *testing.T) {
	s, ctx := newTestEventStream(t)

	if err := s.client.XAdd(ctx, &redis.XAddArgs{Stream: s.stream, Values: map[string]any{"other": "x"}}).Err(); err != nil {
		t.Fatalf("xadd: %v", err)
	}
	if _, err := s.Publish(ctx, RecordEvent{Type: EventUpdated, RecordID: "r1", At: time.Unix(0, 0).UTC()}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	events, err := s.Recent(ctx, 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(events) != 1 || events[0].RecordID != "r1" {
		t.Fatalf("events = %+v, want only r1", events)
	}
}

func TestNewRedisEventStreamRequiresAddrAndStream(t *testing.T) {
	if _, err := NewRedisEventStream(RedisEventStreamConfig{Stream: "s"}); err == nil {
		t.Fatalf("expected error for missing addr")
	}
	if _, err := NewRedisEventStream(RedisEventStreamConfig{Addr: "127.0.0.1:6379"}); err == nil {
		t.Fatalf("expected error for missing stream")
	}
}

func newTestEventStream(t *testing.T) (*RedisEventStream, context.Context) {
	t.Helper()

	redisSrv := miniredis.RunT(t)
	s, err := NewRedisEventStream(RedisEventStreamConfig{
		Addr:   redisSrv.Addr(),
		Stream: "test:records:events",
	})
	if err != nil {
		t.Fatalf("new event stream: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, context.Background()
}
