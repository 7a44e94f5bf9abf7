package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"recordbook/internal/util"
)

// Record change event types.
const (
	EventCreated = "created"
	EventUpdated = "updated"
	EventDeleted = "deleted"
)

// RecordEvent describes a committed change to one record.
type RecordEvent struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	RecordID  string    `json:"recordId"`
	RequestID string    `json:"requestId,omitempty"`
	At        time.Time `json:"at"`
}

// RedisEventStream appends record events to a capped Redis stream.
type RedisEventStream struct {
	client *redis.Client
	stream string
	maxLen int64
}

type RedisEventStreamConfig struct {
	Addr     string
	Password string
	Stream   string
	MaxLen   int64
}

func NewRedisEventStream(cfg RedisEventStreamConfig) (*RedisEventStream, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("redis addr required")
	}
	stream := strings.TrimSpace(cfg.Stream)
	if stream == "" {
		return nil, errors.New("event stream required")
	}
	maxLen := cfg.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &RedisEventStream{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		stream: stream,
		maxLen: maxLen,
	}, nil
}

// Publish appends one event. A zero ID or timestamp is filled in.
func (s *RedisEventStream) Publish(ctx context.Context, ev RecordEvent) (RecordEvent, error) {
	ev.Type = strings.TrimSpace(ev.Type)
	ev.RecordID = strings.TrimSpace(ev.RecordID)
	if ev.Type == "" || ev.RecordID == "" {
		return RecordEvent{}, errors.New("event type and record id required")
	}
	if ev.ID == "" {
		ev.ID = util.NewID()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	if err := s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: true,
		Values: map[string]any{
			"event_id":   ev.ID,
			"type":       ev.Type,
			"record_id":  ev.RecordID,
			"request_id": ev.RequestID,
			"at":         ev.At.Format(time.RFC3339Nano),
		},
	}).Err(); err != nil {
		return RecordEvent{}, fmt.Errorf("publish record event: %w", err)
	}
	return ev, nil
}

// Recent returns up to count events, newest first.
func (s *RedisEventStream) Recent(ctx context.Context, count int64) ([]RecordEvent, error) {
	if count <= 0 {
		count = 50
	}
	msgs, err := s.client.XRevRangeN(ctx, s.stream, "+", "-", count).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]RecordEvent, 0, len(msgs))
	for _, msg := range msgs {
		ev, ok := decodeRecordEvent(msg)
		if !ok {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (s *RedisEventStream) Close() error {
	return s.client.Close()
}

func decodeRecordEvent(msg redis.XMessage) (RecordEvent, bool) {
	id, _ := msg.Values["event_id"].(string)
	typ, _ := msg.Values["type"].(string)
	recordID, _ := msg.Values["record_id"].(string)
	if id == "" || typ == "" || recordID == "" {
		return RecordEvent{}, false
	}
	ev := RecordEvent{ID: id, Type: typ, RecordID: recordID}
	ev.RequestID, _ = msg.Values["request_id"].(string)
	if v, _ := msg.Values["at"].(string); v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			ev.At = t
		}
	}
	return ev, true
}
