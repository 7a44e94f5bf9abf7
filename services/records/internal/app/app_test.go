package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"recordbook/pkg/domain"
	"recordbook/pkg/queue"
	"recordbook/pkg/store"
)

func TestAppWithoutStore(t *testing.T) {
	a := New(Config{})
	ctx := context.Background()
	if a.Available() {
		t.Fatalf("app without store reports available")
	}
	if err := a.Ready(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("ready err = %v, want ErrStoreUnavailable", err)
	}
	if _, err := a.CreateRecord(ctx, domain.Fields{}); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("create err = %v", err)
	}
	if _, _, err := a.FirstRecord(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("first err = %v", err)
	}
	if _, err := a.ListFiltered(ctx); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("filtered err = %v", err)
	}
	if err := a.DeleteRecord(ctx, "bad-id"); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("delete err = %v, store check comes first", err)
	}
}

func TestAppDefaultsFilterCity(t *testing.T) {
	if got := New(Config{FilterCity: "  "}).FilterCity(); got != DefaultFilterCity {
		t.Fatalf("filter city = %q, want %q", got, DefaultFilterCity)
	}
}

func TestAppUpdateOutcomes(t *testing.T) {
	mem := store.NewMemoryStore()
	a := New(Config{Store: mem})
	ctx := context.Background()
	id, err := a.CreateRecord(ctx, domain.Fields{Name: domain.Text("A")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	tests := []struct {
		name   string
		id     string
		fields domain.Fields
		want   error
	}{
		{name: "malformed id", id: "bad-id", want: ErrInvalidID},
		{name: "unknown id", id: domain.NewRecordID(), want: ErrNotFound},
		{name: "changed", id: id, fields: domain.Fields{Name: domain.Text("B")}},
		{name: "unchanged", id: id, fields: domain.Fields{Name: domain.Text("B")}, want: ErrNotModified},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := a.UpdateRecord(ctx, tc.id, tc.fields)
			if !errors.Is(err, tc.want) {
				t.Fatalf("update err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestAppDeleteOutcomes(t *testing.T) {
	a := New(Config{Store: store.NewMemoryStore()})
	ctx := context.Background()
	id, _ := a.CreateRecord(ctx, domain.Fields{})

	if err := a.DeleteRecord(ctx, "123"); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("delete malformed err = %v", err)
	}
	if err := a.DeleteRecord(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := a.DeleteRecord(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

type recordingFeed struct {
	events []queue.RecordEvent
	err    error
}

func (f *recordingFeed) Publish(_ context.Context, ev queue.RecordEvent) (queue.RecordEvent, error) {
	if f.err != nil {
		return queue.RecordEvent{}, f.err
	}
	f.events = append(f.events, ev)
	return ev, nil
}

func (f *recordingFeed) Recent(context.Context, int64) ([]queue.RecordEvent, error) {
	return f.events, nil
}

func TestAppPublishesCommittedChanges(t *testing.T) {
	feed := &recordingFeed{}
	a := New(Config{Store: store.NewMemoryStore(), Events: feed})
	ctx := context.Background()

	id, err := a.CreateRecord(ctx, domain.Fields{Name: domain.Text("A")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := a.UpdateRecord(ctx, id, domain.Fields{Name: domain.Text("B")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Unchanged update and missing delete publish nothing.
	_ = a.UpdateRecord(ctx, id, domain.Fields{Name: domain.Text("B")})
	_ = a.DeleteRecord(ctx, domain.NewRecordID())
	if err := a.DeleteRecord(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	want := []string{queue.EventCreated, queue.EventUpdated, queue.EventDeleted}
	if len(feed.events) != len(want) {
		t.Fatalf("events = %+v, want types %v", feed.events, want)
	}
	for i, ev := range feed.events {
		if ev.Type != want[i] || ev.RecordID != id {
			t.Fatalf("events[%d] = %+v, want type %q for %s", i, ev, want[i], id)
		}
	}
}

func TestAppFeedFailureDoesNotFailWrite(t *testing.T) {
	a := New(Config{Store: store.NewMemoryStore(), Events: &recordingFeed{err: errors.New("redis down")}})
	if _, err := a.CreateRecord(context.Background(), domain.Fields{}); err != nil {
		t.Fatalf("create err = %v, want nil", err)
	}
}

func TestAppRecentEventsDisabled(t *testing.T) {
	a := New(Config{Store: store.NewMemoryStore()})
	if a.EventsEnabled() {
		t.Fatalf("events enabled without a feed")
	}
	if _, err := a.RecentEvents(context.Background(), 10); !errors.Is(err, ErrEventsDisabled) {
		t.Fatalf("recent err = %v, want ErrEventsDisabled", err)
	}
}

func TestAppAcceptsUppercaseIDs(t *testing.T) {
	feed := &recordingFeed{}
	a := New(Config{Store: store.NewMemoryStore(), Events: feed})
	ctx := context.Background()
	id, err := a.CreateRecord(ctx, domain.Fields{Name: domain.Text("A")})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	upper := strings.ToUpper(id)

	if err := a.UpdateRecord(ctx, upper, domain.Fields{Name: domain.Text("B")}); err != nil {
		t.Fatalf("update by uppercase id err = %v, want nil", err)
	}
	if err := a.DeleteRecord(ctx, upper); err != nil {
		t.Fatalf("delete by uppercase id err = %v, want nil", err)
	}
	for _, ev := range feed.events {
		if ev.RecordID != id {
			t.Fatalf("event record id = %q, want canonical %q", ev.RecordID, id)
		}
	}
}
