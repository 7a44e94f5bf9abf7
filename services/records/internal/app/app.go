package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"recordbook/internal/util"
	"recordbook/pkg/domain"
	"recordbook/pkg/queue"
	"recordbook/pkg/store"
)

// DefaultFilterCity is the city matched by ListFiltered when none is configured.
const DefaultFilterCity = "Toronto"

// Config holds runtime configuration for the core application.
type Config struct {
	// Store may be nil when the startup connection failed and the
	// process was allowed to continue.
	Store      store.RecordStore
	FilterCity string
	// Events is optional; nil disables the change feed.
	Events EventFeed
}

// EventFeed receives committed record changes and lists recent ones.
type EventFeed interface {
	Publish(ctx context.Context, ev queue.RecordEvent) (queue.RecordEvent, error)
	Recent(ctx context.Context, count int64) ([]queue.RecordEvent, error)
}

// App maps each record use case onto a single store operation.
type App struct {
	store      store.RecordStore
	filterCity string
	events     EventFeed
}

// New constructs the application.
func New(cfg Config) *App {
	city := strings.TrimSpace(cfg.FilterCity)
	if city == "" {
		city = DefaultFilterCity
	}
	return &App{store: cfg.Store, filterCity: city, events: cfg.Events}
}

// Available reports whether the store handle was established at startup.
func (a *App) Available() bool {
	return a.store != nil
}

// Ready reports whether the store handle is set and answers a ping.
func (a *App) Ready(ctx context.Context) error {
	if a.store == nil {
		return ErrStoreUnavailable
	}
	return a.store.Ping(ctx)
}

// FilterCity returns the city used by ListFiltered.
func (a *App) FilterCity() string {
	return a.filterCity
}

// CreateRecord inserts a new record and returns its identifier.
func (a *App) CreateRecord(ctx context.Context, fields domain.Fields) (string, error) {
	if a.store == nil {
		return "", ErrStoreUnavailable
	}
	id, err := a.store.Insert(ctx, fields)
	if err != nil {
		return "", err
	}
	a.publish(ctx, queue.EventCreated, id)
	return id, nil
}

// FirstRecord returns an arbitrary record, or false when none exist.
func (a *App) FirstRecord(ctx context.Context) (domain.Record, bool, error) {
	if a.store == nil {
		return domain.Record{}, false, ErrStoreUnavailable
	}
	return a.store.FindOne(ctx)
}

// ListRecords returns every record in store order.
func (a *App) ListRecords(ctx context.Context) ([]domain.Record, error) {
	if a.store == nil {
		return nil, ErrStoreUnavailable
	}
	return a.store.FindAll(ctx)
}

// ListFiltered returns every record whose city equals the configured city.
func (a *App) ListFiltered(ctx context.Context) ([]domain.Record, error) {
	if a.store == nil {
		return nil, ErrStoreUnavailable
	}
	return a.store.FindByCity(ctx, a.filterCity)
}

// DeleteRecord removes the record with the given id.
func (a *App) DeleteRecord(ctx context.Context, id string) error {
	if a.store == nil {
		return ErrStoreUnavailable
	}
	id, ok := domain.CanonicalRecordID(id)
	if !ok {
		return ErrInvalidID
	}
	deleted, err := a.store.DeleteByID(ctx, id)
	if err != nil {
		return storeError(err)
	}
	if deleted != 1 {
		return ErrNotFound
	}
	a.publish(ctx, queue.EventDeleted, id)
	return nil
}

// UpdateRecord replaces all four fields of the record with the given id.
// Fields left nil are cleared.
func (a *App) UpdateRecord(ctx context.Context, id string, fields domain.Fields) error {
	if a.store == nil {
		return ErrStoreUnavailable
	}
	id, ok := domain.CanonicalRecordID(id)
	if !ok {
		return ErrInvalidID
	}
	res, err := a.store.ReplaceFields(ctx, id, fields)
	if err != nil {
		return storeError(err)
	}
	switch {
	case res.Modified == 1:
		a.publish(ctx, queue.EventUpdated, id)
		return nil
	case res.Matched == 0:
		return ErrNotFound
	default:
		return ErrNotModified
	}
}

// EventsEnabled reports whether a change feed is configured.
func (a *App) EventsEnabled() bool {
	return a.events != nil
}

// RecentEvents lists the latest record changes, newest first.
func (a *App) RecentEvents(ctx context.Context, count int64) ([]queue.RecordEvent, error) {
	if a.events == nil {
		return nil, ErrEventsDisabled
	}
	return a.events.Recent(ctx, count)
}

// publish records a committed change. The write already succeeded, so a
// feed failure is logged and not returned.
func (a *App) publish(ctx context.Context, typ, id string) {
	if a.events == nil {
		return
	}
	if _, err := a.events.Publish(ctx, queue.RecordEvent{
		Type:      typ,
		RecordID:  id,
		RequestID: util.RequestIDFromContext(ctx),
	}); err != nil {
		util.LoggerFromContext(ctx).Warn("record event publish failed", "type", typ, "recordId", id, "err", err)
	}
}

func storeError(err error) error {
	if errors.Is(err, store.ErrInvalidID) {
		return ErrInvalidID
	}
	return fmt.Errorf("store: %w", err)
}
