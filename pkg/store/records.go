package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recordbook/pkg/domain"
)

// ErrInvalidID is returned when an identifier is not a valid object id.
var ErrInvalidID = errors.New("invalid record id")

// RecordStore defines persistence operations for the record collection.
// Every method maps to exactly one store operation.
type RecordStore interface {
	Insert(ctx context.Context, fields domain.Fields) (string, error)
	FindOne(ctx context.Context) (domain.Record, bool, error)
	FindAll(ctx context.Context) ([]domain.Record, error)
	FindByCity(ctx context.Context, city string) ([]domain.Record, error)
	DeleteByID(ctx context.Context, id string) (int64, error)
	ReplaceFields(ctx context.Context, id string, fields domain.Fields) (UpdateResult, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// UpdateResult mirrors the matched/modified counts reported by the store.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

const (
	DriverMongo    = "mongo"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Options selects and configures a store backend.
type Options struct {
	Driver     string
	URL        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// Connect opens the configured backend and pings it once.
// There is no retry; callers decide whether a failure is fatal.
func Connect(ctx context.Context, opts Options) (RecordStore, error) {
	var (
		s   RecordStore
		err error
	)
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", DriverMongo:
		s, err = NewMongoStore(opts.URL, opts.Database, opts.Collection, opts.Timeout)
	case DriverPostgres:
		s, err = NewGormStore(PostgresDialector(opts.URL), WithTable(opts.Collection))
	case DriverMemory:
		s = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", opts.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Ping(ctx); err != nil {
		_ = s.Close(context.Background())
		return nil, fmt.Errorf("ping store: %w", err)
	}
	return s, nil
}
