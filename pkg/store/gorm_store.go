package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"recordbook/pkg/domain"
)

const migrateLockID int64 = 73217321

const defaultTable = "records"

type GormStoreOptions struct {
	Table string
}

type GormStoreOption func(*GormStoreOptions)

// WithTable sets the table holding records.
func WithTable(name string) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.Table = name
	}
}

// PostgresDialector returns the GORM dialector for a Postgres DSN.
func PostgresDialector(dsn string) gorm.Dialector {
	return postgres.Open(dsn)
}

// GormStore implements RecordStore on a relational table via GORM.
type GormStore struct {
	db    *gorm.DB
	table string
}

// NewGormStore opens the DB and migrates the records table.
func NewGormStore(dialector gorm.Dialector, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	table := sanitizeTable(opts.Table)

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.Table(table).AutoMigrate(&RecordModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, table: table}, nil
}

// sanitizeTable maps a collection name onto a safe SQL identifier.
func sanitizeTable(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return defaultTable
	}
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}
	return b.String()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	if db.Dialector.Name() != "postgres" {
		return fn(db)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func (s *GormStore) records(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Ping checks the underlying connection.
func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close releases the connection pool.
func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Insert adds a row under a freshly minted object id.
func (s *GormStore) Insert(ctx context.Context, fields domain.Fields) (string, error) {
	model := RecordModel{
		ID:        domain.NewRecordID(),
		Name:      fields.Name,
		Age:       fields.Age,
		City:      fields.City,
		Hobby:     fields.Hobby,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.records(ctx).Create(&model).Error; err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return model.ID, nil
}

// FindOne returns the oldest row, or false when the table is empty.
func (s *GormStore) FindOne(ctx context.Context) (domain.Record, bool, error) {
	var model RecordModel
	if err := s.records(ctx).Order("created_at, id").First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Record{}, false, nil
		}
		return domain.Record{}, false, fmt.Errorf("find record: %w", err)
	}
	return recordFromModel(model), true, nil
}

// FindAll returns every row in insertion order.
func (s *GormStore) FindAll(ctx context.Context) ([]domain.Record, error) {
	return s.find(s.records(ctx))
}

// FindByCity returns rows whose u_city equals city.
func (s *GormStore) FindByCity(ctx context.Context, city string) ([]domain.Record, error) {
	return s.find(s.records(ctx).Where(fieldCity+" = ?", city))
}

func (s *GormStore) find(q *gorm.DB) ([]domain.Record, error) {
	var models []RecordModel
	if err := q.Order("created_at, id").Find(&models).Error; err != nil {
		return nil, fmt.Errorf("find records: %w", err)
	}
	out := make([]domain.Record, 0, len(models))
	for _, m := range models {
		out = append(out, recordFromModel(m))
	}
	return out, nil
}

// DeleteByID removes the row with the given id.
func (s *GormStore) DeleteByID(ctx context.Context, id string) (int64, error) {
	id, ok := domain.CanonicalRecordID(id)
	if !ok {
		return 0, ErrInvalidID
	}
	res := s.records(ctx).Where("id = ?", id).Delete(&RecordModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete record: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ReplaceFields overwrites all content columns. Rows whose values already
// match count as matched but not modified, like a MongoDB $set.
func (s *GormStore) ReplaceFields(ctx context.Context, id string, fields domain.Fields) (UpdateResult, error) {
	id, ok := domain.CanonicalRecordID(id)
	if !ok {
		return UpdateResult{}, ErrInvalidID
	}
	var result UpdateResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current RecordModel
		if err := tx.Table(s.table).First(&current, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		result.Matched = 1
		if modelFields(current).Equal(fields) {
			return nil
		}
		res := tx.Table(s.table).Where("id = ?", id).Updates(fieldColumns(fields))
		if res.Error != nil {
			return res.Error
		}
		result.Modified = res.RowsAffected
		return nil
	})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("update record: %w", err)
	}
	return result, nil
}
