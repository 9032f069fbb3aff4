package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/plateworks/fordon/internal/core/vehicle"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Cached Page Operations
// =============================================================================

// cachedPageRow represents a cached page row in the database.
type cachedPageRow struct {
	CacheKey  string `db:"cache_key"`
	Kind      string `db:"kind"`
	Payload   []byte `db:"payload"`
	FetchedAt string `db:"fetched_at"`
	ExpiresAt string `db:"expires_at"`
}

func (s *SQLiteStore) GetCachedPage(ctx context.Context, cacheKey string) (*CachedPage, error) {
	var row cachedPageRow
	err := s.db.GetContext(ctx, &row,
		`SELECT cache_key, kind, payload, fetched_at, expires_at
		 FROM cached_pages WHERE cache_key = ?`, cacheKey)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewStoreError("GetCachedPage", "cached_page", cacheKey, "not found", ErrNotFound)
	}
	if err != nil {
		return nil, NewStoreError("GetCachedPage", "cached_page", cacheKey, err.Error(), err)
	}

	page, err := row.toEntity()
	if err != nil {
		return nil, NewStoreError("GetCachedPage", "cached_page", cacheKey, err.Error(), ErrInvalidData)
	}
	return page, nil
}

func (s *SQLiteStore) PutCachedPage(ctx context.Context, page *CachedPage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cached_pages (cache_key, kind, payload, fetched_at, expires_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(cache_key) DO UPDATE SET
		   kind = excluded.kind,
		   payload = excluded.payload,
		   fetched_at = excluded.fetched_at,
		   expires_at = excluded.expires_at`,
		page.CacheKey,
		string(page.Kind),
		page.Payload,
		formatTime(page.FetchedAt),
		formatTime(page.ExpiresAt),
	)
	if err != nil {
		return NewStoreError("PutCachedPage", "cached_page", page.CacheKey, err.Error(), err)
	}
	return nil
}

func (s *SQLiteStore) DeleteExpiredPages(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM cached_pages WHERE expires_at <= ?`, formatTime(now))
	if err != nil {
		return 0, NewStoreError("DeleteExpiredPages", "cached_page", "", err.Error(), err)
	}
	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, NewStoreError("DeleteExpiredPages", "cached_page", "", err.Error(), err)
	}
	return deleted, nil
}

// =============================================================================
// Lookup Event Operations
// =============================================================================

// lookupEventRow represents a lookup event row in the database.
type lookupEventRow struct {
	ID         string `db:"id"`
	Kind       string `db:"kind"`
	Query      string `db:"query"`
	CacheHit   bool   `db:"cache_hit"`
	DurationMS int64  `db:"duration_ms"`
	CreatedAt  string `db:"created_at"`
}

func (s *SQLiteStore) CreateLookupEvent(ctx context.Context, event *vehicle.LookupEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lookup_events (id, kind, query, cache_hit, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.ID,
		string(event.Kind),
		event.Query,
		event.CacheHit,
		event.DurationMS,
		formatTime(event.CreatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return NewStoreError("CreateLookupEvent", "lookup_event", event.ID, "already exists", ErrDuplicateID)
		}
		return NewStoreError("CreateLookupEvent", "lookup_event", event.ID, err.Error(), err)
	}
	return nil
}

func (s *SQLiteStore) ListLookupEvents(ctx context.Context, opts ListOptions) ([]vehicle.LookupEvent, error) {
	opts = opts.Normalize()

	var rows []lookupEventRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, kind, query, cache_hit, duration_ms, created_at
		 FROM lookup_events
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListLookupEvents", "lookup_event", "", err.Error(), err)
	}

	events := make([]vehicle.LookupEvent, 0, len(rows))
	for _, row := range rows {
		event, err := row.toEntity()
		if err != nil {
			return nil, NewStoreError("ListLookupEvents", "lookup_event", row.ID, err.Error(), ErrInvalidData)
		}
		events = append(events, event)
	}
	return events, nil
}

func (s *SQLiteStore) CountLookupEvents(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM lookup_events`); err != nil {
		return 0, NewStoreError("CountLookupEvents", "lookup_event", "", err.Error(), err)
	}
	return count, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

// Timestamps are stored as RFC3339 text for portability across drivers.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func (r cachedPageRow) toEntity() (*CachedPage, error) {
	fetchedAt, err := parseTime(r.FetchedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid fetched_at: %w", err)
	}
	expiresAt, err := parseTime(r.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("invalid expires_at: %w", err)
	}
	return &CachedPage{
		CacheKey:  r.CacheKey,
		Kind:      vehicle.LookupKind(r.Kind),
		Payload:   r.Payload,
		FetchedAt: fetchedAt,
		ExpiresAt: expiresAt,
	}, nil
}

func (r lookupEventRow) toEntity() (vehicle.LookupEvent, error) {
	createdAt, err := parseTime(r.CreatedAt)
	if err != nil {
		return vehicle.LookupEvent{}, fmt.Errorf("invalid created_at: %w", err)
	}
	return vehicle.LookupEvent{
		ID:         r.ID,
		Kind:       vehicle.LookupKind(r.Kind),
		Query:      r.Query,
		CacheHit:   r.CacheHit,
		DurationMS: r.DurationMS,
		CreatedAt:  createdAt,
	}, nil
}
