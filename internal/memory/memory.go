// Package memory stores per-user conversation history and facts in a local
// SQLite database.
//
// Appends for the same user are serialized through striped locks so turn
// ordering follows completion order; different users never contend.
package memory

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

// Turn roles, matching the model/user distinction the LLM prompt uses.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// lockStripes bounds lock memory while keeping cross-user contention rare.
const lockStripes = 64

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Turn is one conversation turn of one user.
type Turn struct {
	ID        int64
	UserID    string
	Role      string
	Content   string
	CreatedAt time.Time
}

// Store is the SQLite-backed per-user memory store.
// It is safe for concurrent use by multiple goroutines.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	locks  [lockStripes]sync.Mutex
}

// New opens (creating if needed) the SQLite database at path and applies
// pending migrations.
func New(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("creating memory directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY under concurrent appends.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("memory store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

func runMigrations(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running memory migrations: %w", err)
	}
	return nil
}

// userLock returns the stripe lock for one user. All operations on the same
// user share a stripe, so a History immediately after an Append observes it.
func (s *Store) userLock(userID string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return &s.locks[h.Sum32()%lockStripes]
}

// Append records one conversation turn for a user. Appends of the same user
// are serialized; their stored order matches their completion order.
func (s *Store) Append(ctx context.Context, userID, role, content string) error {
	if userID == "" {
		return fmt.Errorf("user id must not be empty")
	}
	if role != RoleUser && role != RoleModel {
		return fmt.Errorf("invalid turn role %q", role)
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO turns (user_id, role, content, created_at) VALUES (?, ?, ?, ?)",
		userID, role, content, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("appending turn for %s: %w", userID, err)
	}
	return nil
}

// History returns the user's most recent turns in chronological order,
// bounded by limit (0 means all).
func (s *Store) History(ctx context.Context, userID string, limit int) ([]Turn, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	query := `SELECT id, user_id, role, content, created_at
	          FROM turns WHERE user_id = ? ORDER BY id DESC`
	args := []any{userID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading history for %s: %w", userID, err)
	}
	defer rows.Close()

	var turns []Turn
	for rows.Next() {
		var t Turn
		if err := rows.Scan(&t.ID, &t.UserID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history rows: %w", err)
	}

	// Query returned newest first; flip to chronological.
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// SetFact upserts one durable fact for a user.
func (s *Store) SetFact(ctx context.Context, userID, key, value string) error {
	if userID == "" || key == "" {
		return fmt.Errorf("user id and key must not be empty")
	}

	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	_, err := s.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO facts (user_id, key, value, updated_at) VALUES (?, ?, ?, ?)",
		userID, key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("setting fact %s for %s: %w", key, userID, err)
	}
	return nil
}

// Facts returns all durable facts of a user. An unknown user yields an
// empty map.
func (s *Store) Facts(ctx context.Context, userID string) (map[string]string, error) {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM facts WHERE user_id = ? ORDER BY key", userID)
	if err != nil {
		return nil, fmt.Errorf("loading facts for %s: %w", userID, err)
	}
	defer rows.Close()

	facts := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		facts[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fact rows: %w", err)
	}
	return facts, nil
}

// Ping verifies the store is reachable. Used by the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
