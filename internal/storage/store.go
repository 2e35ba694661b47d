package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

const memoryPath = ":memory:"

// maxUpdateAttempts bounds retries when the optimistic version check fails.
const maxUpdateAttempts = 3

var (
	// ErrLocked is returned when another process already owns the database.
	ErrLocked = errors.New("database is in use by another process")
	// ErrSkipWrite, returned from an Update callback, leaves the value as is.
	ErrSkipWrite = errors.New("skip write")

	errVersionConflict = errors.New("value changed during update")
)

// SQLiteStore is a profile-scoped key-value store on SQLite. Values are
// encrypted at rest when an encryption key is given.
type SQLiteStore struct {
	db            *sql.DB
	encryptionKey []byte
	mu            sync.RWMutex
	lock          *flock.Flock
	now           func() time.Time
}

// NewSQLiteStore opens (and creates) the database at dbPath. It takes an
// exclusive lock on dbPath+".lock" so only one process uses the file.
// encryptionKey may be nil to store values in plain text.
func NewSQLiteStore(dbPath string, encryptionKey []byte) (*SQLiteStore, error) {
	var lock *flock.Flock
	if dbPath != memoryPath {
		lock = flock.New(dbPath + ".lock")
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to lock database: %w", err)
		}
		if !ok {
			return nil, ErrLocked
		}
	}

	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		unlock(lock)
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == memoryPath {
		// Every connection would get its own empty in-memory database.
		db.SetMaxOpenConns(1)
	}

	store := &SQLiteStore{
		db:            db,
		encryptionKey: encryptionKey,
		lock:          lock,
		now:           time.Now,
	}

	if err := store.init(); err != nil {
		db.Close()
		unlock(lock)
		return nil, err
	}

	if dbPath != memoryPath {
		if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
			db.Close()
			unlock(lock)
			return nil, fmt.Errorf("failed to set database permissions: %w", err)
		}
	}

	return store, nil
}

func unlock(lock *flock.Flock) {
	if lock != nil {
		lock.Unlock()
	}
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS kv (
		profile TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (profile, key)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create kv table: %w", err)
	}

	visionCacheQuery := `
	CREATE TABLE IF NOT EXISTS vision_cache (
		cache_key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	if _, err := s.db.Exec(visionCacheQuery); err != nil {
		return fmt.Errorf("failed to create vision_cache table: %w", err)
	}

	return nil
}

// Close closes the database and releases the process lock.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if s.lock != nil {
		err = errors.Join(err, s.lock.Unlock())
	}
	return err
}

func (s *SQLiteStore) encode(value []byte) (string, error) {
	if s.encryptionKey == nil {
		return string(value), nil
	}
	return Encrypt(value, s.encryptionKey)
}

func (s *SQLiteStore) decode(stored string) ([]byte, error) {
	if s.encryptionKey == nil {
		return []byte(stored), nil
	}
	return Decrypt(stored, s.encryptionKey)
}

// Get returns the value under key, or nil if there is none.
func (s *SQLiteStore) Get(ctx context.Context, profile, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stored string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM kv WHERE profile = ? AND key = ?`,
		profile, key,
	).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return s.decode(stored)
}

// Set replaces the value under key.
func (s *SQLiteStore) Set(ctx context.Context, profile, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	encoded, err := s.encode(value)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (profile, key, value, version, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(profile, key) DO UPDATE SET
			value = excluded.value,
			version = kv.version + 1,
			updated_at = excluded.updated_at
	`, profile, key, encoded, s.now())
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *SQLiteStore) Delete(ctx context.Context, profile, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE profile = ? AND key = ?`, profile, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// Update reads key, passes its value (nil when missing) to fn and stores
// the result, all in one transaction. Writers are serialized and the write
// only lands if the row version is unchanged since the read.
func (s *SQLiteStore) Update(ctx context.Context, profile, key string, fn func(current []byte) ([]byte, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err = s.updateOnce(ctx, profile, key, fn)
		if !errors.Is(err, errVersionConflict) {
			return err
		}
	}
	return fmt.Errorf("failed to update %s: %w", key, err)
}

func (s *SQLiteStore) updateOnce(ctx context.Context, profile, key string, fn func([]byte) ([]byte, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		stored  string
		version int64
		exists  = true
		current []byte
	)
	err = tx.QueryRowContext(ctx,
		`SELECT value, version FROM kv WHERE profile = ? AND key = ?`,
		profile, key,
	).Scan(&stored, &version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		exists = false
	case err != nil:
		return fmt.Errorf("failed to read %s: %w", key, err)
	default:
		if current, err = s.decode(stored); err != nil {
			return err
		}
	}

	next, err := fn(current)
	if errors.Is(err, ErrSkipWrite) {
		return nil
	}
	if err != nil {
		return err
	}

	encoded, err := s.encode(next)
	if err != nil {
		return err
	}

	var res sql.Result
	if exists {
		res, err = tx.ExecContext(ctx, `
			UPDATE kv SET value = ?, version = version + 1, updated_at = ?
			WHERE profile = ? AND key = ? AND version = ?
		`, encoded, s.now(), profile, key, version)
	} else {
		res, err = tx.ExecContext(ctx, `
			INSERT INTO kv (profile, key, value, version, updated_at)
			VALUES (?, ?, ?, 1, ?)
			ON CONFLICT(profile, key) DO NOTHING
		`, profile, key, encoded, s.now())
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return errVersionConflict
	}

	return tx.Commit()
}

// GetVisionCache returns a cached analysis payload, or nil on a miss.
func (s *SQLiteStore) GetVisionCache(ctx context.Context, cacheKey string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM vision_cache WHERE cache_key = ?`, cacheKey,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vision cache: %w", err)
	}
	return []byte(payload), nil
}

// SetVisionCache stores an analysis payload.
func (s *SQLiteStore) SetVisionCache(ctx context.Context, cacheKey string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vision_cache (cache_key, payload)
		VALUES (?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET payload = excluded.payload, created_at = CURRENT_TIMESTAMP
	`, cacheKey, string(payload))
	if err != nil {
		return fmt.Errorf("failed to set vision cache: %w", err)
	}
	return nil
}

// PruneVisionCache drops cache entries older than maxAge.
func (s *SQLiteStore) PruneVisionCache(ctx context.Context, maxAge time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-maxAge).UTC().Format("2006-01-02 15:04:05")
	res, err := s.db.ExecContext(ctx, `DELETE FROM vision_cache WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune vision cache: %w", err)
	}
	return res.RowsAffected()
}
