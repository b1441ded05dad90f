package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"
)

// ErrProfileNotFound indicates the requested profile doesn't exist.
var ErrProfileNotFound = errors.New("profile not found")

// Store keeps a history of snapshots in SQLite.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.Mutex
}

// Entry is one row of the history.
type Entry struct {
	ID        int64
	CreatedAt time.Time
	Source    string
	Size      int
}

// Open opens or creates the history database at dbPath.
func Open(ctx context.Context, dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, fmt.Errorf("creating database dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One connection keeps ":memory:" databases alive and serialises writes.
	db.SetMaxOpenConns(1)

	// Set busy timeout for concurrent access
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at INTEGER NOT NULL,
		source TEXT NOT NULL,
		data BLOB NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	storeLog().Debugf("opened profile store %s", dbPath)
	return &Store{db: db, dbPath: dbPath}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save stores a snapshot and returns its id.
func (s *Store) Save(ctx context.Context, snap *Snapshot) (int64, error) {
	data, err := Marshal(snap)
	if err != nil {
		return 0, fmt.Errorf("encoding profile: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO profiles (created_at, source, data) VALUES (?, ?, ?)",
		snap.CreatedAt, snap.Source, data,
	)
	if err != nil {
		return 0, fmt.Errorf("saving profile: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("saving profile: %w", err)
	}
	storeLog().Debugf("saved profile %d from %s (%d bytes)", id, snap.Source, len(data))
	return id, nil
}

// Load retrieves a snapshot by id.
func (s *Store) Load(ctx context.Context, id int64) (*Snapshot, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, "SELECT data FROM profiles WHERE id = ?", id).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("querying profile: %w", err)
	}
	return Unmarshal(data)
}

// List returns the history, newest first. A limit of zero or less returns
// every entry.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := "SELECT id, created_at, source, length(data) FROM profiles ORDER BY id DESC"
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(&e.ID, &created, &e.Source, &e.Size); err != nil {
			return nil, fmt.Errorf("scanning profile: %w", err)
		}
		e.CreatedAt = time.Unix(0, created)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	return out, nil
}

// Delete removes a snapshot.
func (s *Store) Delete(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrProfileNotFound
	}
	return nil
}

func storeLog() commonlog.Logger {
	return commonlog.GetLogger("pica.profile")
}
