package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const schema = `
CREATE TABLE IF NOT EXISTS ingestion_records (
	owner_id       TEXT NOT NULL,
	repository_key TEXT NOT NULL,
	repo_url       TEXT NOT NULL,
	last_accessed  INTEGER NOT NULL,
	ingested_at    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (owner_id, repository_key)
);

CREATE TABLE IF NOT EXISTS messages (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	owner_id       TEXT NOT NULL,
	repository_key TEXT NOT NULL,
	role           TEXT NOT NULL,
	text           TEXT NOT NULL,
	created_at     INTEGER NOT NULL,
	FOREIGN KEY (owner_id, repository_key)
		REFERENCES ingestion_records (owner_id, repository_key) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_messages_record ON messages (owner_id, repository_key, id);
CREATE INDEX IF NOT EXISTS idx_records_owner ON ingestion_records (owner_id, last_accessed DESC);
`

// SQLiteStore is a Store backed by a single SQLite file.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore opens (creating if needed) the database at path.
// ":memory:" opens a private in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("history path required")
	}

	dsn := ":memory:"
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating history directory: %w", err)
		}
		// WAL lets chat reads proceed while an ingestion touches records.
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
		if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ensureRecord inserts the record if it does not exist. last_accessed of a
// new record starts at at.
func ensureRecord(ctx context.Context, tx *sql.Tx, ownerID, key, repoURL string, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO ingestion_records (owner_id, repository_key, repo_url, last_accessed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, repository_key) DO NOTHING`,
		ownerID, key, repoURL, at.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting record: %w", err)
	}
	return nil
}

// Touch creates the record if needed and sets LastAccessed to at.
func (s *SQLiteStore) Touch(ctx context.Context, ownerID, repositoryKey, repoURL string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_records (owner_id, repository_key, repo_url, last_accessed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (owner_id, repository_key)
		DO UPDATE SET last_accessed = excluded.last_accessed, repo_url = excluded.repo_url`,
		ownerID, repositoryKey, repoURL, at.UnixNano())
	if err != nil {
		return fmt.Errorf("touching record %s/%s: %w", ownerID, repositoryKey, err)
	}
	return nil
}

// MarkIngested creates the record if needed and records a completed
// ingestion at at. LastAccessed moves to at as well.
func (s *SQLiteStore) MarkIngested(ctx context.Context, ownerID, repositoryKey, repoURL string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_records (owner_id, repository_key, repo_url, last_accessed, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (owner_id, repository_key)
		DO UPDATE SET last_accessed = excluded.last_accessed,
			ingested_at = excluded.ingested_at,
			repo_url = excluded.repo_url`,
		ownerID, repositoryKey, repoURL, at.UnixNano(), at.UnixNano())
	if err != nil {
		return fmt.Errorf("marking %s/%s ingested: %w", ownerID, repositoryKey, err)
	}
	return nil
}

// AppendMessage creates the record if needed and appends msg.
func (s *SQLiteStore) AppendMessage(ctx context.Context, ownerID, repositoryKey, repoURL string, msg Message) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := ensureRecord(ctx, tx, ownerID, repositoryKey, repoURL, msg.Timestamp); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (owner_id, repository_key, role, text, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		ownerID, repositoryKey, string(msg.Role), msg.Text, msg.Timestamp.UnixNano())
	if err != nil {
		return fmt.Errorf("inserting message: %w", err)
	}
	return tx.Commit()
}

// Get returns the record with messages in insertion order, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, ownerID, repositoryKey string) (*Record, error) {
	rec := &Record{OwnerID: ownerID, RepositoryKey: repositoryKey}

	var lastAccessed, ingestedAt int64
	err := s.db.QueryRowContext(ctx, `
		SELECT repo_url, last_accessed, ingested_at FROM ingestion_records
		WHERE owner_id = ? AND repository_key = ?`,
		ownerID, repositoryKey).Scan(&rec.RepoURL, &lastAccessed, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading record: %w", err)
	}
	rec.LastAccessed = time.Unix(0, lastAccessed)
	if ingestedAt != 0 {
		rec.IngestedAt = time.Unix(0, ingestedAt)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT role, text, created_at FROM messages
		WHERE owner_id = ? AND repository_key = ?
		ORDER BY id ASC`,
		ownerID, repositoryKey)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	rec.Messages = []Message{}
	for rows.Next() {
		var (
			m       Message
			role    string
			created int64
		)
		if err := rows.Scan(&role, &m.Text, &created); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Role = Role(role)
		m.Timestamp = time.Unix(0, created)
		rec.Messages = append(rec.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return rec, nil
}

// List returns the owner's records, most recently accessed first.
func (s *SQLiteStore) List(ctx context.Context, ownerID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT repo_url, repository_key, last_accessed FROM ingestion_records
		WHERE owner_id = ?
		ORDER BY last_accessed DESC, repository_key ASC`,
		ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			sum Summary
			at  int64
		)
		if err := rows.Scan(&sum.RepoURL, &sum.RepositoryKey, &at); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		sum.LastAccessed = time.Unix(0, at)
		out = append(out, sum)
	}
	return out, rows.Err()
}
