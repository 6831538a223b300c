package emulator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/mattn/go-sqlite3"
	"google.golang.org/protobuf/proto"

	fderror "github.com/msto63/firedoc/foundation/core/error"
)

// SQLiteStore persists documents in a SQLite file. Each row holds the
// protobuf encoding of one document.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// SQLiteConfig holds configuration for the SQLite store
type SQLiteConfig struct {
	Path string
}

// DefaultSQLiteConfig returns default configuration
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		Path: "./data/emulator.db",
	}
}

// NewSQLiteStore opens or creates the database at cfg.Path
func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	// Ensure directory exists
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates the necessary tables
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		name TEXT PRIMARY KEY,
		parent TEXT NOT NULL,
		collection TEXT NOT NULL,
		data BLOB NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(parent, collection, name);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, name string) (*firestorepb.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM documents WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(name)
	}
	if err != nil {
		return nil, storeError("get document", err)
	}
	return unmarshalDocument(data)
}

func (s *SQLiteStore) Create(ctx context.Context, doc *firestorepb.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := proto.Marshal(doc)
	if err != nil {
		return storeError("encode document", err)
	}
	parent, collection := splitName(doc.GetName())

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO documents (name, parent, collection, data) VALUES (?, ?, ?, ?)`,
		doc.GetName(), parent, collection, data)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		return alreadyExists(doc.GetName())
	}
	if err != nil {
		return storeError("insert document", err)
	}
	return nil
}

func (s *SQLiteStore) Put(ctx context.Context, doc *firestorepb.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := proto.Marshal(doc)
	if err != nil {
		return storeError("encode document", err)
	}
	parent, collection := splitName(doc.GetName())

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (name, parent, collection, data) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = CURRENT_TIMESTAMP`,
		doc.GetName(), parent, collection, data)
	if err != nil {
		return storeError("upsert document", err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, parent, collectionID string) ([]*firestorepb.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT data FROM documents WHERE parent = ? AND collection = ? ORDER BY name`,
		parent, collectionID)
	if err != nil {
		return nil, storeError("list documents", err)
	}
	defer rows.Close()

	var out []*firestorepb.Document
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, storeError("scan document", err)
		}
		doc, err := unmarshalDocument(data)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError("list documents", err)
	}
	return out, nil
}

// Count returns the number of stored documents
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, storeError("count documents", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func unmarshalDocument(data []byte) (*firestorepb.Document, error) {
	doc := &firestorepb.Document{}
	if err := proto.Unmarshal(data, doc); err != nil {
		return nil, storeError("decode document", err)
	}
	return doc, nil
}

func storeError(message string, cause error) *fderror.Error {
	return fderror.Wrap(cause, message).
		WithCode(fderror.CodeInternal).
		WithOperation("SQLiteStore")
}
