package leads

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/xhad/de5chat/internal/models"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS leads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	inquiry_type TEXT NOT NULL,
	created_at TEXT NOT NULL
)`

// SQLiteStore appends leads to a SQLite file. Writes are serialized so ids
// are assigned atomically.
type SQLiteStore struct {
	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		path = "leads.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create lead store directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open lead store: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create leads table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Add(ctx context.Context, sub Submission) (int64, error) {
	sub, err := sub.Normalize()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (name, email, inquiry_type, created_at) VALUES (?, ?, ?, ?)`,
		sub.Name, sub.Email, sub.InquiryType, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, fmt.Errorf("failed to insert lead: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read lead id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, email, inquiry_type, created_at FROM leads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var lead models.Lead
		var createdAt string
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.InquiryType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		if lead.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("failed to parse lead timestamp: %w", err)
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
