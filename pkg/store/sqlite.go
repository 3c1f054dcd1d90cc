package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xhad/de5chat/internal/models"
	_ "modernc.org/sqlite" // pure Go sqlite driver
)

const sqliteFileName = "index.db"

type SQLiteConfig struct {
	Dir           string
	BusyTimeoutMS int
}

// SQLiteStore keeps an index in a single SQLite file under Dir.
type SQLiteStore struct {
	config SQLiteConfig
	path   string
	db     *sql.DB
}

func NewSQLiteStore(config SQLiteConfig) *SQLiteStore {
	if config.Dir == "" {
		config.Dir = "./kb_index"
	}
	if config.BusyTimeoutMS == 0 {
		config.BusyTimeoutMS = 5000
	}
	return &SQLiteStore{
		config: config,
		path:   filepath.Join(config.Dir, sqliteFileName),
	}
}

func (s *SQLiteStore) Location() string {
	return s.path
}

// conn opens the database lazily. Without create a missing file is reported
// as ErrNotFound instead of being created.
func (s *SQLiteStore) conn(create bool) (*sql.DB, error) {
	if s.db != nil {
		return s.db, nil
	}
	if create {
		if err := os.MkdirAll(s.config.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create index directory: %w", err)
		}
	} else if _, err := os.Stat(s.path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to stat index: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)", s.path, s.config.BusyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open index database: %w", err)
	}
	s.db = db
	return db, nil
}

func (s *SQLiteStore) Save(ctx context.Context, meta models.IndexMeta, records []models.EmbeddingRecord) error {
	db, err := s.conn(true)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`DROP TABLE IF EXISTS records`,
		`CREATE TABLE records (
			chunk_id INTEGER PRIMARY KEY,
			chunk_index INTEGER NOT NULL,
			source_url TEXT NOT NULL,
			text TEXT NOT NULL,
			vector BLOB NOT NULL
		)`,
		`DELETE FROM meta`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}

	metaRows := map[string]string{
		"provider":   meta.Provider,
		"dimension":  strconv.Itoa(meta.Dimension),
		"count":      strconv.Itoa(len(records)),
		"created_at": meta.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	for key, value := range metaRows {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to write index meta: %w", err)
		}
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO records (chunk_id, chunk_index, source_url, text, vector) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.ChunkID, r.ChunkIndex, r.SourceURL, r.Text, encodeVector(r.Vector)); err != nil {
			return fmt.Errorf("failed to insert record %d: %w", r.ChunkID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (models.IndexMeta, []models.EmbeddingRecord, error) {
	var meta models.IndexMeta

	db, err := s.conn(false)
	if err != nil {
		return meta, nil, err
	}

	rows, err := db.QueryContext(ctx, `SELECT key, value FROM meta`)
	if err != nil {
		return meta, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	values := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			rows.Close()
			return meta, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		values[key] = value
	}
	rows.Close()

	meta, err = parseMeta(values)
	if err != nil {
		return meta, nil, err
	}

	rows, err = db.QueryContext(ctx, `SELECT chunk_id, chunk_index, source_url, text, vector FROM records ORDER BY chunk_id`)
	if err != nil {
		return meta, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	records := make([]models.EmbeddingRecord, 0, meta.Count)
	for rows.Next() {
		var r models.EmbeddingRecord
		var blob []byte
		if err := rows.Scan(&r.ChunkID, &r.ChunkIndex, &r.SourceURL, &r.Text, &blob); err != nil {
			return meta, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		if r.Vector, err = decodeVector(blob); err != nil {
			return meta, nil, err
		}
		if len(r.Vector) != meta.Dimension {
			return meta, nil, fmt.Errorf("%w: record %d has dimension %d, expected %d",
				ErrCorrupt, r.ChunkID, len(r.Vector), meta.Dimension)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return meta, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if len(records) != meta.Count {
		return meta, nil, fmt.Errorf("%w: expected %d records, found %d", ErrCorrupt, meta.Count, len(records))
	}

	return meta, records, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func parseMeta(values map[string]string) (models.IndexMeta, error) {
	var meta models.IndexMeta
	var err error

	meta.Provider = values["provider"]
	if meta.Provider == "" {
		return meta, fmt.Errorf("%w: missing provider", ErrCorrupt)
	}
	if meta.Dimension, err = strconv.Atoi(values["dimension"]); err != nil || meta.Dimension <= 0 {
		return meta, fmt.Errorf("%w: invalid dimension %q", ErrCorrupt, values["dimension"])
	}
	if meta.Count, err = strconv.Atoi(values["count"]); err != nil {
		return meta, fmt.Errorf("%w: invalid count %q", ErrCorrupt, values["count"])
	}
	if meta.CreatedAt, err = time.Parse(time.RFC3339Nano, values["created_at"]); err != nil {
		return meta, fmt.Errorf("%w: invalid created_at %q", ErrCorrupt, values["created_at"])
	}
	return meta, nil
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(buf []byte) ([]float32, error) {
	if len(buf)%4 != 0 {
		return nil, fmt.Errorf("%w: vector blob of %d bytes", ErrCorrupt, len(buf))
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return v, nil
}
