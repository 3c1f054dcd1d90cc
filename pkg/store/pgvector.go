package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	"github.com/xhad/de5chat/internal/models"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type PGVectorConfig struct {
	ConnString string
	TableName  string
	// Lists is the ivfflat list count. Zero skips the ANN index.
	Lists int
}

// PGVectorStore keeps an index in Postgres using the pgvector extension.
// Records live in TableName and the index metadata in TableName_meta.
type PGVectorStore struct {
	config PGVectorConfig
	pool   *pgxpool.Pool
}

func NewPGVectorStore(ctx context.Context, config PGVectorConfig) (*PGVectorStore, error) {
	if config.TableName == "" {
		config.TableName = "kb_records"
	}
	if !tableNamePattern.MatchString(config.TableName) {
		return nil, fmt.Errorf("invalid table name %q", config.TableName)
	}

	pool, err := pgxpool.New(ctx, config.ConnString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	vs := &PGVectorStore{
		config: config,
		pool:   pool,
	}

	if err := vs.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return vs, nil
}

func (vs *PGVectorStore) initialize(ctx context.Context) error {
	if _, err := vs.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	createMeta := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`, vs.metaTable())
	if _, err := vs.pool.Exec(ctx, createMeta); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}
	return nil
}

func (vs *PGVectorStore) metaTable() string {
	return vs.config.TableName + "_meta"
}

func (vs *PGVectorStore) Location() string {
	return "postgres:" + vs.config.TableName
}

// Save replaces the stored index. The records table is recreated because its
// vector column is sized to the index dimension.
func (vs *PGVectorStore) Save(ctx context.Context, meta models.IndexMeta, records []models.EmbeddingRecord) error {
	tx, err := vs.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	table := vs.config.TableName
	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %s`, table),
		fmt.Sprintf(`
			CREATE TABLE %s (
				chunk_id INTEGER PRIMARY KEY,
				chunk_index INTEGER NOT NULL,
				source_url TEXT NOT NULL,
				content TEXT NOT NULL,
				embedding vector(%d) NOT NULL
			)`, table, meta.Dimension),
		fmt.Sprintf(`DELETE FROM %s`, vs.metaTable()),
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to prepare schema: %w", err)
		}
	}

	metaRows := map[string]string{
		"provider":   meta.Provider,
		"dimension":  strconv.Itoa(meta.Dimension),
		"count":      strconv.Itoa(len(records)),
		"created_at": meta.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	insertMeta := fmt.Sprintf(`INSERT INTO %s (key, value) VALUES ($1, $2)`, vs.metaTable())
	for key, value := range metaRows {
		if _, err := tx.Exec(ctx, insertMeta, key, value); err != nil {
			return fmt.Errorf("failed to write index meta: %w", err)
		}
	}

	insert := fmt.Sprintf(`
		INSERT INTO %s (chunk_id, chunk_index, source_url, content, embedding)
		VALUES ($1, $2, $3, $4, $5)`, table)

	batch := &pgx.Batch{}
	for _, r := range records {
		batch.Queue(insert, r.ChunkID, r.ChunkIndex, r.SourceURL, sanitizeUTF8(r.Text), pgvector.NewVector(r.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert records: %w", err)
	}

	if vs.config.Lists > 0 {
		createIndex := fmt.Sprintf(`
			CREATE INDEX %s_embedding_idx
			ON %s
			USING ivfflat (embedding vector_cosine_ops)
			WITH (lists = %d)`,
			table, table, vs.config.Lists)
		if _, err := tx.Exec(ctx, createIndex); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (vs *PGVectorStore) Load(ctx context.Context) (models.IndexMeta, []models.EmbeddingRecord, error) {
	var meta models.IndexMeta

	rows, err := vs.pool.Query(ctx, fmt.Sprintf(`SELECT key, value FROM %s`, vs.metaTable()))
	if err != nil {
		return meta, nil, fmt.Errorf("failed to read index meta: %w", err)
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
	if err := rows.Err(); err != nil {
		return meta, nil, fmt.Errorf("failed to read index meta: %w", err)
	}
	if len(values) == 0 {
		return meta, nil, fmt.Errorf("%w: %s", ErrNotFound, vs.Location())
	}

	meta, err = parseMeta(values)
	if err != nil {
		return meta, nil, err
	}

	rows, err = vs.pool.Query(ctx, fmt.Sprintf(`
		SELECT chunk_id, chunk_index, source_url, content, embedding
		FROM %s
		ORDER BY chunk_id`, vs.config.TableName))
	if err != nil {
		return meta, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer rows.Close()

	records := make([]models.EmbeddingRecord, 0, meta.Count)
	for rows.Next() {
		var r models.EmbeddingRecord
		var embedding pgvector.Vector
		if err := rows.Scan(&r.ChunkID, &r.ChunkIndex, &r.SourceURL, &r.Text, &embedding); err != nil {
			return meta, nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
		r.Vector = embedding.Slice()
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

// Nearest runs the similarity search inside Postgres. Scores are cosine
// similarities; ties are broken by chunk id.
func (vs *PGVectorStore) Nearest(ctx context.Context, queryEmbedding []float32, limit int) ([]models.ScoredChunk, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be positive")
	}

	query := fmt.Sprintf(`
		SELECT source_url, content, chunk_index, 1 - (embedding <=> $1) AS score
		FROM %s
		ORDER BY embedding <=> $1, chunk_id
		LIMIT $2`,
		vs.config.TableName)

	rows, err := vs.pool.Query(ctx, query, pgvector.NewVector(queryEmbedding), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var results []models.ScoredChunk
	for rows.Next() {
		var sc models.ScoredChunk
		if err := rows.Scan(&sc.SourceURL, &sc.Text, &sc.Index, &sc.Score); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

func (vs *PGVectorStore) Close() error {
	if vs.pool != nil {
		vs.pool.Close()
	}
	return nil
}

// sanitizeUTF8 drops invalid bytes, which Postgres rejects in TEXT columns.
func sanitizeUTF8(s string) string {
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for i, r := range s {
			if r == utf8.RuneError {
				_, size := utf8.DecodeRuneInString(s[i:])
				if size == 1 {
					continue
				}
			}
			v = append(v, r)
		}
		return string(v)
	}
	return s
}
