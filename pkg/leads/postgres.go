package leads

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/xhad/de5chat/internal/models"
)

// PostgresStore keeps leads in a Postgres table. Ids come from a BIGSERIAL
// sequence, so concurrent writers need no extra locking.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS leads (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			inquiry_type TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create leads table: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Add(ctx context.Context, sub Submission) (int64, error) {
	sub, err := sub.Normalize()
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.pool.QueryRow(ctx,
		`INSERT INTO leads (name, email, inquiry_type) VALUES ($1, $2, $3) RETURNING id`,
		sub.Name, sub.Email, sub.InquiryType).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert lead: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Lead, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, email, inquiry_type, created_at FROM leads ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		var lead models.Lead
		if err := rows.Scan(&lead.ID, &lead.Name, &lead.Email, &lead.InquiryType, &lead.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		lead.CreatedAt = lead.CreatedAt.UTC()
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
