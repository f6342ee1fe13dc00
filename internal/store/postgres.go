package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"

	"pdf-assistant/internal/history"
)

// migrationLockID keys the advisory lock held while creating tables.
const migrationLockID = 482913

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	// The server and the recorder may start together; only one creates tables.
	var acquired bool
	if err := s.db.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, migrationLockID).Scan(&acquired); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	if !acquired {
		time.Sleep(2 * time.Second)
		return nil
	}
	defer func() {
		_, _ = s.db.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, migrationLockID)
	}()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS interactions (
			id UUID PRIMARY KEY,
			mode TEXT NOT NULL,
			filename TEXT NOT NULL DEFAULT '',
			question TEXT NOT NULL DEFAULT '',
			text TEXT NOT NULL,
			language TEXT NOT NULL DEFAULT '',
			citations TEXT[] NOT NULL DEFAULT '{}',
			model TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS interactions_created_at_idx ON interactions (created_at DESC);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// SaveInteraction inserts it; re-delivered records with a known id are ignored.
func (s *PostgresStore) SaveInteraction(ctx context.Context, it history.Interaction) error {
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	if it.CreatedAt.IsZero() {
		it.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions(id, mode, filename, question, text, language, citations, model, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING`,
		it.ID, it.Mode, it.Filename, it.Question, it.Text, it.Language, pq.Array(nonNil(it.Citations)), it.Model, it.CreatedAt)
	if err != nil {
		return fmt.Errorf("save interaction %s: %w", it.ID, err)
	}
	return nil
}

func (s *PostgresStore) GetInteraction(ctx context.Context, id uuid.UUID) (history.Interaction, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, mode, filename, question, text, language, citations, model, created_at
		FROM interactions WHERE id=$1`, id)
	it, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return history.Interaction{}, ErrNotFound
	}
	if err != nil {
		return history.Interaction{}, fmt.Errorf("failed to get interaction %s: %w", id, err)
	}
	return it, nil
}

// ListInteractions returns the newest interactions first.
func (s *PostgresStore) ListInteractions(ctx context.Context, limit int) ([]history.Interaction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, filename, question, text, language, citations, model, created_at
		FROM interactions
		ORDER BY created_at DESC
		LIMIT $1`, ClampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []history.Interaction{}
	for rows.Next() {
		it, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanInteraction(sc scanner) (history.Interaction, error) {
	var it history.Interaction
	var citations []string
	if err := sc.Scan(&it.ID, &it.Mode, &it.Filename, &it.Question, &it.Text, &it.Language, pq.Array(&citations), &it.Model, &it.CreatedAt); err != nil {
		return history.Interaction{}, err
	}
	if len(citations) > 0 {
		it.Citations = citations
	}
	return it, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
