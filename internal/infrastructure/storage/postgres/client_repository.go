package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/exp/slog"

	"healthsync/internal/domain/ingest"
)

func NewClientRepository(pool *pgxpool.Pool, log *slog.Logger) *ClientRepository {
	return &ClientRepository{
		pool: pool,
		log:  log,
	}
}

type ClientRepository struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func (r *ClientRepository) CreateClient(ctx context.Context, c ingest.Client) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO clients (id, name, secret_hash, created_at) VALUES ($1::uuid, $2, $3, $4)`,
		c.ID, c.Name, c.SecretHash, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert client: %w", err)
	}
	return nil
}

func (r *ClientRepository) FindClient(ctx context.Context, id string) (ingest.Client, error) {
	var c ingest.Client
	err := r.pool.QueryRow(ctx,
		`SELECT id::text, name, secret_hash, created_at FROM clients WHERE id = $1::uuid`, id).
		Scan(&c.ID, &c.Name, &c.SecretHash, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ingest.ErrClientNotFound
	}
	if err != nil {
		return c, fmt.Errorf("select client: %w", err)
	}

	return c, nil
}
