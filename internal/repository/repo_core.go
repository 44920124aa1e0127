// Package repository is the sole pgx-backed persistence layer: Dao/Indexer
// reads, Proposal/Vote upserts, cursor advance, the SKIP LOCKED job queue,
// and the indexing-error log.
package repository

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"governance-indexer/internal/models"
)

// Repository wraps a process-wide pgx connection pool.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository opens the pool with connection-hygiene defaults: recycle
// connections periodically and kill orphaned statements/transactions so a
// bad deploy can't wedge the database.
func NewRepository(dbURL string) (*Repository, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse db url: %w", err)
	}

	if maxConnStr := os.Getenv("DB_MAX_OPEN_CONNS"); maxConnStr != "" {
		if maxConn, err := strconv.Atoi(maxConnStr); err == nil {
			config.MaxConns = int32(maxConn)
		}
	}
	if minConnStr := os.Getenv("DB_MAX_IDLE_CONNS"); minConnStr != "" {
		if minConn, err := strconv.Atoi(minConnStr); err == nil {
			config.MinConns = int32(minConn)
		}
	}

	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	if config.ConnConfig.RuntimeParams == nil {
		config.ConnConfig.RuntimeParams = map[string]string{}
	}
	if _, ok := config.ConnConfig.RuntimeParams["statement_timeout"]; !ok {
		config.ConnConfig.RuntimeParams["statement_timeout"] = getEnvDefault("DB_STATEMENT_TIMEOUT", "300000")
	}
	if _, ok := config.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"]; !ok {
		config.ConnConfig.RuntimeParams["idle_in_transaction_session_timeout"] = getEnvDefault("DB_IDLE_TX_TIMEOUT", "120000")
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &Repository{db: pool}, nil
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// Migrate executes the schema file at schemaPath in one statement batch.
func (r *Repository) Migrate(schemaPath string) error {
	content, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}
	_, err = r.db.Exec(context.Background(), string(content))
	if err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

func (r *Repository) Close() {
	r.db.Close()
}

// TerminateIdleConnections kills non-active backends from previous process
// instances that may hold locks and block migrations.
func (r *Repository) TerminateIdleConnections(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `
		SELECT count(*) FROM (
			SELECT pg_terminate_backend(pid)
			FROM pg_stat_activity
			WHERE datname = current_database()
			  AND pid <> pg_backend_pid()
			  AND state != 'active'
		) t
	`).Scan(&count)
	return count, err
}

func (r *Repository) GetDaoBySlug(ctx context.Context, slug string) (models.Dao, error) {
	var d models.Dao
	err := r.db.QueryRow(ctx, `SELECT id, slug, name FROM app.daos WHERE slug = $1`, slug).
		Scan(&d.ID, &d.Slug, &d.Name)
	return d, err
}

// ListDaos returns every DAO, used by cmd/indexer to schedule one grouper
// pass per DAO.
func (r *Repository) ListDaos(ctx context.Context) ([]models.Dao, error) {
	rows, err := r.db.Query(ctx, `SELECT id, slug, name FROM app.daos`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dao
	for rows.Next() {
		var d models.Dao
		if err := rows.Scan(&d.ID, &d.Slug, &d.Name); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListEnabledIndexers returns every Indexer with Enabled=true, used by the
// producer to enumerate what to schedule.
func (r *Repository) ListEnabledIndexers(ctx context.Context) ([]models.Indexer, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, dao_id, variant, kind, enabled, cursor, speed, updated_at
		FROM app.indexers
		WHERE enabled = true`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Indexer
	for rows.Next() {
		var ix models.Indexer
		if err := rows.Scan(&ix.ID, &ix.DaoID, &ix.Variant, &ix.Kind, &ix.Enabled, &ix.Cursor, &ix.Speed, &ix.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, ix)
	}
	return out, rows.Err()
}

// GetIndexer loads a single indexer by id, used by the worker at the start
// of run_once.
func (r *Repository) GetIndexer(ctx context.Context, id uuid.UUID) (models.Indexer, error) {
	var ix models.Indexer
	err := r.db.QueryRow(ctx, `
		SELECT id, dao_id, variant, kind, enabled, cursor, speed, updated_at
		FROM app.indexers WHERE id = $1`, id).
		Scan(&ix.ID, &ix.DaoID, &ix.Variant, &ix.Kind, &ix.Enabled, &ix.Cursor, &ix.Speed, &ix.UpdatedAt)
	return ix, err
}
