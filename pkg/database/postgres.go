// Package database wraps the lib/pq-backed Postgres connection used by
// the question Catalog adapter.
package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/emmanuelzz0/queezy/config"

	_ "github.com/lib/pq"
)

type PostgresClient struct {
	db     *sql.DB
	config *config.CatalogConfig
}

func NewPostgresClient(cfg *config.CatalogConfig) (*PostgresClient, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{
		db:     db,
		config: cfg,
	}, nil
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) GetDB() *sql.DB {
	return c.db
}

func (c *PostgresClient) InitSchema(ctx context.Context) error {
	createCatalogQuestions := `
		CREATE TABLE IF NOT EXISTS catalog_questions (
			id VARCHAR(255) PRIMARY KEY,
			category VARCHAR(255) NOT NULL,
			difficulty VARCHAR(50) NOT NULL DEFAULT 'medium',
			text TEXT NOT NULL,
			options JSONB NOT NULL,
			correct_answer VARCHAR(1) NOT NULL,
			time_limit INTEGER NOT NULL DEFAULT 20,
			image_url TEXT,
			times_asked INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_catalog_questions_category ON catalog_questions(category);
		CREATE INDEX IF NOT EXISTS idx_catalog_questions_times_asked ON catalog_questions(times_asked);
	`

	if _, err := c.db.ExecContext(ctx, createCatalogQuestions); err != nil {
		return fmt.Errorf("failed to create catalog_questions table: %w", err)
	}

	return nil
}
