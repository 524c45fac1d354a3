package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quiz-trainer/config"

	_ "github.com/lib/pq"
)

// PostgresClient stores state records in a single key/value table.
type PostgresClient struct {
	db *sql.DB
}

func NewPostgresClient(cfg *config.DBConfig) (*PostgresClient, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

func WrapDB(db *sql.DB) *PostgresClient {
	return &PostgresClient{db: db}
}

func (c *PostgresClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *PostgresClient) InitSchema(ctx context.Context) error {
	createStateTable := `
		CREATE TABLE IF NOT EXISTS quiz_state (
			key VARCHAR(255) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	if _, err := c.db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("failed to create quiz_state table: %w", err)
	}

	return nil
}

func (c *PostgresClient) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM quiz_state WHERE key = $1`

	var value string
	err := c.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (c *PostgresClient) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO quiz_state (key, value, updated_at)
		VALUES ($1, $2, CURRENT_TIMESTAMP)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = CURRENT_TIMESTAMP
	`
	_, err := c.db.ExecContext(ctx, query, key, value)
	return err
}

func (c *PostgresClient) Remove(ctx context.Context, key string) error {
	query := `DELETE FROM quiz_state WHERE key = $1`
	_, err := c.db.ExecContext(ctx, query, key)
	return err
}
