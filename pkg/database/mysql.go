package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"quiz-trainer/config"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLClient keeps the same key/value records as PostgresClient in a MySQL table.
type MySQLClient struct {
	db *sql.DB
}

func NewMySQLClient(cfg *config.MySQLConfig) (*MySQLClient, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?parseTime=true&charset=utf8mb4",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.DBName)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)

	return &MySQLClient{db: db}, nil
}

func WrapMySQL(db *sql.DB) *MySQLClient {
	return &MySQLClient{db: db}
}

func (c *MySQLClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *MySQLClient) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *MySQLClient) InitSchema(ctx context.Context) error {
	createStateTable := `
		CREATE TABLE IF NOT EXISTS quiz_state (
			state_key VARCHAR(255) PRIMARY KEY,
			value LONGTEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		) CHARACTER SET utf8mb4
	`

	if _, err := c.db.ExecContext(ctx, createStateTable); err != nil {
		return fmt.Errorf("failed to create quiz_state table: %w", err)
	}

	return nil
}

func (c *MySQLClient) Get(ctx context.Context, key string) (string, bool, error) {
	query := `SELECT value FROM quiz_state WHERE state_key = ?`

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

func (c *MySQLClient) Set(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO quiz_state (state_key, value)
		VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)
	`
	_, err := c.db.ExecContext(ctx, query, key, value)
	return err
}

func (c *MySQLClient) Remove(ctx context.Context, key string) error {
	query := `DELETE FROM quiz_state WHERE state_key = ?`
	_, err := c.db.ExecContext(ctx, query, key)
	return err
}
