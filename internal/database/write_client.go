package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

const writeTimeout = 30 * time.Second

// WriteClient provides write access to the database
type WriteClient struct {
	db *sqlx.DB
}

// NewWriteClient opens a write-enabled database client
func NewWriteClient(databaseURL string) (*WriteClient, error) {
	db, err := New(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database with write access: %w", err)
	}
	return &WriteClient{db: db}, nil
}

// NewWriteClientFromDB wraps an existing connection pool
func NewWriteClientFromDB(db *sqlx.DB) *WriteClient {
	return &WriteClient{db: db}
}

// GetDB returns the underlying database connection
func (wc *WriteClient) GetDB() *sqlx.DB {
	return wc.db
}

// ExecuteWriteQuery executes a write query and returns the result
func (wc *WriteClient) ExecuteWriteQuery(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wc.db.ExecContext(ctx, query, args...)
}

// ExecuteWriteQueryWithResult executes a query and scans all rows into dest
func (wc *WriteClient) ExecuteWriteQueryWithResult(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wc.db.SelectContext(ctx, dest, query, args...)
}

// ExecuteWriteQuerySingle executes a query and scans a single row into dest
func (wc *WriteClient) ExecuteWriteQuerySingle(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wc.db.GetContext(ctx, dest, query, args...)
}

// WithTx runs fn inside a transaction, committing when fn returns nil
func (wc *WriteClient) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	tx, err := wc.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (wc *WriteClient) Close() error {
	return wc.db.Close()
}
