package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arrstack/arrstack/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Document kinds stored in the documents table.
const (
	kindBaseConfig    = "base_config"
	kindSelection     = "selection"
	kindInstallStatus = "install_status"
)

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Document Operations
// =============================================================================

// documentRow represents a configuration document row in the database.
type documentRow struct {
	Kind      string `db:"kind"`
	Data      string `db:"data"`
	UpdatedAt string `db:"updated_at"`
}

func (s *SQLiteStore) GetBaseConfig(ctx context.Context) (domain.BaseConfig, error) {
	return getBaseConfig(ctx, s.db)
}

func (s *SQLiteStore) SaveBaseConfig(ctx context.Context, cfg domain.BaseConfig) error {
	return saveBaseConfig(ctx, s.db, cfg)
}

func (s *SQLiteStore) GetSelection(ctx context.Context) (domain.SelectionState, error) {
	return getSelection(ctx, s.db)
}

func (s *SQLiteStore) SaveSelection(ctx context.Context, sel domain.SelectionState) error {
	return saveSelection(ctx, s.db, sel)
}

func (s *SQLiteStore) GetInstallStatus(ctx context.Context) (domain.InstallStatus, error) {
	return getInstallStatus(ctx, s.db)
}

func (s *SQLiteStore) SaveInstallStatus(ctx context.Context, st domain.InstallStatus) error {
	return saveInstallStatus(ctx, s.db, st)
}

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) GetBaseConfig(ctx context.Context) (domain.BaseConfig, error) {
	return getBaseConfig(ctx, s.tx)
}

func (s *txSQLiteStore) SaveBaseConfig(ctx context.Context, cfg domain.BaseConfig) error {
	return saveBaseConfig(ctx, s.tx, cfg)
}

func (s *txSQLiteStore) GetSelection(ctx context.Context) (domain.SelectionState, error) {
	return getSelection(ctx, s.tx)
}

func (s *txSQLiteStore) SaveSelection(ctx context.Context, sel domain.SelectionState) error {
	return saveSelection(ctx, s.tx, sel)
}

func (s *txSQLiteStore) GetInstallStatus(ctx context.Context) (domain.InstallStatus, error) {
	return getInstallStatus(ctx, s.tx)
}

func (s *txSQLiteStore) SaveInstallStatus(ctx context.Context, st domain.InstallStatus) error {
	return saveInstallStatus(ctx, s.tx, st)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func getDocument(ctx context.Context, exec executor, op, kind string) (string, error) {
	var row documentRow
	query := `SELECT kind, data, updated_at FROM documents WHERE kind = ?`
	if err := exec.GetContext(ctx, &row, query, kind); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", NewStoreError(op, kind, "not found", ErrNotFound)
		}
		return "", NewStoreError(op, kind, err.Error(), err)
	}
	return row.Data, nil
}

func putDocument(ctx context.Context, exec executor, op, kind string, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return NewStoreError(op, kind, "failed to serialize document", ErrInvalidData)
	}

	query := `
		INSERT INTO documents (kind, data, updated_at)
		VALUES (:kind, :data, :updated_at)
		ON CONFLICT(kind) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at`

	row := documentRow{
		Kind:      kind,
		Data:      string(data),
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if _, err := exec.NamedExecContext(ctx, query, row); err != nil {
		return NewStoreError(op, kind, err.Error(), err)
	}
	return nil
}

func getBaseConfig(ctx context.Context, exec executor) (domain.BaseConfig, error) {
	data, err := getDocument(ctx, exec, "GetBaseConfig", kindBaseConfig)
	if err != nil {
		return domain.BaseConfig{}, err
	}
	var cfg domain.BaseConfig
	if err := json.Unmarshal([]byte(data), &cfg); err != nil {
		return domain.BaseConfig{}, NewStoreError("GetBaseConfig", kindBaseConfig, "failed to deserialize document", ErrInvalidData)
	}
	return cfg, nil
}

func saveBaseConfig(ctx context.Context, exec executor, cfg domain.BaseConfig) error {
	return putDocument(ctx, exec, "SaveBaseConfig", kindBaseConfig, cfg)
}

func getSelection(ctx context.Context, exec executor) (domain.SelectionState, error) {
	data, err := getDocument(ctx, exec, "GetSelection", kindSelection)
	if err != nil {
		return domain.SelectionState{}, err
	}
	var sel domain.SelectionState
	if err := json.Unmarshal([]byte(data), &sel); err != nil {
		return domain.SelectionState{}, NewStoreError("GetSelection", kindSelection, "failed to deserialize document", ErrInvalidData)
	}
	return sel, nil
}

func saveSelection(ctx context.Context, exec executor, sel domain.SelectionState) error {
	return putDocument(ctx, exec, "SaveSelection", kindSelection, sel)
}

func getInstallStatus(ctx context.Context, exec executor) (domain.InstallStatus, error) {
	data, err := getDocument(ctx, exec, "GetInstallStatus", kindInstallStatus)
	if err != nil {
		return domain.InstallStatus{}, err
	}
	var st domain.InstallStatus
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return domain.InstallStatus{}, NewStoreError("GetInstallStatus", kindInstallStatus, "failed to deserialize document", ErrInvalidData)
	}
	return st, nil
}

func saveInstallStatus(ctx context.Context, exec executor, st domain.InstallStatus) error {
	return putDocument(ctx, exec, "SaveInstallStatus", kindInstallStatus, st)
}
