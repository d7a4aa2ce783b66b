package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
)

// Connector defines the interface for database operations needed by the
// schema extractor and the SQL generation pipeline.
type Connector interface {
	FetchSchema(ctx context.Context, schemaName string) ([]TableSchema, error)
	SampleTable(ctx context.Context, tableName string, limit int) ([]map[string]any, error)
	RunTransformation(ctx context.Context, sqlCode string, testMode bool) (int64, error)
	PreviewSQL(ctx context.Context, sqlCode string, limit int) ([]map[string]any, error)
	Ping(ctx context.Context) error
	Close() error
	GetConfig() config.DatabaseConfig
}

var _ Connector = (*DB)(nil)

// DB holds the database connection pool and dialect handler.
type DB struct {
	Pool    *sql.DB
	Handler DialectHandler
	Config  config.DatabaseConfig
	logger  *zap.Logger
}

// Column holds basic information about a database column.
type Column struct {
	Name     string
	DataType string
}

// TableSchema holds the column layout of a single table as read from the
// database. Column order follows ordinal position.
type TableSchema struct {
	TableName  string
	SchemaName string
	Columns    []Column
}

// DialectHandler abstracts per-engine SQL differences.
type DialectHandler interface {
	CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error)
	CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error)
	QuoteIdentifier(name string) string
	SampleQuery(tableName string, limit int) string
	ListTables(db *DB, schemaName string) ([]string, error)
	ListColumns(db *DB, schemaName, tableName string) ([]Column, error)
}

var (
	dialectHandlers = make(map[string]DialectHandler)
	mu              sync.RWMutex
)

// RegisterDialectHandler registers a handler for a dialect name. Handlers
// register themselves from their package init; cmd blank-imports them.
func RegisterDialectHandler(dialect string, handler DialectHandler) {
	mu.Lock()
	defer mu.Unlock()
	dialectHandlers[dialect] = handler
}

func GetDialectHandler(dialect string) (DialectHandler, error) {
	mu.RLock()
	defer mu.RUnlock()
	handler, ok := dialectHandlers[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported database dialect: %s", dialect)
	}
	return handler, nil
}

// New creates a connection pool for the configured dialect and verifies it
// with a ping.
func New(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	handler, err := GetDialectHandler(cfg.Dialect)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var pool *sql.DB
	if strings.HasPrefix(cfg.Dialect, "cloudsql") {
		pool, err = handler.CreateCloudSQLPool(cfg)
	} else {
		pool, err = handler.CreateStandardPool(cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool for dialect %s: %w", cfg.Dialect, err)
	}

	if err := pool.PingContext(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database (ping failed) for dialect %s: %w", cfg.Dialect, err)
	}

	return &DB{
		Pool:    pool,
		Handler: handler,
		Config:  cfg,
		logger:  logger,
	}, nil
}

func (db *DB) GetConfig() config.DatabaseConfig {
	return db.Config
}

func (db *DB) Ping(ctx context.Context) error {
	if db.Pool == nil {
		return fmt.Errorf("database connection pool is not initialized")
	}
	return db.Pool.PingContext(ctx)
}

func (db *DB) Close() error {
	if db.Pool != nil {
		return db.Pool.Close()
	}
	return nil
}

func (db *DB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.Pool.Query(query, args...)
}

func (db *DB) QueryRow(query string, args ...any) *sql.Row {
	return db.Pool.QueryRow(query, args...)
}

// FetchSchema lists every table in schemaName with its columns in ordinal
// order.
func (db *DB) FetchSchema(ctx context.Context, schemaName string) ([]TableSchema, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	tables, err := db.Handler.ListTables(db, schemaName)
	if err != nil {
		return nil, fmt.Errorf("list tables in schema %s: %w", schemaName, err)
	}

	schemas := make([]TableSchema, 0, len(tables))
	for _, table := range tables {
		columns, err := db.Handler.ListColumns(db, schemaName, table)
		if err != nil {
			return nil, fmt.Errorf("list columns for table %s: %w", table, err)
		}
		schemas = append(schemas, TableSchema{
			TableName:  table,
			SchemaName: schemaName,
			Columns:    columns,
		})
	}
	return schemas, nil
}

// SampleTable reads up to limit rows from tableName, returning them as
// column-name keyed maps. Values are stringified where the driver returns
// byte slices.
func (db *DB) SampleTable(ctx context.Context, tableName string, limit int) ([]map[string]any, error) {
	if db.Handler == nil {
		return nil, fmt.Errorf("dialect handler not initialized")
	}
	rows, err := db.Pool.QueryContext(ctx, db.Handler.SampleQuery(tableName, limit))
	if err != nil {
		return nil, fmt.Errorf("sample table %s: %w", tableName, err)
	}
	defer rows.Close()
	return scanRows(rows)
}

// RunTransformation executes a SQL statement. In test mode the statement runs
// inside a transaction that is always rolled back, so candidate SQL can be
// validated without committing side effects.
func (db *DB) RunTransformation(ctx context.Context, sqlCode string, testMode bool) (int64, error) {
	if db.Pool == nil {
		return 0, fmt.Errorf("database connection pool is not initialized")
	}
	trimmed := strings.TrimSpace(sqlCode)
	if trimmed == "" {
		return 0, fmt.Errorf("empty SQL statement")
	}

	if testMode {
		tx, err := db.Pool.BeginTx(ctx, nil)
		if err != nil {
			return 0, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback()

		res, err := tx.ExecContext(ctx, trimmed)
		if err != nil {
			return 0, fmt.Errorf("test execution failed: %w", err)
		}
		affected, _ := res.RowsAffected()
		return affected, nil
	}

	res, err := db.Pool.ExecContext(ctx, trimmed)
	if err != nil {
		return 0, fmt.Errorf("execution failed: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected, nil
}

// PreviewSQL runs a read-only statement and returns up to limit rows.
func (db *DB) PreviewSQL(ctx context.Context, sqlCode string, limit int) ([]map[string]any, error) {
	if db.Pool == nil {
		return nil, fmt.Errorf("database connection pool is not initialized")
	}
	rows, err := db.Pool.QueryContext(ctx, strings.TrimSpace(sqlCode))
	if err != nil {
		return nil, fmt.Errorf("preview failed: %w", err)
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func scanRows(rows *sql.Rows) ([]map[string]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("error reading result columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("error scanning row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return result, nil
}
