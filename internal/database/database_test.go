package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
)

// mockDialectHandler is a function-field DialectHandler fake.
type mockDialectHandler struct {
	createCloudSQLPoolFn func(cfg config.DatabaseConfig) (*sql.DB, error)
	createStandardPoolFn func(cfg config.DatabaseConfig) (*sql.DB, error)
	listTablesFn         func(db *DB, schemaName string) ([]string, error)
	listColumnsFn        func(db *DB, schemaName, tableName string) ([]Column, error)
}

func (m *mockDialectHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if m.createCloudSQLPoolFn != nil {
		return m.createCloudSQLPoolFn(cfg)
	}
	mockDb, _, _ := sqlmock.New()
	return mockDb, nil
}

func (m *mockDialectHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	if m.createStandardPoolFn != nil {
		return m.createStandardPoolFn(cfg)
	}
	mockDb, _, _ := sqlmock.New()
	return mockDb, nil
}

func (m *mockDialectHandler) QuoteIdentifier(name string) string {
	return fmt.Sprintf(`"%s"`, name)
}

func (m *mockDialectHandler) SampleQuery(tableName string, limit int) string {
	return fmt.Sprintf(`SELECT * FROM %s LIMIT %d`, m.QuoteIdentifier(tableName), limit)
}

func (m *mockDialectHandler) ListTables(db *DB, schemaName string) ([]string, error) {
	if m.listTablesFn != nil {
		return m.listTablesFn(db, schemaName)
	}
	return []string{"orders"}, nil
}

func (m *mockDialectHandler) ListColumns(db *DB, schemaName, tableName string) ([]Column, error) {
	if m.listColumnsFn != nil {
		return m.listColumnsFn(db, schemaName, tableName)
	}
	return []Column{{Name: "id", DataType: "integer"}}, nil
}

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })
	return &DB{
		Pool:    pool,
		Handler: &mockDialectHandler{},
		Config:  config.DatabaseConfig{Dialect: "postgres", SchemaName: "public"},
		logger:  zap.NewNop(),
	}, mock
}

func TestRunTransformationTestModeRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT id FROM orders").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectRollback()

	affected, err := db.RunTransformation(context.Background(), "SELECT id FROM orders", true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTransformationTestModeSurfacesError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("SELECT broken").WillReturnError(errors.New(`column "broken" does not exist`))
	mock.ExpectRollback()

	_, err := db.RunTransformation(context.Background(), "SELECT broken", true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestRunTransformationLiveMode(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE orders SET status").WillReturnResult(sqlmock.NewResult(0, 5))

	affected, err := db.RunTransformation(context.Background(), "UPDATE orders SET status = 'paid'", false)
	require.NoError(t, err)
	assert.Equal(t, int64(5), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunTransformationEmptySQL(t *testing.T) {
	db, _ := newMockDB(t)

	_, err := db.RunTransformation(context.Background(), "   ", true)
	require.Error(t, err)
}

func TestFetchSchema(t *testing.T) {
	db, _ := newMockDB(t)
	db.Handler = &mockDialectHandler{
		listTablesFn: func(db *DB, schemaName string) ([]string, error) {
			assert.Equal(t, "public", schemaName)
			return []string{"orders", "users"}, nil
		},
		listColumnsFn: func(db *DB, schemaName, tableName string) ([]Column, error) {
			return []Column{{Name: "id", DataType: "integer"}}, nil
		},
	}

	tables, err := db.FetchSchema(context.Background(), "public")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "orders", tables[0].TableName)
	assert.Equal(t, "public", tables[0].SchemaName)
	require.Len(t, tables[0].Columns, 1)
	assert.Equal(t, "id", tables[0].Columns[0].Name)
}

func TestFetchSchemaListTablesFailure(t *testing.T) {
	db, _ := newMockDB(t)
	db.Handler = &mockDialectHandler{
		listTablesFn: func(db *DB, schemaName string) ([]string, error) {
			return nil, errors.New("permission denied")
		},
	}

	_, err := db.FetchSchema(context.Background(), "public")
	require.Error(t, err)
}

func TestSampleTable(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id", "status"}).
		AddRow(1, []byte("new")).
		AddRow(2, []byte("paid"))
	mock.ExpectQuery(`SELECT \* FROM "orders" LIMIT 10`).WillReturnRows(rows)

	result, err := db.SampleTable(context.Background(), "orders", 10)
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, "new", result[0]["status"], "byte slices are stringified")
	assert.Equal(t, "paid", result[1]["status"])
}

func TestPreviewSQLAppliesLimit(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2).AddRow(3)
	mock.ExpectQuery("SELECT id FROM orders").WillReturnRows(rows)

	result, err := db.PreviewSQL(context.Background(), "SELECT id FROM orders", 2)
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestGetDialectHandlerUnknown(t *testing.T) {
	_, err := GetDialectHandler("oracle")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported database dialect")
}

func TestRegisterDialectHandler(t *testing.T) {
	handler := &mockDialectHandler{}
	RegisterDialectHandler("testdialect", handler)

	got, err := GetDialectHandler("testdialect")
	require.NoError(t, err)
	assert.Equal(t, handler, got)
}
