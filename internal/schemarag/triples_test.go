package schemarag

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schema"
)

func sampleSnapshots() []schema.Snapshot {
	return []schema.Snapshot{{
		ProfileName: "default",
		OutputName:  "dev",
		DBType:      "postgres",
		Timestamp:   1700000000,
		SchemaInfo: []schema.TableInfo{
			{
				TableName:  "orders",
				SchemaName: "public",
				Columns: []schema.ColumnInfo{
					{ColumnName: "id", DataType: "integer"},
					{ColumnName: "status", DataType: "text"},
				},
			},
			{
				TableName:  "users",
				SchemaName: "public",
				Columns: []schema.ColumnInfo{
					{ColumnName: "id", DataType: "integer"},
					{ColumnName: "name", DataType: "text"},
				},
			},
		},
	}}
}

func TestBuildTriplesEmitsExpectedFacts(t *testing.T) {
	triples := BuildTriples(sampleSnapshots())

	expected := []Triple{
		{Subject: "default", Predicate: PredicateHasTable, Object: "orders"},
		{Subject: "default", Predicate: PredicateHasTable, Object: "users"},
		{Subject: "public", Predicate: PredicateHasSchema, Object: "orders"},
		{Subject: "orders", Predicate: PredicateHasColumn, Object: "status"},
		{Subject: "orders", Predicate: PredicateHasColumn, Object: "id"},
		{Subject: "users", Predicate: PredicateHasColumn, Object: "name"},
		{Subject: "status", Predicate: PredicateHasDataType, Object: "text"},
		{Subject: "id", Predicate: PredicateHasDataType, Object: "integer"},
	}
	for _, want := range expected {
		_, ok := triples[want]
		assert.True(t, ok, "missing triple %+v", want)
	}
}

func TestBuildTriplesIdempotent(t *testing.T) {
	first := BuildTriples(sampleSnapshots())
	second := BuildTriples(sampleSnapshots())
	assert.Equal(t, first, second)
}

func TestBuildTriplesSkipsMissingFields(t *testing.T) {
	snapshots := []schema.Snapshot{{
		SchemaInfo: []schema.TableInfo{{
			TableName: "orders",
			Columns:   []schema.ColumnInfo{{ColumnName: "id"}},
		}},
	}}

	triples := BuildTriples(snapshots)
	require.Len(t, triples, 1)
	_, ok := triples[Triple{Subject: "orders", Predicate: PredicateHasColumn, Object: "id"}]
	assert.True(t, ok)
}

func TestIsGraphStale(t *testing.T) {
	tests := []struct {
		name     string
		meta     *GraphMeta
		snapshot float64
		stale    bool
	}{
		{"missing meta", nil, 100, true},
		{"graph older than snapshot", &GraphMeta{BuiltAt: 50}, 100, true},
		{"graph newer than snapshot", &GraphMeta{BuiltAt: 200}, 100, false},
		{"equal timestamps", &GraphMeta{BuiltAt: 100}, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.stale, IsGraphStale(tt.meta, tt.snapshot))
		})
	}
}

func TestLoadGraphMetaMissingFile(t *testing.T) {
	assert.Nil(t, LoadGraphMeta(filepath.Join(t.TempDir(), "nope.json")))
}
