package schema

import (
	"encoding/json"
	"fmt"
)

// ColumnInfo describes one column of a table. Categorical and Values are set
// only when a sampling pass observed 10 or fewer distinct values.
type ColumnInfo struct {
	ColumnName  string   `json:"column_name"`
	DataType    string   `json:"data_type"`
	Description string   `json:"description,omitempty"`
	Categorical bool     `json:"categorical,omitempty"`
	Values      []string `json:"values,omitempty"`
}

// TableInfo describes one table. Column order follows the database's ordinal
// column order.
type TableInfo struct {
	TableName  string       `json:"table_name"`
	SchemaName string       `json:"schema_name"`
	Columns    []ColumnInfo `json:"columns"`
}

// Snapshot is a point-in-time capture of a database schema for one
// profile/output pair. A refresh produces a new Snapshot; snapshots are never
// mutated in place.
type Snapshot struct {
	ProfileName string      `json:"profile_name"`
	OutputName  string      `json:"output_name"`
	DBType      string      `json:"db_type"`
	Timestamp   float64     `json:"timestamp"`
	SchemaInfo  []TableInfo `json:"schema_info"`
}

// SnapshotFromMap converts a loosely-typed payload with the snapshot field
// names into a typed Snapshot. Callers receiving untyped schema data (tool
// inputs, legacy caches) convert once at the boundary instead of probing
// attributes downstream.
func SnapshotFromMap(raw map[string]any) (Snapshot, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode raw snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode raw snapshot: %w", err)
	}
	return snap, nil
}
