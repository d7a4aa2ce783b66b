package schemarag

import (
	"encoding/json"
	"os"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schema"
)

// Predicates form a closed set; triples are derived from snapshots, never
// hand-edited.
const (
	PredicateHasTable    = "has_table"
	PredicateHasColumn   = "has_column"
	PredicateHasDataType = "has_data_type"
	PredicateHasSchema   = "has_schema"
)

// Triple is a (subject, predicate, object) fact derived from a schema
// snapshot.
type Triple struct {
	Subject   string `json:"subject"`
	Predicate string `json:"predicate"`
	Object    string `json:"object"`
}

// TripleSet is an unordered set of triples. Building it twice from the same
// snapshots yields the same set.
type TripleSet map[Triple]struct{}

// BuildTriples converts snapshots into the normalized triple set. For every
// table it emits profile has_table, schema has_schema, table has_column and
// column has_data_type facts. Missing optional fields are skipped.
func BuildTriples(snapshots []schema.Snapshot) TripleSet {
	triples := make(TripleSet)
	add := func(subject, predicate, object string) {
		if subject == "" || object == "" {
			return
		}
		triples[Triple{Subject: subject, Predicate: predicate, Object: object}] = struct{}{}
	}

	for _, snap := range snapshots {
		for _, table := range snap.SchemaInfo {
			add(snap.ProfileName, PredicateHasTable, table.TableName)
			add(table.SchemaName, PredicateHasSchema, table.TableName)
			for _, col := range table.Columns {
				add(table.TableName, PredicateHasColumn, col.ColumnName)
				add(col.ColumnName, PredicateHasDataType, col.DataType)
			}
		}
	}
	return triples
}

// GraphMeta is persisted next to the serialized graph so a later load can
// decide whether the graph needs a rebuild.
type GraphMeta struct {
	TripleCount int     `json:"triple_count"`
	BuiltAt     float64 `json:"built_at"`
}

// IsGraphStale reports whether a persisted graph built at meta.BuiltAt is
// stale relative to a snapshot taken at snapshotTimestamp. A missing meta
// record (nil) is always stale. The predicate is independent of how the meta
// record is stored.
func IsGraphStale(meta *GraphMeta, snapshotTimestamp float64) bool {
	if meta == nil {
		return true
	}
	return meta.BuiltAt < snapshotTimestamp
}

// LoadGraphMeta reads a persisted meta record. Missing or unreadable files
// return nil, which IsGraphStale treats as stale.
func LoadGraphMeta(path string) *GraphMeta {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var meta GraphMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return &meta
}
