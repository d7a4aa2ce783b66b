package schemarag

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestBuilder(t *testing.T) *IndexBuilder {
	t.Helper()
	dir := t.TempDir()
	return NewIndexBuilder(
		filepath.Join(dir, "schema_graph.json"),
		filepath.Join(dir, "schema_graph_meta.json"),
		zap.NewNop(),
	)
}

func TestInitializeBuildsAndPersists(t *testing.T) {
	builder := newTestBuilder(t)
	triples := BuildTriples(sampleSnapshots())

	idx, err := builder.Initialize(triples, true)
	require.NoError(t, err)

	assert.True(t, idx.HasEdge("orders", "status"))
	assert.True(t, idx.HasEdge("default", "orders"))
	assert.Equal(t, len(triples), idx.NumEdges())

	_, err = os.Stat(builder.GraphPath)
	assert.NoError(t, err, "graph file must be persisted")
	meta := LoadGraphMeta(builder.MetaPath)
	require.NotNil(t, meta)
	assert.Equal(t, len(triples), meta.TripleCount)
}

func TestInitializeCacheHitSkipsTripleReplay(t *testing.T) {
	builder := newTestBuilder(t)
	triples := BuildTriples(sampleSnapshots())

	_, err := builder.Initialize(triples, true)
	require.NoError(t, err)

	// A fresh cache hit must return the persisted graph even when the
	// passed-in triples differ.
	idx, err := builder.Initialize(TripleSet{}, false)
	require.NoError(t, err)
	assert.Equal(t, len(triples), idx.NumEdges())
	assert.True(t, idx.HasEdge("orders", "status"))
}

func TestInitializeStaleRebuildsDespiteCache(t *testing.T) {
	builder := newTestBuilder(t)
	first := BuildTriples(sampleSnapshots())
	_, err := builder.Initialize(first, true)
	require.NoError(t, err)

	smaller := TripleSet{
		{Subject: "orders", Predicate: PredicateHasColumn, Object: "id"}: {},
	}
	idx, err := builder.Initialize(smaller, true)
	require.NoError(t, err)
	assert.Equal(t, 1, idx.NumEdges())
}

func TestInitializeDeterministic(t *testing.T) {
	triples := BuildTriples(sampleSnapshots())

	first, err := newTestBuilder(t).Initialize(triples, true)
	require.NoError(t, err)
	second, err := newTestBuilder(t).Initialize(triples, true)
	require.NoError(t, err)

	assert.Equal(t, first.Nodes(), second.Nodes())
	assert.Equal(t, first.edges, second.edges)
}

func TestInitializeCorruptCacheRebuilds(t *testing.T) {
	builder := newTestBuilder(t)
	require.NoError(t, os.WriteFile(builder.GraphPath, []byte("{not json"), 0o644))

	triples := BuildTriples(sampleSnapshots())
	idx, err := builder.Initialize(triples, false)
	require.NoError(t, err)
	assert.Equal(t, len(triples), idx.NumEdges())
}

func TestReachable(t *testing.T) {
	builder := newTestBuilder(t)
	idx, err := builder.Initialize(BuildTriples(sampleSnapshots()), true)
	require.NoError(t, err)

	reachable := idx.Reachable("orders")
	assert.Contains(t, reachable, "orders")
	assert.Contains(t, reachable, "id")
	assert.Contains(t, reachable, "status")
	assert.Contains(t, reachable, "integer")
	assert.NotContains(t, reachable, "users")
}

func TestReachableUnknownNode(t *testing.T) {
	builder := newTestBuilder(t)
	idx, err := builder.Initialize(BuildTriples(sampleSnapshots()), true)
	require.NoError(t, err)

	assert.Nil(t, idx.Reachable("missing"))
}
