package schemarag

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/yourbasic/graph"
	"go.uber.org/zap"
)

// Edge is one labeled edge of the schema graph, subject → object with the
// triple predicate as label.
type Edge struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label"`
}

// persistedGraph is the on-disk graph format: deterministic node and edge
// lists, rebuilt into an adjacency structure on load.
type persistedGraph struct {
	Nodes []string `json:"nodes"`
	Edges []Edge   `json:"edges"`
}

// Index is a directed graph over schema triples with name-indexed nodes.
// Traversal runs on a dense integer graph; the node name maps translate in
// both directions.
type Index struct {
	g         *graph.Mutable
	nodes     []string
	nodeIndex map[string]int
	edges     []Edge
	outgoing  map[string][]Edge
	incoming  map[string][]Edge
}

// IndexBuilder builds or loads a persisted schema graph index.
type IndexBuilder struct {
	GraphPath string
	MetaPath  string
	logger    *zap.Logger
	now       func() time.Time
}

// NewIndexBuilder creates a builder persisting to graphPath with a sibling
// meta record at metaPath.
func NewIndexBuilder(graphPath, metaPath string, logger *zap.Logger) *IndexBuilder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IndexBuilder{
		GraphPath: graphPath,
		MetaPath:  metaPath,
		logger:    logger,
		now:       time.Now,
	}
}

// Initialize returns the schema graph for the given triples. When the
// persisted graph is present and not stale it is deserialized directly with
// no triple replay; otherwise a fresh graph is built from the triples,
// persisted atomically and returned. Two builds from the same triple set
// yield identical node and edge membership.
func (b *IndexBuilder) Initialize(triples TripleSet, stale bool) (*Index, error) {
	if !stale {
		if idx, err := b.loadPersisted(); err == nil {
			return idx, nil
		} else if !os.IsNotExist(err) {
			b.logger.Warn("persisted schema graph unreadable, rebuilding", zap.Error(err))
		}
	}

	idx := buildIndex(triples)
	if err := b.persist(idx, len(triples)); err != nil {
		return nil, err
	}
	b.logger.Info("schema graph rebuilt",
		zap.Int("nodes", len(idx.nodes)), zap.Int("edges", len(idx.edges)))
	return idx, nil
}

func (b *IndexBuilder) loadPersisted() (*Index, error) {
	data, err := os.ReadFile(b.GraphPath)
	if err != nil {
		return nil, err
	}
	var stored persistedGraph
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode persisted graph: %w", err)
	}
	return indexFromParts(stored.Nodes, stored.Edges), nil
}

func (b *IndexBuilder) persist(idx *Index, tripleCount int) error {
	stored := persistedGraph{Nodes: idx.nodes, Edges: idx.edges}
	if err := writeJSONAtomic(b.GraphPath, stored); err != nil {
		return fmt.Errorf("persist schema graph: %w", err)
	}
	meta := GraphMeta{TripleCount: tripleCount, BuiltAt: float64(b.now().Unix())}
	if err := writeJSONAtomic(b.MetaPath, meta); err != nil {
		return fmt.Errorf("persist schema graph meta: %w", err)
	}
	return nil
}

// buildIndex constructs the graph from a triple set. Nodes and edges are
// sorted so that repeated builds from the same set are identical.
func buildIndex(triples TripleSet) *Index {
	nodeSet := make(map[string]struct{})
	edges := make([]Edge, 0, len(triples))
	for t := range triples {
		nodeSet[t.Subject] = struct{}{}
		nodeSet[t.Object] = struct{}{}
		edges = append(edges, Edge{From: t.Subject, To: t.Object, Label: t.Predicate})
	}

	nodes := make([]string, 0, len(nodeSet))
	for n := range nodeSet {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		if edges[i].To != edges[j].To {
			return edges[i].To < edges[j].To
		}
		return edges[i].Label < edges[j].Label
	})

	return indexFromParts(nodes, edges)
}

func indexFromParts(nodes []string, edges []Edge) *Index {
	idx := &Index{
		g:         graph.New(len(nodes)),
		nodes:     nodes,
		nodeIndex: make(map[string]int, len(nodes)),
		edges:     edges,
		outgoing:  make(map[string][]Edge),
		incoming:  make(map[string][]Edge),
	}
	for i, n := range nodes {
		idx.nodeIndex[n] = i
	}
	for _, e := range edges {
		from, okFrom := idx.nodeIndex[e.From]
		to, okTo := idx.nodeIndex[e.To]
		if !okFrom || !okTo {
			continue
		}
		idx.g.Add(from, to)
		idx.outgoing[e.From] = append(idx.outgoing[e.From], e)
		idx.incoming[e.To] = append(idx.incoming[e.To], e)
	}
	return idx
}

// Nodes returns all node names in deterministic order.
func (idx *Index) Nodes() []string {
	return idx.nodes
}

// NumEdges returns the number of edges.
func (idx *Index) NumEdges() int {
	return len(idx.edges)
}

// HasEdge reports whether a directed edge from → to exists.
func (idx *Index) HasEdge(from, to string) bool {
	for _, e := range idx.outgoing[from] {
		if e.To == to {
			return true
		}
	}
	return false
}

// EdgesFrom returns the outgoing edges of a node.
func (idx *Index) EdgesFrom(node string) []Edge {
	return idx.outgoing[node]
}

// EdgesTo returns the incoming edges of a node.
func (idx *Index) EdgesTo(node string) []Edge {
	return idx.incoming[node]
}

// Reachable returns every node name reachable from start, including start
// itself, via breadth-first traversal of the underlying integer graph.
func (idx *Index) Reachable(start string) []string {
	v, ok := idx.nodeIndex[start]
	if !ok {
		return nil
	}
	seen := map[int]struct{}{v: {}}
	graph.BFS(idx.g, v, func(_, w int, _ int64) {
		seen[w] = struct{}{}
	})

	result := make([]string, 0, len(seen))
	for i := range seen {
		result = append(result, idx.nodes[i])
	}
	sort.Strings(result)
	return result
}

func writeJSONAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}
