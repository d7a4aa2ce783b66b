package schemarag

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/llm"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schema"
)

// SnapshotLoader provides the cached schema snapshots the retriever narrows.
type SnapshotLoader interface {
	Load(ctx context.Context) ([]schema.Snapshot, error)
}

// Retriever answers "which part of the schema matters for these questions"
// using the schema graph plus keyword and optional model-assisted entity
// matching. When nothing matches confidently it falls back to the full
// schema; callers never receive an empty subset while schema exists.
type Retriever struct {
	loader  SnapshotLoader
	builder *IndexBuilder
	client  llm.Client
	logger  *zap.Logger
}

// NewRetriever creates a Retriever. client may be nil, in which case entity
// extraction is keyword-only.
func NewRetriever(loader SnapshotLoader, builder *IndexBuilder, client llm.Client, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		loader:  loader,
		builder: builder,
		client:  client,
		logger:  logger,
	}
}

// Filter returns the subset of tables relevant to the questions. A table is
// selected when its name, or the name of one of its columns, matches a
// question keyword through the schema graph. With no confident match the
// full schema is returned.
func (r *Retriever) Filter(ctx context.Context, questions []string) ([]schema.TableInfo, error) {
	snapshots, err := r.loader.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema for retrieval: %w", err)
	}

	allTables := FlattenTables(snapshots)
	if len(allTables) == 0 {
		return allTables, nil
	}

	triples := BuildTriples(snapshots)
	stale := IsGraphStale(LoadGraphMeta(r.builder.MetaPath), latestTimestamp(snapshots))
	idx, err := r.builder.Initialize(triples, stale)
	if err != nil {
		return nil, fmt.Errorf("initialize schema graph: %w", err)
	}

	keywords := r.extractKeywords(ctx, questions)
	matched := matchNodes(idx, keywords)
	if len(matched) == 0 {
		r.logger.Info("no schema nodes matched questions, returning full schema",
			zap.Int("keywords", len(keywords)))
		return allTables, nil
	}

	selected := selectTables(idx, matched)
	var result []schema.TableInfo
	for _, table := range allTables {
		if _, ok := selected[table.TableName]; ok {
			result = append(result, table)
		}
	}
	if len(result) == 0 {
		return allTables, nil
	}
	return result, nil
}

// extractKeywords tokenizes the questions and, when a model client is
// available, merges in model-extracted entity names. Model failure degrades
// to tokens only.
func (r *Retriever) extractKeywords(ctx context.Context, questions []string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	add := func(word string) {
		word = strings.ToLower(strings.TrimSpace(word))
		if len(word) < 3 || isStopword(word) {
			return
		}
		if _, ok := seen[word]; ok {
			return
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}

	for _, q := range questions {
		for _, token := range tokenPattern.FindAllString(q, -1) {
			add(token)
		}
	}

	if r.client != nil {
		prompt := "Extract the database entity names (tables, columns, business objects) mentioned " +
			"in the following question(s). Return ONLY a comma-separated list of lowercase names, nothing else.\n\n" +
			strings.Join(questions, "\n")
		text, err := r.client.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, "")
		if err != nil {
			r.logger.Warn("entity extraction via model failed, using tokens only", zap.Error(err))
		} else {
			for _, entity := range strings.Split(text, ",") {
				add(entity)
			}
		}
	}
	return keywords
}

var tokenPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)

// matchNodes finds graph nodes whose name matches a keyword. Singular and
// plural forms are compared both ways.
func matchNodes(idx *Index, keywords []string) []string {
	var matched []string
	for _, node := range idx.Nodes() {
		lower := strings.ToLower(node)
		for _, kw := range keywords {
			if nameMatches(lower, kw) {
				matched = append(matched, node)
				break
			}
		}
	}
	return matched
}

func nameMatches(name, keyword string) bool {
	if name == keyword {
		return true
	}
	if strings.TrimSuffix(name, "s") == strings.TrimSuffix(keyword, "s") {
		return true
	}
	return strings.Contains(name, keyword) || strings.Contains(keyword, name)
}

// selectTables projects matched nodes back onto table names: a matched table
// node selects itself, a matched column node selects every table owning a
// column of that name (via incoming has_column edges).
func selectTables(idx *Index, matched []string) map[string]struct{} {
	selected := make(map[string]struct{})
	for _, node := range matched {
		isTable := false
		for _, e := range idx.EdgesTo(node) {
			switch e.Label {
			case PredicateHasTable, PredicateHasSchema:
				isTable = true
			case PredicateHasColumn:
				selected[e.From] = struct{}{}
			}
		}
		if isTable {
			selected[node] = struct{}{}
			continue
		}
		// A matched node with outgoing has_column edges is a table in a
		// snapshot without profile/schema facts.
		for _, e := range idx.EdgesFrom(node) {
			if e.Label == PredicateHasColumn {
				selected[node] = struct{}{}
				break
			}
		}
	}
	return selected
}

// FlattenTables collects every table of every snapshot in order.
func FlattenTables(snapshots []schema.Snapshot) []schema.TableInfo {
	var tables []schema.TableInfo
	for _, snap := range snapshots {
		tables = append(tables, snap.SchemaInfo...)
	}
	return tables
}

func latestTimestamp(snapshots []schema.Snapshot) float64 {
	var latest float64
	for _, snap := range snapshots {
		if snap.Timestamp > latest {
			latest = snap.Timestamp
		}
	}
	return latest
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "all": {}, "list": {},
	"show": {}, "get": {}, "what": {}, "which": {}, "how": {}, "many": {},
	"from": {}, "that": {}, "are": {}, "was": {}, "were": {}, "have": {},
}

func isStopword(word string) bool {
	_, ok := stopwords[word]
	return ok
}
