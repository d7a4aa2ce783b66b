package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractSQLBlocksTitled(t *testing.T) {
	text := "Here is your query.\n\nQuery name: Orders basic\n```sql\nSELECT \"id\" FROM public.\"orders\" ORDER BY \"id\";\n```\nLet me know if you need more."

	blocks := ExtractSQLBlocks(text)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Orders basic", blocks[0].Title)
	assert.Equal(t, `SELECT "id" FROM public."orders" ORDER BY "id";`, blocks[0].SQL)
	assert.False(t, strings.Contains(blocks[0].SQL, "```"))
}

func TestExtractSQLBlocksTitledWinsOverUntitled(t *testing.T) {
	text := "```sql\nSELECT 1;\n```\n\nQuery name: Named\n```sql\nSELECT 2;\n```"

	blocks := ExtractSQLBlocks(text)
	require.Len(t, blocks, 1)
	assert.Equal(t, "Named", blocks[0].Title)
	assert.Equal(t, "SELECT 2;", blocks[0].SQL)
}

func TestExtractSQLBlocksFallbackSequentialTitles(t *testing.T) {
	text := "First:\n```sql\nSELECT a FROM t1;\n```\nSecond:\n```sql\nSELECT b FROM t2;\n```"

	blocks := ExtractSQLBlocks(text)
	require.Len(t, blocks, 2)
	assert.Equal(t, "Query 1", blocks[0].Title)
	assert.Equal(t, "SELECT a FROM t1;", blocks[0].SQL)
	assert.Equal(t, "Query 2", blocks[1].Title)
	assert.Equal(t, "SELECT b FROM t2;", blocks[1].SQL)
}

func TestExtractSQLBlocksNone(t *testing.T) {
	assert.Empty(t, ExtractSQLBlocks("I cannot answer that question."))
}

func TestStripMarkdownSQL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"fenced", "```sql\nSELECT 1;\n```", "SELECT 1;"},
		{"fenced with prose", "Here you go:\n```sql\nSELECT 1;\n```", "SELECT 1;"},
		{"bare", "SELECT 1;", "SELECT 1;"},
		{"plain fence", "```\nSELECT 1;\n```", "SELECT 1;"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripMarkdownSQL(tt.input))
		})
	}
}

func TestRewriteFence(t *testing.T) {
	text := "Before.\n```sql\nDROP TABLE users;\n```\nAfter."
	blocks := ExtractSQLBlocks(text)
	require.Len(t, blocks, 1)

	rewritten := RewriteFence(text, blocks[0], RejectedMarker, blocks[0].SQL)
	assert.Contains(t, rewritten, "```sql\n"+RejectedMarker+"\nDROP TABLE users;\n```")
	assert.Contains(t, rewritten, "Before.")
	assert.Contains(t, rewritten, "After.")
}

func TestRewriteFenceKeepsTitleLine(t *testing.T) {
	text := "Query name: Risky\n```sql\nSELECT * FROM t;\n```"
	blocks := ExtractSQLBlocks(text)
	require.Len(t, blocks, 1)

	rewritten := RewriteFence(text, blocks[0], FailedMarker, blocks[0].SQL)
	assert.Contains(t, rewritten, "Query name: Risky\n")
	assert.Contains(t, rewritten, FailedMarker)
}
