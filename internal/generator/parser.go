package generator

import (
	"fmt"
	"regexp"
	"strings"
)

// Block is one fenced SQL block found in model output. Raw is the full
// fenced region as it appears in the text, used to rewrite the fence in
// place after validation.
type Block struct {
	Title string
	SQL   string
	Raw   string
}

var (
	// A "Query name: <title>" line immediately preceding a fenced sql block.
	titledBlockPattern = regexp.MustCompile("(?s)Query name:[ \t]*([^\n]+)\n+```sql\n(.*?)```")
	// Any fenced sql block.
	fencedBlockPattern = regexp.MustCompile("(?s)```sql\n(.*?)```")
)

// ExtractSQLBlocks finds the SQL blocks in model output text. When at least
// one block is preceded by an explicit "Query name: <title>" marker, only
// those titled blocks are returned. Otherwise every fenced sql block is
// returned with sequential generated titles. Models emit titles
// inconsistently, hence the two tiers.
func ExtractSQLBlocks(text string) []Block {
	var blocks []Block
	for _, m := range titledBlockPattern.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, Block{
			Title: strings.TrimSpace(m[1]),
			SQL:   strings.TrimSpace(m[2]),
			Raw:   fencedPartOf(m[0]),
		})
	}
	if len(blocks) > 0 {
		return blocks
	}

	for i, m := range fencedBlockPattern.FindAllStringSubmatch(text, -1) {
		blocks = append(blocks, Block{
			Title: fmt.Sprintf("Query %d", i+1),
			SQL:   strings.TrimSpace(m[1]),
			Raw:   m[0],
		})
	}
	return blocks
}

// fencedPartOf trims a titled match down to just its fenced region, so fence
// rewrites never touch the title line.
func fencedPartOf(match string) string {
	if i := strings.Index(match, "```sql"); i >= 0 {
		return match[i:]
	}
	return match
}

// StripMarkdownSQL removes a surrounding markdown fence from a model reply
// that should contain bare SQL. Fix responses often arrive fenced even when
// the prompt asks for SQL only.
func StripMarkdownSQL(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencedBlockPattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	trimmed = strings.TrimPrefix(trimmed, "```sql")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// RewriteFence replaces the first occurrence of a block's original fenced
// region in text with a fence containing newSQL, optionally prefixed by a
// marker comment line.
func RewriteFence(text string, block Block, marker, newSQL string) string {
	var body strings.Builder
	body.WriteString("```sql\n")
	if marker != "" {
		body.WriteString(marker)
		body.WriteString("\n")
	}
	if newSQL != "" {
		body.WriteString(newSQL)
		body.WriteString("\n")
	}
	body.WriteString("```")
	return strings.Replace(text, block.Raw, body.String(), 1)
}
