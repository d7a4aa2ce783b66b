package generator

import (
	"regexp"
	"strings"
)

var (
	fromPattern  = regexp.MustCompile(`(?i)\bFROM\s+([A-Za-z_"\[][\w."\]\$]*)`)
	joinPattern  = regexp.MustCompile(`(?i)\bJOIN\s+([A-Za-z_"\[][\w."\]\$]*)`)
	joinKeyword  = regexp.MustCompile(`(?i)\bJOIN\b`)
	groupPattern = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	orderPattern = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
)

// EstimateComplexity scores a single SQL statement without parsing it:
// 1 point per distinct table referenced by FROM or JOIN, 2 points per JOIN
// keyword, 3 points for GROUP BY, 2 points for ORDER BY. The score is stable
// for a given statement and monotonic in each feature.
func EstimateComplexity(sql string) int {
	tables := make(map[string]struct{})
	for _, m := range fromPattern.FindAllStringSubmatch(sql, -1) {
		tables[normalizeTableRef(m[1])] = struct{}{}
	}
	for _, m := range joinPattern.FindAllStringSubmatch(sql, -1) {
		tables[normalizeTableRef(m[1])] = struct{}{}
	}

	score := len(tables)
	score += 2 * len(joinKeyword.FindAllString(sql, -1))
	if groupPattern.MatchString(sql) {
		score += 3
	}
	if orderPattern.MatchString(sql) {
		score += 2
	}
	return score
}

// EstimateExecutionTime maps a complexity score to its time category. The
// mapping is a non-decreasing step function with boundaries at 5, 10 and 20.
func EstimateExecutionTime(score int) string {
	switch {
	case score <= 5:
		return TimeFast
	case score <= 10:
		return TimeModerate
	case score <= 20:
		return TimeSlow
	default:
		return TimeVerySlow
	}
}

// normalizeTableRef canonicalizes a table reference so quoting style does not
// split one table into several.
func normalizeTableRef(ref string) string {
	ref = strings.Trim(ref, `"[]`)
	ref = strings.ReplaceAll(ref, `"`, "")
	return strings.ToLower(ref)
}
