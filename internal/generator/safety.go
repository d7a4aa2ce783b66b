/*
 * Copyright 2025 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *    https://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */
package generator

import "strings"

// mutatingVerbs are the statement-leading keywords the safety filter rejects.
var mutatingVerbs = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "TRUNCATE",
	"ALTER", "CREATE", "MERGE", "GRANT", "REVOKE",
}

// IsMutatingSQL reports whether a statement starts with a DML/DDL verb,
// ignoring leading whitespace and comments. This is a syntactic guard, not a
// parser; ambiguous statements are rejected rather than allowed through.
func IsMutatingSQL(sql string) bool {
	stripped := stripLeadingComments(sql)
	upper := strings.ToUpper(stripped)
	for _, verb := range mutatingVerbs {
		if strings.HasPrefix(upper, verb) {
			rest := upper[len(verb):]
			if rest == "" || !isIdentChar(rest[0]) {
				return true
			}
		}
	}
	return false
}

// stripLeadingComments removes leading whitespace, line comments and block
// comments until actual statement text begins.
func stripLeadingComments(sql string) string {
	s := sql
	for {
		s = strings.TrimLeft(s, " \t\r\n")
		switch {
		case strings.HasPrefix(s, "--"):
			if i := strings.Index(s, "\n"); i >= 0 {
				s = s[i+1:]
			} else {
				return ""
			}
		case strings.HasPrefix(s, "/*"):
			if i := strings.Index(s, "*/"); i >= 0 {
				s = s[i+2:]
			} else {
				return ""
			}
		default:
			return s
		}
	}
}

func isIdentChar(c byte) bool {
	return c == '_' ||
		(c >= 'A' && c <= 'Z') ||
		(c >= 'a' && c <= 'z') ||
		(c >= '0' && c <= '9')
}
