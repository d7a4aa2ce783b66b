package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMutatingSQL(t *testing.T) {
	tests := []struct {
		name     string
		sql      string
		mutating bool
	}{
		{"select", "SELECT * FROM users", false},
		{"with cte", "WITH recent AS (SELECT * FROM orders) SELECT * FROM recent", false},
		{"lowercase select", "select id from users", false},
		{"insert", "INSERT INTO users VALUES (1)", true},
		{"update", "UPDATE users SET name = 'x'", true},
		{"delete", "DELETE FROM users", true},
		{"drop", "DROP TABLE users", true},
		{"truncate", "TRUNCATE TABLE users", true},
		{"alter", "ALTER TABLE users ADD COLUMN x int", true},
		{"create", "CREATE TABLE t (id int)", true},
		{"merge", "MERGE INTO t USING s ON t.id = s.id", true},
		{"grant", "GRANT SELECT ON t TO role", true},
		{"lowercase drop", "drop table users", true},
		{"leading whitespace", "   \n\t DELETE FROM users", true},
		{"leading line comment", "-- cleanup\nDROP TABLE users", true},
		{"leading block comment", "/* cleanup */ DROP TABLE users", true},
		{"comment then select", "-- just reading\nSELECT 1", false},
		{"mutating word inside select", "SELECT deleted_at FROM users", false},
		{"prefix of identifier", "SELECTED_COLUMN", false},
		{"updatelog table read", "SELECT * FROM updatelog", false},
		{"empty", "", false},
		{"only comments", "-- nothing here", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.mutating, IsMutatingSQL(tt.sql))
		})
	}
}
