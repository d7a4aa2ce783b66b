package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimateComplexity(t *testing.T) {
	tests := []struct {
		name string
		sql  string
		want int
	}{
		{"single table", "SELECT * FROM users", 1},
		{"order by", `SELECT "id" FROM public."orders" ORDER BY "id";`, 3},
		{"group by", "SELECT status, count(*) FROM orders GROUP BY status", 4},
		{"join", "SELECT * FROM orders o JOIN users u ON o.user_id = u.id", 4},
		{"join group order", "SELECT u.name, count(*) FROM orders o JOIN users u ON o.user_id = u.id GROUP BY u.name ORDER BY count(*)", 9},
		{"same table twice", "SELECT * FROM users WHERE id IN (SELECT id FROM users)", 1},
		{"no tables", "SELECT 1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateComplexity(tt.sql))
		})
	}
}

func TestEstimateComplexityMonotonic(t *testing.T) {
	base := "SELECT * FROM orders"
	withJoin := base + " JOIN users ON orders.user_id = users.id"
	withGroup := withJoin + " GROUP BY users.id"
	withOrder := withGroup + " ORDER BY users.id"

	scoreBase := EstimateComplexity(base)
	scoreJoin := EstimateComplexity(withJoin)
	scoreGroup := EstimateComplexity(withGroup)
	scoreOrder := EstimateComplexity(withOrder)

	assert.Greater(t, scoreJoin, scoreBase)
	assert.Greater(t, scoreGroup, scoreJoin)
	assert.Greater(t, scoreOrder, scoreGroup)
}

func TestEstimateComplexityStable(t *testing.T) {
	sql := "SELECT * FROM orders o JOIN users u ON o.user_id = u.id GROUP BY u.id"
	first := EstimateComplexity(sql)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, EstimateComplexity(sql))
	}
}

func TestEstimateExecutionTime(t *testing.T) {
	tests := []struct {
		score int
		want  string
	}{
		{0, TimeFast},
		{5, TimeFast},
		{6, TimeModerate},
		{10, TimeModerate},
		{11, TimeSlow},
		{20, TimeSlow},
		{21, TimeVerySlow},
		{100, TimeVerySlow},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, EstimateExecutionTime(tt.score))
	}

	// Non-decreasing step function.
	prev := EstimateExecutionTime(0)
	rank := map[string]int{TimeFast: 0, TimeModerate: 1, TimeSlow: 2, TimeVerySlow: 3}
	for score := 1; score <= 30; score++ {
		current := EstimateExecutionTime(score)
		assert.GreaterOrEqual(t, rank[current], rank[prev])
		prev = current
	}
}
