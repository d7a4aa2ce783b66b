package generator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// mockExecutor is a function-field SQLExecutor fake with call tracking.
type mockExecutor struct {
	mu      sync.Mutex
	runFn   func(ctx context.Context, sqlCode string, testMode bool) (int64, error)
	calls   int
	sqlSeen []string
}

func (m *mockExecutor) RunTransformation(ctx context.Context, sqlCode string, testMode bool) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.sqlSeen = append(m.sqlSeen, sqlCode)
	if m.runFn != nil {
		return m.runFn(ctx, sqlCode, testMode)
	}
	return 0, nil
}

func TestValidateBlockAcceptsOnFirstTry(t *testing.T) {
	executor := &mockExecutor{}
	block := Block{Title: "Query 1", SQL: "SELECT 1"}

	result := validateBlock(context.Background(), block, executor, FixerFunc(func(ctx context.Context, sql, dbError string, attempt int) (string, error) {
		t.Fatal("fixer must not be called on success")
		return "", nil
	}), 3, zap.NewNop())

	assert.Equal(t, outcomeAccepted, result.outcome)
	assert.Equal(t, "SELECT 1", result.finalSQL)
	assert.Equal(t, 1, executor.calls)
}

func TestValidateBlockRejectsMutatingWithoutExecution(t *testing.T) {
	executor := &mockExecutor{}
	block := Block{Title: "Query 1", SQL: "DROP TABLE users;"}

	result := validateBlock(context.Background(), block, executor, FixerFunc(func(ctx context.Context, sql, dbError string, attempt int) (string, error) {
		return "", nil
	}), 3, zap.NewNop())

	assert.Equal(t, outcomeRejected, result.outcome)
	assert.Equal(t, 0, executor.calls, "rejected blocks must never reach the database")
}

func TestValidateBlockRepairsAfterOneFailure(t *testing.T) {
	executor := &mockExecutor{}
	executor.runFn = func(ctx context.Context, sqlCode string, testMode bool) (int64, error) {
		if executor.calls == 1 {
			return 0, errors.New(`column "nmae" does not exist`)
		}
		return 0, nil
	}
	block := Block{Title: "Query 1", SQL: "SELECT nmae FROM users"}

	result := validateBlock(context.Background(), block, executor, FixerFunc(func(ctx context.Context, sql, dbError string, attempt int) (string, error) {
		assert.Contains(t, dbError, "nmae")
		assert.Equal(t, 1, attempt)
		return "SELECT name FROM users", nil
	}), 3, zap.NewNop())

	assert.Equal(t, outcomeAccepted, result.outcome)
	assert.Equal(t, "SELECT name FROM users", result.finalSQL)
	assert.Equal(t, 2, executor.calls)
}

func TestValidateBlockFailsWhenAttemptsExhausted(t *testing.T) {
	executor := &mockExecutor{
		runFn: func(ctx context.Context, sqlCode string, testMode bool) (int64, error) {
			return 0, errors.New("syntax error")
		},
	}
	block := Block{Title: "Query 1", SQL: "SELEC broken"}

	fixCalls := 0
	result := validateBlock(context.Background(), block, executor, FixerFunc(func(ctx context.Context, sql, dbError string, attempt int) (string, error) {
		fixCalls++
		return sql + " -- retry", nil
	}), 3, zap.NewNop())

	assert.Equal(t, outcomeFailed, result.outcome)
	assert.Equal(t, 3, executor.calls)
	assert.Equal(t, 2, fixCalls, "no fix is requested after the final attempt")
}

func TestValidateBlockFailsOnEmptyFix(t *testing.T) {
	executor := &mockExecutor{
		runFn: func(ctx context.Context, sqlCode string, testMode bool) (int64, error) {
			return 0, errors.New("syntax error")
		},
	}
	block := Block{Title: "Query 1", SQL: "SELEC broken"}

	result := validateBlock(context.Background(), block, executor, FixerFunc(func(ctx context.Context, sql, dbError string, attempt int) (string, error) {
		return "", nil
	}), 3, zap.NewNop())

	assert.Equal(t, outcomeFailed, result.outcome)
	assert.Equal(t, 1, executor.calls, "an empty fix ends the loop immediately")
}

func TestValidateBlockStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	executor := &mockExecutor{
		runFn: func(ctx context.Context, sqlCode string, testMode bool) (int64, error) {
			cancel()
			return 0, errors.New("cancelled mid-flight")
		},
	}
	block := Block{Title: "Query 1", SQL: "SELECT 1"}

	result := validateBlock(ctx, block, executor, FixerFunc(func(ctx context.Context, sql, dbError string, attempt int) (string, error) {
		t.Fatal("fixer must not be called after cancellation")
		return "", nil
	}), 3, zap.NewNop())

	assert.Equal(t, outcomeFailed, result.outcome)
	assert.Equal(t, 1, executor.calls)
}
