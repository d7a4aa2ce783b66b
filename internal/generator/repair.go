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

import (
	"context"

	"go.uber.org/zap"
)

// SQLExecutor runs a candidate statement against the live database. testMode
// asks the connector to avoid committing side effects where supported.
type SQLExecutor interface {
	RunTransformation(ctx context.Context, sqlCode string, testMode bool) (int64, error)
}

// Fixer asks the model to correct a failing statement. An empty correction
// ends the repair loop for the block.
type Fixer interface {
	Fix(ctx context.Context, sql string, dbError string, attempt int) (string, error)
}

// FixerFunc adapts a plain function to the Fixer interface.
type FixerFunc func(ctx context.Context, sql string, dbError string, attempt int) (string, error)

func (f FixerFunc) Fix(ctx context.Context, sql string, dbError string, attempt int) (string, error) {
	return f(ctx, sql, dbError, attempt)
}

// blockOutcome is the settled state of one SQL block after validation.
type blockOutcome int

const (
	outcomeAccepted blockOutcome = iota
	outcomeRejected
	outcomeFailed
)

// validatedBlock pairs a block with its settled outcome and final SQL.
type validatedBlock struct {
	Block
	outcome  blockOutcome
	finalSQL string
}

// validateBlock runs the safety filter and the bounded repair loop for one
// block. Rejection happens before any execution attempt. On execution failure
// the fixer is consulted with the database error; the corrected SQL replaces
// the candidate and the loop retries, up to maxAttempts. An unfixable block
// settles as failed instead of surfacing an error so sibling blocks are
// unaffected.
func validateBlock(ctx context.Context, block Block, executor SQLExecutor, fixer Fixer, maxAttempts int, logger *zap.Logger) validatedBlock {
	result := validatedBlock{Block: block, finalSQL: block.SQL}

	if IsMutatingSQL(block.SQL) {
		logger.Info("sql block rejected by safety filter", zap.String("title", block.Title))
		result.outcome = outcomeRejected
		return result
	}

	candidate := block.SQL
	for attempt := 0; attempt < maxAttempts; attempt++ {
		_, err := executor.RunTransformation(ctx, candidate, true)
		if err == nil {
			result.outcome = outcomeAccepted
			result.finalSQL = candidate
			return result
		}
		if ctx.Err() != nil || attempt+1 >= maxAttempts {
			break
		}

		logger.Info("sql block failed, asking model for a fix",
			zap.String("title", block.Title), zap.Int("attempt", attempt+1), zap.Error(err))

		fixed, fixErr := fixer.Fix(ctx, candidate, err.Error(), attempt+1)
		if fixErr != nil || fixed == "" {
			break
		}
		candidate = fixed
	}

	result.outcome = outcomeFailed
	result.finalSQL = candidate
	return result
}
