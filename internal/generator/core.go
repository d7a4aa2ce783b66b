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
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/llm"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schema"
)

// SchemaProvider loads the full cached schema. The schema Cache implements
// it.
type SchemaProvider interface {
	Load(ctx context.Context) ([]schema.Snapshot, error)
}

// SchemaFilter narrows the schema to the subset relevant to the questions.
// The schemarag Retriever implements it; nil disables narrowing.
type SchemaFilter interface {
	Filter(ctx context.Context, questions []string) ([]schema.TableInfo, error)
}

// Service orchestrates one generation request: load schema context, prompt
// the model, parse the SQL blocks, validate and repair each against the live
// database, and assemble the annotated result.
type Service struct {
	provider SchemaProvider
	filter   SchemaFilter
	client   llm.Client
	executor SQLExecutor
	cfg      config.PipelineConfig
	logger   *zap.Logger
}

// NewService creates a Service. filter may be nil when schema-subset
// retrieval is unavailable.
func NewService(provider SchemaProvider, filter SchemaFilter, client llm.Client, executor SQLExecutor, cfg config.PipelineConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFixAttempts <= 0 {
		cfg.MaxFixAttempts = 3
	}
	return &Service{
		provider: provider,
		filter:   filter,
		client:   client,
		executor: executor,
		cfg:      cfg,
		logger:   logger,
	}
}

// Generate runs the full pipeline for one request. Errors out only on
// invalid input or model invocation failure; individual SQL block failures
// degrade that block and leave the rest of the response intact.
func (s *Service) Generate(ctx context.Context, req *Request) (*Result, error) {
	if details := req.Validate(); len(details) > 0 {
		return nil, &ErrInvalidRequest{Details: details}
	}

	schemaContext, err := s.loadSchemaContext(ctx, req)
	if err != nil {
		return nil, err
	}

	text, err := s.invokeModel(ctx, req, schemaContext)
	if err != nil {
		return nil, &ErrModelInvocation{Err: err}
	}

	blocks := ExtractSQLBlocks(text)
	s.logger.Info("parsed sql blocks from model output", zap.Int("count", len(blocks)))

	validated := s.validateBlocks(ctx, blocks)
	return s.assemble(text, validated), nil
}

// GenerateWithTimeout runs Generate under an overall deadline. When the
// budget is exceeded the caller gets a timeout outcome and the in-flight
// work is abandoned.
func (s *Service) GenerateWithTimeout(ctx context.Context, req *Request, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		result *Result
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := s.Generate(ctx, req)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		if o.err != nil && ctx.Err() == context.DeadlineExceeded {
			return nil, &ErrTimeout{Operation: "sql generation"}
		}
		return o.result, o.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &ErrTimeout{Operation: "sql generation"}
		}
		return nil, &ErrCancelled{Operation: "sql generation"}
	}
}

// loadSchemaContext returns the schema tables embedded into the prompt:
// either the RAG-narrowed subset for the user's questions or the full cached
// schema.
func (s *Service) loadSchemaContext(ctx context.Context, req *Request) ([]schema.TableInfo, error) {
	if s.filter != nil && !req.DisableRAG && !s.cfg.DisableRAG {
		questions := userQuestions(req)
		tables, err := s.filter.Filter(ctx, questions)
		if err == nil {
			return tables, nil
		}
		s.logger.Warn("schema retrieval failed, falling back to full schema", zap.Error(err))
	}

	snapshots, err := s.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}
	var tables []schema.TableInfo
	for _, snap := range snapshots {
		tables = append(tables, snap.SchemaInfo...)
	}
	return tables, nil
}

func (s *Service) invokeModel(ctx context.Context, req *Request, tables []schema.TableInfo) (string, error) {
	systemPrompt, err := buildSystemPrompt(req.SystemPrompt, tables)
	if err != nil {
		return "", err
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
	}
	return s.client.Complete(ctx, messages, systemPrompt)
}

// validateBlocks runs the safety filter and repair loop on every block
// concurrently. Blocks are independent after parsing; the result slice keeps
// extraction order regardless of completion order.
func (s *Service) validateBlocks(ctx context.Context, blocks []Block) []validatedBlock {
	validated := make([]validatedBlock, len(blocks))
	fixer := s.newFixer()

	var wg sync.WaitGroup
	for i, block := range blocks {
		wg.Add(1)
		go func(i int, block Block) {
			defer wg.Done()
			validated[i] = validateBlock(ctx, block, s.executor, fixer, s.cfg.MaxFixAttempts, s.logger)
		}(i, block)
	}
	wg.Wait()
	return validated
}

// assemble rewrites the assistant text so each fence reflects its block's
// settled state and builds the ordered query list.
func (s *Service) assemble(text string, validated []validatedBlock) *Result {
	queries := make([]ParsedQuery, 0, len(validated))
	anyFailed := false

	for _, vb := range validated {
		query := ParsedQuery{Title: vb.Title, SQL: vb.finalSQL}
		switch vb.outcome {
		case outcomeAccepted:
			query.Complexity = EstimateComplexity(vb.finalSQL)
			query.ExecutionTimeEstimate = EstimateExecutionTime(query.Complexity)
			if vb.finalSQL != vb.SQL {
				text = RewriteFence(text, vb.Block, "", vb.finalSQL)
			}
		case outcomeRejected:
			query.ExecutionTimeEstimate = TimeNA
			text = RewriteFence(text, vb.Block, RejectedMarker, vb.SQL)
		case outcomeFailed:
			query.ExecutionTimeEstimate = TimeNA
			text = RewriteFence(text, vb.Block, FailedMarker, vb.finalSQL)
			anyFailed = true
		}
		queries = append(queries, query)
	}

	if anyFailed {
		text += apologyText
	}
	return &Result{AssistantResponse: text, Queries: queries}
}

// newFixer returns a model-backed Fixer asking for a corrected statement and
// stripping any markdown fence from the reply.
func (s *Service) newFixer() Fixer {
	return FixerFunc(func(ctx context.Context, sql string, dbError string, attempt int) (string, error) {
		prompt := fmt.Sprintf(
			"The following SQL statement failed to execute (attempt %d).\n\n"+
				"SQL:\n%s\n\nDatabase error:\n%s\n\n"+
				"Return ONLY the corrected SQL statement, with no explanation and no markdown.",
			attempt, sql, dbError)
		text, err := s.client.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}}, "")
		if err != nil {
			return "", err
		}
		return StripMarkdownSQL(text), nil
	})
}

// buildSystemPrompt embeds the schema context as JSON after any caller
// system prompt, with instructions for the titled-fence output format the
// parser expects.
func buildSystemPrompt(base string, tables []schema.TableInfo) (string, error) {
	schemaJSON, err := json.MarshalIndent(tables, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode schema context: %w", err)
	}

	var b strings.Builder
	if base != "" {
		b.WriteString(base)
		b.WriteString("\n\n")
	}
	b.WriteString("You are a SQL assistant. Answer the user's question by writing SQL against the schema below.\n")
	b.WriteString("For each query, emit a line 'Query name: <short title>' followed by the SQL in a ```sql fence.\n")
	b.WriteString("Only write read-only queries.\n\nDatabase schema:\n")
	b.Write(schemaJSON)
	return b.String(), nil
}

// userQuestions collects the user-role message contents of a request, most
// recent last.
func userQuestions(req *Request) []string {
	var questions []string
	for _, msg := range req.Messages {
		if msg.Role == "user" {
			questions = append(questions, msg.Content)
		}
	}
	return questions
}
