package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/generator"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/llm"
	"github.com/GoogleCloudPlatform/db-query-copilot/internal/schema"
)

// SQLGenerateTool exposes the generation pipeline as a dispatchable tool.
// Pipeline failures surface as structured error envelopes, not Go errors, so
// every dispatch produces a well-formed response object.
type SQLGenerateTool struct {
	service        *generator.Service
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// NewSQLGenerateTool creates the sql_generate tool.
func NewSQLGenerateTool(service *generator.Service, defaultTimeout time.Duration, logger *zap.Logger) *SQLGenerateTool {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SQLGenerateTool{service: service, defaultTimeout: defaultTimeout, logger: logger}
}

func (t *SQLGenerateTool) Name() string { return "sql_generate" }

func (t *SQLGenerateTool) Description() string {
	return "Generate and validate SQL queries for a natural-language question about the database."
}

func (t *SQLGenerateTool) InputSchema() map[string]llm.ParamSpec {
	return map[string]llm.ParamSpec{
		"text": {
			Type:        "string",
			Description: "The natural-language question to answer with SQL.",
		},
		"system_prompt": {
			Type:        "string",
			Description: "Optional extra system prompt prepended to the built-in one.",
		},
		"timeout_sec": {
			Type:        "number",
			Description: "Overall time budget in seconds for the generation pipeline.",
		},
		"disable_schema_rag": {
			Type:        "boolean",
			Description: "When true, the full schema is used instead of the relevant subset.",
		},
	}
}

// Invoke parses the tool input into a generation request and runs the
// pipeline under the configured deadline.
func (t *SQLGenerateTool) Invoke(ctx context.Context, input map[string]any) (any, error) {
	req := parseGenerateRequest(input)
	timeout := t.defaultTimeout
	if sec, ok := asFloat(input["timeout_sec"]); ok && sec > 0 {
		timeout = time.Duration(sec * float64(time.Second))
	}

	result, err := t.service.GenerateWithTimeout(ctx, req, timeout)
	if err != nil {
		var invalidErr *generator.ErrInvalidRequest
		if errors.As(err, &invalidErr) {
			return map[string]any{
				"error":   "invalid_request",
				"details": invalidErr.Details,
			}, nil
		}
		var timeoutErr *generator.ErrTimeout
		if errors.As(err, &timeoutErr) {
			return map[string]any{
				"error":   "timeout",
				"details": fmt.Sprintf("time budget of %s exceeded", timeout),
			}, nil
		}
		t.logger.Error("sql generation failed", zap.Error(err))
		return nil, err
	}
	return result, nil
}

// parseGenerateRequest accepts both the full message-list shape and the bare
// "text" shape used by the command dispatch tier.
func parseGenerateRequest(input map[string]any) *generator.Request {
	req := &generator.Request{}
	if prompt, ok := input["system_prompt"].(string); ok {
		req.SystemPrompt = prompt
	}
	if disable, ok := input["disable_schema_rag"].(bool); ok {
		req.DisableRAG = disable
	}

	if rawMessages, ok := input["messages"].([]any); ok {
		for _, raw := range rawMessages {
			m, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			req.Messages = append(req.Messages, generator.RequestMessage{Role: role, Content: content})
		}
		return req
	}

	if text, ok := input["text"].(string); ok && text != "" {
		req.Messages = []generator.RequestMessage{{Role: "user", Content: text}}
	}
	return req
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// SchemaInfoTool returns the cached schema snapshots so a model or caller
// can inspect the tables before asking for SQL.
type SchemaInfoTool struct {
	provider generator.SchemaProvider
}

// NewSchemaInfoTool creates the schema_info tool.
func NewSchemaInfoTool(provider generator.SchemaProvider) *SchemaInfoTool {
	return &SchemaInfoTool{provider: provider}
}

func (t *SchemaInfoTool) Name() string { return "schema_info" }

func (t *SchemaInfoTool) Description() string {
	return "Return the tables, columns and types of the connected database."
}

func (t *SchemaInfoTool) InputSchema() map[string]llm.ParamSpec {
	return map[string]llm.ParamSpec{}
}

func (t *SchemaInfoTool) Invoke(ctx context.Context, _ map[string]any) (any, error) {
	snapshots, err := t.provider.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schema info: %w", err)
	}
	return map[string][]schema.Snapshot{"schema_info": snapshots}, nil
}
