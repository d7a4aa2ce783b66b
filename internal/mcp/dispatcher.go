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
package mcp

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/llm"
)

// Tool is a named capability the dispatcher can route to.
type Tool interface {
	Name() string
	Description() string
	InputSchema() map[string]llm.ParamSpec
	Invoke(ctx context.Context, input map[string]any) (any, error)
}

// Registry maps tool names to tools. Read-mostly after startup.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q is already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a registered tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Descriptors returns the registered tools as model tool descriptors, in
// registration order.
func (r *Registry) Descriptors() []llm.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	descriptors := make([]llm.ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		tool := r.tools[name]
		descriptors = append(descriptors, llm.ToolDescriptor{
			Name:        tool.Name(),
			Description: tool.Description(),
			Parameters:  tool.InputSchema(),
		})
	}
	return descriptors
}

// Match is a resolved dispatch: the tool to invoke and its extracted input.
type Match struct {
	Tool  Tool
	Input map[string]any
}

// DispatchByCommand matches input text of the form "/<toolname> <rest>".
// Returns nil when the text has no leading slash or the name is not
// registered.
func DispatchByCommand(registry *Registry, text string) *Match {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "/") {
		return nil
	}
	name, rest, _ := strings.Cut(trimmed[1:], " ")
	tool, ok := registry.Get(name)
	if !ok {
		return nil
	}
	return &Match{Tool: tool, Input: map[string]any{"text": strings.TrimSpace(rest)}}
}

// DispatchByContext matches a structured payload {tool: name, input: {...}}.
// Returns nil when the shape does not match; a well-shaped payload naming an
// unregistered tool is a caller error.
func DispatchByContext(registry *Registry, payload map[string]any) (*Match, error) {
	name, ok := payload["tool"].(string)
	if !ok || name == "" {
		return nil, nil
	}
	tool, registered := registry.Get(name)
	if !registered {
		return nil, fmt.Errorf("tool %q is not registered", name)
	}
	input, _ := payload["input"].(map[string]any)
	if input == nil {
		input = map[string]any{}
	}
	return &Match{Tool: tool, Input: input}, nil
}

// DispatchWithModel asks the model to choose a tool given the conversation
// and the registered tool descriptors. The first tool call in the response
// wins. Returns nil when the model issues no tool call; a call to an
// unregistered tool is an error.
func DispatchWithModel(ctx context.Context, registry *Registry, client llm.Client, messages []llm.Message) (*Match, error) {
	resp, err := client.CompleteWithTools(ctx, messages, registry.Descriptors())
	if err != nil {
		return nil, fmt.Errorf("model tool choice failed: %w", err)
	}
	if len(resp.ToolCalls) == 0 {
		return nil, nil
	}
	call := resp.ToolCalls[0]
	tool, ok := registry.Get(call.Name)
	if !ok {
		return nil, fmt.Errorf("model chose unregistered tool %q", call.Name)
	}
	return &Match{Tool: tool, Input: call.Args}, nil
}

// Dispatcher routes an inbound instruction through the three matching tiers
// in fixed priority order and invokes the winning tool.
type Dispatcher struct {
	registry *Registry
	client   llm.Client
}

// NewDispatcher creates a Dispatcher. client may be nil, disabling the
// model-choice tier.
func NewDispatcher(registry *Registry, client llm.Client) *Dispatcher {
	return &Dispatcher{registry: registry, client: client}
}

// Dispatch resolves a match by command syntax first, then structured
// context, then model choice, and invokes the tool asynchronously. The
// invocation result is returned verbatim. A nil result with nil error means
// no tier produced a match.
func (d *Dispatcher) Dispatch(ctx context.Context, text string, payload map[string]any, history []llm.Message) (any, error) {
	match, err := d.resolve(ctx, text, payload, history)
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, nil
	}
	return d.invoke(ctx, match)
}

func (d *Dispatcher) resolve(ctx context.Context, text string, payload map[string]any, history []llm.Message) (*Match, error) {
	if match := DispatchByCommand(d.registry, text); match != nil {
		return match, nil
	}
	if payload != nil {
		match, err := DispatchByContext(d.registry, payload)
		if err != nil || match != nil {
			return match, err
		}
	}
	if d.client != nil && len(history) > 0 {
		return DispatchWithModel(ctx, d.registry, d.client, history)
	}
	return nil, nil
}

// invoke runs the tool in its own goroutine with a single outstanding call
// and waits for either the result or context cancellation.
func (d *Dispatcher) invoke(ctx context.Context, match *Match) (any, error) {
	type outcome struct {
		result any
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		result, err := match.Tool.Invoke(ctx, match.Input)
		done <- outcome{result, err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
