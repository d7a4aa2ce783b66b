package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
	"google.golang.org/grpc/status"

	"github.com/GoogleCloudPlatform/db-query-copilot/internal/config"
)

// geminiClient implements the Client interface using the Google Gemini API.
type geminiClient struct {
	client *genai.Client
	cfg    config.LLMConfig
}

// NewGeminiClient creates a new Gemini-backed Client.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cannot create Gemini client: API key is missing")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash-latest"
	}

	return &geminiClient{
		client: client,
		cfg:    cfg,
	}, nil
}

// Close cleans up the underlying Gemini client.
func (c *geminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// IsAPIKeyValid checks if the Gemini API key is valid by listing models.
func (c *geminiClient) IsAPIKeyValid(ctx context.Context) error {
	if c.client == nil {
		return fmt.Errorf("gemini client not initialized (likely missing API key)")
	}

	modelIterator := c.client.ListModels(ctx)
	_, err := modelIterator.Next()
	if err != nil {
		if st, ok := status.FromError(err); ok {
			if st.Code() == 16 /* UNAUTHENTICATED */ || st.Code() == 7 /* PERMISSION_DENIED */ {
				return fmt.Errorf("invalid Gemini API key or insufficient permissions: %w", err)
			}
		}
		return fmt.Errorf("failed to verify Gemini API key by listing models: %w", err)
	}
	return nil
}

// Complete sends the conversation as a chat session and returns the model's
// text. The last message is sent as the live turn; everything before it
// becomes history.
func (c *geminiClient) Complete(ctx context.Context, messages []Message, systemPrompt string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("gemini client not initialized")
	}
	if len(messages) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(0.3)
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}

	session := model.StartChat()
	for _, msg := range messages[:len(messages)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed: %w", err)
	}
	return getFirstTextPart(resp)
}

// CompleteWithTools sends the conversation with function declarations
// attached and collects any function calls the model issued.
func (c *geminiClient) CompleteWithTools(ctx context.Context, messages []Message, tools []ToolDescriptor) (*ToolResponse, error) {
	if c.client == nil {
		return nil, fmt.Errorf("gemini client not initialized")
	}
	if len(messages) == 0 {
		return nil, fmt.Errorf("no messages to send")
	}

	model := c.client.GenerativeModel(c.cfg.Model)
	model.SetTemperature(0.0)
	model.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(tools)}}

	session := model.StartChat()
	for _, msg := range messages[:len(messages)-1] {
		session.History = append(session.History, &genai.Content{
			Role:  geminiRole(msg.Role),
			Parts: []genai.Part{genai.Text(msg.Content)},
		})
	}

	resp, err := session.SendMessage(ctx, genai.Text(messages[len(messages)-1].Content))
	if err != nil {
		return nil, fmt.Errorf("Gemini API call failed: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from Gemini API")
	}

	result := &ToolResponse{}
	var textParts []string
	for _, part := range resp.Candidates[0].Content.Parts {
		switch p := part.(type) {
		case genai.Text:
			textParts = append(textParts, string(p))
		case genai.FunctionCall:
			result.ToolCalls = append(result.ToolCalls, ToolCall{Name: p.Name, Args: p.Args})
		}
	}
	result.Text = strings.Join(textParts, "\n")
	return result, nil
}

func geminiRole(role string) string {
	if strings.EqualFold(role, "assistant") || strings.EqualFold(role, "model") {
		return "model"
	}
	return "user"
}

func toFunctionDeclarations(tools []ToolDescriptor) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		properties := make(map[string]*genai.Schema, len(tool.Parameters))
		for name, spec := range tool.Parameters {
			properties[name] = &genai.Schema{
				Type:        genaiType(spec.Type),
				Description: spec.Description,
			}
		}
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        tool.Name,
			Description: tool.Description,
			Parameters: &genai.Schema{
				Type:       genai.TypeObject,
				Properties: properties,
			},
		})
	}
	return decls
}

func genaiType(t string) genai.Type {
	switch strings.ToLower(t) {
	case "number", "integer":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}

// getFirstTextPart extracts the first text part from a Gemini response.
func getFirstTextPart(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if resp != nil && len(resp.Candidates) > 0 {
			finishReason = resp.Candidates[0].FinishReason.String()
		}
		return "", fmt.Errorf("empty or incomplete response from Gemini API. FinishReason: %s", finishReason)
	}
	part := resp.Candidates[0].Content.Parts[0]
	text, ok := part.(genai.Text)
	if !ok {
		return "", fmt.Errorf("unexpected response part type: %T", part)
	}
	return string(text), nil
}
