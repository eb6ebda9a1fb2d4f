// Package provider provides LLM provider abstraction using Eino framework.
package provider

import (
	"context"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/llamafarm/llamafarm-core/pkg/types"
)

// Provider represents an LLM provider with Eino ChatModel.
type Provider interface {
	// ID returns the provider identifier.
	ID() string

	// Name returns the human-readable provider name.
	Name() string

	// Models returns the list of available models.
	Models() []ModelInfo

	// ChatModel returns the Eino ChatModel for this provider.
	ChatModel() model.ToolCallingChatModel

	// CreateCompletion creates a streaming completion.
	CreateCompletion(ctx context.Context, req *CompletionRequest) (*CompletionStream, error)
}

// CompletionRequest represents a request to generate a completion.
type CompletionRequest struct {
	Model       string            `json:"model"`
	Messages    []*schema.Message `json:"messages"`
	Tools       []*schema.ToolInfo `json:"tools,omitempty"`
	MaxTokens   int               `json:"maxTokens,omitempty"`
	Temperature float64           `json:"temperature,omitempty"`
	TopP        float64           `json:"topP,omitempty"`
	StopWords   []string          `json:"stopWords,omitempty"`
}

// CompletionStream wraps an Eino stream reader.
type CompletionStream struct {
	reader *schema.StreamReader[*schema.Message]
}

// NewCompletionStream creates a new completion stream.
func NewCompletionStream(reader *schema.StreamReader[*schema.Message]) *CompletionStream {
	return &CompletionStream{reader: reader}
}

// Recv receives the next message chunk from the stream.
func (s *CompletionStream) Recv() (*schema.Message, error) {
	return s.reader.Recv()
}

// Close closes the stream.
func (s *CompletionStream) Close() {
	s.reader.Close()
}

// ConvertFromEinoMessage converts an Eino response message to a stored
// chat message, preserving any tool calls the model requested.
func ConvertFromEinoMessage(msg *schema.Message) types.ChatMessage {
	role := "assistant"
	switch msg.Role {
	case schema.User:
		role = "user"
	case schema.System:
		role = "system"
	case schema.Tool:
		role = "tool"
	}

	out := types.ChatMessage{Role: role, Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, types.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return out
}

// ConvertToEinoMessages converts a chat completions request history into
// Eino's message format.
func ConvertToEinoMessages(messages []types.ChatMessage) []*schema.Message {
	result := make([]*schema.Message, 0, len(messages))

	for _, msg := range messages {
		role := schema.Assistant
		switch msg.Role {
		case "user":
			role = schema.User
		case "system":
			role = schema.System
		case "tool":
			role = schema.Tool
		}

		einoMsg := &schema.Message{
			Role:       role,
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			einoMsg.ToolCalls = append(einoMsg.ToolCalls, schema.ToolCall{
				ID: tc.ID,
				Function: schema.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		result = append(result, einoMsg)
	}

	return result
}

// ConvertToEinoTools converts tool definitions from a chat request into
// Eino tool schemas.
func ConvertToEinoTools(tools []types.ToolDefinition) []*schema.ToolInfo {
	result := make([]*schema.ToolInfo, len(tools))
	for i, t := range tools {
		result[i] = &schema.ToolInfo{
			Name:        t.Name,
			Desc:        t.Description,
			ParamsOneOf: schema.NewParamsOneOfByParams(jsonSchemaPropsToParams(t.Parameters)),
		}
	}
	return result
}

// jsonSchemaPropsToParams converts a JSON-Schema-shaped parameters map
// (as carried by types.ToolDefinition) into Eino ParameterInfo entries.
func jsonSchemaPropsToParams(paramSchema map[string]any) map[string]*schema.ParameterInfo {
	if paramSchema == nil {
		return nil
	}
	props, _ := paramSchema["properties"].(map[string]any)
	if props == nil {
		return map[string]*schema.ParameterInfo{}
	}
	required := map[string]bool{}
	if reqList, ok := paramSchema["required"].([]any); ok {
		for _, r := range reqList {
			if s, ok := r.(string); ok {
				required[s] = true
			}
		}
	}

	params := make(map[string]*schema.ParameterInfo, len(props))
	for name, raw := range props {
		prop, _ := raw.(map[string]any)
		paramType := schema.String
		desc, _ := prop["description"].(string)
		switch prop["type"] {
		case "integer":
			paramType = schema.Integer
		case "number":
			paramType = schema.Number
		case "boolean":
			paramType = schema.Boolean
		case "array":
			paramType = schema.Array
		case "object":
			paramType = schema.Object
		}
		params[name] = &schema.ParameterInfo{
			Type:     paramType,
			Desc:     desc,
			Required: required[name],
		}
	}
	return params
}
