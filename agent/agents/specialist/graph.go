package specialist

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	contractx "github.com/tanpawarit/autoshop-agent/agent/contract"
	toolx "github.com/tanpawarit/autoshop-agent/agent/tool"
)

// compileModelGraph builds the prompt -> model graph shared by every model call.
func compileModelGraph(
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (compose.Runnable[map[string]any, *schema.Message], error) {
	template := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(systemPrompt),
		schema.UserMessage("{input}"),
	)

	graph := compose.NewGraph[map[string]any, *schema.Message]()
	if err := graph.AddChatTemplateNode("prompt", template); err != nil {
		return nil, fmt.Errorf("add prompt node: %w", err)
	}
	if err := graph.AddChatModelNode("model", chatModel); err != nil {
		return nil, fmt.Errorf("add model node: %w", err)
	}
	if err := graph.AddEdge(compose.START, "prompt"); err != nil {
		return nil, fmt.Errorf("add edge start->prompt: %w", err)
	}
	if err := graph.AddEdge("prompt", "model"); err != nil {
		return nil, fmt.Errorf("add edge prompt->model: %w", err)
	}
	if err := graph.AddEdge("model", compose.END); err != nil {
		return nil, fmt.Errorf("add edge model->end: %w", err)
	}

	runner, err := graph.Compile(ctx, compose.WithGraphName(graphName))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", graphName, err)
	}
	return runner, nil
}

// structuredRunner invokes a model graph and decodes its reply into T.
// Invoke failures are ErrModelInvoke; undecodable replies are ErrSchemaViolation.
type structuredRunner[T any] struct {
	name   string
	runner compose.Runnable[map[string]any, *schema.Message]
	parser schema.MessageParser[T]
}

func newStructuredRunner[T any](
	ctx context.Context,
	chatModel einomodel.BaseChatModel,
	systemPrompt string,
	graphName string,
) (*structuredRunner[T], error) {
	runner, err := compileModelGraph(ctx, chatModel, systemPrompt, graphName)
	if err != nil {
		return nil, err
	}
	return &structuredRunner[T]{
		name:   graphName,
		runner: runner,
		parser: schema.NewMessageJSONParser[T](&schema.MessageJSONParseConfig{
			ParseFrom: schema.MessageParseFromContent,
		}),
	}, nil
}

func (r *structuredRunner[T]) Invoke(ctx context.Context, payload any) (T, error) {
	var zero T

	msg, err := invokeWithPayload(ctx, r.runner, payload)
	if err != nil {
		return zero, err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return zero, fmt.Errorf("%w: %s returned an empty reply", contractx.ErrSchemaViolation, r.name)
	}

	cleaned := &schema.Message{Role: msg.Role, Content: stripCodeFence(msg.Content)}
	out, err := r.parser.Parse(ctx, cleaned)
	if err != nil {
		return zero, fmt.Errorf("%w: %s reply is not valid JSON: %v", contractx.ErrSchemaViolation, r.name, err)
	}
	return out, nil
}

func invokeWithPayload(
	ctx context.Context,
	runner compose.Runnable[map[string]any, *schema.Message],
	payload any,
) (*schema.Message, error) {
	input, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal model payload: %v", contractx.ErrValidation, err)
	}
	msg, err := runner.Invoke(ctx, map[string]any{
		"input": string(input),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrModelInvoke, err)
	}
	return msg, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimPrefix(trimmed, "json")
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

// toolPlanner asks a tool-bound model which tools to call.
type toolPlanner struct {
	capability contractx.Capability
	runner     compose.Runnable[map[string]any, *schema.Message]
}

func newToolPlanner(
	ctx context.Context,
	capability contractx.Capability,
	chatModel einomodel.ToolCallingChatModel,
	tools []*schema.ToolInfo,
	systemPrompt string,
) (*toolPlanner, error) {
	bound, err := chatModel.WithTools(tools)
	if err != nil {
		return nil, fmt.Errorf("%w: bind tools for capability=%s: %v", contractx.ErrModelInvoke, capability, err)
	}
	runner, err := compileModelGraph(ctx, bound, systemPrompt, string(capability)+".tool_planning_graph")
	if err != nil {
		return nil, err
	}
	return &toolPlanner{capability: capability, runner: runner}, nil
}

// Plan returns the tool requests the model asked for, possibly none.
func (p *toolPlanner) Plan(ctx context.Context, payload any) ([]contractx.ToolRequest, error) {
	msg, err := invokeWithPayload(ctx, p.runner, payload)
	if err != nil {
		return nil, err
	}
	if msg == nil || len(msg.ToolCalls) == 0 {
		return nil, nil
	}
	return toolx.RequestsFromCalls(msg.ToolCalls)
}
