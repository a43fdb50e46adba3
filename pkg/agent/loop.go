package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SethBurkart123/covalt/pkg/llm"
)

const (
	defaultModel     = "anthropic:claude-sonnet-4-5"
	defaultMaxTokens = 4096
	defaultMaxTurns  = 50
)

// Result holds the final output of a completed agent loop.
type Result struct {
	Output  string
	Session *Session
}

// Loop runs an LLM + tool loop until the model stops using tools. One
// Loop instance backs one agent node execution.
type Loop struct {
	client    llm.Client
	tools     []Tool
	model     string
	maxTokens int
	maxTurns  int
	system    string
	eventCh   chan<- Event
}

// Option configures a Loop.
type Option func(*Loop)

// WithModel sets the model for the agent.
func WithModel(model string) Option {
	return func(a *Loop) {
		if model != "" {
			a.model = model
		}
	}
}

// WithSystem sets the system prompt.
func WithSystem(system string) Option {
	return func(a *Loop) { a.system = system }
}

// WithEvents provides a channel for event emission.
func WithEvents(ch chan<- Event) Option {
	return func(a *Loop) { a.eventCh = ch }
}

// WithMaxTokens sets the per-turn max token budget.
func WithMaxTokens(n int) Option {
	return func(a *Loop) { a.maxTokens = n }
}

// WithMaxTurns sets the maximum number of LLM turns before the loop
// aborts. A value <= 0 uses the default (50).
func WithMaxTurns(n int) Option {
	return func(a *Loop) {
		if n > 0 {
			a.maxTurns = n
		}
	}
}

// NewLoop creates a Loop over the given client and tool set.
func NewLoop(client llm.Client, tools []Tool, opts ...Option) *Loop {
	a := &Loop{
		client:    client,
		tools:     tools,
		model:     defaultModel,
		maxTokens: defaultMaxTokens,
		maxTurns:  defaultMaxTurns,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run executes the agent loop for the given instruction.
// Returns when the model produces a response with no tool_use blocks.
func (a *Loop) Run(ctx context.Context, instruction string) (Result, error) {
	session := NewSession(a.system)
	detector := NewLoopDetector(defaultSteeringThreshold)

	byName := make(map[string]Tool, len(a.tools))
	toolDefs := make([]llm.ToolDefinition, 0, len(a.tools))
	for _, t := range a.tools {
		byName[t.Name()] = t
		toolDefs = append(toolDefs, llm.ToolDefinition{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}

	session.Append(llm.TextMessage(llm.RoleUser, instruction))
	a.emit(Event{Type: EventTypeLLMTurn, Turn: 0, Content: "starting agent loop"})

	turns := 0
	for {
		turns++
		if turns > a.maxTurns {
			return Result{}, &MaxTurnsError{Turns: a.maxTurns}
		}
		// Truncate if session is getting large
		if session.Len() > defaultTruncationHeadTurns+defaultTruncationTailTurns+5 {
			session.Truncate(defaultTruncationHeadTurns, defaultTruncationTailTurns)
		}

		req := llm.GenerateRequest{
			Model:     a.model,
			Messages:  session.Messages(),
			Tools:     toolDefs,
			System:    session.System(),
			MaxTokens: a.maxTokens,
		}

		resp, err := a.client.Complete(ctx, req)
		if err != nil {
			a.emit(Event{Type: EventTypeError, Turn: turns, Content: err.Error(), IsError: true})
			return Result{}, fmt.Errorf("agent loop: LLM call failed: %w", err)
		}

		session.Append(llm.Message{Role: llm.RoleAssistant, Content: resp.Content})
		a.emit(Event{Type: EventTypeLLMTurn, Turn: turns, Content: fmt.Sprintf("stop_reason=%s tokens=%d", resp.StopReason, resp.Usage.OutputTokens)})

		// Collect tool calls and text output
		var toolCalls []*llm.ToolUse
		var textOutput string
		for _, b := range resp.Content {
			switch b.Type {
			case llm.ContentTypeToolUse:
				if b.ToolUse != nil {
					toolCalls = append(toolCalls, b.ToolUse)
				}
			case llm.ContentTypeText:
				textOutput += b.Text
			}
		}

		// No tool calls = model is done
		if len(toolCalls) == 0 {
			a.emit(Event{Type: EventTypeComplete, Turn: turns, Content: textOutput})
			return Result{Output: textOutput, Session: session}, nil
		}

		// Execute each tool call; build tool_result blocks
		toolResults := make([]llm.ContentBlock, 0, len(toolCalls))
		for _, tc := range toolCalls {
			a.emit(Event{Type: EventTypeToolCall, Turn: turns, ToolName: tc.Name, Content: string(tc.Input)})

			// Loop detection: inject steering instead of executing
			if detector.Record(tc.Name, tc.Input) {
				steering := SteeringMessage()
				a.emit(Event{Type: EventTypeSteering, Turn: turns, Content: steering})
				toolResults = append(toolResults, llm.ContentBlock{
					Type: llm.ContentTypeToolResult,
					ToolResult: &llm.ToolResult{
						ToolUseID: tc.ID,
						Content:   steering,
						IsError:   true,
					},
				})
				continue
			}

			tool, ok := byName[tc.Name]
			if !ok {
				a.emit(Event{Type: EventTypeToolResult, Turn: turns, ToolName: tc.Name, Content: "not found", IsError: true})
				toolResults = append(toolResults, llm.ContentBlock{
					Type: llm.ContentTypeToolResult,
					ToolResult: &llm.ToolResult{
						ToolUseID: tc.ID,
						Content:   fmt.Sprintf("tool not found: %s", tc.Name),
						IsError:   true,
					},
				})
				continue
			}

			var inputJSON json.RawMessage = tc.Input
			result, execErr := tool.Execute(ctx, inputJSON)
			if execErr != nil {
				a.emit(Event{Type: EventTypeToolResult, Turn: turns, ToolName: tc.Name, Content: execErr.Error(), IsError: true})
				toolResults = append(toolResults, llm.ContentBlock{
					Type: llm.ContentTypeToolResult,
					ToolResult: &llm.ToolResult{
						ToolUseID: tc.ID,
						Content:   execErr.Error(),
						IsError:   true,
					},
				})
			} else {
				a.emit(Event{Type: EventTypeToolResult, Turn: turns, ToolName: tc.Name, Content: result})
				toolResults = append(toolResults, llm.ContentBlock{
					Type: llm.ContentTypeToolResult,
					ToolResult: &llm.ToolResult{
						ToolUseID: tc.ID,
						Content:   result,
						IsError:   false,
					},
				})
			}
		}

		session.Append(llm.Message{Role: llm.RoleUser, Content: toolResults})
	}
}

func (a *Loop) emit(e Event) {
	if a.eventCh != nil {
		select {
		case a.eventCh <- e:
		default:
			// Drop events rather than block the loop on a slow consumer.
		}
	}
}
