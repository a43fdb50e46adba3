package agent

// EventType identifies the kind of agent loop event.
type EventType string

const (
	EventTypeToolCall   EventType = "tool_call"
	EventTypeToolResult EventType = "tool_result"
	EventTypeLLMTurn    EventType = "llm_turn"
	EventTypeComplete   EventType = "complete"
	EventTypeSteering   EventType = "steering"
	EventTypeError      EventType = "error"
)

// Event is emitted as the loop progresses so callers can surface agent
// activity (turn boundaries, tool calls, steering) on their own event
// stream. Turn counts LLM turns from 1; 0 marks pre-loop events.
type Event struct {
	Type     EventType `json:"type"`
	Turn     int       `json:"turn"`
	ToolName string    `json:"toolName,omitempty"`
	Content  string    `json:"content,omitempty"`
	IsError  bool      `json:"isError,omitempty"`
}
