package executor

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SethBurkart123/covalt/pkg/agent"
	"github.com/SethBurkart123/covalt/pkg/flow"
	"github.com/SethBurkart123/covalt/pkg/llm"
)

// ClientFactory resolves a model spec to an LLM client. The default
// implementation goes through the provider registry.
type ClientFactory func(spec ModelSpec) (llm.Client, error)

// DefaultClientFactory builds clients via the llm provider registry.
func DefaultClientFactory(spec ModelSpec) (llm.Client, error) {
	return llm.NewClient(spec.ModelID())
}

// RegisterAIExecutors wires the executors that call out to language
// models. toolTable maps tool names (referenced by toolset nodes) to
// their implementations; nil is valid and yields tool-less agents.
func RegisterAIExecutors(reg *Registry, factory ClientFactory, toolTable map[string]agent.Tool) error {
	if factory == nil {
		factory = DefaultClientFactory
	}
	execs := []NodeExecutor{
		&completionExecutor{factory: factory},
		&agentExecutor{factory: factory, toolTable: toolTable},
	}
	for _, e := range execs {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// modelSpecFromValue unpacks a model socket payload.
func modelSpecFromValue(v DataValue) (ModelSpec, bool) {
	switch spec := v.Value.(type) {
	case ModelSpec:
		return spec, true
	case map[string]any:
		out := ModelSpec{}
		out.Provider, _ = spec["provider"].(string)
		out.Model, _ = spec["model"].(string)
		if t, ok := spec["temperature"].(float64); ok {
			out.Temperature = &t
		}
		return out, out.Model != ""
	default:
		return ModelSpec{}, false
	}
}

// completionExecutor performs a single blocking LLM generation.
type completionExecutor struct {
	factory ClientFactory
}

func (completionExecutor) NodeType() string { return "llm-completion" }

func (c *completionExecutor) Execute(ctx context.Context, data map[string]any, inputs map[string]DataValue, _ *ExecContext) (Outputs, error) {
	spec, ok := modelSpecFromValue(inputs["model"])
	if !ok {
		return nil, fmt.Errorf("llm-completion: no model connected")
	}

	prompt := ""
	if v, ok := inputs["prompt"]; ok {
		prompt = Stringify(v)
	} else if s, ok := data["prompt"].(string); ok {
		prompt = s
	}
	if prompt == "" {
		return nil, fmt.Errorf("llm-completion: empty prompt")
	}

	client, err := c.factory(spec)
	if err != nil {
		return nil, fmt.Errorf("llm-completion: %w", err)
	}

	resp, err := client.Complete(ctx, llm.GenerateRequest{
		Model:       spec.Model,
		Messages:    []llm.Message{llm.TextMessage(llm.RoleUser, prompt)},
		Temperature: spec.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("llm-completion: %w", err)
	}

	var text string
	for _, b := range resp.Content {
		if b.Type == llm.ContentTypeText {
			text += b.Text
		}
	}
	return Outputs{"text": {Type: flow.SocketString, Value: text}}, nil
}

// agentExecutor runs the tool-use loop behind an agent node. Tools are
// resolved from the node's link attachments: toolset nodes contribute
// entries from the tool table, sub-agents are exposed as callable tools.
type agentExecutor struct {
	factory   ClientFactory
	toolTable map[string]agent.Tool
}

func (agentExecutor) NodeType() string { return "agent" }

func (a *agentExecutor) Execute(ctx context.Context, data map[string]any, inputs map[string]DataValue, ec *ExecContext) (Outputs, error) {
	spec, hasModel := modelSpecFromValue(inputs["model"])

	instruction := ec.UserMessage
	if v, ok := inputs["input"]; ok {
		instruction = Stringify(v)
	}
	if instruction == "" {
		return nil, fmt.Errorf("agent: no input message")
	}

	system := ""
	if v, ok := inputs["system"]; ok {
		system = Stringify(v)
	} else if s, ok := data["system"].(string); ok {
		system = s
	}

	tools := a.resolveTools(ec)

	var client llm.Client
	var err error
	if hasModel {
		client, err = a.factory(spec)
	} else {
		client, err = a.factory(ModelSpec{Provider: "anthropic", Model: "claude-sonnet-4-5"})
	}
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	var opts []agent.Option
	opts = append(opts, agent.WithSystem(system))
	if hasModel {
		opts = append(opts, agent.WithModel(spec.Model))
	}

	// Surface loop activity (tool calls, steering, turn boundaries) on
	// the run's event stream while the node executes.
	if ec.Emit != nil {
		events := make(chan agent.Event, 16)
		drained := make(chan struct{})
		go func() {
			defer close(drained)
			for ev := range events {
				ec.Emit(progressEvent(ec.NodeID, ev))
			}
		}()
		opts = append(opts, agent.WithEvents(events))
		defer func() {
			close(events)
			<-drained
		}()
	}
	loop := agent.NewLoop(client, tools, opts...)

	res, err := loop.Run(ctx, instruction)
	if err != nil {
		return nil, fmt.Errorf("agent: %w", err)
	}

	return Outputs{
		"response": {
			Type:  flow.SocketMessage,
			Value: map[string]any{"role": "assistant", "content": res.Output},
		},
	}, nil
}

// progressEvent maps one agent loop event onto the run event stream.
func progressEvent(nodeID string, ev agent.Event) Event {
	data := map[string]any{
		"stage": string(ev.Type),
		"turn":  ev.Turn,
	}
	if ev.ToolName != "" {
		data["tool"] = ev.ToolName
	}
	if ev.Content != "" {
		data["content"] = ev.Content
	}
	if ev.IsError {
		data["isError"] = true
	}
	return Event{NodeID: nodeID, NodeType: "agent", Type: EventProgress, Data: data}
}

// resolveTools walks the agent's tools socket link attachments.
func (a *agentExecutor) resolveTools(ec *ExecContext) []agent.Tool {
	var out []agent.Tool
	for _, src := range ec.Runtime.LinkSources(ec.NodeID, "tools") {
		switch src.Type {
		case "toolset":
			enabled, _ := src.Data["enabled"].([]any)
			for _, name := range enabled {
				if s, ok := name.(string); ok {
					if tool, ok := a.toolTable[s]; ok {
						out = append(out, tool)
					}
				}
			}
		case "agent":
			out = append(out, a.subAgentTool(src))
		}
	}
	return out
}

// subAgentTool exposes an attached agent node as a tool: calling it runs
// that node's own agent loop with the given task.
func (a *agentExecutor) subAgentTool(node flow.FlowNode) agent.Tool {
	name, _ := node.Data["name"].(string)
	if name == "" {
		name = "agent_" + node.ID[:min(8, len(node.ID))]
	}
	return &agent.FuncTool{
		ToolName:        name,
		ToolDescription: "Delegate a task to a specialized sub-agent.",
		Schema:          []byte(`{"type":"object","properties":{"task":{"type":"string"}},"required":["task"]}`),
		Fn: func(ctx context.Context, input json.RawMessage) (string, error) {
			var req struct {
				Task string `json:"task"`
			}
			if err := json.Unmarshal(input, &req); err != nil {
				return "", err
			}
			system, _ := node.Data["system"].(string)
			client, err := a.factory(ModelSpec{Provider: "anthropic", Model: "claude-sonnet-4-5"})
			if err != nil {
				return "", err
			}
			sub := agent.NewLoop(client, nil, agent.WithSystem(system))
			res, err := sub.Run(ctx, req.Task)
			if err != nil {
				return "", err
			}
			return res.Output, nil
		},
	}
}
