// Package catalog provides the built-in node definitions and a YAML
// loader for user-supplied ones.
package catalog

import (
	"fmt"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

func f64(v float64) *float64 { return &v }

// Builtin returns a registry populated with every built-in node type.
func Builtin() (*flow.DefinitionRegistry, error) {
	reg := flow.NewDefinitionRegistry()
	for _, def := range builtinDefinitions() {
		if err := reg.Register(def); err != nil {
			return nil, fmt.Errorf("register builtin %q: %w", def.ID, err)
		}
	}
	return reg, nil
}

func builtinDefinitions() []*flow.NodeDefinition {
	return []*flow.NodeDefinition{
		{
			ID:       "chat-start",
			Name:     "Chat Start",
			Category: flow.CategoryTrigger,
			Icon:     "message-circle",
			Parameters: []flow.Parameter{
				{
					ID:    "agent",
					Type:  flow.SocketAgent,
					Label: "Agent",
					Mode:  flow.ModeOutput,
					// A chat session drives exactly one agent; dropping a
					// second connection moves the wire.
					MaxConnections: 1,
					OnExceedMax:    flow.OverflowReplace,
				},
				{
					ID:    "message",
					Type:  flow.SocketMessage,
					Label: "User Message",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "webhook-trigger",
			Name:     "Webhook",
			Category: flow.CategoryTrigger,
			Icon:     "webhook",
			Parameters: []flow.Parameter{
				{
					ID:      "path",
					Type:    flow.SocketString,
					Label:   "Path",
					Mode:    flow.ModeConstant,
					Default: "/hooks/incoming",
				},
				{
					ID:    "payload",
					Type:  flow.SocketJSON,
					Label: "Payload",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "agent",
			Name:     "Agent",
			Category: flow.CategoryAI,
			Icon:     "bot",
			Parameters: []flow.Parameter{
				{
					ID:      "system",
					Type:    flow.SocketString,
					Label:   "System Prompt",
					Mode:    flow.ModeHybrid,
					Default: "",
				},
				{
					ID:    "model",
					Type:  flow.SocketModel,
					Label: "Model",
					Mode:  flow.ModeInput,
				},
				{
					ID:    "tools",
					Type:  flow.SocketTools,
					Label: "Tools",
					Mode:  flow.ModeInput,
					// Sub-agents plug straight into the tools socket.
					AcceptsTypes: []flow.SocketType{flow.SocketTools, flow.SocketAgent},
				},
				{
					ID:    "input",
					Type:  flow.SocketMessage,
					Label: "Input",
					Mode:  flow.ModeInput,
				},
				{
					ID:    "response",
					Type:  flow.SocketMessage,
					Label: "Response",
					Mode:  flow.ModeOutput,
				},
				{
					ID:    "self",
					Type:  flow.SocketAgent,
					Label: "Agent",
					Mode:  flow.ModeOutput,
					Socket: &flow.SocketSpec{
						Type:    flow.SocketAgent,
						Side:    flow.SideOutput,
						Channel: flow.ChannelLink,
					},
				},
			},
		},
		{
			ID:       "model-selector",
			Name:     "Model",
			Category: flow.CategoryAI,
			Icon:     "cpu",
			Parameters: []flow.Parameter{
				{
					ID:      "provider",
					Type:    flow.SocketString,
					Label:   "Provider",
					Mode:    flow.ModeConstant,
					Default: "anthropic",
					Options: []string{"anthropic", "openai"},
				},
				{
					ID:      "model",
					Type:    flow.SocketString,
					Label:   "Model ID",
					Mode:    flow.ModeConstant,
					Default: "claude-sonnet-4-5",
				},
				{
					ID:      "temperature",
					Type:    flow.SocketFloat,
					Label:   "Temperature",
					Mode:    flow.ModeConstant,
					Default: 1.0,
					Range:   &flow.NumberRange{Min: f64(0), Max: f64(2), Step: 0.1},
				},
				{
					ID:    "out",
					Type:  flow.SocketModel,
					Label: "Model",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "llm-completion",
			Name:     "LLM Completion",
			Category: flow.CategoryAI,
			Icon:     "sparkles",
			Parameters: []flow.Parameter{
				{
					ID:    "model",
					Type:  flow.SocketModel,
					Label: "Model",
					Mode:  flow.ModeInput,
				},
				{
					ID:      "prompt",
					Type:    flow.SocketString,
					Label:   "Prompt",
					Mode:    flow.ModeHybrid,
					Default: "",
				},
				{
					ID:    "text",
					Type:  flow.SocketString,
					Label: "Completion",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "toolset",
			Name:     "Toolset",
			Category: flow.CategoryTools,
			Icon:     "wrench",
			Parameters: []flow.Parameter{
				{
					ID:      "enabled",
					Type:    flow.SocketJSON,
					Label:   "Enabled Tools",
					Mode:    flow.ModeConstant,
					Default: []any{},
				},
				{
					ID:    "tools",
					Type:  flow.SocketTools,
					Label: "Tools",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "mcp-server",
			Name:     "MCP Server",
			Category: flow.CategoryTools,
			Icon:     "server",
			Parameters: []flow.Parameter{
				{
					ID:      "url",
					Type:    flow.SocketString,
					Label:   "Server URL",
					Mode:    flow.ModeConstant,
					Default: "",
				},
				{
					ID:    "tools",
					Type:  flow.SocketTools,
					Label: "Tools",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       flow.RerouteType,
			Name:     "Reroute",
			Category: flow.CategoryUtility,
			Icon:     "git-commit",
			Parameters: []flow.Parameter{
				{
					ID:    flow.RerouteInputHandle,
					Type:  flow.SocketData,
					Label: "In",
					Mode:  flow.ModeInput,
				},
				{
					ID:    flow.RerouteOutputHandle,
					Type:  flow.SocketData,
					Label: "Out",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "conditional",
			Name:     "Conditional",
			Category: flow.CategoryFlow,
			Icon:     "git-branch",
			Parameters: []flow.Parameter{
				{
					ID:    "input",
					Type:  flow.SocketData,
					Label: "Input",
					Mode:  flow.ModeInput,
				},
				{
					ID:      "field",
					Type:    flow.SocketString,
					Label:   "Field",
					Mode:    flow.ModeConstant,
					Default: "",
				},
				{
					ID:      "operator",
					Type:    flow.SocketString,
					Label:   "Operator",
					Mode:    flow.ModeConstant,
					Default: "equals",
					Options: []string{
						"equals", "contains", "greaterThan", "lessThan",
						"startsWith", "endsWith", "exists", "isEmpty",
					},
				},
				{
					ID:    "value",
					Type:  flow.SocketString,
					Label: "Value",
					Mode:  flow.ModeConstant,
				},
				{
					ID:      "caseSensitive",
					Type:    flow.SocketBoolean,
					Label:   "Case Sensitive",
					Mode:    flow.ModeConstant,
					Default: true,
				},
				{
					ID:    "true",
					Type:  flow.SocketData,
					Label: "True",
					Mode:  flow.ModeOutput,
				},
				{
					ID:    "false",
					Type:  flow.SocketData,
					Label: "False",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "merge",
			Name:     "Merge",
			Category: flow.CategoryFlow,
			Icon:     "git-merge",
			Parameters: []flow.Parameter{
				{
					ID:         "in",
					Type:       flow.SocketData,
					Label:      "Input",
					Mode:       flow.ModeInput,
					AutoExpand: &flow.AutoExpand{Min: 2, Max: 16},
				},
				{
					ID:    "out",
					Type:  flow.SocketData,
					Label: "Merged",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "prompt-template",
			Name:     "Prompt Template",
			Category: flow.CategoryData,
			Icon:     "file-text",
			Parameters: []flow.Parameter{
				{
					ID:      "template",
					Type:    flow.SocketString,
					Label:   "Template",
					Mode:    flow.ModeConstant,
					Default: "",
				},
				{
					ID:         "var",
					Type:       flow.SocketString,
					Label:      "Variable",
					Mode:       flow.ModeInput,
					AutoExpand: &flow.AutoExpand{Min: 1, Max: 16},
				},
				{
					ID:    "text",
					Type:  flow.SocketString,
					Label: "Rendered",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "code",
			Name:     "Code",
			Category: flow.CategoryUtility,
			Icon:     "code",
			Parameters: []flow.Parameter{
				{
					ID:      "source",
					Type:    flow.SocketString,
					Label:   "Expression",
					Mode:    flow.ModeConstant,
					Default: "",
				},
				{
					ID:         "in",
					Type:       flow.SocketData,
					Label:      "Input",
					Mode:       flow.ModeInput,
					AutoExpand: &flow.AutoExpand{Min: 1, Max: 8},
				},
				{
					ID:    "out",
					Type:  flow.SocketData,
					Label: "Result",
					Mode:  flow.ModeOutput,
				},
			},
		},
		{
			ID:       "webhook-end",
			Name:     "Webhook Response",
			Category: flow.CategoryCore,
			Icon:     "check-circle",
			Parameters: []flow.Parameter{
				{
					ID:    "body",
					Type:  flow.SocketData,
					Label: "Body",
					Mode:  flow.ModeInput,
				},
				{
					ID:      "status",
					Type:    flow.SocketInt,
					Label:   "Status",
					Mode:    flow.ModeConstant,
					Default: 200,
					Range:   &flow.NumberRange{Min: f64(100), Max: f64(599), Step: 1},
				},
			},
		},
	}
}
