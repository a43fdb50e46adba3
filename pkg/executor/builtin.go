package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"text/template"

	"github.com/SethBurkart123/covalt/pkg/flow"
)

// RegisterBuiltins wires every executor that has no external dependencies.
// The AI executors (agent, llm-completion) carry configuration and are
// registered separately.
func RegisterBuiltins(reg *Registry) error {
	execs := []NodeExecutor{
		&chatStartExecutor{},
		&rerouteExecutor{},
		&mergeExecutor{},
		&conditionalExecutor{},
		&promptTemplateExecutor{},
		&codeExecutor{},
		&modelSelectorExecutor{},
		&webhookEndExecutor{},
	}
	for _, e := range execs {
		if err := reg.Register(e); err != nil {
			return err
		}
	}
	return nil
}

// chatStartExecutor seeds the run with the user's message.
type chatStartExecutor struct{}

func (chatStartExecutor) NodeType() string { return chatStartType }

func (chatStartExecutor) Execute(_ context.Context, _ map[string]any, _ map[string]DataValue, ec *ExecContext) (Outputs, error) {
	return Outputs{
		"message": {
			Type:  flow.SocketMessage,
			Value: map[string]any{"role": "user", "content": ec.UserMessage},
		},
	}, nil
}

// rerouteExecutor passes its input through untouched. A disconnected
// reroute falls back to its configured value, typed by the inferred
// socket type.
type rerouteExecutor struct{}

func (rerouteExecutor) NodeType() string { return flow.RerouteType }

func (rerouteExecutor) Execute(_ context.Context, data map[string]any, inputs map[string]DataValue, _ *ExecContext) (Outputs, error) {
	if v, ok := inputs[flow.RerouteInputHandle]; ok {
		return Outputs{flow.RerouteOutputHandle: v}, nil
	}
	fallback, ok := data["value"]
	if !ok || fallback == nil {
		return Outputs{}, nil
	}
	t := flow.SocketData
	if s, ok := data["_socketType"].(string); ok && s != "" {
		t = flow.SocketType(s)
	}
	return Outputs{flow.RerouteOutputHandle: {Type: t, Value: fallback}}, nil
}

// mergeExecutor collects its indexed inputs into one list, in handle
// order, skipping unconnected slots.
type mergeExecutor struct{}

func (mergeExecutor) NodeType() string { return "merge" }

func (mergeExecutor) Execute(_ context.Context, _ map[string]any, inputs map[string]DataValue, _ *ExecContext) (Outputs, error) {
	type slot struct {
		index int
		value any
	}
	var slots []slot
	for handle, v := range inputs {
		switch {
		case handle == "in":
			slots = append(slots, slot{1, v.Value})
		case strings.HasPrefix(handle, "in_"):
			var n int
			if _, err := fmt.Sscanf(handle, "in_%d", &n); err == nil && n >= 2 {
				slots = append(slots, slot{n, v.Value})
			}
		}
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i].index < slots[j].index })

	values := make([]any, len(slots))
	for i, s := range slots {
		values[i] = s.value
	}
	return Outputs{"out": {Type: flow.SocketData, Value: values}}, nil
}

// conditionalExecutor evaluates a field condition against its input and
// routes the input to exactly one branch. The untaken branch produces
// nothing, so its downstream is a dead branch.
type conditionalExecutor struct{}

func (conditionalExecutor) NodeType() string { return "conditional" }

func (conditionalExecutor) Execute(_ context.Context, data map[string]any, inputs map[string]DataValue, _ *ExecContext) (Outputs, error) {
	field, _ := data["field"].(string)
	operator, _ := data["operator"].(string)
	if operator == "" {
		operator = "equals"
	}
	compare := data["value"]
	caseSensitive := true
	if b, ok := data["caseSensitive"].(bool); ok {
		caseSensitive = b
	}

	input, ok := inputs["input"]
	if !ok {
		input = DataValue{Type: flow.SocketData}
	}

	// Field selects inside a structured input; empty field tests the
	// whole value.
	fieldVal := input.Value
	if field != "" {
		fieldVal = nil
		if m, ok := input.Value.(map[string]any); ok {
			fieldVal = m[field]
		}
		if fieldVal == nil && operator != "exists" {
			return Outputs{"false": input}, nil
		}
	}

	if evaluateCondition(fieldVal, operator, compare, caseSensitive) {
		return Outputs{"true": input}, nil
	}
	return Outputs{"false": input}, nil
}

func evaluateCondition(fieldVal any, operator string, compare any, caseSensitive bool) bool {
	fold := func(s string) string {
		if caseSensitive {
			return s
		}
		return strings.ToLower(s)
	}

	switch operator {
	case "equals":
		if fa, ok := asNumber(fieldVal); ok {
			if fb, ok := asNumber(compare); ok {
				return fa == fb
			}
		}
		if a, ok := fieldVal.(string); ok {
			if b, ok := compare.(string); ok {
				return fold(a) == fold(b)
			}
		}
		return reflect.DeepEqual(fieldVal, compare)
	case "contains":
		return strings.Contains(fold(fmt.Sprint(fieldVal)), fold(fmt.Sprint(compare)))
	case "greaterThan":
		fa, aok := asNumber(fieldVal)
		fb, bok := asNumber(compare)
		return aok && bok && fa > fb
	case "lessThan":
		fa, aok := asNumber(fieldVal)
		fb, bok := asNumber(compare)
		return aok && bok && fa < fb
	case "startsWith":
		return strings.HasPrefix(fold(fmt.Sprint(fieldVal)), fold(fmt.Sprint(compare)))
	case "endsWith":
		return strings.HasSuffix(fold(fmt.Sprint(fieldVal)), fold(fmt.Sprint(compare)))
	case "exists":
		return fieldVal != nil
	case "isEmpty":
		return isEmptyValue(fieldVal)
	}
	return false
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int, int64, float64, json.Number:
		return toFloat(n), true
	}
	return 0, false
}

func isEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case bool:
		return !t
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	if f, ok := asNumber(v); ok {
		return f == 0
	}
	return false
}

// promptTemplateExecutor substitutes {{var}} / {{var_2}} placeholders
// with the string form of the corresponding inputs.
type promptTemplateExecutor struct{}

func (promptTemplateExecutor) NodeType() string { return "prompt-template" }

func (promptTemplateExecutor) Execute(_ context.Context, data map[string]any, inputs map[string]DataValue, _ *ExecContext) (Outputs, error) {
	tmpl, _ := data["template"].(string)
	rendered := tmpl
	for handle, v := range inputs {
		rendered = strings.ReplaceAll(rendered, "{{"+handle+"}}", Stringify(v))
	}
	return Outputs{"text": {Type: flow.SocketString, Value: rendered}}, nil
}

// codeExecutor evaluates the node's source as a text/template over the
// raw input values, keyed by handle.
type codeExecutor struct{}

func (codeExecutor) NodeType() string { return "code" }

func (c codeExecutor) Execute(_ context.Context, data map[string]any, inputs map[string]DataValue, ec *ExecContext) (Outputs, error) {
	source, _ := data["source"].(string)
	if strings.TrimSpace(source) == "" {
		// No transform: pass the primary input through.
		if v, ok := inputs["in"]; ok {
			return Outputs{"out": v}, nil
		}
		return Outputs{"out": {Type: flow.SocketString, Value: ""}}, nil
	}
	tmpl, err := template.New(ec.NodeID).Parse(source)
	if err != nil {
		return nil, fmt.Errorf("parse code template: %w", err)
	}

	scope := make(map[string]any, len(inputs))
	for handle, v := range inputs {
		scope[handle] = v.Value
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, scope); err != nil {
		return nil, fmt.Errorf("evaluate code template: %w", err)
	}
	return Outputs{"out": {Type: flow.SocketString, Value: buf.String()}}, nil
}

// modelSelectorExecutor emits the model spec configured on the node.
type modelSelectorExecutor struct{}

func (modelSelectorExecutor) NodeType() string { return "model-selector" }

func (modelSelectorExecutor) Execute(_ context.Context, data map[string]any, _ map[string]DataValue, _ *ExecContext) (Outputs, error) {
	spec := ModelSpec{Provider: "anthropic"}
	if p, ok := data["provider"].(string); ok && p != "" {
		spec.Provider = p
	}
	if m, ok := data["model"].(string); ok {
		spec.Model = m
	}
	if spec.Model == "" {
		return nil, fmt.Errorf("model-selector: no model configured")
	}
	if t, ok := data["temperature"].(float64); ok {
		spec.Temperature = &t
	}
	return Outputs{"out": {Type: flow.SocketModel, Value: spec}}, nil
}

// webhookEndExecutor terminates a webhook run with a response body and
// status code.
type webhookEndExecutor struct{}

func (webhookEndExecutor) NodeType() string { return "webhook-end" }

func (webhookEndExecutor) Execute(_ context.Context, data map[string]any, inputs map[string]DataValue, _ *ExecContext) (Outputs, error) {
	status := 200
	if s, ok := data["status"].(float64); ok {
		status = int(s)
	} else if s, ok := data["status"].(int); ok {
		status = s
	}
	body := inputs["body"]
	return Outputs{
		"body":   body,
		"status": {Type: flow.SocketInt, Value: status},
	}, nil
}
