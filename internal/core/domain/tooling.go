package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ArgumentKind tags the JSON value shapes a model may pass as a tool
// argument.
type ArgumentKind string

const (
	ArgumentString ArgumentKind = "string"
	ArgumentNumber ArgumentKind = "number"
	ArgumentBool   ArgumentKind = "bool"
	ArgumentNull   ArgumentKind = "null"
	// ArgumentJSON carries nested objects/arrays as their serialized form
	// rather than collapsing them through a lossy string conversion.
	ArgumentJSON ArgumentKind = "json"
)

// ArgumentValue is a tagged union over the JSON scalar types. The zero
// value is a null argument.
type ArgumentValue struct {
	Kind ArgumentKind
	Str  string
	Num  float64
	Bool bool
	Raw  string
}

func ArgumentFromJSON(v any) ArgumentValue {
	switch typed := v.(type) {
	case nil:
		return ArgumentValue{Kind: ArgumentNull}
	case string:
		return ArgumentValue{Kind: ArgumentString, Str: typed}
	case float64:
		return ArgumentValue{Kind: ArgumentNumber, Num: typed}
	case bool:
		return ArgumentValue{Kind: ArgumentBool, Bool: typed}
	case json.Number:
		n, err := typed.Float64()
		if err != nil {
			return ArgumentValue{Kind: ArgumentString, Str: typed.String()}
		}
		return ArgumentValue{Kind: ArgumentNumber, Num: n}
	default:
		raw, err := json.Marshal(typed)
		if err != nil {
			return ArgumentValue{Kind: ArgumentString, Str: fmt.Sprint(typed)}
		}
		return ArgumentValue{Kind: ArgumentJSON, Raw: string(raw)}
	}
}

// String is the total coercion to the string form tool executors expect.
func (a ArgumentValue) String() string {
	switch a.Kind {
	case ArgumentString:
		return a.Str
	case ArgumentNumber:
		return strconv.FormatFloat(a.Num, 'f', -1, 64)
	case ArgumentBool:
		return strconv.FormatBool(a.Bool)
	case ArgumentJSON:
		return a.Raw
	default:
		return ""
	}
}

// CoerceArguments converts a model-supplied structured input into the
// string map contract of the tool executor.
func CoerceArguments(input map[string]ArgumentValue) map[string]string {
	out := make(map[string]string, len(input))
	for key, value := range input {
		out[key] = value.String()
	}
	return out
}

func ArgumentsFromJSONMap(input map[string]any) map[string]ArgumentValue {
	out := make(map[string]ArgumentValue, len(input))
	for key, value := range input {
		out[key] = ArgumentFromJSON(value)
	}
	return out
}

// ToolDefinition is the schema advertised to the model.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// ToolUseRequest is emitted by the model inside an assistant turn.
type ToolUseRequest struct {
	ID    string                   `json:"id"`
	Name  string                   `json:"name"`
	Input map[string]ArgumentValue `json:"input,omitempty"`
}

// ToolResult is data, not an exception: a failed execution sets IsError
// and the loop continues so the model can react to the failure.
type ToolResult struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}
