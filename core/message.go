package core

// Conversation roles. Plain strings keep serialization and provider mapping
// straightforward.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ToolCall describes a tool invocation requested by the model. Arguments is
// the raw JSON text exactly as produced by the backend; it is deserialized
// only at the point of execution.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is one entry in a turn's working conversation. Assistant messages
// emitted mid-cycle may carry pending ToolCalls; tool messages carry the
// ToolCallID and Name identifying the call they answer.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	Name       string     `json:"name,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// SystemMessage constructs a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// UserMessage constructs a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage constructs an assistant-role text message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// AssistantToolCallMessage constructs an assistant message carrying pending
// tool call requests, as emitted mid-cycle by the native tool-call loop.
func AssistantToolCallMessage(content string, calls []ToolCall) Message {
	return Message{Role: RoleAssistant, Content: content, ToolCalls: calls}
}

// ToolMessage constructs a tool-role message answering the identified call.
func ToolMessage(callID, name, content string) Message {
	return Message{Role: RoleTool, Content: content, Name: name, ToolCallID: callID}
}

// TailWithoutSystem returns the last n messages with system-role entries
// stripped. Used to build the bounded decision/planning context windows.
func TailWithoutSystem(messages []Message, n int) []Message {
	filtered := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		filtered = append(filtered, m)
	}
	if n > 0 && len(filtered) > n {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}
