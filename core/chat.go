package core

// Role tags a chat message with its author in a provider conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatMessage is one role-tagged entry of a provider request or response.
type ChatMessage struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// SystemMessage, UserMessage and AssistantMessage are small constructors used
// by sessions, providers and tests alike.
func SystemMessage(text string) ChatMessage    { return ChatMessage{Role: RoleSystem, Text: text} }
func UserMessage(text string) ChatMessage      { return ChatMessage{Role: RoleUser, Text: text} }
func AssistantMessage(text string) ChatMessage { return ChatMessage{Role: RoleAssistant, Text: text} }

// CloneMessages returns a copy of msgs that does not alias the input.
func CloneMessages(msgs []ChatMessage) []ChatMessage {
	if msgs == nil {
		return nil
	}
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}
