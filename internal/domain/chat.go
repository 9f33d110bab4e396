package domain

// Chat roles understood by every completion provider.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// gateway and the provider integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
