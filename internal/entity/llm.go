package entity

// Chat roles understood by the language model endpoint.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// ChatMessage is one turn of a chat-style language model request.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
