package genkit

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

type Role string

func (r Role) String() string {
	return string(r)
}

// MessageChunk is one streamed piece of a model reply.
type MessageChunk struct {
	Role Role
	Text string
}

// Message is one complete conversation entry.
type Message struct {
	Role Role
	Name string
	Text string
}

// Prompt is a named system prompt segment.
type Prompt struct {
	Name string
	Text string
}
