package domain

// Role tags a transcript message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of the canonical transcript.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ScenarioState is the replayable state of one game.
type ScenarioState struct {
	IsActive bool      `json:"is_active"`
	Messages []Message `json:"messages"`
}

// Clone returns a deep copy that shares no memory with s.
func (s ScenarioState) Clone() ScenarioState {
	out := ScenarioState{IsActive: s.IsActive}
	if s.Messages != nil {
		out.Messages = make([]Message, len(s.Messages))
		copy(out.Messages, s.Messages)
	}
	return out
}
