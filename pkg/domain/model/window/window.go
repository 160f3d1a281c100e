package window

import "strings"

// Role of a message sent to the generation service.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Window is the ordered message list of one generation call. It is built per
// request and never persisted.
type Window []Message

// SystemPrompt joins the leading run of system messages.
func (w Window) SystemPrompt() string {
	var parts []string
	for _, m := range w {
		if m.Role != RoleSystem {
			break
		}
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}

// Turns returns the messages between the leading system block and the final
// message.
func (w Window) Turns() []Message {
	start := 0
	for start < len(w) && w[start].Role == RoleSystem {
		start++
	}
	if start >= len(w)-1 {
		return nil
	}
	return w[start : len(w)-1]
}

// Last returns the final message, which is the input of the call.
func (w Window) Last() (Message, bool) {
	if len(w) == 0 {
		return Message{}, false
	}
	return w[len(w)-1], true
}

// Size is the number of characters across all messages.
func (w Window) Size() int {
	n := 0
	for _, m := range w {
		n += len(m.Content)
	}
	return n
}
