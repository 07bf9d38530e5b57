package conversation

import (
	"time"

	"github.com/BaSui01/agentwatch/types"
)

// UserAuthor is the author id of messages submitted by the human user.
const UserAuthor = "user"

// Message is one immutable transcript entry.
type Message struct {
	ID         string     `json:"id"`
	Author     string     `json:"author"` // participant id or UserAuthor
	AuthorName string     `json:"author_name,omitempty"`
	Role       types.Role `json:"role"`
	Content    string     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
}

// FromUser reports whether the message was submitted by the user.
func (m Message) FromUser() bool { return m.Author == UserAuthor }

func cloneMessages(msgs []Message) []Message {
	if len(msgs) == 0 {
		return nil
	}
	return append(make([]Message, 0, len(msgs)), msgs...)
}
