package conversation

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/agentwatch/types"
	"github.com/google/uuid"
)

// RespondRequest is what a participant hands to its Responder.
type RespondRequest struct {
	Participant *Participant
	// Transcript is a private copy; responders may keep or modify it.
	Transcript []Message
}

// Responder produces a participant's reply. It usually calls a completion
// provider and may run tools; see agent.Completer.
type Responder interface {
	Respond(ctx context.Context, req RespondRequest) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, req RespondRequest) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, req RespondRequest) (string, error) {
	return f(ctx, req)
}

// Participant is a named conversational role with fixed instructions.
// It is immutable and safe to share between sessions.
type Participant struct {
	id           string
	displayName  string
	instructions string
	responder    Responder
}

// NewParticipant validates and builds a participant. An empty display name
// falls back to the id.
func NewParticipant(id, displayName, instructions string, r Responder) (*Participant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, types.NewConfigurationError("participant.id", "is required")
	}
	if id == UserAuthor {
		return nil, types.NewConfigurationError("participant.id", "\"user\" is reserved")
	}
	if r == nil {
		return nil, types.NewConfigurationError("participant."+id+".responder", "is required")
	}
	if displayName == "" {
		displayName = id
	}
	return &Participant{
		id:           id,
		displayName:  displayName,
		instructions: instructions,
		responder:    r,
	}, nil
}

func (p *Participant) ID() string           { return p.id }
func (p *Participant) DisplayName() string  { return p.displayName }
func (p *Participant) Instructions() string { return p.instructions }

// ProduceResponse asks the responder for the next message given the
// transcript so far. The transcript itself is never modified.
func (p *Participant) ProduceResponse(ctx context.Context, transcript []Message) (Message, error) {
	content, err := p.responder.Respond(ctx, RespondRequest{
		Participant: p,
		Transcript:  cloneMessages(transcript),
	})
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         uuid.NewString(),
		Author:     p.id,
		AuthorName: p.displayName,
		Role:       types.RoleAssistant,
		Content:    content,
		Timestamp:  time.Now(),
	}, nil
}
