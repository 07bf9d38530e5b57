// Package ctxkeys carries conversation identifiers through context so that
// layers below the orchestrator (completer, tool middleware) can tag logs
// without new parameters.
package ctxkeys

import "context"

// contextKey is unexported so keys never collide with other packages.
type contextKey string

const (
	sessionIDKey   contextKey = "session_id"
	participantKey contextKey = "participant"
	turnKey        contextKey = "turn"
)

// WithSessionID stores the conversation session id.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionID returns the session id, if set and non-empty.
func SessionID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(sessionIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithParticipant stores the id of the participant whose turn is running.
func WithParticipant(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, participantKey, id)
}

func Participant(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(participantKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithTurn stores the 1-based turn number.
func WithTurn(ctx context.Context, turn int) context.Context {
	return context.WithValue(ctx, turnKey, turn)
}

func Turn(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(turnKey).(int)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}
