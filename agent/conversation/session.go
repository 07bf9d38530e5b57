package conversation

import (
	"context"
	"errors"
	"iter"
	"sync"
	"time"

	"github.com/BaSui01/agentwatch/internal/ctxkeys"
	"github.com/BaSui01/agentwatch/types"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	// ErrSessionConsumed is yielded when Submit is ranged over a session
	// that already ran.
	ErrSessionConsumed = errors.New("conversation: session already consumed")
	// ErrStopped is recorded when the consumer stops ranging early.
	ErrStopped = errors.New("conversation: consumer stopped iteration")
)

// State is the lifecycle state of a session.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithHistory seeds the transcript with earlier messages, typically the
// previous session's transcript. Seeded messages do not count as turns.
func WithHistory(msgs []Message) SessionOption {
	return func(s *Session) {
		s.transcript = cloneMessages(msgs)
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is one bounded run from a user input to termination. It has a
// single writer (the goroutine ranging over Submit); the accessors are safe
// to call from other goroutines.
type Session struct {
	id   string
	orch *Orchestrator

	mu         sync.RWMutex
	transcript []Message
	turns      int
	state      State
	reason     TerminationReason
	err        error
}

// NewSession creates an idle session.
func (o *Orchestrator) NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:   uuid.NewString(),
		orch: o,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Session) ID() string { return s.id }

// Transcript returns a copy of the transcript so far.
func (s *Session) Transcript() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneMessages(s.transcript)
}

// Turns returns the number of participant turns taken.
func (s *Session) Turns() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.turns
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Reason returns why the session ended, or ReasonNone while it runs.
func (s *Session) Reason() TerminationReason {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reason
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// Submit appends the user input and returns the stream of participant
// messages. The stream is lazy and single-pass: nothing runs until it is
// ranged over, and ranging a second time yields ErrSessionConsumed. A
// session-ending error is yielded as the final element.
func (s *Session) Submit(ctx context.Context, input string) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		if !s.start(input) {
			yield(Message{}, ErrSessionConsumed)
			return
		}
		s.run(ctx, yield)
	}
}

// start moves Idle -> Running and appends the user message.
func (s *Session) start(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateIdle {
		return false
	}
	s.state = StateRunning
	s.transcript = append(s.transcript, Message{
		ID:         uuid.NewString(),
		Author:     UserAuthor,
		AuthorName: UserAuthor,
		Role:       types.RoleUser,
		Content:    input,
		Timestamp:  time.Now(),
	})
	return true
}

func (s *Session) run(ctx context.Context, yield func(Message, error) bool) {
	o := s.orch
	cfg := o.config
	start := time.Now()
	logger := o.logger.With(zap.String("session_id", s.id))
	ctx = ctxkeys.WithSessionID(ctx, s.id)

	ctx, span := o.tracer.Start(ctx, "conversation.session",
		trace.WithAttributes(
			attribute.String("conversation.session.id", s.id),
			attribute.Int("conversation.participants", len(o.participants)),
			attribute.Int("conversation.max_turns", cfg.MaxTurns),
			attribute.String("conversation.termination_check", cfg.Check.String()),
		),
	)
	if cfg.SessionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.SessionTimeout)
		defer cancel()
	}

	logger.Info("session started",
		zap.Int("participants", len(o.participants)),
		zap.Int("max_turns", cfg.MaxTurns),
		zap.Int("history", len(s.Transcript())-1),
	)

	defer func() {
		// a panicking responder must not leave the session Running
		if s.State() == StateRunning {
			s.terminate(ReasonError, errors.New("conversation: session aborted"))
		}
		reason, turns, err := s.Reason(), s.Turns(), s.Err()
		elapsed := time.Since(start)

		span.SetAttributes(
			attribute.String("conversation.termination_reason", string(reason)),
			attribute.Int("conversation.turns", turns),
		)
		fields := []zap.Field{
			zap.String("reason", string(reason)),
			zap.Int("turns", turns),
			zap.Duration("duration", elapsed),
		}
		if err != nil && !errors.Is(err, ErrStopped) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			logger.Warn("session terminated", append(fields, zap.Error(err))...)
		} else {
			logger.Info("session terminated", fields...)
		}
		o.metrics.RecordSession(ctx, reason, turns, elapsed)
		span.End()
	}()

	last := len(o.participants) - 1
	for {
		for i, p := range o.participants {
			if err := ctx.Err(); err != nil {
				s.terminate(ReasonCancelled, err)
				yield(Message{}, err)
				return
			}

			msg, err := s.turn(ctx, p)
			if err != nil {
				s.terminate(classify(ctx, err), err)
				yield(Message{}, err)
				return
			}

			turns, transcript := s.append(msg)
			logger.Debug("turn completed",
				zap.String("participant", p.ID()),
				zap.Int("turn", turns),
				zap.Int("content_length", len(msg.Content)),
			)

			// In round mode the policy only runs on the round's last message.
			checkPolicy := cfg.Check == CheckEveryMessage || i == last
			reason := ReasonNone
			switch {
			case checkPolicy && o.policy.ShouldTerminate(transcript):
				reason = ReasonPolicy
			case turns >= cfg.MaxTurns:
				reason = ReasonMaxTurns
			}
			if reason != ReasonNone {
				s.terminate(reason, nil)
				yield(msg, nil)
				return
			}

			if !yield(msg, nil) {
				s.terminate(ReasonCancelled, ErrStopped)
				return
			}
		}
	}
}

// turn runs one participant under a span and records its outcome.
func (s *Session) turn(ctx context.Context, p *Participant) (Message, error) {
	o := s.orch
	ctx, span := o.tracer.Start(ctx, "conversation.turn",
		trace.WithAttributes(
			attribute.String("conversation.session.id", s.id),
			attribute.String("conversation.participant.id", p.ID()),
			attribute.String("conversation.participant.name", p.DisplayName()),
			attribute.Int("conversation.turn", s.Turns()+1),
		),
	)
	defer span.End()

	ctx = ctxkeys.WithTurn(ctxkeys.WithParticipant(ctx, p.ID()), s.Turns()+1)
	start := time.Now()
	msg, err := p.ProduceResponse(ctx, s.Transcript())
	o.metrics.RecordTurn(ctx, p.ID(), time.Since(start), err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Message{}, err
	}
	span.SetAttributes(attribute.String("conversation.message.id", msg.ID))
	return msg, nil
}

// append commits msg and returns the new turn count with a transcript
// snapshot for the policy.
func (s *Session) append(msg Message) (int, []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, msg)
	s.turns++
	return s.turns, cloneMessages(s.transcript)
}

// terminate is idempotent; the first reason wins.
func (s *Session) terminate(reason TerminationReason, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateTerminated {
		return
	}
	s.state = StateTerminated
	s.reason = reason
	s.err = err
}
