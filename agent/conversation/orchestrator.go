package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/agentwatch/types"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// CheckMode selects when the termination policy is evaluated.
type CheckMode int

const (
	// CheckEveryMessage evaluates the policy after every appended message.
	CheckEveryMessage CheckMode = iota
	// CheckRoundBoundary evaluates it only after a complete round.
	CheckRoundBoundary
)

func (m CheckMode) String() string {
	switch m {
	case CheckEveryMessage:
		return "message"
	case CheckRoundBoundary:
		return "round"
	default:
		return fmt.Sprintf("CheckMode(%d)", int(m))
	}
}

// Config bounds a session.
type Config struct {
	// MaxTurns caps participant turns per session. Must be positive.
	MaxTurns int
	Check    CheckMode
	// SessionTimeout limits a session's wall time; zero disables it.
	SessionTimeout time.Duration
}

// TerminationReason records why a session ended.
type TerminationReason string

const (
	ReasonNone      TerminationReason = ""
	ReasonPolicy    TerminationReason = "policy"
	ReasonMaxTurns  TerminationReason = "max_turns"
	ReasonError     TerminationReason = "error"
	ReasonCancelled TerminationReason = "cancelled"
)

// MetricsRecorder receives turn and session outcomes.
type MetricsRecorder interface {
	RecordTurn(ctx context.Context, participant string, duration time.Duration, err error)
	RecordSession(ctx context.Context, reason TerminationReason, turns int, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordTurn(context.Context, string, time.Duration, error)             {}
func (nopMetrics) RecordSession(context.Context, TerminationReason, int, time.Duration) {}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer sets the tracer for session and turn spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// Orchestrator runs sessions over a fixed participant set. It holds no
// per-session state and may run many sessions concurrently.
type Orchestrator struct {
	participants []*Participant
	policy       TerminationPolicy
	config       Config

	logger  *zap.Logger
	tracer  trace.Tracer
	metrics MetricsRecorder
}

// NewOrchestrator validates the participant set and limits. A nil policy
// means NeverPolicy.
func NewOrchestrator(participants []*Participant, policy TerminationPolicy, cfg Config, opts ...Option) (*Orchestrator, error) {
	var errs []*types.ConfigurationError
	if len(participants) == 0 {
		errs = append(errs, types.NewConfigurationError("participants", "at least one participant is required"))
	}
	seen := make(map[string]bool, len(participants))
	for i, p := range participants {
		if p == nil {
			errs = append(errs, types.NewConfigurationError(fmt.Sprintf("participants[%d]", i), "is nil"))
			continue
		}
		if seen[p.ID()] {
			errs = append(errs, types.NewConfigurationError(fmt.Sprintf("participants[%d]", i), "duplicate id "+p.ID()))
		}
		seen[p.ID()] = true
	}
	if cfg.MaxTurns <= 0 {
		errs = append(errs, types.NewConfigurationError("max_turns", fmt.Sprintf("must be positive, got %d", cfg.MaxTurns)))
	}
	if cfg.Check != CheckEveryMessage && cfg.Check != CheckRoundBoundary {
		errs = append(errs, types.NewConfigurationError("termination_check", "unknown mode "+cfg.Check.String()))
	}
	if cfg.SessionTimeout < 0 {
		errs = append(errs, types.NewConfigurationError("session_timeout", "must not be negative"))
	}
	if err := types.JoinConfigurationErrors(errs); err != nil {
		return nil, err
	}

	if policy == nil {
		policy = NeverPolicy{}
	}

	o := &Orchestrator{
		participants: append([]*Participant(nil), participants...),
		policy:       policy,
		config:       cfg,
		logger:       zap.NewNop(),
		tracer:       noop.NewTracerProvider().Tracer(""),
		metrics:      nopMetrics{},
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.With(zap.String("component", "conversation"))
	return o, nil
}

// Participants returns the participants in speaking order.
func (o *Orchestrator) Participants() []*Participant {
	return append([]*Participant(nil), o.participants...)
}

// Config returns the session limits.
func (o *Orchestrator) Config() Config { return o.config }

// Result summarizes a finished session.
type Result struct {
	SessionID string
	// Messages are the participant messages produced in this session.
	Messages []Message
	// Transcript is the full transcript, including seeded history and the
	// user input.
	Transcript []Message
	Turns      int
	Reason     TerminationReason
	StartTime  time.Time
	EndTime    time.Time
}

// Run drives a fresh session to completion. On error the returned Result
// still carries the partial transcript.
func (o *Orchestrator) Run(ctx context.Context, input string, opts ...SessionOption) (*Result, error) {
	s := o.NewSession(opts...)
	start := time.Now()
	var (
		produced []Message
		runErr   error
	)
	for msg, err := range s.Submit(ctx, input) {
		if err != nil {
			runErr = err
			break
		}
		produced = append(produced, msg)
	}
	return &Result{
		SessionID:  s.ID(),
		Messages:   produced,
		Transcript: s.Transcript(),
		Turns:      s.Turns(),
		Reason:     s.Reason(),
		StartTime:  start,
		EndTime:    time.Now(),
	}, runErr
}

// classify maps a failed turn to a termination reason.
func classify(ctx context.Context, err error) TerminationReason {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ReasonCancelled
	}
	return ReasonError
}
