package conversation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scripted replies with the next canned line for its participant.
type scripted struct {
	mu    sync.Mutex
	lines map[string][]string
	calls map[string]int
	seen  [][]Message
}

func newScripted(lines map[string][]string) *scripted {
	return &scripted{lines: lines, calls: map[string]int{}}
}

func (s *scripted) Respond(_ context.Context, req RespondRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := req.Participant.ID()
	n := s.calls[id]
	s.calls[id]++
	s.seen = append(s.seen, req.Transcript)
	if lines := s.lines[id]; n < len(lines) {
		return lines[n], nil
	}
	return fmt.Sprintf("%s reply %d", id, n+1), nil
}

func mustParticipants(t *testing.T, r Responder, ids ...string) []*Participant {
	t.Helper()
	ps := make([]*Participant, 0, len(ids))
	for _, id := range ids {
		p, err := NewParticipant(id, id+"-name", "be "+id, r)
		require.NoError(t, err)
		ps = append(ps, p)
	}
	return ps
}

type metricsSpy struct {
	mu       sync.Mutex
	turns    []string
	turnErrs []error
	sessions []TerminationReason
	counts   []int
}

func (m *metricsSpy) RecordTurn(_ context.Context, participant string, _ time.Duration, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.turns = append(m.turns, participant)
	m.turnErrs = append(m.turnErrs, err)
}

func (m *metricsSpy) RecordSession(_ context.Context, reason TerminationReason, turns int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions = append(m.sessions, reason)
	m.counts = append(m.counts, turns)
}
