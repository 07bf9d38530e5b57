// Package mocks provides scripted test doubles.
package mocks

import (
	"context"
	"errors"
	"sync"

	"github.com/BaSui01/agentwatch/llm"
	"github.com/BaSui01/agentwatch/testutil/fixtures"
)

// ErrScriptExhausted is returned when a scripted provider runs out of
// responses and has no fallback.
var ErrScriptExhausted = errors.New("mock provider: script exhausted")

// MockProviderCall records one Completion call.
type MockProviderCall struct {
	Request  *llm.ChatRequest
	Response *llm.ChatResponse
	Error    error
}

// MockProvider is a scripted llm.Provider. Responses are served in order;
// once the script is exhausted the fallback response (if any) repeats.
type MockProvider struct {
	mu sync.Mutex

	script   []*llm.ChatResponse
	fallback *llm.ChatResponse
	err      error
	failAt   int // 1-based call index that fails with err; 0 means every call when err is set
	fn       func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)

	calls []MockProviderCall
}

// NewMockProvider creates a provider that answers "Mock response".
func NewMockProvider() *MockProvider {
	return &MockProvider{fallback: fixtures.SimpleResponse("Mock response")}
}

// WithResponse sets the fallback text response.
func (m *MockProvider) WithResponse(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = fixtures.SimpleResponse(content)
	return m
}

// WithScript queues responses served before the fallback.
func (m *MockProvider) WithScript(responses ...*llm.ChatResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.script = append(m.script, responses...)
	return m
}

// WithoutFallback makes calls past the script fail with ErrScriptExhausted.
func (m *MockProvider) WithoutFallback() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fallback = nil
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.failAt = 0
	return m
}

// WithErrorAt makes only the n-th call (1-based) fail with err.
func (m *MockProvider) WithErrorAt(n int, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	m.failAt = n
	return m
}

// WithCompletionFunc replaces the scripted behaviour entirely.
func (m *MockProvider) WithCompletionFunc(fn func(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

func (m *MockProvider) Name() string { return "mock" }

// Completion serves the next scripted response. The recorded request is a
// copy, so later mutation by the caller does not affect assertions.
func (m *MockProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *req
	cp.Messages = append([]llm.Message(nil), req.Messages...)
	call := MockProviderCall{Request: &cp}
	n := len(m.calls) + 1

	switch {
	case ctx.Err() != nil:
		call.Error = ctx.Err()
	case m.err != nil && (m.failAt == 0 || m.failAt == n):
		call.Error = m.err
	case m.fn != nil:
		call.Response, call.Error = m.fn(ctx, &cp)
	default:
		call.Response, call.Error = m.next()
	}

	m.calls = append(m.calls, call)
	return call.Response, call.Error
}

// next pops the script; it must be called with mu held.
func (m *MockProvider) next() (*llm.ChatResponse, error) {
	if len(m.script) > 0 {
		resp := m.script[0]
		m.script = m.script[1:]
		return resp, nil
	}
	if m.fallback == nil {
		return nil, ErrScriptExhausted
	}
	return m.fallback, nil
}

// Calls returns every recorded call.
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockProviderCall(nil), m.calls...)
}

// CallCount returns the number of Completion calls.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// LastRequest returns the most recent request, or nil.
func (m *MockProvider) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}
