package dispatch

import (
	"context"
	"fmt"
	"sync"
)

// MockTransport records requests and fails for configured recipients.
type MockTransport struct {
	// FailFor maps recipient addresses to the error their send returns.
	FailFor map[string]error

	mu       sync.Mutex
	requests []Request
}

// NewMockTransport creates a MockTransport that accepts every send.
func NewMockTransport() *MockTransport {
	return &MockTransport{FailFor: make(map[string]error)}
}

// Send records req and returns the configured error for its recipient.
func (m *MockTransport) Send(ctx context.Context, req Request) error {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err, ok := m.FailFor[req.To]; ok {
		if err == nil {
			return fmt.Errorf("mock failure for %s", req.To)
		}
		return err
	}
	return nil
}

// Requests returns a copy of every request seen, in arrival order.
func (m *MockTransport) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
