// Package mocks provides test doubles for the relay's collaborators.
package mocks

import (
	"context"
	"sync"

	"github.com/ledgerline/ledgerchat/server/relay"
)

// MockRelay implements the handlers.Relay interface without a network. It
// records every Complete call so tests can assert on the exact outbound
// message sequence.
//
// Example usage:
//
//	mock := mocks.NewMockRelay(func(ctx context.Context, messages []relay.Message) (string, error) {
//	    return "mocked reply", nil
//	})
type MockRelay struct {
	CompleteFunc func(context.Context, []relay.Message) (string, error)
	IsConfigured bool
	mu           sync.Mutex
	calls        [][]relay.Message
}

// NewMockRelay creates a configured mock. If completeFunc is nil, Complete
// returns an empty string with no error.
func NewMockRelay(completeFunc func(context.Context, []relay.Message) (string, error)) *MockRelay {
	return &MockRelay{
		CompleteFunc: completeFunc,
		IsConfigured: true,
	}
}

// Configured implements handlers.Relay.
func (m *MockRelay) Configured() bool {
	return m.IsConfigured
}

// Complete implements handlers.Relay, recording the message sequence.
func (m *MockRelay) Complete(ctx context.Context, messages []relay.Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	if m.CompleteFunc == nil {
		return "", nil
	}
	return m.CompleteFunc(ctx, messages)
}

// Calls returns the recorded message sequences, one per Complete call.
func (m *MockRelay) Calls() [][]relay.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]relay.Message(nil), m.calls...)
}
