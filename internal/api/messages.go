package api

import (
	"context"
	"sync"
)

// Messages collects the user-visible warnings and errors one request
// produced, so the handler can return them in the response envelope.
type Messages struct {
	mu       sync.Mutex
	warnings []string
	errors   []string
}

func NewMessages() *Messages {
	return &Messages{}
}

func (m *Messages) Warn(ctx context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.warnings = append(m.warnings, text)
}

func (m *Messages) Error(ctx context.Context, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, text)
}

func (m *Messages) Warnings() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.warnings...)
}

func (m *Messages) Errors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.errors...)
}
