package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Message is one prior turn of conversation history handed to the model.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request captures the normalized completion input.
type Request struct {
	SystemPrompt string    `json:"system_prompt"`
	UserPrompt   string    `json:"user_prompt"`
	History      []Message `json:"history,omitempty"`
	Temperature  float64   `json:"temperature"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the completed model reply.
type Response struct {
	Text  string      `json:"text"`
	Model string      `json:"model"` // identifier reported by the provider
	Usage *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "gemini", "mock"
}

// Model is the completion capability consumed by routing and orchestration.
// Complete either returns the full reply or an error; implementations must
// honour context cancellation.
type Model interface {
	Complete(ctx context.Context, req Request) (Response, error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrEmptyCompletion is returned by adapters when the provider answered
// without any text.
var ErrEmptyCompletion = errors.New("empty completion")

// MockModel is a lightweight in‑memory Model useful for tests & examples.
// Replies are looked up by user prompt; failures can be injected with FailWhen.
// It is safe for concurrent use and records every request it receives.
type MockModel struct {
	info Info

	mu        sync.Mutex
	responses map[string]string
	failures  []mockFailure
	calls     []Request
}

type mockFailure struct {
	match func(Request) bool
	err   error
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for a user prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailWhen makes every request matching fn fail with err.
func (m *MockModel) FailWhen(fn func(Request) bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, mockFailure{match: fn, err: err})
}

// FailForSystemPrompt fails requests whose system prompt contains substr.
func (m *MockModel) FailForSystemPrompt(substr string, err error) {
	m.FailWhen(func(r Request) bool { return strings.Contains(r.SystemPrompt, substr) }, err)
}

// Calls returns a copy of the requests received so far.
func (m *MockModel) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Complete implements Model.
func (m *MockModel) Complete(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	failures := m.failures
	full, ok := m.responses[req.UserPrompt]
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{}, err
	}
	for _, f := range failures {
		if f.match(req) {
			return Response{}, f.err
		}
	}
	if !ok {
		full = fmt.Sprintf("Mock response to: %s", req.UserPrompt)
	}
	return Response{Text: full, Model: m.info.Name}, nil
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }

// Func adapts an ordinary function into a Model.
type Func func(ctx context.Context, req Request) (Response, error)

// Complete implements Model.
func (f Func) Complete(ctx context.Context, req Request) (Response, error) { return f(ctx, req) }

// Info implements Model.
func (f Func) Info() Info { return Info{Name: "func", Provider: "func"} }
