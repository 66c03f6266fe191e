// Package model defines the completion abstraction (Model) used by the
// routers and the collaboration orchestrator, plus a MockModel for tests.
//
// Provider adapters live in sub-packages (openai, anthropic, gemini) and turn
// a Request (system prompt, user prompt, history, temperature) into a single
// non-streaming completion.
package model
