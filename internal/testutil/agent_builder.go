package testutil

import (
	"time"

	"github.com/hupe1980/tutormesh/core"
)

// AgentBuilder constructs tutor agents for tests. Agents start active and in
// the tutor category.
type AgentBuilder struct {
	a core.Agent
}

// NewAgentBuilder creates a builder for an agent with the given id and name.
// The display name defaults to the name.
func NewAgentBuilder(id, name string) *AgentBuilder {
	return &AgentBuilder{a: core.Agent{
		ID:          id,
		Name:        name,
		DisplayName: name,
		Temperature: 0.7,
		IsActive:    true,
		Category:    core.CategoryTutor,
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}}
}

func (b *AgentBuilder) DisplayName(s string) *AgentBuilder { b.a.DisplayName = s; return b }
func (b *AgentBuilder) Description(s string) *AgentBuilder { b.a.Description = s; return b }
func (b *AgentBuilder) Personality(s string) *AgentBuilder { b.a.Personality = s; return b }
func (b *AgentBuilder) SystemPrompt(s string) *AgentBuilder { b.a.SystemPrompt = s; return b }
func (b *AgentBuilder) Temperature(t float64) *AgentBuilder { b.a.Temperature = t; return b }
func (b *AgentBuilder) Category(c string) *AgentBuilder { b.a.Category = c; return b }
func (b *AgentBuilder) Inactive() *AgentBuilder { b.a.IsActive = false; return b }

// Dos sets the "do" rules in their serialized form.
func (b *AgentBuilder) Dos(rules ...string) *AgentBuilder {
	b.a.DosRules = core.EncodeRules(rules)
	return b
}

// Donts sets the "don't" rules in their serialized form.
func (b *AgentBuilder) Donts(rules ...string) *AgentBuilder {
	b.a.DontsRules = core.EncodeRules(rules)
	return b
}

// RawRules sets both serialized rule fields verbatim, malformed input included.
func (b *AgentBuilder) RawRules(dos, donts string) *AgentBuilder {
	b.a.DosRules = dos
	b.a.DontsRules = donts
	return b
}

// Build returns a copy of the configured agent.
func (b *AgentBuilder) Build() *core.Agent {
	a := b.a
	return &a
}

// Tutors returns a small, name-ordered pool of eligible personas with
// distinct keyword profiles.
func Tutors() []*core.Agent {
	return []*core.Agent{
		NewAgentBuilder("agent-beatrice", "beatrice").
			DisplayName("Beatrice").
			Description("A supportive, encouraging mentor for stressed students").
			Personality("empathetic and patient").
			SystemPrompt("You are Beatrice, a warm and supportive tutor.").
			Dos("Acknowledge feelings").
			Build(),
		NewAgentBuilder("agent-direct", "direct-helper").
			DisplayName("Direct Helper").
			Description("Clear, concise step-by-step explanations").
			Personality("straightforward").
			SystemPrompt("You are a direct, no-nonsense tutor.").
			Temperature(0.3).
			Build(),
		NewAgentBuilder("agent-socratic", "socratic-tutor").
			DisplayName("Socratic Guide").
			Description("Guides students with questions").
			Personality("curious, reflective").
			SystemPrompt("You are a Socratic tutor. Answer with guiding questions.").
			Donts("Give away the answer").
			Build(),
	}
}
