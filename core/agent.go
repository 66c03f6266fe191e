package core

import (
	"encoding/json"
	"strings"
	"time"
)

// CategoryTutor is the only agent category that takes part in routing.
const CategoryTutor = "tutor"

// Agent is a configured tutor persona. Behavioural differences between
// personas live entirely in these fields; there is no per-persona code.
//
// DosRules and DontsRules hold the raw serialized rule lists as stored by the
// catalog (a JSON array of strings). They may be empty or malformed; use Dos
// and Donts to read them.
type Agent struct {
	ID           string    `json:"id" yaml:"id"`
	Name         string    `json:"name" yaml:"name"`
	DisplayName  string    `json:"display_name" yaml:"display_name"`
	Description  string    `json:"description" yaml:"description"`
	Personality  string    `json:"personality" yaml:"personality"`
	SystemPrompt string    `json:"system_prompt" yaml:"system_prompt"`
	Temperature  float64   `json:"temperature" yaml:"temperature"`
	DosRules     string    `json:"dos_rules,omitempty" yaml:"-"`
	DontsRules   string    `json:"donts_rules,omitempty" yaml:"-"`
	IsActive     bool      `json:"is_active" yaml:"-"`
	Category     string    `json:"category" yaml:"category"`
	CreatedAt    time.Time `json:"created_at" yaml:"-"`
}

// Eligible reports whether the agent may be routed to.
func (a *Agent) Eligible() bool {
	return a != nil && a.IsActive && a.Category == CategoryTutor
}

// Label returns the display name, falling back to the unique name.
func (a *Agent) Label() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return a.Name
}

// Dos returns the parsed "do" directives.
func (a *Agent) Dos() []string { return ParseRules(a.DosRules) }

// Donts returns the parsed "don't" directives.
func (a *Agent) Donts() []string { return ParseRules(a.DontsRules) }

// Instructions renders the system prompt sent to the model for this agent.
// Rule sections are appended only when they contain at least one directive.
func (a *Agent) Instructions() string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(a.SystemPrompt))

	writeSection := func(title string, rules []string) {
		if len(rules) == 0 {
			return
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(title)
		b.WriteString(":")
		for _, r := range rules {
			b.WriteString("\n- ")
			b.WriteString(r)
		}
	}

	writeSection("DO", a.Dos())
	writeSection("DON'T", a.Donts())

	return b.String()
}

// ParseRules decodes a serialized rule list. Invalid JSON yields nil;
// non-string and blank entries are skipped.
func ParseRules(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil
	}

	rules := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			continue
		}
		if s = strings.TrimSpace(s); s != "" {
			rules = append(rules, s)
		}
	}
	if len(rules) == 0 {
		return nil
	}
	return rules
}

// EncodeRules serializes a rule list into the catalog's storage form.
func EncodeRules(rules []string) string {
	if len(rules) == 0 {
		return ""
	}
	data, err := json.Marshal(rules)
	if err != nil {
		return ""
	}
	return string(data)
}

// FindAgent returns the agent with the given id from a list, or nil.
func FindAgent(agents []*Agent, id string) *Agent {
	for _, a := range agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}
