// Package prompt renders the fixed prompt templates used by routing and
// collaboration. It lives in internal to avoid committing to the wording as
// public API.
package prompt

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

var funcs = template.FuncMap{
	"default": func(defaultVal any, val any) any {
		if val == nil || val == "" {
			return defaultVal
		}
		return val
	},
	"upper": strings.ToUpper,
	"lower": strings.ToLower,
	"trim":  strings.TrimSpace,
}

// MustParse parses a template at init time and panics on syntax errors.
func MustParse(name, text string) *template.Template {
	return template.Must(template.New(name).Funcs(funcs).Parse(text))
}

// Execute runs a pre-parsed template.
func Execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Routing asks the model to pick exactly one agent and answer in strict JSON.
var Routing = MustParse("routing", `You are a routing assistant for a tutoring platform.
Choose the single best tutor to answer the student's message.

Available tutors:
{{- range .Agents}}
- name: {{.Name}}
  display name: {{.DisplayName}}
  description: {{default "n/a" .Description}}
  personality: {{default "n/a" .Personality}}
{{- end}}

Student message:
"""
{{.Message}}
"""

Respond ONLY with a JSON object of the form:
{"selectedAgent": "<tutor name>", "reason": "<short reason>", "confidence": <0..1>, "scores": {"<tutor name>": <0..1>}}
`)

// Turn is one prior contribution shown to a later agent.
type Turn struct {
	Speaker string
	Content string
}

// Sequential hands the running transcript to the next agent in the chain.
var Sequential = MustParse("sequential", `{{.Message}}

Other tutors have already responded to this message:
{{- range .Previous}}

{{.Speaker}}:
{{.Content}}
{{- end}}

Build on what has been said. Add your own perspective, avoid repeating points already made.`)

// Debate asks an agent to respond to the other participants' first-round answers.
var Debate = MustParse("debate", `Original question from the student:
{{.Message}}

Your first answer:
{{.Own}}

The other tutors answered:
{{- range .Others}}

{{.Speaker}}:
{{.Content}}
{{- end}}

Respond to their points. Say where you agree, where you disagree and why. Keep it concise.`)
