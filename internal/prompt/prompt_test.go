package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRouting(t *testing.T) {
	type agent struct{ Name, DisplayName, Description, Personality string }

	out, err := Execute(Routing, map[string]any{
		"Message": "why does recursion work?",
		"Agents": []agent{
			{Name: "socratic-tutor", DisplayName: "Socratic Guide", Description: "asks questions"},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, out, "- name: socratic-tutor")
	assert.Contains(t, out, "personality: n/a")
	assert.Contains(t, out, "why does recursion work?")
	assert.Contains(t, out, `"selectedAgent"`)
}

func TestSequentialAndDebate(t *testing.T) {
	out, err := Execute(Sequential, map[string]any{
		"Message":  "explain loops",
		"Previous": []Turn{{Speaker: "Beatrice", Content: "loops repeat"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Beatrice:\nloops repeat")

	out, err = Execute(Debate, map[string]any{
		"Message": "tabs or spaces?",
		"Own":     "tabs",
		"Others":  []Turn{{Speaker: "Sam", Content: "spaces"}},
	})
	require.NoError(t, err)
	assert.Contains(t, out, "Your first answer:\ntabs")
	assert.Contains(t, out, "Sam:\nspaces")
}
