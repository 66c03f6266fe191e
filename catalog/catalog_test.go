package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/internal/testutil"
)

func TestInMemoryCatalog_ListAgentsEligibleSortedByName(t *testing.T) {
	c := NewInMemoryCatalog(
		testutil.NewAgentBuilder("3", "zed").Build(),
		testutil.NewAgentBuilder("1", "amy").Build(),
		testutil.NewAgentBuilder("2", "bob").Inactive().Build(),
		testutil.NewAgentBuilder("4", "grader").Category("system").Build(),
	)

	agents, err := c.ListAgents(context.Background())
	require.NoError(t, err)
	require.Len(t, agents, 2)
	assert.Equal(t, "amy", agents[0].Name)
	assert.Equal(t, "zed", agents[1].Name)
}

func TestInMemoryCatalog_Lookup(t *testing.T) {
	ctx := context.Background()
	c := NewInMemoryCatalog(testutil.Tutors()...)

	a, err := c.GetAgent(ctx, "agent-beatrice")
	require.NoError(t, err)
	assert.Equal(t, "Beatrice", a.DisplayName)

	a, err = c.GetAgentByName(ctx, "Direct-Helper")
	require.NoError(t, err)
	assert.Equal(t, "agent-direct", a.ID)

	_, err = c.GetAgent(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrAgentNotFoundOrInactive)
	assert.ErrorIs(t, err, core.ErrNotFound)

	a.DisplayName = "mutated"
	again, err := c.GetAgent(ctx, "agent-direct")
	require.NoError(t, err)
	assert.Equal(t, "Direct Helper", again.DisplayName)
}

func TestInMemoryCatalog_PutRejectsDuplicateName(t *testing.T) {
	c := NewInMemoryCatalog(testutil.NewAgentBuilder("1", "amy").Build())
	err := c.Put(testutil.NewAgentBuilder("2", "AMY").Build())
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

const seed = `
agents:
  - name: beatrice
    display_name: Beatrice
    description: Supportive mentor
    system_prompt: You are Beatrice.
    temperature: 0.8
    dos: ["Acknowledge feelings", "  "]
    donts: []
  - id: custom-id
    name: retired
    is_active: false
`

func TestLoadYAML(t *testing.T) {
	agents, err := LoadYAML(strings.NewReader(seed))
	require.NoError(t, err)
	require.Len(t, agents, 2)

	b := agents[0]
	assert.Equal(t, "agent-beatrice", b.ID)
	assert.Equal(t, core.CategoryTutor, b.Category)
	assert.True(t, b.IsActive)
	assert.Equal(t, 0.8, b.Temperature)
	assert.Equal(t, []string{"Acknowledge feelings"}, b.Dos())
	assert.Nil(t, b.Donts())

	r := agents[1]
	assert.Equal(t, "custom-id", r.ID)
	assert.Equal(t, "retired", r.DisplayName)
	assert.False(t, r.Eligible())
}

func TestLoadYAML_Errors(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("agents:\n  - display_name: nobody\n"))
	assert.ErrorIs(t, err, core.ErrInvalidArgument)

	_, err = LoadYAML(strings.NewReader("agents:\n  - name: x\n    colour: red\n"))
	assert.Error(t, err)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o600))

	agents, err := LoadYAMLFile(path)
	require.NoError(t, err)
	assert.Len(t, agents, 2)

	_, err = LoadYAMLFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
