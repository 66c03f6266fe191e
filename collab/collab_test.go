package collab

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/internal/testutil"
	"github.com/hupe1980/tutormesh/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestRun_ParallelFailureBecomesPlaceholder(t *testing.T) {
	m := model.NewMockModel("mock-model", "mock")
	m.FailForSystemPrompt("Beatrice", errors.New("provider down"))

	res, err := New(m).Run(context.Background(), Request{
		Message: "@beatrice @direct-helper explain loops",
		Agents:  testutil.Tutors(),
	}, Options{Style: StyleParallel})
	require.NoError(t, err)

	assert.Equal(t, "**Beatrice:** [Beatrice was unable to respond]\n\n**Direct Helper:** Mock response to: explain loops", res.Content)
	assert.Equal(t, []string{"Beatrice", "Direct Helper"}, res.Info.MentionedAgents)
	assert.Equal(t, []string{"Beatrice"}, res.Info.FailedAgents)
	assert.Equal(t, 1, res.Info.TotalRounds)

	require.Len(t, res.Contributions, 2)
	assert.True(t, res.Contributions[0].Failed)
	assert.False(t, res.Contributions[1].Failed)
	assert.Equal(t, "mock-model", res.Model)
	assert.Equal(t, "mock", res.Provider)
}

func TestRun_AllFailuresStillSucceed(t *testing.T) {
	m := model.NewMockModel("mock-model", "mock")
	m.FailWhen(func(model.Request) bool { return true }, errors.New("boom"))

	res, err := New(m).Run(context.Background(), Request{
		Message: "hello there",
		Agents:  testutil.Tutors(),
	}, Options{})
	require.NoError(t, err)

	assert.Len(t, res.Info.FailedAgents, 3)
	for _, a := range res.Participants {
		assert.Contains(t, res.Content, Placeholder(a))
	}
	assert.Equal(t, "mock-model", res.Model)
}

func TestRun_KeywordSelectionHonoursMaxAgents(t *testing.T) {
	m := model.NewMockModel("mock-model", "mock")

	res, err := New(m).Run(context.Background(), Request{
		Message: "why does this work, I want to understand",
		Agents:  testutil.Tutors(),
	}, Options{MaxAgents: 2})
	require.NoError(t, err)

	assert.Equal(t, StyleParallel, res.Info.Style)
	assert.Equal(t, []string{"Socratic Guide", "Beatrice"}, res.Info.Participants)
	assert.Empty(t, res.Info.MentionedAgents)
	assert.Len(t, m.Calls(), 2)
}

func TestRun_MentionsAreUncapped(t *testing.T) {
	m := model.NewMockModel("mock-model", "mock")

	res, err := New(m).Run(context.Background(), Request{
		Message: `@beatrice @"Direct Helper" @socratic-tutor compare`,
		Agents:  testutil.Tutors(),
	}, Options{MaxAgents: 1})
	require.NoError(t, err)
	assert.Len(t, res.Participants, 3)
}

func TestRun_SequentialHandsOffTranscript(t *testing.T) {
	m := model.NewMockModel("mock-model", "mock")
	m.AddResponse("explain recursion", "A function calling itself.")

	res, err := New(m).Run(context.Background(), Request{
		Message: "@socratic-tutor @beatrice explain recursion",
		Agents:  testutil.Tutors(),
	}, Options{Style: StyleSequential})
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "explain recursion", calls[0].UserPrompt)
	assert.Contains(t, calls[1].UserPrompt, "Socratic Guide:\nA function calling itself.")
	assert.True(t, strings.HasPrefix(res.Content, "**Socratic Guide:** A function calling itself."))
}

func TestRun_DebateAlwaysTwoRounds(t *testing.T) {
	for _, msg := range []string{"@beatrice tabs or spaces?", "tabs or spaces?"} {
		m := model.NewMockModel("mock-model", "mock")

		res, err := New(m).Run(context.Background(), Request{
			Message: msg,
			Agents:  testutil.Tutors(),
		}, Options{Style: StyleDebate})
		require.NoError(t, err)

		n := len(res.Participants)
		assert.Equal(t, 2, res.Info.TotalRounds)
		assert.Len(t, res.Contributions, 2*n)
		assert.Equal(t, 2, res.Contributions[len(res.Contributions)-1].Round)
		assert.Contains(t, res.Content, "### Round 1")
		assert.Contains(t, res.Content, "### Round 2")
	}
}

func TestRun_DebateSecondRoundSeesOthers(t *testing.T) {
	m := model.NewMockModel("mock-model", "mock")

	_, err := New(m).Run(context.Background(), Request{
		Message: "@beatrice @direct-helper tabs or spaces?",
		Agents:  testutil.Tutors(),
	}, Options{Style: StyleDebate})
	require.NoError(t, err)

	calls := m.Calls()
	require.Len(t, calls, 4)
	assert.Contains(t, calls[2].UserPrompt, "Direct Helper:\nMock response to: tabs or spaces?")
	assert.NotContains(t, calls[2].UserPrompt, "Beatrice:\n")
}

func TestRun_Random(t *testing.T) {
	m := model.NewMockModel("mock-model", "mock")
	o := New(m, func(o *OrchestratorOptions) {
		o.Rand = rand.New(rand.NewPCG(7, 7))
	})

	res, err := o.Run(context.Background(), Request{
		Message: "hello",
		Agents:  testutil.Tutors(),
	}, Options{Style: StyleRandom})
	require.NoError(t, err)

	require.Len(t, res.Participants, 1)
	assert.Equal(t, "Randomly selected", res.Info.Reason)
	assert.Equal(t, 1.0, res.Info.Confidence)
	assert.Equal(t, res.Participants[0].Label(), res.Info.SelectedAgent)
	assert.Equal(t, "Mock response to: hello", res.Content)
}

func TestRun_EmptyPool(t *testing.T) {
	_, err := New(model.NewMockModel("m", "mock")).Run(context.Background(), Request{Message: "hi"}, Options{})
	assert.ErrorIs(t, err, core.ErrNoAgentsAvailable)
}

func TestRun_InvalidStyle(t *testing.T) {
	_, err := New(model.NewMockModel("m", "mock")).Run(context.Background(), Request{
		Message: "hi",
		Agents:  testutil.Tutors(),
	}, Options{Style: "chorus"})
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}

func TestRun_CallTimeoutIsAgentFailure(t *testing.T) {
	slow := model.Func(func(ctx context.Context, _ model.Request) (model.Response, error) {
		<-ctx.Done()
		return model.Response{}, ctx.Err()
	})
	o := New(slow, func(o *OrchestratorOptions) { o.CallTimeout = 10 * time.Millisecond })

	res, err := o.Run(context.Background(), Request{
		Message: "@beatrice hi",
		Agents:  testutil.Tutors(),
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "**Beatrice:** [Beatrice was unable to respond]", res.Content)
}

func TestParseStyle(t *testing.T) {
	s, err := ParseStyle("")
	require.NoError(t, err)
	assert.Equal(t, StyleParallel, s)

	s, err = ParseStyle(" Debate ")
	require.NoError(t, err)
	assert.Equal(t, StyleDebate, s)

	_, err = ParseStyle("solo")
	assert.ErrorIs(t, err, core.ErrInvalidArgument)
}
