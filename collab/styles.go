package collab

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/internal/prompt"
	"github.com/hupe1980/tutormesh/model"
)

// turn carries the state of one collaborative run.
type turn struct {
	message      string
	history      []model.Message
	participants []*core.Agent

	contributions []core.Contribution
	modelID       string
}

// answer is the outcome of one completion call.
type answer struct {
	contribution core.Contribution
	modelID      string
}

// ask calls the model for a single participant. Errors are absorbed into a
// placeholder contribution.
func (o *Orchestrator) ask(ctx context.Context, a *core.Agent, round int, userPrompt string, history []model.Message) answer {
	c := core.Contribution{
		AgentID:     a.ID,
		AgentName:   a.Name,
		DisplayName: a.Label(),
		Round:       round,
	}

	resp, err := o.model.Complete(ctx, model.Request{
		SystemPrompt: a.Instructions(),
		UserPrompt:   userPrompt,
		History:      history,
		Temperature:  a.Temperature,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = model.ErrEmptyCompletion
	}
	if err != nil {
		o.opts.Logger.Warn("Collaborator failed to respond", "agent", a.Name, "round", round, "error", err)
		c.Content = Placeholder(a)
		c.Failed = true
		return answer{contribution: c}
	}

	c.Content = strings.TrimSpace(resp.Text)
	return answer{contribution: c, modelID: resp.Model}
}

func (t *turn) add(ans answer) {
	t.contributions = append(t.contributions, ans.contribution)
	if t.modelID == "" && ans.modelID != "" {
		t.modelID = ans.modelID
	}
}

// runParallel asks every participant concurrently. Each branch writes into
// its own slot and never returns an error, so one failure cannot cancel its
// siblings and presentation order is the selection order.
func (o *Orchestrator) runParallel(ctx context.Context, t *turn) {
	slots := make([]answer, len(t.participants))

	var g errgroup.Group
	for i, a := range t.participants {
		g.Go(func() error {
			slots[i] = o.ask(ctx, a, 1, t.message, t.history)
			return nil
		})
	}
	_ = g.Wait()

	for _, ans := range slots {
		t.add(ans)
	}
}

// runSequential asks participants one after another, handing each the
// answers given so far in this turn.
func (o *Orchestrator) runSequential(ctx context.Context, t *turn) {
	var previous []prompt.Turn
	for _, a := range t.participants {
		userPrompt := t.message
		if len(previous) > 0 {
			var err error
			userPrompt, err = prompt.Execute(prompt.Sequential, map[string]any{
				"Message":  t.message,
				"Previous": previous,
			})
			if err != nil {
				userPrompt = t.message
			}
		}

		ans := o.ask(ctx, a, 1, userPrompt, t.history)
		t.add(ans)
		if !ans.contribution.Failed {
			previous = append(previous, prompt.Turn{Speaker: a.Label(), Content: ans.contribution.Content})
		}
	}
}

// runDebate runs two synchronous rounds. In round two every participant
// sees its own first answer and the other participants' first answers.
func (o *Orchestrator) runDebate(ctx context.Context, t *turn) {
	first := make([]answer, len(t.participants))
	for i, a := range t.participants {
		first[i] = o.ask(ctx, a, 1, t.message, t.history)
		t.add(first[i])
	}

	for i, a := range t.participants {
		var others []prompt.Turn
		for j, ans := range first {
			if j == i || ans.contribution.Failed {
				continue
			}
			others = append(others, prompt.Turn{Speaker: ans.contribution.DisplayName, Content: ans.contribution.Content})
		}

		userPrompt, err := prompt.Execute(prompt.Debate, map[string]any{
			"Message": t.message,
			"Own":     first[i].contribution.Content,
			"Others":  others,
		})
		if err != nil {
			userPrompt = t.message
		}
		t.add(o.ask(ctx, a, 2, userPrompt, t.history))
	}
}

// synthesize concatenates contributions in presentation order. The random
// style yields the single reply as is.
func synthesize(style Style, contributions []core.Contribution) string {
	if style == StyleRandom && len(contributions) == 1 {
		return contributions[0].Content
	}

	var b strings.Builder
	round := 0
	for _, c := range contributions {
		if style == StyleDebate && c.Round != round {
			round = c.Round
			if b.Len() > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString("### Round ")
			b.WriteString(strconv.Itoa(round))
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("**")
		b.WriteString(c.DisplayName)
		b.WriteString(":** ")
		b.WriteString(c.Content)
	}
	return b.String()
}
