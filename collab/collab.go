package collab

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/logging"
	"github.com/hupe1980/tutormesh/mention"
	"github.com/hupe1980/tutormesh/model"
	"github.com/hupe1980/tutormesh/router"
)

// Style selects how participants are asked.
type Style string

const (
	StyleParallel   Style = "parallel"
	StyleSequential Style = "sequential"
	StyleDebate     Style = "debate"
	StyleRandom     Style = "random"
)

// DefaultMaxAgents caps keyword-selected participants.
const DefaultMaxAgents = 3

// debateRounds is fixed regardless of the number of participants.
const debateRounds = 2

// Valid reports whether s is a known style.
func (s Style) Valid() bool {
	switch s {
	case StyleParallel, StyleSequential, StyleDebate, StyleRandom:
		return true
	}
	return false
}

// ParseStyle parses a style name. The empty string yields StyleParallel.
func ParseStyle(s string) (Style, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return StyleParallel, nil
	}
	st := Style(s)
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown collaboration style %q", core.ErrInvalidArgument, s)
	}
	return st, nil
}

// Options are the per-request collaboration settings. Zero values fall back
// to the orchestrator defaults.
type Options struct {
	Style     Style `json:"style,omitempty"`
	MaxAgents int   `json:"max_agents,omitempty"`
}

// Request is the input of one collaborative turn.
type Request struct {
	// Message is the raw student text, mentions included.
	Message string
	// Agents is the eligible pool.
	Agents  []*core.Agent
	History []model.Message
}

// Info describes how a collaborative reply was produced.
type Info struct {
	Style           Style    `json:"style"`
	MentionedAgents []string `json:"mentioned_agents"`
	Participants    []string `json:"participants"`
	TotalRounds     int      `json:"total_rounds,omitempty"`
	FailedAgents    []string `json:"failed_agents,omitempty"`

	// Set for the random style only.
	SelectedAgent string  `json:"selected_agent,omitempty"`
	Reason        string  `json:"reason,omitempty"`
	Confidence    float64 `json:"confidence,omitempty"`
}

// Result is the synthesized reply plus everything needed to persist it.
type Result struct {
	Content       string
	Contributions []core.Contribution
	Info          Info
	Participants  []*core.Agent
	Model         string
	Provider      string
}

// OrchestratorOptions configures an Orchestrator.
type OrchestratorOptions struct {
	Defaults    Options
	CallTimeout time.Duration // per completion call, 0 disables
	Keyword     *router.KeywordRouter
	Rand        *rand.Rand
	Logger      logging.Logger
}

// Orchestrator runs collaborative turns. It is safe for concurrent use when
// its Rand is nil or not shared elsewhere.
type Orchestrator struct {
	model model.Model
	opts  OrchestratorOptions
}

// New creates an Orchestrator backed by m.
func New(m model.Model, optFns ...func(o *OrchestratorOptions)) *Orchestrator {
	opts := OrchestratorOptions{
		Defaults: Options{Style: StyleParallel, MaxAgents: DefaultMaxAgents},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Keyword == nil {
		opts.Keyword = router.NewKeywordRouter()
	}
	if opts.Defaults.Style == "" {
		opts.Defaults.Style = StyleParallel
	}
	if opts.Defaults.MaxAgents <= 0 {
		opts.Defaults.MaxAgents = DefaultMaxAgents
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	return &Orchestrator{model: model.WithTimeout(m, opts.CallTimeout), opts: opts}
}

// Run produces one reply for req. It fails only when there is nobody to ask
// or the options are invalid; completion failures become placeholders.
func (o *Orchestrator) Run(ctx context.Context, req Request, opts Options) (*Result, error) {
	opts = o.resolve(opts)
	if !opts.Style.Valid() {
		return nil, fmt.Errorf("%w: unknown collaboration style %q", core.ErrInvalidArgument, opts.Style)
	}
	if len(req.Agents) == 0 {
		return nil, core.ErrNoAgentsAvailable
	}

	start := time.Now()
	mentioned := mention.Parse(req.Message, req.Agents)
	text := mention.Strip(req.Message)

	t := &turn{message: text, history: req.History}
	info := Info{Style: opts.Style, MentionedAgents: labels(mentioned), TotalRounds: 1}

	if opts.Style == StyleRandom {
		pool := req.Agents
		if len(mentioned) > 0 {
			pool = mentioned
		}
		pick, err := router.Random(pool, o.opts.Rand)
		if err != nil {
			return nil, err
		}
		t.participants = []*core.Agent{pick.Agent}
		info.SelectedAgent = pick.Agent.Label()
		info.Reason = pick.Reason
		info.Confidence = pick.Confidence
	} else {
		t.participants = o.selectParticipants(text, mentioned, req.Agents, opts.MaxAgents)
	}
	if len(t.participants) == 0 {
		return nil, core.ErrNoAgentsAvailable
	}

	switch opts.Style {
	case StyleParallel, StyleRandom:
		o.runParallel(ctx, t)
	case StyleSequential:
		o.runSequential(ctx, t)
	case StyleDebate:
		o.runDebate(ctx, t)
		info.TotalRounds = debateRounds
	}

	info.Participants = labels(t.participants)
	for _, c := range t.contributions {
		if c.Failed && !contains(info.FailedAgents, c.DisplayName) {
			info.FailedAgents = append(info.FailedAgents, c.DisplayName)
		}
	}

	res := &Result{
		Content:       synthesize(opts.Style, t.contributions),
		Contributions: t.contributions,
		Info:          info,
		Participants:  t.participants,
		Model:         t.modelID,
		Provider:      o.model.Info().Provider,
	}
	if res.Model == "" {
		res.Model = o.model.Info().Name
	}

	o.opts.Logger.Info("Collaboration finished",
		"style", string(opts.Style),
		"participants", len(t.participants),
		"failures", len(info.FailedAgents),
		"duration", time.Since(start),
	)
	return res, nil
}

func (o *Orchestrator) resolve(opts Options) Options {
	if opts.Style == "" {
		opts.Style = o.opts.Defaults.Style
	}
	if opts.MaxAgents <= 0 {
		opts.MaxAgents = o.opts.Defaults.MaxAgents
	}
	return opts
}

// selectParticipants returns every mentioned agent, or the top maxAgents by
// keyword score when nobody was mentioned.
func (o *Orchestrator) selectParticipants(text string, mentioned, pool []*core.Agent, maxAgents int) []*core.Agent {
	if len(mentioned) > 0 {
		return mentioned
	}
	ranked := o.opts.Keyword.Rank(text, pool)
	if len(ranked) > maxAgents {
		ranked = ranked[:maxAgents]
	}
	out := make([]*core.Agent, len(ranked))
	for i, s := range ranked {
		out[i] = s.Agent
	}
	return out
}

// Placeholder is the contribution text used for a participant whose
// completion call failed.
func Placeholder(a *core.Agent) string {
	return fmt.Sprintf("[%s was unable to respond]", a.Label())
}

func labels(agents []*core.Agent) []string {
	out := make([]string, 0, len(agents))
	for _, a := range agents {
		out = append(out, a.Label())
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
