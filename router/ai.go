package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/internal/prompt"
	"github.com/hupe1980/tutormesh/logging"
	"github.com/hupe1980/tutormesh/model"
)

const (
	defaultAIReason     = "AI-based routing"
	defaultAIConfidence = 0.8
)

var errUnknownAgent = errors.New("model selected an unknown agent")

// AIOptions configures an AIRouter.
type AIOptions struct {
	// Temperature used for the classification call. Low values keep the
	// JSON output stable.
	Temperature float64
	Fallback    *KeywordRouter
	Logger      logging.Logger
}

// AIRouter classifies a message with one completion call and falls back to
// keyword routing whenever the call or its output cannot be used.
type AIRouter struct {
	model model.Model
	opts  AIOptions
}

// NewAIRouter creates an AIRouter backed by m.
func NewAIRouter(m model.Model, optFns ...func(o *AIOptions)) *AIRouter {
	opts := AIOptions{Temperature: 0.2}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Fallback == nil {
		opts.Fallback = NewKeywordRouter()
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &AIRouter{model: m, opts: opts}
}

// Route never surfaces model failures: any error while classifying yields the
// keyword router's result for the same inputs. It fails only for an empty pool.
func (r *AIRouter) Route(ctx context.Context, message string, agents []*core.Agent) (Result, error) {
	if len(agents) == 0 {
		return Result{}, core.ErrNoAgentsAvailable
	}

	start := time.Now()
	res, err := r.classify(ctx, message, agents)
	if err == nil {
		r.opts.Logger.Debug("AI routing succeeded", "agent", res.Agent.Name, "confidence", res.Confidence, "duration", time.Since(start))
		return res, nil
	}

	r.opts.Logger.Warn("AI routing failed, falling back to keyword routing", "error", err)
	fb, ferr := r.opts.Fallback.Route(message, agents)
	if ferr != nil {
		return Result{}, ferr
	}
	fb.FallbackReason = err.Error()
	return fb, nil
}

type aiDecision struct {
	SelectedAgent string             `json:"selectedAgent"`
	Reason        string             `json:"reason"`
	Confidence    *float64           `json:"confidence"`
	Scores        map[string]float64 `json:"scores"`
}

func (r *AIRouter) classify(ctx context.Context, message string, agents []*core.Agent) (Result, error) {
	userPrompt, err := prompt.Execute(prompt.Routing, map[string]any{"Message": message, "Agents": agents})
	if err != nil {
		return Result{}, err
	}

	resp, err := r.model.Complete(ctx, model.Request{
		SystemPrompt: "You route student messages to tutors. Answer with JSON only.",
		UserPrompt:   userPrompt,
		Temperature:  r.opts.Temperature,
	})
	if err != nil {
		return Result{}, fmt.Errorf("routing completion: %w", err)
	}

	return parseDecision(resp.Text, agents)
}

// parseDecision turns the model's reply into a Result.
func parseDecision(text string, agents []*core.Agent) (Result, error) {
	var d aiDecision
	if err := json.Unmarshal([]byte(stripCodeFence(text)), &d); err != nil {
		return Result{}, fmt.Errorf("parse routing reply: %w", err)
	}

	selected := findByName(agents, d.SelectedAgent)
	if selected == nil {
		return Result{}, fmt.Errorf("%w: %q", errUnknownAgent, d.SelectedAgent)
	}

	res := Result{
		Agent:      selected,
		Reason:     strings.TrimSpace(d.Reason),
		Confidence: defaultAIConfidence,
		Method:     MethodAI,
	}
	if res.Reason == "" {
		res.Reason = defaultAIReason
	}
	if d.Confidence != nil {
		res.Confidence = clamp01(*d.Confidence)
	}

	for _, a := range agents {
		if a.ID == selected.ID {
			continue
		}
		res.Alternatives = append(res.Alternatives, Alternative{Agent: a, Score: lookupScore(d.Scores, a.Name)})
	}
	if d.Scores != nil {
		sort.SliceStable(res.Alternatives, func(i, j int) bool {
			return res.Alternatives[i].Score > res.Alternatives[j].Score
		})
	}

	return res, nil
}

// stripCodeFence removes an optional surrounding ``` / ```json fence.
func stripCodeFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func findByName(agents []*core.Agent, name string) *core.Agent {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	for _, a := range agents {
		if strings.EqualFold(a.Name, name) {
			return a
		}
	}
	return nil
}

func lookupScore(scores map[string]float64, name string) float64 {
	if v, ok := scores[name]; ok {
		return v
	}
	for k, v := range scores {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return 0
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
