// Package router selects the tutor that should answer a student message.
//
// Two strategies are available. KeywordRouter is deterministic and performs
// no I/O. AIRouter asks a model to classify the message and falls back to the
// keyword strategy on any failure, so routing over a non-empty pool never
// fails. Router combines both behind a single flag.
package router

import (
	"context"
	"math/rand/v2"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/logging"
	"github.com/hupe1980/tutormesh/model"
)

// Method names the strategy that produced a routing decision.
type Method string

const (
	MethodKeyword Method = "keyword"
	MethodAI      Method = "ai"
	MethodRandom  Method = "random"
)

// Alternative is an agent that was considered but not selected.
type Alternative struct {
	Agent *core.Agent
	Score float64
}

// Result is a routing decision.
type Result struct {
	Agent        *core.Agent
	Reason       string
	Confidence   float64
	Method       Method
	Alternatives []Alternative

	// FallbackReason is set when AI routing failed and the keyword
	// strategy produced the result.
	FallbackReason string
}

// Options configures a Router.
type Options struct {
	Logger   logging.Logger
	Keyword  *KeywordRouter
	AIConfig []func(o *AIOptions)
}

// Router dispatches to the keyword or AI strategy.
type Router struct {
	keyword *KeywordRouter
	ai      *AIRouter
	logger  logging.Logger
}

// New creates a Router. m may be nil, in which case AI routing degrades to
// keyword routing.
func New(m model.Model, optFns ...func(o *Options)) *Router {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Keyword == nil {
		opts.Keyword = NewKeywordRouter()
	}
	logger := logging.OrNoOp(opts.Logger)

	r := &Router{keyword: opts.Keyword, logger: logger}
	if m != nil {
		aiFns := append([]func(o *AIOptions){func(o *AIOptions) {
			o.Fallback = opts.Keyword
			o.Logger = logger
		}}, opts.AIConfig...)
		r.ai = NewAIRouter(m, aiFns...)
	}
	return r
}

// Route picks an agent for message. With useAI false no model call is made.
func (r *Router) Route(ctx context.Context, message string, agents []*core.Agent, useAI bool) (Result, error) {
	if useAI && r.ai != nil {
		return r.ai.Route(ctx, message, agents)
	}
	return r.keyword.Route(message, agents)
}

// Keyword exposes the underlying keyword strategy for ranking.
func (r *Router) Keyword() *KeywordRouter { return r.keyword }

// Random picks one agent uniformly. A nil rng uses the global source.
func Random(agents []*core.Agent, rng *rand.Rand) (Result, error) {
	if len(agents) == 0 {
		return Result{}, core.ErrNoAgentsAvailable
	}

	var i int
	if rng != nil {
		i = rng.IntN(len(agents))
	} else {
		i = rand.IntN(len(agents))
	}

	res := Result{
		Agent:      agents[i],
		Reason:     "Randomly selected",
		Confidence: 1.0,
		Method:     MethodRandom,
	}
	for j, a := range agents {
		if j != i {
			res.Alternatives = append(res.Alternatives, Alternative{Agent: a})
		}
	}
	return res, nil
}
