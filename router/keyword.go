package router

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hupe1980/tutormesh/core"
)

// family is a group of message triggers that favours agents whose profile
// carries one of the trait words.
type family struct {
	name       string
	reason     string
	confidence float64
	weight     float64
	triggers   []string
	traits     []string
}

// Hits are capped so one long rant cannot drown every other signal.
const maxFamilyHits = 3

// overlapBonus is added per distinct message word found in an agent's
// description or personality.
const overlapBonus = 0.5

// distressFamily takes precedence over every other family once it matches.
const distressFamily = "distress"

var defaultFamilies = []family{
	{
		name:       distressFamily,
		reason:     "Student appears stressed or discouraged and may need encouragement",
		confidence: 0.9,
		weight:     3,
		triggers: []string{
			"stressed", "stress", "anxious", "anxiety", "overwhelmed", "frustrated", "frustrating",
			"give up", "giving up", "hopeless", "depressed", "scared", "worried", "panic",
			"can't do this", "hate this", "upset", "crying", "burned out", "burnout", "exhausted",
		},
		traits: []string{"support", "empath", "encourag", "caring", "emotional", "wellbeing", "compassion", "patient"},
	},
	{
		name:       "debate",
		reason:     "Message invites discussion of different viewpoints",
		confidence: 0.75,
		weight:     2,
		triggers: []string{
			"debate", "disagree", "argue", "argument", "opinion", "controversial", "pros and cons",
			"better than", "versus", "vs", "which is better", "perspective", "counterpoint",
		},
		traits: []string{"debate", "discussion", "discuss", "critical", "perspective", "challeng", "devil's advocate"},
	},
	{
		name:       "socratic",
		reason:     "Conceptual question suited to guided inquiry",
		confidence: 0.8,
		weight:     2,
		triggers: []string{
			"why", "understand", "understanding", "concept", "concepts", "meaning", "intuition",
			"theory", "how come", "reasoning", "what does it mean", "makes sense",
		},
		traits: []string{"socratic", "question", "guide", "reflect", "inquiry", "conceptual", "critical thinking"},
	},
	{
		name:       "direct",
		reason:     "Student asks for direct step-by-step instructions",
		confidence: 0.8,
		weight:     2,
		triggers: []string{
			"how do i", "how to", "how can i", "steps", "step by step", "show me", "example",
			"syntax", "quick", "just tell", "tell me", "what is the command",
		},
		traits: []string{"direct", "clear", "concise", "step", "straightforward", "helper", "explain"},
	},
	{
		name:       "practical",
		reason:     "Practical coding or project question",
		confidence: 0.75,
		weight:     1.5,
		triggers: []string{
			"bug", "bugs", "debug", "debugging", "error", "exception", "crash", "crashes", "project",
			"build", "code", "compile", "deploy", "fix", "stack trace", "test", "tests",
		},
		traits: []string{"practical", "hands-on", "project", "debug", "code", "engineer", "build"},
	},
	{
		name:       "peer",
		reason:     "Casual message suited to peer support",
		confidence: 0.7,
		weight:     1.5,
		triggers: []string{
			"stuck", "lol", "hey", "bored", "confused", "help me out", "buddy", "haha", "ugh",
			"idk", "kinda", "dude",
		},
		traits: []string{"peer", "friend", "casual", "companion", "buddy", "classmate", "fellow"},
	},
}

var stopWords = map[string]bool{
	"about": true, "after": true, "again": true, "also": true, "been": true, "being": true,
	"could": true, "does": true, "doing": true, "from": true, "have": true, "help": true,
	"here": true, "into": true, "just": true, "like": true, "more": true, "need": true,
	"only": true, "should": true, "some": true, "than": true, "that": true, "their": true,
	"them": true, "then": true, "there": true, "these": true, "they": true, "this": true,
	"want": true, "what": true, "when": true, "where": true, "which": true, "will": true,
	"with": true, "would": true, "your": true, "you're": true, "please": true,
}

// KeywordRouter scores agents deterministically against keyword families and
// agent metadata. It performs no I/O and is safe for concurrent use.
type KeywordRouter struct {
	families []family
}

// NewKeywordRouter returns a KeywordRouter using the built-in families.
func NewKeywordRouter() *KeywordRouter {
	return &KeywordRouter{families: defaultFamilies}
}

// Scored pairs an agent with its keyword score.
type Scored struct {
	Agent *core.Agent
	Score float64

	family   *family // strongest contributing family, nil if none
	overlap  bool
	supports bool // profile carries a distress trait and the message matched it
}

// Rank scores every agent and returns them ordered by score, highest first.
// Equal scores keep the input order.
func (r *KeywordRouter) Rank(message string, agents []*core.Agent) []Scored {
	ranked, _ := r.rank(message, agents)
	return ranked
}

// rank also returns the distress family when the message matched it.
func (r *KeywordRouter) rank(message string, agents []*core.Agent) ([]Scored, *family) {
	words := tokenize(message)
	padded := " " + strings.Join(words, " ") + " "

	hits := make([]int, len(r.families))
	for i, f := range r.families {
		hits[i] = countTriggers(padded, f.triggers)
	}

	scored := make([]Scored, 0, len(agents))
	for _, a := range agents {
		scored = append(scored, r.score(a, words, hits))
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	var distress *family
	for i := range r.families {
		if r.families[i].name == distressFamily && hits[i] > 0 {
			distress = &r.families[i]
		}
	}
	return scored, distress
}

func (r *KeywordRouter) score(a *core.Agent, words []string, hits []int) Scored {
	s := Scored{Agent: a}
	profile := strings.ToLower(strings.Join([]string{a.Name, a.DisplayName, a.Description, a.Personality}, " "))

	var best float64
	for i := range r.families {
		f := &r.families[i]
		if hits[i] == 0 || !containsAny(profile, f.traits) {
			continue
		}
		if f.name == distressFamily {
			s.supports = true
		}
		contrib := f.weight * float64(min(hits[i], maxFamilyHits))
		s.Score += contrib
		if contrib > best {
			best = contrib
			s.family = f
		}
	}

	about := map[string]bool{}
	for _, w := range tokenize(a.Description + " " + a.Personality) {
		about[w] = true
	}
	seen := map[string]bool{}
	for _, w := range words {
		if len(w) < 4 || stopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		if about[w] {
			s.Score += overlapBonus
			s.overlap = true
		}
	}

	return s
}

// Route selects the highest scoring agent. A distressed message goes to the
// highest scoring supportive agent instead, and always reports the distress
// reason. It fails only for an empty pool.
func (r *KeywordRouter) Route(message string, agents []*core.Agent) (Result, error) {
	if len(agents) == 0 {
		return Result{}, core.ErrNoAgentsAvailable
	}

	ranked, distress := r.rank(message, agents)
	pick := 0
	if distress != nil {
		for i, s := range ranked {
			if s.supports {
				pick = i
				break
			}
		}
	}
	top := ranked[pick]

	res := Result{
		Agent:        top.Agent,
		Method:       MethodKeyword,
		Alternatives: make([]Alternative, 0, len(ranked)-1),
	}
	switch {
	case distress != nil:
		res.Reason = distress.reason
		res.Confidence = distress.confidence
	case top.family != nil:
		res.Reason = top.family.reason
		res.Confidence = top.family.confidence
	case top.overlap:
		res.Reason = "Message overlaps with the tutor's description"
		res.Confidence = 0.6
	default:
		res.Reason = "No strong signal, defaulting to the first available tutor"
		res.Confidence = 0.5
	}

	for i, s := range ranked {
		if i != pick {
			res.Alternatives = append(res.Alternatives, Alternative{Agent: s.Agent, Score: s.Score})
		}
	}
	return res, nil
}

// tokenize lowercases text and splits it on anything that is not a letter,
// digit or apostrophe.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

func countTriggers(padded string, triggers []string) int {
	n := 0
	for _, t := range triggers {
		if strings.Contains(padded, " "+t+" ") {
			n++
		}
	}
	return n
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
