// Package mention recognises agent mentions inside free text.
//
// Two token forms are supported:
//
//	@simple-name          matches Agent.Name
//	@"Quoted Display"     matches Agent.DisplayName (spaces allowed)
//
// Matching is case-insensitive. An @ glued to a preceding word character (as
// in an e-mail address) is not a mention.
package mention

import (
	"regexp"
	"strings"

	"github.com/hupe1980/tutormesh/core"
)

// Group 1: leading boundary, group 2: quoted display name, group 3: bare name.
var tokenRE = regexp.MustCompile(`(^|[^\w@])@(?:"([^"]+)"|([A-Za-z0-9_-]+))`)

var spaceRunRE = regexp.MustCompile(`[ \t]{2,}`)

// Token is one mention occurrence.
type Token struct {
	Name   string // token text without @ and quotes
	Quoted bool
	Start  int // byte offset of '@'
	End    int
}

// Tokens returns every mention token in order of appearance.
func Tokens(text string) []Token {
	matches := tokenRE.FindAllStringSubmatchIndex(text, -1)
	tokens := make([]Token, 0, len(matches))
	for _, m := range matches {
		tok := Token{Start: m[3], End: m[1]}
		if m[4] >= 0 {
			tok.Name = text[m[4]:m[5]]
			tok.Quoted = true
		} else {
			tok.Name = text[m[6]:m[7]]
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// Names returns the distinct raw names mentioned, in order of first appearance.
func Names(text string) []string {
	var names []string
	seen := map[string]bool{}
	for _, tok := range Tokens(text) {
		key := strings.ToLower(tok.Name)
		if seen[key] {
			continue
		}
		seen[key] = true
		names = append(names, tok.Name)
	}
	return names
}

// Parse returns the distinct agents mentioned in text, ordered by first
// appearance. Tokens that match no agent are ignored.
func Parse(text string, agents []*core.Agent) []*core.Agent {
	var found []*core.Agent
	seen := map[string]bool{}
	for _, tok := range Tokens(text) {
		a := resolve(tok, agents)
		if a == nil || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		found = append(found, a)
	}
	return found
}

func resolve(tok Token, agents []*core.Agent) *core.Agent {
	for _, a := range agents {
		if tok.Quoted {
			if strings.EqualFold(strings.TrimSpace(tok.Name), a.DisplayName) {
				return a
			}
			continue
		}
		if strings.EqualFold(tok.Name, a.Name) {
			return a
		}
	}
	return nil
}

// Strip removes every mention token from text. When at least one token was
// removed, runs of spaces are collapsed and the result is trimmed; text
// without mentions is returned unchanged.
func Strip(text string) string {
	if !tokenRE.MatchString(text) {
		return text
	}
	stripped := tokenRE.ReplaceAllString(text, "$1")
	stripped = spaceRunRE.ReplaceAllString(stripped, " ")
	return strings.TrimSpace(stripped)
}
