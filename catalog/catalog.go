// Package catalog provides agent directories backed by memory or a YAML seed
// file. The SQLite backend lives in the sqlite package.
package catalog

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/tutormesh/core"
)

var _ core.AgentCatalog = (*InMemoryCatalog)(nil)

// InMemoryCatalog is a read-mostly agent directory. ListAgents returns
// eligible agents ordered by name, which makes keyword tie-breaks stable.
type InMemoryCatalog struct {
	mu     sync.RWMutex
	agents map[string]*core.Agent
}

// NewInMemoryCatalog creates a catalog holding copies of agents.
func NewInMemoryCatalog(agents ...*core.Agent) *InMemoryCatalog {
	c := &InMemoryCatalog{agents: make(map[string]*core.Agent, len(agents))}
	for _, a := range agents {
		_ = c.Put(a)
	}
	return c
}

// Put inserts or replaces an agent. Name must be unique across agents.
func (c *InMemoryCatalog) Put(a *core.Agent) error {
	if a == nil || a.ID == "" || a.Name == "" {
		return fmt.Errorf("%w: agent requires id and name", core.ErrInvalidArgument)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, other := range c.agents {
		if id != a.ID && strings.EqualFold(other.Name, a.Name) {
			return fmt.Errorf("%w: duplicate agent name %q", core.ErrInvalidArgument, a.Name)
		}
	}
	cp := *a
	c.agents[a.ID] = &cp
	return nil
}

// ListAgents implements core.AgentCatalog.
func (c *InMemoryCatalog) ListAgents(_ context.Context) ([]*core.Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*core.Agent, 0, len(c.agents))
	for _, a := range c.agents {
		if a.Eligible() {
			cp := *a
			out = append(out, &cp)
		}
	}
	sortAgents(out)
	return out, nil
}

// GetAgent implements core.AgentCatalog. Inactive agents are returned too;
// callers check Eligible.
func (c *InMemoryCatalog) GetAgent(_ context.Context, id string) (*core.Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.agents[id]
	if !ok {
		return nil, core.ErrAgentNotFoundOrInactive
	}
	cp := *a
	return &cp, nil
}

// GetAgentByName implements core.AgentCatalog.
func (c *InMemoryCatalog) GetAgentByName(_ context.Context, name string) (*core.Agent, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, a := range c.agents {
		if strings.EqualFold(a.Name, name) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, core.ErrAgentNotFoundOrInactive
}

func sortAgents(agents []*core.Agent) {
	sort.Slice(agents, func(i, j int) bool {
		if agents[i].Name != agents[j].Name {
			return agents[i].Name < agents[j].Name
		}
		return agents[i].ID < agents[j].ID
	})
}
