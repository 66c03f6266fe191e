package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/hupe1980/tutormesh/core"
)

var (
	_ core.AuditSink   = (*InMemoryStore)(nil)
	_ core.AuditReader = (*InMemoryStore)(nil)
)

// InMemoryStore keeps interaction logs in process memory.
type InMemoryStore struct {
	mu   sync.RWMutex
	logs []*core.InteractionLog
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

// Record implements core.AuditSink.
func (s *InMemoryStore) Record(_ context.Context, l *core.InteractionLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = append(s.logs, l.Clone())
	return nil
}

// Query implements core.AuditReader. Results are newest first.
func (s *InMemoryStore) Query(_ context.Context, f core.LogFilter) ([]*core.InteractionLog, error) {
	s.mu.RLock()
	var out []*core.InteractionLog
	for _, l := range s.logs {
		if f.Match(l) {
			out = append(out, l.Clone())
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
