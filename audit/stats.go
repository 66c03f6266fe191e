package audit

import (
	"context"
	"time"

	"github.com/hupe1980/tutormesh/core"
)

// ComputeStats aggregates logs. Sessions are counted by distinct session id;
// message counts, mode and agent breakdowns and the average response time
// consider message_sent records only, the latter ignoring records without a
// measured latency.
func ComputeStats(logs []*core.InteractionLog) core.Stats {
	st := core.Stats{
		TotalInteractions: len(logs),
		ModeBreakdown:     map[core.Mode]int{},
		AgentBreakdown:    map[string]int{},
		EventBreakdown:    map[core.EventType]int{},
	}

	sessions := map[string]struct{}{}
	var total time.Duration
	var timed int

	for _, l := range logs {
		st.EventBreakdown[l.EventType]++
		if l.SessionID != "" {
			sessions[l.SessionID] = struct{}{}
		}
		if l.EventType != core.EventMessageSent {
			continue
		}

		st.TotalMessages++
		if l.Mode != "" {
			st.ModeBreakdown[l.Mode]++
		}
		if name := agentKey(l); name != "" {
			st.AgentBreakdown[name]++
		}
		if l.ResponseTime > 0 {
			total += l.ResponseTime
			timed++
		}
	}

	st.TotalSessions = len(sessions)
	if timed > 0 {
		st.AverageResponseTime = total / time.Duration(timed)
	}
	return st
}

func agentKey(l *core.InteractionLog) string {
	if l.AgentName != "" {
		return l.AgentName
	}
	return l.AgentID
}

// Stats queries r for records in [start, end) and aggregates them. Nil
// bounds leave that side of the range open.
func Stats(ctx context.Context, r core.AuditReader, start, end *time.Time) (core.Stats, error) {
	logs, err := r.Query(ctx, core.LogFilter{Start: start, End: end})
	if err != nil {
		return core.Stats{}, err
	}
	return ComputeStats(logs), nil
}
