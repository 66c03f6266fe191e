// Package tutor is the entry point of the tutoring core. It ties the session
// store, agent catalog, routers, collaboration orchestrator and audit log
// together behind a small set of operations:
//
//  1. Create a Service via New(), optionally overriding the default in‑memory
//     stores and the mock completion model.
//  2. Manage a user's session (mode, active agent) and conversations.
//  3. Send messages; the session mode decides which tutor or tutors answer.
//
// All defaults are safe for local development and testing; production
// deployments typically supply the sqlite store and a provider model.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/hupe1980/tutormesh/audit"
	"github.com/hupe1980/tutormesh/catalog"
	"github.com/hupe1980/tutormesh/collab"
	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/logging"
	"github.com/hupe1980/tutormesh/model"
	"github.com/hupe1980/tutormesh/router"
	"github.com/hupe1980/tutormesh/session"
)

// DefaultHistoryLimit is the number of prior messages handed to the model.
const DefaultHistoryLimit = 10

// Options configures the Service.
type Options struct {
	// Stores (default to in-memory implementations if not provided)
	Store       core.Store
	Catalog     core.AgentCatalog
	AuditSink   core.AuditSink
	AuditReader core.AuditReader

	// Model answers every completion call. Defaults to a mock model.
	Model model.Model

	// UseAIRouting enables model based routing in router mode. Failures
	// degrade to keyword routing.
	UseAIRouting bool

	// HistoryLimit bounds the conversation history sent with each call.
	HistoryLimit int

	// CallTimeout bounds each completion call. Zero disables the bound.
	CallTimeout time.Duration

	// Collaboration holds the defaults for collaborative mode.
	Collaboration collab.Options

	// Rand drives random mode and the random collaboration style.
	Rand *rand.Rand

	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Service implements the tutoring operations.
type Service struct {
	opts     Options
	model    model.Model
	router   *router.Router
	collab   *collab.Orchestrator
	recorder *audit.Recorder
	log      logging.DomainLogger
}

// New creates a Service with optional overrides. Any unset store is
// initialized with an in-memory implementation.
func New(optFns ...func(o *Options)) *Service {
	opts := Options{
		HistoryLimit: DefaultHistoryLimit,
		Collaboration: collab.Options{
			Style:     collab.StyleParallel,
			MaxAgents: collab.DefaultMaxAgents,
		},
		Now: func() time.Time { return time.Now().UTC() },
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewInMemoryCatalog()
	}
	if opts.AuditSink == nil && opts.AuditReader == nil {
		mem := audit.NewInMemoryStore()
		opts.AuditSink, opts.AuditReader = mem, mem
	}
	if opts.AuditReader == nil {
		if r, ok := opts.AuditSink.(core.AuditReader); ok {
			opts.AuditReader = r
		}
	}
	if opts.Model == nil {
		opts.Model = model.NewMockModel("mock", "mock")
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	opts.Logger = logging.OrNoOp(opts.Logger)

	m := model.WithTimeout(opts.Model, opts.CallTimeout)
	keyword := router.NewKeywordRouter()

	return &Service{
		opts:  opts,
		model: m,
		router: router.New(m, func(o *router.Options) {
			o.Keyword = keyword
			o.Logger = logging.Component(opts.Logger, "router")
		}),
		collab: collab.New(opts.Model, func(o *collab.OrchestratorOptions) {
			o.Defaults = opts.Collaboration
			o.CallTimeout = opts.CallTimeout
			o.Keyword = keyword
			o.Rand = opts.Rand
			o.Logger = logging.Component(opts.Logger, "collab")
		}),
		recorder: audit.NewRecorder(opts.AuditSink, func(o *audit.RecorderOptions) {
			o.Logger = logging.Component(opts.Logger, "audit")
		}),
		log: logging.AsDomain(logging.Component(opts.Logger, "tutor")),
	}
}

// Close waits for pending audit writes.
func (s *Service) Close() error {
	s.recorder.Wait()
	return nil
}

// GetOrCreateSession returns the user's session, creating a manual-mode
// session on first use. An active agent that is no longer eligible is
// cleared.
func (s *Service) GetOrCreateSession(ctx context.Context, userID string) (*core.Session, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", core.ErrInvalidArgument)
	}

	sess, err := s.opts.Store.GetSession(ctx, userID)
	if err == nil {
		return s.pruneActiveAgent(ctx, sess)
	}
	if !errors.Is(err, core.ErrSessionNotFound) {
		return nil, err
	}

	fresh := core.NewSession(userID)
	fresh.CreatedAt = s.opts.Now()
	fresh.UpdatedAt = fresh.CreatedAt

	sess, err = s.opts.Store.CreateSession(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if sess.ID == fresh.ID {
		s.record(ctx, sess, core.EventSessionCreated, nil, nil)
	}
	return sess, nil
}

// UpdateMode switches the user's routing mode.
func (s *Service) UpdateMode(ctx context.Context, userID string, mode string) (*core.Session, error) {
	m, err := core.ParseMode(mode)
	if err != nil {
		return nil, err
	}

	sess, err := s.GetOrCreateSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	previous := sess.Mode
	sess.Mode = m
	sess.UpdatedAt = s.opts.Now()
	if err := s.opts.Store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.record(ctx, sess, core.EventModeChanged, nil, map[string]string{"previous_mode": string(previous)})
	return sess, nil
}

// SetActiveAgent sets the agent used when a message names no target. An
// empty id clears it.
func (s *Service) SetActiveAgent(ctx context.Context, userID, agentID string) (*core.Session, error) {
	sess, err := s.GetOrCreateSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	var agent *core.Agent
	if agentID != "" {
		if agent, err = s.resolveAgent(ctx, agentID); err != nil {
			return nil, err
		}
	}

	sess.ActiveAgentID = agentID
	sess.UpdatedAt = s.opts.Now()
	if err := s.opts.Store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}

	s.record(ctx, sess, core.EventAgentSelected, agent, nil)
	return sess, nil
}

// GetConversations lists the user's conversations, most recently active
// first. A user without a session has none.
func (s *Service) GetConversations(ctx context.Context, userID string) ([]*core.Conversation, error) {
	sess, err := s.opts.Store.GetSession(ctx, userID)
	if errors.Is(err, core.ErrSessionNotFound) {
		return []*core.Conversation{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.opts.Store.ListConversations(ctx, sess.ID)
}

// GetOrCreateConversation returns the user's conversation with an eligible
// agent, creating session and conversation as needed.
func (s *Service) GetOrCreateConversation(ctx context.Context, userID, agentID string) (*core.Conversation, error) {
	sess, err := s.GetOrCreateSession(ctx, userID)
	if err != nil {
		return nil, err
	}
	agent, err := s.resolveAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	return s.conversation(ctx, sess.ID, agent.ID)
}

// GetMessageHistory returns up to limit recent messages, oldest first. A
// non-positive limit means core.DefaultHistoryLimit.
func (s *Service) GetMessageHistory(ctx context.Context, conversationID string, limit int) ([]*core.Message, error) {
	return s.opts.Store.ListMessages(ctx, conversationID, limit)
}

// ClearConversation deletes every message of the user's conversation with
// the agent. Clearing an empty conversation is not an error.
func (s *Service) ClearConversation(ctx context.Context, userID, agentID string) error {
	sess, err := s.opts.Store.GetSession(ctx, userID)
	if err != nil {
		return err
	}
	conv, err := s.opts.Store.GetConversation(ctx, sess.ID, agentID)
	if err != nil {
		return err
	}
	if err := s.opts.Store.ClearConversation(ctx, conv.ID); err != nil {
		return err
	}

	var agent *core.Agent
	if a, err := s.opts.Catalog.GetAgent(ctx, agentID); err == nil {
		agent = a
	}
	s.record(ctx, sess, core.EventConversationCleared, agent, map[string]string{"conversation_id": conv.ID})
	return nil
}

// ListAgents returns the eligible agents.
func (s *Service) ListAgents(ctx context.Context) ([]*core.Agent, error) {
	return s.opts.Catalog.ListAgents(ctx)
}

// GetInteractionLogs queries the audit log, newest first.
func (s *Service) GetInteractionLogs(ctx context.Context, f core.LogFilter) ([]*core.InteractionLog, error) {
	if s.opts.AuditReader == nil {
		return nil, fmt.Errorf("%w: audit log is not readable", core.ErrInvalidArgument)
	}
	return s.opts.AuditReader.Query(ctx, f)
}

// GetStats aggregates interaction logs created in [start, end). Nil bounds
// leave that side open.
func (s *Service) GetStats(ctx context.Context, start, end *time.Time) (core.Stats, error) {
	if s.opts.AuditReader == nil {
		return core.Stats{}, fmt.Errorf("%w: audit log is not readable", core.ErrInvalidArgument)
	}
	if start != nil && end != nil && end.Before(*start) {
		return core.Stats{}, fmt.Errorf("%w: end before start", core.ErrInvalidArgument)
	}
	return audit.Stats(ctx, s.opts.AuditReader, start, end)
}

// pruneActiveAgent clears an ActiveAgentID that no longer resolves to an
// eligible agent.
func (s *Service) pruneActiveAgent(ctx context.Context, sess *core.Session) (*core.Session, error) {
	if sess.ActiveAgentID == "" {
		return sess, nil
	}
	_, err := s.resolveAgent(ctx, sess.ActiveAgentID)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, core.ErrAgentNotFoundOrInactive) {
		return nil, err
	}

	stale := sess.ActiveAgentID
	sess.ActiveAgentID = ""
	sess.UpdatedAt = s.opts.Now()
	if err := s.opts.Store.UpdateSession(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("Cleared inactive agent from session", "session_id", sess.ID, "agent_id", stale)
	return sess, nil
}

// resolveAgent returns the agent if it exists and is eligible.
func (s *Service) resolveAgent(ctx context.Context, agentID string) (*core.Agent, error) {
	if agentID == "" {
		return nil, core.ErrAgentNotFoundOrInactive
	}
	a, err := s.opts.Catalog.GetAgent(ctx, agentID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.ErrAgentNotFoundOrInactive
	}
	if err != nil {
		return nil, err
	}
	if !a.Eligible() {
		return nil, core.ErrAgentNotFoundOrInactive
	}
	return a, nil
}

func (s *Service) conversation(ctx context.Context, sessionID, agentID string) (*core.Conversation, error) {
	conv, err := s.opts.Store.GetConversation(ctx, sessionID, agentID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, core.ErrConversationNotFound) {
		return nil, err
	}

	fresh := core.NewConversation(sessionID, agentID)
	fresh.CreatedAt = s.opts.Now()
	fresh.UpdatedAt = fresh.CreatedAt
	return s.opts.Store.CreateConversation(ctx, fresh)
}

// record hands an audit event to the detached recorder.
func (s *Service) record(ctx context.Context, sess *core.Session, event core.EventType, agent *core.Agent, meta map[string]string) {
	l := &core.InteractionLog{
		ID:        core.NewID(),
		UserID:    sess.UserID,
		SessionID: sess.ID,
		EventType: event,
		Mode:      sess.Mode,
		Metadata:  meta,
		CreatedAt: s.opts.Now(),
	}
	if agent != nil {
		l.AgentID = agent.ID
		l.AgentName = agent.Name
	}
	s.recorder.Record(ctx, l)
}
