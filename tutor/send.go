package tutor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hupe1980/tutormesh/collab"
	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/mention"
	"github.com/hupe1980/tutormesh/model"
	"github.com/hupe1980/tutormesh/router"
)

// SendRequest is the input of SendMessage.
type SendRequest struct {
	UserID string
	// AgentID names the conversation's agent. Empty falls back to the
	// session's active agent.
	AgentID string
	Message string
	// SessionID optionally pins the session; it must belong to UserID.
	SessionID string
	// Collaboration overrides the collaborative defaults for this call.
	Collaboration *collab.Options
}

// RoutingInfo describes a router or random mode decision.
type RoutingInfo struct {
	SelectedAgent  string        `json:"selected_agent"`
	AgentID        string        `json:"agent_id"`
	Reason         string        `json:"reason"`
	Confidence     float64       `json:"confidence"`
	Method         router.Method `json:"method"`
	Alternatives   []Alternative `json:"alternatives,omitempty"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
}

// Alternative is a non-selected agent with its routing score.
type Alternative struct {
	AgentName string  `json:"agent_name"`
	Score     float64 `json:"score"`
}

// SendResult is the outcome of SendMessage.
type SendResult struct {
	UserMessage      *core.Message
	AssistantMessage *core.Message
	// Agent answered the message; nil for collaborative replies.
	Agent         *core.Agent
	Conversation  *core.Conversation
	Routing       *RoutingInfo
	Collaborative *collab.Info
}

// reply is the mode independent outcome of answering a message.
type reply struct {
	content         string
	agent           *core.Agent
	provider, model string
	temperature     *float64
	synthesizedFrom string
	routing         *RoutingInfo
	collaborative   *collab.Info
}

// SendMessage answers a student message according to the session mode and
// persists the user message followed by the assistant message.
func (s *Service) SendMessage(ctx context.Context, req SendRequest) (*SendResult, error) {
	text := strings.TrimSpace(req.Message)
	if text == "" {
		return nil, fmt.Errorf("%w: message is empty", core.ErrInvalidArgument)
	}

	sess, err := s.sessionFor(ctx, req)
	if err != nil {
		return nil, err
	}

	agentID := req.AgentID
	if agentID == "" {
		agentID = sess.ActiveAgentID
	}
	target, err := s.resolveAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversation(ctx, sess.ID, target.ID)
	if err != nil {
		return nil, err
	}

	history, err := s.history(ctx, conv.ID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var r *reply
	switch sess.Mode {
	case core.ModeRouter:
		r, err = s.answerRouted(ctx, text, history)
	case core.ModeRandom:
		r, err = s.answerRandom(ctx, text, history)
	case core.ModeCollaborative:
		r, err = s.answerCollaborative(ctx, text, history, req.Collaboration)
	default:
		r, err = s.answer(ctx, target, mention.Strip(text), history)
	}
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	userMsg := &core.Message{
		ID:             core.NewID(),
		ConversationID: conv.ID,
		Role:           core.RoleUser,
		Content:        text,
		CreatedAt:      s.opts.Now(),
	}
	assistantMsg := &core.Message{
		ID:              core.NewID(),
		ConversationID:  conv.ID,
		Role:            core.RoleAssistant,
		Content:         r.content,
		Provider:        r.provider,
		Model:           r.model,
		ResponseTime:    elapsed,
		Temperature:     r.temperature,
		SynthesizedFrom: r.synthesizedFrom,
		CreatedAt:       s.opts.Now(),
	}
	if !assistantMsg.CreatedAt.After(userMsg.CreatedAt) {
		assistantMsg.CreatedAt = userMsg.CreatedAt.Add(time.Millisecond)
	}
	if r.agent != nil {
		assistantMsg.AgentID = r.agent.ID
	}
	// Both messages or neither.
	if err := s.opts.Store.AppendMessages(ctx, userMsg, assistantMsg); err != nil {
		return nil, fmt.Errorf("store messages: %w", err)
	}

	if updated, err := s.opts.Store.GetConversationByID(ctx, conv.ID); err == nil {
		conv = updated
	}

	s.recordMessage(ctx, sess, conv, r, elapsed)

	return &SendResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Agent:            r.agent,
		Conversation:     conv,
		Routing:          r.routing,
		Collaborative:    r.collaborative,
	}, nil
}

// sessionFor resolves the pinned session or the user's own one.
func (s *Service) sessionFor(ctx context.Context, req SendRequest) (*core.Session, error) {
	if req.SessionID == "" {
		return s.GetOrCreateSession(ctx, req.UserID)
	}
	sess, err := s.opts.Store.GetSessionByID(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if sess.UserID != req.UserID {
		return nil, core.ErrSessionNotFound
	}
	return s.pruneActiveAgent(ctx, sess)
}

func (s *Service) history(ctx context.Context, conversationID string) ([]model.Message, error) {
	msgs, err := s.opts.Store.ListMessages(ctx, conversationID, s.opts.HistoryLimit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, model.Message{Role: string(m.Role), Content: m.Content})
	}
	return out, nil
}

// answer calls a single agent. Failures surface as core.ErrUpstream.
func (s *Service) answer(ctx context.Context, a *core.Agent, text string, history []model.Message) (*reply, error) {
	start := time.Now()
	resp, err := s.model.Complete(ctx, model.Request{
		SystemPrompt: a.Instructions(),
		UserPrompt:   text,
		History:      history,
		Temperature:  a.Temperature,
	})
	if err == nil && strings.TrimSpace(resp.Text) == "" {
		err = model.ErrEmptyCompletion
	}

	info := s.model.Info()
	modelID := resp.Model
	if modelID == "" {
		modelID = info.Name
	}
	s.log.LogCompletion(a.Name, modelID, time.Since(start), err)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrUpstream, err)
	}

	temp := a.Temperature
	return &reply{
		content:     strings.TrimSpace(resp.Text),
		agent:       a,
		provider:    info.Provider,
		model:       modelID,
		temperature: &temp,
	}, nil
}

func (s *Service) eligibleAgents(ctx context.Context) ([]*core.Agent, error) {
	agents, err := s.opts.Catalog.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, core.ErrNoAgentsAvailable
	}
	return agents, nil
}

func (s *Service) answerRouted(ctx context.Context, text string, history []model.Message) (*reply, error) {
	agents, err := s.eligibleAgents(ctx)
	if err != nil {
		return nil, err
	}

	stripped := mention.Strip(text)
	start := time.Now()
	res, err := s.router.Route(ctx, stripped, agents, s.opts.UseAIRouting)
	if err != nil {
		return nil, err
	}
	s.log.LogRouting(string(res.Method), res.Agent.Name, res.Confidence, time.Since(start))

	return s.answerSelected(ctx, res, stripped, history)
}

func (s *Service) answerRandom(ctx context.Context, text string, history []model.Message) (*reply, error) {
	agents, err := s.eligibleAgents(ctx)
	if err != nil {
		return nil, err
	}
	res, err := router.Random(agents, s.opts.Rand)
	if err != nil {
		return nil, err
	}
	s.log.LogRouting(string(res.Method), res.Agent.Name, res.Confidence, 0)

	return s.answerSelected(ctx, res, mention.Strip(text), history)
}

// answerSelected re-resolves the routed agent from the catalog and calls it.
func (s *Service) answerSelected(ctx context.Context, res router.Result, text string, history []model.Message) (*reply, error) {
	selected, err := s.opts.Catalog.GetAgent(ctx, res.Agent.ID)
	if err != nil || !selected.Eligible() {
		if err != nil && !errors.Is(err, core.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s", core.ErrSelectedAgentNotFound, res.Agent.Name)
	}

	r, err := s.answer(ctx, selected, text, history)
	if err != nil {
		return nil, err
	}
	r.routing = routingInfo(selected, res)
	return r, nil
}

func routingInfo(selected *core.Agent, res router.Result) *RoutingInfo {
	info := &RoutingInfo{
		SelectedAgent:  selected.Name,
		AgentID:        selected.ID,
		Reason:         res.Reason,
		Confidence:     res.Confidence,
		Method:         res.Method,
		FallbackReason: res.FallbackReason,
	}
	for _, alt := range res.Alternatives {
		info.Alternatives = append(info.Alternatives, Alternative{AgentName: alt.Agent.Name, Score: alt.Score})
	}
	return info
}

func (s *Service) answerCollaborative(ctx context.Context, text string, history []model.Message, override *collab.Options) (*reply, error) {
	agents, err := s.eligibleAgents(ctx)
	if err != nil {
		return nil, err
	}

	var opts collab.Options
	if override != nil {
		opts = *override
	}

	start := time.Now()
	res, err := s.collab.Run(ctx, collab.Request{Message: text, Agents: agents, History: history}, opts)
	if err != nil {
		return nil, err
	}
	s.log.LogCollaboration(string(res.Info.Style), len(res.Participants), len(res.Info.FailedAgents), time.Since(start))

	synthesized, err := json.Marshal(res.Contributions)
	if err != nil {
		return nil, fmt.Errorf("encode contributions: %w", err)
	}

	r := &reply{
		content:         res.Content,
		provider:        res.Provider,
		model:           res.Model,
		synthesizedFrom: string(synthesized),
		collaborative:   &res.Info,
	}
	if len(res.Participants) == 1 {
		r.agent = res.Participants[0]
		temp := r.agent.Temperature
		r.temperature = &temp
	}
	return r, nil
}

func (s *Service) recordMessage(ctx context.Context, sess *core.Session, conv *core.Conversation, r *reply, elapsed time.Duration) {
	meta := map[string]string{"conversation_id": conv.ID}
	if r.routing != nil {
		meta["routing_method"] = string(r.routing.Method)
		meta["confidence"] = strconv.FormatFloat(r.routing.Confidence, 'f', 2, 64)
	}
	if r.collaborative != nil {
		meta["style"] = string(r.collaborative.Style)
		meta["participants"] = strings.Join(r.collaborative.Participants, ",")
	}

	l := &core.InteractionLog{
		ID:           core.NewID(),
		UserID:       sess.UserID,
		SessionID:    sess.ID,
		EventType:    core.EventMessageSent,
		Mode:         sess.Mode,
		ResponseTime: elapsed,
		Metadata:     meta,
		CreatedAt:    s.opts.Now(),
	}
	if r.agent != nil {
		l.AgentID = r.agent.ID
		l.AgentName = r.agent.Name
	}
	s.recorder.Record(ctx, l)
}
