package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the root of every "record does not exist" error.
	ErrNotFound = errors.New("not found")

	// ErrSessionNotFound is returned when a session is required but absent.
	ErrSessionNotFound = fmt.Errorf("session %w", ErrNotFound)

	// ErrConversationNotFound is returned for unknown conversations.
	ErrConversationNotFound = fmt.Errorf("conversation %w", ErrNotFound)

	// ErrAgentNotFoundOrInactive is returned when an agent id does not
	// resolve to an active tutor agent.
	ErrAgentNotFoundOrInactive = fmt.Errorf("agent %w or inactive", ErrNotFound)

	// ErrNoAgentsAvailable signals that routing or collaboration was
	// attempted while no eligible agent exists.
	ErrNoAgentsAvailable = errors.New("no agents available")

	// ErrSelectedAgentNotFound signals that a routing decision names an
	// agent the catalog cannot resolve afterwards.
	ErrSelectedAgentNotFound = errors.New("selected agent not found")

	// ErrUpstream wraps completion service failures on single-agent paths.
	ErrUpstream = errors.New("failed to get AI response")

	// ErrInvalidMode is returned for unknown session modes.
	ErrInvalidMode = errors.New("invalid mode")

	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("invalid argument")
)
