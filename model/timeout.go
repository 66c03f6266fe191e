package model

import (
	"context"
	"time"
)

type timeoutModel struct {
	next    Model
	timeout time.Duration
}

// WithTimeout wraps m so that every Complete call runs under its own
// deadline. A non-positive timeout returns m unchanged.
func WithTimeout(m Model, timeout time.Duration) Model {
	if timeout <= 0 {
		return m
	}
	return &timeoutModel{next: m, timeout: timeout}
}

func (t *timeoutModel) Complete(ctx context.Context, req Request) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.next.Complete(ctx, req)
}

func (t *timeoutModel) Info() Info { return t.next.Info() }
