package session

import (
	"testing"

	"github.com/hupe1980/tutormesh/core"
	"github.com/hupe1980/tutormesh/internal/storetest"
)

func TestInMemoryStore(t *testing.T) {
	storetest.Run(t, func(*testing.T) core.Store { return NewInMemoryStore() })
}
