package model

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockModel_CannedAndDefaultResponses(t *testing.T) {
	m := NewMockModel("mock-1", "mock")
	m.AddResponse("hello", "hi there")

	resp, err := m.Complete(context.Background(), Request{UserPrompt: "hello"})
	require.NoError(t, err)
	assert.Equal(t, "hi there", resp.Text)
	assert.Equal(t, "mock-1", resp.Model)

	resp, err = m.Complete(context.Background(), Request{UserPrompt: "other"})
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: other", resp.Text)

	assert.Len(t, m.Calls(), 2)
	assert.Equal(t, Info{Name: "mock-1", Provider: "mock"}, m.Info())
}

func TestMockModel_FailForSystemPrompt(t *testing.T) {
	boom := errors.New("provider down")
	m := NewMockModel("mock", "mock")
	m.FailForSystemPrompt("Beatrice", boom)

	_, err := m.Complete(context.Background(), Request{SystemPrompt: "You are Beatrice", UserPrompt: "x"})
	assert.ErrorIs(t, err, boom)

	_, err = m.Complete(context.Background(), Request{SystemPrompt: "You are Sam", UserPrompt: "x"})
	assert.NoError(t, err)
}

func TestMockModel_ConcurrentCalls(t *testing.T) {
	m := NewMockModel("mock", "mock")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Complete(context.Background(), Request{UserPrompt: "q"})
		}()
	}
	wg.Wait()

	assert.Len(t, m.Calls(), 20)
}

func TestWithTimeout(t *testing.T) {
	slow := Func(func(ctx context.Context, _ Request) (Response, error) {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(time.Second):
			return Response{Text: "late"}, nil
		}
	})

	_, err := WithTimeout(slow, 10*time.Millisecond).Complete(context.Background(), Request{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	m := NewMockModel("mock", "mock")
	assert.Same(t, m, WithTimeout(m, 0))
}
