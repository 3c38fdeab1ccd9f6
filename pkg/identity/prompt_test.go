package identity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBrokerCompleteSettlesPrompt(t *testing.T) {
	b := NewBroker(zap.NewNop())

	expect := b.Expect(testAddr)
	go func() {
		p := <-expect
		require.NoError(t, b.Complete(p.ID, ProfileInput{Name: "Alice", Email: "alice@example.com"}))
	}()

	input, err := b.PromptProfile(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, "Alice", input.Name)
	assert.Equal(t, "alice@example.com", input.Email)
}

func TestBrokerCancelSettlesPrompt(t *testing.T) {
	b := NewBroker(zap.NewNop())

	expect := b.Expect(testAddr)
	go func() {
		p := <-expect
		require.NoError(t, b.Cancel(p.ID))
	}()

	_, err := b.PromptProfile(context.Background(), testAddr)
	assert.ErrorIs(t, err, ErrPromptCancelled)
}

func TestBrokerHasNoDeadlineOfItsOwn(t *testing.T) {
	b := NewBroker(zap.NewNop())

	expect := b.Expect(testAddr)
	go func() {
		p := <-expect
		// Answer well after any plausible internal timer would have fired.
		time.Sleep(50 * time.Millisecond)
		require.NoError(t, b.Complete(p.ID, ProfileInput{Name: "Alice", Email: "alice@example.com"}))
	}()

	input, err := b.PromptProfile(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, "Alice", input.Name)
}

func TestBrokerContextCancellation(t *testing.T) {
	b := NewBroker(zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := b.PromptProfile(ctx, testAddr)
	assert.ErrorIs(t, err, ErrPromptCancelled)
}

func TestBrokerCompleteUnknownPrompt(t *testing.T) {
	b := NewBroker(zap.NewNop())

	err := b.Complete("no-such-prompt", ProfileInput{Name: "Alice", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrPromptNotFound)

	assert.ErrorIs(t, b.Cancel("no-such-prompt"), ErrPromptNotFound)
}

func TestBrokerSettlesExactlyOnce(t *testing.T) {
	b := NewBroker(zap.NewNop())

	expect := b.Expect(testAddr)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p := <-expect
		require.NoError(t, b.Complete(p.ID, ProfileInput{Name: "Alice", Email: "alice@example.com"}))
		// Second settlement attempt must be rejected.
		assert.Error(t, b.Cancel(p.ID))
	}()

	input, err := b.PromptProfile(context.Background(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, "Alice", input.Name)
	<-done
}

func TestBrokerExpectAfterOpen(t *testing.T) {
	b := NewBroker(zap.NewNop())

	go func() {
		_, _ = b.PromptProfile(context.Background(), testAddr)
	}()

	// Wait for the prompt to open, then Expect must deliver it immediately.
	var p *Prompt
	require.Eventually(t, func() bool {
		select {
		case p = <-b.Expect(testAddr):
			return true
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)

	require.NotNil(t, p)
	assert.Equal(t, testAddr, p.WalletAddress)
	require.NoError(t, b.Cancel(p.ID))
}

func TestBrokerPromptRemovedAfterSettlement(t *testing.T) {
	b := NewBroker(zap.NewNop())

	expect := b.Expect(testAddr)
	var promptID string
	go func() {
		p := <-expect
		promptID = p.ID
		require.NoError(t, b.Complete(p.ID, ProfileInput{Name: "Alice", Email: "alice@example.com"}))
	}()

	_, err := b.PromptProfile(context.Background(), testAddr)
	require.NoError(t, err)

	assert.ErrorIs(t, b.Cancel(promptID), ErrPromptNotFound)
}

func TestBrokerForgetDropsWatcher(t *testing.T) {
	b := NewBroker(zap.NewNop())

	expect := b.Expect(testAddr)
	b.Forget(testAddr, expect)

	b.mu.Lock()
	_, registered := b.watchers[testAddr]
	b.mu.Unlock()
	assert.False(t, registered, "forgotten watchers must not accumulate")
}
