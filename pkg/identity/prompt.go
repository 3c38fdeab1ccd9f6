package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kredible/score-middleware/internal/metrics"
)

// ErrPromptNotFound is returned when completing or cancelling a prompt that
// does not exist or was already settled.
var ErrPromptNotFound = errors.New("prompt not found")

type promptOutcome struct {
	input     *ProfileInput
	cancelled bool
}

// Prompt is a pending profile request for one wallet address. It settles
// exactly once: completed or cancelled.
type Prompt struct {
	ID            string
	WalletAddress string
	CreatedAt     time.Time

	outcome chan promptOutcome
	once    sync.Once
}

func (p *Prompt) settle(out promptOutcome) bool {
	settled := false
	p.once.Do(func() {
		p.outcome <- out
		settled = true
	})
	return settled
}

// Broker implements Prompter for clients that answer prompts over separate
// requests. PromptProfile parks until Complete or Cancel arrives for the
// prompt id, or the caller's context expires.
type Broker struct {
	logger *zap.Logger

	mu       sync.Mutex
	byID     map[string]*Prompt
	byAddr   map[string]*Prompt
	watchers map[string][]chan *Prompt
}

// NewBroker creates a Broker.
func NewBroker(logger *zap.Logger) *Broker {
	return &Broker{
		logger:   logger,
		byID:     make(map[string]*Prompt),
		byAddr:   make(map[string]*Prompt),
		watchers: make(map[string][]chan *Prompt),
	}
}

// PromptProfile opens a prompt for the address and blocks until it settles.
// The broker imposes no deadline of its own; the enclosing flow bounds the
// wait through ctx, and that expiry counts as the user dismissing the prompt.
func (b *Broker) PromptProfile(ctx context.Context, walletAddress string) (*ProfileInput, error) {
	p := b.open(walletAddress)
	defer b.remove(p)

	select {
	case out := <-p.outcome:
		if out.cancelled {
			return nil, ErrPromptCancelled
		}
		return out.input, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrPromptCancelled, ctx.Err())
	}
}

// Expect returns a channel that receives the next prompt opened for the
// address. Used by the connect flow to hand the prompt id back to the client.
func (b *Broker) Expect(walletAddress string) <-chan *Prompt {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *Prompt, 1)
	if p, ok := b.byAddr[walletAddress]; ok {
		ch <- p
		return ch
	}
	b.watchers[walletAddress] = append(b.watchers[walletAddress], ch)
	return ch
}

// Forget drops a watcher registered with Expect. Callers must Forget
// channels that will no longer be read, or watchers for addresses that
// never prompt accumulate.
func (b *Broker) Forget(walletAddress string, ch <-chan *Prompt) {
	b.mu.Lock()
	defer b.mu.Unlock()

	watchers := b.watchers[walletAddress]
	for i, w := range watchers {
		if w == ch {
			b.watchers[walletAddress] = append(watchers[:i], watchers[i+1:]...)
			break
		}
	}
	if len(b.watchers[walletAddress]) == 0 {
		delete(b.watchers, walletAddress)
	}
}

// Complete settles the prompt with the collected profile.
func (b *Broker) Complete(promptID string, input ProfileInput) error {
	p, err := b.get(promptID)
	if err != nil {
		return err
	}
	if !p.settle(promptOutcome{input: &input}) {
		return ErrPromptNotFound
	}
	return nil
}

// Cancel settles the prompt as dismissed.
func (b *Broker) Cancel(promptID string) error {
	p, err := b.get(promptID)
	if err != nil {
		return err
	}
	if !p.settle(promptOutcome{cancelled: true}) {
		return ErrPromptNotFound
	}
	return nil
}

func (b *Broker) get(promptID string) (*Prompt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	p, ok := b.byID[promptID]
	if !ok {
		return nil, ErrPromptNotFound
	}
	return p, nil
}

func (b *Broker) open(walletAddress string) *Prompt {
	b.mu.Lock()
	defer b.mu.Unlock()

	p := &Prompt{
		ID:            uuid.NewString(),
		WalletAddress: walletAddress,
		CreatedAt:     time.Now().UTC(),
		outcome:       make(chan promptOutcome, 1),
	}
	b.byID[p.ID] = p
	b.byAddr[walletAddress] = p
	metrics.PromptsOpen.Inc()

	for _, ch := range b.watchers[walletAddress] {
		ch <- p
	}
	delete(b.watchers, walletAddress)

	b.logger.Debug("profile prompt opened",
		zap.String("prompt_id", p.ID),
		zap.String("address", walletAddress))
	return p
}

func (b *Broker) remove(p *Prompt) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.byID[p.ID]; ok {
		delete(b.byID, p.ID)
		metrics.PromptsOpen.Dec()
	}
	if b.byAddr[p.WalletAddress] == p {
		delete(b.byAddr, p.WalletAddress)
	}
}
