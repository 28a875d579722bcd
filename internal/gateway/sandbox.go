package gateway

import (
	"context"
	"math/rand"
	"sync"

	"invoice-billing-backend/internal/models"
)

// SandboxProvider simulates a payment gateway for local development.
// Roughly 80% of charges succeed, the rest are declined.
type SandboxProvider struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewSandboxProvider(seed int64) *SandboxProvider {
	return &SandboxProvider{rng: rand.New(rand.NewSource(seed))}
}

func (p *SandboxProvider) Charge(ctx context.Context, invoice models.Invoice) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, &NetworkError{Cause: err}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Float64() < 0.8, nil
}
