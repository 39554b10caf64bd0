package gateway

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
)

// Sandbox is an offline provider for local runs and tests. Order ids are
// random so that restarts and parallel instances never reuse one, and
// callbacks are signed with the sandbox secret.
type Sandbox struct {
	secret string

	mu   sync.Mutex
	fail error
}

func NewSandbox(secret string) *Sandbox {
	return &Sandbox{secret: secret}
}

func (s *Sandbox) Name() domain.Gateway { return domain.GatewayRazorpay }

func (s *Sandbox) KeyID() string { return "rzp_sandbox" }

// FailNext makes the next CreateOrder fail with err wrapped in
// domain.ErrGateway.
func (s *Sandbox) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = err
}

func (s *Sandbox) CreateOrder(_ context.Context, req OrderRequest) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fail != nil {
		err := s.fail
		s.fail = nil
		return Order{}, fmt.Errorf("gateway.Sandbox.CreateOrder:%w: %v", domain.ErrGateway, err)
	}

	return Order{
		ID:          newSandboxOrderID(),
		AmountCents: req.AmountCents,
		Currency:    req.Currency,
		Receipt:     req.Receipt,
		Status:      "created",
	}, nil
}

func (s *Sandbox) VerifySignature(orderID, paymentID, signature string) bool {
	return Verify(s.secret, orderID, paymentID, signature)
}

// Sign produces the callback signature the provider would send.
func (s *Sandbox) Sign(orderID, paymentID string) string {
	return Sign(s.secret, orderID, paymentID)
}

// newSandboxOrderID mimics the provider's "order_" + 14 character ids.
func newSandboxOrderID() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "order_sbx_" + hex[len(hex)-14:]
}
