// Package gateway talks to the external payment provider: it opens orders
// and authenticates the signed completion callbacks.
package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"github.com/kirinyoku/venuebook/internal/domain"
)

type OrderRequest struct {
	AmountCents int64
	Currency    string
	Receipt     string
}

type Order struct {
	ID          string
	AmountCents int64
	Currency    string
	Receipt     string
	Status      string
}

// Client is a payment provider.
type Client interface {
	Name() domain.Gateway
	// KeyID is the public key the client app needs to open checkout.
	KeyID() string
	// CreateOrder fails with domain.ErrGateway when the provider is
	// unreachable, slow or rejects the request.
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

// Sign returns hex(HMAC-SHA256(secret, orderID + "|" + paymentID)).
func Sign(secret, orderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature with the expected one byte for byte.
func Verify(secret, orderID, paymentID, signature string) bool {
	expected := Sign(secret, orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
