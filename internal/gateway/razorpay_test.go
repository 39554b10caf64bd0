package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignMatchesHMAC(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("S"))
	mac.Write([]byte("o1|p1"))
	want := hex.EncodeToString(mac.Sum(nil))

	assert.Equal(t, want, Sign("S", "o1", "p1"))
	assert.True(t, Verify("S", "o1", "p1", want))
}

func TestVerifyRejectsAnythingElse(t *testing.T) {
	good := Sign("S", "o1", "p1")

	for _, sig := range []string{
		"",
		Sign("S", "o1", "p2"),
		Sign("T", "o1", "p1"),
		Sign("S", "o1|", "p1"),
		good[:len(good)-1],
		good + "0",
	} {
		assert.False(t, Verify("S", "o1", "p1", sig), "signature %q", sig)
	}
}

func TestCreateOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)

		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "key_1", user)
		assert.Equal(t, "secret", pass)

		var body createOrderBody
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, int64(1416000), body.Amount)
		assert.Equal(t, "INR", body.Currency)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(orderResponse{
			ID: "order_abc", Amount: body.Amount, Currency: body.Currency, Receipt: body.Receipt, Status: "created",
		})
	}))
	defer srv.Close()

	client := NewRazorpay(Config{BaseURL: srv.URL + "/", KeyID: "key_1", KeySecret: "secret"})

	order, err := client.CreateOrder(context.Background(), OrderRequest{AmountCents: 1416000, Currency: "INR", Receipt: "booking_1"})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, "booking_1", order.Receipt)
	assert.Equal(t, domain.GatewayRazorpay, client.Name())
	assert.Equal(t, "key_1", client.KeyID())
}

func TestCreateOrderMapsFailuresToGatewayError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	client := NewRazorpay(Config{BaseURL: srv.URL, KeyID: "k", KeySecret: "s"})
	_, err := client.CreateOrder(context.Background(), OrderRequest{AmountCents: 1, Currency: "INR"})
	require.ErrorIs(t, err, domain.ErrGateway)
	assert.Contains(t, err.Error(), "amount too small")
}

func TestCreateOrderTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	client := NewRazorpay(Config{BaseURL: srv.URL, KeyID: "k", KeySecret: "s", Timeout: 50 * time.Millisecond})
	_, err := client.CreateOrder(context.Background(), OrderRequest{AmountCents: 100, Currency: "INR"})
	assert.ErrorIs(t, err, domain.ErrGateway)
}
