package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirinyoku/venuebook/internal/domain"
)

type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Razorpay is a client for the Razorpay orders API.
type Razorpay struct {
	baseURL string
	keyID   string
	secret  string
	http    *http.Client
}

func NewRazorpay(cfg Config) *Razorpay {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Razorpay{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		keyID:   cfg.KeyID,
		secret:  cfg.KeySecret,
		http:    &http.Client{Timeout: timeout},
	}
}

func (r *Razorpay) Name() domain.Gateway { return domain.GatewayRazorpay }

func (r *Razorpay) KeyID() string { return r.keyID }

type createOrderBody struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (r *Razorpay) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	const op = "gateway.Razorpay.CreateOrder"

	payload, err := json.Marshal(createOrderBody{
		Amount:   req.AmountCents,
		Currency: req.Currency,
		Receipt:  req.Receipt,
	})
	if err != nil {
		return Order{}, fmt.Errorf("%s:%w", op, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return Order{}, fmt.Errorf("%s:%w", op, err)
	}

	httpReq.SetBasicAuth(r.keyID, r.secret)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return Order{}, fmt.Errorf("%s:%w: %v", op, domain.ErrGateway, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Order{}, fmt.Errorf("%s:%w: read response: %v", op, domain.ErrGateway, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var e errorResponse
		_ = json.Unmarshal(body, &e)
		return Order{}, fmt.Errorf("%s:%w: status %d %s", op, domain.ErrGateway, resp.StatusCode, e.Error.Description)
	}

	var out orderResponse
	if err := json.Unmarshal(body, &out); err != nil || out.ID == "" {
		return Order{}, fmt.Errorf("%s:%w: malformed order response", op, domain.ErrGateway)
	}

	return Order{
		ID:          out.ID,
		AmountCents: out.Amount,
		Currency:    out.Currency,
		Receipt:     out.Receipt,
		Status:      out.Status,
	}, nil
}

func (r *Razorpay) VerifySignature(orderID, paymentID, signature string) bool {
	return Verify(r.secret, orderID, paymentID, signature)
}
