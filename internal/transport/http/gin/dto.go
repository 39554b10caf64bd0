package httpgin

import (
	"github.com/kirinyoku/venuebook/internal/domain"
)

type CheckAvailabilityRequest struct {
	VenueID   string `json:"venue_id" binding:"required"`
	EventDate string `json:"event_date" binding:"required"`
	StartTime string `json:"event_start_time" binding:"required"`
	EndTime   string `json:"event_end_time" binding:"required"`
}

type CreateBookingRequest struct {
	VenueID         string           `json:"venue_id"`
	ServiceIDs      []string         `json:"service_ids"`
	EventDate       string           `json:"event_date" binding:"required"`
	StartTime       string           `json:"event_start_time" binding:"required"`
	EndTime         string           `json:"event_end_time" binding:"required"`
	EventType       domain.EventType `json:"event_type" binding:"required"`
	GuestCount      int              `json:"guest_count" binding:"required,gt=0"`
	CustomerName    string           `json:"customer_name"`
	CustomerEmail   string           `json:"customer_email" binding:"omitempty,email"`
	CustomerPhone   string           `json:"customer_phone"`
	SpecialRequests string           `json:"special_requests"`
}

type UpdateBookingStatusRequest struct {
	Status domain.BookingStatus `json:"status" binding:"required"`
}

type InitiatePaymentRequest struct {
	BookingID      string               `json:"booking_id" binding:"required,uuid"`
	AmountCents    int64                `json:"amount_cents" binding:"required,gt=0"`
	Method         domain.PaymentMethod `json:"payment_method" binding:"required"`
	CardNumber     string               `json:"card_number"`
	CardBrand      string               `json:"card_brand"`
	ExpiryMonth    int                  `json:"expiry_month"`
	ExpiryYear     int                  `json:"expiry_year"`
	VPA            string               `json:"vpa"`
	BankName       string               `json:"bank_name"`
	WalletProvider string               `json:"wallet_provider"`
}

type SaveMethodRequest struct {
	Type           domain.PaymentMethod `json:"type" binding:"required"`
	Nickname       string               `json:"nickname" binding:"max=64"`
	CardNumber     string               `json:"card_number"`
	CardBrand      string               `json:"card_brand"`
	ExpiryMonth    int                  `json:"expiry_month"`
	ExpiryYear     int                  `json:"expiry_year"`
	VPA            string               `json:"vpa"`
	BankName       string               `json:"bank_name"`
	WalletProvider string               `json:"wallet_provider"`
	IsDefault      bool                 `json:"is_default"`
}

type VerifyPaymentRequest struct {
	BookingID         string `json:"booking_id" binding:"required,uuid"`
	GatewayOrderID    string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID  string `json:"gateway_payment_id" binding:"required"`
	Signature         string `json:"gateway_signature" binding:"required"`
	TransactionID     string `json:"transaction_id"`
	CardLast4         string `json:"card_last4"`
	CardBrand         string `json:"card_brand"`
	BankName          string `json:"bank_name"`
	BankTransactionID string `json:"bank_transaction_id"`
	VPA               string `json:"vpa"`
}

type FailPaymentRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type RefundPaymentRequest struct {
	AmountCents int64  `json:"amount_cents" binding:"required,gt=0"`
	Reason      string `json:"reason"`
}

type CreatePaymentRequestRequest struct {
	AmountCents     int64  `json:"amount_cents" binding:"required,gt=0"`
	Description     string `json:"description"`
	DaysUntilExpiry int    `json:"days_until_expiry" binding:"gte=0"`
}

type VerifyPaymentRequestRequest struct {
	RequestID        string `json:"payment_request_id" binding:"required,uuid"`
	GatewayOrderID   string `json:"gateway_order_id" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Signature        string `json:"gateway_signature" binding:"required"`
}

type UpdateInvoiceStatusRequest struct {
	Status domain.InvoiceStatus `json:"status" binding:"required"`
	Notes  string               `json:"notes"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
