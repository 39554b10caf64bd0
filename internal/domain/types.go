package domain

import (
	"time"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCancelled BookingStatus = "cancelled"
)

type BookingPaymentStatus string

const (
	BookingPaymentPending   BookingPaymentStatus = "pending"
	BookingPaymentCompleted BookingPaymentStatus = "completed"
)

type EventType string

const (
	EventMarriage   EventType = "marriage"
	EventBirthday   EventType = "birthday"
	EventEngagement EventType = "engagement"
	EventCorporate  EventType = "corporate"
	EventOther      EventType = "other"
)

type PaymentRequestStatus string

const (
	RequestPending PaymentRequestStatus = "pending"
	RequestPaid    PaymentRequestStatus = "paid"
	RequestExpired PaymentRequestStatus = "expired"
)

type PaymentMethod string

const (
	MethodCreditCard PaymentMethod = "credit_card"
	MethodDebitCard  PaymentMethod = "debit_card"
	MethodUPI        PaymentMethod = "upi"
	MethodNetBanking PaymentMethod = "net_banking"
	MethodWallet     PaymentMethod = "wallet"
)

type Gateway string

const (
	GatewayRazorpay  Gateway = "razorpay"
	GatewayStripe    Gateway = "stripe"
	GatewayPhonePe   Gateway = "phonepe"
	GatewayGooglePay Gateway = "googlepay"
)

type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "draft"
	InvoiceSent          InvoiceStatus = "sent"
	InvoiceViewed        InvoiceStatus = "viewed"
	InvoicePaid          InvoiceStatus = "paid"
	InvoicePartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceOverdue       InvoiceStatus = "overdue"
	InvoiceCancelled     InvoiceStatus = "cancelled"
)

type InvoicePaymentStatus string

const (
	InvoiceUnpaid   InvoicePaymentStatus = "unpaid"
	InvoicePartial  InvoicePaymentStatus = "partial"
	InvoiceSettled  InvoicePaymentStatus = "paid"
	InvoiceRefunded InvoicePaymentStatus = "refunded"
)

type LineItemType string

const (
	LineVenue   LineItemType = "venue"
	LineService LineItemType = "service"
)

// Venue, Service and User are read from the catalog directory; the ledger
// only keeps their ids.
type Venue struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	Name             string `json:"name"`
	Location         string `json:"location"`
	Capacity         int    `json:"capacity"`
	PricePerDayCents int64  `json:"price_per_day_cents"`
}

type ServicePricing struct {
	FullEventCents int64 `json:"full_event_cents,omitempty"`
	HourlyCents    int64 `json:"hourly_cents,omitempty"`
}

type Service struct {
	ID         string         `json:"id"`
	ProviderID string         `json:"provider_id"`
	Name       string         `json:"name"`
	Type       string         `json:"type"`
	Pricing    ServicePricing `json:"pricing"`
}

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	Role  string `json:"role"`
}

type PaymentRequest struct {
	ID               uuid.UUID            `json:"id"`
	AmountCents      int64                `json:"amount_cents"`
	Description      string               `json:"description"`
	Status           PaymentRequestStatus `json:"status"`
	GatewayOrderID   string               `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string               `json:"gateway_payment_id,omitempty"`
	GatewaySignature string               `json:"gateway_signature,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	ExpiresAt        time.Time            `json:"expires_at"`
	PaidAt           *time.Time           `json:"paid_at,omitempty"`
}

type Booking struct {
	ID               uuid.UUID            `json:"id"`
	CustomerID       string               `json:"customer_id"`
	VenueID          string               `json:"venue_id"`
	ServiceIDs       []string             `json:"service_ids"`
	EventDate        time.Time            `json:"event_date"`
	StartTime        string               `json:"event_start_time"`
	EndTime          string               `json:"event_end_time"`
	EventType        EventType            `json:"event_type"`
	GuestCount       int                  `json:"guest_count"`
	TotalCents       int64                `json:"total_cents"`
	Status           BookingStatus        `json:"status"`
	PaymentStatus    BookingPaymentStatus `json:"payment_status"`
	GatewayOrderID   string               `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string               `json:"gateway_payment_id,omitempty"`
	PaymentRequests  []PaymentRequest     `json:"payment_requests"`
	CustomerName     string               `json:"customer_name"`
	CustomerEmail    string               `json:"customer_email"`
	CustomerPhone    string               `json:"customer_phone"`
	SpecialRequests  string               `json:"special_requests,omitempty"`
	Version          int64                `json:"version"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

type CardDetails struct {
	Last4       string `json:"last4,omitempty"`
	Brand       string `json:"brand,omitempty"`
	ExpiryMonth int    `json:"expiry_month,omitempty"`
	ExpiryYear  int    `json:"expiry_year,omitempty"`
}

type UPIDetails struct {
	VPA           string `json:"vpa,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type NetBankingDetails struct {
	BankName          string `json:"bank_name,omitempty"`
	BankTransactionID string `json:"bank_transaction_id,omitempty"`
}

type WalletDetails struct {
	Provider string `json:"provider,omitempty"`
}

// MethodDetails is the method-specific snapshot kept with a payment. At most
// one of the blocks is set, matching Payment.Method.
type MethodDetails struct {
	Card       *CardDetails       `json:"card,omitempty"`
	UPI        *UPIDetails        `json:"upi,omitempty"`
	NetBanking *NetBankingDetails `json:"net_banking,omitempty"`
	Wallet     *WalletDetails     `json:"wallet,omitempty"`
}

// Clone returns a deep copy.
func (d MethodDetails) Clone() MethodDetails {
	if d.Card != nil {
		c := *d.Card
		d.Card = &c
	}
	if d.UPI != nil {
		u := *d.UPI
		d.UPI = &u
	}
	if d.NetBanking != nil {
		n := *d.NetBanking
		d.NetBanking = &n
	}
	if d.Wallet != nil {
		w := *d.Wallet
		d.Wallet = &w
	}
	return d
}

// SavedMethod is a payment method a customer keeps for later checkouts. Only
// masked details are stored. Deleting one deactivates it.
type SavedMethod struct {
	ID        uuid.UUID     `json:"id"`
	UserID    string        `json:"user_id"`
	Type      PaymentMethod `json:"type"`
	Nickname  string        `json:"nickname,omitempty"`
	Details   MethodDetails `json:"details"`
	Gateway   Gateway       `json:"gateway"`
	IsDefault bool          `json:"is_default"`
	Active    bool          `json:"-"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

type Payment struct {
	ID               uuid.UUID     `json:"id"`
	BookingID        uuid.UUID     `json:"booking_id"`
	CustomerID       string        `json:"customer_id"`
	AmountCents      int64         `json:"amount_cents"`
	Currency         string        `json:"currency"`
	Method           PaymentMethod `json:"method"`
	Gateway          Gateway       `json:"gateway"`
	GatewayOrderID   string        `json:"gateway_order_id"`
	GatewayPaymentID string        `json:"gateway_payment_id,omitempty"`
	GatewaySignature string        `json:"-"`
	Details          MethodDetails `json:"details"`
	Status           PaymentStatus `json:"status"`
	FailureReason    string        `json:"failure_reason,omitempty"`
	RefundCents      int64         `json:"refund_cents"`
	RefundedAt       *time.Time    `json:"refunded_at,omitempty"`
	RefundReason     string        `json:"refund_reason,omitempty"`
	IPAddress        string        `json:"ip_address,omitempty"`
	UserAgent        string        `json:"user_agent,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
}

type LineItem struct {
	Description string       `json:"description"`
	Quantity    int          `json:"quantity"`
	UnitCents   int64        `json:"unit_cents"`
	TotalCents  int64        `json:"total_cents"`
	Type        LineItemType `json:"type"`
}

type EventDetails struct {
	EventType  EventType `json:"event_type"`
	EventDate  time.Time `json:"event_date"`
	StartTime  string    `json:"event_start_time"`
	EndTime    string    `json:"event_end_time"`
	VenueName  string    `json:"venue_name,omitempty"`
	Location   string    `json:"location,omitempty"`
	GuestCount int       `json:"guest_count"`
}

type CustomerInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Invoice struct {
	ID              uuid.UUID            `json:"id"`
	Number          string               `json:"invoice_number"`
	Year            int                  `json:"year"`
	Sequence        int                  `json:"sequence"`
	BookingID       uuid.UUID            `json:"booking_id"`
	PaymentID       uuid.UUID            `json:"payment_id"`
	CustomerID      string               `json:"customer_id"`
	VendorID        string               `json:"vendor_id,omitempty"`
	InvoiceDate     time.Time            `json:"invoice_date"`
	Event           EventDetails         `json:"event_details"`
	LineItems       []LineItem           `json:"line_items"`
	SubtotalCents   int64                `json:"subtotal_cents"`
	TaxRateBps      int                  `json:"tax_rate_bps"`
	TaxCents        int64                `json:"tax_cents"`
	DiscountCents   int64                `json:"discount_cents"`
	TotalCents      int64                `json:"total_cents"`
	PaymentStatus   InvoicePaymentStatus `json:"payment_status"`
	AmountPaidCents int64                `json:"amount_paid_cents"`
	AmountDueCents  int64                `json:"amount_due_cents"`
	Customer        CustomerInfo         `json:"customer_info"`
	Notes           string               `json:"notes,omitempty"`
	Status          InvoiceStatus        `json:"status"`
	SentAt          *time.Time           `json:"sent_at,omitempty"`
	Currency        string               `json:"currency"`
	CreatedAt       time.Time            `json:"created_at"`
	UpdatedAt       time.Time            `json:"updated_at"`
}
