package domain

import (
	"time"

	"github.com/google/uuid"
)

var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCompleted, BookingCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether next is reachable from s in one step.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Open reports whether the booking still accepts payments.
func (s BookingStatus) Open() bool {
	return s == BookingPending || s == BookingConfirmed
}

func (t EventType) Valid() bool {
	switch t {
	case EventMarriage, EventBirthday, EventEngagement, EventCorporate, EventOther:
		return true
	}
	return false
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCreditCard, MethodDebitCard, MethodUPI, MethodNetBanking, MethodWallet:
		return true
	}
	return false
}

// Settled reports whether the payment has reached a successful terminal state.
func (s PaymentStatus) Settled() bool {
	return s == PaymentCompleted || s == PaymentRefunded
}

// Open reports whether a gateway callback may still resolve the payment.
func (s PaymentStatus) Open() bool {
	return s == PaymentInitiated || s == PaymentPending
}

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceDraft, InvoiceSent, InvoiceViewed, InvoicePaid,
		InvoicePartiallyPaid, InvoiceOverdue, InvoiceCancelled:
		return true
	}
	return false
}

// PaymentRequest returns the embedded request with the given id.
func (b *Booking) PaymentRequest(id uuid.UUID) (*PaymentRequest, bool) {
	for i := range b.PaymentRequests {
		if b.PaymentRequests[i].ID == id {
			return &b.PaymentRequests[i], true
		}
	}
	return nil, false
}

// SettlePaymentStatus recomputes the aggregate payment status: completed iff
// a whole-booking payment succeeded or every payment request is paid.
func (b *Booking) SettlePaymentStatus() {
	if b.GatewayPaymentID != "" {
		b.PaymentStatus = BookingPaymentCompleted
		return
	}

	if len(b.PaymentRequests) == 0 {
		b.PaymentStatus = BookingPaymentPending
		return
	}

	for _, pr := range b.PaymentRequests {
		if pr.Status != RequestPaid {
			b.PaymentStatus = BookingPaymentPending
			return
		}
	}

	b.PaymentStatus = BookingPaymentCompleted
}

// ExpireRequests marks pending requests past their expiry as expired and
// returns how many changed.
func (b *Booking) ExpireRequests(now time.Time) int {
	n := 0
	for i := range b.PaymentRequests {
		pr := &b.PaymentRequests[i]
		if pr.Status == RequestPending && !now.Before(pr.ExpiresAt) {
			pr.Status = RequestExpired
			n++
		}
	}
	return n
}

// HasDueRequests reports whether any pending request has expired by now.
func (b *Booking) HasDueRequests(now time.Time) bool {
	for _, pr := range b.PaymentRequests {
		if pr.Status == RequestPending && !now.Before(pr.ExpiresAt) {
			return true
		}
	}
	return false
}
