// Package memory is an in-process implementation of the repositories and the
// unit of work. Transactions are fully serialized and roll back by restoring a
// snapshot, which gives the same isolation the postgres store provides.
package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/uow"
)

type state struct {
	bookings map[uuid.UUID]domain.Booking
	payments map[uuid.UUID]domain.Payment
	invoices map[uuid.UUID]domain.Invoice
	methods  map[uuid.UUID]domain.SavedMethod
	counters map[int]int
}

func (s state) clone() state {
	return state{
		bookings: maps.Clone(s.bookings),
		payments: maps.Clone(s.payments),
		invoices: maps.Clone(s.invoices),
		methods:  maps.Clone(s.methods),
		counters: maps.Clone(s.counters),
	}
}

type Store struct {
	mu     sync.Mutex
	st     state
	faults map[string]error
}

var _ uow.Runner = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		st: state{
			bookings: map[uuid.UUID]domain.Booking{},
			payments: map[uuid.UUID]domain.Payment{},
			invoices: map[uuid.UUID]domain.Invoice{},
			methods:  map[uuid.UUID]domain.SavedMethod{},
			counters: map[int]int{},
		},
		faults: map[string]error{},
	}
}

// Fail makes the next call of op (e.g. "invoices.create") return err.
func (s *Store) Fail(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

func (s *Store) Repos() repository.Tx {
	return repos{s: s}
}

// Do runs fn while holding the store exclusively. Any error restores the
// state seen at the start.
func (s *Store) Do(ctx context.Context, fn uow.TxFunc) error {
	var hooks []uow.AfterCommit

	s.mu.Lock()
	snapshot := s.st.clone()

	err := fn(ctx, repos{s: s, inTx: true}, func(h uow.AfterCommit) {
		hooks = append(hooks, h)
	})
	if err != nil {
		s.st = snapshot
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

// Counts reports how many rows of each kind are stored.
func (s *Store) Counts() (bookings, payments, invoices int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.st.bookings), len(s.st.payments), len(s.st.invoices)
}

type repos struct {
	s    *Store
	inTx bool
}

func (r repos) Bookings() repository.Bookings         { return bookingRepo(r) }
func (r repos) Payments() repository.Payments         { return paymentRepo(r) }
func (r repos) Invoices() repository.Invoices         { return invoiceRepo(r) }
func (r repos) SavedMethods() repository.SavedMethods { return methodRepo(r) }

// enter locks the store for calls made outside a unit of work and reports an
// injected fault for op.
func (r repos) enter(op string) (func(), error) {
	unlock := func() {}
	if !r.inTx {
		r.s.mu.Lock()
		unlock = r.s.mu.Unlock
	}

	if err, ok := r.s.faults[op]; ok {
		delete(r.s.faults, op)
		return unlock, err
	}

	return unlock, nil
}

type bookingRepo repos

func (r bookingRepo) Create(_ context.Context, b *domain.Booking) error {
	unlock, err := repos(r).enter("bookings.create")
	defer unlock()
	if err != nil {
		return err
	}

	if _, ok := r.s.st.bookings[b.ID]; ok {
		return fmt.Errorf("memory.bookingRepo.Create:%w", repository.ErrConflict)
	}

	b.Version = 1
	r.s.st.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (r bookingRepo) Get(_ context.Context, id uuid.UUID) (*domain.Booking, error) {
	unlock, err := repos(r).enter("bookings.get")
	defer unlock()
	if err != nil {
		return nil, err
	}

	b, ok := r.s.st.bookings[id]
	if !ok {
		return nil, fmt.Errorf("memory.bookingRepo.Get:%w", repository.ErrNotFound)
	}

	out := cloneBooking(b)
	return &out, nil
}

func (r bookingRepo) Update(_ context.Context, b *domain.Booking) error {
	unlock, err := repos(r).enter("bookings.update")
	defer unlock()
	if err != nil {
		return err
	}

	cur, ok := r.s.st.bookings[b.ID]
	if !ok || cur.Version != b.Version {
		return fmt.Errorf("memory.bookingRepo.Update:%w", repository.ErrStaleVersion)
	}

	b.Version++
	r.s.st.bookings[b.ID] = cloneBooking(*b)
	return nil
}

func (r bookingRepo) LockVenueDay(context.Context, string, time.Time) error {
	unlock, err := repos(r).enter("bookings.lock")
	defer unlock()
	return err
}

func (r bookingRepo) ActiveForVenueDay(_ context.Context, venueID string, day time.Time) ([]domain.Booking, error) {
	unlock, err := repos(r).enter("bookings.active")
	defer unlock()
	if err != nil {
		return nil, err
	}

	first, last := domain.DayBounds(day)
	out := r.filter(func(b domain.Booking) bool {
		return b.VenueID == venueID && b.Blocks() &&
			!b.EventDate.Before(first) && !b.EventDate.After(last)
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out, nil
}

func (r bookingRepo) ListByCustomer(_ context.Context, customerID string) ([]domain.Booking, error) {
	unlock, err := repos(r).enter("bookings.list")
	defer unlock()
	if err != nil {
		return nil, err
	}

	out := r.filter(func(b domain.Booking) bool { return b.CustomerID == customerID })
	sortNewestEvent(out)
	return out, nil
}

func (r bookingRepo) ListByVenues(_ context.Context, venueIDs []string) ([]domain.Booking, error) {
	unlock, err := repos(r).enter("bookings.list")
	defer unlock()
	if err != nil {
		return nil, err
	}

	out := r.filter(func(b domain.Booking) bool { return slices.Contains(venueIDs, b.VenueID) })
	sortNewestEvent(out)
	return out, nil
}

func (r bookingRepo) ListByServices(_ context.Context, serviceIDs []string) ([]domain.Booking, error) {
	unlock, err := repos(r).enter("bookings.list")
	defer unlock()
	if err != nil {
		return nil, err
	}

	out := r.filter(func(b domain.Booking) bool {
		return slices.ContainsFunc(b.ServiceIDs, func(id string) bool { return slices.Contains(serviceIDs, id) })
	})
	sortNewestEvent(out)
	return out, nil
}

func (r bookingRepo) ListWithPendingRequests(context.Context) ([]domain.Booking, error) {
	unlock, err := repos(r).enter("bookings.list")
	defer unlock()
	if err != nil {
		return nil, err
	}

	out := r.filter(func(b domain.Booking) bool {
		return slices.ContainsFunc(b.PaymentRequests, func(pr domain.PaymentRequest) bool {
			return pr.Status == domain.RequestPending
		})
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r bookingRepo) filter(keep func(domain.Booking) bool) []domain.Booking {
	var out []domain.Booking
	for _, b := range r.s.st.bookings {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	return out
}

func sortNewestEvent(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if !bs[i].EventDate.Equal(bs[j].EventDate) {
			return bs[i].EventDate.After(bs[j].EventDate)
		}
		return bs[i].StartTime > bs[j].StartTime
	})
}

type paymentRepo repos

func (r paymentRepo) Create(_ context.Context, p *domain.Payment) error {
	unlock, err := repos(r).enter("payments.create")
	defer unlock()
	if err != nil {
		return err
	}

	if err := r.checkUnique(*p); err != nil {
		return fmt.Errorf("memory.paymentRepo.Create:%w", err)
	}

	r.s.st.payments[p.ID] = clonePayment(*p)
	return nil
}

func (r paymentRepo) Get(_ context.Context, id uuid.UUID) (*domain.Payment, error) {
	return r.find("payments.get", func(p domain.Payment) bool { return p.ID == id })
}

func (r paymentRepo) ByGatewayPaymentID(_ context.Context, gatewayPaymentID string) (*domain.Payment, error) {
	return r.find("payments.get", func(p domain.Payment) bool {
		return gatewayPaymentID != "" && p.GatewayPaymentID == gatewayPaymentID
	})
}

func (r paymentRepo) ByGatewayOrderID(_ context.Context, gatewayOrderID string) (*domain.Payment, error) {
	return r.find("payments.get", func(p domain.Payment) bool { return p.GatewayOrderID == gatewayOrderID })
}

func (r paymentRepo) SettledForBooking(_ context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	return r.find("payments.get", func(p domain.Payment) bool {
		return p.BookingID == bookingID && p.Status.Settled()
	})
}

func (r paymentRepo) Update(_ context.Context, p *domain.Payment, from domain.PaymentStatus) error {
	unlock, err := repos(r).enter("payments.update")
	defer unlock()
	if err != nil {
		return err
	}

	cur, ok := r.s.st.payments[p.ID]
	if !ok || cur.Status != from {
		return fmt.Errorf("memory.paymentRepo.Update:%w", repository.ErrStaleVersion)
	}

	if err := r.checkUnique(*p); err != nil {
		return fmt.Errorf("memory.paymentRepo.Update:%w", err)
	}

	r.s.st.payments[p.ID] = clonePayment(*p)
	return nil
}

// checkUnique mirrors the unique indexes of the payments table.
func (r paymentRepo) checkUnique(p domain.Payment) error {
	for id, other := range r.s.st.payments {
		if id == p.ID {
			continue
		}
		switch {
		case other.GatewayOrderID == p.GatewayOrderID:
			return fmt.Errorf("%w: payments_gateway_order_uidx", repository.ErrConflict)
		case p.GatewayPaymentID != "" && other.GatewayPaymentID == p.GatewayPaymentID:
			return fmt.Errorf("%w: payments_gateway_payment_uidx", repository.ErrConflict)
		case p.Status.Settled() && other.Status.Settled() && other.BookingID == p.BookingID:
			return fmt.Errorf("%w: payments_settled_booking_uidx", repository.ErrConflict)
		}
	}
	return nil
}

func (r paymentRepo) find(op string, match func(domain.Payment) bool) (*domain.Payment, error) {
	unlock, err := repos(r).enter(op)
	defer unlock()
	if err != nil {
		return nil, err
	}

	for _, p := range r.s.st.payments {
		if match(p) {
			out := clonePayment(p)
			return &out, nil
		}
	}

	return nil, fmt.Errorf("memory.paymentRepo:%w", repository.ErrNotFound)
}

type invoiceRepo repos

func (r invoiceRepo) NextSequence(_ context.Context, year int) (int, error) {
	unlock, err := repos(r).enter("invoices.sequence")
	defer unlock()
	if err != nil {
		return 0, err
	}

	r.s.st.counters[year]++
	return r.s.st.counters[year], nil
}

func (r invoiceRepo) Create(_ context.Context, inv *domain.Invoice) error {
	unlock, err := repos(r).enter("invoices.create")
	defer unlock()
	if err != nil {
		return err
	}

	for _, other := range r.s.st.invoices {
		if other.BookingID == inv.BookingID || other.Number == inv.Number {
			return fmt.Errorf("memory.invoiceRepo.Create:%w", repository.ErrConflict)
		}
	}

	r.s.st.invoices[inv.ID] = cloneInvoice(*inv)
	return nil
}

func (r invoiceRepo) Get(_ context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return r.find(func(inv domain.Invoice) bool { return inv.ID == id })
}

func (r invoiceRepo) ByBooking(_ context.Context, bookingID uuid.UUID) (*domain.Invoice, error) {
	return r.find(func(inv domain.Invoice) bool { return inv.BookingID == bookingID })
}

func (r invoiceRepo) ListByCustomer(_ context.Context, customerID string) ([]domain.Invoice, error) {
	unlock, err := repos(r).enter("invoices.list")
	defer unlock()
	if err != nil {
		return nil, err
	}

	var out []domain.Invoice
	for _, inv := range r.s.st.invoices {
		if inv.CustomerID == customerID {
			out = append(out, cloneInvoice(inv))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Sequence > out[j].Sequence
	})
	return out, nil
}

func (r invoiceRepo) Update(_ context.Context, inv *domain.Invoice) error {
	unlock, err := repos(r).enter("invoices.update")
	defer unlock()
	if err != nil {
		return err
	}

	cur, ok := r.s.st.invoices[inv.ID]
	if !ok {
		return fmt.Errorf("memory.invoiceRepo.Update:%w", repository.ErrNotFound)
	}

	cur.Status = inv.Status
	cur.PaymentStatus = inv.PaymentStatus
	cur.Notes = inv.Notes
	cur.SentAt = inv.SentAt
	cur.UpdatedAt = inv.UpdatedAt
	r.s.st.invoices[inv.ID] = cloneInvoice(cur)
	return nil
}

func (r invoiceRepo) find(match func(domain.Invoice) bool) (*domain.Invoice, error) {
	unlock, err := repos(r).enter("invoices.get")
	defer unlock()
	if err != nil {
		return nil, err
	}

	for _, inv := range r.s.st.invoices {
		if match(inv) {
			out := cloneInvoice(inv)
			return &out, nil
		}
	}

	return nil, fmt.Errorf("memory.invoiceRepo:%w", repository.ErrNotFound)
}

type methodRepo repos

func (r methodRepo) Create(_ context.Context, m *domain.SavedMethod) error {
	unlock, err := repos(r).enter("methods.create")
	defer unlock()
	if err != nil {
		return err
	}

	if _, ok := r.s.st.methods[m.ID]; ok {
		return fmt.Errorf("memory.methodRepo.Create:%w", repository.ErrConflict)
	}

	r.s.st.methods[m.ID] = cloneMethod(*m)
	return nil
}

func (r methodRepo) Get(_ context.Context, id uuid.UUID) (*domain.SavedMethod, error) {
	unlock, err := repos(r).enter("methods.get")
	defer unlock()
	if err != nil {
		return nil, err
	}

	m, ok := r.s.st.methods[id]
	if !ok {
		return nil, fmt.Errorf("memory.methodRepo.Get:%w", repository.ErrNotFound)
	}

	out := cloneMethod(m)
	return &out, nil
}

func (r methodRepo) ListActive(_ context.Context, userID string) ([]domain.SavedMethod, error) {
	unlock, err := repos(r).enter("methods.list")
	defer unlock()
	if err != nil {
		return nil, err
	}

	var out []domain.SavedMethod
	for _, m := range r.s.st.methods {
		if m.UserID == userID && m.Active {
			out = append(out, cloneMethod(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (r methodRepo) Update(_ context.Context, m *domain.SavedMethod) error {
	unlock, err := repos(r).enter("methods.update")
	defer unlock()
	if err != nil {
		return err
	}

	if _, ok := r.s.st.methods[m.ID]; !ok {
		return fmt.Errorf("memory.methodRepo.Update:%w", repository.ErrNotFound)
	}

	r.s.st.methods[m.ID] = cloneMethod(*m)
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func cloneBooking(b domain.Booking) domain.Booking {
	b.ServiceIDs = slices.Clone(b.ServiceIDs)
	b.PaymentRequests = slices.Clone(b.PaymentRequests)
	for i := range b.PaymentRequests {
		b.PaymentRequests[i].PaidAt = cloneTime(b.PaymentRequests[i].PaidAt)
	}
	return b
}

func clonePayment(p domain.Payment) domain.Payment {
	p.RefundedAt = cloneTime(p.RefundedAt)
	p.CompletedAt = cloneTime(p.CompletedAt)
	p.Details = p.Details.Clone()
	return p
}

func cloneInvoice(inv domain.Invoice) domain.Invoice {
	inv.LineItems = slices.Clone(inv.LineItems)
	inv.SentAt = cloneTime(inv.SentAt)
	return inv
}

func cloneMethod(m domain.SavedMethod) domain.SavedMethod {
	m.Details = m.Details.Clone()
	return m
}
