package payment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/uow"
)

const maxNicknameLen = 64

type SaveMethodInput struct {
	ActorID     string
	Type        domain.PaymentMethod
	Nickname    string
	Details     MethodInput
	MakeDefault bool
}

func (in SaveMethodInput) validate() error {
	if in.ActorID == "" {
		return domain.Invalid("user is required")
	}

	if !in.Type.Valid() {
		return domain.Invalid("payment method %q is not supported", in.Type)
	}

	if len(in.Nickname) > maxNicknameLen {
		return domain.Invalid("nickname must be at most %d characters", maxNicknameLen)
	}

	d := in.Details
	switch in.Type {
	case domain.MethodCreditCard, domain.MethodDebitCard:
		if len(domain.MaskCard(d.CardNumber)) < 4 {
			return domain.Invalid("card number is required")
		}
		if d.ExpiryMonth < 1 || d.ExpiryMonth > 12 {
			return domain.Invalid("expiry month must be between 1 and 12")
		}
		if d.ExpiryYear <= 0 {
			return domain.Invalid("expiry year is required")
		}
	case domain.MethodUPI:
		if name, handle, ok := strings.Cut(d.VPA, "@"); !ok || name == "" || handle == "" {
			return domain.Invalid("vpa %q must look like name@bank", d.VPA)
		}
	case domain.MethodNetBanking:
		if d.BankName == "" {
			return domain.Invalid("bank name is required")
		}
	case domain.MethodWallet:
		if d.WalletProvider == "" {
			return domain.Invalid("wallet provider is required")
		}
	}

	return nil
}

// SaveMethod stores a payment method for later checkouts. Card numbers are
// reduced to their last four digits before anything is written. The first
// saved method, or one saved with MakeDefault, becomes the default.
//
// Returns:
//   - error: domain.ErrValidation if the details do not fit the method type.
func (s *Service) SaveMethod(ctx context.Context, in SaveMethodInput) (*domain.SavedMethod, error) {
	const op = "service.payment.SaveMethod"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now().UTC()

	m := &domain.SavedMethod{
		ID:        uuid.New(),
		UserID:    in.ActorID,
		Type:      in.Type,
		Nickname:  strings.TrimSpace(in.Nickname),
		Details:   in.Details.details(in.Type),
		Gateway:   s.gw.Name(),
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		existing, err := tx.SavedMethods().ListActive(ctx, in.ActorID)
		if err != nil {
			return err
		}

		m.IsDefault = in.MakeDefault || len(existing) == 0
		if m.IsDefault {
			if err := clearDefault(ctx, tx, existing, now); err != nil {
				return err
			}
		}

		return tx.SavedMethods().Create(ctx, m)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payment method saved", "method_id", m.ID, "user_id", m.UserID, "type", m.Type)

	return m, nil
}

// ListMethods returns the actor's active saved methods, the default first.
func (s *Service) ListMethods(ctx context.Context, actorID string) ([]domain.SavedMethod, error) {
	const op = "service.payment.ListMethods"

	out, err := s.runner.Repos().SavedMethods().ListActive(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if out == nil {
		out = []domain.SavedMethod{}
	}

	return out, nil
}

// DeleteMethod deactivates one of the actor's saved methods. When the default
// goes, the newest remaining method takes its place.
//
// Returns:
//   - error: payment.ErrMethodNotFound if the method does not exist, belongs
//     to someone else or was already deleted.
func (s *Service) DeleteMethod(ctx context.Context, id uuid.UUID, actorID string) error {
	const op = "service.payment.DeleteMethod"

	err := s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		m, err := tx.SavedMethods().Get(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMethodNotFound
		}
		if err != nil {
			return err
		}

		// other users' methods are reported as missing
		if m.UserID != actorID || !m.Active {
			return ErrMethodNotFound
		}

		now := s.now().UTC()
		wasDefault := m.IsDefault

		m.Active = false
		m.IsDefault = false
		m.UpdatedAt = now
		if err := tx.SavedMethods().Update(ctx, m); err != nil {
			return err
		}

		if !wasDefault {
			return nil
		}

		rest, err := tx.SavedMethods().ListActive(ctx, actorID)
		if err != nil || len(rest) == 0 {
			return err
		}

		next := rest[0]
		next.IsDefault = true
		next.UpdatedAt = now
		return tx.SavedMethods().Update(ctx, &next)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payment method deleted", "method_id", id, "user_id", actorID)

	return nil
}

func clearDefault(ctx context.Context, tx repository.Tx, methods []domain.SavedMethod, now time.Time) error {
	for i := range methods {
		if !methods[i].IsDefault {
			continue
		}
		methods[i].IsDefault = false
		methods[i].UpdatedAt = now
		if err := tx.SavedMethods().Update(ctx, &methods[i]); err != nil {
			return err
		}
	}
	return nil
}
