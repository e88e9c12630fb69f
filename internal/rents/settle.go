package rents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/rent-ledger/internal/domain"
	"github.com/dvloznov/rent-ledger/internal/events"
	"github.com/dvloznov/rent-ledger/internal/frontdata"
	"github.com/dvloznov/rent-ledger/internal/ledger"
	"github.com/dvloznov/rent-ledger/internal/logger"
	"github.com/dvloznov/rent-ledger/internal/notify"
	"github.com/dvloznov/rent-ledger/internal/term"
)

// PaymentForm is the landlord's settlement of one term.
type PaymentForm struct {
	TenantID        string           `json:"tenant_id"`
	Payments        []ledger.Payment `json:"payments"`
	Promo           decimal.Decimal  `json:"promo"`
	NotePromo       string           `json:"note_promo"`
	ExtraCharge     decimal.Decimal  `json:"extra_charge"`
	NoteExtraCharge string           `json:"note_extra_charge"`
	Description     string           `json:"description"`
}

// Settlement converts the form into a ledger settlement. Notes are kept only
// when their amount is positive.
func (f PaymentForm) Settlement() ledger.Settlement {
	s := ledger.Settlement{
		Payments:    append([]ledger.Payment{}, f.Payments...),
		Debts:       []ledger.Debt{},
		Discounts:   []ledger.Discount{},
		Description: f.Description,
	}
	if f.Promo.IsPositive() {
		s.Discounts = append(s.Discounts, ledger.Discount{
			Origin:      ledger.OriginSettlement,
			Description: f.NotePromo,
			Amount:      f.Promo,
		})
	}
	if f.ExtraCharge.IsPositive() {
		s.Debts = append(s.Debts, ledger.Debt{
			Description: f.NoteExtraCharge,
			Amount:      f.ExtraCharge,
		})
	}
	return s
}

// UpdateByTerm applies a payment form to one term of a tenant's ledger.
// Payments already recorded on the same day for the same amount are rejected.
func (s *Service) UpdateByTerm(ctx context.Context, info notify.RequestInfo, tm term.Term, form PaymentForm) (frontdata.RentView, error) {
	if form.TenantID == "" {
		return frontdata.RentView{}, fmt.Errorf("UpdateByTerm: %w: missing tenant ID", ErrInvalidRequest)
	}
	settlement := form.Settlement()

	entry, tenant, err := s.settle(ctx, form.TenantID, tm, settlement, true)
	if err != nil {
		return frontdata.RentView{}, fmt.Errorf("UpdateByTerm: %w", err)
	}

	s.publishSettled(ctx, tenant.ID, entry, settlement, "api")

	emails := notify.BestEffort(ctx, s.log, s.emails, info, tm, 0)
	return s.projector.ToRentData(entry, tenant, emails[tenant.ID]), nil
}

// settle runs PayTerm under the tenant lock and persists the result.
func (s *Service) settle(ctx context.Context, tenantID string, tm term.Term, settlement ledger.Settlement, rejectDuplicates bool) (ledger.RentEntry, *domain.Tenant, error) {
	var entry ledger.RentEntry
	tenant, err := s.mutateTenant(ctx, tenantID, func(t *domain.Tenant) (bool, error) {
		c := t.LeaseContract()
		if rejectDuplicates {
			if err := ledger.CheckDuplicates(c, settlement.Payments); err != nil {
				return false, err
			}
		}
		var err error
		entry, err = s.payTerm(t, tm, settlement)
		return err == nil, err
	})
	if err != nil {
		return ledger.RentEntry{}, nil, err
	}

	log := logger.ForTenant(s.log, tenantID, tm)
	log.Info().
		Int("payments", len(settlement.Payments)).
		Str("new_balance", entry.NewBalance.String()).
		Msg("settlement applied")
	return entry, tenant, nil
}

// payTerm folds settlement into tm of t. Periods due up to tm that the ledger
// lacks are computed first so that no term is left unbilled.
func (s *Service) payTerm(t *domain.Tenant, tm term.Term, settlement ledger.Settlement) (ledger.RentEntry, error) {
	at := tm.In(t.BeginDate.Location())
	if !at.IsZero() && term.IsFuture(at, s.clock.Now(), t.Frequency.OrDefault()) {
		return ledger.RentEntry{}, fmt.Errorf("payTerm: %s: %w", tm, ErrFuturePeriod)
	}
	if _, ok := t.LeaseContract().Entry(tm); !ok && !at.IsZero() {
		if _, err := s.catchUp(t, at); err != nil {
			return ledger.RentEntry{}, fmt.Errorf("payTerm: %w", err)
		}
	}

	out, err := s.engine.PayTerm(t.LeaseContract(), tm, settlement)
	if err != nil {
		return ledger.RentEntry{}, err
	}
	t.ApplyContract(out)
	entry, _ := out.Entry(tm)
	return entry, nil
}

func (s *Service) publishSettled(ctx context.Context, tenantID string, entry ledger.RentEntry, settlement ledger.Settlement, source string) {
	event := events.RentSettled{
		EventID:    uuid.NewString(),
		Type:       events.TypeRentSettled,
		TenantID:   tenantID,
		Term:       entry.Term,
		Payment:    entry.Payment,
		NewBalance: entry.NewBalance,
		Status:     entry.Status(),
		Source:     source,
		OccurredAt: s.clock.Now().UTC(),
	}
	for _, p := range settlement.Payments {
		if p.Reference != "" {
			event.PaymentRefs = append(event.PaymentRefs, p.Reference)
		}
	}
	if err := s.events.PublishRentSettled(ctx, event); err != nil {
		s.log.Error().Err(err).Str("tenant_id", tenantID).Stringer("term", entry.Term).Msg("failed to publish settlement event")
	}
}
