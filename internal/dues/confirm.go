package dues

import (
	"context"
	"fmt"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/events"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// ConfirmationNote is stored on self-confirmed records that carry no notes.
const ConfirmationNote = "Confirmado pelo sistema de confirmação pública"

// Confirmation is the outcome of a member confirming one period.
type Confirmation struct {
	Payment       payments.Payment      `json:"payment"`
	AlreadyClosed bool                  `json:"alreadyClosed"`
	Remaining     Obligations           `json:"remaining"`
	Warnings      []string              `json:"warnings,omitempty"`
	Save          *snapshot.SaveOutcome `json:"save,omitempty"`
}

// LookupByTaxID finds the member behind a confirmation link and resolves
// their obligations. origin tags the access event.
func (l *Ledger) LookupByTaxID(ctx context.Context, taxID, origin string) (members.Member, Obligations, error) {
	l.mu.RLock()
	m, ok := l.members.FindByTaxID(taxID)
	var ob Obligations
	if ok {
		ob = l.obligationsLocked(m)
	}
	l.mu.RUnlock()
	if !ok {
		return members.Member{}, Obligations{}, fmt.Errorf("%w: tax id %s", ErrMemberNotFound, members.NormalizeTaxID(taxID))
	}
	l.recordEvent(ctx, events.Event{
		Kind:     events.KindAccess,
		MemberID: m.ID,
		Name:     m.Name,
		Action:   "open",
		Origin:   origin,
		Pending:  periodStrings(ob),
		Total:    ob.Total,
	})
	return m, ob, nil
}

// ConfirmPayment marks one period PAID dated today on behalf of the member.
// Records already closed are left as they are apart from a missing proof
// reference.
func (l *Ledger) ConfirmPayment(ctx context.Context, memberID members.MemberID, per period.Period, proofRef, origin string) (Confirmation, error) {
	if per.IsZero() {
		return Confirmation{}, ErrInvalidPeriod
	}
	key := payments.Key{MemberID: memberID, Period: per}

	l.mu.Lock()
	m, ok := l.members.Get(memberID)
	if !ok {
		l.mu.Unlock()
		return Confirmation{}, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	if !m.Active {
		l.mu.Unlock()
		return Confirmation{}, fmt.Errorf("%w: %s", ErrMemberInactive, memberID)
	}

	var out Confirmation
	var res EditResult
	current, existed := l.payments.Find(key)
	if existed && current.Status.Closed() {
		out.AlreadyClosed = true
		res.Payment = current
	} else {
		var err error
		res, _, err = l.applyLocked(key, Edit{Field: FieldStatus, Value: string(payments.StatusPaid), Date: l.Today()})
		if err != nil {
			l.mu.Unlock()
			return Confirmation{}, err
		}
		if res.Payment.Notes == "" {
			note := l.attachLocked(key, guardNotes, func(p *payments.Payment) { p.Notes = ConfirmationNote })
			res.Payment, res.Changed = note.Payment, res.Changed || note.Changed
		}
		l.metrics.confirmations.Inc()
	}
	if proofRef != "" && res.Payment.ProofRef == "" {
		attached := l.attachLocked(key, guardProofRef, func(p *payments.Payment) { p.ProofRef = proofRef })
		res.Payment, res.Changed = attached.Payment, res.Changed || attached.Changed
	}
	out.Remaining = l.obligationsLocked(m)
	l.refreshGaugesLocked()
	l.mu.Unlock()

	l.afterEdit(ctx, &res, true)
	out.Payment, out.Save = res.Payment, res.Save
	out.Warnings = append(out.Warnings, res.Warnings...)

	l.recordEvent(ctx, events.Event{
		Kind:     events.KindAccess,
		MemberID: m.ID,
		Name:     m.Name,
		Action:   "confirm",
		Period:   per.String(),
		Origin:   origin,
		Pending:  periodStrings(out.Remaining),
		Total:    out.Remaining.Total,
	})
	return out, nil
}

// MergeReport counts what MergeConfirmations did.
type MergeReport struct {
	Applied  int                   `json:"applied"`
	Skipped  int                   `json:"skipped"`
	Warnings []string              `json:"warnings,omitempty"`
	Save     *snapshot.SaveOutcome `json:"save,omitempty"`
}

// MergeConfirmations applies every PAID record of a snapshot captured by an
// offline confirmation page. Status, date, notes and proof are taken from the
// incoming record; the stored amount is kept when positive.
func (l *Ledger) MergeConfirmations(ctx context.Context, in snapshot.Snapshot) (MergeReport, error) {
	var rep MergeReport
	l.mu.Lock()
	for _, p := range in.Payments {
		if p.Status != payments.StatusPaid {
			continue
		}
		if _, ok := l.members.Get(p.MemberID); !ok {
			rep.Skipped++
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("unknown member %s skipped", p.MemberID))
			continue
		}
		key := p.Key()
		prior, existed := l.prepareLocked(key)
		next := prior
		next.Status = payments.StatusPaid
		if p.PaymentDate != "" {
			next.PaymentDate = p.PaymentDate
		}
		if p.Notes != "" {
			next.Notes = p.Notes
		}
		if p.ProofRef != "" {
			next.ProofRef = p.ProofRef
		}
		if !next.AmountDue.IsPositive() && p.AmountDue.IsPositive() {
			next.AmountDue = p.AmountDue
		}
		if existed && samePayment(next, prior) {
			continue
		}
		if _, created := l.payments.Upsert(key, func(q *payments.Payment) { *q = next }); created {
			l.metrics.recordsCreated.Inc()
		}
		rep.Applied++
	}
	l.refreshGaugesLocked()
	l.mu.Unlock()

	if rep.Applied > 0 {
		out, warnings := l.persistNow(ctx)
		rep.Save = out
		rep.Warnings = append(rep.Warnings, warnings...)
	}
	return rep, nil
}

func periodStrings(o Obligations) []string {
	out := make([]string, len(o.Items))
	for i, it := range o.Items {
		out[i] = it.Period.String()
	}
	return out
}
