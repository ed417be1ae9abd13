package dues

import (
	"context"
	"fmt"
	"strings"

	"github.com/azzil/mensalidades/be/pkg/common/brformat"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// EditField names the one payment field an edit changes.
type EditField string

const (
	FieldPeriod      EditField = "period"
	FieldPaymentDate EditField = "paymentDate"
	FieldAmountDue   EditField = "amountDue"
	FieldStatus      EditField = "status"
	FieldNotes       EditField = "notes"
)

// ParseEditField accepts canonical and legacy field names.
func ParseEditField(s string) (EditField, bool) {
	switch strings.TrimSpace(s) {
	case "period", "competencia":
		return FieldPeriod, true
	case "paymentDate", "data_pagamento":
		return FieldPaymentDate, true
	case "amountDue", "valor":
		return FieldAmountDue, true
	case "status":
		return FieldStatus, true
	case "notes", "obs":
		return FieldNotes, true
	}
	return "", false
}

// Edit is a single-field change. Date is only read by status edits into PAID.
type Edit struct {
	Field EditField `json:"field"`
	Value string    `json:"value"`
	Date  string    `json:"date,omitempty"`
}

// EditResult describes what an edit did. Restored lists fields the
// preservation check put back; Save is nil when nothing was persisted
// synchronously.
type EditResult struct {
	Payment  payments.Payment      `json:"payment"`
	Created  bool                  `json:"created"`
	Changed  bool                  `json:"changed"`
	Restored []string              `json:"restored,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	Save     *snapshot.SaveOutcome `json:"save,omitempty"`
}

const (
	guardAmount     = "amountDue"
	guardDate       = "paymentDate"
	guardNotes      = "notes"
	guardStatus     = "status"
	guardProofRef   = "proofOfPaymentRef"
	guardInvoiceRef = "invoiceRef"
)

type fieldSet map[string]bool

// ApplyFieldEdit changes one field of the (memberID, per) record, creating it
// when absent. Malformed values degrade to zero or empty and the edit still
// applies; only an unknown member, an unknown field or a rename onto a taken
// period return an error.
func (l *Ledger) ApplyFieldEdit(ctx context.Context, memberID members.MemberID, per period.Period, e Edit) (EditResult, error) {
	l.mu.Lock()
	if _, ok := l.members.Get(memberID); !ok {
		l.mu.Unlock()
		return EditResult{}, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	res, critical, err := l.applyLocked(payments.Key{MemberID: memberID, Period: per}, e)
	if err == nil && res.Changed {
		l.metrics.editsTotal.WithLabelValues(string(e.Field)).Inc()
		l.refreshGaugesLocked()
	}
	l.mu.Unlock()
	if err != nil {
		return res, err
	}
	l.afterEdit(ctx, &res, critical)
	return res, nil
}

func (l *Ledger) afterEdit(ctx context.Context, res *EditResult, critical bool) {
	if !res.Changed {
		return
	}
	if !critical {
		l.persistLater()
		return
	}
	out, warnings := l.persistNow(ctx)
	res.Save = out
	res.Warnings = append(res.Warnings, warnings...)
}

// prepareLocked captures the prior record of key. When none exists the
// default record is returned with the inferred amount.
func (l *Ledger) prepareLocked(key payments.Key) (prior payments.Payment, existed bool) {
	prior, existed = l.payments.Find(key)
	if existed {
		return prior, true
	}
	prior = payments.New(key)
	if amt, ok := l.inference.InferAmount(l.payments, key); ok {
		prior.AmountDue = amt
	}
	return prior, false
}

func (l *Ledger) applyLocked(key payments.Key, e Edit) (EditResult, bool, error) {
	var res EditResult
	switch e.Field {
	case FieldPeriod:
		return l.renameLocked(key, e.Value)
	case FieldPaymentDate, FieldAmountDue, FieldStatus, FieldNotes:
	default:
		return res, false, fmt.Errorf("%w: %q", ErrUnknownField, e.Field)
	}

	prior, existed := l.prepareLocked(key)
	next := prior
	intended := fieldSet{}

	switch e.Field {
	case FieldPaymentDate:
		next.PaymentDate = brformat.ParseDate(e.Value)
		if next.PaymentDate == "" && strings.TrimSpace(e.Value) != "" {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unrecognized date %q stored as empty", e.Value))
		}
		intended[guardDate] = true
	case FieldAmountDue:
		next.AmountDue = brformat.ParseAmount(e.Value)
		intended[guardAmount] = true
	case FieldNotes:
		next.Notes = strings.TrimSpace(e.Value)
		intended[guardNotes] = true
	case FieldStatus:
		st, ok := payments.ParseStatus(e.Value)
		if !ok {
			res.Warnings = append(res.Warnings, fmt.Sprintf("unknown status %q ignored", e.Value))
			if existed {
				res.Payment = prior
			}
			return res, false, nil
		}
		next.Status = st
		next.AmountDue = prior.AmountDue
		intended[guardStatus] = true
		switch {
		case prior.Status == payments.StatusPaid && st == payments.StatusOpen:
			next.PaymentDate = ""
			intended[guardDate] = true
		case prior.Status == payments.StatusOpen && st == payments.StatusPaid && strings.TrimSpace(e.Date) != "":
			if d := brformat.ParseDate(e.Date); d != "" {
				next.PaymentDate = d
				intended[guardDate] = true
			}
		}
	}

	next = l.guard(prior, next, intended, &res)
	if existed && samePayment(next, prior) {
		res.Payment = prior
		return res, false, nil
	}
	stored, created := l.payments.Upsert(key, func(p *payments.Payment) { *p = next })
	if created {
		l.metrics.recordsCreated.Inc()
	}
	res.Payment, res.Created, res.Changed = stored, created, true
	return res, created || e.Field == FieldStatus, nil
}

// renameLocked moves the record at key to the period in value. A missing
// source with an existing target is treated as already done.
func (l *Ledger) renameLocked(key payments.Key, value string) (EditResult, bool, error) {
	var res EditResult
	prior, existed := l.payments.Find(key)
	if existed {
		res.Payment = prior
	}
	to, err := period.Parse(value)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("invalid period %q ignored", value))
		return res, false, nil
	}
	if to == key.Period {
		return res, false, nil
	}
	target := payments.Key{MemberID: key.MemberID, Period: to}

	if existed {
		moved, err := l.payments.Rename(key, target)
		if err != nil {
			return res, false, fmt.Errorf("rename %s to %s: %w", key.Period, to, err)
		}
		want := prior
		want.Period = to
		if checked := l.guard(want, moved, fieldSet{}, &res); !samePayment(checked, moved) {
			moved, _ = l.payments.Upsert(target, func(p *payments.Payment) { *p = checked })
		}
		res.Payment, res.Changed = moved, true
		return res, true, nil
	}

	if current, ok := l.payments.Find(target); ok {
		res.Payment = current
		return res, false, nil
	}
	next, _ := l.prepareLocked(target)
	stored, _ := l.payments.Upsert(target, func(p *payments.Payment) { *p = next })
	l.metrics.recordsCreated.Inc()
	res.Payment, res.Created, res.Changed = stored, true, true
	return res, true, nil
}

// guard restores every field of next that the edit did not intend to change
// back to its value in prior. A positive amount is also restored when the
// edit would leave it at zero.
func (l *Ledger) guard(prior, next payments.Payment, intended fieldSet, res *EditResult) payments.Payment {
	restore := func(field string) {
		res.Restored = append(res.Restored, field)
		l.metrics.guardRestores.WithLabelValues(field).Inc()
		l.log.Warn("restored %s on %s/%s", field, prior.MemberID, prior.Period)
	}
	switch {
	case !intended[guardAmount] && !next.AmountDue.Equal(prior.AmountDue):
		next.AmountDue = prior.AmountDue
		restore(guardAmount)
	case next.AmountDue.IsZero() && prior.AmountDue.IsPositive():
		// A zero amount never replaces a positive one, even when asked for.
		next.AmountDue = prior.AmountDue
		restore(guardAmount)
	}
	if !intended[guardDate] && next.PaymentDate != prior.PaymentDate {
		next.PaymentDate = prior.PaymentDate
		restore(guardDate)
	}
	if !intended[guardNotes] && next.Notes != prior.Notes {
		next.Notes = prior.Notes
		restore(guardNotes)
	}
	if !intended[guardStatus] && next.Status != prior.Status {
		next.Status = prior.Status
		restore(guardStatus)
	}
	if !intended[guardProofRef] && next.ProofRef != prior.ProofRef {
		next.ProofRef = prior.ProofRef
		restore(guardProofRef)
	}
	if !intended[guardInvoiceRef] && next.InvoiceRef != prior.InvoiceRef {
		next.InvoiceRef = prior.InvoiceRef
		restore(guardInvoiceRef)
	}
	return next
}

func samePayment(a, b payments.Payment) bool {
	return a.MemberID == b.MemberID &&
		a.Period == b.Period &&
		a.Status == b.Status &&
		a.AmountDue.Equal(b.AmountDue) &&
		a.PaymentDate == b.PaymentDate &&
		a.Notes == b.Notes &&
		a.ProofRef == b.ProofRef &&
		a.InvoiceRef == b.InvoiceRef
}

// AddPayment creates an OPEN record with a zero amount. It fails with
// payments.ErrDuplicate when the period is already recorded.
func (l *Ledger) AddPayment(ctx context.Context, memberID members.MemberID, per period.Period) (EditResult, error) {
	if per.IsZero() {
		return EditResult{}, ErrInvalidPeriod
	}
	l.mu.Lock()
	if _, ok := l.members.Get(memberID); !ok {
		l.mu.Unlock()
		return EditResult{}, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	p := payments.New(payments.Key{MemberID: memberID, Period: per})
	if err := l.payments.Insert(p); err != nil {
		l.mu.Unlock()
		return EditResult{}, err
	}
	l.metrics.recordsCreated.Inc()
	l.refreshGaugesLocked()
	l.mu.Unlock()

	res := EditResult{Payment: p, Created: true, Changed: true}
	l.afterEdit(ctx, &res, true)
	return res, nil
}

// DeletePayment removes one record. Deleting an absent record is not an error.
func (l *Ledger) DeletePayment(ctx context.Context, memberID members.MemberID, per period.Period) (EditResult, error) {
	l.mu.Lock()
	prior, existed := l.payments.Find(payments.Key{MemberID: memberID, Period: per})
	if existed {
		l.payments.Delete(prior.Key())
		l.refreshGaugesLocked()
	}
	l.mu.Unlock()

	res := EditResult{Payment: prior, Changed: existed}
	l.afterEdit(ctx, &res, true)
	return res, nil
}

// TogglePayment flips PAID and EXEMPT records to OPEN and everything else to
// PAID dated today.
func (l *Ledger) TogglePayment(ctx context.Context, memberID members.MemberID, per period.Period) (EditResult, error) {
	l.mu.RLock()
	current, ok := l.payments.Find(payments.Key{MemberID: memberID, Period: per})
	l.mu.RUnlock()

	e := Edit{Field: FieldStatus, Value: string(payments.StatusPaid), Date: l.Today()}
	if ok && (current.Status == payments.StatusPaid || current.Status == payments.StatusExempt) {
		e = Edit{Field: FieldStatus, Value: string(payments.StatusOpen)}
	}
	return l.ApplyFieldEdit(ctx, memberID, per, e)
}
