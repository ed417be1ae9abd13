package dues

import (
	"context"
	"fmt"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/attachments"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

// AttachProof records a proof-of-payment reference on the record.
func (l *Ledger) AttachProof(ctx context.Context, memberID members.MemberID, per period.Period, ref string) (EditResult, error) {
	return l.attach(ctx, memberID, per, guardProofRef, func(p *payments.Payment) { p.ProofRef = ref })
}

// AttachInvoice records an invoice reference on the record.
func (l *Ledger) AttachInvoice(ctx context.Context, memberID members.MemberID, per period.Period, ref string) (EditResult, error) {
	return l.attach(ctx, memberID, per, guardInvoiceRef, func(p *payments.Payment) { p.InvoiceRef = ref })
}

func (l *Ledger) attach(ctx context.Context, memberID members.MemberID, per period.Period, field string, set payments.Mutator) (EditResult, error) {
	if per.IsZero() {
		return EditResult{}, ErrInvalidPeriod
	}
	l.mu.Lock()
	if _, ok := l.members.Get(memberID); !ok {
		l.mu.Unlock()
		return EditResult{}, fmt.Errorf("%w: %s", ErrMemberNotFound, memberID)
	}
	res := l.attachLocked(payments.Key{MemberID: memberID, Period: per}, field, set)
	l.refreshGaugesLocked()
	l.mu.Unlock()

	l.afterEdit(ctx, &res, true)
	return res, nil
}

func (l *Ledger) attachLocked(key payments.Key, field string, set payments.Mutator) EditResult {
	var res EditResult
	prior, existed := l.prepareLocked(key)
	next := prior
	set(&next)
	next = l.guard(prior, next, fieldSet{field: true}, &res)
	if existed && samePayment(next, prior) {
		res.Payment = prior
		return res
	}
	stored, created := l.payments.Upsert(key, func(p *payments.Payment) { *p = next })
	if created {
		l.metrics.recordsCreated.Inc()
	}
	res.Payment, res.Created, res.Changed = stored, created, true
	return res
}

// Upload stores the file and records its reference. The member is checked
// before anything is written.
func (l *Ledger) Upload(ctx context.Context, store attachments.Store, kind attachments.Kind, u attachments.Upload) (EditResult, error) {
	if u.Period.IsZero() {
		return EditResult{}, ErrInvalidPeriod
	}
	if _, err := l.Member(u.MemberID); err != nil {
		return EditResult{}, err
	}
	ref, err := store.Put(ctx, kind, u)
	if err != nil {
		return EditResult{}, err
	}
	if kind == attachments.KindInvoice {
		return l.AttachInvoice(ctx, u.MemberID, u.Period, ref)
	}
	return l.AttachProof(ctx, u.MemberID, u.Period, ref)
}
