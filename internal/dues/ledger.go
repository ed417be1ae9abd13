// Package dues reconciles monthly dues obligations against the payment log
// and applies edits to that log without losing recorded fields.
package dues

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/azzil/mensalidades/be/pkg/common/brformat"
	"github.com/azzil/mensalidades/be/pkg/common/logger"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/events"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// Saver persists the ledger. Routine edits call ScheduleSave; critical ones
// call SaveNow.
type Saver interface {
	ScheduleSave()
	SaveNow(ctx context.Context) (snapshot.SaveOutcome, error)
}

type Options struct {
	Epoch     period.Period
	Location  *time.Location
	Inference payments.AmountInference
	Now       func() time.Time
	Metrics   *Metrics
	Events    events.Repository
	Reminder  ReminderTemplate
}

// Ledger owns the member directory and the payment store of one process.
// Reads take the read lock; every mutation runs under the write lock and
// persists after releasing it.
type Ledger struct {
	mu          sync.RWMutex
	members     members.Directory
	payments    payments.Store
	expenses    []snapshot.Expense
	baseBalance decimal.Decimal

	epoch     period.Period
	loc       *time.Location
	inference payments.AmountInference
	now       func() time.Time
	metrics   *Metrics
	events    events.Repository
	reminder  ReminderTemplate
	saver     Saver
	log       *logger.Logger
}

func NewLedger(dir members.Directory, store payments.Store, opts Options) *Ledger {
	l := &Ledger{
		members:   dir,
		payments:  store,
		expenses:  []snapshot.Expense{},
		epoch:     opts.Epoch,
		loc:       opts.Location,
		inference: opts.Inference,
		now:       opts.Now,
		metrics:   opts.Metrics,
		events:    opts.Events,
		reminder:  opts.Reminder.withDefaults(),
		log:       logger.Named("dues"),
	}
	if l.epoch.IsZero() {
		l.epoch = period.New(2026, time.January)
	}
	if l.loc == nil {
		l.loc = time.Local
	}
	if l.inference == nil {
		l.inference = payments.SamePeriodInference{}
	}
	if l.now == nil {
		l.now = time.Now
	}
	if l.metrics == nil {
		l.metrics = NewMetrics(nil)
	}
	return l
}

// AttachSaver wires persistence. Without a saver edits stay in memory.
func (l *Ledger) AttachSaver(s Saver) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.saver = s
}

func (l *Ledger) Epoch() period.Period { return l.epoch }

// Now is the current time in the ledger's time zone.
func (l *Ledger) Now() time.Time { return l.now().In(l.loc) }

// Today is the current date as YYYY-MM-DD.
func (l *Ledger) Today() string { return brformat.Today(l.Now()) }

// Snapshot captures the whole store.
func (l *Ledger) Snapshot() snapshot.Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	s := snapshot.Snapshot{
		Members:     l.members.List(),
		Payments:    l.payments.All(),
		Expenses:    make([]snapshot.Expense, len(l.expenses)),
		BaseBalance: l.baseBalance,
	}
	copy(s.Expenses, l.expenses)
	return s
}

// Replace swaps the entire store for s. Nothing changes on error.
func (l *Ledger) Replace(s snapshot.Snapshot) error {
	if err := checkUnique(s); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.payments.Replace(s.Payments); err != nil {
		return err
	}
	if err := l.members.Replace(s.Members); err != nil {
		return err
	}
	l.expenses = make([]snapshot.Expense, len(s.Expenses))
	copy(l.expenses, s.Expenses)
	l.baseBalance = s.BaseBalance
	l.refreshGaugesLocked()
	return nil
}

// ReplaceAndSave is Replace followed by an immediate save.
func (l *Ledger) ReplaceAndSave(ctx context.Context, s snapshot.Snapshot) (*snapshot.SaveOutcome, []string, error) {
	if err := l.Replace(s); err != nil {
		return nil, nil, err
	}
	out, warnings := l.persistNow(ctx)
	return out, warnings, nil
}

func checkUnique(s snapshot.Snapshot) error {
	ids := make(map[members.MemberID]bool, len(s.Members))
	for _, m := range s.Members {
		if ids[m.ID] {
			return fmt.Errorf("member %s: %w", m.ID, members.ErrDuplicate)
		}
		ids[m.ID] = true
	}
	keys := make(map[payments.Key]bool, len(s.Payments))
	for _, p := range s.Payments {
		if keys[p.Key()] {
			return fmt.Errorf("payment %s/%s: %w", p.MemberID, p.Period, payments.ErrDuplicate)
		}
		keys[p.Key()] = true
	}
	return nil
}

// Member returns one member.
func (l *Ledger) Member(id members.MemberID) (members.Member, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.members.Get(id)
	if !ok {
		return members.Member{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return m, nil
}

// MemberByTaxID finds a member by tax id, ignoring punctuation.
func (l *Ledger) MemberByTaxID(taxID string) (members.Member, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.members.FindByTaxID(taxID)
	if !ok {
		return members.Member{}, fmt.Errorf("%w: tax id %s", ErrMemberNotFound, members.NormalizeTaxID(taxID))
	}
	return m, nil
}

// Members lists the directory in insertion order.
func (l *Ledger) Members() []members.Member {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.members.List()
}

// Payments returns the records of one member, insertion order.
func (l *Ledger) Payments(id members.MemberID) []payments.Payment {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.payments.ForMember(id)
}

// Payment returns a single record.
func (l *Ledger) Payment(id members.MemberID, per period.Period) (payments.Payment, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.payments.Find(payments.Key{MemberID: id, Period: per})
}

// Obligations resolves the open periods of a member as of now.
func (l *Ledger) Obligations(id members.MemberID) (Obligations, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.members.Get(id)
	if !ok {
		return Obligations{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	return l.obligationsLocked(m), nil
}

func (l *Ledger) obligationsLocked(m members.Member) Obligations {
	return ResolveObligations(m, l.payments.ForMember(m.ID), l.epoch, l.Now())
}

// persistNow saves immediately and turns failures into warnings.
func (l *Ledger) persistNow(ctx context.Context) (*snapshot.SaveOutcome, []string) {
	l.mu.RLock()
	s := l.saver
	l.mu.RUnlock()
	if s == nil {
		return nil, nil
	}
	out, err := s.SaveNow(ctx)
	if err != nil {
		l.log.Error("save failed: %v", err)
		return nil, []string{"save failed: " + err.Error()}
	}
	var warnings []string
	if out.Warning != "" {
		warnings = append(warnings, out.Warning)
	}
	return &out, warnings
}

func (l *Ledger) persistLater() {
	l.mu.RLock()
	s := l.saver
	l.mu.RUnlock()
	if s != nil {
		s.ScheduleSave()
	}
}

func (l *Ledger) refreshGaugesLocked() {
	l.metrics.membersGauge.Set(float64(l.members.Len()))
	l.metrics.paymentsGauge.Set(float64(l.payments.Len()))
}

// recordEvent appends to the access/charge log. Failures are logged only.
func (l *Ledger) recordEvent(ctx context.Context, e events.Event) {
	if l.events == nil {
		return
	}
	if e.At.IsZero() {
		e.At = l.Now()
	}
	if _, err := l.events.Record(ctx, e); err != nil {
		l.log.Warn("record %s event for %s: %v", e.Kind, e.MemberID, err)
	}
}

// Events lists the access/charge log. It is empty when no log is configured.
func (l *Ledger) Events(ctx context.Context, f events.Filter) ([]events.Event, error) {
	if l.events == nil {
		return []events.Event{}, nil
	}
	return l.events.List(ctx, f)
}
