package snapshot

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

// ErrNoSnapshot means a source holds nothing usable: absent, unreadable, or
// structurally wrong. Callers fall back to another source.
var ErrNoSnapshot = errors.New("no usable snapshot")

// Expense is carried through load and save for the summary report only.
type Expense struct {
	Date        string          `json:"date,omitempty"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Snapshot is the complete member directory plus every payment record,
// always read and written as one unit.
type Snapshot struct {
	Members     []members.Member   `json:"members"`
	Payments    []payments.Payment `json:"payments"`
	Expenses    []Expense          `json:"expenses"`
	BaseBalance decimal.Decimal    `json:"baseBalance"`
}

// ClosedCount is the number of records in a closed status.
func (s Snapshot) ClosedCount() int {
	n := 0
	for _, p := range s.Payments {
		if p.Status.Closed() {
			n++
		}
	}
	return n
}

// PaidCount is the number of PAID records.
func (s Snapshot) PaidCount() int {
	n := 0
	for _, p := range s.Payments {
		if p.Status == payments.StatusPaid {
			n++
		}
	}
	return n
}

// Clone copies the collections so the result can be mutated freely.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		Members:     make([]members.Member, len(s.Members)),
		Payments:    make([]payments.Payment, len(s.Payments)),
		Expenses:    make([]Expense, len(s.Expenses)),
		BaseBalance: s.BaseBalance,
	}
	copy(out.Members, s.Members)
	copy(out.Payments, s.Payments)
	copy(out.Expenses, s.Expenses)
	return out
}

// LoadReport describes the normalization applied while decoding.
type LoadReport struct {
	Source           string   `json:"source,omitempty"`
	Legacy           bool     `json:"legacy"`
	DroppedMembers   int      `json:"droppedMembers"`
	DroppedPayments  int      `json:"droppedPayments"`
	MergedDuplicates int      `json:"mergedDuplicates"`
	Warnings         []string `json:"warnings,omitempty"`
}

func (r *LoadReport) warn(msg string) { r.Warnings = append(r.Warnings, msg) }

// SaveOutcome reports a whole-snapshot save. LocalOnly is set when only the
// local cache took the write.
type SaveOutcome struct {
	Accepted    bool   `json:"accepted"`
	LocalOnly   bool   `json:"localOnly"`
	ClosedCount int    `json:"closedCount"`
	Warning     string `json:"warning,omitempty"`
}

// Source loads and stores whole snapshots. Save always replaces.
type Source interface {
	Name() string
	Load(ctx context.Context) (Snapshot, LoadReport, error)
	Save(ctx context.Context, s Snapshot) (SaveOutcome, error)
}

// Prober is implemented by sources that can cheaply report availability.
type Prober interface {
	Probe(ctx context.Context) error
}
