package payments

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

var (
	ErrNotFound  = errors.New("payment not found")
	ErrDuplicate = errors.New("payment already exists for period")
)

// Status of a payment record. The zero value is not valid; use StatusOpen.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusPaid      Status = "PAID"
	StatusExempt    Status = "EXEMPT"
	StatusAgreement Status = "SETTLED_BY_AGREEMENT"
)

// Closed reports whether the period no longer counts as owed.
func (s Status) Closed() bool {
	switch s {
	case StatusPaid, StatusExempt, StatusAgreement:
		return true
	}
	return false
}

// ParseStatus upper-cases s and maps legacy names. ok is false for anything else.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "OPEN", "EM_ABERTO", "ABERTO":
		return StatusOpen, true
	case "PAID", "PAGO":
		return StatusPaid, true
	case "EXEMPT", "ISENTO":
		return StatusExempt, true
	case "SETTLED_BY_AGREEMENT", "ACORDO":
		return StatusAgreement, true
	}
	return "", false
}

// LegacyName is the status as older snapshots spell it.
func (s Status) LegacyName() string {
	switch s {
	case StatusPaid:
		return "PAGO"
	case StatusExempt:
		return "ISENTO"
	case StatusAgreement:
		return "ACORDO"
	}
	return "EM_ABERTO"
}

// Key identifies a payment record. At most one record exists per key.
type Key struct {
	MemberID members.MemberID
	Period   period.Period
}

// Payment is one (member, period) record.
type Payment struct {
	MemberID    members.MemberID `json:"memberId"`
	Period      period.Period    `json:"period"`
	Status      Status           `json:"status"`
	AmountDue   decimal.Decimal  `json:"amountDue"`
	PaymentDate string           `json:"paymentDate,omitempty"`
	Notes       string           `json:"notes,omitempty"`
	ProofRef    string           `json:"proofOfPaymentRef,omitempty"`
	InvoiceRef  string           `json:"invoiceRef,omitempty"`
}

func (p Payment) Key() Key { return Key{MemberID: p.MemberID, Period: p.Period} }

// New returns the default record for key: OPEN with a zero amount.
func New(key Key) Payment {
	return Payment{MemberID: key.MemberID, Period: key.Period, Status: StatusOpen, AmountDue: decimal.Zero}
}

// Mutator edits a working copy of a record. Changes to the key are ignored.
type Mutator func(p *Payment)

// Store is the keyed payment collection. Slices are returned in insertion order.
type Store interface {
	Find(key Key) (Payment, bool)
	// Upsert creates the default record when key is absent, then applies
	// mutate to a copy and swaps it in.
	Upsert(key Key, mutate Mutator) (p Payment, created bool)
	Insert(p Payment) error
	// Rename moves the record at from to to. It fails with ErrDuplicate when
	// to is taken and ErrNotFound when from is absent.
	Rename(from, to Key) (Payment, error)
	Delete(key Key) bool
	DeleteAllForMember(id members.MemberID) int
	ForMember(id members.MemberID) []Payment
	ForPeriod(p period.Period) []Payment
	All() []Payment
	Replace(ps []Payment) error
	Len() int
}

// AmountInference proposes an amount for a record about to be created.
type AmountInference interface {
	InferAmount(s Store, key Key) (decimal.Decimal, bool)
}

// SamePeriodInference copies the first positive amount any other member has
// recorded for the same period. Dues are usually uniform per month, but
// nothing guarantees it; the result is a default, not a rule.
type SamePeriodInference struct{}

func (SamePeriodInference) InferAmount(s Store, key Key) (decimal.Decimal, bool) {
	for _, p := range s.ForPeriod(key.Period) {
		if p.MemberID != key.MemberID && p.AmountDue.IsPositive() {
			return p.AmountDue, true
		}
	}
	return decimal.Zero, false
}

// NoInference never proposes an amount.
type NoInference struct{}

func (NoInference) InferAmount(Store, Key) (decimal.Decimal, bool) { return decimal.Zero, false }
