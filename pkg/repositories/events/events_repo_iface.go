package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

// Kind of logged event.
type Kind string

const (
	// KindAccess is a member opening a confirmation link or confirming a payment.
	KindAccess Kind = "ACCESS"
	// KindCharge is a reminder message generated for a member.
	KindCharge Kind = "CHARGE"
)

// Event is one access or charge log entry. Period is set for confirmations,
// Pending and Total for charges.
type Event struct {
	ID       string           `json:"id"`
	Kind     Kind             `json:"kind"`
	MemberID members.MemberID `json:"memberId"`
	Name     string           `json:"name"`
	Action   string           `json:"action,omitempty"`
	Period   string           `json:"period,omitempty"`
	Origin   string           `json:"origin,omitempty"`
	Pending  []string         `json:"pending,omitempty"`
	Total    decimal.Decimal  `json:"total"`
	At       time.Time        `json:"at"`
}

// Filter narrows List. Zero fields match everything; Name matches a
// case-insensitive substring.
type Filter struct {
	Kind     Kind
	MemberID members.MemberID
	Name     string
	Limit    int
}

// Repository is the append-only access/charge log.
type Repository interface {
	Record(ctx context.Context, e Event) (Event, error)
	// List returns matching events, newest first.
	List(ctx context.Context, f Filter) ([]Event, error)
	Disconnect()
}
