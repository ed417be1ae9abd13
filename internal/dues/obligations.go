package dues

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

// Standing summarizes a member's obligation set.
type Standing string

const (
	StandingOwing        Standing = "OWING"
	StandingGoodStanding Standing = "GOOD_STANDING"
	StandingInactive     Standing = "INACTIVE"
)

// Obligation is one open period. Recorded is false when no payment record
// exists yet and the period is owed only because it lies in the window.
type Obligation struct {
	Period    period.Period   `json:"period"`
	AmountDue decimal.Decimal `json:"amountDue"`
	Recorded  bool            `json:"recorded"`
}

// Obligations is the open set for one member, newest period first. Total is
// advisory: unknown amounts count as zero.
type Obligations struct {
	MemberID members.MemberID `json:"memberId"`
	Items    []Obligation     `json:"items"`
	Total    decimal.Decimal  `json:"total"`
	Standing Standing         `json:"standing"`
}

// Periods lists the open periods in Items order.
func (o Obligations) Periods() []period.Period {
	out := make([]period.Period, len(o.Items))
	for i, it := range o.Items {
		out[i] = it.Period
	}
	return out
}

// ResolveObligations derives the open periods of m: every window period from
// epoch to asOf without a closed record, plus every non-closed record of m
// outside the window. Records of other members in ps are ignored. Inactive
// members always resolve to an empty set.
func ResolveObligations(m members.Member, ps []payments.Payment, epoch period.Period, asOf time.Time) Obligations {
	out := Obligations{MemberID: m.ID, Items: []Obligation{}, Total: decimal.Zero}
	if !m.Active {
		out.Standing = StandingInactive
		return out
	}

	byPeriod := make(map[period.Period]payments.Payment)
	for _, p := range ps {
		if p.MemberID != m.ID {
			continue
		}
		if _, dup := byPeriod[p.Period]; !dup {
			byPeriod[p.Period] = p
		}
	}

	seen := make(map[period.Period]bool)
	for _, per := range period.Window(epoch, asOf) {
		rec, ok := byPeriod[per]
		if ok && rec.Status.Closed() {
			continue
		}
		ob := Obligation{Period: per, AmountDue: decimal.Zero}
		if ok {
			ob.AmountDue, ob.Recorded = rec.AmountDue, true
		}
		out.Items = append(out.Items, ob)
		seen[per] = true
	}
	for per, rec := range byPeriod {
		if seen[per] || rec.Status.Closed() {
			continue
		}
		out.Items = append(out.Items, Obligation{Period: per, AmountDue: rec.AmountDue, Recorded: true})
		seen[per] = true
	}

	sort.Slice(out.Items, func(i, j int) bool {
		return out.Items[j].Period.Before(out.Items[i].Period)
	})
	for _, it := range out.Items {
		out.Total = out.Total.Add(it.AmountDue)
	}
	if len(out.Items) == 0 {
		out.Standing = StandingGoodStanding
	} else {
		out.Standing = StandingOwing
	}
	return out
}
