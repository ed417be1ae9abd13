package dues

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

var epoch = period.MustParse("2026-01")

func rec(id members.MemberID, per string, st payments.Status, amount int64) payments.Payment {
	return payments.Payment{MemberID: id, Period: period.MustParse(per), Status: st, AmountDue: decimal.NewFromInt(amount)}
}

func periodsOf(o Obligations) []string {
	out := []string{}
	for _, p := range o.Periods() {
		out = append(out, p.String())
	}
	return out
}

func TestResolveObligations(t *testing.T) {
	m1 := members.Member{ID: "M1", Active: true}

	t.Run("no records yields whole window at zero", func(t *testing.T) {
		got := ResolveObligations(m1, nil, epoch, time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, []string{"2026-02", "2026-01"}, periodsOf(got))
		for _, it := range got.Items {
			assert.True(t, it.AmountDue.IsZero())
			assert.False(t, it.Recorded)
		}
		assert.True(t, got.Total.IsZero())
		assert.Equal(t, StandingOwing, got.Standing)
	})

	t.Run("closed records drop out and open ones carry amounts", func(t *testing.T) {
		ps := []payments.Payment{
			rec("M1", "2026-01", payments.StatusPaid, 30),
			rec("M1", "2026-02", payments.StatusOpen, 30),
			rec("M1", "2026-03", payments.StatusExempt, 0),
			rec("M2", "2026-04", payments.StatusOpen, 99),
		}
		got := ResolveObligations(m1, ps, epoch, time.Date(2026, time.April, 2, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, []string{"2026-04", "2026-02"}, periodsOf(got))
		assert.True(t, got.Items[1].AmountDue.Equal(decimal.NewFromInt(30)))
		assert.True(t, got.Total.Equal(decimal.NewFromInt(30)))
	})

	t.Run("open records outside the window are included", func(t *testing.T) {
		ps := []payments.Payment{
			rec("M1", "2025-11", payments.StatusOpen, 25),
			rec("M1", "2026-06", payments.StatusAgreement, 30),
			rec("M1", "2026-07", payments.StatusOpen, 30),
			rec("M1", "2026-01", payments.StatusPaid, 30),
		}
		got := ResolveObligations(m1, ps, epoch, time.Date(2026, time.January, 20, 0, 0, 0, 0, time.UTC))
		assert.Equal(t, []string{"2026-07", "2025-11"}, periodsOf(got))
		assert.True(t, got.Total.Equal(decimal.NewFromInt(55)))
	})

	t.Run("good standing is explicit", func(t *testing.T) {
		ps := []payments.Payment{
			rec("M1", "2026-01", payments.StatusPaid, 30),
			rec("M1", "2026-02", payments.StatusExempt, 30),
			rec("M1", "2026-03", payments.StatusAgreement, 30),
		}
		got := ResolveObligations(m1, ps, epoch, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC))
		assert.Empty(t, got.Items)
		assert.NotNil(t, got.Items)
		assert.Equal(t, StandingGoodStanding, got.Standing)
	})

	t.Run("inactive member is always empty", func(t *testing.T) {
		inactive := members.Member{ID: "M1", Active: false}
		ps := []payments.Payment{rec("M1", "2026-01", payments.StatusOpen, 30), rec("M1", "2030-01", payments.StatusOpen, 30)}
		got := ResolveObligations(inactive, ps, epoch, time.Date(2026, time.March, 15, 0, 0, 0, 0, time.UTC))
		assert.Empty(t, got.Items)
		assert.True(t, got.Total.IsZero())
		assert.Equal(t, StandingInactive, got.Standing)
	})

	t.Run("before epoch only explicit open records remain", func(t *testing.T) {
		ps := []payments.Payment{rec("M1", "2025-06", payments.StatusOpen, 10)}
		got := ResolveObligations(m1, ps, epoch, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC))
		require.Len(t, got.Items, 1)
		assert.Equal(t, "2025-06", got.Items[0].Period.String())
	})
}
