package dues

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/azzil/mensalidades/be/pkg/common/brformat"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

// Summary is the treasury overview.
type Summary struct {
	AsOf          string                  `json:"asOf"`
	Receipts      decimal.Decimal         `json:"receipts"`
	OpenAmount    decimal.Decimal         `json:"openAmount"`
	Expenses      decimal.Decimal         `json:"expenses"`
	BaseBalance   decimal.Decimal         `json:"baseBalance"`
	Balance       decimal.Decimal         `json:"balance"`
	StatusCounts  map[payments.Status]int `json:"statusCounts"`
	Members       int                     `json:"members"`
	ActiveMembers int                     `json:"activeMembers"`
	MembersOwing  int                     `json:"membersOwing"`
	GoodStanding  int                     `json:"goodStanding"`
	OpenPeriods   int                     `json:"openPeriods"`
	OwedTotal     decimal.Decimal         `json:"owedTotal"`
}

// Summary totals the payment log. Receipts sum PAID amounts, OpenAmount sums
// OPEN records, and Balance is the base balance minus expenses.
func (l *Ledger) Summary() Summary {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := Summary{
		AsOf:         l.Today(),
		Receipts:     decimal.Zero,
		OpenAmount:   decimal.Zero,
		Expenses:     decimal.Zero,
		BaseBalance:  l.baseBalance,
		OwedTotal:    decimal.Zero,
		StatusCounts: map[payments.Status]int{},
	}
	for _, p := range l.payments.All() {
		s.StatusCounts[p.Status]++
		switch p.Status {
		case payments.StatusPaid:
			s.Receipts = s.Receipts.Add(p.AmountDue)
		case payments.StatusOpen:
			s.OpenAmount = s.OpenAmount.Add(p.AmountDue)
		}
	}
	for _, e := range l.expenses {
		s.Expenses = s.Expenses.Add(e.Amount)
	}
	s.Balance = s.BaseBalance.Sub(s.Expenses)

	for _, m := range l.members.List() {
		s.Members++
		if !m.Active {
			continue
		}
		s.ActiveMembers++
		ob := l.obligationsLocked(m)
		if ob.Standing == StandingGoodStanding {
			s.GoodStanding++
			continue
		}
		s.MembersOwing++
		s.OpenPeriods += len(ob.Items)
		s.OwedTotal = s.OwedTotal.Add(ob.Total)
	}
	l.metrics.openPeriodsGauge.Set(float64(s.OpenPeriods))
	return s
}

// MemberStatus pairs a member with their resolved obligations.
type MemberStatus struct {
	Member      members.Member `json:"member"`
	Obligations Obligations    `json:"obligations"`
}

// OverviewFilter narrows Overview. Query matches name or tax id.
type OverviewFilter struct {
	OnlyOwing bool
	Query     string
}

// Overview lists members in directory order with their obligations.
func (l *Ledger) Overview(f OverviewFilter) []MemberStatus {
	l.mu.RLock()
	defer l.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Query))
	qDigits := brformat.DigitsOnly(q)
	out := []MemberStatus{}
	for _, m := range l.members.List() {
		if q != "" && !strings.Contains(strings.ToLower(m.Name), q) &&
			(qDigits == "" || !strings.Contains(members.NormalizeTaxID(m.TaxID), qDigits)) {
			continue
		}
		ob := l.obligationsLocked(m)
		if f.OnlyOwing && ob.Standing != StandingOwing {
			continue
		}
		out = append(out, MemberStatus{Member: m, Obligations: ob})
	}
	return out
}

// TextReport renders the whole ledger as plain text, one block per member
// followed by per-status counts.
func (l *Ledger) TextReport() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var b strings.Builder
	ms := l.members.List()
	b.WriteString("=== GESTÃO DE MENSALIDADES ===\n\n")
	fmt.Fprintf(&b, "Total de membros: %d\n", len(ms))
	fmt.Fprintf(&b, "Total de pagamentos: %d\n\n", l.payments.Len())
	b.WriteString(strings.Repeat("=", 60) + "\n")

	for _, m := range ms {
		fmt.Fprintf(&b, "\n%s\n", m.Name)
		fmt.Fprintf(&b, "   CPF: %s\n", orNA(m.TaxID))
		fmt.Fprintf(&b, "   Telefone: %s\n", orNA(m.Phone))

		ps := l.payments.ForMember(m.ID)
		sort.SliceStable(ps, func(i, j int) bool { return ps[j].Period.Before(ps[i].Period) })
		if len(ps) == 0 {
			b.WriteString("   Histórico: nenhum pagamento registrado\n")
		} else {
			fmt.Fprintf(&b, "   Histórico de pagamentos (%d):\n", len(ps))
			for _, p := range ps {
				fmt.Fprintf(&b, "      - %s %s", p.Period.Display(), p.Status)
				if p.PaymentDate != "" {
					fmt.Fprintf(&b, " (%s)", brformat.FormatDate(p.PaymentDate))
				}
				if p.Notes != "" {
					fmt.Fprintf(&b, " - %s", p.Notes)
				}
				b.WriteString("\n")
			}
		}

		ob := l.obligationsLocked(m)
		switch ob.Standing {
		case StandingInactive:
			b.WriteString("   Inativo\n")
		case StandingGoodStanding:
			b.WriteString("   Em dia\n")
		default:
			ds := make([]string, len(ob.Items))
			for i, it := range ob.Items {
				ds[i] = it.Period.Display()
			}
			fmt.Fprintf(&b, "   Pendências: %s\n", strings.Join(ds, ", "))
		}
		b.WriteString(strings.Repeat("-", 60) + "\n")
	}

	counts := map[payments.Status]int{}
	for _, p := range l.payments.All() {
		counts[p.Status]++
	}
	statuses := make([]string, 0, len(counts))
	for st := range counts {
		statuses = append(statuses, string(st))
	}
	sort.Strings(statuses)
	b.WriteString("\n=== RESUMO POR STATUS ===\n\n")
	for _, st := range statuses {
		fmt.Fprintf(&b, "%s: %d pagamento(s)\n", st, counts[payments.Status(st)])
	}
	return b.String()
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
