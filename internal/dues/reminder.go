package dues

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/azzil/mensalidades/be/pkg/common/brformat"
	"github.com/azzil/mensalidades/be/pkg/repositories/events"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

// ErrNothingOwed is returned when a reminder is requested for a member with
// no open periods.
var ErrNothingOwed = errors.New("member has no open periods")

// ReminderTemplate holds the organization-specific parts of a reminder.
type ReminderTemplate struct {
	Header    string
	Greeting  string
	Signature string
}

func (t ReminderTemplate) withDefaults() ReminderTemplate {
	if t.Greeting == "" {
		t.Greeting = "Prezado(a)"
	}
	if t.Signature == "" {
		t.Signature = "Tesouraria"
	}
	return t
}

// ReminderLinks are the member-specific URLs included in a reminder. Only
// Confirm is required.
type ReminderLinks struct {
	Confirm      string `json:"confirm"`
	OpenInvoices string `json:"openInvoices,omitempty"`
	PaidInvoices string `json:"paidInvoices,omitempty"`
}

// Reminder is a charge message ready to be sent.
type Reminder struct {
	MemberID    members.MemberID `json:"memberId"`
	Message     string           `json:"message"`
	WhatsAppURL string           `json:"whatsappUrl,omitempty"`
	Obligations Obligations      `json:"obligations"`
}

// ChargeMessage renders the reminder text: one line per open period with its
// amount, the total, then the links.
func ChargeMessage(m members.Member, ob Obligations, links ReminderLinks, tpl ReminderTemplate) string {
	tpl = tpl.withDefaults()
	var b strings.Builder
	if tpl.Header != "" {
		b.WriteString(tpl.Header + "\n\n")
	}
	fmt.Fprintf(&b, "%s %s,\n\n", tpl.Greeting, firstName(m.Name))
	b.WriteString("Em nossos registros constam mensalidades em aberto:\n\n")
	for _, it := range ob.Items {
		fmt.Fprintf(&b, "• %s: R$ %s\n", it.Period.Display(), brformat.FormatAmount(it.AmountDue))
	}
	fmt.Fprintf(&b, "Total em aberto: R$ %s\n\n", brformat.FormatAmount(ob.Total))
	if links.Confirm != "" {
		fmt.Fprintf(&b, "Para confirmar pagamentos ou enviar comprovante:\n%s\n\n", links.Confirm)
	}
	if links.OpenInvoices != "" {
		fmt.Fprintf(&b, "Para baixar os boletos em aberto:\n%s\n\n", links.OpenInvoices)
	}
	if links.PaidInvoices != "" {
		fmt.Fprintf(&b, "Para ver o extrato de boletos pagos:\n%s\n\n", links.PaidInvoices)
	}
	b.WriteString("Caso já tenha efetuado o pagamento, por gentileza, confirme através do link acima para atualizarmos nossos registros.\n\n")
	b.WriteString("Mensagem enviada por sistema automático (sujeita a falhas). Em caso de dúvida, contate a tesouraria.\n\n")
	b.WriteString(tpl.Signature)
	return b.String()
}

// WhatsAppURL is a wa.me deep link for a Brazilian phone number, or "" when
// the member has none.
func WhatsAppURL(phone, text string) string {
	digits := brformat.DigitsOnly(phone)
	if digits == "" {
		return ""
	}
	if !strings.HasPrefix(digits, "55") || len(digits) <= 11 {
		digits = "55" + digits
	}
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(text)
}

func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return ""
}

// Reminder builds the charge message for a member and logs a charge event.
// Members without open periods yield ErrNothingOwed.
func (l *Ledger) Reminder(ctx context.Context, id members.MemberID, links ReminderLinks, origin string) (Reminder, error) {
	l.mu.RLock()
	m, ok := l.members.Get(id)
	var ob Obligations
	if ok {
		ob = l.obligationsLocked(m)
	}
	tpl := l.reminder
	l.mu.RUnlock()
	if !ok {
		return Reminder{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	if !m.Active {
		return Reminder{}, fmt.Errorf("%w: %s", ErrMemberInactive, id)
	}
	if len(ob.Items) == 0 {
		return Reminder{}, ErrNothingOwed
	}

	msg := ChargeMessage(m, ob, links, tpl)
	r := Reminder{MemberID: id, Message: msg, WhatsAppURL: WhatsAppURL(m.Phone, msg), Obligations: ob}
	l.recordEvent(ctx, events.Event{
		Kind:     events.KindCharge,
		MemberID: m.ID,
		Name:     m.Name,
		Action:   "charge",
		Origin:   origin,
		Pending:  periodStrings(ob),
		Total:    ob.Total,
	})
	return r, nil
}
