package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/azzil/mensalidades/be/pkg/common/brformat"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

// flexString accepts a JSON string, number or bool. Spreadsheet imports put
// tax ids and phone numbers in as numbers.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*f = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(strings.TrimSpace(s))
	default:
		*f = flexString(b)
	}
	return nil
}

// flexDecimal accepts a JSON number or a localized currency string.
type flexDecimal struct {
	set bool
	d   decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		neg := strings.HasPrefix(s, "-")
		d := brformat.ParseAmount(strings.TrimPrefix(s, "-"))
		if neg {
			d = d.Neg()
		}
		f.set, f.d = true, d
	default:
		d, err := decimal.NewFromString(string(b))
		if err != nil {
			return nil
		}
		f.set, f.d = true, d
	}
	return nil
}

// amount clamps to the non-negative range payments require.
func (f flexDecimal) amount() decimal.Decimal {
	if !f.set || f.d.IsNegative() {
		return decimal.Zero
	}
	return f.d.Round(2)
}

// flexBool accepts true/false, "true"/"false", "sim"/"não" and 1/0.
type flexBool struct {
	set bool
	v   bool
}

func (f *flexBool) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	s := strings.ToLower(strings.Trim(string(b), `" `))
	switch s {
	case "true", "1", "sim", "s", "yes", "ativo":
		f.set, f.v = true, true
	case "false", "0", "nao", "não", "n", "no", "inativo":
		f.set, f.v = true, false
	}
	return nil
}

type wireMember struct {
	ID        members.MemberID `json:"id"`
	Name      flexString       `json:"name"`
	Nome      flexString       `json:"nome"`
	TaxID     flexString       `json:"taxId"`
	CPF       flexString       `json:"cpf"`
	Phone     flexString       `json:"phone"`
	WhatsApp  flexString       `json:"whatsapp"`
	Email     flexString       `json:"email"`
	BirthDate flexString       `json:"birthDate"`
	DataNasc  flexString       `json:"data_nascimento"`
	Active    flexBool         `json:"active"`
	Ativo     flexBool         `json:"ativo"`
}

type wirePayment struct {
	MemberID      members.MemberID `json:"memberId"`
	IDIrmao       members.MemberID `json:"id_irmao"`
	Period        flexString       `json:"period"`
	Competencia   flexString       `json:"competencia"`
	Status        flexString       `json:"status"`
	AmountDue     flexDecimal      `json:"amountDue"`
	Valor         flexDecimal      `json:"valor"`
	PaymentDate   flexString       `json:"paymentDate"`
	DataPagamento flexString       `json:"data_pagamento"`
	Notes         flexString       `json:"notes"`
	Obs           flexString       `json:"obs"`
	ProofRef      flexString       `json:"proofOfPaymentRef"`
	Comprovante   flexString       `json:"comprovante"`
	InvoiceRef    flexString       `json:"invoiceRef"`
	Boleto        flexString       `json:"boleto"`
}

type wireExpense struct {
	Date        flexString  `json:"date"`
	Data        flexString  `json:"data"`
	Description flexString  `json:"description"`
	Descricao   flexString  `json:"descricao"`
	Amount      flexDecimal `json:"amount"`
	Valor       flexDecimal `json:"valor"`
}

func pick(canonical, legacy flexString) string {
	if canonical != "" {
		return string(canonical)
	}
	return string(legacy)
}

func pickDecimal(canonical, legacy flexDecimal) flexDecimal {
	if canonical.set {
		return canonical
	}
	return legacy
}

// Decode reads a snapshot in the canonical or legacy form and normalizes it.
// Structural problems yield ErrNoSnapshot; bad individual records are fixed
// or dropped and noted in the report.
func Decode(r io.Reader) (Snapshot, LoadReport, error) {
	var rep LoadReport
	var top map[string]json.RawMessage
	if err := json.NewDecoder(r).Decode(&top); err != nil {
		return Snapshot{}, rep, fmt.Errorf("%w: %v", ErrNoSnapshot, err)
	}
	memberKey, paymentKey := "members", "payments"
	if _, ok := top[memberKey]; !ok {
		if _, legacy := top["irmaos"]; legacy {
			memberKey, paymentKey = "irmaos", "pagamentos"
			rep.Legacy = true
		}
	}
	rawMembers, ok := top[memberKey]
	if !ok || !isArray(rawMembers) {
		return Snapshot{}, rep, fmt.Errorf("%w: %q is missing or not an array", ErrNoSnapshot, memberKey)
	}
	rawPayments, ok := top[paymentKey]
	if !ok || !isArray(rawPayments) {
		return Snapshot{}, rep, fmt.Errorf("%w: %q is missing or not an array", ErrNoSnapshot, paymentKey)
	}

	var wm []wireMember
	if err := json.Unmarshal(rawMembers, &wm); err != nil {
		return Snapshot{}, rep, fmt.Errorf("%w: members: %v", ErrNoSnapshot, err)
	}
	var wp []wirePayment
	if err := json.Unmarshal(rawPayments, &wp); err != nil {
		return Snapshot{}, rep, fmt.Errorf("%w: payments: %v", ErrNoSnapshot, err)
	}

	s := Snapshot{
		Members:  decodeMembers(wm, &rep),
		Payments: decodePayments(wp, &rep),
		Expenses: []Expense{},
	}

	expKey := "expenses"
	if _, ok := top[expKey]; !ok {
		expKey = "despesas"
	}
	if raw, ok := top[expKey]; ok && isArray(raw) {
		var we []wireExpense
		if err := json.Unmarshal(raw, &we); err != nil {
			rep.warn("expenses ignored: " + err.Error())
		}
		for _, e := range we {
			s.Expenses = append(s.Expenses, Expense{
				Date:        brformat.ParseDate(pick(e.Date, e.Data)),
				Description: pick(e.Description, e.Descricao),
				Amount:      pickDecimal(e.Amount, e.Valor).amount(),
			})
		}
	}
	for _, k := range []string{"baseBalance", "saldo_base"} {
		if raw, ok := top[k]; ok {
			var f flexDecimal
			if err := json.Unmarshal(raw, &f); err == nil && f.set {
				s.BaseBalance = f.d
			}
			break
		}
	}
	return s, rep, nil
}

func isArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func decodeMembers(wm []wireMember, rep *LoadReport) []members.Member {
	out := make([]members.Member, 0, len(wm))
	seen := map[members.MemberID]bool{}
	for i, w := range wm {
		if w.ID == "" {
			rep.DroppedMembers++
			rep.warn(fmt.Sprintf("member #%d dropped: missing id", i))
			continue
		}
		if seen[w.ID] {
			rep.DroppedMembers++
			rep.warn(fmt.Sprintf("member %s dropped: duplicate id", w.ID))
			continue
		}
		seen[w.ID] = true
		active := true
		if w.Active.set {
			active = w.Active.v
		} else if w.Ativo.set {
			active = w.Ativo.v
		}
		out = append(out, members.Member{
			ID:        w.ID,
			Name:      pick(w.Name, w.Nome),
			TaxID:     pick(w.TaxID, w.CPF),
			Phone:     brformat.DigitsOnly(pick(w.Phone, w.WhatsApp)),
			Email:     string(w.Email),
			BirthDate: brformat.ParseDate(pick(w.BirthDate, w.DataNasc)),
			Active:    active,
		})
	}
	return out
}

func decodePayments(wp []wirePayment, rep *LoadReport) []payments.Payment {
	out := make([]payments.Payment, 0, len(wp))
	index := map[payments.Key]int{}
	for i, w := range wp {
		memberID := w.MemberID
		if memberID == "" {
			memberID = w.IDIrmao
		}
		if memberID == "" {
			rep.DroppedPayments++
			rep.warn(fmt.Sprintf("payment #%d dropped: missing member id", i))
			continue
		}
		rawPeriod := pick(w.Period, w.Competencia)
		per, err := period.Parse(rawPeriod)
		if err != nil {
			rep.DroppedPayments++
			rep.warn(fmt.Sprintf("payment #%d of member %s dropped: invalid period %q", i, memberID, rawPeriod))
			continue
		}
		status := payments.StatusOpen
		if w.Status != "" {
			st, ok := payments.ParseStatus(string(w.Status))
			if ok {
				status = st
			} else {
				rep.warn(fmt.Sprintf("payment %s/%s: unknown status %q read as OPEN", memberID, per, w.Status))
			}
		}
		p := payments.Payment{
			MemberID:    memberID,
			Period:      per,
			Status:      status,
			AmountDue:   pickDecimal(w.AmountDue, w.Valor).amount(),
			PaymentDate: brformat.ParseDate(pick(w.PaymentDate, w.DataPagamento)),
			Notes:       pick(w.Notes, w.Obs),
			ProofRef:    pick(w.ProofRef, w.Comprovante),
			InvoiceRef:  pick(w.InvoiceRef, w.Boleto),
		}
		if j, dup := index[p.Key()]; dup {
			out[j] = mergeDuplicate(out[j], p)
			rep.MergedDuplicates++
			rep.warn(fmt.Sprintf("payment %s/%s: duplicate record merged into the first", memberID, per))
			continue
		}
		index[p.Key()] = len(out)
		out = append(out, p)
	}
	return out
}

// mergeDuplicate keeps first and fills its empty fields from later.
func mergeDuplicate(first, later payments.Payment) payments.Payment {
	if first.AmountDue.IsZero() {
		first.AmountDue = later.AmountDue
	}
	if first.PaymentDate == "" {
		first.PaymentDate = later.PaymentDate
	}
	if first.Notes == "" {
		first.Notes = later.Notes
	}
	if first.ProofRef == "" {
		first.ProofRef = later.ProofRef
	}
	if first.InvoiceRef == "" {
		first.InvoiceRef = later.InvoiceRef
	}
	return first
}

type outPayment struct {
	MemberID    members.MemberID `json:"memberId"`
	Period      string           `json:"period"`
	Status      payments.Status  `json:"status"`
	AmountDue   json.Number      `json:"amountDue"`
	PaymentDate string           `json:"paymentDate"`
	Notes       string           `json:"notes"`
	ProofRef    string           `json:"proofOfPaymentRef,omitempty"`
	InvoiceRef  string           `json:"invoiceRef,omitempty"`
}

type outExpense struct {
	Date        string      `json:"date,omitempty"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
}

type outSnapshot struct {
	Members     []members.Member `json:"members"`
	Payments    []outPayment     `json:"payments"`
	Expenses    []outExpense     `json:"expenses"`
	BaseBalance json.Number      `json:"baseBalance"`
}

func number(d decimal.Decimal) json.Number {
	return json.Number(d.String())
}

// Encode writes s in the canonical form. Empty collections are written as
// arrays so the output always decodes again.
func Encode(w io.Writer, s Snapshot) error {
	out := outSnapshot{
		Members:     s.Members,
		Payments:    make([]outPayment, 0, len(s.Payments)),
		Expenses:    make([]outExpense, 0, len(s.Expenses)),
		BaseBalance: number(s.BaseBalance),
	}
	if out.Members == nil {
		out.Members = []members.Member{}
	}
	for _, p := range s.Payments {
		out.Payments = append(out.Payments, outPayment{
			MemberID:    p.MemberID,
			Period:      p.Period.String(),
			Status:      p.Status,
			AmountDue:   number(p.AmountDue),
			PaymentDate: p.PaymentDate,
			Notes:       p.Notes,
			ProofRef:    p.ProofRef,
			InvoiceRef:  p.InvoiceRef,
		})
	}
	for _, e := range s.Expenses {
		out.Expenses = append(out.Expenses, outExpense{Date: e.Date, Description: e.Description, Amount: number(e.Amount)})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// Marshal is Encode into a byte slice.
func Marshal(s Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is Decode from a byte slice.
func Unmarshal(b []byte) (Snapshot, LoadReport, error) {
	return Decode(bytes.NewReader(b))
}
