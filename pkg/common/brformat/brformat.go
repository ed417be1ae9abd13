// Package brformat parses and formats the pt-BR display strings the dashboard
// exchanges: currency ("R$ 1.234,56"), dates ("15/01/2026") and document numbers.
// Parsers never fail; malformed input degrades to zero or empty.
package brformat

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const isoDate = "2006-01-02"

// ParseAmount converts a localized currency string to a non-negative amount.
// Comma is the decimal separator when present; otherwise a single dot followed by
// exactly three digits is read as a thousands separator.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "R$", "")
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return decimal.Zero
	}
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	case strings.Count(s, ".") == 1:
		idx := strings.Index(s, ".")
		if len(s)-idx-1 == 3 && idx > 0 {
			s = strings.Replace(s, ".", "", 1)
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() {
		return decimal.Zero
	}
	return d.Round(2)
}

// FormatAmount renders d as "1.234,56".
func FormatAmount(d decimal.Decimal) string {
	fixed := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	if d.IsNegative() {
		b.WriteByte('-')
	}
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// ParseDate converts DD/MM/YYYY, YYYY-MM-DD or an RFC 3339 timestamp to
// YYYY-MM-DD. Anything else yields "".
func ParseDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.Format(isoDate)
	}
	if datePart, _, ok := strings.Cut(s, "T"); ok {
		s = datePart
	}
	if datePart, _, ok := strings.Cut(s, " "); ok {
		s = datePart
	}
	for _, layout := range []string{"02/01/2006", "2/1/2006", isoDate, "2006-1-2"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(isoDate)
		}
	}
	return ""
}

// FormatDate renders a YYYY-MM-DD date as DD/MM/YYYY. Unparseable input is returned as is.
func FormatDate(iso string) string {
	if iso == "" {
		return ""
	}
	t, err := time.Parse(isoDate, iso)
	if err != nil {
		return iso
	}
	return t.Format("02/01/2006")
}

// Today returns now's calendar date as YYYY-MM-DD.
func Today(now time.Time) string {
	return now.Format(isoDate)
}

// DigitsOnly strips everything but ASCII digits. Tax ids and phone numbers are
// compared in this form.
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
