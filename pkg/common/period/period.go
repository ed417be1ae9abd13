// Package period models billing months ("competências") and the window of
// months elapsed since a fixed epoch.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalid is returned when a string does not describe a billing month.
var ErrInvalid = errors.New("invalid period")

// Period is a billing month. The zero value is not a valid period.
type Period struct {
	Year  int
	Month time.Month
}

// New returns the period for year and month.
func New(year int, month time.Month) Period {
	return Period{Year: year, Month: month}
}

// Of returns the period containing t, evaluated in t's location.
func Of(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Parse accepts YYYY-MM, YYYY-M, MM/YYYY and M/YYYY.
func Parse(s string) (Period, error) {
	s = strings.TrimSpace(s)
	var yearStr, monthStr string
	switch {
	case strings.Contains(s, "-"):
		parts := strings.Split(s, "-")
		if len(parts) != 2 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		yearStr, monthStr = parts[0], parts[1]
	case strings.Contains(s, "/"):
		parts := strings.Split(s, "/")
		if len(parts) != 2 {
			return Period{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
		monthStr, yearStr = parts[0], parts[1]
	default:
		return Period{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	if len(yearStr) != 4 || len(monthStr) == 0 || len(monthStr) > 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return Period{Year: year, Month: time.Month(month)}, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Period {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsZero reports whether p is the zero value.
func (p Period) IsZero() bool { return p.Year == 0 && p.Month == 0 }

// String returns the canonical YYYY-MM form. Its lexicographic order is chronological.
func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Display returns MM/YYYY.
func (p Period) Display() string {
	return fmt.Sprintf("%02d/%04d", int(p.Month), p.Year)
}

// Next returns the following month.
func (p Period) Next() Period {
	if p.Month == time.December {
		return Period{Year: p.Year + 1, Month: time.January}
	}
	return Period{Year: p.Year, Month: p.Month + 1}
}

// Before reports whether p is earlier than q.
func (p Period) Before(q Period) bool {
	if p.Year != q.Year {
		return p.Year < q.Year
	}
	return p.Month < q.Month
}

// MarshalText implements encoding.TextMarshaler.
func (p Period) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Period) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Window returns every period from epoch through the month containing asOf,
// ascending and inclusive. It is empty when asOf falls before the epoch month.
func Window(epoch Period, asOf time.Time) []Period {
	end := Of(asOf)
	if end.Before(epoch) {
		return []Period{}
	}
	out := make([]Period, 0, (end.Year-epoch.Year)*12+int(end.Month)-int(epoch.Month)+1)
	for p := epoch; !end.Before(p); p = p.Next() {
		out = append(out, p)
	}
	return out
}
