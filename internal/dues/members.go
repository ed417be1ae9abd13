package dues

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/azzil/mensalidades/be/pkg/common/brformat"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// MemberInput creates a member. Empty names get the placeholder; a nil
// Active means active.
type MemberInput struct {
	ID        members.MemberID `json:"id,omitempty"`
	Name      string           `json:"name"`
	TaxID     string           `json:"taxId"`
	Phone     string           `json:"phone"`
	Email     string           `json:"email,omitempty"`
	BirthDate string           `json:"birthDate,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

// MemberResult is returned by member mutations.
type MemberResult struct {
	Member   members.Member        `json:"member"`
	Removed  int                   `json:"removedPayments,omitempty"`
	Warnings []string              `json:"warnings,omitempty"`
	Save     *snapshot.SaveOutcome `json:"save,omitempty"`
}

// AddMember appends a member. A blank id is replaced with a fresh uuid.
func (l *Ledger) AddMember(ctx context.Context, in MemberInput) (MemberResult, error) {
	m := members.Member{
		ID:        members.MemberID(strings.TrimSpace(string(in.ID))),
		Name:      strings.TrimSpace(in.Name),
		TaxID:     strings.TrimSpace(in.TaxID),
		Phone:     brformat.DigitsOnly(in.Phone),
		Email:     strings.TrimSpace(in.Email),
		BirthDate: brformat.ParseDate(in.BirthDate),
		Active:    true,
	}
	if m.ID == "" {
		m.ID = members.MemberID(uuid.NewString())
	}
	if m.Name == "" {
		m.Name = members.PlaceholderName
	}
	if in.Active != nil {
		m.Active = *in.Active
	}

	l.mu.Lock()
	if err := l.members.Add(m); err != nil {
		l.mu.Unlock()
		return MemberResult{}, err
	}
	l.refreshGaugesLocked()
	l.mu.Unlock()

	res := MemberResult{Member: m}
	res.Save, res.Warnings = l.persistNow(ctx)
	return res, nil
}

// UpdateMember changes one directory field. Inactive members only accept
// changes to the active flag.
func (l *Ledger) UpdateMember(ctx context.Context, id members.MemberID, field members.Field, value string) (MemberResult, error) {
	var setter func(*members.Member)
	switch field {
	case members.FieldName:
		v := strings.TrimSpace(value)
		setter = func(m *members.Member) { m.Name = v }
	case members.FieldTaxID:
		v := strings.TrimSpace(value)
		setter = func(m *members.Member) { m.TaxID = v }
	case members.FieldPhone:
		v := brformat.DigitsOnly(value)
		setter = func(m *members.Member) { m.Phone = v }
	case members.FieldEmail:
		v := strings.TrimSpace(value)
		setter = func(m *members.Member) { m.Email = v }
	case members.FieldBirthDate:
		v := brformat.ParseDate(value)
		setter = func(m *members.Member) { m.BirthDate = v }
	case members.FieldActive:
		v, ok := parseBool(value)
		if !ok {
			return MemberResult{}, fmt.Errorf("%w: active=%q", ErrInvalidValue, value)
		}
		setter = func(m *members.Member) { m.Active = v }
	default:
		return MemberResult{}, fmt.Errorf("%w: %q", ErrUnknownField, field)
	}

	l.mu.Lock()
	current, ok := l.members.Get(id)
	if !ok {
		l.mu.Unlock()
		return MemberResult{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	if !current.Active && field != members.FieldActive {
		l.mu.Unlock()
		return MemberResult{}, fmt.Errorf("%w: %s", ErrMemberInactive, id)
	}
	updated, err := l.members.Update(id, setter)
	l.mu.Unlock()
	if err != nil {
		return MemberResult{}, err
	}

	res := MemberResult{Member: updated}
	if field == members.FieldActive {
		res.Save, res.Warnings = l.persistNow(ctx)
	} else {
		l.persistLater()
	}
	return res, nil
}

// DeleteMember removes a member and every payment record they own.
func (l *Ledger) DeleteMember(ctx context.Context, id members.MemberID) (MemberResult, error) {
	l.mu.Lock()
	m, ok := l.members.Get(id)
	if !ok {
		l.mu.Unlock()
		return MemberResult{}, fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}
	l.members.Delete(id)
	removed := l.payments.DeleteAllForMember(id)
	l.refreshGaugesLocked()
	l.mu.Unlock()

	res := MemberResult{Member: m, Removed: removed}
	res.Save, res.Warnings = l.persistNow(ctx)
	return res, nil
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "sim", "s", "yes", "y", "ativo":
		return true, true
	case "false", "0", "nao", "não", "n", "no", "inativo":
		return false, true
	}
	return false, false
}
