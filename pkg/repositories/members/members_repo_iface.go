package members

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/azzil/mensalidades/be/pkg/common/brformat"
)

var (
	ErrNotFound  = errors.New("member not found")
	ErrDuplicate = errors.New("member id already exists")
)

// PlaceholderName is given to members added by hand until an operator edits them.
const PlaceholderName = "Novo Irmão (Edite)"

// MemberID is an opaque, immutable identifier. Imported snapshots use numeric
// ids; those round-trip as JSON numbers.
type MemberID string

func (id MemberID) MarshalJSON() ([]byte, error) {
	if isCanonicalNumber(string(id)) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *MemberID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = MemberID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("member id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = MemberID(fmt.Sprintf("%d", i))
		return nil
	}
	*id = MemberID(n.String())
	return nil
}

func isCanonicalNumber(s string) bool {
	if s == "" || len(s) > 15 {
		return false
	}
	if len(s) > 1 && s[0] == '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Member is a person tracked for dues.
type Member struct {
	ID        MemberID `json:"id"`
	Name      string   `json:"name"`
	TaxID     string   `json:"taxId"`
	Phone     string   `json:"phone"`
	Email     string   `json:"email,omitempty"`
	BirthDate string   `json:"birthDate,omitempty"`
	Active    bool     `json:"active"`
}

// NormalizeTaxID returns the digits-only form used for lookups.
func NormalizeTaxID(s string) string { return brformat.DigitsOnly(s) }

// Field names accepted by profile edits.
type Field string

const (
	FieldName      Field = "name"
	FieldTaxID     Field = "taxId"
	FieldPhone     Field = "phone"
	FieldEmail     Field = "email"
	FieldBirthDate Field = "birthDate"
	FieldActive    Field = "active"
)

// ParseField maps canonical and legacy field names.
func ParseField(s string) (Field, bool) {
	switch strings.TrimSpace(s) {
	case "name", "nome":
		return FieldName, true
	case "taxId", "cpf":
		return FieldTaxID, true
	case "phone", "whatsapp":
		return FieldPhone, true
	case "email":
		return FieldEmail, true
	case "birthDate", "data_nascimento":
		return FieldBirthDate, true
	case "active", "ativo":
		return FieldActive, true
	}
	return "", false
}

// Directory is the keyed member collection. List preserves insertion order.
type Directory interface {
	Get(id MemberID) (Member, bool)
	FindByTaxID(taxID string) (Member, bool)
	List() []Member
	Add(m Member) error
	Update(id MemberID, mutate func(*Member)) (Member, error)
	Delete(id MemberID) bool
	Replace(ms []Member) error
	Len() int
}
