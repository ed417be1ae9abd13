// Package confirmlink issues and verifies the signed links members use to
// confirm their own payments without logging in.
package confirmlink

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	jwk "github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

var (
	ErrInvalidToken = errors.New("invalid confirmation token")
	ErrNoTaxID      = errors.New("member has no tax id")
)

const memberClaim = "mid"

// Claims is what a verified link tells us.
type Claims struct {
	TaxID     string           `json:"taxId"`
	MemberID  members.MemberID `json:"memberId"`
	TokenID   string           `json:"tokenId"`
	ExpiresAt time.Time        `json:"expiresAt"`
}

type Issuer struct {
	key     jwk.Key
	issuer  string
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewIssuer builds an issuer. baseURL is where the public confirmation page lives.
func NewIssuer(key jwk.Key, issuer, baseURL string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &Issuer{
		key:     key,
		issuer:  issuer,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (i *Issuer) WithClock(now func() time.Time) *Issuer {
	i.now = now
	return i
}

// Issue signs a token for m. sub carries the digits-only tax id.
func (i *Issuer) Issue(m members.Member) (string, Claims, error) {
	taxID := members.NormalizeTaxID(m.TaxID)
	if taxID == "" {
		return "", Claims{}, ErrNoTaxID
	}
	now := i.now()
	c := Claims{TaxID: taxID, MemberID: m.ID, TokenID: uuid.NewString(), ExpiresAt: now.Add(i.ttl).Truncate(time.Second)}
	tok, err := jwt.NewBuilder().
		Issuer(i.issuer).
		Subject(taxID).
		IssuedAt(now).
		Expiration(c.ExpiresAt).
		JwtID(c.TokenID).
		Claim(memberClaim, string(m.ID)).
		Build()
	if err != nil {
		return "", Claims{}, err
	}
	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, i.key))
	if err != nil {
		return "", Claims{}, err
	}
	return string(signed), c, nil
}

// Verify checks signature, issuer and expiry.
func (i *Issuer) Verify(token string) (Claims, error) {
	tok, err := jwt.ParseString(token,
		jwt.WithKey(jwa.HS256, i.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(i.issuer),
		jwt.WithClock(jwt.ClockFunc(i.now)),
	)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	c := Claims{TaxID: tok.Subject(), TokenID: tok.JwtID(), ExpiresAt: tok.Expiration()}
	if v, ok := tok.Get(memberClaim); ok {
		if s, ok := v.(string); ok {
			c.MemberID = members.MemberID(s)
		}
	}
	if c.TaxID == "" {
		return Claims{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return c, nil
}

// Link is the public confirmation page URL for token.
func (i *Issuer) Link(token string) string {
	return i.baseURL + "/confirmacao.html?c=" + url.QueryEscape(token)
}

// InvoicesLink points at the member's invoice listing; section is "abertos" or "pagos".
func (i *Issuer) InvoicesLink(token, section string) string {
	return i.baseURL + "/boletos.html?c=" + url.QueryEscape(token) + "#" + section
}
