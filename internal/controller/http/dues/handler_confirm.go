package dues

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	core "github.com/azzil/mensalidades/be/internal/dues"
	"github.com/azzil/mensalidades/be/pkg/common/confirmlink"
	"github.com/azzil/mensalidades/be/pkg/repositories/attachments"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

const linkOrigin = "link"

// publicPayment is what the confirmation pages may see of a record.
type publicPayment struct {
	Period     string          `json:"period"`
	Status     payments.Status `json:"status"`
	AmountDue  string          `json:"amountDue"`
	InvoiceRef string          `json:"invoiceRef,omitempty"`
}

func (h *Handler) verifyToken(w http.ResponseWriter, r *http.Request) (confirmlink.Claims, bool) {
	if h.links == nil {
		h.fail(w, "verify token", errLinksDisabled)
		return confirmlink.Claims{}, false
	}
	claims, err := h.links.Verify(chi.URLParam(r, "token"))
	if err != nil {
		h.log.Debug("verifyToken: %v", err)
		h.fail(w, "verify token", err)
		return confirmlink.Claims{}, false
	}
	return claims, true
}

// confirmLookup opens a confirmation link: who the member is, what is owed
// and which invoices exist.
func (h *Handler) confirmLookup(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.verifyToken(w, r)
	if !ok {
		return
	}
	m, ob, err := h.ledger.LookupByTaxID(r.Context(), claims.TaxID, linkOrigin)
	if err != nil {
		h.fail(w, "confirm lookup", err)
		return
	}
	if !m.Active {
		h.fail(w, "confirm lookup", core.ErrMemberInactive)
		return
	}
	recs := h.ledger.Payments(m.ID)
	pub := make([]publicPayment, 0, len(recs))
	for _, p := range recs {
		pub = append(pub, publicPayment{
			Period:     p.Period.String(),
			Status:     p.Status,
			AmountDue:  p.AmountDue.StringFixed(2),
			InvoiceRef: p.InvoiceRef,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"memberId":    m.ID,
		"name":        m.Name,
		"obligations": ob,
		"payments":    pub,
		"expiresAt":   claims.ExpiresAt,
	})
}

// confirmPayment marks one period paid on behalf of the link holder. A
// multipart body may carry the proof in field "comprovante".
func (h *Handler) confirmPayment(w http.ResponseWriter, r *http.Request) {
	claims, ok := h.verifyToken(w, r)
	if !ok {
		return
	}
	per, err := urlPeriod(r)
	if err != nil {
		h.fail(w, "confirm payment", err)
		return
	}
	m, err := h.ledger.MemberByTaxID(claims.TaxID)
	if err != nil {
		h.fail(w, "confirm payment", err)
		return
	}
	if !m.Active {
		h.fail(w, "confirm payment", fmt.Errorf("%w: %s", core.ErrMemberInactive, m.ID))
		return
	}

	var proofRef string
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
		if h.files == nil {
			http.Error(w, "attachments are not configured", http.StatusServiceUnavailable)
			return
		}
		u, done, err := h.readUpload(w, r, "comprovante")
		if err != nil {
			h.log.Debug("confirmPayment: bad multipart body: %v", err)
			http.Error(w, "file is required", http.StatusBadRequest)
			return
		}
		defer done()
		u.MemberID, u.Period = m.ID, per
		proofRef, err = h.files.Put(r.Context(), attachments.KindProof, u)
		if err != nil {
			h.fail(w, "confirm payment", err)
			return
		}
	}

	res, err := h.ledger.ConfirmPayment(r.Context(), m.ID, per, proofRef, linkOrigin)
	if err != nil {
		h.fail(w, "confirm payment", err)
		return
	}
	h.log.Info("confirmPayment: %s confirmed %s (already closed: %t)", m.ID, per, res.AlreadyClosed)
	writeJSON(w, http.StatusOK, res)
}

// mergeConfirmations applies the PAID records of a snapshot captured by an
// offline confirmation page.
func (h *Handler) mergeConfirmations(w http.ResponseWriter, r *http.Request) {
	s, _, err := snapshot.Decode(r.Body)
	if err != nil {
		h.fail(w, "merge confirmations", err)
		return
	}
	rep, err := h.ledger.MergeConfirmations(r.Context(), s)
	if err != nil {
		h.fail(w, "merge confirmations", err)
		return
	}
	h.log.Info("mergeConfirmations: applied=%d skipped=%d", rep.Applied, rep.Skipped)
	writeJSON(w, http.StatusOK, rep)
}
