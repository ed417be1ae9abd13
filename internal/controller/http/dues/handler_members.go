package dues

import (
	"errors"
	"net/http"
	"strings"
	"time"

	core "github.com/azzil/mensalidades/be/internal/dues"
	"github.com/azzil/mensalidades/be/pkg/common/confirmlink"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

func (h *Handler) listMembers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	owing := q.Get("owing")
	items := h.ledger.Overview(core.OverviewFilter{
		OnlyOwing: owing == "1" || strings.EqualFold(owing, "true"),
		Query:     q.Get("q"),
	})
	if items == nil {
		items = []core.MemberStatus{}
	}
	h.log.Debug("listMembers: returned %d items", len(items))
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createMember(w http.ResponseWriter, r *http.Request) {
	var in core.MemberInput
	if err := decodeJSON(r, &in); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	res, err := h.ledger.AddMember(r.Context(), in)
	if err != nil {
		h.fail(w, "create member", err)
		return
	}
	h.log.Info("createMember: created id=%s", res.Member.ID)
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) getMember(w http.ResponseWriter, r *http.Request) {
	id := memberID(r)
	m, err := h.ledger.Member(id)
	if err != nil {
		h.fail(w, "get member", err)
		return
	}
	ob, err := h.ledger.Obligations(id)
	if err != nil {
		h.fail(w, "get member", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"member":      m,
		"payments":    h.ledger.Payments(id),
		"obligations": ob,
	})
}

type fieldEdit struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Date  string `json:"date,omitempty"`
}

func (h *Handler) updateMember(w http.ResponseWriter, r *http.Request) {
	var req fieldEdit
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	field, ok := members.ParseField(req.Field)
	if !ok {
		h.fail(w, "update member", core.ErrUnknownField)
		return
	}
	res, err := h.ledger.UpdateMember(r.Context(), memberID(r), field, req.Value)
	if err != nil {
		h.fail(w, "update member", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) deleteMember(w http.ResponseWriter, r *http.Request) {
	res, err := h.ledger.DeleteMember(r.Context(), memberID(r))
	if err != nil {
		h.fail(w, "delete member", err)
		return
	}
	h.log.Info("deleteMember: deleted id=%s with %d payments", res.Member.ID, res.Removed)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) memberObligations(w http.ResponseWriter, r *http.Request) {
	ob, err := h.ledger.Obligations(memberID(r))
	if err != nil {
		h.fail(w, "obligations", err)
		return
	}
	writeJSON(w, http.StatusOK, ob)
}

type linkResponse struct {
	Token        string    `json:"token"`
	Confirm      string    `json:"confirm"`
	OpenInvoices string    `json:"openInvoices"`
	PaidInvoices string    `json:"paidInvoices"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (h *Handler) issueLinks(m members.Member) (linkResponse, error) {
	if h.links == nil {
		return linkResponse{}, errLinksDisabled
	}
	tok, claims, err := h.links.Issue(m)
	if err != nil {
		return linkResponse{}, err
	}
	return linkResponse{
		Token:        tok,
		Confirm:      h.links.Link(tok),
		OpenInvoices: h.links.InvoicesLink(tok, "abertos"),
		PaidInvoices: h.links.InvoicesLink(tok, "pagos"),
		ExpiresAt:    claims.ExpiresAt,
	}, nil
}

func (h *Handler) confirmLink(w http.ResponseWriter, r *http.Request) {
	m, err := h.ledger.Member(memberID(r))
	if err != nil {
		h.fail(w, "confirm link", err)
		return
	}
	links, err := h.issueLinks(m)
	if err != nil {
		h.fail(w, "confirm link", err)
		return
	}
	writeJSON(w, http.StatusOK, links)
}

// chargeMessage renders the reminder. Without a tax id or a link issuer the
// message goes out without links.
func (h *Handler) chargeMessage(w http.ResponseWriter, r *http.Request) {
	m, err := h.ledger.Member(memberID(r))
	if err != nil {
		h.fail(w, "charge message", err)
		return
	}
	var links core.ReminderLinks
	issued, err := h.issueLinks(m)
	switch {
	case err == nil:
		links = core.ReminderLinks{Confirm: issued.Confirm, OpenInvoices: issued.OpenInvoices, PaidInvoices: issued.PaidInvoices}
	case errors.Is(err, confirmlink.ErrNoTaxID), errors.Is(err, errLinksDisabled):
		h.log.Debug("chargeMessage: sending without links for %s: %v", m.ID, err)
	default:
		h.fail(w, "charge message", err)
		return
	}
	origin := r.URL.Query().Get("origin")
	if origin == "" {
		origin = "dashboard"
	}
	rem, err := h.ledger.Reminder(r.Context(), m.ID, links, origin)
	if err != nil {
		h.fail(w, "charge message", err)
		return
	}
	writeJSON(w, http.StatusOK, rem)
}
