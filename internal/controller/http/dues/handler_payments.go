package dues

import (
	"net/http"

	core "github.com/azzil/mensalidades/be/internal/dues"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id := memberID(r)
	if _, err := h.ledger.Member(id); err != nil {
		h.fail(w, "list payments", err)
		return
	}
	items := h.ledger.Payments(id)
	if items == nil {
		items = []payments.Payment{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Period string `json:"period"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	per, err := period.Parse(req.Period)
	if err != nil {
		h.fail(w, "create payment", err)
		return
	}
	res, err := h.ledger.AddPayment(r.Context(), memberID(r), per)
	if err != nil {
		h.fail(w, "create payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) editPayment(w http.ResponseWriter, r *http.Request) {
	per, err := urlPeriod(r)
	if err != nil {
		h.fail(w, "edit payment", err)
		return
	}
	var req fieldEdit
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	field, ok := core.ParseEditField(req.Field)
	if !ok {
		h.fail(w, "edit payment", core.ErrUnknownField)
		return
	}
	res, err := h.ledger.ApplyFieldEdit(r.Context(), memberID(r), per, core.Edit{Field: field, Value: req.Value, Date: req.Date})
	if err != nil {
		h.fail(w, "edit payment", err)
		return
	}
	if len(res.Restored) > 0 {
		h.log.Warn("editPayment: %s %s restored %v", memberID(r), per, res.Restored)
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) togglePayment(w http.ResponseWriter, r *http.Request) {
	per, err := urlPeriod(r)
	if err != nil {
		h.fail(w, "toggle payment", err)
		return
	}
	res, err := h.ledger.TogglePayment(r.Context(), memberID(r), per)
	if err != nil {
		h.fail(w, "toggle payment", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) deletePayment(w http.ResponseWriter, r *http.Request) {
	per, err := urlPeriod(r)
	if err != nil {
		h.fail(w, "delete payment", err)
		return
	}
	res, err := h.ledger.DeletePayment(r.Context(), memberID(r), per)
	if err != nil {
		h.fail(w, "delete payment", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
