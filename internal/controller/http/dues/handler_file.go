package dues

import (
	"net/http"

	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

// getFile serves the current store in the canonical file layout.
func (h *Handler) getFile(w http.ResponseWriter, r *http.Request) {
	data, err := snapshot.Marshal(h.ledger.Snapshot())
	if err != nil {
		h.fail(w, "encode snapshot", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(data)
}

// saveFile replaces the whole store with the request body and saves it
// synchronously. Canonical and legacy layouts are both accepted.
func (h *Handler) saveFile(w http.ResponseWriter, r *http.Request) {
	s, rep, err := snapshot.Decode(r.Body)
	if err != nil {
		h.log.Debug("saveFile: rejected body: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	out, warnings, err := h.ledger.ReplaceAndSave(r.Context(), s)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "error": err.Error()})
		return
	}
	if out == nil && len(warnings) > 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "error": warnings[0]})
		return
	}
	h.log.Info("saveFile: replaced store with %d members, %d payments", len(s.Members), len(s.Payments))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"members":      len(s.Members),
		"payments":     len(s.Payments),
		"paidPayments": s.PaidCount(),
		"warnings":     append(rep.Warnings, warnings...),
		"save":         out,
	})
}
