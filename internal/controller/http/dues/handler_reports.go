package dues

import (
	"net/http"
	"strconv"

	"github.com/azzil/mensalidades/be/pkg/repositories/events"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.ledger.Summary())
}

// listEvents serves the access/charge log, newest first. Query parameters:
// kind, memberId, name, limit.
func (h *Handler) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := events.Filter{
		Kind:     events.Kind(q.Get("kind")),
		MemberID: members.MemberID(q.Get("memberId")),
		Name:     q.Get("name"),
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		f.Limit = n
	}
	items, err := h.ledger.Events(r.Context(), f)
	if err != nil {
		h.fail(w, "list events", err)
		return
	}
	if items == nil {
		items = []events.Event{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) textReport(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(h.ledger.TextReport()))
}
