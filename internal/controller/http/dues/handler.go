package dues

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	core "github.com/azzil/mensalidades/be/internal/dues"
	"github.com/azzil/mensalidades/be/pkg/common/confirmlink"
	"github.com/azzil/mensalidades/be/pkg/common/logger"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/attachments"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

var errLinksDisabled = errors.New("confirmation links are not configured")

// StatusSource reports the last save attempt.
type StatusSource interface {
	Status() core.SaveStatus
}

// Options carries the optional collaborators of a Handler.
type Options struct {
	Status         StatusSource
	Attachments    attachments.Store
	Links          *confirmlink.Issuer
	Metrics        http.Handler
	MaxUploadBytes int64
}

type Handler struct {
	ledger    *core.Ledger
	status    StatusSource
	files     attachments.Store
	links     *confirmlink.Issuer
	metrics   http.Handler
	maxUpload int64
	log       *logger.Logger
}

// NewHandler wires the HTTP surface around a ledger. Routes whose
// collaborator is missing from opts answer 503.
func NewHandler(l *core.Ledger, opts Options) *Handler {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 10 << 20
	}
	return &Handler{
		ledger:    l,
		status:    opts.Status,
		files:     opts.Attachments,
		links:     opts.Links,
		metrics:   opts.Metrics,
		maxUpload: opts.MaxUploadBytes,
		log:       logger.Named("http"),
	}
}

// Router returns a chi-based router for the dashboard, the public
// confirmation pages and the legacy file endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/health", h.health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics)
	}

	// Whole-file access kept for the legacy static pages
	r.Get("/file.json", h.getFile)
	r.Put("/api/save-file.json", h.saveFile)

	// Attachments
	r.Post("/api/upload-comprovante", h.uploadProof)
	r.Post("/api/upload-boleto", h.uploadInvoice)
	r.Get("/comprovantes/{name}", h.serveProof)
	r.Get("/boletos/{name}", h.serveInvoice)

	r.Route("/api/members", func(r chi.Router) {
		r.Get("/", h.listMembers)
		r.Post("/", h.createMember)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getMember)
			r.Patch("/", h.updateMember)
			r.Delete("/", h.deleteMember)
			r.Get("/obligations", h.memberObligations)
			r.Get("/charge-message", h.chargeMessage)
			r.Get("/confirm-link", h.confirmLink)

			r.Get("/payments", h.listPayments)
			r.Post("/payments", h.createPayment)
			r.Patch("/payments/{period}", h.editPayment)
			r.Post("/payments/{period}/toggle", h.togglePayment)
			r.Delete("/payments/{period}", h.deletePayment)
		})
	})

	// Public confirmation
	r.Get("/api/confirm/{token}", h.confirmLookup)
	r.Post("/api/confirm/{token}/payments/{period}", h.confirmPayment)
	r.Post("/api/confirmations/merge", h.mergeConfirmations)

	r.Get("/api/reports/summary", h.summary)
	r.Get("/api/reports/events", h.listEvents)
	r.Get("/api/reports/text", h.textReport)
	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if h.status != nil {
		body["save"] = h.status.Status()
	}
	writeJSON(w, http.StatusOK, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func memberID(r *http.Request) members.MemberID {
	return members.MemberID(chi.URLParam(r, "id"))
}

func urlPeriod(r *http.Request) (period.Period, error) {
	return period.Parse(chi.URLParam(r, "period"))
}

// fail maps domain errors onto status codes. Anything unrecognized is logged
// and reported as a 500.
func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, core.ErrMemberNotFound), errors.Is(err, members.ErrNotFound):
		http.Error(w, "member not found", http.StatusNotFound)
	case errors.Is(err, core.ErrMemberInactive):
		http.Error(w, "member is inactive", http.StatusConflict)
	case errors.Is(err, core.ErrNothingOwed):
		http.Error(w, "member has no open periods", http.StatusConflict)
	case errors.Is(err, core.ErrUnknownField):
		http.Error(w, "unknown field", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidValue):
		http.Error(w, "invalid value", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidPeriod), errors.Is(err, period.ErrInvalid):
		http.Error(w, "invalid period", http.StatusBadRequest)
	case errors.Is(err, payments.ErrDuplicate):
		http.Error(w, "payment already exists for period", http.StatusConflict)
	case errors.Is(err, members.ErrDuplicate):
		http.Error(w, "member id already exists", http.StatusConflict)
	case errors.Is(err, attachments.ErrTooLarge):
		http.Error(w, "file too large", http.StatusRequestEntityTooLarge)
	case errors.Is(err, attachments.ErrNotPDF):
		http.Error(w, "invoice must be a PDF", http.StatusUnsupportedMediaType)
	case errors.Is(err, attachments.ErrInvalidName):
		http.Error(w, "invalid attachment", http.StatusBadRequest)
	case errors.Is(err, attachments.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, confirmlink.ErrInvalidToken):
		http.Error(w, "invalid or expired link", http.StatusUnauthorized)
	case errors.Is(err, confirmlink.ErrNoTaxID):
		http.Error(w, "member has no tax id", http.StatusConflict)
	case errors.Is(err, errLinksDisabled):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	case errors.Is(err, snapshot.ErrNoSnapshot):
		http.Error(w, "invalid data file", http.StatusBadRequest)
	default:
		h.log.Error("%s: %v", op, err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
