package dues

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/attachments"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

func (h *Handler) uploadProof(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, attachments.KindProof, "comprovante")
}

func (h *Handler) uploadInvoice(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, attachments.KindInvoice, "boleto")
}

// formValue reads the first non-empty of the given multipart fields.
func formValue(r *http.Request, names ...string) string {
	for _, n := range names {
		if v := strings.TrimSpace(r.FormValue(n)); v != "" {
			return v
		}
	}
	return ""
}

// readUpload parses a multipart body into an Upload. The caller closes the
// returned file.
func (h *Handler) readUpload(w http.ResponseWriter, r *http.Request, fileField string) (attachments.Upload, func(), error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+1<<20)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return attachments.Upload{}, nil, attachments.ErrTooLarge
		}
		return attachments.Upload{}, nil, err
	}
	f, hdr, err := r.FormFile(fileField)
	if err != nil {
		f, hdr, err = r.FormFile("file")
	}
	if err != nil {
		return attachments.Upload{}, nil, err
	}
	u := attachments.Upload{
		MemberID:    members.MemberID(formValue(r, "memberId", "id_irmao")),
		Filename:    hdr.Filename,
		ContentType: hdr.Header.Get("Content-Type"),
		Body:        f,
	}
	return u, func() { _ = f.Close() }, nil
}

func (h *Handler) upload(w http.ResponseWriter, r *http.Request, kind attachments.Kind, fileField string) {
	if h.files == nil {
		http.Error(w, "attachments are not configured", http.StatusServiceUnavailable)
		return
	}
	u, done, err := h.readUpload(w, r, fileField)
	if err != nil {
		if errors.Is(err, attachments.ErrTooLarge) {
			h.fail(w, "upload", err)
			return
		}
		h.log.Debug("upload: bad multipart body: %v", err)
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer done()
	if u.MemberID == "" {
		http.Error(w, "memberId is required", http.StatusBadRequest)
		return
	}
	per, err := period.Parse(formValue(r, "period", "competencia"))
	if err != nil {
		h.fail(w, "upload", err)
		return
	}
	u.Period = per

	res, err := h.ledger.Upload(r.Context(), h.files, kind, u)
	if err != nil {
		h.fail(w, "upload", err)
		return
	}
	h.log.Info("upload: stored %s for %s %s", kind, u.MemberID, per)
	ref := res.Payment.ProofRef
	if kind == attachments.KindInvoice {
		ref = res.Payment.InvoiceRef
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"path":    ref,
		"result":  res,
	})
}

func (h *Handler) serveProof(w http.ResponseWriter, r *http.Request) {
	h.serveAttachment(w, r, attachments.KindProof)
}

func (h *Handler) serveInvoice(w http.ResponseWriter, r *http.Request) {
	h.serveAttachment(w, r, attachments.KindInvoice)
}

func (h *Handler) serveAttachment(w http.ResponseWriter, r *http.Request, kind attachments.Kind) {
	if h.files == nil {
		http.NotFound(w, r)
		return
	}
	name := chi.URLParam(r, "name")
	f, mod, err := h.files.Open(r.Context(), kind, name)
	if err != nil {
		h.fail(w, "open attachment", err)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, name, mod, f)
}
