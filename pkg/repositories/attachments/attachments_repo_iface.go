package attachments

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
)

var (
	ErrTooLarge    = errors.New("attachment too large")
	ErrNotPDF      = errors.New("invoice must be a PDF")
	ErrNotFound    = errors.New("attachment not found")
	ErrInvalidName = errors.New("invalid attachment name")
)

// Kind selects the attachment family. Its value is also the public URL segment.
type Kind string

const (
	KindProof   Kind = "comprovantes"
	KindInvoice Kind = "boletos"
)

// Upload is one file tagged by (member, period).
type Upload struct {
	MemberID    members.MemberID
	Period      period.Period
	Filename    string
	ContentType string
	Body        io.Reader
}

// Store keeps attachment binaries. Put returns the public reference
// ("/comprovantes/<name>" or "/boletos/<name>"); a second Put for the same
// (kind, member, period) replaces the first, whatever its extension.
type Store interface {
	Put(ctx context.Context, kind Kind, u Upload) (ref string, err error)
	Open(ctx context.Context, kind Kind, name string) (io.ReadSeekCloser, time.Time, error)
}
