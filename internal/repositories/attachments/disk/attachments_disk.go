package disk

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/azzil/mensalidades/be/pkg/common/logger"
	arepo "github.com/azzil/mensalidades/be/pkg/repositories/attachments"
)

// DefaultMaxBytes is the upload limit when none is configured.
const DefaultMaxBytes = 10 << 20

var proofExts = map[string]bool{
	".pdf": true, ".jpg": true, ".jpeg": true, ".png": true, ".webp": true, ".heic": true,
}

// Store writes attachments under {root}/comprovantes and {root}/boletos.
type Store struct {
	root     string
	maxBytes int64
}

func NewStore(root string, maxBytes int64) (*Store, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	for _, k := range []arepo.Kind{arepo.KindProof, arepo.KindInvoice} {
		if err := os.MkdirAll(filepath.Join(root, string(k)), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{root: root, maxBytes: maxBytes}, nil
}

// Ensure interface compliance
var _ arepo.Store = (*Store)(nil)

func (s *Store) Put(ctx context.Context, kind arepo.Kind, u arepo.Upload) (string, error) {
	if u.MemberID == "" || u.Period.IsZero() {
		return "", fmt.Errorf("%w: member and period are required", arepo.ErrInvalidName)
	}
	br := bufio.NewReader(u.Body)
	head, _ := br.Peek(512)

	var ext string
	switch kind {
	case arepo.KindInvoice:
		if !looksLikePDF(u.Filename, u.ContentType, head) {
			return "", arepo.ErrNotPDF
		}
		ext = ".pdf"
	case arepo.KindProof:
		ext = proofExtension(u.Filename, u.ContentType, head)
	default:
		return "", fmt.Errorf("unknown attachment kind %q", kind)
	}

	stem := safeSegment(string(u.MemberID)) + "_" + u.Period.String()
	name := stem + ext
	dir := filepath.Join(s.root, string(kind))
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return "", err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, io.LimitReader(br, s.maxBytes+1))
	if err != nil {
		_ = tmp.Close()
		return "", err
	}
	if n > s.maxBytes {
		_ = tmp.Close()
		return "", fmt.Errorf("%w: limit is %d bytes", arepo.ErrTooLarge, s.maxBytes)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(dir, name)); err != nil {
		return "", err
	}
	s.removeSiblings(dir, stem, name)
	return "/" + string(kind) + "/" + name, nil
}

// removeSiblings deletes earlier uploads for the same (member, period) stored
// under another extension.
func (s *Store) removeSiblings(dir, stem, keep string) {
	matches, err := filepath.Glob(filepath.Join(dir, stem+".*"))
	if err != nil {
		return
	}
	for _, m := range matches {
		if filepath.Base(m) == keep {
			continue
		}
		if err := os.Remove(m); err != nil && !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("attachments: could not remove replaced upload %s: %v", m, err)
		}
	}
}

func (s *Store) Open(ctx context.Context, kind arepo.Kind, name string) (io.ReadSeekCloser, time.Time, error) {
	if kind != arepo.KindProof && kind != arepo.KindInvoice {
		return nil, time.Time{}, arepo.ErrNotFound
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, time.Time{}, arepo.ErrInvalidName
	}
	f, err := os.Open(filepath.Join(s.root, string(kind), name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, time.Time{}, arepo.ErrNotFound
		}
		return nil, time.Time{}, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, time.Time{}, err
	}
	return f, st.ModTime(), nil
}

func looksLikePDF(filename, contentType string, head []byte) bool {
	if bytes.HasPrefix(head, []byte("%PDF")) {
		return true
	}
	if len(head) > 0 {
		return false
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf") || strings.HasPrefix(contentType, "application/pdf")
}

func proofExtension(filename, contentType string, head []byte) string {
	if ext := strings.ToLower(filepath.Ext(filename)); proofExts[ext] {
		return ext
	}
	switch {
	case bytes.HasPrefix(head, []byte("%PDF")), strings.HasPrefix(contentType, "application/pdf"):
		return ".pdf"
	case strings.HasPrefix(contentType, "image/png"):
		return ".png"
	case strings.HasPrefix(contentType, "image/webp"):
		return ".webp"
	}
	return ".jpg"
}

// safeSegment keeps ids usable as file names.
func safeSegment(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
