package dues

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azzil/mensalidades/be/internal/repositories/attachments/disk"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/attachments"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

func TestAttach(t *testing.T) {
	ctx := context.Background()
	jan := period.MustParse("2026-01")

	t.Run("proof keeps every other field", func(t *testing.T) {
		l, saver := newTestLedger(t, march15, members.Member{ID: "1", Active: true})
		p := rec("1", "2026-01", payments.StatusPaid, 30)
		p.PaymentDate, p.Notes = "2026-01-09", "pix"
		seed(t, l, p)

		res, err := l.AttachProof(ctx, "1", jan, "/comprovantes/1_2026-01.jpg")
		require.NoError(t, err)
		want := p
		want.ProofRef = "/comprovantes/1_2026-01.jpg"
		assert.Equal(t, want, res.Payment)
		_, immediate := saver.counts()
		assert.Equal(t, 1, immediate)
	})

	t.Run("invoice on a missing record infers the amount", func(t *testing.T) {
		l, _ := newTestLedger(t, march15, members.Member{ID: "1", Active: true}, members.Member{ID: "2", Active: true})
		seed(t, l, rec("2", "2026-01", payments.StatusOpen, 35))

		res, err := l.AttachInvoice(ctx, "1", jan, "/boletos/1_2026-01.pdf")
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, payments.StatusOpen, res.Payment.Status)
		assert.True(t, res.Payment.AmountDue.Equal(decimal.NewFromInt(35)))
		assert.Equal(t, "/boletos/1_2026-01.pdf", res.Payment.InvoiceRef)
	})

	t.Run("unknown member", func(t *testing.T) {
		l, _ := newTestLedger(t, march15)
		_, err := l.AttachProof(ctx, "x", jan, "/comprovantes/x.jpg")
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}

func TestUpload(t *testing.T) {
	ctx := context.Background()
	store, err := disk.NewStore(t.TempDir(), 1024)
	require.NoError(t, err)
	l, _ := newTestLedger(t, march15, members.Member{ID: "1", Active: true})

	res, err := l.Upload(ctx, store, attachments.KindInvoice, attachments.Upload{
		MemberID: "1", Period: period.MustParse("2026-02"), Filename: "boleto.pdf", Body: strings.NewReader("%PDF-1.4 test"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/boletos/1_2026-02.pdf", res.Payment.InvoiceRef)

	res, err = l.Upload(ctx, store, attachments.KindProof, attachments.Upload{
		MemberID: "1", Period: period.MustParse("2026-02"), Filename: "recibo.PNG", Body: strings.NewReader("png"),
	})
	require.NoError(t, err)
	assert.Equal(t, "/comprovantes/1_2026-02.png", res.Payment.ProofRef)
	assert.Equal(t, "/boletos/1_2026-02.pdf", res.Payment.InvoiceRef)

	t.Run("non pdf invoice is rejected before recording", func(t *testing.T) {
		_, err := l.Upload(ctx, store, attachments.KindInvoice, attachments.Upload{
			MemberID: "1", Period: period.MustParse("2026-03"), Filename: "x.pdf", Body: strings.NewReader("hello"),
		})
		assert.ErrorIs(t, err, attachments.ErrNotPDF)
		_, ok := l.Payment("1", period.MustParse("2026-03"))
		assert.False(t, ok)
	})

	t.Run("unknown member writes nothing", func(t *testing.T) {
		_, err := l.Upload(ctx, store, attachments.KindProof, attachments.Upload{
			MemberID: "nobody", Period: period.MustParse("2026-03"), Filename: "a.jpg", Body: strings.NewReader("x"),
		})
		assert.ErrorIs(t, err, ErrMemberNotFound)
	})
}
