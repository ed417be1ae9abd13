package dues

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	core "github.com/azzil/mensalidades/be/internal/dues"
	"github.com/azzil/mensalidades/be/internal/repositories/attachments/disk"
	evsqlite "github.com/azzil/mensalidades/be/internal/repositories/events/sqlite"
	mmem "github.com/azzil/mensalidades/be/internal/repositories/members/memory"
	pmem "github.com/azzil/mensalidades/be/internal/repositories/payments/memory"
	"github.com/azzil/mensalidades/be/internal/repositories/snapshot/file"
	"github.com/azzil/mensalidades/be/pkg/common/confirmlink"
	"github.com/azzil/mensalidades/be/pkg/common/keys"
	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/events"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	"github.com/azzil/mensalidades/be/pkg/repositories/payments"
	"github.com/azzil/mensalidades/be/pkg/repositories/snapshot"
)

var march15 = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

const seedFile = `{
  "members": [
    {"id": "1", "name": "Ana Souza", "taxId": "123.456.789-01", "phone": "11999990000", "active": true},
    {"id": "2", "name": "Bruno Lima", "active": true}
  ],
  "payments": [
    {"memberId": "1", "period": "2026-01", "status": "PAID", "amountDue": 30, "paymentDate": "2026-01-10"}
  ]
}`

type testEnv struct {
	router    http.Handler
	ledger    *core.Ledger
	dataFile  string
	uploadDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	evRepo, err := evsqlite.NewSQLiteRepo(filepath.Join(dir, "events.db"))
	require.NoError(t, err)
	t.Cleanup(evRepo.Disconnect)

	reg := prometheus.NewRegistry()
	metrics := core.NewMetrics(reg)
	clock := func() time.Time { return march15 }
	l := core.NewLedger(mmem.NewDirectory(), pmem.NewStore(), core.Options{
		Epoch:    period.MustParse("2026-01"),
		Location: time.UTC,
		Now:      clock,
		Metrics:  metrics,
		Events:   evRepo,
	})

	dataFile := filepath.Join(dir, "db.json")
	primary, err := file.NewSource(dataFile)
	require.NoError(t, err)
	p := core.NewPersister(primary, nil, core.PersisterOptions{Delay: time.Hour, Metrics: metrics})
	p.Bind(l.Snapshot)
	l.AttachSaver(p)
	t.Cleanup(func() { _ = p.Close(context.Background()) })

	uploadDir := filepath.Join(dir, "uploads")
	store, err := disk.NewStore(uploadDir, 1<<20)
	require.NoError(t, err)

	key, err := keys.FromSecret(bytes.Repeat([]byte("k"), 32), "test")
	require.NoError(t, err)
	issuer := confirmlink.NewIssuer(key, "mensalidades", "https://tesouraria.example", 0).WithClock(clock)

	h := NewHandler(l, Options{
		Status:         p,
		Attachments:    store,
		Links:          issuer,
		Metrics:        promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		MaxUploadBytes: 1 << 20,
	})
	env := &testEnv{router: h.Router(), ledger: l, dataFile: dataFile, uploadDir: uploadDir}

	rec := env.do(t, http.MethodPut, "/api/save-file.json", strings.NewReader(seedFile), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return e.do(t, method, path, r, "application/json")
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func multipartBody(t *testing.T, fields map[string]string, fileField, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile(fileField, filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.doJSON(t, http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody[struct {
		Status string          `json:"status"`
		Save   core.SaveStatus `json:"save"`
	}](t, rec)
	assert.Equal(t, "ok", body.Status)
	require.NotNil(t, body.Save.Outcome)
	assert.True(t, body.Save.Outcome.Accepted)
}

func TestFileEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("save reports counts and writes the file", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/save-file.json", strings.NewReader(seedFile), "application/json")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[struct {
			Success      bool `json:"success"`
			Members      int  `json:"members"`
			Payments     int  `json:"payments"`
			PaidPayments int  `json:"paidPayments"`
		}](t, rec)
		assert.True(t, body.Success)
		assert.Equal(t, 2, body.Members)
		assert.Equal(t, 1, body.Payments)
		assert.Equal(t, 1, body.PaidPayments)

		_, err := os.Stat(env.dataFile)
		assert.NoError(t, err)
	})

	t.Run("get returns the current store", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/file.json", "")
		require.Equal(t, http.StatusOK, rec.Code)
		s, _, err := snapshot.Decode(rec.Body)
		require.NoError(t, err)
		assert.Len(t, s.Members, 2)
		require.Len(t, s.Payments, 1)
		assert.Equal(t, payments.StatusPaid, s.Payments[0].Status)
	})

	t.Run("structural errors are rejected and nothing changes", func(t *testing.T) {
		rec := env.do(t, http.MethodPut, "/api/save-file.json", strings.NewReader(`{"members": {}}`), "application/json")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), `"success":false`)
		assert.Len(t, env.ledger.Members(), 2)
	})

	t.Run("legacy layout is accepted", func(t *testing.T) {
		legacy := `{"irmaos":[{"id":7,"nome":"Caio","cpf":"999","ativo":"sim"}],"pagamentos":[{"id_irmao":7,"competencia":"2026-02","status":"PAGO","valor":"30,00"}]}`
		rec := env.do(t, http.MethodPut, "/api/save-file.json", strings.NewReader(legacy), "application/json")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		m, err := env.ledger.Member("7")
		require.NoError(t, err)
		assert.Equal(t, "Caio", m.Name)
		p, ok := env.ledger.Payment("7", period.MustParse("2026-02"))
		require.True(t, ok)
		assert.Equal(t, payments.StatusPaid, p.Status)
	})
}

func TestMemberEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodPost, "/api/members", `{"name":"Carla Dias","taxId":"555.666.777-88","phone":"(21) 98888-7777"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeBody[core.MemberResult](t, rec)
	require.NotEmpty(t, created.Member.ID)
	assert.Equal(t, "21988887777", created.Member.Phone)
	assert.True(t, created.Member.Active)
	base := "/api/members/" + string(created.Member.ID)

	t.Run("list filters by query and owing", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/members?q=carla", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]core.MemberStatus](t, rec), 1)

		rec = env.doJSON(t, http.MethodGet, "/api/members?owing=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]core.MemberStatus](t, rec), 3)
	})

	t.Run("patch one field", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPatch, base, `{"field":"name","value":"Carla D. Dias"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Carla D. Dias", decodeBody[core.MemberResult](t, rec).Member.Name)

		rec = env.doJSON(t, http.MethodPatch, base, `{"field":"nome","value":"Carla"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Carla", decodeBody[core.MemberResult](t, rec).Member.Name)
	})

	t.Run("patch errors", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPatch, base, `{"field":"shoeSize","value":"42"}`).Code)
		assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPatch, base, `{"field":"active","value":"talvez"}`).Code)
		assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPatch, base, `not json`).Code)
		assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodPatch, "/api/members/nope", `{"field":"name","value":"x"}`).Code)
	})

	t.Run("duplicate id", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/members", `{"id":"1","name":"Outra Ana"}`)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("get and obligations", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/members/1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeBody[struct {
			Member      members.Member     `json:"member"`
			Payments    []payments.Payment `json:"payments"`
			Obligations core.Obligations   `json:"obligations"`
		}](t, rec)
		assert.Equal(t, "Ana Souza", body.Member.Name)
		assert.Len(t, body.Payments, 1)
		assert.Len(t, body.Obligations.Items, 2)

		rec = env.doJSON(t, http.MethodGet, "/api/members/2/obligations", "")
		require.Equal(t, http.StatusOK, rec.Code)
		ob := decodeBody[core.Obligations](t, rec)
		assert.Equal(t, core.StandingOwing, ob.Standing)
		assert.Len(t, ob.Items, 3)
	})

	t.Run("delete cascades", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodDelete, "/api/members/1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, decodeBody[core.MemberResult](t, rec).Removed)
		assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodGet, "/api/members/1", "").Code)
	})
}

func TestPaymentEndpoints(t *testing.T) {
	env := newTestEnv(t)
	base := "/api/members/2/payments"

	rec := env.doJSON(t, http.MethodPost, base, `{"period":"2026-02"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[core.EditResult](t, rec)
	assert.True(t, res.Created)
	assert.Equal(t, payments.StatusOpen, res.Payment.Status)

	assert.Equal(t, http.StatusConflict, env.doJSON(t, http.MethodPost, base, `{"period":"2026-02"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPost, base, `{"period":"fev"}`).Code)

	rec = env.doJSON(t, http.MethodPatch, base+"/2026-02", `{"field":"valor","value":"45,50"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[core.EditResult](t, rec).Payment.AmountDue.Equal(decimal.RequireFromString("45.5")))

	rec = env.doJSON(t, http.MethodPatch, base+"/2026-02", `{"field":"status","value":"PAID","date":"10/02/2026"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	paid := decodeBody[core.EditResult](t, rec).Payment
	assert.Equal(t, payments.StatusPaid, paid.Status)
	assert.Equal(t, "2026-02-10", paid.PaymentDate)
	assert.True(t, paid.AmountDue.Equal(decimal.RequireFromString("45.5")))

	rec = env.doJSON(t, http.MethodPost, base+"/2026-02/toggle", "")
	require.Equal(t, http.StatusOK, rec.Code)
	toggled := decodeBody[core.EditResult](t, rec).Payment
	assert.Equal(t, payments.StatusOpen, toggled.Status)
	assert.Empty(t, toggled.PaymentDate)

	t.Run("edit errors", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPatch, base+"/2026-13", `{"field":"notes","value":"x"}`).Code)
		assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPatch, base+"/2026-02", `{"field":"color","value":"x"}`).Code)
		assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodPatch, "/api/members/99/payments/2026-02", `{"field":"notes","value":"x"}`).Code)
	})

	rec = env.doJSON(t, http.MethodDelete, base+"/2026-02", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[core.EditResult](t, rec).Changed)

	rec = env.doJSON(t, http.MethodGet, base, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]payments.Payment](t, rec))
}

func TestUploadEndpoints(t *testing.T) {
	env := newTestEnv(t)
	png := append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{1}, 64)...)

	t.Run("proof is stored, attached and served", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"memberId": "1", "period": "2026-03"}, "comprovante", "recibo.png", png)
		rec := env.do(t, http.MethodPost, "/api/upload-comprovante", body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		out := decodeBody[struct {
			Success bool   `json:"success"`
			Path    string `json:"path"`
		}](t, rec)
		assert.True(t, out.Success)
		assert.Equal(t, "/comprovantes/1_2026-03.png", out.Path)

		p, ok := env.ledger.Payment("1", period.MustParse("2026-03"))
		require.True(t, ok)
		assert.Equal(t, out.Path, p.ProofRef)
		assert.Equal(t, payments.StatusOpen, p.Status)

		rec = env.doJSON(t, http.MethodGet, out.Path, "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, png, rec.Body.Bytes())
	})

	t.Run("invoice with legacy field names", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"id_irmao": "1", "competencia": "2026-02"}, "boleto", "boleto.pdf", []byte("%PDF-1.4 fake"))
		rec := env.do(t, http.MethodPost, "/api/upload-boleto", body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		p, ok := env.ledger.Payment("1", period.MustParse("2026-02"))
		require.True(t, ok)
		assert.Equal(t, "/boletos/1_2026-02.pdf", p.InvoiceRef)
	})

	t.Run("invoice must be a pdf", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"memberId": "1", "period": "2026-02"}, "boleto", "boleto.pdf", []byte("hello"))
		assert.Equal(t, http.StatusUnsupportedMediaType, env.do(t, http.MethodPost, "/api/upload-boleto", body, ct).Code)
	})

	t.Run("unknown member stores nothing", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"memberId": "99", "period": "2026-02"}, "comprovante", "r.png", png)
		assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/api/upload-comprovante", body, ct).Code)
		assert.Equal(t, http.StatusNotFound, env.doJSON(t, http.MethodGet, "/comprovantes/99_2026-02.png", "").Code)
	})

	t.Run("missing period", func(t *testing.T) {
		body, ct := multipartBody(t, map[string]string{"memberId": "1"}, "comprovante", "r.png", png)
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/upload-comprovante", body, ct).Code)
	})

	t.Run("path traversal", func(t *testing.T) {
		assert.NotEqual(t, http.StatusOK, env.doJSON(t, http.MethodGet, "/comprovantes/..%2Fdb.json", "").Code)
	})
}

func TestConfirmationFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/api/members/1/confirm-link", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	link := decodeBody[linkResponse](t, rec)
	require.NotEmpty(t, link.Token)
	assert.True(t, strings.HasPrefix(link.Confirm, "https://tesouraria.example/confirmacao.html?c="))
	assert.True(t, strings.HasSuffix(link.PaidInvoices, "#pagos"))

	assert.Equal(t, http.StatusConflict, env.doJSON(t, http.MethodGet, "/api/members/2/confirm-link", "").Code)

	t.Run("lookup", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/confirm/"+link.Token, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		body := decodeBody[struct {
			Name        string           `json:"name"`
			Obligations core.Obligations `json:"obligations"`
			Payments    []publicPayment  `json:"payments"`
		}](t, rec)
		assert.Equal(t, "Ana Souza", body.Name)
		assert.Len(t, body.Obligations.Items, 2)
		require.Len(t, body.Payments, 1)
		assert.Equal(t, "30.00", body.Payments[0].AmountDue)
	})

	t.Run("bad token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, env.doJSON(t, http.MethodGet, "/api/confirm/not-a-token", "").Code)
		assert.Equal(t, http.StatusUnauthorized, env.doJSON(t, http.MethodPost, "/api/confirm/not-a-token/payments/2026-02", "").Code)
	})

	t.Run("confirm without proof", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/confirm/"+link.Token+"/payments/2026-02", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		c := decodeBody[core.Confirmation](t, rec)
		assert.False(t, c.AlreadyClosed)
		assert.Equal(t, payments.StatusPaid, c.Payment.Status)
		assert.Equal(t, "2026-03-15", c.Payment.PaymentDate)
		assert.Equal(t, core.ConfirmationNote, c.Payment.Notes)
		assert.Len(t, c.Remaining.Items, 1)
	})

	t.Run("confirm with proof", func(t *testing.T) {
		body, ct := multipartBody(t, nil, "comprovante", "pix.jpg", []byte("\xff\xd8\xff fake jpeg"))
		rec := env.do(t, http.MethodPost, "/api/confirm/"+link.Token+"/payments/2026-03", body, ct)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		c := decodeBody[core.Confirmation](t, rec)
		assert.Equal(t, "/comprovantes/1_2026-03.jpg", c.Payment.ProofRef)
		assert.Empty(t, c.Remaining.Items)
	})

	t.Run("confirming a closed period changes nothing", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodPost, "/api/confirm/"+link.Token+"/payments/2026-01", "")
		require.Equal(t, http.StatusOK, rec.Code)
		c := decodeBody[core.Confirmation](t, rec)
		assert.True(t, c.AlreadyClosed)
		assert.Equal(t, "2026-01-10", c.Payment.PaymentDate)
	})

	t.Run("access events are logged", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/reports/events?kind=ACCESS&memberId=1", "")
		require.Equal(t, http.StatusOK, rec.Code)
		got := decodeBody[[]events.Event](t, rec)
		assert.Len(t, got, 4)

		assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodGet, "/api/reports/events?limit=x", "").Code)
	})
}

func TestConfirmRefusesInactiveMember(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, http.MethodGet, "/api/members/1/confirm-link", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	link := decodeBody[linkResponse](t, rec)

	rec = env.doJSON(t, http.MethodPatch, "/api/members/1", `{"field":"active","value":"false"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body, ct := multipartBody(t, nil, "comprovante", "pix.jpg", []byte("\xff\xd8\xff fake jpeg"))
	rec = env.do(t, http.MethodPost, "/api/confirm/"+link.Token+"/payments/2026-02", body, ct)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	_, err := os.Stat(filepath.Join(env.uploadDir, "comprovantes", "1_2026-02.jpg"))
	assert.True(t, os.IsNotExist(err), "proof stored for an inactive member")
	_, ok := env.ledger.Payment("1", period.MustParse("2026-02"))
	assert.False(t, ok)
}

func TestMergeConfirmations(t *testing.T) {
	env := newTestEnv(t)
	incoming := `{"members":[],"payments":[
		{"memberId":"2","period":"2026-02","status":"PAID","paymentDate":"2026-02-20","notes":"pix"},
		{"memberId":"2","period":"2026-03","status":"OPEN"},
		{"memberId":"42","period":"2026-02","status":"PAID"}
	]}`
	rec := env.doJSON(t, http.MethodPost, "/api/confirmations/merge", incoming)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rep := decodeBody[core.MergeReport](t, rec)
	assert.Equal(t, 1, rep.Applied)
	assert.Equal(t, 1, rep.Skipped)

	p, ok := env.ledger.Payment("2", period.MustParse("2026-02"))
	require.True(t, ok)
	assert.Equal(t, payments.StatusPaid, p.Status)
	assert.Equal(t, "2026-02-20", p.PaymentDate)

	assert.Equal(t, http.StatusBadRequest, env.doJSON(t, http.MethodPost, "/api/confirmations/merge", `[]`).Code)
}

func TestReportEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("charge message", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/members/1/charge-message", "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		r := decodeBody[core.Reminder](t, rec)
		assert.Contains(t, r.Message, "Prezado(a) Ana,")
		assert.Contains(t, r.Message, "https://tesouraria.example/confirmacao.html?c=")
		assert.True(t, strings.HasPrefix(r.WhatsAppURL, "https://wa.me/5511999990000?text="))

		rec = env.doJSON(t, http.MethodGet, "/api/members/2/charge-message", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, decodeBody[core.Reminder](t, rec).Message, "confirmacao.html")

		rec = env.doJSON(t, http.MethodGet, "/api/reports/events?kind=CHARGE", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decodeBody[[]events.Event](t, rec), 2)
	})

	t.Run("summary", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/reports/summary", "")
		require.Equal(t, http.StatusOK, rec.Code)
		s := decodeBody[core.Summary](t, rec)
		assert.Equal(t, 2, s.Members)
		assert.Equal(t, 2, s.MembersOwing)
		assert.True(t, s.Receipts.Equal(decimal.NewFromInt(30)))
	})

	t.Run("text report", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/api/reports/text", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/plain"))
		assert.Contains(t, rec.Body.String(), "Ana Souza")
	})

	t.Run("metrics", func(t *testing.T) {
		rec := env.doJSON(t, http.MethodGet, "/metrics", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "dues_members 2")
		assert.Contains(t, rec.Body.String(), `dues_snapshot_saves_total{outcome="ok"}`)
	})
}
