package memory

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azzil/mensalidades/be/pkg/common/period"
	"github.com/azzil/mensalidades/be/pkg/repositories/members"
	prepo "github.com/azzil/mensalidades/be/pkg/repositories/payments"
)

func key(id, p string) prepo.Key {
	return prepo.Key{MemberID: members.MemberID(id), Period: period.MustParse(p)}
}

func TestUpsert(t *testing.T) {
	s := NewStore()

	t.Run("creates default record then mutates", func(t *testing.T) {
		p, created := s.Upsert(key("1", "2026-01"), func(p *prepo.Payment) {
			assert.Equal(t, prepo.StatusOpen, p.Status)
			assert.True(t, p.AmountDue.IsZero())
			p.Notes = "first"
		})
		assert.True(t, created)
		assert.Equal(t, "first", p.Notes)
		assert.Equal(t, 1, s.Len())
	})

	t.Run("existing record is edited in place", func(t *testing.T) {
		p, created := s.Upsert(key("1", "2026-01"), func(p *prepo.Payment) {
			p.AmountDue = decimal.NewFromInt(30)
		})
		assert.False(t, created)
		assert.Equal(t, "first", p.Notes)
		assert.True(t, p.AmountDue.Equal(decimal.NewFromInt(30)))
		assert.Equal(t, 1, s.Len())
	})

	t.Run("key changes inside the mutator are ignored", func(t *testing.T) {
		p, _ := s.Upsert(key("1", "2026-01"), func(p *prepo.Payment) {
			p.Period = period.MustParse("2030-12")
			p.MemberID = "9"
		})
		assert.Equal(t, key("1", "2026-01"), p.Key())
		_, ok := s.Find(key("9", "2030-12"))
		assert.False(t, ok)
	})
}

func TestInsertRenameDelete(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.Insert(prepo.Payment{MemberID: "1", Period: period.MustParse("2026-01"), Status: prepo.StatusPaid, AmountDue: decimal.NewFromInt(30)}))
	require.NoError(t, s.Insert(prepo.Payment{MemberID: "1", Period: period.MustParse("2026-02"), Status: prepo.StatusOpen}))
	require.NoError(t, s.Insert(prepo.Payment{MemberID: "2", Period: period.MustParse("2026-01"), Status: prepo.StatusOpen}))

	t.Run("insert rejects duplicate key", func(t *testing.T) {
		err := s.Insert(prepo.Payment{MemberID: "1", Period: period.MustParse("2026-01")})
		assert.ErrorIs(t, err, prepo.ErrDuplicate)
	})

	t.Run("rename moves record and keeps fields", func(t *testing.T) {
		p, err := s.Rename(key("1", "2026-01"), key("1", "2025-12"))
		require.NoError(t, err)
		assert.Equal(t, prepo.StatusPaid, p.Status)
		assert.True(t, p.AmountDue.Equal(decimal.NewFromInt(30)))
		_, ok := s.Find(key("1", "2026-01"))
		assert.False(t, ok)
		got, ok := s.Find(key("1", "2025-12"))
		require.True(t, ok)
		assert.Equal(t, p, got)
	})

	t.Run("rename onto taken key fails", func(t *testing.T) {
		_, err := s.Rename(key("1", "2025-12"), key("1", "2026-02"))
		assert.ErrorIs(t, err, prepo.ErrDuplicate)
		_, err = s.Rename(key("1", "2019-01"), key("1", "2019-02"))
		assert.ErrorIs(t, err, prepo.ErrNotFound)
	})

	t.Run("queries keep insertion order", func(t *testing.T) {
		ps := s.ForMember("1")
		require.Len(t, ps, 2)
		assert.Equal(t, "2025-12", ps[0].Period.String())
		assert.Equal(t, "2026-02", ps[1].Period.String())
		assert.Len(t, s.ForPeriod(period.MustParse("2026-01")), 1)
		assert.NotNil(t, s.ForMember("404"))
	})

	t.Run("delete and cascade", func(t *testing.T) {
		assert.True(t, s.Delete(key("2", "2026-01")))
		assert.False(t, s.Delete(key("2", "2026-01")))
		assert.Equal(t, 2, s.DeleteAllForMember("1"))
		assert.Equal(t, 0, s.Len())
	})
}

func TestReplace(t *testing.T) {
	s := NewStore()
	_, _ = s.Upsert(key("1", "2026-01"), nil)
	dup := []prepo.Payment{
		{MemberID: "1", Period: period.MustParse("2026-03")},
		{MemberID: "1", Period: period.MustParse("2026-03")},
	}
	assert.ErrorIs(t, s.Replace(dup), prepo.ErrDuplicate)
	assert.Equal(t, 1, s.Len())

	require.NoError(t, s.Replace(dup[:1]))
	_, ok := s.Find(key("1", "2026-03"))
	assert.True(t, ok)
	_, ok = s.Find(key("1", "2026-01"))
	assert.False(t, ok)
}

func TestSamePeriodInference(t *testing.T) {
	s := NewStore()
	_, _ = s.Upsert(key("X", "2026-02"), nil)
	_, _ = s.Upsert(key("Y", "2026-02"), func(p *prepo.Payment) { p.AmountDue = decimal.NewFromInt(50) })
	_, _ = s.Upsert(key("Z", "2026-02"), func(p *prepo.Payment) { p.AmountDue = decimal.NewFromInt(70) })

	amt, ok := prepo.SamePeriodInference{}.InferAmount(s, key("W", "2026-02"))
	require.True(t, ok)
	assert.True(t, amt.Equal(decimal.NewFromInt(50)))

	_, ok = prepo.SamePeriodInference{}.InferAmount(s, key("W", "2026-03"))
	assert.False(t, ok)

	_, ok = prepo.NoInference{}.InferAmount(s, key("W", "2026-02"))
	assert.False(t, ok)
}
