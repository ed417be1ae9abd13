package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Run("canonical", func(t *testing.T) {
		p, err := Parse("2026-03")
		require.NoError(t, err)
		assert.Equal(t, New(2026, time.March), p)
	})

	t.Run("display form and short month", func(t *testing.T) {
		p, err := Parse("3/2026")
		require.NoError(t, err)
		assert.Equal(t, "2026-03", p.String())

		p, err = Parse(" 11/2025 ")
		require.NoError(t, err)
		assert.Equal(t, "2025-11", p.String())

		p, err = Parse("2026-1")
		require.NoError(t, err)
		assert.Equal(t, "2026-01", p.String())
	})

	t.Run("rejects malformed", func(t *testing.T) {
		for _, in := range []string{"", "2026", "2026-13", "00/2026", "26-01", "2026-01-15", "abc-de", "01/26"} {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrInvalid, in)
		}
	})
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "02/2026", MustParse("2026-02").Display())
}

func TestWindow(t *testing.T) {
	epoch := MustParse("2026-01")

	t.Run("inclusive of both endpoints", func(t *testing.T) {
		got := Window(epoch, time.Date(2026, time.March, 15, 10, 0, 0, 0, time.UTC))
		require.Len(t, got, 3)
		assert.Equal(t, "2026-01", got[0].String())
		assert.Equal(t, "2026-02", got[1].String())
		assert.Equal(t, "2026-03", got[2].String())
	})

	t.Run("crosses year boundary", func(t *testing.T) {
		got := Window(MustParse("2025-11"), time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
		var s []string
		for _, p := range got {
			s = append(s, p.String())
		}
		assert.Equal(t, []string{"2025-11", "2025-12", "2026-01", "2026-02"}, s)
	})

	t.Run("same month as epoch", func(t *testing.T) {
		got := Window(epoch, time.Date(2026, time.January, 31, 23, 59, 0, 0, time.UTC))
		require.Len(t, got, 1)
		assert.Equal(t, epoch, got[0])
	})

	t.Run("before epoch is empty", func(t *testing.T) {
		got := Window(epoch, time.Date(2025, time.December, 31, 0, 0, 0, 0, time.UTC))
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})

	t.Run("month is taken in the location of asOf", func(t *testing.T) {
		sp := time.FixedZone("BRT", -3*60*60)
		// 2026-03-01 01:00 UTC is still February in Brasília.
		asOf := time.Date(2026, time.March, 1, 1, 0, 0, 0, time.UTC).In(sp)
		got := Window(epoch, asOf)
		assert.Equal(t, "2026-02", got[len(got)-1].String())
	})
}
