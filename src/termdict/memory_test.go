package termdict

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kukan/src/interval"
)

const timeField = "time"

var (
	example = interval.New(1257642000, 1257645600)
	edge    = interval.New(1257642240, 1257645568)
)

func newIndex(t *testing.T, docs map[uint32]interval.Interval) *MemoryIndex {
	t.Helper()

	idx := NewMemoryIndex()
	for doc, iv := range docs {
		require.NoError(t, idx.IndexInterval(timeField, doc, iv, interval.DefaultPrecisionStep))
	}
	return idx
}

func assertContains(t *testing.T, idx *MemoryIndex, point int64, want ...uint32) {
	t.Helper()

	got, err := idx.Contains(timeField, point, interval.DefaultPrecisionStep)
	require.NoError(t, err)
	if len(want) == 0 {
		assert.True(t, got.IsEmpty(), "point %d matched %v", point, got.ToArray())
		return
	}
	assert.Equal(t, want, got.ToArray(), "point %d", point)
}

func assertIntersects(t *testing.T, idx *MemoryIndex, start, end int64, want ...uint32) {
	t.Helper()

	got, err := idx.Intersects(timeField, start, end, interval.DefaultPrecisionStep)
	require.NoError(t, err)
	if len(want) == 0 {
		assert.True(t, got.IsEmpty(), "[%d,%d] matched %v", start, end, got.ToArray())
		return
	}
	assert.Equal(t, want, got.ToArray(), "[%d,%d]", start, end)
}

func TestContains_Basics(t *testing.T) {
	idx := newIndex(t, map[uint32]interval.Interval{1: example})

	assertContains(t, idx, 1257600000)
	assertContains(t, idx, 1257641999)
	assertContains(t, idx, 1257642000, 1)
	assertContains(t, idx, 1257644000, 1)
	assertContains(t, idx, 1257645600, 1)
	assertContains(t, idx, 1257645601)
}

func TestContains_Edge(t *testing.T) {
	idx := newIndex(t, map[uint32]interval.Interval{2: edge})

	assertContains(t, idx, 1257641999)
	assertContains(t, idx, 1257642239)
	assertContains(t, idx, 1257642240, 2)
	assertContains(t, idx, 1257644000, 2)
	assertContains(t, idx, 1257645568, 2)
	assertContains(t, idx, 1257645569)
}

func TestContains_Multiple(t *testing.T) {
	idx := newIndex(t, map[uint32]interval.Interval{1: example, 2: edge})

	assertContains(t, idx, 1257641999)
	assertContains(t, idx, 1257642000, 1)
	assertContains(t, idx, 1257642239, 1)
	assertContains(t, idx, 1257642240, 1, 2)
	assertContains(t, idx, 1257645568, 1, 2)
	assertContains(t, idx, 1257645600, 1)
	assertContains(t, idx, 1257645601)
}

func TestContains_NegativeAndCrossZero(t *testing.T) {
	idx := newIndex(t, map[uint32]interval.Interval{
		1: interval.New(-100, -50),
		2: interval.New(-80, 80),
		3: interval.New(-8589934592, -1),
	})

	assertContains(t, idx, -101, 3)
	assertContains(t, idx, -100, 1, 3)
	assertContains(t, idx, -80, 1, 2, 3)
	assertContains(t, idx, 0, 2)
	assertContains(t, idx, 81)
}

func TestIntersects_Basics(t *testing.T) {
	idx := newIndex(t, map[uint32]interval.Interval{1: interval.New(1000, 2000)})

	assertIntersects(t, idx, 900, 1100, 1)
	assertIntersects(t, idx, 1500, 1550, 1)
	assertIntersects(t, idx, 2000, 2001, 1)
	assertIntersects(t, idx, 0, 5000, 1)
	assertIntersects(t, idx, 2001, 2002)
	assertIntersects(t, idx, 1, 999)
}

func TestIntersects_ShiftSkipRegression(t *testing.T) {
	docs := map[uint32]interval.Interval{
		10: interval.New(0, 16),
		11: interval.New(16, 32),
		12: interval.New(4064, 4080),
		13: interval.New(4080, 4096),
		20: interval.New(0, 256),
		21: interval.New(256, 512),
		22: interval.New(3584, 3840),
		23: interval.New(3840, 4096),
	}
	for i := int64(0); i < 100; i++ {
		docs[uint32(1000+i)] = interval.New(10000+11*i, 10000+12*i)
		docs[uint32(2000+i)] = interval.New(-10000+11*i, -10000+12*i)
	}
	idx := newIndex(t, docs)

	assertIntersects(t, idx, 0, 4096, 10, 11, 12, 13, 20, 21, 22, 23)
	assertIntersects(t, idx, 0, 256, 10, 11, 20, 21)
	assertIntersects(t, idx, 0, 16, 10, 11, 20)
	assertIntersects(t, idx, 3840, 4096, 12, 13, 22, 23)
	assertIntersects(t, idx, 4080, 4096, 12, 13, 23)
}

func TestIntersects_IgnoresOtherFields(t *testing.T) {
	idx := NewMemoryIndex()
	require.NoError(t, idx.IndexInterval("a", 1, interval.New(10, 20), 4))
	require.NoError(t, idx.IndexInterval(timeField, 2, interval.New(10, 20), 4))
	require.NoError(t, idx.IndexInterval("zzz", 3, interval.New(10, 20), 4))

	assertIntersects(t, idx, 0, 100, 2)
	assertContains(t, idx, 15, 2)
}

func TestMemoryIndex_Postings(t *testing.T) {
	idx := NewMemoryIndex()
	term := interval.MustEncode(interval.Segment{Start: 16, Shift: 4})

	idx.PutPosting(timeField, term, 3)
	idx.PutPosting(timeField, term, 1)
	idx.PutPosting(timeField, term, 3)
	assert.Equal(t, 1, idx.Len())
	assert.Equal(t, []uint32{1, 3}, idx.LookupPostings(timeField, term).ToArray())

	// Lookups hand out copies
	idx.LookupPostings(timeField, term).Add(9)
	assert.Equal(t, []uint32{1, 3}, idx.LookupPostings(timeField, term).ToArray())

	assert.True(t, idx.LookupPostings("other", term).IsEmpty())
}

func TestMemoryIndex_Cursor(t *testing.T) {
	idx := NewMemoryIndex()
	low := interval.MustEncode(interval.Segment{Start: 0, Shift: 0})
	high := interval.MustEncode(interval.Segment{Start: 5, Shift: 0})
	idx.PutPosting(timeField, high, 1)
	idx.PutPosting(timeField, low, 1)
	idx.PutPosting("zzz", low, 2)

	c, err := idx.SeekTermsOrEqual(timeField, interval.MustEncode(interval.Segment{Start: 1, Shift: 0}))
	require.NoError(t, err)

	e, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, interval.DictEntry{Field: timeField, Term: high}, e)

	e, ok, err = c.Advance()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "zzz", e.Field)

	_, ok, err = c.Advance()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Close())
	_, ok = c.Current()
	assert.False(t, ok)
}

func TestIndexInterval_Invalid(t *testing.T) {
	idx := NewMemoryIndex()
	assert.ErrorIs(t, idx.IndexInterval(timeField, 1, interval.New(5, 1), 4), interval.ErrInvalidInterval)
	assert.ErrorIs(t, idx.IndexInterval(timeField, 1, interval.New(1, 5), 0), interval.ErrInvalidPrecisionStep)
	assert.Zero(t, idx.Len())

	_, err := idx.Intersects(timeField, 5, 1, 4)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)
	_, err = idx.Contains(timeField, 5, 0)
	assert.ErrorIs(t, err, interval.ErrInvalidPrecisionStep)
}
