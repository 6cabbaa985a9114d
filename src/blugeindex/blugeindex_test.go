package blugeindex

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"testing"

	"github.com/blugelabs/bluge"
	segment "github.com/blugelabs/bluge_segment_api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kukan/src/interval"
)

const timeField = "time"

func openReader(t *testing.T, docs map[string]interval.Interval, step uint8) *bluge.Reader {
	t.Helper()

	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })

	batch := bluge.NewBatch()
	for id, iv := range docs {
		field, err := NewIntervalField(timeField, iv, step)
		require.NoError(t, err)
		doc := bluge.NewDocument(id).
			AddField(field.StoreValue()).
			AddField(bluge.NewKeywordField("name", "doc-"+id).StoreValue())
		batch.Update(doc.ID(), doc)
	}
	require.NoError(t, writer.Batch(batch))

	reader, err := writer.Reader()
	require.NoError(t, err)
	t.Cleanup(func() { _ = reader.Close() })
	return reader
}

func matchingIDs(t *testing.T, reader *bluge.Reader, query bluge.Query) []string {
	t.Helper()

	docs, err := Collect(context.Background(), reader, query, -1)
	require.NoError(t, err)

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	sort.Strings(ids)
	return ids
}

func containsIDs(t *testing.T, reader *bluge.Reader, point int64) []string {
	t.Helper()
	query, err := NewContainsQuery(timeField, point, interval.DefaultPrecisionStep)
	require.NoError(t, err)
	return matchingIDs(t, reader, query)
}

func intersectsIDs(t *testing.T, reader *bluge.Reader, start, end int64) []string {
	t.Helper()
	query, err := NewIntersectsQuery(reader, timeField, start, end, interval.DefaultPrecisionStep)
	require.NoError(t, err)
	return matchingIDs(t, reader, query)
}

func TestContainsQuery(t *testing.T) {
	reader := openReader(t, map[string]interval.Interval{
		"1": interval.New(1257642000, 1257645600),
		"2": interval.New(1257642240, 1257645568),
	}, interval.DefaultPrecisionStep)

	assert.Empty(t, containsIDs(t, reader, 1257641999))
	assert.Equal(t, []string{"1"}, containsIDs(t, reader, 1257642000))
	assert.Equal(t, []string{"1"}, containsIDs(t, reader, 1257642239))
	assert.Equal(t, []string{"1", "2"}, containsIDs(t, reader, 1257642240))
	assert.Equal(t, []string{"1", "2"}, containsIDs(t, reader, 1257645568))
	assert.Equal(t, []string{"1"}, containsIDs(t, reader, 1257645600))
	assert.Empty(t, containsIDs(t, reader, 1257645601))
}

func TestContainsQuery_Negative(t *testing.T) {
	reader := openReader(t, map[string]interval.Interval{
		"a": interval.New(-100, -50),
		"b": interval.New(-80, 80),
		"c": interval.New(-8589934592, -1),
	}, interval.DefaultPrecisionStep)

	assert.Equal(t, []string{"c"}, containsIDs(t, reader, -101))
	assert.Equal(t, []string{"a", "c"}, containsIDs(t, reader, -100))
	assert.Equal(t, []string{"b"}, containsIDs(t, reader, 0))
}

func TestIntersectsQuery_ShiftSkipRegression(t *testing.T) {
	docs := map[string]interval.Interval{
		"10": interval.New(0, 16),
		"11": interval.New(16, 32),
		"12": interval.New(4064, 4080),
		"13": interval.New(4080, 4096),
		"20": interval.New(0, 256),
		"21": interval.New(256, 512),
		"22": interval.New(3584, 3840),
		"23": interval.New(3840, 4096),
	}
	for i := int64(0); i < 100; i++ {
		docs["noise-pos-"+strconv.FormatInt(i, 10)] = interval.New(10000+11*i, 10000+12*i)
		docs["noise-neg-"+strconv.FormatInt(i, 10)] = interval.New(-10000+11*i, -10000+12*i)
	}
	reader := openReader(t, docs, interval.DefaultPrecisionStep)

	assert.Equal(t, []string{"10", "11", "12", "13", "20", "21", "22", "23"}, intersectsIDs(t, reader, 0, 4096))
	assert.Equal(t, []string{"10", "11", "20", "21"}, intersectsIDs(t, reader, 0, 256))
	assert.Equal(t, []string{"10", "11", "20"}, intersectsIDs(t, reader, 0, 16))
	assert.Equal(t, []string{"12", "13", "22", "23"}, intersectsIDs(t, reader, 3840, 4096))
	assert.Equal(t, []string{"12", "13", "23"}, intersectsIDs(t, reader, 4080, 4096))
}

func TestIntersectsQuery_NoOverlap(t *testing.T) {
	reader := openReader(t, map[string]interval.Interval{"1": interval.New(1000, 2000)}, interval.DefaultPrecisionStep)

	assert.Empty(t, intersectsIDs(t, reader, 2001, 2002))
	assert.Empty(t, intersectsIDs(t, reader, 1, 999))
	assert.Equal(t, []string{"1"}, intersectsIDs(t, reader, 900, 1100))
	assert.Equal(t, []string{"1"}, intersectsIDs(t, reader, 2000, 2001))

	query, err := NewIntersectsQuery(reader, "missing", 0, 10, interval.DefaultPrecisionStep)
	require.NoError(t, err)
	assert.Empty(t, matchingIDs(t, reader, query))
}

func TestCollect_StoredFields(t *testing.T) {
	reader := openReader(t, map[string]interval.Interval{"7": interval.New(-5, 5)}, interval.DefaultPrecisionStep)

	query, err := NewContainsQuery(timeField, 0, interval.DefaultPrecisionStep)
	require.NoError(t, err)
	docs, err := Collect(context.Background(), reader, query, 10)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	assert.Equal(t, "7", docs[0].ID)
	assert.Equal(t, []string{"doc-7"}, docs[0].Fields["name"])
	require.Len(t, docs[0].Fields[timeField], 1)

	iv, err := ParseStoredInterval([]byte(docs[0].Fields[timeField][0]))
	require.NoError(t, err)
	assert.Equal(t, interval.New(-5, 5), iv)

	none, err := Collect(context.Background(), reader, query, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCollect_LimitKeepsSmallestIDs(t *testing.T) {
	writer, err := bluge.OpenWriter(bluge.InMemoryOnlyConfig())
	require.NoError(t, err)
	defer writer.Close()

	for _, id := range []string{"z", "y", "x", "c", "b", "a"} {
		field, err := NewIntervalField(timeField, interval.New(0, 10), interval.DefaultPrecisionStep)
		require.NoError(t, err)
		require.NoError(t, writer.Update(bluge.Identifier(id), bluge.NewDocument(id).AddField(field.StoreValue())))
	}

	reader, err := writer.Reader()
	require.NoError(t, err)
	defer reader.Close()

	query, err := NewContainsQuery(timeField, 5, interval.DefaultPrecisionStep)
	require.NoError(t, err)
	docs, err := Collect(context.Background(), reader, query, 3)
	require.NoError(t, err)

	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		ids = append(ids, doc.ID)
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
}

func TestNewIntervalField_Invalid(t *testing.T) {
	_, err := NewIntervalField(timeField, interval.New(5, 1), 4)
	assert.ErrorIs(t, err, interval.ErrInvalidInterval)

	_, err = NewIntervalField(timeField, interval.New(1, 5), 0)
	assert.ErrorIs(t, err, interval.ErrInvalidPrecisionStep)

	_, err = NewContainsQuery(timeField, 0, 17)
	assert.ErrorIs(t, err, interval.ErrInvalidPrecisionStep)
}

func TestSegmentAnalyzer(t *testing.T) {
	analyzer, err := NewSegmentAnalyzer(4)
	require.NoError(t, err)

	tokens := analyzer.Analyze([]byte("1257642000-1257645600"))
	terms, err := interval.DecomposeTerms(interval.New(1257642000, 1257645600), 4)
	require.NoError(t, err)
	require.Len(t, tokens, len(terms))
	for i, token := range tokens {
		assert.Equal(t, []byte(terms[i]), token.Term)
		assert.Equal(t, 1, token.PositionIncr)
	}

	assert.Empty(t, analyzer.Analyze([]byte("null-null")))
	assert.Empty(t, analyzer.Analyze([]byte("9-1")))
}

// fakeReader serves a fixed sorted term list for one field
type fakeReader struct {
	field  string
	terms  []string
	starts [][]byte
	err    error
}

func (f *fakeReader) DictionaryIterator(field string, _ segment.Automaton, start, _ []byte) (segment.DictionaryIterator, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.starts = append(f.starts, start)

	var terms []string
	if field == f.field {
		pos := sort.SearchStrings(f.terms, string(start))
		terms = f.terms[pos:]
	}
	return &fakeIterator{terms: terms}, nil
}

type fakeIterator struct {
	terms []string
}

type fakeEntry string

func (e fakeEntry) Term() string  { return string(e) }
func (e fakeEntry) Count() uint64 { return 1 }

func (it *fakeIterator) Next() (segment.DictionaryEntry, error) {
	if len(it.terms) == 0 {
		return nil, nil
	}
	term := it.terms[0]
	it.terms = it.terms[1:]
	return fakeEntry(term), nil
}

func (it *fakeIterator) Close() error { return nil }

func TestDictionary_Cursor(t *testing.T) {
	a := interval.MustEncode(interval.Segment{Start: 0, Shift: 0})
	b := interval.MustEncode(interval.Segment{Start: 5, Shift: 0})
	reader := &fakeReader{field: timeField, terms: []string{string(a), string(b)}}
	dict := NewDictionary(reader)

	c, err := dict.SeekTermsOrEqual(timeField, interval.MustEncode(interval.Segment{Start: 1, Shift: 0}))
	require.NoError(t, err)

	entry, ok := c.Current()
	require.True(t, ok)
	assert.Equal(t, interval.DictEntry{Field: timeField, Term: b}, entry)

	_, ok, err = c.Advance()
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	c, err = dict.SeekTermsOrEqual("other", a)
	require.NoError(t, err)
	_, ok = c.Current()
	assert.False(t, ok)

	reader.err = errors.New("boom")
	_, err = dict.SeekTermsOrEqual(timeField, a)
	assert.Error(t, err)
}

func TestDictionary_DrivesIntersection(t *testing.T) {
	terms, err := interval.DecomposeTerms(interval.New(100, 300), 4)
	require.NoError(t, err)

	var sorted []string
	for _, term := range terms {
		sorted = append(sorted, string(term))
	}
	sort.Strings(sorted)
	reader := &fakeReader{field: timeField, terms: sorted}

	query, err := interval.NewIntersectionQuery(timeField, 250, 260, 4)
	require.NoError(t, err)
	found, err := interval.IntersectingTerms(NewDictionary(reader), query)
	require.NoError(t, err)
	require.NotEmpty(t, found)

	for _, term := range found {
		seg, err := interval.Decode(term)
		require.NoError(t, err)
		assert.True(t, seg.Overlaps(250, 260), "%s", seg)
	}
	// One seek per level at most
	assert.LessOrEqual(t, len(reader.starts), 16)
}
