package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kukan/src/args"
	"kukan/src/config"
	"kukan/src/database"
)

const bookingsConfig = `
name: bookings
path: %PATH%
schema:
  id_field: id
  store_unknown: true
  fields:
    - name: stay
      type: interval
    - name: window
      type: interval
      bounds: datetime
      precision_step: 8
      array: true
    - name: guest
      type: text
      tokenizer: raw
`

type testEnv struct {
	ctx       context.Context
	db        database.DBAdapter
	indexPath string
	cacheDir  string
	buildDir  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.CreateDatabaseAdapter(ctx, "sqlite:"+filepath.Join(t.TempDir(), "kukan.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	env := &testEnv{
		ctx:       ctx,
		db:        db,
		indexPath: filepath.Join(t.TempDir(), "indexes"),
		cacheDir:  t.TempDir(),
		buildDir:  t.TempDir(),
	}

	var indexConfig config.IndexConfig
	require.NoError(t, indexConfig.FromString(strings.Replace(bookingsConfig, "%PATH%", env.indexPath, 1)))
	require.NoError(t, RunCreateFromConfig(ctx, &indexConfig, db))
	return env
}

func (env *testEnv) index(t *testing.T, lines ...string) {
	t.Helper()
	input := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(lines, "\n")+"\n"), 0644))
	env.indexFile(t, input)
}

func (env *testEnv) indexFile(t *testing.T, input string) {
	t.Helper()
	require.NoError(t, RunIndex(env.ctx, &args.IndexArgs{
		Name:           "bookings",
		Input:          input,
		CommitInterval: time.Minute,
		BuildDir:       env.buildDir,
		BatchSize:      2,
	}, env.db))
}

func (env *testEnv) search(t *testing.T, field, mode, query string) []map[string]interface{} {
	t.Helper()
	var docs []map[string]interface{}
	err := runSearchWithCallback(env.ctx, &args.SearchArgs{
		Name:     "bookings",
		Mode:     mode,
		Query:    query,
		Field:    field,
		Limit:    -1,
		CacheDir: env.cacheDir,
	}, env.db, func(line string) {
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &doc))
		docs = append(docs, doc)
	})
	require.NoError(t, err)
	return docs
}

func (env *testEnv) searchIDs(t *testing.T, field, mode, query string) []string {
	t.Helper()
	ids := []string{}
	for _, doc := range env.search(t, field, mode, query) {
		ids = append(ids, doc["_id"].(string))
	}
	sort.Strings(ids)
	return ids
}

func findDoc(t *testing.T, docs []map[string]interface{}, id string) map[string]interface{} {
	t.Helper()
	for _, doc := range docs {
		if doc["_id"] == id {
			return doc
		}
	}
	require.Failf(t, "document not found", "no document %s in %v", id, docs)
	return nil
}

func (env *testEnv) files(t *testing.T) []IndexFile {
	t.Helper()
	files, err := listIndexFiles(env.ctx, "bookings", env.db)
	require.NoError(t, err)
	return files
}

var firstBatch = []string{
	`{"id": "a", "stay": "100-200", "guest": "ann", "window": [["2020-01-01", "2020-01-31"]], "note": "vip"}`,
	`{"id": "b", "stay": [150, 300], "guest": "bob"}`,
	`{"id": "c", "stay": {"start": -50, "end": -10}}`,
	`{"id": "bad", "stay": "300-100"}`,
	`{"stay": "1-2"}`,
}

var secondBatch = []string{
	`{"id": "d", "stay": "0-4095"}`,
	`{"id": "e", "stay": [4096, 5000], "window": [{"start": 1577836800, "end": "2020-01-02"}]}`,
}

func TestIndexAndSearch(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, firstBatch...)
	env.index(t, secondBatch...)
	require.Len(t, env.files(t), 2)

	assert.Equal(t, []string{"a", "b", "d"}, env.searchIDs(t, "stay", SearchModeContains, "160"))
	assert.Equal(t, []string{"b", "d"}, env.searchIDs(t, "stay", SearchModeIntersects, "201-250"))
	assert.Equal(t, []string{"c"}, env.searchIDs(t, "stay", SearchModeContains, "-20"))
	assert.Equal(t, []string{"c"}, env.searchIDs(t, "stay", SearchModeIntersects, "-60..-50"))
	assert.Equal(t, []string{"d", "e"}, env.searchIDs(t, "stay", SearchModeIntersects, "4000-4096"))
	assert.Empty(t, env.searchIDs(t, "stay", SearchModeIntersects, "5001-9000"))

	assert.Equal(t, []string{"a", "e"}, env.searchIDs(t, "window", SearchModeContains, "2020-01-01"))
	assert.Equal(t, []string{"a"}, env.searchIDs(t, "window", SearchModeIntersects, "2020-01-15..2020-03-01"))

	doc := findDoc(t, env.search(t, "stay", SearchModeContains, "110"), "a")
	assert.Equal(t, map[string]interface{}{
		"_id":    "a",
		"id":     "a",
		"stay":   map[string]interface{}{"start": float64(100), "end": float64(200)},
		"guest":  "ann",
		"note":   "vip",
		"window": []interface{}{map[string]interface{}{"start": float64(1577836800), "end": float64(1580428800)}},
	}, doc)
}

func TestSearch_Limit(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, firstBatch...)
	env.index(t, secondBatch...)

	var lines []string
	err := runSearchWithCallback(env.ctx, &args.SearchArgs{
		Name: "bookings", Mode: SearchModeContains, Query: "160", Field: "stay", Limit: 2, CacheDir: env.cacheDir,
	}, env.db, func(line string) { lines = append(lines, line) })
	require.NoError(t, err)
	assert.Len(t, lines, 2)

	lines = nil
	err = runSearchWithCallback(env.ctx, &args.SearchArgs{
		Name: "bookings", Mode: SearchModeContains, Query: "160", Field: "stay", Limit: 0, CacheDir: env.cacheDir,
	}, env.db, func(line string) { lines = append(lines, line) })
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestSearch_LimitKeepsSmallestIDs(t *testing.T) {
	env := newTestEnv(t)
	env.index(t,
		`{"id": "n", "stay": "150-170"}`,
		`{"id": "m", "stay": "150-170"}`,
		`{"id": "l", "stay": "150-170"}`,
		`{"id": "k", "stay": "150-170"}`,
	)
	require.Len(t, env.files(t), 1)

	var ids []string
	err := runSearchWithCallback(env.ctx, &args.SearchArgs{
		Name: "bookings", Mode: SearchModeContains, Query: "160", Field: "stay", Limit: 2, CacheDir: env.cacheDir,
	}, env.db, func(line string) {
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &doc))
		ids = append(ids, doc["_id"].(string))
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"k", "l"}, ids)
}

func TestSearch_InvalidArguments(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, firstBatch...)

	for _, searchArgs := range []args.SearchArgs{
		{Mode: SearchModeContains, Query: "1"},
		{Mode: SearchModeContains, Query: "1", Field: "guest"},
		{Mode: SearchModeContains, Query: "1", Field: "missing"},
		{Mode: "within", Query: "1", Field: "stay"},
		{Mode: SearchModeContains, Query: "soon", Field: "stay"},
		{Mode: SearchModeIntersects, Query: "9-1", Field: "stay"},
		{Mode: SearchModeIntersects, Query: "9..1", Field: "stay"},
	} {
		searchArgs.Name = "bookings"
		searchArgs.Limit = -1
		searchArgs.CacheDir = env.cacheDir
		err := runSearchWithCallback(env.ctx, &searchArgs, env.db, func(string) {})
		assert.Error(t, err, "%+v", searchArgs)
	}

	err := runSearchWithCallback(env.ctx, &args.SearchArgs{
		Name: "missing", Mode: SearchModeContains, Query: "1", Limit: -1,
	}, env.db, func(string) {})
	assert.Error(t, err)
}

func TestIndex_ResumesFromCheckpoint(t *testing.T) {
	env := newTestEnv(t)
	input := filepath.Join(t.TempDir(), "docs.jsonl")
	require.NoError(t, os.WriteFile(input, []byte(strings.Join(firstBatch, "\n")+"\n"), 0644))

	env.indexFile(t, input)
	require.Len(t, env.files(t), 1)

	// Nothing new to read
	env.indexFile(t, input)
	require.Len(t, env.files(t), 1)

	f, err := os.OpenFile(input, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(secondBatch[0] + "\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	env.indexFile(t, input)
	require.Len(t, env.files(t), 2)
	assert.Equal(t, []string{"a", "b", "d"}, env.searchIDs(t, "stay", SearchModeContains, "160"))
}

func TestMerge(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, firstBatch...)
	env.index(t, secondBatch...)
	before := env.files(t)
	require.Len(t, before, 2)

	require.NoError(t, RunMerge(env.ctx, &args.MergeArgs{Name: "bookings", MergeDir: t.TempDir()}, env.db))

	after := env.files(t)
	require.Len(t, after, 1)
	for _, file := range before {
		assert.NotEqual(t, file.ID, after[0].ID)
		_, err := os.Stat(filepath.Join(env.indexPath, file.FileName))
		assert.True(t, os.IsNotExist(err), file.FileName)
	}

	assert.Equal(t, []string{"a", "b", "d"}, env.searchIDs(t, "stay", SearchModeContains, "160"))
	assert.Equal(t, []string{"a", "e"}, env.searchIDs(t, "window", SearchModeContains, "2020-01-01"))

	doc := findDoc(t, env.search(t, "stay", SearchModeContains, "110"), "a")
	assert.Equal(t, "vip", doc["note"])
	assert.Equal(t, "ann", doc["guest"])

	// A single file is left alone
	require.NoError(t, RunMerge(env.ctx, &args.MergeArgs{Name: "bookings", MergeDir: t.TempDir()}, env.db))
	assert.Equal(t, after, env.files(t))
}

func TestMerge_RequiresStoredFields(t *testing.T) {
	ctx := context.Background()
	db, err := database.CreateDatabaseAdapter(ctx, "sqlite:"+filepath.Join(t.TempDir(), "kukan.db"))
	require.NoError(t, err)
	defer db.Close()

	var indexConfig config.IndexConfig
	require.NoError(t, indexConfig.FromString(`
name: spans
path: `+t.TempDir()+`
schema:
  fields:
    - name: span
      type: interval
      stored: false
`))
	require.NoError(t, RunCreateFromConfig(ctx, &indexConfig, db))

	err = RunMerge(ctx, &args.MergeArgs{Name: "spans", MergeDir: t.TempDir()}, db)
	assert.ErrorContains(t, err, "stored")
}

func TestDrop(t *testing.T) {
	env := newTestEnv(t)
	env.index(t, firstBatch...)
	files := env.files(t)
	require.Len(t, files, 1)

	require.NoError(t, RunDrop(env.ctx, &args.DropArgs{Name: "bookings"}, env.db))

	_, err := getIndexConfig(env.ctx, "bookings", env.db)
	assert.Error(t, err)
	assert.Empty(t, env.files(t))
	_, err = os.Stat(filepath.Join(env.indexPath, files[0].FileName))
	assert.True(t, os.IsNotExist(err))

	assert.Error(t, RunDrop(env.ctx, &args.DropArgs{Name: "bookings"}, env.db))
}

func TestCreate_Duplicate(t *testing.T) {
	env := newTestEnv(t)

	indexConfig, err := getIndexConfig(env.ctx, "bookings", env.db)
	require.NoError(t, err)
	stay, ok := indexConfig.Field("stay")
	require.True(t, ok)
	assert.Equal(t, uint8(4), stay.PrecisionStep)

	assert.Error(t, RunCreateFromConfig(env.ctx, indexConfig, env.db))
}

func TestRunSegments(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, RunSegments(&args.SegmentsArgs{Literal: "0-4095", PrecisionStep: 4}, &out))
	assert.Equal(t, "[0,4095]@12\t2c0008000000000000\n", out.String())

	out.Reset()
	require.NoError(t, RunSegments(&args.SegmentsArgs{Literal: "1-2", PrecisionStep: 4}, &out))
	assert.Len(t, strings.Split(strings.TrimSpace(out.String()), "\n"), 2)

	assert.Error(t, RunSegments(&args.SegmentsArgs{Literal: "2-1", PrecisionStep: 4}, &out))
	assert.Error(t, RunSegments(&args.SegmentsArgs{Literal: "1-2", PrecisionStep: 0}, &out))
}
