package args

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgs_Index(t *testing.T) {
	parsed, err := ParseArgsFrom([]string{
		"--db", "sqlite:/tmp/kukan.db",
		"index", "bookings", "docs.jsonl",
		"--commit-interval", "5s", "--build-dir", "/tmp/build", "--batch-size", "10",
	})
	require.NoError(t, err)

	assert.Equal(t, "sqlite:/tmp/kukan.db", parsed.DB)
	assert.Equal(t, "index", parsed.SubCmd.Name)
	assert.True(t, parsed.SubCmd.NeedsDB())
	require.NotNil(t, parsed.SubCmd.IndexArgs)
	assert.Equal(t, IndexArgs{
		Name:           "bookings",
		Input:          "docs.jsonl",
		CommitInterval: 5 * time.Second,
		BuildDir:       "/tmp/build",
		BatchSize:      10,
	}, *parsed.SubCmd.IndexArgs)
}

func TestParseArgs_IndexDefaults(t *testing.T) {
	parsed, err := ParseArgsFrom([]string{"index", "bookings"})
	require.NoError(t, err)

	indexArgs := parsed.SubCmd.IndexArgs
	require.NotNil(t, indexArgs)
	assert.Empty(t, indexArgs.Input)
	assert.False(t, indexArgs.Stream)
	assert.Equal(t, 30*time.Second, indexArgs.CommitInterval)
	assert.Equal(t, DefaultBatchSize, indexArgs.BatchSize)
	assert.NotEmpty(t, indexArgs.BuildDir)
}

func TestParseArgs_Search(t *testing.T) {
	parsed, err := ParseArgsFrom([]string{
		"search", "bookings", "intersects", "100-200", "--field", "stay", "-l", "5",
	})
	require.NoError(t, err)

	searchArgs := parsed.SubCmd.SearchArgs
	require.NotNil(t, searchArgs)
	assert.Equal(t, "bookings", searchArgs.Name)
	assert.Equal(t, "intersects", searchArgs.Mode)
	assert.Equal(t, "100-200", searchArgs.Query)
	assert.Equal(t, "stay", searchArgs.Field)
	assert.Equal(t, 5, searchArgs.Limit)
	assert.NotEmpty(t, searchArgs.CacheDir)
}

func TestParseArgs_Segments(t *testing.T) {
	parsed, err := ParseArgsFrom([]string{"segments", "0-4095", "-p", "8"})
	require.NoError(t, err)

	assert.False(t, parsed.SubCmd.NeedsDB())
	require.NotNil(t, parsed.SubCmd.SegmentsArgs)
	assert.Equal(t, SegmentsArgs{Literal: "0-4095", PrecisionStep: 8}, *parsed.SubCmd.SegmentsArgs)
}

func TestParseArgs_Errors(t *testing.T) {
	for _, argv := range [][]string{
		{"create"},
		{"drop", "a", "b"},
		{"index", "bookings", "--commit-interval", "soon"},
		{"index", "bookings", "--commit-interval", "-1s"},
		{"index", "bookings", "--batch-size", "0"},
		{"search", "bookings", "contains"},
		{"segments", "0-1", "--precision-step", "17"},
		{"unknown"},
	} {
		_, err := ParseArgsFrom(argv)
		assert.Error(t, err, "%v", argv)
	}
}

func TestParseArgs_NoSubcommand(t *testing.T) {
	parsed, err := ParseArgsFrom([]string{})
	require.NoError(t, err)
	assert.Empty(t, parsed.SubCmd.Name)
	assert.False(t, parsed.SubCmd.NeedsDB())
}
