package app

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitMessageEverythingFitsInOneChunk(t *testing.T) {
	chunks, err := SplitMessage("Missing:\n", []string{"@alpha", "@bravo"}, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Missing:\n@alpha, @bravo"}, chunks)
}

func TestSplitMessageEmptyItemsReturnsPrefixOnly(t *testing.T) {
	chunks, err := SplitMessage("Header ", nil, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"Header "}, chunks, "the prefix-only chunk is not trimmed")
}

func TestSplitMessagePrefixTooLong(t *testing.T) {
	_, err := SplitMessage(strings.Repeat("x", 11), []string{"a"}, 10)
	assert.ErrorIs(t, err, ErrPrefixTooLong)
}

func TestSplitMessageChunksAtLimit(t *testing.T) {
	items := []string{"aaaa", "bbbb", "cccc", "dddd"}
	chunks, err := SplitMessage("P:", items, 12)
	require.NoError(t, err)

	assert.Equal(t, []string{"P:aaaa, bbbb", "cccc, dddd"}, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 12)
	}
}

func TestSplitMessageOnlyFirstChunkCarriesPrefix(t *testing.T) {
	items := []string{"one", "two", "three", "four", "five"}
	chunks, err := SplitMessage("LIST:", items, 14)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	assert.True(t, strings.HasPrefix(chunks[0], "LIST:"))
	for _, c := range chunks[1:] {
		assert.False(t, strings.HasPrefix(c, "LIST:"))
	}
}

func TestSplitMessagePreservesOrder(t *testing.T) {
	items := []string{"a1", "b2", "c3", "d4", "e5", "f6"}
	chunks, err := SplitMessage("", items, 8)
	require.NoError(t, err)

	joined := strings.Join(chunks, ", ")
	last := -1
	for _, item := range items {
		idx := strings.Index(joined, item)
		require.GreaterOrEqual(t, idx, 0)
		assert.Greater(t, idx, last, "item %s out of order", item)
		last = idx
	}
}

func TestSplitMessageOversizedItemGetsOwnChunk(t *testing.T) {
	huge := strings.Repeat("x", 30)
	chunks, err := SplitMessage("P:", []string{"a", huge, "b"}, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{"P:a", huge, "b"}, chunks)
}

func TestSplitMessageNeverSplitsAnItem(t *testing.T) {
	items := []string{"@callsignone", "@callsigntwo", "@callsignthree"}
	chunks, err := SplitMessage("", items, 16)
	require.NoError(t, err)

	for _, item := range items {
		found := 0
		for _, c := range chunks {
			found += strings.Count(c, item)
		}
		assert.Equal(t, 1, found, "item %s must appear exactly once and intact", item)
	}
}
