package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRangesRoundTrip(t *testing.T) {
	cases := []string{"31000", "31000-31005", "31000,31005-31010", "1,2,3"}
	for _, c := range cases {
		ranges, err := ParseRanges(c)
		require.NoError(t, err)
		assert.Equal(t, c, FormatRanges(ranges))
	}
}

func TestParseRangesEmpty(t *testing.T) {
	ranges, err := ParseRanges("")
	require.NoError(t, err)
	assert.Empty(t, ranges)
}

func TestParseRangesInvalidToken(t *testing.T) {
	_, err := ParseRanges("31000,abc-31010")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "abc-31010")
}

func TestParseRangesEndBeforeStart(t *testing.T) {
	_, err := ParseRanges("31010-31000")
	assert.Error(t, err)
}

func TestRangeOverlap(t *testing.T) {
	a := Range{Start: 31010, End: 31020}
	b := Range{Start: 31000, End: 31018}
	overlap, ok := a.Overlap(b)
	require.True(t, ok)
	assert.Equal(t, Range{Start: 31010, End: 31018}, overlap)

	c := Range{Start: 1, End: 5}
	d := Range{Start: 6, End: 10}
	_, ok = c.Overlap(d)
	assert.False(t, ok)
}

func TestRangeStringSinglePoint(t *testing.T) {
	assert.Equal(t, "31000", Range{Start: 31000, End: 31000}.String())
	assert.Equal(t, "31000-31005", Range{Start: 31000, End: 31005}.String())
}
