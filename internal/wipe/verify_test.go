package wipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleSpansIncludeFirstAndLastBlock(t *testing.T) {
	p := keyedRandom(t, 5, 2)
	const bound = 100 << 20

	spans := sampleSpans(bound, 8, p)
	if assert.NotEmpty(t, spans) {
		assert.Equal(t, uint64(0), spans[0].off)
		last := spans[len(spans)-1]
		assert.Equal(t, uint64(bound), last.off+last.length)
	}

	var prevEnd uint64
	for i, s := range spans {
		assert.Zero(t, s.off%alignment, "span %d not sector aligned", i)
		if i > 0 {
			assert.Greater(t, s.off, prevEnd, "spans must be sorted and disjoint")
		}
		prevEnd = s.off + s.length
		assert.LessOrEqual(t, prevEnd, uint64(bound))
	}
	// 2 крайних + 8 равномерных + 8 псевдослучайных, с учётом слияния
	assert.LessOrEqual(t, len(spans), 18)
	assert.GreaterOrEqual(t, len(spans), 10)
}

func TestSampleSpansAreDeterministic(t *testing.T) {
	p := keyedRandom(t, 5, 2)
	assert.Equal(t, sampleSpans(64<<20, 16, p), sampleSpans(64<<20, 16, p))

	other := keyedRandom(t, 6, 2)
	assert.NotEqual(t, sampleSpans(64<<20, 16, p), sampleSpans(64<<20, 16, other))
}

func TestSampleSpansSmallBoundCoversEverything(t *testing.T) {
	spans := sampleSpans(64<<10, 4, Pattern{Kind: PatternZero})
	assert.Equal(t, []span{{0, 64 << 10}}, spans)
}
