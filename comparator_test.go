package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchFingerprintsIdenticalSequencesFullMatch(t *testing.T) {
	fp := []FingerprintItem{1, 2, 3, 4, 5, 6, 7, 8}
	similarity, offset := matchFingerprints(fp, fp, comparatorMaxOffsetItems)
	assert.InDelta(t, 100.0, similarity, 0.01)
	assert.Zero(t, offset)
}

func TestMatchFingerprintsFindsShiftedOffset(t *testing.T) {
	fp1 := []FingerprintItem{10, 20, 30, 40, 50, 60}
	// fp2 is fp1 delayed by 2 items (2 leading zero-ish filler items).
	fp2 := append([]FingerprintItem{999, 998}, fp1...)

	similarity, offset := matchFingerprints(fp1, fp2, comparatorMaxOffsetItems)
	assert.Greater(t, similarity, 0.0)
	assert.InDelta(t, 2*ItemDurationSeconds, offset, 1e-9)
}

func TestMatchFingerprintsEmptyInputYieldsZero(t *testing.T) {
	similarity, offset := matchFingerprints(nil, []FingerprintItem{1, 2, 3}, comparatorMaxOffsetItems)
	assert.Zero(t, similarity)
	assert.Zero(t, offset)
}

func TestMatchFingerprintsDissimilarSequencesLowSimilarity(t *testing.T) {
	fp1 := make([]FingerprintItem, 20)
	fp2 := make([]FingerprintItem, 20)
	for i := range fp1 {
		fp1[i] = FingerprintItem(0x00000000)
		fp2[i] = FingerprintItem(0xFFFFFFFF) // every bit differs: 0 similar bits
	}

	similarity, _ := matchFingerprints(fp1, fp2, comparatorMaxOffsetItems)
	assert.Zero(t, similarity)
}

func TestHammingSimilarThreshold(t *testing.T) {
	assert.True(t, hammingSimilar(0x00000000, 0x00000000))
	// 4 differing bits out of 32 leaves 28 similar, exactly at threshold.
	assert.True(t, hammingSimilar(0x0000000F, 0x00000000))
	// 5 differing bits leaves 27 similar, below threshold.
	assert.False(t, hammingSimilar(0x0000001F, 0x00000000))
}

func TestOrderStreamsLexicographicWithSwapFlag(t *testing.T) {
	a, b, swapped := orderStreams(StreamId("ch-b"), StreamId("ch-a"))
	assert.Equal(t, StreamId("ch-a"), a)
	assert.Equal(t, StreamId("ch-b"), b)
	assert.True(t, swapped)

	a, b, swapped = orderStreams(StreamId("ch-a"), StreamId("ch-b"))
	assert.Equal(t, StreamId("ch-a"), a)
	assert.Equal(t, StreamId("ch-b"), b)
	assert.False(t, swapped)
}
