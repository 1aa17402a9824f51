package main

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintBufferCapacityMatchesSpecFormula(t *testing.T) {
	b := NewFingerprintBuffer(10) // 10s / 0.1238s
	want := int(math.Ceil(10 / ItemDurationSeconds))
	assert.Equal(t, want, b.Capacity())
}

func TestFingerprintBufferReplaceTrimsKeepingMostRecentAtTail(t *testing.T) {
	b := NewFingerprintBuffer(1) // small capacity
	capacity := b.Capacity()

	items := make([]FingerprintItem, capacity+5)
	for i := range items {
		items[i] = FingerprintItem(i)
	}
	b.Replace(items)

	snap := b.Snapshot()
	require.Len(t, snap, capacity)
	assert.Equal(t, items[len(items)-1], snap[len(snap)-1])
	assert.Equal(t, items[len(items)-capacity], snap[0])
}

func TestFingerprintBufferHealthTransitions(t *testing.T) {
	b := NewFingerprintBuffer(10)
	assert.Equal(t, AudioNoData, b.Health())

	b.Replace([]FingerprintItem{1, 2, 3})
	assert.Equal(t, AudioRunning, b.Health())

	b.MarkDead()
	assert.Equal(t, AudioDead, b.Health())
}

func TestFingerprinterProducesOneItemPerFrame(t *testing.T) {
	fp := NewFingerprinter()
	mono := make([]int16, frameSamples*3)
	for i := range mono {
		mono[i] = int16((i % 100) - 50)
	}

	items := fp.Consume(mono)
	assert.Len(t, items, 3)
}

func TestFingerprinterFirstItemHasNoHistoryBits(t *testing.T) {
	fp := NewFingerprinter()
	mono := make([]int16, frameSamples)
	items := fp.Consume(mono)

	require.Len(t, items, 1)
	assert.Equal(t, FingerprintItem(0), items[0])
}
