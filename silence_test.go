package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDBHandlesNegativeInfinityFloor(t *testing.T) {
	assert.Equal(t, -100.0, parseDB("-inf"))
}

func TestParseDBParsesNormalValue(t *testing.T) {
	assert.Equal(t, -23.4, parseDB("-23.4"))
}

func TestParseDBFallsBackOnGarbage(t *testing.T) {
	assert.Equal(t, -100.0, parseDB("not-a-number"))
}

func TestPcmWindowTrimsToCapacityFIFO(t *testing.T) {
	w := NewPcmWindow(0.001) // capacity = 44100*2*2*0.001 ~= 176 bytes
	capacity := w.capacity

	chunk := make([]byte, capacity+50)
	for i := range chunk {
		chunk[i] = byte(i)
	}
	w.Append(chunk)

	snap := w.Snapshot()
	assert.Len(t, snap, capacity)
	assert.Equal(t, chunk[len(chunk)-capacity:], snap)
}

func TestAnalyzeVolumeEmptyPCMReturnsDefault(t *testing.T) {
	got := analyzeVolume(nil)
	assert.Equal(t, defaultVolumeMetrics, got)
}
