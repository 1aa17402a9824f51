package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRespawnBackoffLinearAndCapped(t *testing.T) {
	assert.Equal(t, 0*time.Second, respawnBackoff(0))
	assert.Equal(t, 30*time.Second, respawnBackoff(1))
	assert.Equal(t, 150*time.Second, respawnBackoff(5))
	assert.Equal(t, defaultRestartCap, respawnBackoff(20))
	assert.Equal(t, defaultRestartCap, respawnBackoff(100))
}

func TestParseVersionToken(t *testing.T) {
	assert.Equal(t, "6.0", parseVersionToken("ffmpeg version 6.0-static Copyright (c) 2000-2023"))
	assert.Equal(t, "", parseVersionToken("no digits here"))
}

func TestSourceProcessInitialHealthIsDead(t *testing.T) {
	spec := &SourceSpec{ID: StreamId("ch-a"), Variant: SourceVariantWeb}
	sp := NewSourceProcess(spec, NewBus(), nil)

	health, hasChild := sp.Health()
	assert.Equal(t, SourceDead, health)
	assert.False(t, hasChild)
	assert.Zero(t, sp.RestartCount())
	assert.Zero(t, sp.Uptime())
}

func TestSourceProcessSpawnFailureWithNoCommandMarksDead(t *testing.T) {
	spec := &SourceSpec{ID: StreamId("ch-a"), Variant: SourceVariantWeb}
	sp := NewSourceProcess(spec, NewBus(), nil)

	sp.spawnAndRun()

	health, _ := sp.Health()
	assert.Equal(t, SourceDead, health)
}
