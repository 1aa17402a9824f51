package main

import (
	"time"
)

// SilenceGenerator is the synthetic Silence SourceVariant: a zero-signal
// PCM stream generated in-process rather than read from a subprocess. It
// doubles as the divergence/negative-control reference the comparator
// needs — every real channel should diverge from it, never match it.
type SilenceGenerator struct {
	*SourceProcess
	bus  *Bus
	done chan struct{}
}

// NewSilenceGenerator wires a SourceProcess-shaped wrapper around an
// in-process zero-fill publisher so it can be registered with the
// Supervisor like any other stream, even though it never spawns a child.
func NewSilenceGenerator(bus *Bus) *SilenceGenerator {
	spec := &SourceSpec{Variant: SourceVariantSilence}
	sp := NewSourceProcess(spec, bus, nil)
	return &SilenceGenerator{SourceProcess: sp, bus: bus, done: make(chan struct{})}
}

// Start begins publishing one second's worth of zero-fill PCM (44.1kHz,
// 16-bit, stereo) every second. It never fails and never needs respawn, so
// health is pinned to Running immediately.
func (sg *SilenceGenerator) Start() {
	sg.mu.Lock()
	sg.health = SourceRunning
	sg.startedAt = time.Now()
	sg.lastByteAt = time.Now()
	sg.mu.Unlock()

	go sg.publishLoop()
}

func (sg *SilenceGenerator) publishLoop() {
	chunk := make([]byte, pcmReadBufferBytes)
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sg.bus.Publish(chunk)
			sg.bytesReceived.Add(int64(len(chunk)))
			sg.mu.Lock()
			sg.lastByteAt = time.Now()
			sg.mu.Unlock()
		case <-sg.done:
			return
		}
	}
}

// Respawn is a no-op: the generator cannot die, so the supervisor's dead
// branch never needs to restart it.
func (sg *SilenceGenerator) Respawn() {}

func (sg *SilenceGenerator) Stop() {
	close(sg.done)
}
