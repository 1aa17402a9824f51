package main

import (
	"log"
	"time"
)

const (
	supervisorInterval = 10 * time.Second
	supervisorRestartCap = 20
)

// SupervisedSource is whatever the supervisor can inspect and respawn — a
// real SourceProcess, or the synthetic silence generator which never dies.
type SupervisedSource interface {
	Health() (SourceHealth, bool)
	RestartCount() int
	Respawn()
	Start()
}

// SupervisedStream bundles the two health axes the supervisor inspects for
// one registered stream.
type SupervisedStream struct {
	ID     StreamId
	Source SupervisedSource
	Buffer *FingerprintBuffer
}

// Supervisor ticks every 10s across all registered streams, inspecting
// cmd_health (from SourceProcess) and audio_health (from FingerprintBuffer),
// and triggers respawn with bounded backoff when dead.
type Supervisor struct {
	streams []*SupervisedStream
	done    chan struct{}

	onRespawn func(StreamId)
}

func NewSupervisor() *Supervisor {
	return &Supervisor{done: make(chan struct{})}
}

// OnRespawn registers a callback invoked whenever tick() triggers a
// respawn, so callers (the Prometheus collector) can count it without the
// supervisor importing metrics itself.
func (s *Supervisor) OnRespawn(fn func(StreamId)) {
	s.onRespawn = fn
}

func (s *Supervisor) Register(stream *SupervisedStream) {
	s.streams = append(s.streams, stream)
}

// Streams returns every registered stream, for status reporting.
func (s *Supervisor) Streams() []*SupervisedStream {
	out := make([]*SupervisedStream, len(s.streams))
	copy(out, s.streams)
	return out
}

func (s *Supervisor) Start() {
	for _, stream := range s.streams {
		stream.Source.Start()
	}
	go s.run()
}

func (s *Supervisor) Stop() {
	close(s.done)
}

func (s *Supervisor) run() {
	ticker := time.NewTicker(supervisorInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.done:
			return
		}
	}
}

func (s *Supervisor) tick() {
	for _, stream := range s.streams {
		cmdHealth, _ := stream.Source.Health()
		audioHealth := stream.Buffer.Health()

		switch {
		case cmdHealth == SourceDead || audioHealth == AudioDead:
			if stream.Source.RestartCount() >= supervisorRestartCap {
				log.Printf("supervisor: %s exceeded restart budget (%d), leaving dead", stream.ID, supervisorRestartCap)
				continue
			}
			if s.onRespawn != nil {
				s.onRespawn(stream.ID)
			}
			go stream.Source.Respawn()
		case cmdHealth == SourceStalled:
			log.Printf("supervisor: %s is stalled", stream.ID)
		case audioHealth == AudioDegraded || audioHealth == AudioNoData:
			log.Printf("supervisor: %s audio_health=%s", stream.ID, audioHealth)
		}
	}
}
