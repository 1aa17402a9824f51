package main

import "time"

// watchdogStatus joins the registry, supervisor, comparator, and alert
// manager into the one StatusSource/PcmSnapshotSource the status surface,
// PCM export endpoint, and MCP server all read from.
type watchdogStatus struct {
	registry      *ChannelRegistry
	supervisor    *Supervisor
	comparator    *Comparator
	alerts        *AlertManager
	pcmWindows    map[StreamId]*PcmWindow
	silenceProbes map[StreamId]*SilenceProbe
}

func (w *watchdogStatus) Snapshot() StatusSnapshot {
	byID := make(map[StreamId]*SupervisedStream, len(w.supervisor.Streams()))
	for _, s := range w.supervisor.Streams() {
		byID[s.ID] = s
	}

	channels := make(map[string][]StreamStatus)
	for _, name := range w.registry.ChannelNames() {
		for _, id := range w.registry.StreamsOf(name) {
			stream, ok := byID[id]
			if !ok {
				continue
			}

			cmdHealth, _ := stream.Source.Health()
			audioHealth := stream.Buffer.Health()

			var uptime float64
			if up, ok := stream.Source.(interface{ Uptime() time.Duration }); ok {
				uptime = up.Uptime().Seconds()
			}

			volume := VolumeMetrics{MeanDBFS: -100, MaxDBFS: -100}
			if probe, ok := w.silenceProbes[id]; ok {
				volume = probe.Latest()
			}

			channels[name] = append(channels[name], StreamStatus{
				Stream:      id,
				CmdHealth:   cmdHealth.String(),
				AudioHealth: audioHealth.String(),
				UptimeSecs:  uptime,
				RestartCnt:  stream.Source.RestartCount(),
				MeanDBFS:    volume.MeanDBFS,
				MaxDBFS:     volume.MaxDBFS,
			})
		}
	}

	return StatusSnapshot{
		GeneratedAt: time.Now(),
		Channels:    channels,
		Comparisons: w.comparator.Results(),
		Alerts:      w.alerts.Snapshot(),
	}
}

func (w *watchdogStatus) PcmWindowFor(id StreamId) (*PcmWindow, bool) {
	win, ok := w.pcmWindows[id]
	return win, ok
}
