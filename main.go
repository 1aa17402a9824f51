package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// StartTime records process start for uptime reporting.
var StartTime time.Time

func main() {
	StartTime = time.Now()

	configDir := flag.String("config-dir", ".", "Directory containing configuration files")
	configFile := flag.String("config", "config.yaml", "Path to configuration file")
	dryRun := flag.Bool("dry-run", false, "Log composed alert messages instead of sending them")
	flag.Parse()

	configPath := *configFile
	if *configDir != "." {
		configPath = *configDir + "/" + *configFile
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dryRun {
		config.Slack.DryRun = true
	}

	registry := NewChannelRegistry()
	buffers := make(map[StreamId]*FingerprintBuffer)
	pcmWindows := make(map[StreamId]*PcmWindow)
	silenceProbes := make(map[StreamId]*SilenceProbe)
	supervisor := NewSupervisor()
	metrics := NewPrometheusMetrics()

	transport := AlertTransport(NewSlackTransport(config.Slack.AuthToken, config.Slack.Channel, config.Slack.DryRun))
	alertManager := NewAlertManager(transport, config.gracePeriod(), config.reminderInterval())

	tuners := make(map[string]*Tuner)
	for name, sdr := range config.Sources.SDRs {
		t := &Tuner{ID: name, Host: sdr.Host, Port: sdr.Port, Bus: NewBus()}
		if sdr.Spawn != nil {
			t.Spawn = &TunerSpawnSpec{
				Command:   sdr.Spawn.Command,
				Frequency: sdr.Spawn.Frequency,
				Size:      sdr.Spawn.Size,
				Gain:      sdr.Spawn.Gain,
			}
		}
		if err := t.Start(); err != nil {
			log.Fatalf("TunerUnavailable: %s: %v", name, err)
		}
		tuners[name] = t
	}

	if config.Sources.Silence {
		wireSilenceReferenceChannel(registry, buffers, pcmWindows, silenceProbes, supervisor, alertManager, config)
	}

	for chName, ch := range config.Sources.Channels {
		for streamName, stream := range ch.Streams {
			id := NewStreamId(chName, streamName)
			spec, stdinSource, err := buildSourceSpec(id, stream, tuners)
			if err != nil {
				log.Fatalf("ConfigInvalid: %v", err)
			}
			if err := registry.Register(spec); err != nil {
				log.Fatalf("ConfigInvalid: %v", err)
			}

			bus := NewBus()
			source := NewSourceProcess(spec, bus, stdinSource)
			if config.Tuning.FFmpegMinVersion != "" && stream.Type == "Web" {
				if err := source.WithMinVersion("ffmpeg", config.Tuning.FFmpegMinVersion); err != nil {
					log.Printf("warning: %s: %v", id, err)
				}
			}

			fpStream := NewFingerprintStream(id, config.Tuning.BufferDuration, bus)
			fpStream.Start()
			buffers[id] = fpStream.Buffer

			silenceProbe := NewSilenceProbe(id, config.Tuning.BufferDuration, config.volumeDetectionInterval(), config.Tuning.MinimumMaxVolumeThreshold, bus, alertManager)
			silenceProbe.Start()
			pcmWindows[id] = silenceProbe.Window
			silenceProbes[id] = silenceProbe

			supervisor.Register(&SupervisedStream{ID: id, Source: source, Buffer: fpStream.Buffer})
		}
	}

	comparator := NewComparator(registry, buffers, alertManager,
		config.Tuning.MinBufferDuration, config.Tuning.MatchThreshold, config.Tuning.DivergenceThreshold,
		config.comparisonDuration())

	statusSource := &watchdogStatus{
		registry:      registry,
		supervisor:    supervisor,
		comparator:    comparator,
		alerts:        alertManager,
		pcmWindows:    pcmWindows,
		silenceProbes: silenceProbes,
	}

	statusServer := NewStatusServer(statusSource, 2*time.Second)
	supervisor.OnRespawn(metrics.RecordRespawn)
	alertManager.OnDelivered(func(category string, count int) {
		switch category {
		case "Warning":
			for i := 0; i < count; i++ {
				metrics.RecordAlertRaised()
			}
		case "Success":
			for i := 0; i < count; i++ {
				metrics.RecordAlertCleared()
			}
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	supervisor.Start()
	alertManager.Start()
	comparator.Start()

	mux := http.NewServeMux()
	mux.Handle("/", statusServer.Handler())
	mux.HandleFunc("/pcm", PcmSnapshotHandler(statusSource))
	if config.Prometheus.Enabled {
		mux.Handle(config.Prometheus.Path, prometheusHandler())
	}
	if config.MCP.Enabled {
		mcpServer := NewMCPServer(statusSource)
		mux.Handle("/mcp", mcpServer.Handler())
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Server.WebPort),
		Handler: mux,
	}

	group.Go(func() error {
		statusServer.StartPushLoop(gctx.Done())
		return nil
	})

	group.Go(func() error {
		log.Printf("status surface listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("status surface: %w", err)
		}
		return nil
	})

	if config.MQTT.Enabled {
		publisher, err := NewMQTTPublisher(&config.MQTT)
		if err != nil {
			log.Printf("warning: MQTT publisher disabled: %v", err)
		} else {
			group.Go(func() error {
				publisher.StartPublisher(gctx)
				return nil
			})
		}
	}

	group.Go(func() error {
		snapshotSystemMetricsLoop(gctx.Done())
		return nil
	})

	group.Go(func() error {
		observeMetricsLoop(gctx.Done(), metrics, statusSource)
		return nil
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Println("shutting down")
	cancel()
	supervisor.Stop()
	alertManager.Stop()
	comparator.Stop()
	for _, t := range tuners {
		t.Stop()
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)

	if err := group.Wait(); err != nil {
		log.Printf("shutdown error: %v", err)
		os.Exit(1)
	}
}

// buildSourceSpec translates one channels.<name>.streams.<name> YAML entry
// into a SourceSpec and, for the HD variant, the tuner bus its stdin should
// subscribe to.
func buildSourceSpec(id StreamId, stream StreamEntry, tuners map[string]*Tuner) (*SourceSpec, *Bus, error) {
	switch stream.Type {
	case "Web":
		cmd := stream.Command
		if len(cmd) == 0 {
			return nil, nil, fmt.Errorf("%s: Web stream requires a command template", id)
		}
		return &SourceSpec{ID: id, Variant: SourceVariantWeb, URL: stream.URL, Command: substitutePlaceholders(cmd, stream.URL)}, nil, nil
	case "NRSC":
		tuner, ok := tuners[stream.Host]
		if !ok {
			return nil, nil, fmt.Errorf("%s: unknown tuner %q", id, stream.Host)
		}
		cmd := stream.Command
		if len(cmd) == 0 {
			return nil, nil, fmt.Errorf("%s: NRSC stream requires a command template", id)
		}
		return &SourceSpec{
			ID:           id,
			Variant:      SourceVariantHDProgram,
			TunerID:      stream.Host,
			ProgramIndex: stream.Program,
			Command:      cmd,
		}, tuner.Bus, nil
	default:
		return nil, nil, fmt.Errorf("%s: unsupported stream type %q", id, stream.Type)
	}
}

func substitutePlaceholders(cmd []string, url string) []string {
	out := make([]string, len(cmd))
	for i, arg := range cmd {
		if arg == "{url}" {
			out[i] = url
		} else {
			out[i] = arg
		}
	}
	return out
}

// wireSilenceReferenceChannel sets up the synthetic zero-signal channel
// used as a negative control for comparator divergence checks.
func wireSilenceReferenceChannel(registry *ChannelRegistry, buffers map[StreamId]*FingerprintBuffer, pcmWindows map[StreamId]*PcmWindow, silenceProbes map[StreamId]*SilenceProbe, supervisor *Supervisor, am *AlertManager, config *Config) {
	id := NewStreamId(SilenceChannelName, "reference")
	spec := &SourceSpec{ID: id, Variant: SourceVariantSilence}
	if err := registry.Register(spec); err != nil {
		log.Fatalf("ConfigInvalid: %v", err)
	}

	bus := NewBus()
	source := NewSilenceGenerator(bus)

	fpStream := NewFingerprintStream(id, config.Tuning.BufferDuration, bus)
	fpStream.Start()
	buffers[id] = fpStream.Buffer

	probe := NewSilenceProbe(id, config.Tuning.BufferDuration, config.volumeDetectionInterval(), config.Tuning.MinimumMaxVolumeThreshold, bus, am)
	probe.Start()
	pcmWindows[id] = probe.Window

	supervisor.Register(&SupervisedStream{ID: id, Source: source, Buffer: fpStream.Buffer})
}

// observeMetricsLoop periodically walks the same live state the status
// surface serves and feeds it into the Prometheus collectors, so /metrics
// reflects current health without every component reaching into metrics
// directly.
func observeMetricsLoop(done <-chan struct{}, metrics *PrometheusMetrics, status *watchdogStatus) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			for _, stream := range status.supervisor.Streams() {
				cmdHealth, _ := stream.Source.Health()
				audioHealth := stream.Buffer.Health()

				var uptime float64
				if up, ok := stream.Source.(interface{ Uptime() time.Duration }); ok {
					uptime = up.Uptime().Seconds()
				}

				volume := VolumeMetrics{MeanDBFS: -100, MaxDBFS: -100}
				if probe, ok := status.silenceProbes[stream.ID]; ok {
					volume = probe.Latest()
				}

				metrics.ObserveStream(stream.ID, cmdHealth, audioHealth, stream.Source.RestartCount(), uptime, volume)
			}

			for _, r := range status.comparator.Results() {
				metrics.ObserveComparison(r)
			}
			for _, a := range status.alerts.Snapshot() {
				metrics.ObserveAlert(a)
			}
		case <-done:
			return
		}
	}
}

func snapshotSystemMetricsLoop(done <-chan struct{}) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if m, err := ReadSystemMetrics(); err == nil && m.LoadStatus != "ok" {
				log.Printf("system load %s: load1=%.2f load5=%.2f cores=%d", m.LoadStatus, m.Load1, m.Load5, m.CPUCores)
			}
		case <-done:
			return
		}
	}
}
