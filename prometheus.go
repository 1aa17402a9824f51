package main

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// prometheusHandler exposes the default registry (all promauto-registered
// collectors in this process) at the configured scrape path.
func prometheusHandler() http.Handler {
	return promhttp.Handler()
}

// PrometheusMetrics holds all Prometheus metric collectors for stream
// health, comparison results, and alert state.
type PrometheusMetrics struct {
	// Per-stream health (with 'stream' label)
	sourceHealth  *prometheus.GaugeVec // 0=Running, 1=Stalled, 2=Dead
	audioHealth   *prometheus.GaugeVec // 0=NoData, 1=Running, 2=Degraded, 3=Dead
	restartCount  *prometheus.GaugeVec
	uptimeSeconds *prometheus.GaugeVec
	meanDBFS      *prometheus.GaugeVec
	maxDBFS       *prometheus.GaugeVec

	// Comparator results (with 'stream1', 'stream2' labels)
	similarityPercent *prometheus.GaugeVec
	comparisonIsError *prometheus.GaugeVec
	offsetSeconds     *prometheus.GaugeVec

	// Alert state (with 'alert_id' label)
	alertFailing *prometheus.GaugeVec

	alertsRaisedTotal  prometheus.Counter
	alertsClearedTotal prometheus.Counter
	respawnsTotal      *prometheus.CounterVec
}

func NewPrometheusMetrics() *PrometheusMetrics {
	return &PrometheusMetrics{
		sourceHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_source_health",
				Help: "SourceProcess cmd_health: 0=Running 1=Stalled 2=Dead",
			},
			[]string{"stream"},
		),
		audioHealth: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_audio_health",
				Help: "FingerprintBuffer audio_health: 0=NoData 1=Running 2=Degraded 3=Dead",
			},
			[]string{"stream"},
		),
		restartCount: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_restart_count",
				Help: "Current restart_count for a SourceProcess",
			},
			[]string{"stream"},
		),
		uptimeSeconds: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_uptime_seconds",
				Help: "Seconds since the current child process started",
			},
			[]string{"stream"},
		),
		meanDBFS: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_mean_dbfs",
				Help: "Mean loudness in dBFS from the most recent silence probe analysis",
			},
			[]string{"stream"},
		),
		maxDBFS: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_max_dbfs",
				Help: "Max loudness in dBFS from the most recent silence probe analysis",
			},
			[]string{"stream"},
		),
		similarityPercent: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_similarity_percent",
				Help: "Most recent comparator similarity percentage for a stream pair",
			},
			[]string{"stream1", "stream2", "within_channel"},
		),
		comparisonIsError: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_comparison_is_error",
				Help: "1 if the most recent comparison for this pair crossed its threshold",
			},
			[]string{"stream1", "stream2", "within_channel"},
		),
		offsetSeconds: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_offset_seconds",
				Help: "Most recent within-channel temporal offset estimate, in seconds",
			},
			[]string{"stream1", "stream2"},
		),
		alertFailing: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "watchdog_alert_failing",
				Help: "1 if the alert's failing_since is set, 0 otherwise",
			},
			[]string{"alert_id"},
		),
		alertsRaisedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "watchdog_alerts_raised_total",
				Help: "Total number of NewFailure alerts delivered",
			},
		),
		alertsClearedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "watchdog_alerts_cleared_total",
				Help: "Total number of Cleared alerts delivered",
			},
		),
		respawnsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "watchdog_respawns_total",
				Help: "Total number of SourceProcess respawn attempts",
			},
			[]string{"stream"},
		),
	}
}

func healthToGauge(h SourceHealth) float64 {
	return float64(h)
}

func audioHealthToGauge(h AudioHealth) float64 {
	return float64(h)
}

// ObserveStream updates the per-stream gauges for one SupervisedStream.
func (pm *PrometheusMetrics) ObserveStream(id StreamId, cmdHealth SourceHealth, audioHealth AudioHealth, restartCount int, uptime float64, volume VolumeMetrics) {
	label := string(id)
	pm.sourceHealth.WithLabelValues(label).Set(healthToGauge(cmdHealth))
	pm.audioHealth.WithLabelValues(label).Set(audioHealthToGauge(audioHealth))
	pm.restartCount.WithLabelValues(label).Set(float64(restartCount))
	pm.uptimeSeconds.WithLabelValues(label).Set(uptime)
	pm.meanDBFS.WithLabelValues(label).Set(volume.MeanDBFS)
	pm.maxDBFS.WithLabelValues(label).Set(volume.MaxDBFS)
}

// ObserveComparison updates the comparator gauges for one ComparisonResult.
func (pm *PrometheusMetrics) ObserveComparison(r ComparisonResult) {
	within := "false"
	if r.IsWithinChannel {
		within = "true"
	}
	errVal := 0.0
	if r.IsError {
		errVal = 1.0
	}

	pm.similarityPercent.WithLabelValues(string(r.Stream1), string(r.Stream2), within).Set(r.SimilarityPercent)
	pm.comparisonIsError.WithLabelValues(string(r.Stream1), string(r.Stream2), within).Set(errVal)
	if r.IsWithinChannel {
		pm.offsetSeconds.WithLabelValues(string(r.Stream1), string(r.Stream2)).Set(r.OffsetSeconds)
	}
}

// ObserveAlert updates the alert-failing gauge for one Alert.
func (pm *PrometheusMetrics) ObserveAlert(a Alert) {
	v := 0.0
	if !a.FailingSince.IsZero() {
		v = 1.0
	}
	pm.alertFailing.WithLabelValues(a.ID).Set(v)
}

func (pm *PrometheusMetrics) RecordAlertRaised() {
	pm.alertsRaisedTotal.Inc()
}

func (pm *PrometheusMetrics) RecordAlertCleared() {
	pm.alertsClearedTotal.Inc()
}

func (pm *PrometheusMetrics) RecordRespawn(id StreamId) {
	pm.respawnsTotal.WithLabelValues(string(id)).Inc()
}
