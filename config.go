package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML configuration, one field per concern, the
// same shape the teacher uses: nested structs rather than a flat key space.
type Config struct {
	Slack      SlackConfig      `yaml:"slack"`
	Sources    SourcesConfig    `yaml:"sources"`
	Tuning     TuningConfig     `yaml:"tuning"`
	Server     ServerConfig     `yaml:"server"`
	Prometheus PrometheusConfig `yaml:"prometheus"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// SlackConfig carries credentials and behavior for the message transport
// adapter.
type SlackConfig struct {
	AuthToken string `yaml:"slack_auth"`
	Channel   string `yaml:"slack_channel"`
	DryRun    bool   `yaml:"dry_run"` // log composed messages instead of sending
}

// SourcesConfig describes the whole monitored inventory: the optional
// synthetic silence reference, the SDR/tuner pool, and the channel/stream
// topology.
type SourcesConfig struct {
	Silence  bool                `yaml:"silence"`
	SDRs     map[string]SDREntry `yaml:"sdrs"`
	Channels map[string]ChannelEntry `yaml:"channels"`
}

// SDRSpawnEntry enables a locally-launched IQ server for one tuner.
type SDRSpawnEntry struct {
	Command   []string `yaml:"command"`
	Frequency uint64   `yaml:"frequency"`
	Size      string   `yaml:"size"`
	Gain      string   `yaml:"gain"`
}

// SDREntry is one entry under sdrs.<name>: where to reach the IQ feed, and
// optionally how to launch it locally.
type SDREntry struct {
	Host  string         `yaml:"host"`
	Port  int            `yaml:"port"`
	Spawn *SDRSpawnEntry `yaml:"spawn"`
}

// ChannelEntry is one entry under channels.<name>: the streams nominally
// carrying the same program, keyed by name (a map, so unordered).
type ChannelEntry struct {
	Streams map[string]StreamEntry `yaml:"streams"`
}

// StreamEntry is one entry under channels.<name>.streams.<name>. Type ∈
// {Web, NRSC, FM}; FM is reserved and rejected at load.
type StreamEntry struct {
	Type    string   `yaml:"type"`
	URL     string   `yaml:"url"`  // Web variant
	Host    string   `yaml:"host"` // NRSC variant: references an sdrs.<name>
	Path    string   `yaml:"path"`
	Program int      `yaml:"program"` // NRSC program index 0..3
	Command []string `yaml:"command"` // decoder command template
}

// TuningConfig holds the comparator/fingerprint tuning knobs from §6.
type TuningConfig struct {
	BufferDuration      float64 `yaml:"buffer_duration"`
	ComparisonDuration  float64 `yaml:"comparison_duration"`
	MinBufferDuration   float64 `yaml:"min_buffer_duration"`
	MatchThreshold      float64 `yaml:"match_threshold"`
	DivergenceThreshold float64 `yaml:"divergence_threshold"`
	GracePeriodSeconds  float64 `yaml:"grace_period_seconds"`
	VolumeDetectionIntervalSeconds float64 `yaml:"volume_detection_interval"`
	MinimumMaxVolumeThreshold     float64 `yaml:"minimum_max_volume_threshold"`
	ReminderIntervalSeconds       float64 `yaml:"reminder_interval_seconds"`
	FFmpegMinVersion    string  `yaml:"ffmpeg_min_version"`
}

// ServerConfig holds the status surface's listen settings.
type ServerConfig struct {
	WebPort int `yaml:"web_port"`
}

// PrometheusConfig toggles the metrics endpoint; actual collector wiring
// lives in prometheus.go.
type PrometheusConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MQTTConfig contains MQTT publishing settings.
type MQTTConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Broker          string        `yaml:"broker"`
	Username        string        `yaml:"username"`
	Password        string        `yaml:"password"`
	TopicPrefix     string        `yaml:"topic_prefix"`
	PublishInterval int           `yaml:"publish_interval"`
	QoS             byte          `yaml:"qos"`
	Retain          bool          `yaml:"retain"`
	TLS             MQTTTLSConfig `yaml:"tls"`
}

// MQTTTLSConfig contains MQTT TLS/SSL settings.
type MQTTTLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CACert     string `yaml:"ca_cert"`
	ClientCert string `yaml:"client_cert"`
	ClientKey  string `yaml:"client_key"`
}

// MCPConfig contains Model Context Protocol server settings.
type MCPConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LoadConfig loads configuration from a YAML file and applies defaults
// the same way the teacher does: post-unmarshal "if x == 0" blocks, not
// struct tags.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if config.Tuning.BufferDuration == 0 {
		config.Tuning.BufferDuration = 120
	}
	if config.Tuning.ComparisonDuration == 0 {
		config.Tuning.ComparisonDuration = 5
	}
	if config.Tuning.MinBufferDuration == 0 {
		config.Tuning.MinBufferDuration = 30
	}
	if config.Tuning.MatchThreshold == 0 {
		config.Tuning.MatchThreshold = 85
	}
	if config.Tuning.DivergenceThreshold == 0 {
		config.Tuning.DivergenceThreshold = 50
	}
	if config.Tuning.GracePeriodSeconds == 0 {
		config.Tuning.GracePeriodSeconds = 60
	}
	if config.Tuning.VolumeDetectionIntervalSeconds == 0 {
		config.Tuning.VolumeDetectionIntervalSeconds = 10
	}
	if config.Tuning.MinimumMaxVolumeThreshold == 0 {
		config.Tuning.MinimumMaxVolumeThreshold = -40
	}
	if config.Tuning.ReminderIntervalSeconds == 0 {
		config.Tuning.ReminderIntervalSeconds = 600
	}
	if config.Server.WebPort == 0 {
		config.Server.WebPort = 3000
	}
	if config.MQTT.TopicPrefix == "" {
		config.MQTT.TopicPrefix = "radio-watchdog"
	}
	if config.MQTT.PublishInterval == 0 {
		config.MQTT.PublishInterval = 30
	}
	if config.Prometheus.Path == "" {
		config.Prometheus.Path = "/metrics"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate enforces ConfigInvalid conditions that must fail fast at
// startup: missing tuner references and the reserved, unimplemented FM
// stream type.
func (c *Config) Validate() error {
	for chName, ch := range c.Sources.Channels {
		for streamName, stream := range ch.Streams {
			switch stream.Type {
			case "Web":
				if stream.URL == "" {
					return fmt.Errorf("ConfigInvalid: channels.%s.streams.%s: Web stream requires url", chName, streamName)
				}
			case "NRSC":
				if stream.Host == "" {
					return fmt.Errorf("ConfigInvalid: channels.%s.streams.%s: NRSC stream requires host (tuner reference)", chName, streamName)
				}
				if _, ok := c.Sources.SDRs[stream.Host]; !ok {
					return fmt.Errorf("ConfigInvalid: channels.%s.streams.%s: references unknown tuner %q", chName, streamName, stream.Host)
				}
				if stream.Program < 0 || stream.Program > 3 {
					return fmt.Errorf("ConfigInvalid: channels.%s.streams.%s: program must be 0..3", chName, streamName)
				}
			case "FM":
				return fmt.Errorf("ConfigInvalid: channels.%s.streams.%s: stream type FM is reserved and not implemented", chName, streamName)
			default:
				return fmt.Errorf("ConfigInvalid: channels.%s.streams.%s: unsupported stream type %q", chName, streamName, stream.Type)
			}
		}
	}

	if c.Tuning.MatchThreshold <= 0 || c.Tuning.MatchThreshold > 100 {
		return fmt.Errorf("ConfigInvalid: tuning.match_threshold must be in (0,100]")
	}
	if c.Tuning.DivergenceThreshold <= 0 || c.Tuning.DivergenceThreshold > 100 {
		return fmt.Errorf("ConfigInvalid: tuning.divergence_threshold must be in (0,100]")
	}

	return nil
}

func (c *Config) gracePeriod() time.Duration {
	return time.Duration(c.Tuning.GracePeriodSeconds * float64(time.Second))
}

func (c *Config) reminderInterval() time.Duration {
	return time.Duration(c.Tuning.ReminderIntervalSeconds * float64(time.Second))
}

func (c *Config) comparisonDuration() time.Duration {
	return time.Duration(c.Tuning.ComparisonDuration * float64(time.Second))
}

func (c *Config) volumeDetectionInterval() time.Duration {
	return time.Duration(c.Tuning.VolumeDetectionIntervalSeconds * float64(time.Second))
}
