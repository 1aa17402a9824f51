package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseValidConfig() *Config {
	return &Config{
		Sources: SourcesConfig{
			SDRs: map[string]SDREntry{
				"tuner1": {Host: "127.0.0.1", Port: 8888},
			},
			Channels: map[string]ChannelEntry{
				"news": {
					Streams: map[string]StreamEntry{
						"web": {Type: "Web", URL: "https://example.com/stream", Command: []string{"ffmpeg", "-i", "{url}"}},
						"hd":  {Type: "NRSC", Host: "tuner1", Program: 0, Command: []string{"nrsc5", "-"}},
					},
				},
			},
		},
		Tuning: TuningConfig{MatchThreshold: 85, DivergenceThreshold: 50},
	}
}

func TestConfigValidateAcceptsWellFormedConfig(t *testing.T) {
	err := baseValidConfig().Validate()
	assert.NoError(t, err)
}

func TestConfigValidateRejectsFMStreamType(t *testing.T) {
	c := baseValidConfig()
	c.Sources.Channels["news"].Streams["fm"] = StreamEntry{Type: "FM"}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reserved")
}

func TestConfigValidateRejectsUnknownTunerReference(t *testing.T) {
	c := baseValidConfig()
	c.Sources.Channels["news"].Streams["hd"] = StreamEntry{Type: "NRSC", Host: "no-such-tuner", Program: 0}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown tuner")
}

func TestConfigValidateRejectsWebStreamMissingURL(t *testing.T) {
	c := baseValidConfig()
	c.Sources.Channels["news"].Streams["web"] = StreamEntry{Type: "Web"}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires url")
}

func TestConfigValidateRejectsOutOfRangeThresholds(t *testing.T) {
	c := baseValidConfig()
	c.Tuning.MatchThreshold = 0

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "match_threshold")
}

func TestConfigValidateRejectsProgramOutOfRange(t *testing.T) {
	c := baseValidConfig()
	c.Sources.Channels["news"].Streams["hd"] = StreamEntry{Type: "NRSC", Host: "tuner1", Program: 7}

	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "program")
}
