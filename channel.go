package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StreamId is the stable identifier "<channel>-<stream>" used everywhere a
// fingerprint buffer, alert id, or status snapshot needs to name a stream.
type StreamId string

// SilenceChannelName is reserved for the synthetic zero-signal reference
// channel; it must never collide with a configured channel name.
const SilenceChannelName = "silence"

func NewStreamId(channel, stream string) StreamId {
	return StreamId(channel + "-" + stream)
}

func (s StreamId) Channel() string {
	parts := strings.SplitN(string(s), "-", 2)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// SourceVariant distinguishes how a SourceProcess realizes its PCM contract.
type SourceVariant int

const (
	SourceVariantWeb SourceVariant = iota
	SourceVariantHDProgram
	SourceVariantSilence
)

// StreamType mirrors the `type` key under channels.<name>.streams.<name> in
// the YAML config. FM is declared but rejected at load time per spec.
type StreamType string

const (
	StreamTypeWeb  StreamType = "Web"
	StreamTypeNRSC StreamType = "NRSC"
	StreamTypeFM   StreamType = "FM"
)

// SourceSpec describes how to realize one SourceProcess's command template.
type SourceSpec struct {
	ID      StreamId
	Variant SourceVariant

	// Web variant
	URL string

	// HDProgram variant
	TunerID      string
	ProgramIndex int // 0..3

	// Command template, with placeholders already substituted by the
	// caller (config.go); SourceProcess never knows about YAML.
	Command []string
}

// Channel is a logical program: a name plus the ordered set of StreamIds
// that are supposed to be carrying the same content. Channels partition the
// StreamId space; a StreamId belongs to exactly one Channel.
type Channel struct {
	Name    string
	Streams []StreamId
}

// ChannelRegistry owns the channel map for the whole process. It is the
// thing the supervisor, comparator, and status surface all read from.
type ChannelRegistry struct {
	mu       sync.RWMutex
	channels map[string]*Channel
	sources  map[StreamId]*SourceSpec
}

func NewChannelRegistry() *ChannelRegistry {
	return &ChannelRegistry{
		channels: make(map[string]*Channel),
		sources:  make(map[StreamId]*SourceSpec),
	}
}

// Register adds a stream to its channel, creating the channel entry if this
// is the first stream seen for that name. Returns an error if the StreamId
// is already registered, which would indicate a config-loading bug.
func (r *ChannelRegistry) Register(spec *SourceSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sources[spec.ID]; exists {
		return fmt.Errorf("stream %s already registered", spec.ID)
	}

	chName := spec.ID.Channel()
	ch, ok := r.channels[chName]
	if !ok {
		ch = &Channel{Name: chName}
		r.channels[chName] = ch
	}
	ch.Streams = append(ch.Streams, spec.ID)
	r.sources[spec.ID] = spec
	return nil
}

// ChannelNames returns a stable-ordered snapshot of all channel names.
func (r *ChannelRegistry) ChannelNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.channels))
	for name := range r.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StreamsOf returns the StreamIds belonging to a channel, in registration
// order. main.go registers streams by ranging over the config's maps, so
// this is not the config-file order.
func (r *ChannelRegistry) StreamsOf(channel string) []StreamId {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ch, ok := r.channels[channel]
	if !ok {
		return nil
	}
	out := make([]StreamId, len(ch.Streams))
	copy(out, ch.Streams)
	return out
}

func (r *ChannelRegistry) SourceSpec(id StreamId) (*SourceSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.sources[id]
	return spec, ok
}

// AllStreams returns every registered StreamId across all channels.
func (r *ChannelRegistry) AllStreams() []StreamId {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]StreamId, 0, len(r.sources))
	for id := range r.sources {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
