package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamIdChannelSplitsOnFirstHyphen(t *testing.T) {
	id := NewStreamId("news-talk", "web")
	assert.Equal(t, "news-talk-web", string(id))
	assert.Equal(t, "news", id.Channel())
}

func TestChannelRegistryRegisterGroupsByChannel(t *testing.T) {
	r := NewChannelRegistry()
	require.NoError(t, r.Register(&SourceSpec{ID: NewStreamId("news", "web")}))
	require.NoError(t, r.Register(&SourceSpec{ID: NewStreamId("news", "hd")}))
	require.NoError(t, r.Register(&SourceSpec{ID: NewStreamId("sports", "web")}))

	assert.Equal(t, []string{"news", "sports"}, r.ChannelNames())
	assert.Len(t, r.StreamsOf("news"), 2)
	assert.Len(t, r.StreamsOf("sports"), 1)
	assert.Len(t, r.AllStreams(), 3)
}

func TestChannelRegistryRejectsDuplicateRegistration(t *testing.T) {
	r := NewChannelRegistry()
	id := NewStreamId("news", "web")
	require.NoError(t, r.Register(&SourceSpec{ID: id}))

	err := r.Register(&SourceSpec{ID: id})
	assert.Error(t, err)
}

func TestChannelRegistrySourceSpecLookup(t *testing.T) {
	r := NewChannelRegistry()
	id := NewStreamId("news", "web")
	spec := &SourceSpec{ID: id, URL: "https://example.com"}
	require.NoError(t, r.Register(spec))

	got, ok := r.SourceSpec(id)
	require.True(t, ok)
	assert.Equal(t, "https://example.com", got.URL)

	_, ok = r.SourceSpec(NewStreamId("news", "missing"))
	assert.False(t, ok)
}
