package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusSubscribeDoesNotReplayHistory(t *testing.T) {
	bus := NewBus()
	bus.Publish([]byte("before"))

	sub := bus.Subscribe()
	bus.Publish([]byte("after"))

	done := make(chan struct{})
	chunk, err := sub.Recv(done)
	require.NoError(t, err)
	assert.Equal(t, []byte("after"), chunk)
}

func TestBusPublishNeverBlocksAndFlagsGap(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()

	for i := 0; i < busChunkCapacity+10; i++ {
		bus.Publish([]byte{byte(i)})
	}

	done := make(chan struct{})
	_, err := sub.Recv(done)
	assert.ErrorIs(t, err, ErrBusGap)
}

func TestBusCloseDrainsThenReturnsClosed(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Publish([]byte("last"))
	bus.Close()

	done := make(chan struct{})
	chunk, err := sub.Recv(done)
	require.NoError(t, err)
	assert.Equal(t, []byte("last"), chunk)

	_, err = sub.Recv(done)
	assert.ErrorIs(t, err, ErrBusClosed)
}

func TestBusPublishAfterCloseIsNoop(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe()
	bus.Close()
	bus.Publish([]byte("ignored"))

	done := make(chan struct{})
	_, err := sub.Recv(done)
	assert.ErrorIs(t, err, ErrBusClosed)
}
