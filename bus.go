package main

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrBusClosed is returned by a Bus subscriber's Recv once the producer has
// dropped and all buffered chunks have drained.
var ErrBusClosed = errors.New("bus: closed")

// ErrBusGap is returned (alongside the next available chunk) when a
// subscriber fell behind and the producer overwrote messages it had not yet
// read. The subscriber's subsequence is otherwise still in original order.
var ErrBusGap = errors.New("bus: subscriber fell behind, chunks were dropped")

// busChunkCapacity is the bounded channel depth, in messages, shared by
// every Bus instance. ~1024 chunks of ~1s PCM each is far more runway than
// any consumer should ever need; it exists to bound memory, not to smooth
// bursts.
const busChunkCapacity = 1024

// Bus is a one-writer, many-reader, bounded, lossy fan-out of byte chunks.
// It backs both the Tuner's IQ feed (one tuner, many HD decoders) and every
// SourceProcess's PCM feed (one decoder, a fingerprinter and a silence
// probe). The producer never blocks: a slow subscriber loses the oldest
// chunks it hasn't read yet rather than stalling the realtime ingest.
type Bus struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

type subscriber struct {
	ch      chan []byte
	missed  atomic.Bool
	closeCh chan struct{}
	once    sync.Once
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*subscriber]struct{})}
}

// Publish hands a chunk to every current subscriber. It never blocks: a
// subscriber whose channel is full has its oldest unread chunk dropped to
// make room, and is flagged so its next Recv reports ErrBusGap.
func (b *Bus) Publish(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for s := range b.subs {
		select {
		case s.ch <- chunk:
		default:
			// Drop the oldest buffered chunk to make room, matching the
			// spec's "slow consumers lose the oldest messages" rule.
			select {
			case <-s.ch:
			default:
			}
			s.missed.Store(true)
			select {
			case s.ch <- chunk:
			default:
				// Channel refilled out from under us by a concurrent Recv;
				// the gap flag alone is enough to signal loss.
			}
		}
	}
}

// Close drops the producer side. Subscribers drain whatever is already
// buffered, then every subsequent Recv returns ErrBusClosed.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for s := range b.subs {
		s.once.Do(func() { close(s.closeCh) })
	}
}

// Subscription is a single consumer's view of a Bus. New subscriptions only
// ever see chunks produced after Subscribe returns; they do not replay
// history.
type Subscription struct {
	bus *Bus
	sub *subscriber
}

func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &subscriber{
		ch:      make(chan []byte, busChunkCapacity),
		closeCh: make(chan struct{}),
	}
	b.subs[s] = struct{}{}
	if b.closed {
		s.once.Do(func() { close(s.closeCh) })
	}
	return &Subscription{bus: b, sub: s}
}

// Recv blocks until a chunk is available, the bus closes, or done fires.
// If chunks were dropped since the last Recv, it returns the next available
// chunk together with ErrBusGap rather than withholding data.
func (sub *Subscription) Recv(done <-chan struct{}) ([]byte, error) {
	select {
	case chunk, ok := <-sub.sub.ch:
		if !ok {
			return nil, ErrBusClosed
		}
		if sub.sub.missed.CompareAndSwap(true, false) {
			return chunk, ErrBusGap
		}
		return chunk, nil
	case <-sub.sub.closeCh:
		select {
		case chunk, ok := <-sub.sub.ch:
			if ok {
				return chunk, nil
			}
		default:
		}
		return nil, ErrBusClosed
	case <-done:
		return nil, ErrBusClosed
	}
}

// Unsubscribe removes this subscription from the bus. Safe to call more
// than once.
func (sub *Subscription) Unsubscribe() {
	sub.bus.mu.Lock()
	defer sub.bus.mu.Unlock()
	delete(sub.bus.subs, sub.sub)
}
