package main

import (
	"fmt"
	"log"
	"math"
	"math/bits"
	"sort"
	"sync"
	"time"
)

// ComparisonResult is the outcome of comparing two streams' fingerprint
// snapshots over one comparator cycle.
type ComparisonResult struct {
	Stream1          StreamId
	Stream2          StreamId
	SimilarityPercent float64
	IsWithinChannel  bool
	IsError          bool
	OffsetSeconds    float64 // only meaningful when IsWithinChannel
}

// comparatorMaxOffsetItems bounds the search for the best alignment between
// two fingerprint sequences, in fingerprint items either direction.
const comparatorMaxOffsetItems = 40 // +-40*0.1238s =~ +-5s

// Comparator runs every comparisonDuration, reads fingerprint snapshots for
// every registered stream, and emits within-channel and cross-channel
// ComparisonResults, forwarding each to an AlertManager.
type Comparator struct {
	registry           *ChannelRegistry
	buffers            map[StreamId]*FingerprintBuffer
	alertManager       *AlertManager
	minBufferSize      int
	matchThreshold     float64
	divergenceThreshold float64
	cadence            time.Duration

	mu      sync.RWMutex
	results []ComparisonResult

	done chan struct{}
}

func NewComparator(registry *ChannelRegistry, buffers map[StreamId]*FingerprintBuffer, am *AlertManager, minBufferDuration, matchThreshold, divergenceThreshold float64, comparisonDuration time.Duration) *Comparator {
	return &Comparator{
		registry:            registry,
		buffers:             buffers,
		alertManager:        am,
		minBufferSize:       int(math.Ceil(minBufferDuration / ItemDurationSeconds)),
		matchThreshold:      matchThreshold,
		divergenceThreshold: divergenceThreshold,
		cadence:             comparisonDuration,
		done:                make(chan struct{}),
	}
}

func (c *Comparator) Start() {
	go c.run()
}

func (c *Comparator) Stop() {
	close(c.done)
}

func (c *Comparator) run() {
	ticker := time.NewTicker(c.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.cycle()
		case <-c.done:
			return
		}
	}
}

// Results returns the latest atomically-published comparison vector.
func (c *Comparator) Results() []ComparisonResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]ComparisonResult, len(c.results))
	copy(out, c.results)
	return out
}

func (c *Comparator) cycle() {
	channels := c.registry.ChannelNames()

	snapshots := make(map[StreamId][]FingerprintItem)
	for _, ch := range channels {
		for _, id := range c.registry.StreamsOf(ch) {
			buf, ok := c.buffers[id]
			if !ok {
				continue
			}
			snapshots[id] = buf.Snapshot()
		}
	}

	var results []ComparisonResult

	for _, ch := range channels {
		streams := c.registry.StreamsOf(ch)
		for i := 0; i < len(streams); i++ {
			for j := i + 1; j < len(streams); j++ {
				if r, ok := c.compareWithinChannel(streams[i], streams[j], snapshots); ok {
					results = append(results, r)
				}
			}
		}
	}

	for i := 0; i < len(channels); i++ {
		for j := i + 1; j < len(channels); j++ {
			for _, s1 := range c.registry.StreamsOf(channels[i]) {
				for _, s2 := range c.registry.StreamsOf(channels[j]) {
					if r, ok := c.compareCrossChannel(s1, s2, snapshots); ok {
						results = append(results, r)
					}
				}
			}
		}
	}

	c.mu.Lock()
	c.results = results
	c.mu.Unlock()

	for _, r := range results {
		c.notifyAlertManager(r)
	}
}

func orderStreams(a, b StreamId) (StreamId, StreamId, bool) {
	if a <= b {
		return a, b, false
	}
	return b, a, true
}

func (c *Comparator) compareWithinChannel(a, b StreamId, snapshots map[StreamId][]FingerprintItem) (ComparisonResult, bool) {
	fp1ok, fp2ok := snapshots[a], snapshots[b]
	if len(fp1ok) < c.minBufferSize || len(fp2ok) < c.minBufferSize {
		return ComparisonResult{}, false
	}

	// fp1/fp2 are taken in the ordered (s1, s2) sequence, so the offset
	// already reads as s2 relative to s1 and needs no sign flip.
	s1, s2, _ := orderStreams(a, b)
	fp1, fp2 := snapshots[s1], snapshots[s2]

	similarity, offset := matchFingerprints(fp1, fp2, comparatorMaxOffsetItems)

	return ComparisonResult{
		Stream1:           s1,
		Stream2:           s2,
		SimilarityPercent: similarity,
		IsWithinChannel:   true,
		IsError:           similarity < c.matchThreshold,
		OffsetSeconds:     offset,
	}, true
}

func (c *Comparator) compareCrossChannel(a, b StreamId, snapshots map[StreamId][]FingerprintItem) (ComparisonResult, bool) {
	fp1ok, fp2ok := snapshots[a], snapshots[b]
	if len(fp1ok) < c.minBufferSize || len(fp2ok) < c.minBufferSize {
		return ComparisonResult{}, false
	}

	s1, s2, _ := orderStreams(a, b)
	fp1, fp2 := snapshots[s1], snapshots[s2]

	similarity, _ := matchFingerprints(fp1, fp2, comparatorMaxOffsetItems)

	return ComparisonResult{
		Stream1:           s1,
		Stream2:           s2,
		SimilarityPercent: similarity,
		IsWithinChannel:   false,
		IsError:           similarity > c.divergenceThreshold,
	}, true
}

// matchFingerprints finds the alignment offset (in items, fp2 relative to
// fp1) that maximizes the count of per-item Hamming-similar matches within
// +-maxOffset items, then computes:
//
//	similar_time = sum(duration(match segment))
//	total_duration = len(fp1) * ItemDurationSeconds
//	similarity_percent = 100 * similar_time / total_duration
//	offset_seconds = mean over matches of (offset2-offset1)*ItemDurationSeconds
//
// Because every matched pair shares the single best-fit alignment offset,
// the mean in the last line reduces to that offset's equivalent in seconds.
// An empty match set yields similarity_percent=0, offset=0.
func matchFingerprints(fp1, fp2 []FingerprintItem, maxOffset int) (similarityPercent, offsetSeconds float64) {
	if len(fp1) == 0 || len(fp2) == 0 {
		return 0, 0
	}

	bestCount := -1
	bestOffset := 0

	for off := -maxOffset; off <= maxOffset; off++ {
		count := 0
		for i := 0; i < len(fp1); i++ {
			j := i + off
			if j < 0 || j >= len(fp2) {
				continue
			}
			if hammingSimilar(fp1[i], fp2[j]) {
				count++
			}
		}
		if count > bestCount {
			bestCount = count
			bestOffset = off
		}
	}

	if bestCount <= 0 {
		return 0, 0
	}

	totalDuration := float64(len(fp1)) * ItemDurationSeconds
	similarTime := float64(bestCount) * ItemDurationSeconds
	similarityPercent = 100 * similarTime / totalDuration
	offsetSeconds = float64(bestOffset) * ItemDurationSeconds
	return similarityPercent, offsetSeconds
}

func hammingSimilar(a, b FingerprintItem) bool {
	diff := bits.OnesCount32(uint32(a ^ b))
	return 32-diff >= hammingSimilarBits
}

func (c *Comparator) notifyAlertManager(r ComparisonResult) {
	id := fmt.Sprintf("%s_%s", r.Stream1, r.Stream2)
	msg := comparisonMessage(r)
	if err := c.alertManager.UpdateAlert(id, r.IsError, msg); err != nil {
		log.Printf("comparator: update_alert(%s): %v", id, err)
	}
}

func comparisonMessage(r ComparisonResult) string {
	if r.IsWithinChannel {
		if r.IsError {
			return fmt.Sprintf("%s and %s are no longer matching (%.1f%% similar, offset %.2fs)", r.Stream1, r.Stream2, r.SimilarityPercent, r.OffsetSeconds)
		}
		return fmt.Sprintf("%s and %s are matching (%.1f%% similar, offset %.2fs)", r.Stream1, r.Stream2, r.SimilarityPercent, r.OffsetSeconds)
	}
	if r.IsError {
		return fmt.Sprintf("%s and %s appear to be carrying the same program (%.1f%% similar across channels)", r.Stream1, r.Stream2, r.SimilarityPercent)
	}
	return fmt.Sprintf("%s and %s are distinct programs (%.1f%% similar across channels)", r.Stream1, r.Stream2, r.SimilarityPercent)
}

// sortedStreamIds returns a lexicographically sorted copy of ids.
func sortedStreamIds(ids []StreamId) []StreamId {
	out := make([]StreamId, len(ids))
	copy(out, ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
