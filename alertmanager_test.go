package main

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu       sync.Mutex
	sent     map[string][]string
	failNext bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sent: make(map[string][]string)}
}

func (f *fakeTransport) SendAggregated(category string, messages []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return assert.AnError
	}
	f.sent[category] = append(f.sent[category], messages...)
	return nil
}

func (f *fakeTransport) categoryCount(category string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent[category])
}

func TestAlertStateTable(t *testing.T) {
	now := time.Now()
	reminderInterval := 10 * time.Minute

	cases := []struct {
		name    string
		alert   Alert
		want    AlertState
	}{
		{"never failed", Alert{}, AlertPassing},
		{"newly failing, no send yet", Alert{FailingSince: now}, AlertNewFailing},
		{"sent recently, still failing", Alert{FailingSince: now, LastSentAt: now}, AlertFailingAlertSent},
		{"sent long ago, still failing", Alert{FailingSince: now, LastSentAt: now.Add(-reminderInterval - time.Minute)}, AlertFailingReminderNeeded},
		{"recovered after a send", Alert{LastSentAt: now}, AlertNewPassing},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, c.alert.state(now, reminderInterval))
		})
	}
}

func TestAlertManagerGracePeriodSuppressesEarlyFailure(t *testing.T) {
	transport := newFakeTransport()
	am := NewAlertManager(transport, 60*time.Second, 10*time.Minute)

	am.UpdateAlert("stream_x", true, "stream_x diverged")
	am.processCycle()

	assert.Zero(t, transport.categoryCount("Warning"))
}

func TestAlertManagerPromotesAfterGracePeriod(t *testing.T) {
	transport := newFakeTransport()
	am := NewAlertManager(transport, 60*time.Second, 10*time.Minute)

	am.UpdateAlert("stream_x", true, "stream_x diverged")
	am.mu.Lock()
	am.alerts["stream_x"].FailingSince = time.Now().Add(-61 * time.Second)
	am.mu.Unlock()

	am.processCycle()

	require.Equal(t, 1, transport.categoryCount("Warning"))
}

func TestAlertManagerRecoveryAfterSendIsCleared(t *testing.T) {
	transport := newFakeTransport()
	am := NewAlertManager(transport, 0, 10*time.Minute)

	am.UpdateAlert("stream_x", true, "stream_x diverged")
	am.processCycle()
	require.Equal(t, 1, transport.categoryCount("Warning"))

	am.UpdateAlert("stream_x", false, "stream_x recovered")
	am.processCycle()

	assert.Equal(t, 1, transport.categoryCount("Success"))
}

func TestAlertManagerUpdateAlertIdempotentWhileFailing(t *testing.T) {
	transport := newFakeTransport()
	am := NewAlertManager(transport, 60*time.Second, 10*time.Minute)

	am.UpdateAlert("stream_x", true, "first")
	am.mu.Lock()
	firstSince := am.alerts["stream_x"].FailingSince
	am.mu.Unlock()

	time.Sleep(10 * time.Millisecond)
	am.UpdateAlert("stream_x", true, "second")

	am.mu.Lock()
	secondSince := am.alerts["stream_x"].FailingSince
	am.mu.Unlock()

	assert.Equal(t, firstSince, secondSince)
}

func TestAlertManagerTransportFailureDoesNotBlockFutureDelivery(t *testing.T) {
	transport := newFakeTransport()
	transport.failNext = true
	am := NewAlertManager(transport, 0, 10*time.Minute)

	am.UpdateAlert("stream_x", true, "boom")
	am.processCycle()
	assert.Zero(t, transport.categoryCount("Warning"))

	am.UpdateAlert("stream_y", true, "boom2")
	am.processCycle()
	assert.Equal(t, 1, transport.categoryCount("Warning"))
}
