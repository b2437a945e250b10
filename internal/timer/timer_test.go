package timer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer scripts sync answers; safe for the timer goroutine to hit while
// the test inspects call counts.
type fakeServer struct {
	mu      sync.Mutex
	results []SyncResult
	err     error
	calls   int
}

func (s *fakeServer) Sync(_ context.Context, _ string, remaining int) (SyncResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return SyncResult{}, s.err
	}
	if len(s.results) == 0 {
		return SyncResult{Status: "active", RemainingSeconds: remaining}, nil
	}
	result := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return result, nil
}

func (s *fakeServer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastOptions() Options {
	return Options{
		TickInterval: time.Millisecond,
		SyncInterval: 10 * time.Millisecond,
		SyncAttempts: 3,
		SyncBackoff:  time.Millisecond,
	}
}

func waitFor(t *testing.T, events <-chan Event, want EventKind) Event {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case event := <-events:
			if event.Kind == want {
				return event
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event kind %d", want)
		}
	}
}

func TestCountdownCompletesLocally(t *testing.T) {
	server := &fakeServer{}
	tm := New(server, fastOptions())

	tm.Start(context.Background(), "stint-1", 5)

	event := waitFor(t, tm.Events(), EventCompleted)
	assert.Equal(t, 0, event.RemainingSeconds)
	assert.False(t, event.External)
}

func TestTicksCountDown(t *testing.T) {
	server := &fakeServer{}
	tm := New(server, Options{TickInterval: time.Millisecond, SyncInterval: time.Hour})

	tm.Start(context.Background(), "stint-1", 100)

	first := waitFor(t, tm.Events(), EventTick)
	second := waitFor(t, tm.Events(), EventTick)
	assert.Less(t, second.RemainingSeconds, first.RemainingSeconds)
	tm.Stop()
}

func TestDriftCorrectionAppliesServerValue(t *testing.T) {
	server := &fakeServer{results: []SyncResult{
		{Status: "active", RemainingSeconds: 500},
	}}
	tm := New(server, fastOptions())

	tm.Start(context.Background(), "stint-1", 1000)

	event := waitFor(t, tm.Events(), EventCorrected)
	assert.Equal(t, 500, event.RemainingSeconds)
	tm.Stop()
}

func TestSmallDriftIsTolerated(t *testing.T) {
	server := &fakeServer{}
	tm := New(server, fastOptions())

	tm.Start(context.Background(), "stint-1", 1000)

	// Let several sync rounds pass; the echo server always agrees, so no
	// correction may surface.
	deadline := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case event := <-tm.Events():
			require.NotEqual(t, EventCorrected, event.Kind)
		case <-deadline:
			break drain
		}
	}
	assert.Greater(t, server.callCount(), 0)
	tm.Stop()
}

func TestExternalCompletionStopsTimer(t *testing.T) {
	server := &fakeServer{results: []SyncResult{
		{Status: "completed", RemainingSeconds: 0},
	}}
	tm := New(server, fastOptions())

	tm.Start(context.Background(), "stint-1", 1000)

	event := waitFor(t, tm.Events(), EventCompleted)
	assert.True(t, event.External)
}

func TestSyncDegradesAfterRetriesExhausted(t *testing.T) {
	server := &fakeServer{err: errors.New("connection refused")}
	tm := New(server, fastOptions())

	tm.Start(context.Background(), "stint-1", 1000)

	event := waitFor(t, tm.Events(), EventSyncDegraded)
	require.Error(t, event.Err)
	assert.Equal(t, 3, server.callCount())

	// Degraded mode stops syncing but the countdown keeps ticking.
	tick := waitFor(t, tm.Events(), EventTick)
	assert.Greater(t, tick.RemainingSeconds, 0)
	tm.Stop()
}

func TestPauseSuspendsTicksAndSync(t *testing.T) {
	server := &fakeServer{}
	tm := New(server, Options{TickInterval: time.Millisecond, SyncInterval: 5 * time.Millisecond})

	ctx := context.Background()
	tm.Start(ctx, "stint-1", 1000)
	waitFor(t, tm.Events(), EventTick)
	tm.Pause()

	// Drain anything emitted before the pause landed.
	time.Sleep(20 * time.Millisecond)
	for {
		select {
		case <-tm.Events():
			continue
		default:
		}
		break
	}
	callsAtPause := server.callCount()

	time.Sleep(50 * time.Millisecond)
	select {
	case event := <-tm.Events():
		t.Fatalf("unexpected event while paused: kind %d", event.Kind)
	default:
	}
	assert.Equal(t, callsAtPause, server.callCount())

	tm.Resume()
	waitFor(t, tm.Events(), EventTick)
	tm.Stop()
}
