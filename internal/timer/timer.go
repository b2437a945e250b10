// Package timer drives a client-local countdown for one stint. The countdown
// ticks independently of the server so it stays responsive offline, and
// periodically reconciles with server-computed truth, correcting itself only
// when drift exceeds a threshold. The ticking state is owned by a single
// goroutine; callers talk to it through commands in and events out, never
// shared memory.
package timer

import (
	"context"
	"time"
)

// SyncResult is the server's answer to a drift check.
type SyncResult struct {
	Status           string
	RemainingSeconds int
}

// Server is the drift-reconciliation backend, typically an HTTP client for
// the sync endpoint.
type Server interface {
	Sync(ctx context.Context, stintID string, remainingSeconds int) (SyncResult, error)
}

type EventKind int

const (
	// EventTick fires once per tick interval while counting down.
	EventTick EventKind = iota
	// EventCorrected fires when a sync check moved the local countdown.
	EventCorrected
	// EventCompleted fires when the countdown reaches zero locally or the
	// server reports the stint already terminal.
	EventCompleted
	// EventSyncDegraded fires after every sync attempt in a round failed;
	// the countdown keeps ticking but can no longer be trusted for drift.
	EventSyncDegraded
)

type Event struct {
	Kind             EventKind
	RemainingSeconds int
	// External marks a completion observed from the server rather than the
	// local countdown: the auto-sweep, another device, or a manual action
	// elsewhere ended the stint.
	External bool
	Err      error
}

type Options struct {
	TickInterval   time.Duration // default 1s
	SyncInterval   time.Duration // default 60s
	DriftThreshold int           // seconds, default 5
	SyncAttempts   int           // default 3
	SyncBackoff    time.Duration // linear backoff unit, default 1s
}

func (o Options) withDefaults() Options {
	if o.TickInterval <= 0 {
		o.TickInterval = time.Second
	}
	if o.SyncInterval <= 0 {
		o.SyncInterval = 60 * time.Second
	}
	if o.DriftThreshold <= 0 {
		o.DriftThreshold = 5
	}
	if o.SyncAttempts <= 0 {
		o.SyncAttempts = 3
	}
	if o.SyncBackoff <= 0 {
		o.SyncBackoff = time.Second
	}
	return o
}

type command int

const (
	cmdPause command = iota
	cmdResume
	cmdStop
)

type Timer struct {
	server Server
	opts   Options
	events chan Event
	cmds   chan command
	done   chan struct{}
}

func New(server Server, opts Options) *Timer {
	return &Timer{
		server: server,
		opts:   opts.withDefaults(),
		events: make(chan Event, 64),
		cmds:   make(chan command, 4),
		done:   make(chan struct{}),
	}
}

// Events is the timer's outbound channel. Ticks are dropped if the consumer
// falls behind; corrections, completions and degradations are not.
func (t *Timer) Events() <-chan Event {
	return t.events
}

// Start begins counting down remainingSeconds for the stint. It spawns the
// timer goroutine and returns immediately; the goroutine exits when the
// countdown completes, Stop is called, or ctx is cancelled.
func (t *Timer) Start(ctx context.Context, stintID string, remainingSeconds int) {
	go t.run(ctx, stintID, remainingSeconds)
}

func (t *Timer) Pause()  { t.command(cmdPause) }
func (t *Timer) Resume() { t.command(cmdResume) }

func (t *Timer) Stop() {
	t.command(cmdStop)
}

func (t *Timer) command(c command) {
	select {
	case t.cmds <- c:
	case <-t.done:
	}
}

func (t *Timer) run(ctx context.Context, stintID string, remaining int) {
	defer close(t.done)

	ticker := time.NewTicker(t.opts.TickInterval)
	defer ticker.Stop()

	paused := false
	degraded := false
	sinceSync := time.Duration(0)

	for {
		select {
		case <-ctx.Done():
			return

		case cmd := <-t.cmds:
			switch cmd {
			case cmdPause:
				// Remaining is frozen while paused; sync is suspended too,
				// since there is nothing to correct.
				paused = true
			case cmdResume:
				paused = false
				sinceSync = 0
			case cmdStop:
				return
			}

		case <-ticker.C:
			if paused {
				continue
			}

			remaining--
			if remaining <= 0 {
				remaining = 0
				t.emit(ctx, Event{Kind: EventCompleted, RemainingSeconds: 0})
				return
			}
			t.emitTick(Event{Kind: EventTick, RemainingSeconds: remaining})

			sinceSync += t.opts.TickInterval
			if degraded || sinceSync < t.opts.SyncInterval {
				continue
			}
			sinceSync = 0

			result, err := t.syncWithRetry(ctx, stintID, remaining)
			if err != nil {
				// Keep counting locally, but stop claiming the countdown is
				// reconciled; the caller should prompt for manual
				// confirmation.
				degraded = true
				t.emit(ctx, Event{Kind: EventSyncDegraded, RemainingSeconds: remaining, Err: err})
				continue
			}

			if result.Status == "completed" || result.Status == "interrupted" {
				// The server is authoritative: the stint no longer exists as
				// a running session, so stop instead of counting it down.
				t.emit(ctx, Event{Kind: EventCompleted, RemainingSeconds: result.RemainingSeconds, External: true})
				return
			}

			drift := remaining - result.RemainingSeconds
			if drift > t.opts.DriftThreshold || drift < -t.opts.DriftThreshold {
				remaining = result.RemainingSeconds
				t.emit(ctx, Event{Kind: EventCorrected, RemainingSeconds: remaining})
			}
		}
	}
}

func (t *Timer) syncWithRetry(ctx context.Context, stintID string, remaining int) (SyncResult, error) {
	var lastErr error
	for attempt := 1; attempt <= t.opts.SyncAttempts; attempt++ {
		result, err := t.server.Sync(ctx, stintID, remaining)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt == t.opts.SyncAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return SyncResult{}, ctx.Err()
		case <-time.After(time.Duration(attempt) * t.opts.SyncBackoff):
		}
	}
	return SyncResult{}, lastErr
}

func (t *Timer) emit(ctx context.Context, event Event) {
	select {
	case t.events <- event:
	default:
		// Never lose a significant event to a full buffer; block until the
		// consumer catches up or the timer is torn down.
		select {
		case t.events <- event:
		case <-ctx.Done():
		}
	}
}

func (t *Timer) emitTick(event Event) {
	select {
	case t.events <- event:
	default:
	}
}
