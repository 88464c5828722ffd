// Package retry provides bounded exponential-backoff retries.
//
// Two flavours are offered. Dispatcher holds cancellable tickets and runs them
// from the caller's own loop via Tick, so operations never execute on a timer
// goroutine; this is what the scene registry uses from the host update cycle.
// Do is a blocking helper for code that already lives on its own goroutine
// (asset fetches, socket reconnects).
package retry

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"
)

var (
	// ErrExhausted is reported when a ticket used up its attempt budget.
	ErrExhausted = errors.New("retry: attempts exhausted")
	// ErrCancelled is reported when a ticket's target went away.
	ErrCancelled = errors.New("retry: cancelled")
)

// Policy describes the attempt budget and delay curve.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Cap         time.Duration
	Factor      float64
}

// DefaultPolicy is 6 attempts starting at 300ms, growing by 1.5x, capped at 2s.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 6,
		BaseDelay:   300 * time.Millisecond,
		Cap:         2 * time.Second,
		Factor:      1.5,
	}
}

// Delay returns the wait before attempt n (0-indexed): min(base * factor^n, cap).
func (p Policy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	factor := p.Factor
	if factor <= 0 {
		factor = 1
	}
	d := float64(p.BaseDelay) * math.Pow(factor, float64(n))
	if p.Cap > 0 && d > float64(p.Cap) {
		return p.Cap
	}
	return time.Duration(d)
}

// Outcome is what an operation reports after one attempt.
type Outcome int

const (
	// Done means the operation succeeded; the ticket is discarded.
	Done Outcome = iota
	// Again means the target was not ready; try later if budget remains.
	Again
	// Cancel means the target is gone for good; drop the ticket silently.
	Cancel
)

// Operation performs one attempt. attempt starts at 1.
type Operation func(attempt int) Outcome

// Clock supplies the current time. Tests substitute a manual clock.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock returns a Clock backed by time.Now.
func SystemClock() Clock { return systemClock{} }

type ticketState int

const (
	statePending ticketState = iota
	stateDone
	stateCancelled
	stateAbandoned
)

// Ticket is one deferred, cancellable operation.
type Ticket struct {
	target    string
	attempt   int
	due       time.Time
	scheduled time.Time
	op        Operation
	onAbandon func(error)
	state     ticketState
}

// Target returns the key the ticket is bound to.
func (t *Ticket) Target() string { return t.target }

// Attempts returns how many attempts have run.
func (t *Ticket) Attempts() int { return t.attempt }

// Due returns when the next attempt runs.
func (t *Ticket) Due() time.Time { return t.due }

// ScheduledAt returns when the ticket was created.
func (t *Ticket) ScheduledAt() time.Time { return t.scheduled }

// Pending reports whether the ticket still waits for an attempt.
func (t *Ticket) Pending() bool { return t.state == statePending }

// Cancelled reports whether the ticket was dropped because its target went away.
func (t *Ticket) Cancelled() bool { return t.state == stateCancelled }

// Abandoned reports whether the ticket ran out of attempts.
func (t *Ticket) Abandoned() bool { return t.state == stateAbandoned }

// Dispatcher owns pending tickets. It is not safe for concurrent use; call it
// from one goroutine (the host update loop).
type Dispatcher struct {
	policy  Policy
	clock   Clock
	tickets []*Ticket
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock overrides the time source.
func WithClock(c Clock) Option {
	return func(d *Dispatcher) {
		if c != nil {
			d.clock = c
		}
	}
}

// NewDispatcher creates a dispatcher using the given policy.
func NewDispatcher(p Policy, opts ...Option) *Dispatcher {
	d := &Dispatcher{policy: p, clock: SystemClock()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Policy returns the dispatcher's policy.
func (d *Dispatcher) Policy() Policy { return d.policy }

// Schedule queues op for target. The first attempt runs after Delay(0).
// onAbandon, if set, receives ErrExhausted when the budget runs out.
func (d *Dispatcher) Schedule(target string, op Operation, onAbandon func(error)) *Ticket {
	now := d.clock.Now()
	t := &Ticket{
		target:    target,
		due:       now.Add(d.policy.Delay(0)),
		scheduled: now,
		op:        op,
		onAbandon: onAbandon,
	}
	d.tickets = append(d.tickets, t)
	return t
}

// Tick runs every ticket that is due. Operations may schedule or cancel
// tickets re-entrantly.
func (d *Dispatcher) Tick() int {
	now := d.clock.Now()

	var due []*Ticket
	for _, t := range d.tickets {
		if t.state == statePending && !t.due.After(now) {
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].due.Before(due[j].due) })

	for _, t := range due {
		// An earlier operation in this tick may have cancelled it
		if t.state != statePending {
			continue
		}
		t.attempt++
		switch t.op(t.attempt) {
		case Done:
			t.state = stateDone
		case Cancel:
			t.state = stateCancelled
		default:
			if t.attempt >= d.policy.MaxAttempts {
				t.state = stateAbandoned
				if t.onAbandon != nil {
					t.onAbandon(ErrExhausted)
				}
				continue
			}
			t.due = now.Add(d.policy.Delay(t.attempt))
		}
	}

	d.compact()
	return len(due)
}

// CancelTarget drops every pending ticket bound to target and returns how
// many were dropped.
func (d *Dispatcher) CancelTarget(target string) int {
	n := 0
	for _, t := range d.tickets {
		if t.state == statePending && t.target == target {
			t.state = stateCancelled
			n++
		}
	}
	d.compact()
	return n
}

// CancelAll drops every pending ticket.
func (d *Dispatcher) CancelAll() int {
	n := 0
	for _, t := range d.tickets {
		if t.state == statePending {
			t.state = stateCancelled
			n++
		}
	}
	d.tickets = nil
	return n
}

// Pending returns the number of pending tickets for target, or for all
// targets when target is empty.
func (d *Dispatcher) Pending(target string) int {
	n := 0
	for _, t := range d.tickets {
		if t.state == statePending && (target == "" || t.target == target) {
			n++
		}
	}
	return n
}

func (d *Dispatcher) compact() {
	kept := d.tickets[:0]
	for _, t := range d.tickets {
		if t.state == statePending {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(d.tickets); i++ {
		d.tickets[i] = nil
	}
	d.tickets = kept
}

type stopError struct{ err error }

func (e stopError) Error() string { return e.err.Error() }
func (e stopError) Unwrap() error { return e.err }

// Stop wraps err so Do returns it immediately without further attempts.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return stopError{err: err}
}

// Do calls fn until it returns nil, the policy is exhausted, or ctx ends.
// fn receives the 1-based attempt number. The last error is wrapped together
// with ErrExhausted.
func Do(ctx context.Context, p Policy, fn func(attempt int) error) error {
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if last = fn(attempt); last == nil {
			return nil
		}
		var stop stopError
		if errors.As(last, &stop) {
			return stop.err
		}
		if attempt == p.MaxAttempts {
			break
		}
		timer := time.NewTimer(p.Delay(attempt - 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(ctx.Err(), last)
		case <-timer.C:
		}
	}
	return errors.Join(ErrExhausted, last)
}
