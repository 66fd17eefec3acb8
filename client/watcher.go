package client

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Status mirrors the application payment lifecycle. paid, expired and failed
// are terminal for a given invoice.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusExpired Status = "expired"
	StatusFailed  Status = "failed"
)

// IsTerminal reports whether no further transitions are possible without a
// new invoice.
func (s Status) IsTerminal() bool {
	return s == StatusPaid || s == StatusExpired || s == StatusFailed
}

// Notice is a user-facing notification surfaced by the watcher.
type Notice struct {
	Title  string
	Detail string
}

// ErrCheckInFlight is returned by CheckNow while a previous manual check has
// not finished.
var ErrCheckInFlight = errors.New("status check already in flight")

// Watcher runs the payment page's timer loop: a countdown recomputed from
// the invoice expiry every CountdownInterval, and a status poll every
// PollInterval while the payment is pending. All timers stop when Run
// returns or its context is cancelled.
type Watcher struct {
	client  *Client
	invoice *Invoice
	expiry  time.Time

	CountdownInterval time.Duration
	PollInterval      time.Duration
	PaidRedirectDelay time.Duration

	// Now is the clock; replaceable in tests.
	Now func() time.Time

	// OnRemaining receives the clamped time left on every countdown tick.
	OnRemaining func(remaining time.Duration)
	// OnStatus fires once per status transition.
	OnStatus func(status Status)
	// OnNotice surfaces user-facing notifications (payment confirmed, manual
	// check results).
	OnNotice func(n Notice)
	// Navigate is invoked with the application id after a paid invoice, once
	// PaidRedirectDelay has elapsed.
	Navigate func(applicationID uint)

	mu       sync.Mutex
	status   Status
	checking bool
}

// NewWatcher builds a watcher for a freshly created invoice. The expiry
// instant may be unix seconds, unix milliseconds or a parseable timestamp.
func NewWatcher(c *Client, invoice *Invoice) (*Watcher, error) {
	expiry, ok := invoice.ExpiresAt.Time()
	if !ok {
		return nil, errors.New("invoice has no parseable expiry")
	}
	return &Watcher{
		client:            c,
		invoice:           invoice,
		expiry:            expiry,
		CountdownInterval: time.Second,
		PollInterval:      10 * time.Second,
		PaidRedirectDelay: 2 * time.Second,
		Now:               time.Now,
		status:            StatusPending,
	}, nil
}

// Status returns the current payment status.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// Remaining returns the time left until expiry, clamped at zero.
func (w *Watcher) Remaining() time.Duration {
	remaining := w.expiry.Sub(w.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// setStatus transitions the state machine. Terminal states never re-enter
// pending; repeated transitions to the same state are ignored.
func (w *Watcher) setStatus(next Status) bool {
	w.mu.Lock()
	if w.status == next || w.status.IsTerminal() {
		w.mu.Unlock()
		return false
	}
	w.status = next
	w.mu.Unlock()

	if w.OnStatus != nil {
		w.OnStatus(next)
	}
	return true
}

// tickCountdown recomputes remaining time and expires the invoice locally
// when the clock runs out while still pending. No backend confirmation is
// awaited for that transition.
func (w *Watcher) tickCountdown() {
	remaining := w.Remaining()
	if w.OnRemaining != nil {
		w.OnRemaining(remaining)
	}
	if remaining == 0 && w.Status() == StatusPending {
		w.setStatus(StatusExpired)
	}
}

// poll queries the backend once. Errors are logged and swallowed; the next
// scheduled tick retries.
func (w *Watcher) poll(ctx context.Context) {
	status, err := w.client.InvoiceStatus(ctx, w.invoice.InvoiceID)
	if err != nil {
		log.Printf("[watcher] status poll failed for invoice %s: %v", w.invoice.InvoiceID, err)
		return
	}
	w.applyPolled(status)
}

func (w *Watcher) applyPolled(status Status) {
	switch status {
	case StatusPaid:
		if w.setStatus(StatusPaid) && w.OnNotice != nil {
			w.OnNotice(Notice{Title: "Payment Confirmed!", Detail: "Your rental application payment has been confirmed."})
		}
	case StatusExpired, StatusFailed:
		w.setStatus(status)
	}
}

// CheckNow performs an immediate status query outside the polling cadence.
// Guarded against concurrent invocation: a second call while one is in
// flight returns ErrCheckInFlight.
func (w *Watcher) CheckNow(ctx context.Context) (Status, error) {
	w.mu.Lock()
	if w.checking {
		w.mu.Unlock()
		return w.Status(), ErrCheckInFlight
	}
	w.checking = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.checking = false
		w.mu.Unlock()
	}()

	status, err := w.client.InvoiceStatus(ctx, w.invoice.InvoiceID)
	if err != nil {
		if w.OnNotice != nil {
			w.OnNotice(Notice{Title: "Error", Detail: "Failed to check payment status"})
		}
		return w.Status(), err
	}

	w.applyPolled(status)
	if status != StatusPaid && w.OnNotice != nil {
		w.OnNotice(Notice{Title: "Status Updated", Detail: "Payment status: " + string(status)})
	}
	return w.Status(), nil
}

// Run drives the countdown and polling loop until the payment reaches a
// terminal state or ctx is cancelled. On paid it waits PaidRedirectDelay and
// calls Navigate with the application id. From expired, the caller restarts
// the whole flow by creating a new invoice and a new watcher.
func (w *Watcher) Run(ctx context.Context) (Status, error) {
	countdown := time.NewTicker(w.CountdownInterval)
	defer countdown.Stop()
	poll := time.NewTicker(w.PollInterval)
	defer poll.Stop()

	w.tickCountdown()

	for {
		if status := w.Status(); status.IsTerminal() {
			return w.finish(ctx, status)
		}

		select {
		case <-ctx.Done():
			return w.Status(), ctx.Err()
		case <-countdown.C:
			w.tickCountdown()
		case <-poll.C:
			if w.Status() == StatusPending {
				w.poll(ctx)
			}
		}
	}
}

func (w *Watcher) finish(ctx context.Context, status Status) (Status, error) {
	if status == StatusPaid && w.Navigate != nil {
		select {
		case <-time.After(w.PaidRedirectDelay):
			w.Navigate(w.invoice.ApplicationID)
		case <-ctx.Done():
			return status, ctx.Err()
		}
	}
	return status, nil
}
