package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testInvoice(t *testing.T, expiresAt string) *Invoice {
	t.Helper()
	raw := fmt.Sprintf(`{
		"invoiceId": "inv-1",
		"invoiceUrl": "https://pay.example/i/inv-1",
		"address": "bc1qtest",
		"amountBtc": "0.0042",
		"amountUsd": 250,
		"expiresAt": %s,
		"applicationId": 42
	}`, expiresAt)
	var inv Invoice
	if err := json.Unmarshal([]byte(raw), &inv); err != nil {
		t.Fatalf("unmarshal invoice: %v", err)
	}
	return &inv
}

func TestNewWatcherAcceptsFlexibleExpiry(t *testing.T) {
	want := time.Unix(1767225600, 0)
	for _, expiry := range []string{`1767225600`, `1767225600000`, `"2026-01-01T00:00:00Z"`} {
		w, err := NewWatcher(New("http://example.invalid"), testInvoice(t, expiry))
		if err != nil {
			t.Fatalf("expiry %s: %v", expiry, err)
		}
		if !w.expiry.Equal(want) {
			t.Errorf("expiry %s parsed to %v, want %v", expiry, w.expiry.UTC(), want.UTC())
		}
	}

	if _, err := NewWatcher(New("http://example.invalid"), testInvoice(t, `"soon"`)); err == nil {
		t.Error("expected error for unparseable expiry")
	}
}

func TestCountdownClampsAndExpiresLocally(t *testing.T) {
	base := time.Unix(1767225600, 0)
	w, err := NewWatcher(New("http://example.invalid"), testInvoice(t, `1767226500`)) // base + 900s
	if err != nil {
		t.Fatal(err)
	}

	var offset atomic.Int64
	w.Now = func() time.Time { return base.Add(time.Duration(offset.Load()) * time.Second) }

	var transitions []Status
	w.OnStatus = func(s Status) { transitions = append(transitions, s) }

	if got := w.Remaining(); got != 900*time.Second {
		t.Fatalf("Remaining = %v, want 900s", got)
	}

	offset.Store(450)
	w.tickCountdown()
	if got := w.Remaining(); got != 450*time.Second {
		t.Errorf("Remaining = %v, want 450s", got)
	}
	if w.Status() != StatusPending {
		t.Fatalf("status = %v before expiry", w.Status())
	}

	// The clock running out flips the state locally, without waiting on the
	// backend.
	offset.Store(900)
	w.tickCountdown()
	if w.Status() != StatusExpired {
		t.Fatalf("status = %v, want expired", w.Status())
	}
	if got := w.Remaining(); got != 0 {
		t.Errorf("Remaining = %v, want clamp at 0", got)
	}

	// Further ticks past expiry never re-fire or underflow.
	offset.Store(2000)
	w.tickCountdown()
	if got := w.Remaining(); got != 0 {
		t.Errorf("Remaining = %v, want 0", got)
	}
	if len(transitions) != 1 || transitions[0] != StatusExpired {
		t.Errorf("transitions = %v, want single expired", transitions)
	}
}

func TestTerminalStatusNeverReenters(t *testing.T) {
	w, err := NewWatcher(New("http://example.invalid"), testInvoice(t, `1767225600`))
	if err != nil {
		t.Fatal(err)
	}
	if !w.setStatus(StatusExpired) {
		t.Fatal("expected transition to expired")
	}
	w.applyPolled(StatusPaid)
	if w.Status() != StatusExpired {
		t.Errorf("status = %v, terminal expired must not become paid", w.Status())
	}
}

func statusServer(t *testing.T, status func() string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status()})
	}))
	t.Cleanup(srv.Close)
	return New(srv.URL)
}

func TestRunNavigatesAfterPaid(t *testing.T) {
	c := statusServer(t, func() string { return "paid" })

	w, err := NewWatcher(c, testInvoice(t, fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix())))
	if err != nil {
		t.Fatal(err)
	}
	w.CountdownInterval = time.Millisecond
	w.PollInterval = 2 * time.Millisecond
	w.PaidRedirectDelay = time.Millisecond

	var notices []Notice
	w.OnNotice = func(n Notice) { notices = append(notices, n) }
	var navigated atomic.Uint64
	w.Navigate = func(id uint) { navigated.Store(uint64(id)) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != StatusPaid {
		t.Fatalf("status = %v, want paid", status)
	}
	if navigated.Load() != 42 {
		t.Errorf("Navigate called with %d, want application 42", navigated.Load())
	}
	if len(notices) == 0 || notices[0].Title != "Payment Confirmed!" {
		t.Errorf("notices = %v, want payment confirmation", notices)
	}
}

func TestRunStopsPollingAfterLocalExpiry(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	}))
	defer srv.Close()

	// Expiry already in the past: the first countdown tick expires the watcher
	// before any poll fires.
	w, err := NewWatcher(New(srv.URL), testInvoice(t, fmt.Sprintf("%d", time.Now().Add(-time.Second).Unix())))
	if err != nil {
		t.Fatal(err)
	}
	w.CountdownInterval = time.Millisecond
	w.PollInterval = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	status, err := w.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if status != StatusExpired {
		t.Fatalf("status = %v, want expired", status)
	}

	// Run has returned; no ticker survives it.
	before := polls.Load()
	time.Sleep(20 * time.Millisecond)
	if after := polls.Load(); after != before {
		t.Errorf("polling continued after expiry: %d -> %d", before, after)
	}
	if before != 0 {
		t.Errorf("expected no polls before expiry, got %d", before)
	}
}

func TestCheckNowGuardsConcurrentCalls(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "pending"})
	}))
	defer srv.Close()

	w, err := NewWatcher(New(srv.URL), testInvoice(t, fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix())))
	if err != nil {
		t.Fatal(err)
	}

	started := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		close(started)
		_, _ = w.CheckNow(context.Background())
	}()

	<-started
	time.Sleep(10 * time.Millisecond) // let the first check reach the server
	if _, err := w.CheckNow(context.Background()); !errors.Is(err, ErrCheckInFlight) {
		t.Errorf("second CheckNow err = %v, want ErrCheckInFlight", err)
	}

	close(release)
	wg.Wait()

	// The guard resets once the first check completes.
	if _, err := w.CheckNow(context.Background()); err != nil {
		t.Errorf("CheckNow after completion: %v", err)
	}
}

func TestCheckNowSurfacesNotices(t *testing.T) {
	c := statusServer(t, func() string { return "pending" })
	w, err := NewWatcher(c, testInvoice(t, fmt.Sprintf("%d", time.Now().Add(time.Hour).Unix())))
	if err != nil {
		t.Fatal(err)
	}
	var notices []Notice
	w.OnNotice = func(n Notice) { notices = append(notices, n) }

	status, err := w.CheckNow(context.Background())
	if err != nil {
		t.Fatalf("CheckNow: %v", err)
	}
	if status != StatusPending {
		t.Errorf("status = %v, want pending", status)
	}
	if len(notices) != 1 || notices[0].Title != "Status Updated" {
		t.Errorf("notices = %v, want status update", notices)
	}
}

func TestUserFacingCreateError(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{errors.New("BTCPay API error (400): No wallet has been linked to the BTCPay store. Please configure a wallet first."), "not linked to a wallet"},
		{errors.New("Payment processor not configured. Please set BTCPAY_API_KEY and BTCPAY_STORE_ID"), "not configured yet"},
		{ErrInvalidInvoiceData, "missing required information"},
		{errors.New("Application not found"), "submit your application again"},
		{errors.New("context deadline exceeded"), "Failed to create payment invoice"},
		{nil, "Failed to create payment invoice"},
	}
	for _, tc := range cases {
		got := UserFacingCreateError(tc.err)
		if !strings.Contains(got, tc.want) {
			t.Errorf("UserFacingCreateError(%v) = %q, want it to contain %q", tc.err, got, tc.want)
		}
	}
}
