package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateInvoiceSendsTempID(t *testing.T) {
	var captured map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/create" {
			t.Errorf("path = %s", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &captured)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"invoiceId":     "inv-1",
			"invoiceUrl":    "https://pay.example/i/inv-1",
			"address":       "bc1qtest",
			"amountBtc":     "0.0042",
			"amountUsd":     250,
			"expiresAt":     1767225600,
			"applicationId": 42,
		})
	}))
	defer srv.Close()

	inv, err := New(srv.URL).CreateInvoice(context.Background(), "tmp-abc")
	if err != nil {
		t.Fatalf("CreateInvoice: %v", err)
	}
	if captured["tempId"] != "tmp-abc" {
		t.Errorf("tempId = %q", captured["tempId"])
	}
	if inv.InvoiceID != "inv-1" || inv.Address != "bc1qtest" || inv.ApplicationID != 42 {
		t.Errorf("unexpected invoice: %+v", inv)
	}
}

func TestCreateInvoiceRejectsIncompleteInvoice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"invoiceId":  "inv-1",
			"invoiceUrl": "https://pay.example/i/inv-1",
			"amountUsd":  250,
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateInvoice(context.Background(), "tmp-abc")
	if !errors.Is(err, ErrInvalidInvoiceData) {
		t.Fatalf("err = %v, want ErrInvalidInvoiceData", err)
	}
}

func TestCreateInvoicePropagatesBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "Application not found"})
	}))
	defer srv.Close()

	_, err := New(srv.URL).CreateInvoice(context.Background(), "tmp-missing")
	if err == nil || err.Error() != "Application not found" {
		t.Fatalf("err = %v, want backend error verbatim", err)
	}
}

func TestInvoiceStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/status" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "expired"})
	}))
	defer srv.Close()

	status, err := New(srv.URL).InvoiceStatus(context.Background(), "inv-1")
	if err != nil {
		t.Fatalf("InvoiceStatus: %v", err)
	}
	if status != StatusExpired {
		t.Errorf("status = %v, want expired", status)
	}
}
