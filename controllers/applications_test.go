package controllers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gorilla/mux"
)

func withMuxVars(r *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(r, vars)
}

func validSubmission() map[string]interface{} {
	return map[string]interface{}{
		"firstName":       "Jane",
		"lastName":        "Doe",
		"phone":           "+12025550147",
		"email":           "Jane@Example.com",
		"dob":             "1990-05-12",
		"propertyAddress": "12 Elm St",
		"ssn":             "enc:v1:abcdef0123456789",
		"income":          "5200",
		"depositAmount":   "250",
	}
}

func TestSubmitApplicationInvalidJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	SubmitApplicationHandler(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Invalid JSON") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestSubmitApplicationValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(m map[string]interface{})
		want   string
	}{
		{"missing dob", func(m map[string]interface{}) { delete(m, "dob") }, "DOB is required"},
		{"bad dob format", func(m map[string]interface{}) { m["dob"] = "05/12/1990" }, "YYYY-MM-DD"},
		{"underage", func(m map[string]interface{}) { m["dob"] = "2015-01-01" }, "at least 18"},
		{"bad email", func(m map[string]interface{}) { m["email"] = "not-an-email" }, "valid email"},
		{"bad phone", func(m map[string]interface{}) { m["phone"] = "call me" }, "valid phone"},
		{"bad deposit", func(m map[string]interface{}) { m["depositAmount"] = "-5" }, "positive amount"},
		{"missing ssn", func(m map[string]interface{}) { delete(m, "ssn") }, "SSN is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := validSubmission()
			tc.mutate(payload)
			rec := postJSON(t, SubmitApplicationHandler, payload)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400 (body %s)", rec.Code, rec.Body.String())
			}
			if !strings.Contains(rec.Body.String(), tc.want) {
				t.Errorf("body %q missing %q", rec.Body.String(), tc.want)
			}
		})
	}
}

func TestSubmitApplicationSuccess(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO `applications`").
		WillReturnResult(sqlmock.NewResult(12, 1))

	rec := postJSON(t, SubmitApplicationHandler, validSubmission())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		TempID        string `json:"tempId"`
		ApplicationID uint   `json:"applicationId"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ApplicationID != 12 {
		t.Errorf("applicationId = %d, want 12", resp.ApplicationID)
	}
	if len(resp.TempID) != 32 {
		t.Errorf("tempId = %q, want 32 hex chars", resp.TempID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("db expectations: %v", err)
	}
}

func TestSubmitApplicationInsertFailure(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectExec("INSERT INTO `applications`").
		WillReturnError(errors.New("duplicate entry"))

	rec := postJSON(t, SubmitApplicationHandler, validSubmission())
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Failed to save application") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestDecodeDataURL(t *testing.T) {
	payload := []byte{0xFF, 0xD8, 0xFF, 0xE0}
	url := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(payload)
	got, err := decodeDataURL(url)
	if err != nil {
		t.Fatalf("decodeDataURL: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("decoded %x, want %x", got, payload)
	}

	if _, err := decodeDataURL(""); !errors.Is(err, errNoDataURL) {
		t.Errorf("empty input: err = %v, want errNoDataURL", err)
	}
	if _, err := decodeDataURL("no-comma-here"); !errors.Is(err, errNoDataURL) {
		t.Errorf("missing comma: err = %v, want errNoDataURL", err)
	}
	if _, err := decodeDataURL("data:image/jpeg;base64,!!!"); err == nil || errors.Is(err, errNoDataURL) {
		t.Errorf("bad base64: err = %v, want decode error", err)
	}
}

func TestGetApplicationNotFound(t *testing.T) {
	mock := newMockDB(t)
	mock.ExpectQuery("SELECT (.+) FROM `applications` WHERE id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	req := httptest.NewRequest(http.MethodGet, "/v1/applications/999", nil)
	req = withMuxVars(req, map[string]string{"id": "999"})
	rec := httptest.NewRecorder()
	GetApplicationHandler(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Application not found") {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestGetApplicationDashboardShape(t *testing.T) {
	mock := newMockDB(t)
	rows := sqlmock.NewRows([]string{
		"id", "temp_id", "first_name", "last_name", "email",
		"property_address", "deposit_amount", "payment_status", "payment_method", "payment_provider",
	}).AddRow(12, "tmp-abc", "Jane", "Doe", "jane@example.com", "12 Elm St", 250.0, "paid", "bitcoin", "btcpay")
	mock.ExpectQuery("SELECT (.+) FROM `applications` WHERE id").WillReturnRows(rows)

	req := httptest.NewRequest(http.MethodGet, "/v1/applications/12", nil)
	req = withMuxVars(req, map[string]string{"id": "12"})
	rec := httptest.NewRecorder()
	GetApplicationHandler(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success {
		t.Fatal("expected success envelope")
	}
	if resp.Data["name"] != "Jane Doe" {
		t.Errorf("name = %v", resp.Data["name"])
	}
	payment, _ := resp.Data["payment"].(map[string]interface{})
	if payment["status"] != "paid" {
		t.Errorf("payment status = %v, want paid", payment["status"])
	}
	if _, leaked := resp.Data["ssn_encrypted"]; leaked {
		t.Error("dashboard must never expose the encrypted SSN")
	}
}
