// Package client drives the Bitcoin deposit flow against the rentalflow API:
// invoice creation, a countdown against the invoice expiry, and status
// polling until the payment reaches a terminal state.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"rentalflow/utils"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Invoice is the payment page's view of a created invoice.
type Invoice struct {
	InvoiceID     string         `json:"invoiceId"`
	InvoiceURL    string         `json:"invoiceUrl"`
	Address       string         `json:"address"`
	AmountBTC     string         `json:"amountBtc"`
	AmountUSD     float64        `json:"amountUsd"`
	ExpiresAt     utils.FlexTime `json:"expiresAt"`
	ApplicationID uint           `json:"applicationId"`
}

// ErrInvalidInvoiceData means the backend answered but the invoice is missing
// its address or amount.
var ErrInvalidInvoiceData = errors.New("Invalid payment invoice data. Missing address or amount.")

// CreateInvoice requests invoice creation for a temporary application id.
func (c *Client) CreateInvoice(ctx context.Context, tempID string) (*Invoice, error) {
	body, _ := json.Marshal(map[string]string{"tempId": tempID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments/create", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return nil, errors.New(apiErr.Error)
		}
		return nil, fmt.Errorf("invoice creation failed: %d", resp.StatusCode)
	}

	var invoice Invoice
	if err := json.Unmarshal(respBody, &invoice); err != nil {
		return nil, fmt.Errorf("parse invoice: %w", err)
	}
	if invoice.Address == "" || invoice.AmountBTC == "" {
		return nil, ErrInvalidInvoiceData
	}
	return &invoice, nil
}

// InvoiceStatus queries the current payment status of an invoice.
func (c *Client) InvoiceStatus(ctx context.Context, invoiceID string) (Status, error) {
	body, _ := json.Marshal(map[string]string{"invoiceId": invoiceID})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments/status", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			return "", errors.New(apiErr.Error)
		}
		return "", fmt.Errorf("status check failed: %d", resp.StatusCode)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("parse status: %w", err)
	}
	return Status(result.Status), nil
}

// UserFacingCreateError classifies an invoice-creation failure into a short
// actionable message for the applicant. Operator detail stays in the error
// itself.
func UserFacingCreateError(err error) string {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	switch {
	case strings.Contains(msg, "No wallet has been linked"):
		return "The payment store is not linked to a wallet. Please try again later."
	case strings.Contains(msg, "not configured") || strings.Contains(msg, "configuration missing"):
		return "The payment system is not configured yet. Please try again later."
	case strings.Contains(msg, "Invalid payment invoice data"):
		return "The payment invoice was created but is missing required information. Please try again later."
	case strings.Contains(msg, "Application not found"):
		return "Application data not found. Please submit your application again from the beginning."
	case msg == "":
		return "Failed to create payment invoice. Please try again."
	}
	return "Failed to create payment invoice. Please try again."
}
