package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"rentalflow/models"
)

// DefaultBTCPayURL is the hosted BTCPay server used when BTCPAY_URL is unset.
const DefaultBTCPayURL = "https://btcpay.coincharge.io"

// ErrBTCPayNotConfigured distinguishes missing credentials from upstream
// failures so operators see the actual fix.
var ErrBTCPayNotConfigured = errors.New("Payment processor not configured. Please set BTCPAY_API_KEY and BTCPAY_STORE_ID")

// ErrPaymentAddressUnresolved means the invoice exists at the processor but no
// settlement address could be extracted after all fallback lookups. Usually a
// store without a linked wallet.
var ErrPaymentAddressUnresolved = errors.New("Failed to generate Bitcoin address. This usually means the BTCPay store has no wallet configured")

// ErrPaymentAmountUnresolved is the amount-side counterpart of the above.
var ErrPaymentAmountUnresolved = errors.New("Failed to calculate Bitcoin amount. Please check BTCPay store configuration")

type BTCPayClient struct {
	BaseURL    string
	APIKey     string
	StoreID    string
	HTTPClient *http.Client
}

// NewBTCPayClientFromEnv builds a client from BTCPAY_URL, BTCPAY_API_KEY and
// BTCPAY_STORE_ID. Returns ErrBTCPayNotConfigured when credentials are absent.
func NewBTCPayClientFromEnv() (*BTCPayClient, error) {
	apiKey := strings.TrimSpace(os.Getenv("BTCPAY_API_KEY"))
	storeID := strings.TrimSpace(os.Getenv("BTCPAY_STORE_ID"))
	baseURL := strings.TrimSpace(os.Getenv("BTCPAY_URL"))
	if baseURL == "" {
		baseURL = DefaultBTCPayURL
	}
	if apiKey == "" || storeID == "" {
		return nil, ErrBTCPayNotConfigured
	}
	return &BTCPayClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		StoreID:    storeID,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// FlexString accepts JSON strings and bare numbers; BTCPay emits amounts both
// ways depending on version.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*f = FlexString(v)
		return nil
	}
	*f = FlexString(s)
	return nil
}

func (f FlexString) String() string { return string(f) }

// FlexTime accepts unix seconds, unix milliseconds or a parseable timestamp.
type FlexTime struct {
	raw json.RawMessage
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	t.raw = append(t.raw[:0], data...)
	return nil
}

// Time resolves the underlying representation. ok is false when the value is
// absent or unparseable.
func (t FlexTime) Time() (time.Time, bool) {
	s := strings.TrimSpace(string(t.raw))
	if s == "" || s == "null" {
		return time.Time{}, false
	}
	if s[0] == '"' {
		var v string
		if json.Unmarshal(t.raw, &v) != nil {
			return time.Time{}, false
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return parsed, true
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return unixFlexible(n), true
		}
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return unixFlexible(n), true
	}
	if fval, err := strconv.ParseFloat(s, 64); err == nil {
		return unixFlexible(int64(fval)), true
	}
	return time.Time{}, false
}

// unixFlexible treats values above 1e12 as milliseconds, otherwise seconds.
func unixFlexible(n int64) time.Time {
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n)
	}
	return time.Unix(n, 0)
}

type BTCPayCryptoInfo struct {
	Address      string     `json:"address"`
	CryptoAmount FlexString `json:"cryptoAmount"`
}

type BTCPayInvoice struct {
	ID             string             `json:"id"`
	Status         string             `json:"status"`
	CheckoutLink   string             `json:"checkoutLink"`
	BitcoinAddress string             `json:"bitcoinAddress"`
	BTCPrice       FlexString         `json:"btcPrice"`
	TransactionID  string             `json:"transactionId"`
	ExpirationTime FlexTime           `json:"expirationTime"`
	CryptoInfo     []BTCPayCryptoInfo `json:"cryptoInfo"`
}

// Address returns the settlement address carried directly on the invoice, if any.
func (inv *BTCPayInvoice) Address() string {
	if inv.BitcoinAddress != "" {
		return inv.BitcoinAddress
	}
	if len(inv.CryptoInfo) > 0 {
		return inv.CryptoInfo[0].Address
	}
	return ""
}

// Amount returns the BTC amount carried directly on the invoice, if any.
func (inv *BTCPayInvoice) Amount() string {
	if inv.BTCPrice != "" {
		return inv.BTCPrice.String()
	}
	if len(inv.CryptoInfo) > 0 {
		return inv.CryptoInfo[0].CryptoAmount.String()
	}
	return ""
}

type BTCPayPaymentMethod struct {
	PaymentMethodID    string     `json:"paymentMethodId"`
	PaymentMethod      string     `json:"paymentMethod"`
	PaymentType        string     `json:"paymentType"`
	CryptoCode         string     `json:"cryptoCode"`
	Destination        string     `json:"destination"`
	Address            string     `json:"address"`
	PaymentDestination string     `json:"paymentDestination"`
	Amount             FlexString `json:"amount"`
	Due                FlexString `json:"due"`
	CryptoAmount       FlexString `json:"cryptoAmount"`
}

// ResolvedAddress returns the first populated destination field.
func (m *BTCPayPaymentMethod) ResolvedAddress() string {
	for _, v := range []string{m.Destination, m.Address, m.PaymentDestination} {
		if v != "" {
			return v
		}
	}
	return ""
}

// ResolvedAmount returns the first populated amount field.
func (m *BTCPayPaymentMethod) ResolvedAmount() string {
	for _, v := range []FlexString{m.Amount, m.Due, m.CryptoAmount} {
		if v != "" {
			return v.String()
		}
	}
	return ""
}

// FindBitcoinOnChain selects the on-chain Bitcoin method. The exact
// BTC-CHAIN id wins over a substring match on the generic type fields.
func FindBitcoinOnChain(methods []BTCPayPaymentMethod) *BTCPayPaymentMethod {
	for i := range methods {
		if methods[i].PaymentMethodID == "BTC-CHAIN" {
			return &methods[i]
		}
	}
	for i := range methods {
		m := &methods[i]
		tag := strings.ToUpper(m.PaymentMethod + m.PaymentType + m.CryptoCode)
		if strings.Contains(tag, "BTC") {
			return m
		}
	}
	return nil
}

// MapInvoiceStatus maps the processor's status vocabulary to the local enum.
// Total and pure: unrecognized values stay pending.
func MapInvoiceStatus(status string) string {
	switch status {
	case "Settled", "Processing":
		return models.PaymentStatusPaid
	case "Expired":
		return models.PaymentStatusExpired
	case "Invalid":
		return models.PaymentStatusFailed
	}
	return models.PaymentStatusPending
}

type createInvoiceRequest struct {
	Amount   float64                `json:"amount"`
	Currency string                 `json:"currency"`
	Metadata map[string]interface{} `json:"metadata"`
	Checkout struct {
		ExpirationMinutes int    `json:"expirationMinutes"`
		RedirectURL       string `json:"redirectURL,omitempty"`
	} `json:"checkout"`
}

// CreateInvoice creates an invoice for a fiat amount with a fixed expiration
// window. Non-success responses are classified into operator-readable
// messages; the raw body is never swallowed for unrecognized failures.
func (c *BTCPayClient) CreateInvoice(ctx context.Context, amount float64, currency string, metadata map[string]interface{}, expirationMinutes int, redirectURL string) (*BTCPayInvoice, error) {
	reqBody := createInvoiceRequest{
		Amount:   amount,
		Currency: currency,
		Metadata: metadata,
	}
	reqBody.Checkout.ExpirationMinutes = expirationMinutes
	reqBody.Checkout.RedirectURL = redirectURL

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/v1/stores/%s/invoices", c.BaseURL, c.StoreID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "token "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, classifyCreateError(resp.StatusCode, string(respBody))
	}

	var invoice BTCPayInvoice
	if err := json.Unmarshal(respBody, &invoice); err != nil {
		return nil, fmt.Errorf("parse invoice: %w (body: %s)", err, string(respBody))
	}
	return &invoice, nil
}

// classifyCreateError turns known failure patterns into actionable text.
func classifyCreateError(status int, body string) error {
	msg := body
	switch {
	case strings.Contains(body, "No wallet"):
		msg = "No wallet has been linked to the BTCPay store. Please configure a wallet first."
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		msg = "Authentication failed. Please check BTCPAY_API_KEY is correct and has proper permissions."
	case status == http.StatusNotFound:
		msg = "BTCPay store not found. Please check BTCPAY_STORE_ID is correct."
	}
	return fmt.Errorf("BTCPay API error (%d): %s", status, msg)
}

// GetInvoice fetches the current invoice state from the processor.
func (c *BTCPayClient) GetInvoice(ctx context.Context, invoiceID string) (*BTCPayInvoice, error) {
	url := fmt.Sprintf("%s/api/v1/stores/%s/invoices/%s", c.BaseURL, c.StoreID, invoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("BTCPay API error: %d", resp.StatusCode)
	}

	var invoice BTCPayInvoice
	if err := json.Unmarshal(respBody, &invoice); err != nil {
		return nil, fmt.Errorf("parse invoice: %w", err)
	}
	return &invoice, nil
}

// ListPaymentMethods fetches the enumerated payment methods of an invoice.
func (c *BTCPayClient) ListPaymentMethods(ctx context.Context, invoiceID string) ([]BTCPayPaymentMethod, error) {
	url := fmt.Sprintf("%s/api/v1/stores/%s/invoices/%s/payment-methods", c.BaseURL, c.StoreID, invoiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "token "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("BTCPay API error: %d", resp.StatusCode)
	}

	var methods []BTCPayPaymentMethod
	if err := json.Unmarshal(respBody, &methods); err != nil {
		return nil, fmt.Errorf("parse payment methods: %w", err)
	}
	return methods, nil
}
