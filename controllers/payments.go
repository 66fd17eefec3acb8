package controllers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"rentalflow/database"
	"rentalflow/models"
	"rentalflow/utils"

	"gorm.io/gorm"
)

const defaultDepositUSD = 100.0
const invoiceExpirationMinutes = 15

var errApplicationNotFound = errors.New("Application not found")

type createPaymentRequest struct {
	TempID string `json:"tempId"`
}

type createPaymentResponse struct {
	InvoiceID     string  `json:"invoiceId"`
	InvoiceURL    string  `json:"invoiceUrl"`
	Address       string  `json:"address"`
	AmountBTC     string  `json:"amountBtc"`
	AmountUSD     float64 `json:"amountUsd"`
	ExpiresAt     string  `json:"expiresAt"`
	ApplicationID uint    `json:"applicationId"`
}

// POST /v1/payments/create
//
// Creates a BTCPay invoice for the application's deposit and resolves a
// concrete pay-to address and BTC amount. Resolution is a three-tier
// fallback: creation response, then invoice details, then the enumerated
// payment methods. Each follow-up is issued only while something is still
// missing. Not idempotent: a second call creates a second processor invoice
// and overwrites the persisted fields.
func CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WritePaymentError(w, http.StatusInternalServerError, errors.New("Invalid JSON in request body"), err.Error())
		return
	}
	if req.TempID == "" {
		utils.WritePaymentError(w, http.StatusInternalServerError, errors.New("Missing tempId"), "")
		return
	}

	ctx := r.Context()

	var app models.Application
	if err := database.DB.Where("temp_id = ?", req.TempID).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[payments] application not found for temp_id=%s", req.TempID)
			utils.WritePaymentError(w, http.StatusInternalServerError, errApplicationNotFound, "")
			return
		}
		log.Printf("[payments] application lookup failed: %v", err)
		utils.WritePaymentError(w, http.StatusInternalServerError, errors.New("Database error"), err.Error())
		return
	}

	bp, err := utils.NewBTCPayClientFromEnv()
	if err != nil {
		log.Printf("[payments] %v", err)
		utils.WritePaymentError(w, http.StatusInternalServerError, err, "")
		return
	}

	amountUSD := app.DepositAmount
	if amountUSD <= 0 {
		amountUSD = defaultDepositUSD
	}

	invoice, err := bp.CreateInvoice(ctx, amountUSD, "USD", map[string]interface{}{
		"applicationId": app.ID,
		"tempId":        req.TempID,
	}, invoiceExpirationMinutes, os.Getenv("PAYMENT_REDIRECT_URL"))
	if err != nil {
		log.Printf("[payments] invoice creation failed: %v", err)
		utils.WritePaymentError(w, http.StatusInternalServerError, err, "")
		return
	}

	address := invoice.Address()
	amountBTC := invoice.Amount()
	expiresAt, _ := invoice.ExpirationTime.Time()

	if address == "" || amountBTC == "" {
		details, derr := bp.GetInvoice(ctx, invoice.ID)
		if derr != nil {
			log.Printf("[payments] invoice details lookup failed: %v", derr)
		} else {
			if address == "" {
				address = details.Address()
			}
			if amountBTC == "" {
				amountBTC = details.Amount()
			}
			if expiresAt.IsZero() {
				if t, ok := details.ExpirationTime.Time(); ok {
					expiresAt = t
				}
			}
		}
	}

	if address == "" {
		methods, merr := bp.ListPaymentMethods(ctx, invoice.ID)
		if merr != nil {
			log.Printf("[payments] payment methods lookup failed: %v", merr)
		} else if m := utils.FindBitcoinOnChain(methods); m != nil {
			address = m.ResolvedAddress()
			if amountBTC == "" {
				amountBTC = m.ResolvedAmount()
			}
		} else {
			log.Printf("[payments] no on-chain BTC payment method on invoice %s", invoice.ID)
		}
	}

	// Unresolved after all three attempts signals a processor/wallet
	// misconfiguration; not retried here.
	if address == "" {
		log.Printf("[payments] no address resolved for invoice %s", invoice.ID)
		utils.WritePaymentError(w, http.StatusInternalServerError, utils.ErrPaymentAddressUnresolved, "")
		return
	}
	if amountBTC == "" {
		log.Printf("[payments] no BTC amount resolved for invoice %s", invoice.ID)
		utils.WritePaymentError(w, http.StatusInternalServerError, utils.ErrPaymentAmountUnresolved, "")
		return
	}
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(invoiceExpirationMinutes * time.Minute)
	}

	now := time.Now()
	updates := map[string]interface{}{
		"payment_invoice_id": invoice.ID,
		"payment_address":    address,
		"payment_amount":     amountBTC,
		"payment_currency":   "BTC",
		"payment_created_at": now,
		"payment_expires_at": expiresAt,
		"payment_status":     models.PaymentStatusPending,
		"payment_provider":   "btcpay",
	}
	if err := database.DB.Model(&models.Application{}).Where("id = ?", app.ID).Updates(updates).Error; err != nil {
		log.Printf("[payments] failed to persist invoice on application %d: %v", app.ID, err)
		utils.WritePaymentError(w, http.StatusInternalServerError, errors.New("Failed to save payment details"), err.Error())
		return
	}

	utils.WriteRawJSON(w, http.StatusOK, createPaymentResponse{
		InvoiceID:     invoice.ID,
		InvoiceURL:    invoice.CheckoutLink,
		Address:       address,
		AmountBTC:     amountBTC,
		AmountUSD:     amountUSD,
		ExpiresAt:     expiresAt.UTC().Format(time.RFC3339),
		ApplicationID: app.ID,
	})
}

type paymentStatusRequest struct {
	InvoiceID string `json:"invoiceId"`
}

// POST /v1/payments/status
//
// Maps the processor's invoice status onto the local enum and, on paid,
// best-effort persists confirmation onto the matching application. A failed
// persistence write is logged but never fails the status response.
func PaymentStatusHandler(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteRawJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON in request body"})
		return
	}
	if req.InvoiceID == "" {
		utils.WriteRawJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing invoiceId"})
		return
	}

	bp, err := utils.NewBTCPayClientFromEnv()
	if err != nil {
		log.Printf("[payments] %v", err)
		utils.WriteRawJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	invoice, err := bp.GetInvoice(r.Context(), req.InvoiceID)
	if err != nil {
		log.Printf("[payments] status lookup failed for invoice %s: %v", req.InvoiceID, err)
		utils.WriteRawJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	status := utils.MapInvoiceStatus(invoice.Status)

	if status == models.PaymentStatusPaid {
		txid := invoice.TransactionID
		if txid == "" {
			txid = invoice.ID
		}
		now := time.Now()
		err := database.DB.Model(&models.Application{}).
			Where("payment_invoice_id = ?", req.InvoiceID).
			Updates(map[string]interface{}{
				"payment_status":       models.PaymentStatusPaid,
				"payment_confirmed_at": now,
				"payment_txid":         txid,
			}).Error
		if err != nil {
			log.Printf("[payments] failed to mark invoice %s paid: %v", req.InvoiceID, err)
		}
	}

	utils.WriteRawJSON(w, http.StatusOK, map[string]string{"status": status})
}
