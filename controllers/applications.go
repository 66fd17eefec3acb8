package controllers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"rentalflow/database"
	"rentalflow/models"
	"rentalflow/utils"

	"github.com/gorilla/mux"
	"gorm.io/gorm"
)

type submitApplicationRequest struct {
	FirstName        string `json:"firstName" validate:"required"`
	MiddleName       string `json:"middleName"`
	LastName         string `json:"lastName" validate:"required"`
	Phone            string `json:"phone" validate:"phone"`
	Email            string `json:"email" validate:"required,email"`
	Address          string `json:"address"`
	DOB              string `json:"dob" validate:"required,dateok,adult"`
	NumApplicants    int    `json:"numApplicants"`
	Pets             int    `json:"pets"`
	CoApplicantFirst string `json:"coApplicantFirst"`
	CoApplicantLast  string `json:"coApplicantLast"`
	MoveInDate       string `json:"moveInDate"`
	PropertyAddress  string `json:"propertyAddress"`
	// SSN arrives encrypted from the capture flow; stored opaque.
	SSN           string `json:"ssn" validate:"required"`
	Income        string `json:"income" validate:"money"`
	DepositAmount string `json:"depositAmount" validate:"money"`
	OwnerRating   *int   `json:"ownerRating"`
	IDFront       string `json:"idFront"`
	IDBack        string `json:"idBack"`
	FaceImage     string `json:"faceImage"`
	FaceVideoURL  string `json:"faceVideoUrl"`
	DraftID       string `json:"draftId"`
}

// POST /v1/applications
//
// Creates the application record and kicks off best-effort document uploads.
// Upload failures are logged, never fatal: the applicant should not lose a
// submission because object storage hiccuped.
func SubmitApplicationHandler(w http.ResponseWriter, r *http.Request) {
	var req submitApplicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteRawJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON in request body"})
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteRawJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	income, _ := strconv.ParseFloat(strings.TrimSpace(req.Income), 64)
	deposit, _ := strconv.ParseFloat(strings.TrimSpace(req.DepositAmount), 64)

	app := models.Application{
		TempID:          utils.GenerateTempID(),
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Phone:           req.Phone,
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Address:         req.Address,
		DOB:             req.DOB,
		NumApplicants:   req.NumApplicants,
		Pets:            req.Pets,
		PropertyAddress: req.PropertyAddress,
		SSNEncrypted:    req.SSN,
		Income:          income,
		DepositAmount:   deposit,
		OwnerRating:     req.OwnerRating,
		PaymentMethod:   "bitcoin",
		PaymentProvider: "btcpay",
		PaymentStatus:   models.PaymentStatusPending,
	}
	if req.MiddleName != "" {
		app.MiddleName = &req.MiddleName
	}
	if req.CoApplicantFirst != "" && req.CoApplicantLast != "" {
		co := req.CoApplicantFirst + " " + req.CoApplicantLast
		app.CoApplicant = &co
	}
	if d := strings.TrimSpace(req.MoveInDate); d != "" {
		app.MoveInDate = &d
	}
	if req.FaceVideoURL != "" {
		app.FaceVideoURL = &req.FaceVideoURL
	}

	if err := database.DB.Create(&app).Error; err != nil {
		log.Printf("[applications] insert failed: %v", err)
		utils.WriteRawJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to save application"})
		return
	}
	log.Printf("[applications] created application %d (temp_id=%s)", app.ID, app.TempID)

	uploadDocument(r.Context(), req.IDFront, fmt.Sprintf("ids/%d/front.jpg", app.ID))
	uploadDocument(r.Context(), req.IDBack, fmt.Sprintf("ids/%d/back.jpg", app.ID))

	if faceKey := fmt.Sprintf("faces/%d/face.jpg", app.ID); uploadDocument(r.Context(), req.FaceImage, faceKey) {
		// A week of validity covers the review window; the admin surface
		// re-presigns on demand.
		if url, err := utils.PresignObject(r.Context(), faceKey, 7*24*time.Hour); err != nil {
			log.Printf("[applications] presign face image failed: %v", err)
		} else if err := database.DB.Model(&app).Update("face_image_url", url).Error; err != nil {
			log.Printf("[applications] failed to persist face image URL: %v", err)
		}
	}

	// The form draft is spent once the submission exists.
	if req.DraftID != "" && database.Redis != nil {
		if err := database.Redis.Del(r.Context(), draftKey(req.DraftID)).Err(); err != nil {
			log.Printf("[applications] failed to clear draft %s: %v", req.DraftID, err)
		}
	}

	utils.WriteRawJSON(w, http.StatusOK, map[string]interface{}{
		"tempId":        app.TempID,
		"applicationId": app.ID,
	})
}

// uploadDocument decodes a base64 data URL and stores it under key. Returns
// true only when the object landed.
func uploadDocument(ctx context.Context, dataURL, key string) bool {
	data, err := decodeDataURL(dataURL)
	if err != nil {
		if !errors.Is(err, errNoDataURL) {
			log.Printf("[applications] decode %s: %v", key, err)
		}
		return false
	}
	if err := utils.UploadObject(ctx, key, bytes.NewReader(data)); err != nil {
		log.Printf("[applications] upload %s: %v", key, err)
		return false
	}
	return true
}

var errNoDataURL = errors.New("no data URL payload")

// decodeDataURL extracts the payload of a "data:image/...;base64," URL.
func decodeDataURL(s string) ([]byte, error) {
	if s == "" {
		return nil, errNoDataURL
	}
	idx := strings.Index(s, ",")
	if idx < 0 {
		return nil, errNoDataURL
	}
	data, err := base64.StdEncoding.DecodeString(s[idx+1:])
	if err != nil {
		return nil, fmt.Errorf("invalid base64 payload: %w", err)
	}
	return data, nil
}

// GET /v1/applications/{id}
//
// Dashboard view for the applicant after payment. Sensitive fields stay out.
func GetApplicationHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Invalid application id"})
		return
	}

	var app models.Application
	if err := database.DB.Where("id = ?", id).First(&app).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Application not found"})
			return
		}
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Database error"})
		return
	}

	data := map[string]interface{}{
		"application_id":   app.ID,
		"name":             app.FullName(),
		"email":            app.Email,
		"property_address": app.PropertyAddress,
		"move_in_date":     app.MoveInDate,
		"num_applicants":   app.NumApplicants,
		"pets":             app.Pets,
		"co_applicant":     app.CoApplicant,
		"deposit_amount":   app.DepositAmount,
		"payment": map[string]interface{}{
			"status":       app.PaymentStatus,
			"method":       app.PaymentMethod,
			"provider":     app.PaymentProvider,
			"amount":       app.PaymentAmount,
			"currency":     app.PaymentCurrency,
			"address":      app.PaymentAddress,
			"created_at":   app.PaymentCreatedAt,
			"expires_at":   app.PaymentExpiresAt,
			"confirmed_at": app.PaymentConfirmedAt,
			"txid":         app.PaymentTxID,
		},
		"submitted_at": app.CreatedAt.Format(time.RFC3339),
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: data})
}
