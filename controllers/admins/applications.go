package admins

import (
	"errors"
	"fmt"
	"log"
	"math"
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

// GET /v1/admin/applications
//
// Paginated listing for the review queue. Supports ?search= on applicant
// email/name/property and ?status= on payment status.
func ListApplications(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 {
		limit = 10
	}
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	status := strings.TrimSpace(r.URL.Query().Get("status"))

	db := database.DB

	countQuery := db.Model(&models.Application{})
	if status != "" {
		countQuery = countQuery.Where("payment_status = ?", status)
	}
	if search != "" {
		like := "%" + search + "%"
		countQuery = countQuery.Where("email LIKE ? OR last_name LIKE ? OR property_address LIKE ?", like, like, like)
	}

	var totalRows int64
	if err := countQuery.Count(&totalRows).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Database error"})
		return
	}

	totalPages := int(math.Ceil(float64(totalRows) / float64(limit)))
	offset := (page - 1) * limit

	var apps []models.Application
	query := db.Order("id DESC").Limit(limit).Offset(offset)
	if status != "" {
		query = query.Where("payment_status = ?", status)
	}
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("email LIKE ? OR last_name LIKE ? OR property_address LIKE ?", like, like, like)
	}
	if err := query.Find(&apps).Error; err != nil {
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Database error"})
		return
	}

	type applicationRow struct {
		ID              uint    `json:"id"`
		TempID          string  `json:"temp_id"`
		Name            string  `json:"name"`
		Email           string  `json:"email"`
		PropertyAddress string  `json:"property_address"`
		DepositAmount   float64 `json:"deposit_amount"`
		PaymentStatus   string  `json:"payment_status"`
		SubmittedAt     string  `json:"submitted_at"`
	}

	items := make([]applicationRow, 0, len(apps))
	for _, a := range apps {
		items = append(items, applicationRow{
			ID:              a.ID,
			TempID:          a.TempID,
			Name:            a.FullName(),
			Email:           a.Email,
			PropertyAddress: a.PropertyAddress,
			DepositAmount:   a.DepositAmount,
			PaymentStatus:   a.PaymentStatus,
			SubmittedAt:     a.CreatedAt.Format(time.RFC3339),
		})
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "OK",
		Data: map[string]interface{}{
			"data": items,
			"pagination": map[string]interface{}{
				"page":        page,
				"limit":       limit,
				"total_rows":  totalRows,
				"total_pages": totalPages,
			},
		},
	})
}

// GET /v1/admin/applications/{id}
//
// Full record plus freshly presigned document URLs. Presign failures degrade
// to nulls instead of failing the view.
func GetApplication(w http.ResponseWriter, r *http.Request) {
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

	documents := map[string]interface{}{}
	for name, key := range map[string]string{
		"id_front":   fmt.Sprintf("ids/%d/front.jpg", app.ID),
		"id_back":    fmt.Sprintf("ids/%d/back.jpg", app.ID),
		"face_image": fmt.Sprintf("faces/%d/face.jpg", app.ID),
	} {
		url, perr := utils.PresignObject(r.Context(), key, time.Hour)
		if perr != nil {
			log.Printf("[admin] presign %s for application %d: %v", name, app.ID, perr)
			documents[name] = nil
			continue
		}
		documents[name] = url
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{
		Success: true,
		Message: "OK",
		Data: map[string]interface{}{
			"application": app,
			"documents":   documents,
		},
	})
}
