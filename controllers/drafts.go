package controllers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"time"

	"rentalflow/database"
	"rentalflow/utils"

	"github.com/gorilla/mux"
	redis "github.com/redis/go-redis/v9"
)

// Server-side replacement for the browser session cache: the form, capture
// and payment pages pass a draft id around instead of stashing the payload in
// sessionStorage. Drafts are opaque JSON blobs with a TTL.

const draftTTL = time.Hour

func draftKey(id string) string {
	return "rentalflow:draft:" + id
}

func draftStoreReady(w http.ResponseWriter) bool {
	if database.Redis == nil {
		utils.WriteJSON(w, http.StatusServiceUnavailable, utils.APIResponse{Success: false, Message: "Draft storage not available"})
		return false
	}
	return true
}

// POST /v1/drafts
func CreateDraftHandler(w http.ResponseWriter, r *http.Request) {
	if !draftStoreReady(w) {
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Draft must be valid JSON"})
		return
	}

	id := utils.GenerateDraftID()
	if err := database.Redis.Set(r.Context(), draftKey(id), body, draftTTL).Err(); err != nil {
		log.Printf("[drafts] store failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to store draft"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK", Data: map[string]interface{}{
		"draft_id":   id,
		"expires_in": int(draftTTL.Seconds()),
	}})
}

// PUT /v1/drafts/{id}
func UpdateDraftHandler(w http.ResponseWriter, r *http.Request) {
	if !draftStoreReady(w) {
		return
	}
	id := mux.Vars(r)["id"]

	body, err := io.ReadAll(r.Body)
	if err != nil || !json.Valid(body) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.APIResponse{Success: false, Message: "Draft must be valid JSON"})
		return
	}

	// Refresh only an existing draft; an expired id means the flow restarts.
	ok, err := database.Redis.SetXX(r.Context(), draftKey(id), body, draftTTL).Result()
	if err != nil {
		log.Printf("[drafts] update failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to update draft"})
		return
	}
	if !ok {
		utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Draft not found or expired"})
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK"})
}

// GET /v1/drafts/{id}
func GetDraftHandler(w http.ResponseWriter, r *http.Request) {
	if !draftStoreReady(w) {
		return
	}
	id := mux.Vars(r)["id"]

	body, err := database.Redis.Get(r.Context(), draftKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			utils.WriteJSON(w, http.StatusNotFound, utils.APIResponse{Success: false, Message: "Draft not found or expired"})
			return
		}
		log.Printf("[drafts] read failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to read draft"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// DELETE /v1/drafts/{id}
func DeleteDraftHandler(w http.ResponseWriter, r *http.Request) {
	if !draftStoreReady(w) {
		return
	}
	id := mux.Vars(r)["id"]

	if err := database.Redis.Del(r.Context(), draftKey(id)).Err(); err != nil {
		log.Printf("[drafts] delete failed: %v", err)
		utils.WriteJSON(w, http.StatusInternalServerError, utils.APIResponse{Success: false, Message: "Failed to delete draft"})
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.APIResponse{Success: true, Message: "OK"})
}
