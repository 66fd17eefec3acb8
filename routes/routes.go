package routes

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"rentalflow/controllers"
	"rentalflow/controllers/admins"
	"rentalflow/middleware"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
)

func optionsHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "rentalflow-api",
	})
}

func InitRouter() *mux.Router {
	r := mux.NewRouter()

	// Health check at root level for container probes
	r.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	// CORS - origins from CORS_ALLOWED_ORIGINS (comma-separated) or local dev defaults
	origins := []string{"http://localhost:3000", "http://localhost:5173", "http://127.0.0.1:3000"}
	if env := os.Getenv("CORS_ALLOWED_ORIGINS"); env != "" {
		for _, p := range strings.Split(env, ",") {
			if o := strings.TrimSpace(p); o != "" {
				origins = append(origins, o)
			}
		}
	}
	r.Use(func(next http.Handler) http.Handler {
		return handlers.CORS(
			handlers.AllowedOrigins(origins),
			handlers.AllowedMethods([]string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}),
			handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With", "X-Request-ID"}),
			handlers.AllowCredentials(),
		)(next)
	})

	api := r.PathPrefix("/v1").Subrouter()
	api.PathPrefix("/").HandlerFunc(optionsHandler).Methods(http.MethodOptions)

	// The payment endpoints face the open internet and talk to the processor;
	// keep the per-IP budget well above the 10s polling cadence.
	paymentLimiter := middleware.NewIPRateLimiter(120, time.Minute)
	submitLimiter := middleware.NewIPRateLimiter(20, time.Minute)

	// Application submission and dashboard
	api.Handle("/applications", submitLimiter.Middleware(http.HandlerFunc(controllers.SubmitApplicationHandler))).Methods(http.MethodPost)
	api.Handle("/applications/{id:[0-9]+}", http.HandlerFunc(controllers.GetApplicationHandler)).Methods(http.MethodGet)

	// Payment invoice lifecycle
	api.Handle("/payments/create", paymentLimiter.Middleware(http.HandlerFunc(controllers.CreatePaymentHandler))).Methods(http.MethodPost)
	api.Handle("/payments/status", paymentLimiter.Middleware(http.HandlerFunc(controllers.PaymentStatusHandler))).Methods(http.MethodPost)

	// Form drafts (server-side session replacement)
	api.Handle("/drafts", http.HandlerFunc(controllers.CreateDraftHandler)).Methods(http.MethodPost)
	api.Handle("/drafts/{id}", http.HandlerFunc(controllers.GetDraftHandler)).Methods(http.MethodGet)
	api.Handle("/drafts/{id}", http.HandlerFunc(controllers.UpdateDraftHandler)).Methods(http.MethodPut)
	api.Handle("/drafts/{id}", http.HandlerFunc(controllers.DeleteDraftHandler)).Methods(http.MethodDelete)

	// Admin review surface
	api.Handle("/admin/login", http.HandlerFunc(admins.Login)).Methods(http.MethodPost)
	api.Handle("/admin/applications", middleware.AdminAuthMiddleware(http.HandlerFunc(admins.ListApplications))).Methods(http.MethodGet)
	api.Handle("/admin/applications/{id:[0-9]+}", middleware.AdminAuthMiddleware(http.HandlerFunc(admins.GetApplication))).Methods(http.MethodGet)

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}
