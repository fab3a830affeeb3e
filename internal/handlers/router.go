package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/xelth-com/sharpcrmgo/internal/config"
	"github.com/xelth-com/sharpcrmgo/internal/database"
	"github.com/xelth-com/sharpcrmgo/internal/middleware"
	"github.com/xelth-com/sharpcrmgo/internal/storage"
)

// Router wraps the mux router and database
type Router struct {
	*mux.Router
	db    *database.DB
	cfg   *config.Config
	store *storage.Store
}

// NewRouter creates a new HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		db:     db,
		cfg:    cfg,
		store:  storage.New(db),
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))

	// Service files
	api.HandleFunc("/service-files", r.listServiceFiles).Methods("GET")
	api.HandleFunc("/service-files", r.createServiceFile).Methods("POST")
	api.HandleFunc("/service-files/{id}", r.getServiceFile).Methods("GET")
	api.HandleFunc("/service-files/{id}/status", r.updateServiceFileStatus).Methods("PATCH")

	// Reconciliation engine
	api.HandleFunc("/service-files/{id}/model", r.getModel).Methods("GET")
	api.HandleFunc("/service-files/{id}/model", r.saveModel).Methods("PUT")
	api.HandleFunc("/service-files/{id}/archive", r.archiveServiceFile).Methods("POST")
	api.HandleFunc("/service-files/{id}/move-stage", r.moveStage).Methods("POST")

	// Leads
	api.HandleFunc("/leads/{id}/sync-tags", r.syncLeadTags).Methods("POST")

	// Trays
	api.HandleFunc("/trays/scan", r.scanTray).Methods("GET")
	api.HandleFunc("/trays/{id}/label", r.trayLabel).Methods("GET")

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
