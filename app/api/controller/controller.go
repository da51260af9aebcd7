package controller

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/AlexandriaDAO/cyclescan/app/api/types"
	"github.com/AlexandriaDAO/cyclescan/pkg/utils"
)

type Controller struct {
	App *types.App
	// AdminToken gates mutating endpoints; JWTSecret signs session cookies.
	AdminToken string
	JWTSecret  []byte
}

// NewController returns a new controller.
func NewController(app *types.App) *Controller {
	return &Controller{
		App:        app,
		AdminToken: utils.Env("ADMIN_TOKEN", ""),
		JWTSecret:  []byte(utils.Env("JWT_SECRET", "dev-secret")),
	}
}

// NewRouter returns a new router with all the routes defined in this file.
func (c *Controller) NewRouter() (*mux.Router, error) {
	r := mux.NewRouter()

	r.Handle("/health", http.HandlerFunc(c.HandleHealth)).Methods("GET")

	// Open, read-only.
	r.HandleFunc("/leaderboard", c.HandleLeaderboard).Methods("GET")
	r.HandleFunc("/projects/leaderboard", c.HandleProjectLeaderboard).Methods("GET")
	r.HandleFunc("/projects/{name}/canisters", c.HandleProjectCanisters).Methods("GET")
	r.HandleFunc("/projects/{name}", c.HandleProject).Methods("GET")
	r.HandleFunc("/canisters/{id}/history", c.HandleCanisterHistory).Methods("GET")
	r.HandleFunc("/canisters/{id}", c.HandleCanister).Methods("GET")
	r.HandleFunc("/stats", c.HandleStats).Methods("GET")
	r.HandleFunc("/scheduler", c.HandleSchedulerStatus).Methods("GET")
	r.HandleFunc("/export/canisters", c.HandleExportCanisters).Methods("GET")
	r.HandleFunc("/export/projects", c.HandleExportProjects).Methods("GET")

	// Admin-only, mutating.
	r.HandleFunc("/admin/login", c.HandleLogin).Methods("POST")
	admin := r.PathPrefix("/admin").Subrouter()
	admin.Use(c.RequireAdmin)
	admin.HandleFunc("/canisters", c.HandleImportCanisters).Methods("POST")
	admin.HandleFunc("/canisters", c.HandleRemoveCanisters).Methods("DELETE")
	admin.HandleFunc("/canisters/{id}", c.HandleUpdateCanister).Methods("PATCH")
	admin.HandleFunc("/canisters/{id}/valid", c.HandleSetValid).Methods("PUT")
	admin.HandleFunc("/projects", c.HandleUpsertProjects).Methods("POST")
	admin.HandleFunc("/projects/{name}", c.HandleUpdateProject).Methods("PATCH")
	admin.HandleFunc("/snapshot", c.HandleTakeSnapshot).Methods("POST")
	admin.HandleFunc("/scheduler/start", c.HandleSchedulerStart).Methods("POST")
	admin.HandleFunc("/scheduler/stop", c.HandleSchedulerStop).Methods("POST")
	admin.HandleFunc("/all", c.HandleClearAll).Methods("DELETE")

	return r, nil
}

// WithCORS wraps the router with permissive CORS headers.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", http.MethodGet+", "+http.MethodPost+", "+http.MethodPut+", "+http.MethodPatch+", "+http.MethodDelete+", "+http.MethodOptions)

		// Fast-path the preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (c *Controller) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
