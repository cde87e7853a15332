package routes

import (
	"fmt"
	"net/http"

	"FallWatch.iot/internal/controller"
	"FallWatch.iot/internal/models"
	"FallWatch.iot/internal/utils"

	"github.com/gorilla/mux"
)

// Controllers groups the HTTP handlers served by the router.
type Controllers struct {
	Data *controller.DataController
	Fall *controller.FallController
	Auth *controller.AuthController
	Live *controller.LiveController
}

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Options configures cross-cutting behaviour of the router.
type Options struct {
	// DeviceAuth guards the device ingestion endpoints.
	DeviceAuth Middleware
	// SessionAuth guards dashboard-only endpoints.
	SessionAuth Middleware
	// Logging wraps every request.
	Logging Middleware
	// StaticDir is served at / when set.
	StaticDir string
}

func passthrough(next http.Handler) http.Handler { return next }

// RegisterRoutes registers all application routes.
func RegisterRoutes(router *mux.Router, c Controllers, opts Options) {
	if opts.DeviceAuth == nil {
		opts.DeviceAuth = passthrough
	}
	if opts.SessionAuth == nil {
		opts.SessionAuth = passthrough
	}
	if opts.Logging != nil {
		router.Use(mux.MiddlewareFunc(opts.Logging))
	}

	api := router.PathPrefix("/api").Subrouter()

	// Device telemetry
	api.Handle("/readings", opts.DeviceAuth(http.HandlerFunc(c.Data.HandleIngest))).Methods(http.MethodPost)
	api.HandleFunc("/readings", c.Data.HandleCurrent).Methods(http.MethodGet)
	api.Handle("/readings/history", opts.SessionAuth(http.HandlerFunc(c.Data.HandleHistory))).Methods(http.MethodGet)
	api.Handle("/fall-detection", opts.DeviceAuth(http.HandlerFunc(c.Fall.HandleFallReport))).Methods(http.MethodPost)

	// Dashboard accounts
	api.HandleFunc("/signup", c.Auth.HandleSignup).Methods(http.MethodPost)
	api.HandleFunc("/login", c.Auth.HandleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/me", c.Auth.HandleMe).Methods(http.MethodGet)
	api.HandleFunc("/logout", c.Auth.HandleLogout).Methods(http.MethodPost)

	// Live observers
	router.HandleFunc("/ws", c.Live.HandleWebSocket).Methods(http.MethodGet)

	// Health check (GET only)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}).Methods(http.MethodGet)

	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		utils.RespondWithError(w, models.NewAPIError(models.ErrorCodeMethodNotAllowed, "Method not allowed", nil, http.StatusMethodNotAllowed))
	})

	if opts.StaticDir != "" {
		router.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.StaticDir))).Methods(http.MethodGet, http.MethodHead)
	}
}
