package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/theblitlabs/sandbox-provisioner/internal/api/handlers"
	"github.com/theblitlabs/sandbox-provisioner/internal/api/middleware"
	"github.com/theblitlabs/sandbox-provisioner/internal/telemetry"
)

// Router wraps mux.Router to add more functionality
type Router struct {
	*mux.Router
	middleware []mux.MiddlewareFunc
	endpoint   string
}

// NewRouter creates and configures a new router with all dependencies
func NewRouter(
	sandboxHandler *handlers.SandboxHandler,
	healthHandler *handlers.HealthHandler,
	endpoint string,
) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		middleware: []mux.MiddlewareFunc{
			middleware.Logging,
			telemetry.MetricsMiddleware,
		},
		endpoint: endpoint,
	}

	r.setup()
	r.registerRoutes(sandboxHandler, healthHandler)

	return r
}

// setup configures the base router with middleware and common settings
func (r *Router) setup() {
	for _, m := range r.middleware {
		r.Use(m)
	}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(`{"error":"Method not allowed"}`))
	})
}

// registerRoutes registers all application routes
func (r *Router) registerRoutes(
	sandboxHandler *handlers.SandboxHandler,
	healthHandler *handlers.HealthHandler,
) {
	r.only(r.endpoint+"/sandbox-init", http.MethodPost, sandboxHandler.InitSandbox)
	r.only(r.endpoint+"/call", http.MethodPost, sandboxHandler.Call)

	if healthHandler != nil {
		r.HandleFunc("/health", healthHandler.Health).Methods(http.MethodGet)
	}
	r.Handle("/metrics", telemetry.MetricsHandler()).Methods(http.MethodGet)
}

// only serves path for a single method and answers every other method on
// that path with the JSON 405.
func (r *Router) only(path, method string, handler http.HandlerFunc) {
	r.HandleFunc(path, handler).Methods(method)
	r.Handle(path, r.MethodNotAllowedHandler)
}
