package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/swiftlogistics/platform/internal/auth/domain"
	"github.com/swiftlogistics/platform/internal/auth/guard"
	"github.com/swiftlogistics/platform/internal/auth/service"
	"github.com/swiftlogistics/platform/internal/session"
	"github.com/swiftlogistics/platform/internal/store"
	"github.com/swiftlogistics/platform/pkg/broker"
	"github.com/swiftlogistics/platform/pkg/httpx"
	"github.com/swiftlogistics/platform/pkg/slogx"

	_ "github.com/swiftlogistics/platform/api/gateway" // Swagger docs
)

// BrokerHealth is the part of the broker client the health probes read.
type BrokerHealth interface {
	State() broker.State
	Health(ctx context.Context) error
}

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware
	handler     http.Handler

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	Store    store.Store
	Sessions session.Store
	Broker   BrokerHealth

	Accounts *service.AccountService
	Orders   *service.OrderService
	Guard    *guard.Guard

	// Counter backs every rate limit profile. Nil means a process-local
	// counter, so budgets are not shared between replicas.
	Counter httpx.WindowCounter
}

func NewRouter(buildVersion string, allowedOrigins []string, logger *slog.Logger) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
	}

	co := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
	})

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
		co.Handler,
	}

	return r
}

func (r *Router) ApplyRoutes() {
	if r.Counter == nil {
		r.Counter = httpx.NewMemoryWindowCounter()
	}

	r.registerAuth()
	r.registerOrders()
	r.registerNotifications()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())

	r.handler = httpx.Chain(r.Mux, r.middlewares...)
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			SwiftLogistics API Gateway
//	@version		0.1.0
//	@description	Authentication, session and order API for the SwiftLogistics client portal and driver app.
//	@description
//	@description				Tokens are HS256 JWTs valid for 24 hours. Logout revokes a token for the rest of its life.
//
//	@contact.name				SwiftLogistics Platform Team
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:3000
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h := r.handler
	if h == nil {
		h = httpx.Chain(r.Mux, r.middlewares...)
	}
	h.ServeHTTP(w, req)
}

// api chains h behind the gateway-wide budget and then mws, outermost first.
func (r *Router) api(h http.Handler, mws ...httpx.Middleware) http.Handler {
	chain := append([]httpx.Middleware{httpx.RateLimitByIP(httpx.GlobalLimit, r.Counter)}, mws...)
	return httpx.Chain(h, chain...)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Accounts: r.Accounts}

	// Credential endpoints - strict rate limit by IP (brute force)
	r.Mux.Handle("POST /api/auth/register",
		r.api(http.HandlerFunc(h.HandleRegister), httpx.RateLimitByIP(httpx.StrictLimit, r.Counter)))
	r.Mux.Handle("POST /api/auth/login",
		r.api(http.HandlerFunc(h.HandleLogin), httpx.RateLimitByIP(httpx.StrictLimit, r.Counter)))

	// Logout and refresh read the token themselves so an expired one is
	// still accepted.
	r.Mux.Handle("POST /api/auth/logout",
		r.api(http.HandlerFunc(h.HandleLogout), httpx.RateLimitByIP(httpx.ModerateLimit, r.Counter)))
	r.Mux.Handle("POST /api/auth/refresh",
		r.api(http.HandlerFunc(h.HandleRefresh), httpx.RateLimitByIP(httpx.ModerateLimit, r.Counter)))

	r.Mux.Handle("GET /api/auth/profile",
		r.api(http.HandlerFunc(h.HandleProfile),
			r.Guard.Authenticate,
			httpx.RateLimitByUser(httpx.ModerateLimit, r.Counter),
		))
}

func (r *Router) registerOrders() {
	h := &OrderHandler{Orders: r.Orders}

	r.Mux.Handle("POST /api/orders",
		r.api(http.HandlerFunc(h.HandleCreate),
			r.Guard.Authenticate,
			guard.RequireRole(domain.RoleClient),
			httpx.RateLimitByUser(httpx.ModerateLimit, r.Counter),
		))

	// Listing is scoped by role inside the handler.
	r.Mux.Handle("GET /api/orders",
		r.api(http.HandlerFunc(h.HandleList),
			r.Guard.Authenticate,
		))

	r.Mux.Handle("GET /api/orders/{id}",
		r.api(http.HandlerFunc(h.HandleGet),
			r.Guard.Authenticate,
			r.Guard.RequireOwnership(guard.ResourceOrder, "id"),
		))

	r.Mux.Handle("PATCH /api/orders/{id}/status",
		r.api(http.HandlerFunc(h.HandleUpdateStatus),
			r.Guard.Authenticate,
			guard.RequireRole(domain.RoleAdmin, domain.RoleDriver),
			r.Guard.RequireOwnership(guard.ResourceOrder, "id"),
			httpx.RateLimitByUser(httpx.ModerateLimit, r.Counter),
		))

	// Public tracking - anonymous callers get the status only
	r.Mux.Handle("GET /api/orders/{id}/status",
		r.api(http.HandlerFunc(h.HandleTrack),
			r.Guard.Optional,
			httpx.RateLimitByIP(httpx.PublicLimit, r.Counter),
		))
}

func (r *Router) registerNotifications() {
	h := &NotificationHandler{Notifications: r.Store.Notifications()}

	r.Mux.Handle("GET /api/notifications",
		r.api(h, r.Guard.Authenticate))
}

func (r *Router) registerSystem() {
	// Health check endpoints - public rate limits (monitoring systems may poll frequently)
	ready := ReadyzHandler(r.startTime, r.buildVersion, r.Store, r.Sessions, r.Broker)

	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion, r.Sessions, r.Broker),
			httpx.RateLimitByIP(httpx.PublicLimit, r.Counter),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ready,
			httpx.RateLimitByIP(httpx.PublicLimit, r.Counter),
		),
	)
	r.Mux.Handle("GET /api/health",
		httpx.Chain(ready,
			httpx.RateLimitByIP(httpx.PublicLimit, r.Counter),
		),
	)
}
