// Package handlers serves the web dashboard and the JSON API.
package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/dchest/captcha"
	"github.com/gorilla/csrf"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"intelplatform/auth"
	"intelplatform/chat"
	"intelplatform/config"
	"intelplatform/models"
	"intelplatform/store"
)

// Deps is everything the HTTP layer needs.
type Deps struct {
	Config    config.Config
	DB        *sql.DB
	Auth      *auth.Service
	Sessions  *auth.Sessions
	Chat      *chat.Service
	Incidents *store.Incidents
	Tickets   *store.Tickets
	Datasets  *store.Datasets
	CSRFKey   []byte
	Log       *zap.Logger
}

type Server struct {
	Deps
	signupLimiter *rateLimiter
	chatLimiter   *rateLimiter
}

func NewServer(d Deps) *Server {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	signups := d.Config.SignupPerHour
	if signups <= 0 {
		signups = 20
	}
	chats := d.Config.ChatRatePerMinute
	if chats <= 0 {
		chats = 10
	}
	return &Server{
		Deps:          d,
		signupLimiter: newRateLimiter(signups, time.Hour),
		chatLimiter:   newRateLimiter(chats, time.Minute),
	}
}

// departments maps a dashboard name to its CSV import schema.
var departments = map[string]store.Schema{
	models.RoleCyber: store.IncidentSchema,
	models.RoleIT:    store.TicketSchema,
	models.RoleData:  store.DatasetSchema,
}

// canView reports whether role may open the department dashboard.
func canView(role, department string) bool {
	return role == models.RoleAdmin || role == department
}

// Routes assembles the full handler: API and operational endpoints without
// CSRF, everything else behind it, wrapped in the shared middleware.
func (s *Server) Routes() http.Handler {
	protect := csrf.Protect(s.CSRFKey,
		csrf.Secure(s.Config.SecureCookies),
		csrf.Path("/"),
		csrf.ErrorHandler(http.HandlerFunc(s.csrfFailure)),
	)
	web := protect(s.webRoutes())
	if !s.Config.SecureCookies {
		inner := web
		web = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			inner.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/api/", s.apiRoutes())
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /captcha/", captcha.Server(captcha.StdWidth, captcha.StdHeight))
	mux.Handle("/", web)

	return LoggingMiddleware(s.Log, MetricsMiddleware(SecurityHeadersMiddleware(CORSMiddleware(mux))))
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.DB.PingContext(r.Context()); err != nil {
		sendJSONResponse(w, http.StatusServiceUnavailable, APIResponse{Status: "error", Message: "database unavailable"})
		return
	}
	sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success"})
}

func (s *Server) csrfFailure(w http.ResponseWriter, r *http.Request) {
	s.Log.Warn("csrf check failed", zap.String("path", r.URL.Path), zap.Error(csrf.FailureReason(r)))
	http.Error(w, "Forbidden - CSRF token invalid", http.StatusForbidden)
}
