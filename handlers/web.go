package handlers

import (
	"errors"
	"net/http"

	"github.com/dchest/captcha"
	"go.uber.org/zap"

	"intelplatform/auth"
	"intelplatform/i18n"
	"intelplatform/metrics"
	"intelplatform/models"
)

func (s *Server) webRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.FileServerFS(staticFS))

	mux.HandleFunc("GET /{$}", s.IndexHandler)
	mux.HandleFunc("POST /login", s.LoginHandler)
	mux.HandleFunc("POST /signup", s.SignupHandler)
	mux.HandleFunc("POST /logout", s.LogoutHandler)

	mux.HandleFunc("GET /dashboard", s.DashboardHandler)
	mux.HandleFunc("GET /dashboard/{dept}", s.DepartmentHandler)
	mux.HandleFunc("POST /dashboard/{dept}/{action}", s.DepartmentActionHandler)

	mux.HandleFunc("GET /assistant", s.AssistantHandler)
	mux.HandleFunc("POST /assistant", s.AskHandler)
	mux.HandleFunc("POST /assistant/clear", s.ClearChatHandler)

	mux.HandleFunc("GET /profile", s.ProfileHandler)
	mux.HandleFunc("POST /profile/avatar", s.UploadAvatarHandler)
	mux.HandleFunc("POST /profile/avatar/remove", s.RemoveAvatarHandler)
	mux.HandleFunc("GET /avatars/{username}", s.AvatarHandler)
	return mux
}

// requireSession returns the logged-in session or redirects to the login
// page and returns nil.
func (s *Server) requireSession(w http.ResponseWriter, r *http.Request) *auth.Session {
	sess := s.Sessions.Get(r)
	if sess == nil {
		redirect(w, r, "/")
	}
	return sess
}

// authMessage turns a credential service error into the text shown to users.
func authMessage(lang, username string, err error) string {
	var lockout *auth.LockoutError
	switch {
	case errors.As(err, &lockout):
		return i18n.Tf(lang, "LockedOut", lockout.Seconds())
	case errors.Is(err, auth.ErrUserNotFound):
		return i18n.T(lang, "UserNotFound")
	case errors.Is(err, auth.ErrBadCredentials):
		return i18n.T(lang, "IncorrectPassword")
	case errors.Is(err, auth.ErrDuplicateUser):
		return i18n.Tf(lang, "UsernameAlreadyExists", username)
	case errors.Is(err, auth.ErrInvalidUsername):
		return i18n.T(lang, "InvalidUsername")
	case errors.Is(err, auth.ErrInvalidPassword):
		return i18n.T(lang, "InvalidPassword")
	case errors.Is(err, auth.ErrInvalidRole):
		return i18n.T(lang, "InvalidRole")
	}
	return i18n.T(lang, "InternalError")
}

// authStatus picks the HTTP status for a credential service error.
func authStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrLockedOut):
		return http.StatusTooManyRequests
	case errors.Is(err, auth.ErrUserNotFound), errors.Is(err, auth.ErrBadCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, auth.ErrDuplicateUser):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrInvalidPassword), errors.Is(err, auth.ErrInvalidRole):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func loginOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, auth.ErrLockedOut):
		return "locked"
	case errors.Is(err, auth.ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, auth.ErrBadCredentials):
		return "bad_password"
	}
	return "error"
}

func (s *Server) renderIndex(w http.ResponseWriter, r *http.Request, status int, data map[string]any) {
	if data == nil {
		data = map[string]any{}
	}
	if s.Config.RequireCaptcha {
		data["CaptchaID"] = captcha.New()
	}
	data["Roles"] = []string{models.RoleCyber, models.RoleIT, models.RoleData}
	s.renderStatus(w, r, status, "index.html", data)
}

func (s *Server) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if s.Sessions.Get(r) != nil {
		redirect(w, r, "/dashboard")
		return
	}
	s.renderIndex(w, r, http.StatusOK, nil)
}

func (s *Server) LoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	username := r.FormValue("username")

	sess, err := s.Auth.Authenticate(r.Context(), username, r.FormValue("password"))
	metrics.LoginAttempts.WithLabelValues(loginOutcome(err)).Inc()
	if err != nil {
		if authStatus(err) == http.StatusInternalServerError {
			s.Log.Error("login", zap.String("username", username), zap.Error(err))
		}
		s.renderIndex(w, r, authStatus(err), map[string]any{
			"LoginError": authMessage(lang, username, err),
			"Username":   username,
		})
		return
	}

	if err := s.Sessions.Set(w, r, sess); err != nil {
		s.Log.Error("save session", zap.Error(err))
		http.Error(w, i18n.T(lang, "InternalError"), http.StatusInternalServerError)
		return
	}
	s.flashRedirect(w, r, "/dashboard", i18n.Tf(lang, "Welcome", sess.Username))
}

func (s *Server) SignupHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if !s.signupLimiter.Allow(getClientIP(r)) {
		s.renderIndex(w, r, http.StatusTooManyRequests, map[string]any{"SignupError": i18n.T(lang, "TooManyRequests")})
		return
	}
	if s.Config.RequireCaptcha && !captcha.VerifyString(r.FormValue("captcha_id"), r.FormValue("captcha_solution")) {
		s.renderIndex(w, r, http.StatusBadRequest, map[string]any{"SignupError": i18n.T(lang, "CaptchaInvalid")})
		return
	}

	username := r.FormValue("username")
	role := r.FormValue("role")
	strength, err := s.Auth.RegisterSelf(r.Context(), username, r.FormValue("password"), role)
	if err != nil {
		if authStatus(err) == http.StatusInternalServerError {
			s.Log.Error("signup", zap.String("username", username), zap.Error(err))
		}
		s.renderIndex(w, r, authStatus(err), map[string]any{"SignupError": authMessage(lang, username, err)})
		return
	}

	metrics.Registrations.WithLabelValues(role).Inc()
	s.flashRedirect(w, r, "/", i18n.Tf(lang, "Registered", username, string(strength)))
}

func (s *Server) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Clear(w, r); err != nil {
		s.Log.Warn("clear session", zap.Error(err))
	}
	redirect(w, r, "/")
}

// DashboardHandler sends department users to their dashboard. Admins get an
// overview of every department and the user list.
func (s *Server) DashboardHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}

	switch sess.Role {
	case models.RoleCyber, models.RoleIT, models.RoleData:
		redirect(w, r, "/dashboard/"+sess.Role)
		return
	case models.RoleAdmin:
		s.adminOverview(w, r)
		return
	}
	s.renderTemplate(w, r, "home.html", nil)
}

func (s *Server) adminOverview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := i18n.DetectLanguage(r)

	users, err := s.Auth.Users(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	bySeverity, err := s.Incidents.CountBySeverity(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	byStatus, err := s.Tickets.CountByStatus(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	datasets, err := s.Datasets.List(ctx)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	s.renderTemplate(w, r, "admin.html", map[string]any{
		"Users":        users,
		"Charts":       []chartData{newChart(i18n.T(lang, "BySeverity"), bySeverity), newChart(i18n.T(lang, "ByStatus"), byStatus)},
		"DatasetCount": len(datasets),
	})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.Log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
	http.Error(w, i18n.T(i18n.DetectLanguage(r), "InternalError"), http.StatusInternalServerError)
}
