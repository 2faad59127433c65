package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"intelplatform/auth"
	"intelplatform/i18n"
	"intelplatform/metrics"
	"intelplatform/models"
	"intelplatform/store"
)

type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func sendJSONError(w http.ResponseWriter, status int, msg string) {
	sendJSONResponse(w, status, APIResponse{Status: "error", Message: msg})
}

func sendJSONData(w http.ResponseWriter, status int, data any) {
	sendJSONResponse(w, status, APIResponse{Status: "success", Data: data})
}

// apiHandler receives the verified token claims of the caller.
type apiHandler func(w http.ResponseWriter, r *http.Request, claims *auth.Claims)

// bearerToken reads the session token from Authorization or X-API-Token.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.Header.Get("X-API-Token")
}

// authorized verifies the token and, when dept is set, that the caller's
// role may access that department.
func (s *Server) authorized(dept string, next apiHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lang := i18n.DetectLanguage(r)
		token := bearerToken(r)
		if token == "" {
			sendJSONError(w, http.StatusUnauthorized, i18n.T(lang, "Unauthorized"))
			return
		}
		claims, err := s.Auth.Tokens().Parse(token)
		if err != nil {
			sendJSONError(w, http.StatusUnauthorized, i18n.T(lang, "Unauthorized"))
			return
		}
		if dept != "" && !canView(claims.Role, dept) {
			sendJSONError(w, http.StatusForbidden, i18n.T(lang, "Forbidden"))
			return
		}
		next(w, r, claims)
	}
}

func (s *Server) apiRoutes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/login", s.APILoginHandler)
	mux.HandleFunc("POST /api/v1/signup", s.APISignupHandler)
	mux.HandleFunc("GET /api/v1/me", s.authorized("", s.APIMeHandler))

	registerResource(s, mux, "incidents", models.RoleCyber, resource[models.Incident]{
		list:   s.Incidents.List,
		get:    s.Incidents.Get,
		insert: s.Incidents.Insert,
		remove: s.Incidents.Delete,
		defaults: func(inc *models.Incident) {
			inc.ID = 0
			inc.Timestamp = orDefault(inc.Timestamp, time.Now().Format(timestampLayout))
			inc.Status = orDefault(inc.Status, "Open")
		},
	})
	mux.HandleFunc("PATCH /api/v1/incidents/{id}", s.authorized(models.RoleCyber, s.statusHandler(s.Incidents.UpdateStatus)))
	mux.HandleFunc("GET /api/v1/incidents/stats", s.authorized(models.RoleCyber, s.statsHandler(map[string]countFunc{
		"by_severity":             s.Incidents.CountBySeverity,
		"by_category":             s.Incidents.CountByCategory,
		"high_severity_by_status": s.Incidents.HighSeverityByStatus,
	})))

	registerResource(s, mux, "tickets", models.RoleIT, resource[models.Ticket]{
		list:   s.Tickets.List,
		get:    s.Tickets.Get,
		insert: s.Tickets.Insert,
		remove: s.Tickets.Delete,
		defaults: func(t *models.Ticket) {
			t.ID = 0
			t.Status = orDefault(t.Status, "Pending")
			t.AssignedTo = orDefault(t.AssignedTo, "Admin")
			t.CreatedAt = orDefault(t.CreatedAt, time.Now().Format(time.RFC3339))
		},
	})
	mux.HandleFunc("PATCH /api/v1/tickets/{id}", s.authorized(models.RoleIT, s.statusHandler(s.Tickets.UpdateStatus)))
	mux.HandleFunc("GET /api/v1/tickets/stats", s.authorized(models.RoleIT, s.statsHandler(map[string]countFunc{
		"by_status":   s.Tickets.CountByStatus,
		"by_priority": s.Tickets.CountByPriority,
	})))

	registerResource(s, mux, "datasets", models.RoleData, resource[models.Dataset]{
		list:   s.Datasets.List,
		get:    s.Datasets.Get,
		insert: s.Datasets.Insert,
		remove: s.Datasets.Delete,
		defaults: func(d *models.Dataset) {
			d.ID = 0
			d.UploadDate = orDefault(d.UploadDate, time.Now().Format(time.DateOnly))
		},
	})
	mux.HandleFunc("PUT /api/v1/datasets/{id}", s.authorized(models.RoleData, s.APIUpdateDatasetHandler))

	mux.HandleFunc("POST /api/v1/{dept}/import", s.APIImportHandler)

	mux.HandleFunc("GET /api/v1/chat", s.authorized("", s.APIChatHistoryHandler))
	mux.HandleFunc("POST /api/v1/chat", s.authorized("", s.APIChatHandler))
	mux.HandleFunc("DELETE /api/v1/chat", s.authorized("", s.APIClearChatHandler))

	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		sendJSONError(w, http.StatusNotFound, i18n.T(i18n.DetectLanguage(r), "NotFound"))
	})
	return mux
}

func (s *Server) APILoginHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONError(w, http.StatusBadRequest, i18n.T(lang, "InvalidRequestBody"))
		return
	}

	sess, err := s.Auth.Authenticate(r.Context(), input.Username, input.Password)
	metrics.LoginAttempts.WithLabelValues(loginOutcome(err)).Inc()
	if err != nil {
		status := authStatus(err)
		if status == http.StatusInternalServerError {
			s.Log.Error("api login", zap.String("username", input.Username), zap.Error(err))
		}
		resp := APIResponse{Status: "error", Message: authMessage(lang, input.Username, err)}
		var lockout *auth.LockoutError
		if errors.As(err, &lockout) {
			w.Header().Set("Retry-After", strconv.Itoa(lockout.Seconds()))
			resp.Data = map[string]any{"retry_after": lockout.Seconds()}
		}
		sendJSONResponse(w, status, resp)
		return
	}

	sendJSONData(w, http.StatusOK, sess)
}

func (s *Server) APISignupHandler(w http.ResponseWriter, r *http.Request) {
	lang := i18n.DetectLanguage(r)
	if !s.signupLimiter.Allow(getClientIP(r)) {
		sendJSONError(w, http.StatusTooManyRequests, i18n.T(lang, "TooManyRequests"))
		return
	}

	var input struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONError(w, http.StatusBadRequest, i18n.T(lang, "InvalidRequestBody"))
		return
	}

	strength, err := s.Auth.RegisterSelf(r.Context(), input.Username, input.Password, input.Role)
	if err != nil {
		status := authStatus(err)
		if status == http.StatusInternalServerError {
			s.Log.Error("api signup", zap.String("username", input.Username), zap.Error(err))
		}
		sendJSONError(w, status, authMessage(lang, input.Username, err))
		return
	}
	metrics.Registrations.WithLabelValues(input.Role).Inc()

	token, err := s.Auth.Tokens().Issue(input.Username, input.Role)
	if err != nil {
		s.Log.Error("issue token", zap.Error(err))
		sendJSONError(w, http.StatusInternalServerError, i18n.T(lang, "InternalError"))
		return
	}
	sendJSONData(w, http.StatusCreated, map[string]any{
		"username": input.Username,
		"role":     input.Role,
		"strength": strength,
		"token":    token,
	})
}

func (s *Server) APIMeHandler(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	user, err := s.Auth.Profile(r.Context(), claims.Subject)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	sendJSONData(w, http.StatusOK, map[string]any{
		"user":        user,
		"departments": visibleDepartments(user.Role),
	})
}

// apiError maps storage and validation errors onto JSON error responses.
func (s *Server) apiError(w http.ResponseWriter, r *http.Request, err error) {
	lang := i18n.DetectLanguage(r)
	var verrs validator.ValidationErrors
	var schemaErr *store.SchemaError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, auth.ErrUserNotFound):
		sendJSONError(w, http.StatusNotFound, i18n.T(lang, "NotFound"))
	case errors.As(err, &verrs):
		sendJSONError(w, http.StatusBadRequest, verrs.Error())
	case errors.As(err, &schemaErr):
		sendJSONResponse(w, http.StatusUnprocessableEntity, APIResponse{
			Status:  "error",
			Message: importMessage(lang, err),
			Data:    map[string]any{"missing": schemaErr.Missing},
		})
	case errors.Is(err, store.ErrSchemaMismatch):
		sendJSONError(w, http.StatusUnprocessableEntity, i18n.T(lang, "EmptyOrInvalidCSV"))
	default:
		s.Log.Error("api request failed", zap.String("path", r.URL.Path), zap.Error(err))
		sendJSONError(w, http.StatusInternalServerError, i18n.T(lang, "InternalError"))
	}
}

func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	return id, err == nil
}

// resource is the CRUD surface shared by the three record tables.
type resource[T any] struct {
	list     func(context.Context) ([]T, error)
	get      func(context.Context, int64) (T, error)
	insert   func(context.Context, T) (int64, error)
	remove   func(context.Context, int64) error
	defaults func(*T)
}

func registerResource[T any](s *Server, mux *http.ServeMux, name, dept string, res resource[T]) {
	base := "/api/v1/" + name

	mux.HandleFunc("GET "+base, s.authorized(dept, func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		items, err := res.list(r.Context())
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		if items == nil {
			items = []T{}
		}
		sendJSONData(w, http.StatusOK, items)
	}))

	mux.HandleFunc("POST "+base, s.authorized(dept, func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		var item T
		if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
			sendJSONError(w, http.StatusBadRequest, i18n.T(i18n.DetectLanguage(r), "InvalidRequestBody"))
			return
		}
		if res.defaults != nil {
			res.defaults(&item)
		}
		if err := validate.Struct(item); err != nil {
			s.apiError(w, r, err)
			return
		}
		id, err := res.insert(r.Context(), item)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		created, err := res.get(r.Context(), id)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		sendJSONData(w, http.StatusCreated, created)
	}))

	mux.HandleFunc("GET "+base+"/{id}", s.authorized(dept, func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		id, ok := pathID(r)
		if !ok {
			s.apiError(w, r, store.ErrNotFound)
			return
		}
		item, err := res.get(r.Context(), id)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		sendJSONData(w, http.StatusOK, item)
	}))

	mux.HandleFunc("DELETE "+base+"/{id}", s.authorized(dept, func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		id, ok := pathID(r)
		if !ok {
			s.apiError(w, r, store.ErrNotFound)
			return
		}
		if err := res.remove(r.Context(), id); err != nil {
			s.apiError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
}

func (s *Server) statusHandler(update func(context.Context, int64, string) error) apiHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		lang := i18n.DetectLanguage(r)
		id, ok := pathID(r)
		if !ok {
			s.apiError(w, r, store.ErrNotFound)
			return
		}
		var input struct {
			Status string `json:"status" validate:"required"`
		}
		if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
			sendJSONError(w, http.StatusBadRequest, i18n.T(lang, "InvalidRequestBody"))
			return
		}
		if err := validate.Struct(input); err != nil {
			s.apiError(w, r, err)
			return
		}
		if err := update(r.Context(), id, input.Status); err != nil {
			s.apiError(w, r, err)
			return
		}
		sendJSONResponse(w, http.StatusOK, APIResponse{Status: "success", Message: i18n.T(lang, "StatusUpdated")})
	}
}

type countFunc func(context.Context) ([]models.CountRow, error)

func (s *Server) statsHandler(queries map[string]countFunc) apiHandler {
	return func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		out := make(map[string][]models.CountRow, len(queries))
		for name, q := range queries {
			rows, err := q(r.Context())
			if err != nil {
				s.apiError(w, r, err)
				return
			}
			if rows == nil {
				rows = []models.CountRow{}
			}
			out[name] = rows
		}
		sendJSONData(w, http.StatusOK, out)
	}
}

func (s *Server) APIUpdateDatasetHandler(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
	id, ok := pathID(r)
	if !ok {
		s.apiError(w, r, store.ErrNotFound)
		return
	}
	var d models.Dataset
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		sendJSONError(w, http.StatusBadRequest, i18n.T(i18n.DetectLanguage(r), "InvalidRequestBody"))
		return
	}
	d.ID = id
	if err := validate.Struct(d); err != nil {
		s.apiError(w, r, err)
		return
	}
	if err := s.Datasets.Update(r.Context(), d); err != nil {
		s.apiError(w, r, err)
		return
	}
	sendJSONData(w, http.StatusOK, d)
}

// APIImportHandler loads a CSV into the department's table. The file is the
// "file" part of a multipart form or the raw request body.
func (s *Server) APIImportHandler(w http.ResponseWriter, r *http.Request) {
	dept := r.PathValue("dept")
	if _, ok := departments[dept]; !ok {
		sendJSONError(w, http.StatusNotFound, i18n.T(i18n.DetectLanguage(r), "NotFound"))
		return
	}
	s.authorized(dept, func(w http.ResponseWriter, r *http.Request, _ *auth.Claims) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

		var src io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			file, _, err := r.FormFile("file")
			if err != nil {
				sendJSONError(w, http.StatusBadRequest, i18n.T(i18n.DetectLanguage(r), "ErrorUploadingFile"))
				return
			}
			defer file.Close()
			src = file
		}

		replace, _ := strconv.ParseBool(r.URL.Query().Get("replace"))
		n, err := s.loadCSV(r.Context(), dept, src, replace)
		if err != nil {
			s.apiError(w, r, err)
			return
		}
		sendJSONData(w, http.StatusOK, map[string]any{
			"table":    departments[dept].Table,
			"imported": n,
			"replace":  replace,
		})
	})(w, r)
}

func (s *Server) APIChatHistoryHandler(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	sess := &auth.Session{Username: claims.Subject, Role: claims.Role}
	role := chatRole(sess, r.URL.Query().Get("dept"))
	history, err := s.Chat.History(r.Context(), sess.Username, role)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	if history == nil {
		history = []models.ChatMessage{}
	}
	sendJSONData(w, http.StatusOK, history)
}

func (s *Server) APIChatHandler(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	lang := i18n.DetectLanguage(r)
	var input struct {
		Prompt string `json:"prompt" validate:"required"`
		Dept   string `json:"dept"`
	}
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		sendJSONError(w, http.StatusBadRequest, i18n.T(lang, "InvalidRequestBody"))
		return
	}
	input.Prompt = strings.TrimSpace(input.Prompt)
	if err := validate.Struct(input); err != nil {
		s.apiError(w, r, err)
		return
	}
	if !s.chatLimiter.Allow(claims.Subject) {
		sendJSONError(w, http.StatusTooManyRequests, i18n.T(lang, "TooManyRequests"))
		return
	}

	sess := &auth.Session{Username: claims.Subject, Role: claims.Role}
	reply, err := s.Chat.Ask(r.Context(), sess.Username, chatRole(sess, input.Dept), input.Prompt)
	if err != nil {
		s.apiError(w, r, err)
		return
	}
	sendJSONData(w, http.StatusOK, reply)
}

func (s *Server) APIClearChatHandler(w http.ResponseWriter, r *http.Request, claims *auth.Claims) {
	sess := &auth.Session{Username: claims.Subject, Role: claims.Role}
	if err := s.Chat.Clear(r.Context(), sess.Username, chatRole(sess, r.URL.Query().Get("dept"))); err != nil {
		s.apiError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
