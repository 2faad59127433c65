package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"intelplatform/i18n"
	"intelplatform/metrics"
	"intelplatform/models"
	"intelplatform/store"
)

const maxUploadBytes = 10 << 20

var validate = validator.New()

var (
	incidentSeverities = []string{"Low", "Medium", "High", "Critical"}
	incidentStatuses   = []string{"Open", "In Progress", "Resolved", "Closed"}
	ticketPriorities   = []string{"Low", "Medium", "High"}
	ticketStatuses     = []string{"Pending", "Open", "In Progress", "Resolved", "Closed"}
)

const timestampLayout = "2006-01-02 15:04:05"

// department resolves {dept} and checks the session may see it. It writes
// the error response itself and returns false when the request must stop.
func (s *Server) department(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return "", "", false
	}
	dept := r.PathValue("dept")
	if _, ok := departments[dept]; !ok {
		http.NotFound(w, r)
		return "", "", false
	}
	if !canView(sess.Role, dept) {
		http.Error(w, i18n.T(i18n.DetectLanguage(r), "Forbidden"), http.StatusForbidden)
		return "", "", false
	}
	return dept, sess.Username, true
}

func (s *Server) DepartmentHandler(w http.ResponseWriter, r *http.Request) {
	dept, _, ok := s.department(w, r)
	if !ok {
		return
	}

	data, err := s.departmentData(r.Context(), i18n.DetectLanguage(r), dept)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	data["Dept"] = dept
	s.renderTemplate(w, r, "dashboard_"+dept+".html", data)
}

func (s *Server) departmentData(ctx context.Context, lang, dept string) (map[string]any, error) {
	switch dept {
	case models.RoleCyber:
		incidents, err := s.Incidents.List(ctx)
		if err != nil {
			return nil, err
		}
		bySeverity, err := s.Incidents.CountBySeverity(ctx)
		if err != nil {
			return nil, err
		}
		byCategory, err := s.Incidents.CountByCategory(ctx)
		if err != nil {
			return nil, err
		}
		highByStatus, err := s.Incidents.HighSeverityByStatus(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"Incidents":  incidents,
			"Severities": incidentSeverities,
			"Statuses":   incidentStatuses,
			"Charts": []chartData{
				newChart(i18n.T(lang, "BySeverity"), bySeverity),
				newChart(i18n.T(lang, "ByCategory"), byCategory),
				newChart(i18n.T(lang, "HighSeverityByStatus"), highByStatus),
			},
		}, nil

	case models.RoleIT:
		tickets, err := s.Tickets.List(ctx)
		if err != nil {
			return nil, err
		}
		byStatus, err := s.Tickets.CountByStatus(ctx)
		if err != nil {
			return nil, err
		}
		byPriority, err := s.Tickets.CountByPriority(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"Tickets":    tickets,
			"Priorities": ticketPriorities,
			"Statuses":   ticketStatuses,
			"Charts": []chartData{
				newChart(i18n.T(lang, "ByStatus"), byStatus),
				newChart(i18n.T(lang, "ByPriority"), byPriority),
			},
		}, nil

	default:
		datasets, err := s.Datasets.List(ctx)
		if err != nil {
			return nil, err
		}
		totalRows := 0
		for _, d := range datasets {
			totalRows += d.Rows
		}
		return map[string]any{"Datasets": datasets, "TotalRows": totalRows}, nil
	}
}

// DepartmentActionHandler handles the dashboard forms: add, status, update,
// delete, import and register.
func (s *Server) DepartmentActionHandler(w http.ResponseWriter, r *http.Request) {
	dept, username, ok := s.department(w, r)
	if !ok {
		return
	}
	lang := i18n.DetectLanguage(r)
	back := "/dashboard/" + dept
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	var msg string
	switch r.PathValue("action") {
	case "add":
		msg = s.addRecord(r, lang, dept, username)
	case "status":
		msg = s.updateStatus(r, lang, dept)
	case "update":
		msg = s.updateDataset(r, lang, dept)
	case "delete":
		msg = s.deleteRecord(r, lang, dept)
	case "import":
		msg = s.importCSV(r, lang, dept)
	case "register":
		msg = s.registerDataset(r, lang, dept, username)
	default:
		http.NotFound(w, r)
		return
	}
	s.flashRedirect(w, r, back, msg)
}

func (s *Server) failure(r *http.Request, lang string, err error) string {
	var verrs validator.ValidationErrors
	switch {
	case errors.Is(err, store.ErrNotFound):
		return i18n.T(lang, "NotFound")
	case errors.As(err, &verrs):
		return verrs.Error()
	}
	s.Log.Error("dashboard action", zap.String("path", r.URL.Path), zap.Error(err))
	return i18n.T(lang, "InternalError")
}

func formInt(r *http.Request, key string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(r.FormValue(key)))
	return n
}

func formID(r *http.Request) (int64, error) {
	return strconv.ParseInt(strings.TrimSpace(r.FormValue("id")), 10, 64)
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

// insertRecord validates rec and stores it in the department's table.
func (s *Server) insertRecord(ctx context.Context, dept string, rec any) (int64, error) {
	if err := validate.Struct(rec); err != nil {
		return 0, err
	}
	switch v := rec.(type) {
	case models.Incident:
		return s.Incidents.Insert(ctx, v)
	case models.Ticket:
		return s.Tickets.Insert(ctx, v)
	case models.Dataset:
		return s.Datasets.Insert(ctx, v)
	}
	return 0, errors.New("unknown department " + dept)
}

func (s *Server) addRecord(r *http.Request, lang, dept, username string) string {
	now := time.Now()
	var rec any
	switch dept {
	case models.RoleCyber:
		rec = models.Incident{
			Timestamp:   orDefault(r.FormValue("timestamp"), now.Format(timestampLayout)),
			Severity:    r.FormValue("severity"),
			Category:    strings.TrimSpace(r.FormValue("category")),
			Status:      orDefault(r.FormValue("status"), "Open"),
			Description: strings.TrimSpace(r.FormValue("description")),
		}
	case models.RoleIT:
		rec = models.Ticket{
			Priority:            r.FormValue("priority"),
			Description:         strings.TrimSpace(r.FormValue("description")),
			Status:              orDefault(r.FormValue("status"), "Pending"),
			AssignedTo:          orDefault(r.FormValue("assigned_to"), "Admin"),
			CreatedAt:           orDefault(r.FormValue("created_at"), now.Format(time.RFC3339)),
			ResolutionTimeHours: formInt(r, "resolution_time_hours"),
		}
	default:
		rec = models.Dataset{
			Name:       strings.TrimSpace(r.FormValue("name")),
			Rows:       formInt(r, "rows"),
			Columns:    formInt(r, "columns"),
			UploadedBy: orDefault(r.FormValue("uploaded_by"), username),
			UploadDate: orDefault(r.FormValue("upload_date"), now.Format(time.DateOnly)),
		}
	}

	if _, err := s.insertRecord(r.Context(), dept, rec); err != nil {
		return s.failure(r, lang, err)
	}
	return i18n.T(lang, "RecordAdded")
}

func (s *Server) updateStatus(r *http.Request, lang, dept string) string {
	id, err := formID(r)
	if err != nil {
		return i18n.T(lang, "NotFound")
	}
	status := strings.TrimSpace(r.FormValue("status"))
	if dept != models.RoleData {
		if err := validate.Var(status, "required"); err != nil {
			return i18n.T(lang, "StatusRequired")
		}
	}
	switch dept {
	case models.RoleCyber:
		err = s.Incidents.UpdateStatus(r.Context(), id, status)
	case models.RoleIT:
		err = s.Tickets.UpdateStatus(r.Context(), id, status)
	default:
		return s.updateDataset(r, lang, dept)
	}
	if err != nil {
		return s.failure(r, lang, err)
	}
	return i18n.T(lang, "StatusUpdated")
}

// updateDataset rewrites a dataset's metadata; datasets have no status.
func (s *Server) updateDataset(r *http.Request, lang, dept string) string {
	if dept != models.RoleData {
		return i18n.T(lang, "NotFound")
	}
	id, err := formID(r)
	if err != nil {
		return i18n.T(lang, "NotFound")
	}
	current, err := s.Datasets.Get(r.Context(), id)
	if err != nil {
		return s.failure(r, lang, err)
	}
	current.Name = orDefault(r.FormValue("name"), current.Name)
	if v := r.FormValue("rows"); v != "" {
		current.Rows = formInt(r, "rows")
	}
	if v := r.FormValue("columns"); v != "" {
		current.Columns = formInt(r, "columns")
	}
	current.UploadedBy = orDefault(r.FormValue("uploaded_by"), current.UploadedBy)
	current.UploadDate = orDefault(r.FormValue("upload_date"), current.UploadDate)

	if err := validate.Struct(current); err != nil {
		return s.failure(r, lang, err)
	}
	if err := s.Datasets.Update(r.Context(), current); err != nil {
		return s.failure(r, lang, err)
	}
	return i18n.T(lang, "RecordUpdated")
}

func (s *Server) deleteRecord(r *http.Request, lang, dept string) string {
	id, err := formID(r)
	if err != nil {
		return i18n.T(lang, "NotFound")
	}
	if err := s.deleteByID(r.Context(), dept, id); err != nil {
		return s.failure(r, lang, err)
	}
	return i18n.T(lang, "RecordDeleted")
}

func (s *Server) deleteByID(ctx context.Context, dept string, id int64) error {
	switch dept {
	case models.RoleCyber:
		return s.Incidents.Delete(ctx, id)
	case models.RoleIT:
		return s.Tickets.Delete(ctx, id)
	}
	return s.Datasets.Delete(ctx, id)
}

func (s *Server) importCSV(r *http.Request, lang, dept string) string {
	file, _, err := r.FormFile("csv_file")
	if err != nil {
		return i18n.T(lang, "ErrorUploadingFile")
	}
	defer file.Close()

	replace := r.FormValue("replace") == "on" || r.FormValue("mode") == "replace"
	n, err := s.loadCSV(r.Context(), dept, file, replace)
	if err != nil {
		return importMessage(lang, err)
	}
	return i18n.Tf(lang, "ImportDone", n)
}

func (s *Server) loadCSV(ctx context.Context, dept string, src io.Reader, replace bool) (int, error) {
	schema := departments[dept]
	n, err := store.ImportCSV(ctx, s.DB, schema, src, store.ImportOptions{Replace: replace})
	if err != nil {
		s.Log.Info("csv import rejected", zap.String("table", schema.Table), zap.Error(err))
		return 0, err
	}
	metrics.CSVRowsImported.WithLabelValues(schema.Table).Add(float64(n))
	s.Log.Info("csv imported", zap.String("table", schema.Table), zap.Int("rows", n), zap.Bool("replace", replace))
	return n, nil
}

func importMessage(lang string, err error) string {
	var schemaErr *store.SchemaError
	if errors.As(err, &schemaErr) {
		return i18n.Tf(lang, "SchemaMismatch", strings.Join(schemaErr.Missing, ", "))
	}
	return i18n.T(lang, "EmptyOrInvalidCSV")
}

func (s *Server) registerDataset(r *http.Request, lang, dept, username string) string {
	if dept != models.RoleData {
		return i18n.T(lang, "NotFound")
	}
	file, header, err := r.FormFile("dataset_file")
	if err != nil {
		return i18n.T(lang, "ErrorUploadingFile")
	}
	defer file.Close()

	d, err := s.Datasets.RegisterUpload(r.Context(), header.Filename, file, username, time.Now().Format(time.DateOnly))
	if err != nil {
		if errors.Is(err, store.ErrSchemaMismatch) {
			return i18n.T(lang, "EmptyOrInvalidCSV")
		}
		return s.failure(r, lang, err)
	}
	return i18n.Tf(lang, "ImportDone", d.Rows)
}
