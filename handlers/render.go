package handlers

import (
	"embed"
	"html/template"
	"net/http"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/csrf"
	"go.uber.org/zap"

	"intelplatform/i18n"
	"intelplatform/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// bar is one row of a server-rendered bar chart.
type bar struct {
	Label string
	Count int
	Pct   int
}

type chartData struct {
	Title string
	Bars  []bar
}

func newChart(title string, rows []models.CountRow) chartData {
	max := 0
	for _, r := range rows {
		if r.Count > max {
			max = r.Count
		}
	}
	c := chartData{Title: title}
	for _, r := range rows {
		label := r.Label
		if label == "" {
			label = "-"
		}
		pct := 0
		if max > 0 {
			pct = r.Count * 100 / max
		}
		c.Bars = append(c.Bars, bar{Label: label, Count: r.Count, Pct: pct})
	}
	return c
}

func (s *Server) renderTemplate(w http.ResponseWriter, r *http.Request, name string, data map[string]any) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

// renderStatus renders the page name inside the layout with the given status.
func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]any) {
	lang := i18n.DetectLanguage(r)

	funcMap := template.FuncMap{
		"T": func(key string) string {
			return i18n.T(lang, key)
		},
		"Tf": func(key string, args ...any) string {
			return i18n.Tf(lang, key, args...)
		},
		"comma": func(n int) string { return humanize.Comma(int64(n)) },
		"since": humanize.Time,
		"upper": strings.ToUpper,
	}

	tmpl, err := template.New(name).Funcs(funcMap).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
	if err != nil {
		s.Log.Error("parse template", zap.String("template", name), zap.Error(err))
		http.Error(w, i18n.T(lang, "InternalError"), http.StatusInternalServerError)
		return
	}

	if data == nil {
		data = map[string]any{}
	}
	if _, exists := data["AppName"]; !exists {
		data["AppName"] = s.Config.AppName
	}
	data["Lang"] = lang
	data["csrfField"] = csrf.TemplateField(r)
	if sess := s.Sessions.Get(r); sess != nil {
		data["Session"] = sess
		data["Departments"] = visibleDepartments(sess.Role)
	}
	data["Flashes"] = s.Sessions.Flashes(w, r)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout", data); err != nil {
		s.Log.Error("render template", zap.String("template", name), zap.Error(err))
	}
}

// visibleDepartments lists the dashboards role may open, in menu order.
func visibleDepartments(role string) []string {
	var out []string
	for _, d := range []string{models.RoleCyber, models.RoleIT, models.RoleData} {
		if canView(role, d) {
			out = append(out, d)
		}
	}
	return out
}

// redirect sends the browser to url, using HX-Redirect for htmx requests.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

// flashRedirect queues msg for the next page and redirects to url.
func (s *Server) flashRedirect(w http.ResponseWriter, r *http.Request, url, msg string) {
	if err := s.Sessions.AddFlash(w, r, msg); err != nil {
		s.Log.Warn("save flash", zap.Error(err))
	}
	redirect(w, r, url)
}
