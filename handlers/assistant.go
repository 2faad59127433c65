package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"intelplatform/auth"
	"intelplatform/i18n"
	"intelplatform/models"
)

// chatRole is the persona a session talks to. Admins may switch to a
// department persona with ?dept=.
func chatRole(sess *auth.Session, dept string) string {
	if sess.Role == models.RoleAdmin {
		if _, ok := departments[dept]; ok {
			return dept
		}
	}
	return sess.Role
}

func assistantURL(role string, sess *auth.Session) string {
	if role == sess.Role {
		return "/assistant"
	}
	return "/assistant?dept=" + url.QueryEscape(role)
}

func (s *Server) AssistantHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	role := chatRole(sess, r.URL.Query().Get("dept"))

	history, err := s.Chat.History(r.Context(), sess.Username, role)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.renderTemplate(w, r, "assistant.html", map[string]any{
		"ChatRole": role,
		"Messages": history,
	})
}

func (s *Server) AskHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	lang := i18n.DetectLanguage(r)
	role := chatRole(sess, r.FormValue("dept"))
	back := assistantURL(role, sess)

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		redirect(w, r, back)
		return
	}
	if !s.chatLimiter.Allow(sess.Username) {
		s.flashRedirect(w, r, back, i18n.T(lang, "TooManyRequests"))
		return
	}

	if _, err := s.Chat.Ask(r.Context(), sess.Username, role, prompt); err != nil {
		s.serverError(w, r, err)
		return
	}
	redirect(w, r, back)
}

func (s *Server) ClearChatHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	role := chatRole(sess, r.FormValue("dept"))
	if err := s.Chat.Clear(r.Context(), sess.Username, role); err != nil {
		s.serverError(w, r, err)
		return
	}
	redirect(w, r, assistantURL(role, sess))
}
