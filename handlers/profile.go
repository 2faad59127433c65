package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"intelplatform/auth"
	"intelplatform/i18n"
)

func (s *Server) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	user, err := s.Auth.Profile(r.Context(), sess.Username)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.renderTemplate(w, r, "profile.html", map[string]any{
		"User":      user,
		"HasAvatar": s.Auth.AvatarPath(user) != "",
	})
}

func (s *Server) UploadAvatarHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	lang := i18n.DetectLanguage(r)
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	file, _, err := r.FormFile("avatar")
	if err != nil {
		s.flashRedirect(w, r, "/profile", i18n.T(lang, "ErrorUploadingFile"))
		return
	}
	defer file.Close()

	if _, err := s.Auth.SetAvatar(r.Context(), sess.Username, file); err != nil {
		if errors.Is(err, auth.ErrUnsupportedImage) {
			s.flashRedirect(w, r, "/profile", i18n.T(lang, "UnsupportedImage"))
			return
		}
		s.serverError(w, r, err)
		return
	}
	s.flashRedirect(w, r, "/profile", i18n.T(lang, "AvatarUpdated"))
}

func (s *Server) RemoveAvatarHandler(w http.ResponseWriter, r *http.Request) {
	sess := s.requireSession(w, r)
	if sess == nil {
		return
	}
	if err := s.Auth.RemoveAvatar(r.Context(), sess.Username); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.flashRedirect(w, r, "/profile", i18n.T(i18n.DetectLanguage(r), "AvatarRemoved"))
}

// AvatarHandler serves a user's picture to any logged-in user.
func (s *Server) AvatarHandler(w http.ResponseWriter, r *http.Request) {
	if s.Sessions.Get(r) == nil {
		http.Error(w, i18n.T(i18n.DetectLanguage(r), "Forbidden"), http.StatusForbidden)
		return
	}
	user, err := s.Auth.Profile(r.Context(), r.PathValue("username"))
	if err != nil {
		if !errors.Is(err, auth.ErrUserNotFound) {
			s.Log.Warn("avatar lookup", zap.Error(err))
		}
		http.NotFound(w, r)
		return
	}
	path := s.Auth.AvatarPath(user)
	if path == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, path)
}
