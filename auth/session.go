package auth

import (
	"net/http"

	"github.com/gorilla/sessions"

	"intelplatform/crypto"
)

const SessionName = "intel-session"

const (
	keyUsername = "username"
	keyRole     = "role"
	keyToken    = "token"
)

// Sessions wraps the cookie store that keeps the web login.
type Sessions struct {
	store *sessions.CookieStore
}

// NewSessions builds an authenticated, encrypted cookie store from keys.
func NewSessions(keys crypto.Keys, secure bool, maxAge int) *Sessions {
	store := sessions.NewCookieStore(keys.CookieAuth, keys.CookieEncryption)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

func (s *Sessions) Set(w http.ResponseWriter, r *http.Request, sess *Session) error {
	session, _ := s.store.Get(r, SessionName)
	session.Values[keyUsername] = sess.Username
	session.Values[keyRole] = sess.Role
	session.Values[keyToken] = sess.Token
	return session.Save(r, w)
}

// Get returns the logged-in session, or nil.
func (s *Sessions) Get(r *http.Request) *Session {
	session, _ := s.store.Get(r, SessionName)
	username, _ := session.Values[keyUsername].(string)
	if username == "" {
		return nil
	}
	role, _ := session.Values[keyRole].(string)
	token, _ := session.Values[keyToken].(string)
	return &Session{Username: username, Role: role, Token: token}
}

func (s *Sessions) Clear(w http.ResponseWriter, r *http.Request) error {
	session, _ := s.store.Get(r, SessionName)
	session.Values = map[any]any{}
	session.Options.MaxAge = -1
	return session.Save(r, w)
}

// AddFlash queues a one-shot message shown on the next page.
func (s *Sessions) AddFlash(w http.ResponseWriter, r *http.Request, msg string) error {
	session, _ := s.store.Get(r, SessionName)
	session.AddFlash(msg)
	return session.Save(r, w)
}

func (s *Sessions) Flashes(w http.ResponseWriter, r *http.Request) []string {
	session, _ := s.store.Get(r, SessionName)
	raw := session.Flashes()
	if len(raw) == 0 {
		return nil
	}
	_ = session.Save(r, w)

	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}
