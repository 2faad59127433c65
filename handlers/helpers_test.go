package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"intelplatform/auth"
	"intelplatform/chat"
	"intelplatform/config"
	"intelplatform/crypto"
	"intelplatform/db"
	"intelplatform/i18n"
	"intelplatform/store"
)

func TestMain(m *testing.M) {
	db.HashCost = bcrypt.MinCost
	if err := i18n.Load(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	got   []chat.Request
}

func (g *stubGenerator) Generate(_ context.Context, req chat.Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.got = append(g.got, req)
	return g.reply, nil
}

func (g *stubGenerator) last() chat.Request {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.got[len(g.got)-1]
}

type testEnv struct {
	srv *Server
	gen *stubGenerator
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "handlers.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(context.Background(), conn))
	t.Cleanup(func() { conn.Close() })

	log := zaptest.NewLogger(t)
	keys := crypto.DeriveKeys("test-session-key-must-be-32-bytes-long")
	authSvc := auth.NewService(
		store.NewUsers(conn),
		auth.NewMemoryTracker(300*time.Second),
		auth.NewTokens(keys.Token, time.Hour),
		auth.Options{AvatarDir: t.TempDir()},
		log,
	)

	incidents := store.NewIncidents(conn)
	tickets := store.NewTickets(conn)
	datasets := store.NewDatasets(conn)
	gen := &stubGenerator{reply: "Two incidents are open."}
	chatSvc := chat.NewService(store.NewChatHistory(conn), chat.NewContextSource(incidents, tickets, datasets, 50), gen, time.Second, log)

	if cfg.AppName == "" {
		cfg.AppName = "Test Platform"
	}
	srv := NewServer(Deps{
		Config:    cfg,
		DB:        conn,
		Auth:      authSvc,
		Sessions:  auth.NewSessions(keys, false, 3600),
		Chat:      chatSvc,
		Incidents: incidents,
		Tickets:   tickets,
		Datasets:  datasets,
		CSRFKey:   keys.CSRF,
		Log:       log,
	})
	return &testEnv{srv: srv, gen: gen}
}

func (e *testEnv) register(t *testing.T, username, password, role string) {
	t.Helper()
	_, err := e.srv.Auth.Register(context.Background(), username, password, role)
	require.NoError(t, err)
}

// apiToken registers username with role and returns a session token.
func (e *testEnv) apiToken(t *testing.T, username, role string) string {
	t.Helper()
	e.register(t, username, "Password123", role)
	token, err := e.srv.Auth.Tokens().Issue(username, role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) api(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, APIResponse) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.srv.Routes().ServeHTTP(rr, req)

	var resp APIResponse
	if rr.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp), rr.Body.String())
	}
	return rr, resp
}

// browser drives the web routes without the CSRF layer, keeping the session
// cookie between requests.
type browser struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func (e *testEnv) browser(t *testing.T) *browser {
	return &browser{t: t, handler: e.srv.webRoutes()}
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	if b.cookie != nil {
		req.AddCookie(b.cookie)
	}
	rr := httptest.NewRecorder()
	b.handler.ServeHTTP(rr, req)
	for _, c := range rr.Result().Cookies() {
		if c.Name == auth.SessionName {
			b.cookie = c
		}
	}
	return rr
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func (b *browser) upload(path, field, filename string, content []byte, fields url.Values) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(b.t, mw.WriteField(k, v))
		}
	}
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(b.t, err)
	_, err = fw.Write(content)
	require.NoError(b.t, err)
	require.NoError(b.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return b.do(req)
}

func (b *browser) login(username, password string) *httptest.ResponseRecorder {
	return b.post("/login", url.Values{"username": {username}, "password": {password}})
}
