package handlers

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/url"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intelplatform/config"
)

func TestWebLoginFlow(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.register(t, "alice", "Password123", "cyber")
	b := env.browser(t)

	rr := b.get("/")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="/login"`)

	rr = b.login("alice", "Password123")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard", rr.Header().Get("Location"))

	rr = b.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/dashboard/cyber", rr.Header().Get("Location"))

	rr = b.get("/dashboard/cyber")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Welcome, alice!")
	assert.Contains(t, body, `action="/dashboard/cyber/import"`)

	// flashes are shown once
	rr = b.get("/dashboard/cyber")
	assert.NotContains(t, rr.Body.String(), "Welcome, alice!")

	rr = b.get("/dashboard/it")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = b.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	rr = b.get("/dashboard")
	assert.Equal(t, "/", rr.Header().Get("Location"))
}

func TestWebLoginMessages(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.register(t, "alice", "Password123", "cyber")
	b := env.browser(t)

	rr := b.login("ghost", "Password123")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "User not found.")

	rr = b.login("alice", "nope")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "Incorrect password.")

	b.login("alice", "nope")
	rr = b.login("alice", "nope")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Contains(t, rr.Body.String(), "Locked out. Try again in 300 seconds.")
}

func TestWebSignup(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	b := env.browser(t)

	rr := b.post("/signup", url.Values{"username": {"dave"}, "password": {"Password123"}, "role": {"data"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = b.get("/")
	assert.Contains(t, rr.Body.String(), "User &#39;dave&#39; registered.")

	rr = b.post("/signup", url.Values{"username": {"dave"}, "password": {"Password123"}, "role": {"data"}})
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = b.post("/signup", url.Values{"username": {"eve"}, "password": {"Password123"}, "role": {"finance"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestWebDepartmentActions(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.register(t, "bob", "Password123", "it")
	b := env.browser(t)
	b.login("bob", "Password123")

	csvBody := []byte("Priority,Description,Status,Assigned_To,Created_At,Resolution_Time_Hours\n" +
		"High,Printer on fire,Open,Sam,2024-03-01T09:00:00,4\n" +
		"Low,Password reset,Resolved,Kim,2024-03-02T09:00:00,1\n")
	rr := b.upload("/dashboard/it/import", "csv_file", "tickets.csv", csvBody, url.Values{"mode": {"replace"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = b.get("/dashboard/it")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Imported 2 rows.")
	assert.Contains(t, body, "Printer on fire")

	rr = b.post("/dashboard/it/add", url.Values{"priority": {"Medium"}, "description": {"Laptop slow"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	tickets, err := env.srv.Tickets.List(t.Context())
	require.NoError(t, err)
	require.Len(t, tickets, 3)
	var added int64
	for _, tk := range tickets {
		if tk.Description == "Laptop slow" {
			added = tk.ID
			assert.Equal(t, "Pending", tk.Status)
			assert.Equal(t, "Admin", tk.AssignedTo)
		}
	}
	require.NotZero(t, added)

	id := url.Values{"id": {strconv.FormatInt(added, 10)}}
	rr = b.post("/dashboard/it/status", url.Values{"id": id["id"], "status": {"Resolved"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	got, err := env.srv.Tickets.Get(t.Context(), added)
	require.NoError(t, err)
	assert.Equal(t, "Resolved", got.Status)

	b.post("/dashboard/it/status", url.Values{"id": id["id"], "status": {"  "}})
	assert.Contains(t, b.get("/dashboard/it").Body.String(), "Choose a status.")
	got, err = env.srv.Tickets.Get(t.Context(), added)
	require.NoError(t, err)
	assert.Equal(t, "Resolved", got.Status, "a blank status is not written")

	b.post("/dashboard/it/delete", id)
	assert.Contains(t, b.get("/dashboard/it").Body.String(), "Record deleted.")

	// an incident export is refused with the missing columns listed
	b.upload("/dashboard/it/import", "csv_file", "incidents.csv", []byte("timestamp,severity,category,status,description\n"), nil)
	assert.Contains(t, b.get("/dashboard/it").Body.String(), "Missing: priority, assigned_to")

	rr = b.post("/dashboard/it/explode", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWebDatasetRegister(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.register(t, "carol", "Password123", "data")
	b := env.browser(t)
	b.login("carol", "Password123")

	rr := b.upload("/dashboard/data/register", "dataset_file", "survey.csv", []byte("a,b,c\n1,2,3\n4,5,6\n7,8,9\n"), nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	datasets, err := env.srv.Datasets.List(t.Context())
	require.NoError(t, err)
	require.Len(t, datasets, 1)
	assert.Equal(t, "survey.csv", datasets[0].Name)
	assert.Equal(t, 3, datasets[0].Rows)
	assert.Equal(t, 3, datasets[0].Columns)
	assert.Equal(t, "carol", datasets[0].UploadedBy)

	rr = b.post("/dashboard/data/update", url.Values{"id": {strconv.FormatInt(datasets[0].ID, 10)}, "name": {"survey_v2.csv"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	d, err := env.srv.Datasets.Get(t.Context(), datasets[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "survey_v2.csv", d.Name)
	assert.Equal(t, 3, d.Rows)
}

func TestWebAdminSeesEverything(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.register(t, "root", "Password123", "admin")
	b := env.browser(t)
	b.login("root", "Password123")

	rr := b.get("/dashboard")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "root")

	for _, dept := range []string{"cyber", "it", "data"} {
		rr = b.get("/dashboard/" + dept)
		assert.Equal(t, http.StatusOK, rr.Code, dept)
	}
	assert.Equal(t, http.StatusNotFound, b.get("/dashboard/finance").Code)
}

func TestWebAssistant(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.register(t, "alice", "Password123", "cyber")
	b := env.browser(t)
	b.login("alice", "Password123")

	rr := b.post("/assistant", url.Values{"prompt": {"Summarise today"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = b.get("/assistant")
	require.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "Summarise today")
	assert.Contains(t, body, "Two incidents are open.")

	b.post("/assistant/clear", nil)
	assert.NotContains(t, b.get("/assistant").Body.String(), "Summarise today")
}

func TestWebAvatar(t *testing.T) {
	env := newTestEnv(t, config.Config{})
	env.register(t, "alice", "Password123", "cyber")
	b := env.browser(t)

	assert.Equal(t, http.StatusForbidden, b.get("/avatars/alice").Code)
	b.login("alice", "Password123")
	assert.Equal(t, http.StatusNotFound, b.get("/avatars/alice").Code)

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	rr := b.upload("/profile/avatar", "avatar", "me.png", buf.Bytes(), nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)

	rr = b.get("/avatars/alice")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "image/jpeg", rr.Header().Get("Content-Type"))

	b.upload("/profile/avatar", "avatar", "notes.txt", []byte("plain text"), nil)
	assert.Contains(t, b.get("/profile").Body.String(), "PNG")

	rr = b.post("/profile/avatar/remove", nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, http.StatusNotFound, b.get("/avatars/alice").Code)
}
