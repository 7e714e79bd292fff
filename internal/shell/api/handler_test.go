package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/formdesk/internal/core/auth"
	"github.com/artpar/formdesk/internal/core/domain"
	"github.com/artpar/formdesk/internal/shell/api/middleware"
	"github.com/artpar/formdesk/internal/shell/metrics"
	"github.com/artpar/formdesk/internal/shell/store"
	"github.com/artpar/formdesk/internal/shell/uploads"
)

// =============================================================================
// Test Helpers
// =============================================================================

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type testServer struct {
	t         *testing.T
	store     *store.SQLStore
	metrics   *metrics.Metrics
	uploadDir string
	router    http.Handler
}

func setupTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()
	dir := t.TempDir()

	s, err := store.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	local, err := uploads.NewLocal(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	m := metrics.New()
	cfg := Config{
		Store:           s,
		Issuer:          auth.NewIssuer("test-secret", time.Hour),
		Uploader:        uploads.NewUploader(local, uploads.UploaderConfig{MaxFileSize: 1024}, m, nil),
		UploadDir:       local.Dir(),
		Metrics:         m,
		BcryptCost:      4,
		SubmitRateLimit: middleware.RateLimitConfig{PerMinute: 100},
		Webhooks:        true,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	return &testServer{
		t:         t,
		store:     s,
		metrics:   m,
		uploadDir: local.Dir(),
		router:    NewHandler(cfg).Routes(),
	}
}

func (ts *testServer) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	ts.t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

// signIn registers an account and returns its session cookie.
func (ts *testServer) signIn(email string) *http.Cookie {
	ts.t.Helper()
	rec := ts.do("POST", "/api/auth/register", map[string]string{"email": email, "password": "secret123", "name": "Owner"}, nil)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do("POST", "/api/auth/login", map[string]string{"email": email, "password": "secret123"}, nil)
	require.Equal(ts.t, http.StatusOK, rec.Code, rec.Body.String())
	for _, c := range rec.Result().Cookies() {
		if c.Name == "auth" {
			return c
		}
	}
	ts.t.Fatal("login set no auth cookie")
	return nil
}

func (ts *testServer) createForm(cookie *http.Cookie, body map[string]any) domain.Form {
	ts.t.Helper()
	rec := ts.do("POST", "/api/forms", body, cookie)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	var form domain.Form
	require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &form))
	return form
}

func feedbackForm(extra map[string]any) map[string]any {
	body := map[string]any{
		"title":    "Feedback",
		"isPublic": true,
		"fields": []map[string]any{
			{"label": "Name", "type": "TEXT", "required": true},
			{"label": "Rating", "type": "RADIO", "options": []string{"Good", "Bad"}},
			{"label": "Photo", "type": "IMAGE"},
		},
	}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type failingStore struct {
	store.Store
}

func (failingStore) Ping(ctx context.Context) error {
	return errors.New("database is gone")
}

// =============================================================================
// Health Tests
// =============================================================================

func TestHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("GET", "/health", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode(t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestLog_SingleComponent(t *testing.T) {
	var buf bytes.Buffer
	ts := setupTestServer(t, func(c *Config) {
		c.Logger = slog.New(slog.NewJSONHandler(&buf, nil))
	})

	rec := ts.do("GET", "/api/templates", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var line string
	for _, l := range strings.Split(buf.String(), "\n") {
		if strings.Contains(l, `"msg":"request completed"`) {
			line = l
		}
	}
	require.NotEmpty(t, line, buf.String())
	assert.Equal(t, 1, strings.Count(line, `"component"`), line)
	assert.Contains(t, line, `"component":"http"`)
	assert.Contains(t, line, `"client_ip"`)
}

func TestReady(t *testing.T) {
	ts := setupTestServer(t)
	rec := ts.do("GET", "/ready", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decode(t, rec)["status"])

	broken := setupTestServer(t, func(c *Config) { c.Store = failingStore{} })
	rec = broken.do("GET", "/ready", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, map[string]any{"database": "failed"}, decode(t, rec)["checks"])
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	ts.do("GET", "/health", nil, nil)

	rec := ts.do("GET", "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `formdesk_http_requests_total{method="GET",route="/health",status="200"} 1`)
}

// =============================================================================
// Auth Tests
// =============================================================================

func TestRegister(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/auth/register", map[string]string{"email": "Ann@Example.com", "password": "secret123", "name": "Ann"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "ann@example.com", body["email"])
	assert.Equal(t, "Ann", body["name"])
	assert.NotEmpty(t, body["id"])
	assert.NotContains(t, body, "passwordHash")

	rec = ts.do("POST", "/api/auth/register", map[string]string{"email": "ann@example.com", "password": "secret123"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Email already registered", decode(t, rec)["error"])
}

func TestRegister_Validation(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("POST", "/api/auth/register", map[string]string{"email": "nope", "password": "123"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "validation_error", body["code"])
	details := body["details"].(map[string]any)
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
}

func TestLoginLogoutMe(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")

	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	assert.Equal(t, 3600, cookie.MaxAge)

	rec := ts.do("GET", "/api/auth/me", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "owner@example.com", user["email"])

	rec = ts.do("GET", "/api/auth/me", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user":null}`, rec.Body.String())

	rec = ts.do("POST", "/api/auth/logout", nil, cookie)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())
	cleared := rec.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "auth", cleared[0].Name)
	assert.Empty(t, cleared[0].Value)
	assert.Less(t, cleared[0].MaxAge, 0)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ts := setupTestServer(t)
	ts.signIn("owner@example.com")

	for _, body := range []map[string]string{
		{"email": "owner@example.com", "password": "wrong-password"},
		{"email": "nobody@example.com", "password": "secret123"},
	} {
		rec := ts.do("POST", "/api/auth/login", body, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Invalid credentials", decode(t, rec)["error"])
		assert.Empty(t, rec.Result().Cookies())
	}
}

func TestProductionCookie(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) {
		c.Cookie = CookieConfig{Secure: true, SameSite: http.SameSiteNoneMode}
	})
	cookie := ts.signIn("owner@example.com")
	assert.True(t, cookie.Secure)
	assert.Equal(t, http.SameSiteNoneMode, cookie.SameSite)
}

// =============================================================================
// Form Tests
// =============================================================================

func TestForms_RequireAuth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("GET", "/api/forms", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authenticated", decode(t, rec)["error"])

	rec = ts.do("GET", "/api/forms", nil, &http.Cookie{Name: "auth", Value: "forged"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid token", decode(t, rec)["error"])
}

func TestCreateAndListForms(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")

	form := ts.createForm(cookie, feedbackForm(map[string]any{"brandColor": "#336699", "maxSubmissions": "5"}))
	assert.Len(t, form.PublicID, 12)
	require.Len(t, form.Fields, 3)
	assert.Equal(t, "Name", form.Fields[0].Label)
	assert.Equal(t, "#336699", form.BrandColor)
	require.NotNil(t, form.MaxSubmissions)
	assert.Equal(t, 5, *form.MaxSubmissions)

	rec := ts.do("GET", "/api/forms", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []domain.FormSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, form.ID, list[0].ID)
	assert.Equal(t, 0, list[0].Count.Submissions)
}

func TestListForms_AllUnlessPaged(t *testing.T) {
	old := formsPageSize
	formsPageSize = 2
	t.Cleanup(func() { formsPageSize = old })

	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	for i := 0; i < 5; i++ {
		ts.createForm(cookie, feedbackForm(nil))
	}

	list := func(path string) []domain.FormSummary {
		rec := ts.do("GET", path, nil, cookie)
		require.Equal(t, http.StatusOK, rec.Code)
		var out []domain.FormSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
		return out
	}

	all := list("/api/forms")
	require.Len(t, all, 5)
	seen := map[string]bool{}
	for _, f := range all {
		seen[f.ID] = true
	}
	assert.Len(t, seen, 5)

	assert.Len(t, list("/api/forms?limit=3"), 3)
	page := list("/api/forms?limit=3&offset=3")
	require.Len(t, page, 2)
	assert.Equal(t, all[3].ID, page[0].ID)
}

func TestCreateForm_Validation(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")

	rec := ts.do("POST", "/api/forms", map[string]any{
		"title":  "",
		"fields": []map[string]any{{"label": "Pick", "type": "RADIO"}},
	}, cookie)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode(t, rec)["details"].(map[string]any)
	assert.Contains(t, details, "title")
}

func TestForms_OwnerOnly(t *testing.T) {
	ts := setupTestServer(t)
	owner := ts.signIn("owner@example.com")
	other := ts.signIn("other@example.com")
	form := ts.createForm(owner, feedbackForm(nil))

	for _, req := range []struct{ method, path string }{
		{"GET", "/api/forms/" + form.ID},
		{"PATCH", "/api/forms/" + form.ID},
		{"DELETE", "/api/forms/" + form.ID},
		{"GET", "/api/submissions/form/" + form.ID},
		{"GET", "/api/submissions/export/" + form.ID + "/csv"},
		{"GET", "/api/submissions/stats/" + form.ID},
	} {
		rec := ts.do(req.method, req.path, map[string]any{"title": "Mine now"}, other)
		assert.Equal(t, http.StatusNotFound, rec.Code, req.method+" "+req.path)
		assert.Equal(t, "Form not found", decode(t, rec)["error"])
	}

	rec := ts.do("GET", "/api/forms/"+form.ID, nil, owner)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Feedback", decode(t, rec)["title"])
}

func TestUpdateForm(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(map[string]any{"thankYouMessage": "Thanks!"}))

	// PATCH without fields keeps them
	rec := ts.do("PATCH", "/api/forms/"+form.ID, map[string]any{"title": "Renamed"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var patched domain.Form
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patched))
	assert.Equal(t, "Renamed", patched.Title)
	assert.Equal(t, "Thanks!", patched.ThankYouMessage)
	assert.Len(t, patched.Fields, 3)

	// PUT with fields replaces them
	rec = ts.do("PUT", "/api/forms/"+form.ID, map[string]any{
		"fields":     []map[string]any{{"label": "Email", "type": "TEXT"}},
		"webhookUrl": "https://hooks.example.com/in",
	}, cookie)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := ts.store.GetForm(context.Background(), form.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, "https://hooks.example.com/in", stored.WebhookURL)
	require.Len(t, stored.Fields, 1)
	assert.Equal(t, "Email", stored.Fields[0].Label)

	rec = ts.do("PATCH", "/api/forms/"+form.ID, map[string]any{"webhookUrl": "ftp://nope"}, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteForm_RemovesUploads(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	rec := ts.submitMultipart(form.PublicID, map[string]string{"Name": "Ann"}, "Photo", "me.png", pngHeader)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	files, err := os.ReadDir(ts.uploadDir)
	require.NoError(t, err)
	require.Len(t, files, 1)

	rec = ts.do("DELETE", "/api/forms/"+form.ID, nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok":true}`, rec.Body.String())

	files, err = os.ReadDir(ts.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, files)

	rec = ts.do("GET", "/api/forms/"+form.ID, nil, cookie)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPublicForm(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	public := ts.createForm(cookie, feedbackForm(map[string]any{"webhookUrl": "https://hooks.example.com/x"}))
	draft := ts.createForm(cookie, feedbackForm(map[string]any{"isPublic": false}))

	rec := ts.do("GET", "/api/forms/public/"+public.PublicID, nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Feedback", body["title"])
	assert.NotContains(t, body, "ownerId")
	assert.NotContains(t, body, "webhookUrl")
	assert.Len(t, body["fields"], 3)

	rec = ts.do("GET", "/api/forms/public/"+draft.PublicID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do("GET", "/api/forms/public/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// Submission Tests
// =============================================================================

func (ts *testServer) submitMultipart(publicID string, values map[string]string, fileField, fileName string, content []byte) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range values {
		require.NoError(ts.t, mw.WriteField(k, v))
	}
	if fileField != "" {
		part, err := mw.CreateFormFile(fileField, fileName)
		require.NoError(ts.t, err)
		part.Write(content)
	}
	require.NoError(ts.t, mw.Close())

	req := httptest.NewRequest("POST", "/api/submissions/"+publicID, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func TestSubmit_JSON(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{
		form.Fields[0].ID: "Ann",
		"Rating":          "Good",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	id := decode(t, rec)["id"]
	assert.NotEmpty(t, id)

	subs, err := ts.store.ListSubmissions(context.Background(), form.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, id, subs[0].ID)
	assert.Equal(t, "Ann", subs[0].Answers[0].Value)
	assert.Equal(t, "Good", subs[0].Answers[1].Value)
	assert.Nil(t, subs[0].Answers[2].Value)

	out := httptest.NewRecorder()
	ts.metrics.Handler().ServeHTTP(out, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, out.Body.String(), "formdesk_submissions_total 1")
}

func TestSubmit_LegacyPublicPath(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	rec := ts.do("POST", "/api/submissions/public/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestSubmit_Validation(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Rating": "Meh"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	details := decode(t, rec)["details"].(map[string]any)
	assert.Contains(t, details, form.Fields[0].ID)
	assert.Contains(t, details, form.Fields[1].ID)

	count, err := ts.store.CountSubmissions(context.Background(), form.ID)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestSubmit_SettingsRules(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")

	future := time.Now().Add(24 * time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	longAgo := time.Now().Add(-48 * time.Hour).UTC().Format(time.RFC3339)

	tests := []struct {
		name  string
		extra map[string]any
		code  string
	}{
		{name: "not open", extra: map[string]any{"startDate": future}, code: "form_not_open"},
		{name: "closed", extra: map[string]any{"startDate": longAgo, "endDate": past}, code: "form_closed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := ts.createForm(cookie, feedbackForm(tt.extra))
			rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
			assert.Equal(t, http.StatusForbidden, rec.Code)
			assert.Equal(t, tt.code, decode(t, rec)["code"])
		})
	}

	t.Run("limit reached", func(t *testing.T) {
		form := ts.createForm(cookie, feedbackForm(map[string]any{"maxSubmissions": 1}))
		rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Bob"}, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "submission_limit", decode(t, rec)["code"])
	})

	t.Run("not public", func(t *testing.T) {
		form := ts.createForm(cookie, feedbackForm(map[string]any{"isPublic": false}))
		rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSubmit_ConcurrentLimit(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(map[string]any{"maxSubmissions": 3}))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest("POST", "/api/submissions/"+form.PublicID, strings.NewReader(`{"Name":"Ann"}`))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			ts.router.ServeHTTP(rec, req)
			if rec.Code == http.StatusCreated {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	count, err := ts.store.CountSubmissions(context.Background(), form.ID)
	require.NoError(t, err)
	assert.LessOrEqual(t, count, 3)
	assert.Equal(t, created, count)
}

func TestSubmit_Multipart(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	rec := ts.submitMultipart(form.PublicID, map[string]string{"Name": "Ann", "Rating": "Bad"}, form.Fields[2].ID, "Avatar.PNG", pngHeader)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	subs, err := ts.store.ListSubmissions(context.Background(), form.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	photo := subs[0].Answers[2]
	assert.True(t, strings.HasSuffix(photo.FilePath, ".png"), photo.FilePath)

	// Stored uploads are served under /uploads/
	served := ts.do("GET", "/uploads/"+filepath.Base(photo.FilePath), nil, nil)
	assert.Equal(t, http.StatusOK, served.Code)
	assert.Equal(t, pngHeader, served.Body.Bytes())
}

func TestSubmit_MultipartRejectsBadFiles(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	rec := ts.submitMultipart(form.PublicID, map[string]string{"Name": "Ann"}, "Photo", "notes.txt", []byte("plain text"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode(t, rec)["details"], form.Fields[2].ID)

	big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2048)...)
	rec = ts.submitMultipart(form.PublicID, map[string]string{"Name": "Ann"}, "Photo", "big.png", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "1.0 KiB")

	files, err := os.ReadDir(ts.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSubmit_RollsBackUploadsOnValidationError(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	// Name is required and missing
	rec := ts.submitMultipart(form.PublicID, nil, "Photo", "me.png", pngHeader)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	files, err := os.ReadDir(ts.uploadDir)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestSubmit_RateLimited(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) {
		c.SubmitRateLimit = middleware.RateLimitConfig{PerMinute: 2}
	})
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	for i := 0; i < 2; i++ {
		rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "Too many requests, please try again later", decode(t, rec)["error"])
}

func TestSubmit_QueuesWebhook(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(map[string]any{"webhookUrl": "https://hooks.example.com/in"}))

	rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	subID := decode(t, rec)["id"]

	due, err := ts.store.ListDueWebhookDeliveries(context.Background(), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "https://hooks.example.com/in", due[0].URL)
	assert.Equal(t, subID, due[0].SubmissionID)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(due[0].Payload, &payload))
	assert.Equal(t, "submission.created", payload["event"])
	assert.Equal(t, form.ID, payload["formId"])
	sub := payload["submission"].(map[string]any)
	assert.Equal(t, subID, sub["id"])
	assert.Equal(t, "Ann", sub[form.Fields[0].ID])
}

func TestSubmit_WebhooksDisabled(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) { c.Webhooks = false })
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(map[string]any{"webhookUrl": "https://hooks.example.com/in"}))

	rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "Ann"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	due, err := ts.store.ListDueWebhookDeliveries(context.Background(), time.Now().Add(time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due)
}

// =============================================================================
// Export and Stats Tests
// =============================================================================

func TestExport(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	for _, name := range []string{`Ann "the" First`, "Bob"} {
		rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": name, "Rating": "Good"}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do("GET", "/api/submissions/export/"+form.ID+"/csv", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="form-`+form.ID+`.csv"`, rec.Header().Get("Content-Disposition"))

	lines := strings.Split(rec.Body.String(), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, `"id","createdAt","`+form.Fields[0].ID+`","`+form.Fields[1].ID+`","`+form.Fields[2].ID+`"`, lines[0])
	assert.Contains(t, lines[1], `"Ann ""the"" First","Good",""`)
	assert.Contains(t, lines[2], `"Bob"`)

	rec = ts.do("GET", "/api/submissions/export/"+form.ID+"/JSON", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="form-`+form.ID+`.json"`, rec.Header().Get("Content-Disposition"))
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "Bob", rows[1][form.Fields[0].ID])
	assert.Nil(t, rows[1][form.Fields[2].ID])

	rec = ts.do("GET", "/api/submissions/export/"+form.ID+"/xlsx", nil, cookie)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_format", decode(t, rec)["code"])
}

func TestExport_Empty(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	rec := ts.do("GET", "/api/submissions/export/"+form.ID+"/csv", nil, cookie)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = ts.do("GET", "/api/submissions/export/"+form.ID+"/json", nil, cookie)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestListSubmissionsAndStats(t *testing.T) {
	ts := setupTestServer(t)
	cookie := ts.signIn("owner@example.com")
	form := ts.createForm(cookie, feedbackForm(nil))

	for _, rating := range []string{"Good", "Good", "Bad"} {
		rec := ts.do("POST", "/api/submissions/"+form.PublicID, map[string]any{"Name": "x", "Rating": rating}, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do("GET", "/api/submissions/form/"+form.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var subs []domain.Submission
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &subs))
	assert.Len(t, subs, 3)

	rec = ts.do("GET", "/api/submissions/stats/"+form.ID, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	var report struct {
		TotalResponses int `json:"totalResponses"`
		Fields         []struct {
			Label   string `json:"label"`
			Options []struct {
				Option string `json:"option"`
				Count  int    `json:"count"`
			} `json:"options"`
		} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 3, report.TotalResponses)
	require.Len(t, report.Fields, 3)
	require.Len(t, report.Fields[1].Options, 2)
	assert.Equal(t, "Good", report.Fields[1].Options[0].Option)
	assert.Equal(t, 2, report.Fields[1].Options[0].Count)
	assert.Equal(t, 1, report.Fields[1].Options[1].Count)
}

// =============================================================================
// Template and Docs Tests
// =============================================================================

func TestTemplates(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("GET", "/api/templates", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.NotEmpty(t, list)

	rec = ts.do("GET", "/api/templates/feedback", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["fields"])

	rec = ts.do("GET", "/api/templates/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Template not found", decode(t, rec)["error"])
}

func TestDocs(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("GET", "/api/docs", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	doc := decode(t, rec)
	assert.Equal(t, "3.0.3", doc["openapi"])
	paths := doc["paths"].(map[string]any)
	assert.Contains(t, paths, "/api/forms/{id}")
	assert.Contains(t, paths, "/api/submissions/export/{formId}/{type}")
}

func TestUnknownAPIRoute(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do("GET", "/api/nothing-here", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decode(t, rec)["code"])
}

func TestCORSPreflightThroughRouter(t *testing.T) {
	ts := setupTestServer(t, func(c *Config) {
		c.CORS = middleware.CORSConfig{FrontendOrigin: "https://forms.example.com"}
	})

	req := httptest.NewRequest(http.MethodOptions, "/api/forms", nil)
	req.Header.Set("Origin", "https://forms.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://forms.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

// =============================================================================
// Frontend Tests
// =============================================================================

func TestFrontendHandler(t *testing.T) {
	h := frontendHandler(fstest.MapFS{
		"index.html":    {Data: []byte("<html>app</html>")},
		"assets/app.js": {Data: []byte("console.log(1)")},
	})

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
		return rec
	}

	rec := serve("/")
	assert.Equal(t, "<html>app</html>", rec.Body.String())

	rec = serve("/assets/app.js")
	assert.Equal(t, "console.log(1)", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "javascript")

	rec = serve("/forms/abc/edit")
	assert.Equal(t, "<html>app</html>", rec.Body.String())

	rec = serve("/assets/missing.css")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
