package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmcdole/gofeed"

	"github.com/lysyi3m/cine-comb/app/database"
	"github.com/lysyi3m/cine-comb/app/movie"
)

const testAPIKey = "test-key"

type fakeTrigger struct {
	err   error
	calls int
}

func (f *fakeTrigger) TriggerRun() (string, error) {
	f.calls++
	return "task-1", f.err
}

type fakeCache struct {
	status string
}

func (f *fakeCache) Health(_ context.Context) map[string]any {
	return map[string]any{"status": f.status, "type": "redis"}
}

type testEnv struct {
	router    *gin.Engine
	snapshots *database.SnapshotRepository
	reports   *database.ReportRepository
	trigger   *fakeTrigger
}

func newTestEnv(t *testing.T, cache HealthChecker) *testEnv {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "cine.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	env := &testEnv{
		snapshots: database.NewSnapshotRepository(db),
		reports:   database.NewReportRepository(db),
		trigger:   &fakeTrigger{},
	}

	feed := NewReportFeed("Películas Cineco", "http://localhost:8080", "test")
	handler := NewHandler(env.snapshots, env.reports, env.trigger, cache, feed)
	env.router = NewServer(handler, testAPIKey)

	return env
}

func (e *testEnv) do(method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) seed(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	snap := movie.NewSnapshot(movie.Movie{
		Title:        "Wicked Parte Dos",
		URL:          "https://example.com/wicked",
		PremiereDate: time.Date(2025, 11, 20, 0, 0, 0, 0, time.UTC),
		Status:       movie.StatusInTheaters,
		Genres:       []string{"Musical"},
		Premiere:     true,
	})
	if _, err := e.snapshots.Put(ctx, time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC), snap); err != nil {
		t.Fatalf("Failed to seed snapshot: %v", err)
	}

	for i, date := range []string{"2025-11-19", "2025-11-20"} {
		report := &database.Report{
			SnapshotDate: date,
			Content:      "# Películas Cineco\n\n## Cartelera\n\n- 🍿🆕[Wicked Parte Dos](https://example.com/wicked)\n",
			Summary:      movie.Summary{Added: i + 1},
			CreatedAt:    time.Date(2025, 11, 19+i, 9, 0, 0, 0, time.UTC),
		}
		if _, err := e.reports.Save(ctx, report); err != nil {
			t.Fatalf("Failed to seed report: %v", err)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, &fakeCache{status: "healthy"})
	env.seed(t)

	w := env.do(http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
	if body["latest_snapshot"] != "2025-11-20" {
		t.Errorf("Expected latest snapshot 2025-11-20, got %v", body["latest_snapshot"])
	}
}

func TestHealthDegradedCache(t *testing.T) {
	env := newTestEnv(t, &fakeCache{status: "unhealthy"})

	w := env.do(http.MethodGet, "/health", nil)

	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["status"] != "degraded" {
		t.Errorf("Expected degraded status, got %v", body["status"])
	}
}

func TestLatestReport(t *testing.T) {
	env := newTestEnv(t, nil)

	if w := env.do(http.MethodGet, "/report", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 before any report, got %d", w.Code)
	}

	env.seed(t)
	w := env.do(http.MethodGet, "/report", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.HasPrefix(w.Header().Get("Content-Type"), "text/markdown") {
		t.Errorf("Expected markdown content type, got %s", w.Header().Get("Content-Type"))
	}
	if w.Header().Get("X-Snapshot-Date") != "2025-11-20" {
		t.Errorf("Expected latest report, got snapshot date %s", w.Header().Get("X-Snapshot-Date"))
	}
	if !strings.Contains(w.Body.String(), "[Wicked Parte Dos]") {
		t.Errorf("Unexpected report body: %s", w.Body.String())
	}
}

func TestReportFeed(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)

	w := env.do(http.MethodGet, "/reports.rss", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w.Header().Get("X-Feed-Items") != "2" {
		t.Errorf("Expected 2 feed items, got %s", w.Header().Get("X-Feed-Items"))
	}

	parsed, err := gofeed.NewParser().ParseString(w.Body.String())
	if err != nil {
		t.Fatalf("Generated RSS does not parse: %v", err)
	}

	if parsed.Title != "Películas Cineco" {
		t.Errorf("Expected feed title, got %q", parsed.Title)
	}
	if len(parsed.Items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(parsed.Items))
	}

	newest := parsed.Items[0]
	if newest.Title != "Cartelera 2025-11-20: 2 nuevas, 0 salen" {
		t.Errorf("Unexpected item title: %q", newest.Title)
	}
	if !strings.Contains(newest.Content, "🍿🆕[Wicked Parte Dos]") {
		t.Errorf("Expected report markdown in content, got %q", newest.Content)
	}
	if newest.PublishedParsed == nil || !newest.PublishedParsed.Equal(time.Date(2025, 11, 20, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected pubDate: %v", newest.PublishedParsed)
	}
}

func TestReportFeedEscapesCDATA(t *testing.T) {
	feed := NewReportFeed("Cine", "http://localhost", "test")
	rss, err := feed.Run([]database.Report{{ID: 1, SnapshotDate: "2025-01-01", Content: "a ]]> b", CreatedAt: time.Now()}})
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	parsed, err := gofeed.NewParser().ParseString(rss)
	if err != nil {
		t.Fatalf("Generated RSS does not parse: %v", err)
	}
	if parsed.Items[0].Content != "a ]]> b" {
		t.Errorf("Expected content to survive CDATA splitting, got %q", parsed.Items[0].Content)
	}
}

func TestAPIRequiresKey(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"header", map[string]string{"X-API-Key": testAPIKey}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer " + testAPIKey}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := env.do(http.MethodGet, "/api/snapshots", tt.header); w.Code != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestAPISnapshots(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t)
	auth := map[string]string{"X-API-Key": testAPIKey}

	w := env.do(http.MethodGet, "/api/snapshots?limit=5", auth)
	var list struct {
		Snapshots []struct {
			Date   string `json:"date"`
			Movies int    `json:"movies"`
		} `json:"snapshots"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if list.Total != 1 || list.Snapshots[0].Date != "2025-11-20" || list.Snapshots[0].Movies != 1 {
		t.Errorf("Unexpected listing: %+v", list)
	}

	if w := env.do(http.MethodGet, "/api/snapshots?limit=0", auth); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad limit, got %d", w.Code)
	}

	w = env.do(http.MethodGet, "/api/snapshots/2025-11-20", auth)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	var detail struct {
		Date   string          `json:"date"`
		Movies json.RawMessage `json:"movies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	var snap movie.Snapshot
	if err := json.Unmarshal(detail.Movies, &snap); err != nil {
		t.Fatalf("Snapshot payload does not decode: %v", err)
	}
	if !snap.Contains(movie.Identity{Title: "Wicked Parte Dos", PremiereDate: "2025-11-20"}) {
		t.Errorf("Expected Wicked in snapshot")
	}

	if w := env.do(http.MethodGet, "/api/snapshots/2025-01-01", auth); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for missing day, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/snapshots/yesterday", auth); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad date, got %d", w.Code)
	}
}

func TestAPITriggerRun(t *testing.T) {
	env := newTestEnv(t, nil)
	auth := map[string]string{"X-API-Key": testAPIKey}

	w := env.do(http.MethodPost, "/api/runs", auth)
	if w.Code != http.StatusAccepted {
		t.Fatalf("Expected 202, got %d", w.Code)
	}
	if env.trigger.calls != 1 {
		t.Errorf("Expected one triggered run, got %d", env.trigger.calls)
	}

	env.trigger.err = errors.New("task queue is full")
	if w := env.do(http.MethodPost, "/api/runs", auth); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 when queue is full, got %d", w.Code)
	}
}

func TestAPIDisabledWithoutKey(t *testing.T) {
	env := newTestEnv(t, nil)
	handler := NewHandler(env.snapshots, env.reports, nil, nil, NewReportFeed("Cine", "http://localhost", "test"))
	router := NewServer(handler, "")

	req := httptest.NewRequest(http.MethodGet, "/api/snapshots", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 when API is disabled, got %d", w.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(http.MethodOptions, "/report", nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", w.Code)
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected CORS header")
	}
}
