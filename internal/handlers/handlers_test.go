package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"swing-lab/internal/auth"
	"swing-lab/internal/database"
	"swing-lab/internal/processor"
	"swing-lab/internal/startup"
)

type mockStore struct {
	signErr    error
	deleteErr  error
	deletedKey []string
}

func (m *mockStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	if m.signErr != nil {
		return "", m.signErr
	}
	return "https://signed.example.com/" + key, nil
}

func (m *mockStore) Delete(_ context.Context, keys ...string) error {
	m.deletedKey = append(m.deletedKey, keys...)
	return m.deleteErr
}

type mockPipeline struct {
	enqueued []string
	ready    bool
}

func (m *mockPipeline) Enqueue(swingID string) { m.enqueued = append(m.enqueued, swingID) }
func (m *mockPipeline) IsReady() bool          { return m.ready }
func (m *mockPipeline) GetHealthStatus() processor.HealthStatus {
	return processor.HealthStatus{Ready: m.ready, Running: m.ready, Workers: 2, Uptime: "1s"}
}

type testEnv struct {
	h        *Handlers
	db       *database.Database
	store    *mockStore
	pipeline *mockPipeline
	router   *mux.Router
	dir      string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()

	db, err := database.New(context.Background(), filepath.Join(dir, "swings.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := &mockStore{}
	pipeline := &mockPipeline{ready: true}

	config := &startup.Config{
		UploadDir:      dir,
		MaxUploadBytes: 1 << 20,
		SignedURLTTL:   15 * time.Minute,
	}
	h := New(db, store, pipeline, config)

	router := mux.NewRouter()
	router.HandleFunc("/api/swings", h.UploadSwing).Methods("POST")
	router.HandleFunc("/api/swings", h.ListSwings).Methods("GET")
	router.HandleFunc("/api/swings/{id}", h.GetSwing).Methods("GET")
	router.HandleFunc("/api/swings/{id}", h.DeleteSwing).Methods("DELETE")
	router.HandleFunc("/api/swings/{id}/video", h.StreamSwingVideo).Methods("GET")
	router.HandleFunc("/api/swings/{id}/poster", h.GetSwingPoster).Methods("GET")
	router.HandleFunc("/api/drills", h.CreateDrill).Methods("POST")
	router.HandleFunc("/api/drills", h.GetChecklist).Methods("GET")
	router.HandleFunc("/api/drills/{id}", h.DeleteDrill).Methods("DELETE")
	router.HandleFunc("/api/drills/{id}/check", h.CheckDrill).Methods("POST")
	router.HandleFunc("/api/drills/{id}/check", h.UncheckDrill).Methods("DELETE")
	router.HandleFunc("/api/progress", h.GetProgress).Methods("GET")
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
	router.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	router.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	router.HandleFunc("/version", h.GetVersion).Methods("GET")

	return &testEnv{h: h, db: db, store: store, pipeline: pipeline, router: router, dir: dir}
}

func (e *testEnv) do(t *testing.T, userID string, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartBody(t *testing.T, fileName string, data []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video", fileName)
	if err != nil {
		t.Fatalf("failed to create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("failed to write form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("failed to write field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadSwingMultipart(t *testing.T) {
	e := newTestEnv(t)

	body, contentType := multipartBody(t, "swing.mp4", []byte("video-bytes"), map[string]string{
		"club":  "driver",
		"notes": "windy day",
	})
	req := httptest.NewRequest("POST", "/api/swings", body)
	req.Header.Set("Content-Type", contentType)

	rec := e.do(t, "user-1", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var swing database.Swing
	if err := json.NewDecoder(rec.Body).Decode(&swing); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if swing.Status != database.StatusPending {
		t.Errorf("status = %q, want pending", swing.Status)
	}
	if swing.Club != "driver" || swing.Notes != "windy day" {
		t.Errorf("metadata lost: %+v", swing)
	}
	if swing.SizeBytes != int64(len("video-bytes")) {
		t.Errorf("size = %d", swing.SizeBytes)
	}

	if len(e.pipeline.enqueued) != 1 || e.pipeline.enqueued[0] != swing.ID {
		t.Errorf("expected swing enqueued, got %v", e.pipeline.enqueued)
	}

	// The source file must exist on disk for the processor.
	stored, err := e.db.GetSwing(context.Background(), "user-1", swing.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if _, err := os.Stat(stored.SourcePath); err != nil {
		t.Errorf("source file missing: %v", err)
	}
}

func TestUploadSwingBase64(t *testing.T) {
	e := newTestEnv(t)

	payload := map[string]string{
		"fileName": "swing.mov",
		"data":     base64.StdEncoding.EncodeToString([]byte("mov-bytes")),
		"club":     "7-iron",
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest("POST", "/api/swings", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	rec := e.do(t, "user-1", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var swing database.Swing
	_ = json.NewDecoder(rec.Body).Decode(&swing)
	if swing.MimeType != "video/quicktime" {
		t.Errorf("mime type = %q", swing.MimeType)
	}
	if swing.SizeBytes != int64(len("mov-bytes")) {
		t.Errorf("size = %d, want decoded size", swing.SizeBytes)
	}
}

func TestUploadSwingRejectsBadInput(t *testing.T) {
	e := newTestEnv(t)

	t.Run("unsupported extension", func(t *testing.T) {
		body, contentType := multipartBody(t, "swing.avi", []byte("x"), nil)
		req := httptest.NewRequest("POST", "/api/swings", body)
		req.Header.Set("Content-Type", contentType)
		if rec := e.do(t, "user-1", req); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("invalid base64", func(t *testing.T) {
		body := []byte(`{"fileName":"a.mp4","data":"!!!not-base64!!!"}`)
		req := httptest.NewRequest("POST", "/api/swings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if rec := e.do(t, "user-1", req); rec.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", rec.Code)
		}
	})

	t.Run("decoded size over limit", func(t *testing.T) {
		// Fits the request cap as base64 text but decodes past the limit.
		e.h.maxUploadBytes = 16
		defer func() { e.h.maxUploadBytes = 1 << 20 }()
		payload := map[string]string{
			"fileName": "a.mp4",
			"data":     base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 32)),
		}
		body, _ := json.Marshal(payload)
		req := httptest.NewRequest("POST", "/api/swings", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		if rec := e.do(t, "user-1", req); rec.Code != http.StatusRequestEntityTooLarge {
			t.Errorf("status = %d, want 413", rec.Code)
		}
	})

	t.Run("no user", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/api/swings", bytes.NewReader(nil))
		if rec := e.do(t, "", req); rec.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", rec.Code)
		}
	})
}

func seedSwing(t *testing.T, e *testEnv, id, userID string, ready bool) *database.Swing {
	t.Helper()
	s := &database.Swing{
		ID:         id,
		UserID:     userID,
		Club:       "driver",
		Status:     database.StatusPending,
		SourcePath: filepath.Join(e.dir, id+".mp4"),
		MimeType:   "video/mp4",
		SizeBytes:  10,
		RecordedAt: time.Now(),
	}
	if err := os.WriteFile(s.SourcePath, []byte("source-vid"), 0o644); err != nil {
		t.Fatalf("failed to write source: %v", err)
	}
	if err := e.db.CreateSwing(context.Background(), s); err != nil {
		t.Fatalf("CreateSwing failed: %v", err)
	}
	if ready {
		if err := e.db.SetSwingObject(context.Background(), id,
			"swings/"+userID+"/"+id+".mp4", "posters/"+userID+"/"+id+".jpg",
			true, 8, 3.0, 720, 1280); err != nil {
			t.Fatalf("SetSwingObject failed: %v", err)
		}
	}
	return s
}

func TestGetSwingWithSignedURLs(t *testing.T) {
	e := newTestEnv(t)
	seedSwing(t, e, "swing-1", "user-1", true)

	rec := e.do(t, "user-1", httptest.NewRequest("GET", "/api/swings/swing-1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var swing database.Swing
	_ = json.NewDecoder(rec.Body).Decode(&swing)
	if swing.VideoURL != "https://signed.example.com/swings/user-1/swing-1.mp4" {
		t.Errorf("video URL = %q", swing.VideoURL)
	}
	if swing.PosterURL == "" {
		t.Error("expected poster URL")
	}
}

func TestGetSwingCrossUserIs404(t *testing.T) {
	e := newTestEnv(t)
	seedSwing(t, e, "swing-1", "user-1", true)

	rec := e.do(t, "user-2", httptest.NewRequest("GET", "/api/swings/swing-1", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListSwings(t *testing.T) {
	e := newTestEnv(t)
	seedSwing(t, e, "swing-1", "user-1", true)
	seedSwing(t, e, "swing-2", "user-1", false)
	seedSwing(t, e, "other", "user-2", true)

	rec := e.do(t, "user-1", httptest.NewRequest("GET", "/api/swings?page=1&pageSize=10", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	var page database.SwingPage
	_ = json.NewDecoder(rec.Body).Decode(&page)
	if page.TotalItems != 2 {
		t.Errorf("total = %d, want 2", page.TotalItems)
	}
	for _, s := range page.Items {
		if s.Status == database.StatusReady && s.VideoURL == "" {
			t.Errorf("ready swing %s missing signed URL", s.ID)
		}
	}
}

func TestStreamSwingVideo(t *testing.T) {
	e := newTestEnv(t)

	t.Run("ready swing redirects to signed URL", func(t *testing.T) {
		seedSwing(t, e, "ready", "user-1", true)
		rec := e.do(t, "user-1", httptest.NewRequest("GET", "/api/swings/ready/video", nil))
		if rec.Code != http.StatusTemporaryRedirect {
			t.Fatalf("status = %d, want 307", rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "https://signed.example.com/swings/user-1/ready.mp4" {
			t.Errorf("location = %q", loc)
		}
	})

	t.Run("pending swing streams local file", func(t *testing.T) {
		seedSwing(t, e, "pending", "user-1", false)
		rec := e.do(t, "user-1", httptest.NewRequest("GET", "/api/swings/pending/video", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		if rec.Body.String() != "source-vid" {
			t.Errorf("body = %q", rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
			t.Errorf("content type = %q", ct)
		}
	})

	t.Run("missing swing is 404", func(t *testing.T) {
		rec := e.do(t, "user-1", httptest.NewRequest("GET", "/api/swings/nope/video", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", rec.Code)
		}
	})
}

func TestGetSwingPoster(t *testing.T) {
	e := newTestEnv(t)
	seedSwing(t, e, "ready", "user-1", true)
	seedSwing(t, e, "pending", "user-1", false)

	rec := e.do(t, "user-1", httptest.NewRequest("GET", "/api/swings/ready/poster", nil))
	if rec.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want 307", rec.Code)
	}

	rec = e.do(t, "user-1", httptest.NewRequest("GET", "/api/swings/pending/poster", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 for missing poster", rec.Code)
	}
}

func TestDeleteSwing(t *testing.T) {
	e := newTestEnv(t)
	s := seedSwing(t, e, "swing-1", "user-1", true)

	rec := e.do(t, "user-1", httptest.NewRequest("DELETE", "/api/swings/swing-1", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	if len(e.store.deletedKey) != 2 {
		t.Errorf("deleted keys = %v, want video and poster", e.store.deletedKey)
	}
	if _, err := e.db.GetSwing(context.Background(), "user-1", s.ID); err == nil {
		t.Error("expected swing gone from database")
	}

	// Cross-user delete is indistinguishable from missing.
	seedSwing(t, e, "swing-2", "user-1", true)
	rec = e.do(t, "user-2", httptest.NewRequest("DELETE", "/api/swings/swing-2", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestDrillEndpoints(t *testing.T) {
	e := newTestEnv(t)

	body := []byte(`{"title":"Alignment sticks","category":"setup","targetReps":10}`)
	req := httptest.NewRequest("POST", "/api/drills", bytes.NewReader(body))
	rec := e.do(t, "user-1", req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var drill database.Drill
	_ = json.NewDecoder(rec.Body).Decode(&drill)
	if drill.Title != "Alignment sticks" {
		t.Errorf("title = %q", drill.Title)
	}

	// Empty title rejected.
	rec = e.do(t, "user-1", httptest.NewRequest("POST", "/api/drills", bytes.NewReader([]byte(`{"title":""}`))))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	day := "2026-08-25"
	checkURL := fmt.Sprintf("/api/drills/%s/check?day=%s", drill.ID, day)

	// Check twice; stays checked.
	for i := 0; i < 2; i++ {
		rec = e.do(t, "user-1", httptest.NewRequest("POST", checkURL, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("check status = %d", rec.Code)
		}
	}

	rec = e.do(t, "user-1", httptest.NewRequest("GET", "/api/drills?day="+day, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("checklist status = %d", rec.Code)
	}
	var checklist struct {
		Day    string                   `json:"day"`
		Drills []database.ChecklistItem `json:"drills"`
	}
	_ = json.NewDecoder(rec.Body).Decode(&checklist)
	if len(checklist.Drills) != 1 || !checklist.Drills[0].Completed {
		t.Fatalf("unexpected checklist: %+v", checklist)
	}

	rec = e.do(t, "user-1", httptest.NewRequest("DELETE", checkURL, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("uncheck status = %d", rec.Code)
	}

	// Invalid day format rejected.
	rec = e.do(t, "user-1", httptest.NewRequest("GET", "/api/drills?day=25-08-2026", nil))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for bad day", rec.Code)
	}

	// Checking someone else's drill is a 404.
	rec = e.do(t, "user-2", httptest.NewRequest("POST", checkURL, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = e.do(t, "user-1", httptest.NewRequest("DELETE", "/api/drills/"+drill.ID, nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", rec.Code)
	}
}

func TestProgressAndStats(t *testing.T) {
	e := newTestEnv(t)
	seedSwing(t, e, "swing-1", "user-1", true)
	if err := e.db.UpsertScore(context.Background(), "swing-1", &database.Score{Overall: 70}); err != nil {
		t.Fatalf("UpsertScore failed: %v", err)
	}

	rec := e.do(t, "user-1", httptest.NewRequest("GET", "/api/progress?days=7", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("progress status = %d", rec.Code)
	}
	var summary database.ProgressSummary
	_ = json.NewDecoder(rec.Body).Decode(&summary)
	if summary.ScoredSwings != 1 || summary.BestScore != 70 {
		t.Errorf("unexpected summary: %+v", summary)
	}

	rec = e.do(t, "user-1", httptest.NewRequest("GET", "/api/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newTestEnv(t)

	rec := e.do(t, "", httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("health status = %d", rec.Code)
	}
	var health HealthResponse
	_ = json.NewDecoder(rec.Body).Decode(&health)
	if health.Status != statusHealthy {
		t.Errorf("status = %q", health.Status)
	}

	e.pipeline.ready = false
	rec = e.do(t, "", httptest.NewRequest("GET", "/health", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want 503 when not ready", rec.Code)
	}

	rec = e.do(t, "", httptest.NewRequest("GET", "/livez", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("livez status = %d", rec.Code)
	}

	rec = e.do(t, "", httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz status = %d, want 503", rec.Code)
	}
	e.pipeline.ready = true
	rec = e.do(t, "", httptest.NewRequest("GET", "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d, want 200", rec.Code)
	}

	rec = e.do(t, "", httptest.NewRequest("GET", "/version", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("version status = %d", rec.Code)
	}
	var info startup.BuildInfo
	_ = json.NewDecoder(rec.Body).Decode(&info)
	if info.Version == "" {
		t.Error("expected version in build info")
	}
}
