package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"swing-lab/internal/analyzer"
	"swing-lab/internal/database"
	"swing-lab/internal/objectstore"
	"swing-lab/internal/transcoder"
)

type fakeCompressor struct {
	enabled     bool
	compressErr error
	probeErr    error
}

func (f *fakeCompressor) IsEnabled() bool { return f.enabled }

func (f *fakeCompressor) Probe(_ context.Context, _ string) (*transcoder.VideoInfo, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return &transcoder.VideoInfo{Duration: 3.0, Width: 1080, Height: 1920, Codec: "h264"}, nil
}

func (f *fakeCompressor) Compress(_ context.Context, srcPath, dstPath string) error {
	if f.compressErr != nil {
		return f.compressErr
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return err
	}
	// Compressed output is smaller than the source.
	return os.WriteFile(dstPath, data[:len(data)/2], 0o644)
}

type fakeStore struct {
	mu           sync.Mutex
	objects      map[string][]byte
	contentTypes map[string]string
	putErr       error
	putDelay     time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:      make(map[string][]byte),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeStore) Put(ctx context.Context, key, contentType string, body io.Reader, _ int64) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.putDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.putDelay):
		}
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.objects[key] = data
	f.contentTypes[key] = contentType
	f.mu.Unlock()
	return nil
}

func (f *fakeStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example.com/" + key, nil
}

func (f *fakeStore) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.objects, key)
	}
	return nil
}

func (f *fakeStore) List(_ context.Context, prefix string) ([]objectstore.Object, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []objectstore.Object
	for key, data := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, objectstore.Object{Key: key, SizeBytes: int64(len(data))})
		}
	}
	return out, nil
}

func (f *fakeStore) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	return data, ok
}

func (f *fakeStore) put(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
}

func (f *fakeStore) getContentType(key string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contentTypes[key]
}

type fakePosters struct {
	dir string
	err error
}

func (f *fakePosters) Generate(_ context.Context, _, swingID string, _ float64) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	path := filepath.Join(f.dir, swingID+".jpg")
	return path, os.WriteFile(path, []byte("jpeg"), 0o644)
}

type fakeScorer struct {
	enabled bool
	err     error
	gotReq  *analyzer.Request
}

func (f *fakeScorer) Enabled() bool { return f.enabled }

func (f *fakeScorer) Analyze(_ context.Context, req *analyzer.Request) (*analyzer.Result, error) {
	f.gotReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &analyzer.Result{Overall: 77, Feedback: []string{"nice tempo"}}, nil
}

type fixture struct {
	db     *database.Database
	comp   *fakeCompressor
	store  *fakeStore
	scorer *fakeScorer
	proc   *Processor
	dir    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	db, err := database.New(context.Background(), filepath.Join(dir, "swings.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	comp := &fakeCompressor{enabled: true}
	store := newFakeStore()
	scorer := &fakeScorer{enabled: true}
	posters := &fakePosters{dir: dir}

	proc := New(db, comp, store, posters, scorer, dir, 15*time.Minute, time.Hour)
	return &fixture{db: db, comp: comp, store: store, scorer: scorer, proc: proc, dir: dir}
}

func (f *fixture) addSwing(t *testing.T, id string) *database.Swing {
	t.Helper()
	return f.addSwingWithMime(t, id, "video/mp4")
}

func (f *fixture) addSwingWithMime(t *testing.T, id, mimeType string) *database.Swing {
	t.Helper()
	sourcePath := filepath.Join(f.dir, id+".mp4")
	if err := os.WriteFile(sourcePath, bytes.Repeat([]byte("v"), 100), 0o644); err != nil {
		t.Fatalf("failed to write source file: %v", err)
	}
	s := &database.Swing{
		ID:         id,
		UserID:     "user-1",
		Club:       "driver",
		Status:     database.StatusPending,
		SourcePath: sourcePath,
		MimeType:   mimeType,
		SizeBytes:  100,
		RecordedAt: time.Now(),
	}
	if err := f.db.CreateSwing(context.Background(), s); err != nil {
		t.Fatalf("failed to create swing: %v", err)
	}
	return s
}

func TestProcessSuccess(t *testing.T) {
	f := newFixture(t)
	s := f.addSwing(t, "swing-1")

	f.proc.process(s.ID)

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady {
		t.Fatalf("status = %q, want ready (error: %s)", got.Status, got.Error)
	}
	if !got.Compressed {
		t.Error("expected compressed flag set")
	}
	if got.DurationSec != 3.0 || got.Width != 1080 {
		t.Errorf("probe results not recorded: %v/%v", got.DurationSec, got.Width)
	}

	video, ok := f.store.get("swings/user-1/swing-1.mp4")
	if !ok {
		t.Fatal("video not uploaded")
	}
	if len(video) != 50 {
		t.Errorf("uploaded %d bytes, want compressed 50", len(video))
	}
	if got := f.store.getContentType("swings/user-1/swing-1.mp4"); got != "video/mp4" {
		t.Errorf("uploaded content type = %q, want video/mp4", got)
	}
	if _, ok := f.store.get("posters/user-1/swing-1.jpg"); !ok {
		t.Error("poster not uploaded")
	}

	// Local source removed once the object is safe.
	if _, err := os.Stat(s.SourcePath); !os.IsNotExist(err) {
		t.Error("expected source file removed")
	}

	if got.Score == nil || got.Score.Overall != 77 {
		t.Errorf("score = %+v, want overall 77", got.Score)
	}
	if f.scorer.gotReq.VideoURL == "" {
		t.Error("expected analyzer to receive a signed URL")
	}
}

func TestProcessCompressionFallback(t *testing.T) {
	f := newFixture(t)
	f.comp.compressErr = errors.New("encoder crashed")
	s := f.addSwing(t, "swing-1")

	f.proc.process(s.ID)

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady {
		t.Fatalf("status = %q, want ready after fallback", got.Status)
	}
	if got.Compressed {
		t.Error("expected compressed flag clear after fallback")
	}

	// The original 100 bytes must be what landed in the bucket.
	video, ok := f.store.get("swings/user-1/swing-1.mp4")
	if !ok {
		t.Fatal("video not uploaded")
	}
	if len(video) != 100 {
		t.Errorf("uploaded %d bytes, want original 100", len(video))
	}
}

func TestProcessUploadFailure(t *testing.T) {
	f := newFixture(t)
	f.store.putErr = errors.New("bucket unreachable")
	s := f.addSwing(t, "swing-1")

	f.proc.process(s.ID)

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusFailed {
		t.Fatalf("status = %q, want failed", got.Status)
	}
	if got.Error == "" {
		t.Error("expected failure reason recorded")
	}

	// Source file kept so a requeue can retry.
	if _, err := os.Stat(s.SourcePath); err != nil {
		t.Error("expected source file kept after failure")
	}
}

func TestProcessAnalyzerFailureStillReady(t *testing.T) {
	f := newFixture(t)
	f.scorer.err = errors.New("model down")
	s := f.addSwing(t, "swing-1")

	f.proc.process(s.ID)

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady {
		t.Fatalf("status = %q, want ready despite analyzer failure", got.Status)
	}
	if got.Score != nil {
		t.Errorf("expected no score, got %+v", got.Score)
	}
}

func TestTimedOutPipelineStillMarksFailed(t *testing.T) {
	f := newFixture(t)
	f.proc.swingTimeout = 50 * time.Millisecond
	f.store.putDelay = 5 * time.Second
	s := f.addSwing(t, "swing-1")

	f.proc.process(s.ID)

	// The failed write must land even though the pipeline context is past
	// its deadline, or the swing would be stuck in processing.
	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusFailed {
		t.Fatalf("status = %q, want failed after the processing budget ran out", got.Status)
	}
	if got.Error == "" {
		t.Error("expected the timeout recorded as the failure reason")
	}
}

func TestFallbackUploadKeepsSourceContentType(t *testing.T) {
	f := newFixture(t)
	f.comp.compressErr = errors.New("encoder crashed")
	s := f.addSwingWithMime(t, "swing-1", "video/quicktime")

	f.proc.process(s.ID)

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady {
		t.Fatalf("status = %q, want ready after fallback", got.Status)
	}
	if ct := f.store.getContentType("swings/user-1/swing-1.mp4"); ct != "video/quicktime" {
		t.Errorf("uploaded content type = %q, want the original video/quicktime", ct)
	}
}

func TestRescoreAfterAnalyzerOutage(t *testing.T) {
	f := newFixture(t)
	f.scorer.err = errors.New("model down")
	s := f.addSwing(t, "swing-1")

	f.proc.process(s.ID)

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady || got.Score != nil {
		t.Fatalf("precondition: status = %q score = %+v, want ready without score", got.Status, got.Score)
	}

	// Analyzer is back; the operator re-queues unscored swings.
	f.scorer.err = nil
	count, err := f.db.RequeueUnscoredSwings(context.Background())
	if err != nil {
		t.Fatalf("RequeueUnscoredSwings failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("re-queued %d swings, want 1", count)
	}

	f.proc.sweep()
	select {
	case id := <-f.proc.queue:
		f.proc.process(id)
	default:
		t.Fatal("sweep did not claim the unscored swing")
	}

	got, err = f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady {
		t.Fatalf("status = %q, want ready after rescore", got.Status)
	}
	if got.Score == nil || got.Score.Overall != 77 {
		t.Errorf("score = %+v, want overall 77 after rescore", got.Score)
	}

	// The local source is long gone; the analyzer must have been handed a
	// signed URL for the stored object.
	if !strings.Contains(f.scorer.gotReq.VideoURL, "swings/user-1/swing-1.mp4") {
		t.Errorf("analyzer URL = %q, want one for the stored object", f.scorer.gotReq.VideoURL)
	}
}

func TestProcessSkipsInFlightSwing(t *testing.T) {
	f := newFixture(t)
	s := f.addSwing(t, "swing-1")

	// A direct enqueue and a sweep claim can both queue the same swing;
	// the second worker must back off while the first holds it.
	if !f.proc.tryStart(s.ID) {
		t.Fatal("tryStart failed on an idle swing")
	}
	f.proc.process(s.ID)

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusPending {
		t.Fatalf("status = %q, want untouched pending while held elsewhere", got.Status)
	}

	f.proc.finish(s.ID)
	f.proc.process(s.ID)

	got, err = f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady {
		t.Errorf("status = %q, want ready once the hold cleared", got.Status)
	}
}

func TestReconcileDeletesOrphanedObjects(t *testing.T) {
	f := newFixture(t)
	s := f.addSwing(t, "swing-1")
	f.proc.process(s.ID)

	// Residue from swings whose rows are already gone.
	f.store.put("swings/user-2/ghost.mp4", []byte("stale"))
	f.store.put("posters/user-2/ghost.jpg", []byte("stale"))
	// Keys outside the canonical layout must survive.
	f.store.put("swings/stray", []byte("keep"))

	f.proc.reconcile()

	if _, ok := f.store.get("swings/user-2/ghost.mp4"); ok {
		t.Error("orphaned video not deleted")
	}
	if _, ok := f.store.get("posters/user-2/ghost.jpg"); ok {
		t.Error("orphaned poster not deleted")
	}
	if _, ok := f.store.get("swings/user-1/swing-1.mp4"); !ok {
		t.Error("live video deleted")
	}
	if _, ok := f.store.get("posters/user-1/swing-1.jpg"); !ok {
		t.Error("live poster deleted")
	}
	if _, ok := f.store.get("swings/stray"); !ok {
		t.Error("unrecognized key deleted")
	}
}

func TestProcessMissingSource(t *testing.T) {
	f := newFixture(t)
	s := f.addSwing(t, "swing-1")
	if err := os.Remove(s.SourcePath); err != nil {
		t.Fatalf("failed to remove source: %v", err)
	}

	f.proc.process(s.ID)

	got, _ := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if got.Status != database.StatusFailed {
		t.Errorf("status = %q, want failed for missing source", got.Status)
	}
}

func TestSweepPicksUpPending(t *testing.T) {
	f := newFixture(t)
	f.addSwing(t, "swing-1")
	f.addSwing(t, "swing-2")

	f.proc.sweep()

	if len(f.proc.queue) != 2 {
		t.Errorf("queue depth = %d, want 2", len(f.proc.queue))
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture(t)
	s := f.addSwing(t, "swing-1")

	f.proc.Start()
	if !f.proc.IsReady() {
		t.Error("expected processor ready after Start")
	}

	f.proc.Enqueue(s.ID)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
		if err == nil && got.Status == database.StatusReady {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	f.proc.Stop()
	if f.proc.IsReady() {
		t.Error("expected processor not ready after Stop")
	}

	got, err := f.db.GetSwing(context.Background(), "user-1", s.ID)
	if err != nil {
		t.Fatalf("GetSwing failed: %v", err)
	}
	if got.Status != database.StatusReady {
		t.Errorf("status = %q, want ready after worker pass", got.Status)
	}

	status := f.proc.GetHealthStatus()
	if status.Running {
		t.Error("expected health to report stopped")
	}
	if status.Workers < 1 {
		t.Errorf("workers = %d", status.Workers)
	}
}

func TestEnqueueFullQueueDoesNotBlock(t *testing.T) {
	f := newFixture(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < queueCapacity+10; i++ {
			f.proc.Enqueue(fmt.Sprintf("swing-%d", i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Enqueue blocked on full queue")
	}
}
