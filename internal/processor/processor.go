package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"swing-lab/internal/analyzer"
	"swing-lab/internal/database"
	"swing-lab/internal/logging"
	"swing-lab/internal/metrics"
	"swing-lab/internal/objectstore"
	"swing-lab/internal/transcoder"
	"swing-lab/internal/workers"
)

const (
	// Default interval for the sweep that picks up pending swings missed
	// by direct enqueue (crashes, restarts, full queue).
	defaultSweepInterval = 30 * time.Second

	// Swings stuck in processing longer than this get reclaimed.
	staleProcessingAfter = 10 * time.Minute

	// Per-swing processing budget. Compression of a short clip is fast;
	// anything past this is wedged.
	swingTimeout = 5 * time.Minute

	queueCapacity = 256

	maxWorkers = 4
)

// Compressor is the transcoding surface the processor needs.
type Compressor interface {
	IsEnabled() bool
	Probe(ctx context.Context, filePath string) (*transcoder.VideoInfo, error)
	Compress(ctx context.Context, srcPath, dstPath string) error
}

// Store is the object storage surface the processor needs.
type Store interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	List(ctx context.Context, prefix string) ([]objectstore.Object, error)
	Delete(ctx context.Context, keys ...string) error
}

// PosterMaker generates poster frames for processed swings.
type PosterMaker interface {
	Generate(ctx context.Context, videoPath, swingID string, durationSec float64) (string, error)
}

// Scorer submits swings to the analysis service.
type Scorer interface {
	Enabled() bool
	Analyze(ctx context.Context, req *analyzer.Request) (*analyzer.Result, error)
}

// Processor drives uploaded swings through the pipeline: compress, upload
// to object storage, generate a poster, then request a score from the
// analyzer. Swings arrive via Enqueue from the upload handler; a periodic
// sweep picks up anything that was missed.
type Processor struct {
	db       *database.Database
	comp     Compressor
	store    Store
	posters  PosterMaker
	scorer   Scorer
	cacheDir string

	signedTTL     time.Duration
	sweepInterval time.Duration
	swingTimeout  time.Duration
	numWorkers    int

	queue    chan string
	stopChan chan struct{}
	wg       sync.WaitGroup

	mu            sync.Mutex
	running       bool
	active        map[string]struct{}
	lastProcessed time.Time
	startTime     time.Time
}

// New creates a Processor. cacheDir holds compressed intermediates.
func New(db *database.Database, comp Compressor, store Store, posters PosterMaker, scorer Scorer, cacheDir string, signedTTL, sweepInterval time.Duration) *Processor {
	if sweepInterval <= 0 {
		sweepInterval = defaultSweepInterval
	}
	return &Processor{
		db:            db,
		comp:          comp,
		store:         store,
		posters:       posters,
		scorer:        scorer,
		cacheDir:      cacheDir,
		signedTTL:     signedTTL,
		sweepInterval: sweepInterval,
		swingTimeout:  swingTimeout,
		numWorkers:    workers.ForCPU(maxWorkers),
		queue:         make(chan string, queueCapacity),
		stopChan:      make(chan struct{}),
		active:        make(map[string]struct{}),
		startTime:     time.Now(),
	}
}

// Start launches the worker pool, the periodic sweep and a one-shot
// orphan-object reconcile.
func (p *Processor) Start() {
	p.mu.Lock()
	p.running = true
	p.mu.Unlock()

	logging.Info("Starting swing processor with %d workers (sweep interval: %v)", p.numWorkers, p.sweepInterval)
	metrics.ProcessorIsRunning.Set(1)

	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	p.wg.Add(1)
	go p.sweepLoop()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.reconcile()
	}()
}

// Stop shuts down the workers and waits for in-flight swings to finish.
func (p *Processor) Stop() {
	close(p.stopChan)
	p.wg.Wait()

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	metrics.ProcessorIsRunning.Set(0)
	logging.Info("Swing processor stopped")
}

// Enqueue hands a freshly uploaded swing to the worker pool. When the
// queue is full the swing stays pending and the next sweep picks it up.
func (p *Processor) Enqueue(swingID string) {
	select {
	case p.queue <- swingID:
		metrics.ProcessorQueueDepth.Set(float64(len(p.queue)))
	default:
		logging.Warn("Processing queue full, swing %s deferred to sweep", swingID)
	}
}

func (p *Processor) worker() {
	defer p.wg.Done()

	for {
		select {
		case swingID := <-p.queue:
			metrics.ProcessorQueueDepth.Set(float64(len(p.queue)))
			p.process(swingID)
		case <-p.stopChan:
			return
		}
	}
}

func (p *Processor) sweepLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.sweepInterval)
	defer ticker.Stop()

	// First sweep right away so restarts resume pending work immediately.
	p.sweep()

	for {
		select {
		case <-ticker.C:
			p.sweep()
		case <-p.stopChan:
			return
		}
	}
}

func (p *Processor) sweep() {
	metrics.ProcessorSweepsTotal.Inc()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	claimed, err := p.db.ClaimPendingSwings(ctx, queueCapacity/2, staleProcessingAfter)
	if err != nil {
		logging.Error("Sweep failed to claim pending swings: %v", err)
		return
	}
	if len(claimed) == 0 {
		return
	}

	logging.Info("Sweep claimed %d pending swings", len(claimed))
	metrics.ProcessorRequeuedTotal.Add(float64(len(claimed)))
	for i := range claimed {
		select {
		case p.queue <- claimed[i].ID:
		case <-p.stopChan:
			return
		}
	}
	metrics.ProcessorQueueDepth.Set(float64(len(p.queue)))
}

// reconcile deletes orphaned objects: videos and posters whose swing row no
// longer exists (interrupted deletes leave residue behind). Runs once at
// startup; the database is the source of truth.
func (p *Processor) reconcile() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var orphans []string
	for _, prefix := range []string{"swings/", "posters/"} {
		objects, err := p.store.List(ctx, prefix)
		if err != nil {
			logging.Warn("Reconcile cannot list %s objects: %v", prefix, err)
			return
		}
		for i := range objects {
			swingID := objectstore.SwingIDFromKey(objects[i].Key)
			if swingID == "" {
				// Not ours; leave unknown keys alone.
				continue
			}
			_, err := p.db.GetSwingForProcessing(ctx, swingID)
			if errors.Is(err, database.ErrNotFound) {
				orphans = append(orphans, objects[i].Key)
			} else if err != nil {
				logging.Warn("Reconcile cannot check swing %s: %v", swingID, err)
				return
			}
		}
	}

	if len(orphans) == 0 {
		logging.Debug("Reconcile found no orphaned objects")
		return
	}
	logging.Info("Reconcile deleting %d orphaned object(s)", len(orphans))
	if err := p.store.Delete(ctx, orphans...); err != nil {
		logging.Warn("Reconcile failed to delete orphans: %v", err)
	}
}

// tryStart registers a swing as in flight. Returns false when another worker
// already holds it, which happens when a direct enqueue and a sweep claim
// race on the same swing.
func (p *Processor) tryStart(swingID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.active[swingID]; busy {
		return false
	}
	p.active[swingID] = struct{}{}
	return true
}

func (p *Processor) finish(swingID string) {
	p.mu.Lock()
	delete(p.active, swingID)
	p.lastProcessed = time.Now()
	p.mu.Unlock()
}

// process runs one swing through the full pipeline.
func (p *Processor) process(swingID string) {
	if !p.tryStart(swingID) {
		logging.Debug("Swing %s already in flight, skipping duplicate", swingID)
		return
	}

	start := time.Now()
	defer func() {
		p.finish(swingID)
		metrics.ProcessorSwingDuration.Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(context.Background(), p.swingTimeout)
	defer cancel()

	swing, err := p.db.GetSwingForProcessing(ctx, swingID)
	if err != nil {
		logging.Error("Cannot load swing %s for processing: %v", swingID, err)
		metrics.ProcessorSwingsTotal.WithLabelValues("error").Inc()
		return
	}
	if swing.Status == database.StatusReady {
		return
	}

	// Already uploaded: only the score is missing (analyzer outage, or an
	// operator re-queued it for analysis). Work from the stored object.
	if swing.ObjectKey != "" {
		p.rescore(ctx, swing)
		return
	}

	if err := p.db.UpdateSwingStatus(ctx, swingID, database.StatusProcessing, ""); err != nil {
		logging.Error("Cannot mark swing %s processing: %v", swingID, err)
	}

	if err := p.pipeline(ctx, swing); err != nil {
		logging.Error("Processing swing %s failed: %v", swingID, err)
		p.markFailed(swingID, err)
		return
	}

	metrics.ProcessorSwingsTotal.WithLabelValues("success").Inc()
	logging.Info("Swing %s processed in %v", swingID, time.Since(start).Round(time.Millisecond))
	p.refreshStats(ctx)
}

// markFailed records a pipeline failure on a fresh context. The pipeline
// context may already be past its deadline (that is often why the pipeline
// failed), and reusing it would lose the write and strand the swing in
// processing.
func (p *Processor) markFailed(swingID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := p.db.UpdateSwingStatus(ctx, swingID, database.StatusFailed, cause.Error()); err != nil {
		logging.Error("Cannot mark swing %s failed: %v", swingID, err)
	}
	metrics.ProcessorSwingsTotal.WithLabelValues("failed").Inc()
	p.refreshStats(ctx)
}

// rescore re-runs analysis for a swing whose video is already in the bucket.
// Reached via requeue: the operator moves ready-without-score swings back to
// pending and the sweep claims them.
func (p *Processor) rescore(ctx context.Context, swing *database.Swing) {
	p.score(ctx, swing, swing.ObjectKey, swing.DurationSec)

	if err := p.db.UpdateSwingStatus(ctx, swing.ID, database.StatusReady, ""); err != nil {
		logging.Error("Cannot mark swing %s ready after rescore: %v", swing.ID, err)
		return
	}
	p.refreshStats(ctx)
}

// pipeline does the actual work: compress (falling back to the original on
// any compression error), upload, poster, record, then score.
func (p *Processor) pipeline(ctx context.Context, swing *database.Swing) error {
	if swing.SourcePath == "" {
		return fmt.Errorf("no source file recorded")
	}
	if _, err := os.Stat(swing.SourcePath); err != nil {
		return fmt.Errorf("source file missing: %w", err)
	}

	info, err := p.comp.Probe(ctx, swing.SourcePath)
	if err != nil {
		logging.Warn("Probe failed for swing %s: %v", swing.ID, err)
		info = &transcoder.VideoInfo{}
	}

	uploadPath := swing.SourcePath
	compressed := false
	compressedPath := filepath.Join(p.cacheDir, swing.ID+".compressed.mp4")

	if p.comp.IsEnabled() {
		if err := p.comp.Compress(ctx, swing.SourcePath, compressedPath); err != nil {
			// Compression is best effort: ship the original instead.
			logging.Warn("Compression failed for swing %s, uploading original: %v", swing.ID, err)
			metrics.TranscodeJobsTotal.WithLabelValues("fallback").Inc()
			_ = os.Remove(compressedPath)
		} else {
			uploadPath = compressedPath
			compressed = true
		}
	}
	defer func() {
		if compressed {
			if err := os.Remove(compressedPath); err != nil && !os.IsNotExist(err) {
				logging.Warn("failed to remove compressed intermediate for %s: %v", swing.ID, err)
			}
		}
	}()

	// Compressed output is always mp4; an uncompressed original keeps
	// whatever container it was uploaded with.
	contentType := "video/mp4"
	if !compressed && swing.MimeType != "" {
		contentType = swing.MimeType
	}

	videoKey := objectstore.VideoKey(swing.UserID, swing.ID)
	uploadSize, err := p.uploadFile(ctx, videoKey, contentType, uploadPath)
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}

	posterKey := p.uploadPoster(ctx, swing, uploadPath, info.Duration)

	if err := p.db.SetSwingObject(ctx, swing.ID, videoKey, posterKey, compressed, uploadSize, info.Duration, info.Width, info.Height); err != nil {
		return fmt.Errorf("failed to record object: %w", err)
	}

	if err := os.Remove(swing.SourcePath); err != nil && !os.IsNotExist(err) {
		logging.Warn("failed to remove source file for %s: %v", swing.ID, err)
	}

	// Scoring failures leave the swing ready without a score; the video is
	// already safe in the bucket.
	p.score(ctx, swing, videoKey, info.Duration)
	return nil
}

func (p *Processor) uploadFile(ctx context.Context, key, contentType, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			logging.Warn("failed to close %s: %v", path, closeErr)
		}
	}()

	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}

	if err := p.store.Put(ctx, key, contentType, f, stat.Size()); err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

func (p *Processor) uploadPoster(ctx context.Context, swing *database.Swing, videoPath string, durationSec float64) string {
	posterPath, err := p.posters.Generate(ctx, videoPath, swing.ID, durationSec)
	if err != nil {
		logging.Warn("Poster generation failed for swing %s: %v", swing.ID, err)
		return ""
	}
	defer func() {
		if err := os.Remove(posterPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove poster intermediate for %s: %v", swing.ID, err)
		}
	}()

	posterKey := objectstore.PosterKey(swing.UserID, swing.ID)
	if _, err := p.uploadFile(ctx, posterKey, "image/jpeg", posterPath); err != nil {
		logging.Warn("Poster upload failed for swing %s: %v", swing.ID, err)
		return ""
	}
	return posterKey
}

func (p *Processor) score(ctx context.Context, swing *database.Swing, videoKey string, durationSec float64) {
	if !p.scorer.Enabled() {
		return
	}

	videoURL, err := p.store.SignedURL(ctx, videoKey, p.signedTTL)
	if err != nil {
		logging.Warn("Cannot presign video for analysis of swing %s: %v", swing.ID, err)
		return
	}

	result, err := p.scorer.Analyze(ctx, &analyzer.Request{
		SwingID:     swing.ID,
		VideoURL:    videoURL,
		Club:        swing.Club,
		DurationSec: durationSec,
	})
	if err != nil {
		logging.Warn("Analysis failed for swing %s: %v", swing.ID, err)
		return
	}

	score := &database.Score{
		Overall:  result.Overall,
		Tempo:    result.Tempo,
		Posture:  result.Posture,
		Rotation: result.Rotation,
		Feedback: result.Feedback,
	}
	if err := p.db.UpsertScore(ctx, swing.ID, score); err != nil {
		logging.Error("Cannot store score for swing %s: %v", swing.ID, err)
		return
	}
	logging.Info("Swing %s scored %.1f", swing.ID, result.Overall)
}

func (p *Processor) refreshStats(ctx context.Context) {
	stats, err := p.db.CalculateStats(ctx)
	if err != nil {
		logging.Warn("Failed to refresh library stats: %v", err)
		return
	}
	stats.LastProcessed = time.Now()
	p.db.UpdateStats(stats)
}

// HealthStatus contains processor health information.
type HealthStatus struct {
	Ready         bool      `json:"ready"`
	Running       bool      `json:"running"`
	Workers       int       `json:"workers"`
	QueueDepth    int       `json:"queueDepth"`
	Processing    int       `json:"processing"`
	StartTime     time.Time `json:"startTime"`
	Uptime        string    `json:"uptime"`
	LastProcessed time.Time `json:"lastProcessed,omitempty"`
}

// GetHealthStatus returns detailed health information.
func (p *Processor) GetHealthStatus() HealthStatus {
	p.mu.Lock()
	defer p.mu.Unlock()

	return HealthStatus{
		Ready:         p.running,
		Running:       p.running,
		Workers:       p.numWorkers,
		QueueDepth:    len(p.queue),
		Processing:    len(p.active),
		StartTime:     p.startTime,
		Uptime:        time.Since(p.startTime).String(),
		LastProcessed: p.lastProcessed,
	}
}

// IsReady returns true once the worker pool is running.
func (p *Processor) IsReady() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}
