package media

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"swing-lab/internal/logging"
	"swing-lab/internal/metrics"
	"swing-lab/internal/transcoder"
)

// PosterWidth is the width posters are downscaled to. Swing videos are
// portrait phone footage, so this keeps posters around 640x1138.
const PosterWidth = 640

// posterFrameFraction picks the frame used for the poster: 30% into the
// swing, which is usually mid-backswing rather than the address position.
const posterFrameFraction = 0.3

// PosterGenerator extracts a poster frame from swing videos and downscales
// it for the library grid.
type PosterGenerator struct {
	tc       *transcoder.Transcoder
	cacheDir string
}

// NewPosterGenerator creates a poster generator writing into cacheDir.
func NewPosterGenerator(tc *transcoder.Transcoder, cacheDir string) *PosterGenerator {
	return &PosterGenerator{tc: tc, cacheDir: cacheDir}
}

// Generate extracts a frame from the video and writes the downscaled poster
// JPEG, returning its path. durationSec selects the frame offset; pass 0
// for unknown duration to grab the first frame.
func (g *PosterGenerator) Generate(ctx context.Context, videoPath, swingID string, durationSec float64) (string, error) {
	start := time.Now()
	defer func() {
		metrics.PosterGenerationDuration.Observe(time.Since(start).Seconds())
	}()

	if err := os.MkdirAll(g.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create poster cache directory: %w", err)
	}

	framePath := filepath.Join(g.cacheDir, swingID+".frame.jpg")
	posterPath := filepath.Join(g.cacheDir, swingID+".jpg")

	offset := durationSec * posterFrameFraction
	if offset < 0 {
		offset = 0
	}

	if err := g.tc.ExtractFrame(ctx, videoPath, framePath, offset); err != nil {
		metrics.PosterGenerationsTotal.WithLabelValues("ffmpeg", "error").Inc()
		return "", fmt.Errorf("failed to extract poster frame: %w", err)
	}
	defer func() {
		if err := os.Remove(framePath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove raw frame %s: %v", framePath, err)
		}
	}()

	img, backend, err := loadFrame(framePath, PosterWidth)
	if err != nil {
		metrics.PosterGenerationsTotal.WithLabelValues(backend, "error").Inc()
		return "", err
	}

	if err := imaging.Save(img, posterPath, imaging.JPEGQuality(85)); err != nil {
		metrics.PosterGenerationsTotal.WithLabelValues(backend, "error").Inc()
		return "", fmt.Errorf("failed to save poster: %w", err)
	}

	metrics.PosterGenerationsTotal.WithLabelValues(backend, "success").Inc()
	logging.Debug("Generated poster for %s via %s", swingID, backend)
	return posterPath, nil
}

// loadFrame loads and downscales the raw frame, preferring vips and falling
// back to pure-Go imaging when vips is unavailable.
func loadFrame(framePath string, targetWidth int) (image.Image, string, error) {
	if img, err := loadWithVips(framePath, targetWidth, 0); err == nil {
		return img, "vips", nil
	} else if IsVipsAvailable() {
		logging.Warn("vips failed for %s, falling back to imaging: %v", framePath, err)
	}

	img, err := imaging.Open(framePath, imaging.AutoOrientation(true))
	if err != nil {
		return nil, "imaging", fmt.Errorf("failed to open frame: %w", err)
	}
	if img.Bounds().Dx() > targetWidth {
		img = imaging.Resize(img, targetWidth, 0, imaging.Lanczos)
	}
	return img, "imaging", nil
}

// Remove deletes a cached poster file. Missing files are not an error.
func (g *PosterGenerator) Remove(swingID string) error {
	err := os.Remove(filepath.Join(g.cacheDir, swingID+".jpg"))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
