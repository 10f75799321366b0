package transcoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"swing-lab/internal/logging"
	"swing-lab/internal/metrics"
)

// Transcoder runs ffmpeg/ffprobe for swing video compression, probing and
// poster frame extraction.
type Transcoder struct {
	enabled   bool
	processes map[string]*exec.Cmd
	processMu sync.Mutex
}

// VideoInfo contains probe results for a video file.
type VideoInfo struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Codec    string  `json:"codec"`
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// New creates a new Transcoder instance. When enabled is false every
// operation fails immediately; callers fall back to the original upload.
func New(enabled bool) *Transcoder {
	return &Transcoder{
		enabled:   enabled,
		processes: make(map[string]*exec.Cmd),
	}
}

// IsEnabled returns whether ffmpeg is available.
func (t *Transcoder) IsEnabled() bool {
	return t.enabled
}

// Probe retrieves duration, dimensions and codec for a video file.
func (t *Transcoder) Probe(ctx context.Context, filePath string) (*VideoInfo, error) {
	if !t.enabled {
		return nil, fmt.Errorf("ffprobe unavailable")
	}

	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe error: %w - %s", err, stderr.String())
	}

	info, err := parseProbe(stdout.Bytes())
	if err != nil {
		return nil, fmt.Errorf("%w for %s", err, filePath)
	}
	return info, nil
}

func parseProbe(data []byte) (*VideoInfo, error) {
	var probe ffprobeOutput
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}

	info := &VideoInfo{}
	fmt.Sscanf(probe.Format.Duration, "%f", &info.Duration)
	for _, stream := range probe.Streams {
		if stream.CodecType == "video" {
			info.Codec = stream.CodecName
			info.Width = stream.Width
			info.Height = stream.Height
			break
		}
	}
	if info.Width == 0 || info.Height == 0 {
		return nil, fmt.Errorf("no video stream found")
	}
	return info, nil
}

// Compress transcodes a swing video into a phone-friendly MP4: H.264 at
// CRF 28 scaled to 720 columns, AAC audio, moov atom up front so playback
// starts before the whole file downloads.
func (t *Transcoder) Compress(ctx context.Context, srcPath, dstPath string) error {
	if !t.enabled {
		return fmt.Errorf("ffmpeg unavailable")
	}

	start := time.Now()
	metrics.TranscodeJobsInProgress.Inc()
	defer metrics.TranscodeJobsInProgress.Dec()

	args := []string{
		"-y",
		"-i", srcPath,
		"-c:v", "libx264",
		"-preset", "fast",
		"-crf", "28",
		"-vf", "scale=720:-2",
		"-c:a", "aac",
		"-b:a", "128k",
		"-movflags", "+faststart",
		"-f", "mp4",
		dstPath,
	}

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.track(srcPath, cmd)
	defer t.untrack(srcPath)

	err := cmd.Run()
	metrics.TranscodeJobDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TranscodeJobsTotal.WithLabelValues("error").Inc()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Error("FFmpeg stderr: %s", stderr.String())
		return fmt.Errorf("compression error: %w", err)
	}

	if srcInfo, statErr := os.Stat(srcPath); statErr == nil {
		if dstInfo, statErr := os.Stat(dstPath); statErr == nil {
			if saved := srcInfo.Size() - dstInfo.Size(); saved > 0 {
				metrics.TranscodeBytesSaved.Add(float64(saved))
			}
		}
	}

	metrics.TranscodeJobsTotal.WithLabelValues("success").Inc()
	return nil
}

// ExtractFrame writes a single JPEG frame from the video at the given
// offset in seconds.
func (t *Transcoder) ExtractFrame(ctx context.Context, srcPath, dstPath string, offsetSec float64) error {
	if !t.enabled {
		return fmt.Errorf("ffmpeg unavailable")
	}

	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-y",
		"-ss", fmt.Sprintf("%.3f", offsetSec),
		"-i", srcPath,
		"-frames:v", "1",
		"-q:v", "3",
		dstPath,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	t.track(srcPath, cmd)
	defer t.untrack(srcPath)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("frame extraction error: %w - %s", err, stderr.String())
	}
	return nil
}

func (t *Transcoder) track(key string, cmd *exec.Cmd) {
	t.processMu.Lock()
	t.processes[key] = cmd
	t.processMu.Unlock()
}

func (t *Transcoder) untrack(key string) {
	t.processMu.Lock()
	delete(t.processes, key)
	t.processMu.Unlock()
}

// Cleanup stops all active ffmpeg processes.
func (t *Transcoder) Cleanup() {
	t.processMu.Lock()
	defer t.processMu.Unlock()

	for path, cmd := range t.processes {
		if cmd.Process != nil {
			logging.Info("Killing ffmpeg process for: %s", path)
			if err := cmd.Process.Kill(); err != nil {
				logging.Warn("failed to kill ffmpeg process for %s: %v", path, err)
			}
		}
	}
}
