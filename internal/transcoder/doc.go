// Package transcoder wraps ffmpeg and ffprobe for swing video compression,
// probing and poster frame extraction. Active processes are tracked so they
// can be killed on shutdown.
package transcoder
