/*
Package streaming provides timeout-protected streaming of swing videos to
HTTP clients.

# Overview

Processed swings are served via signed object storage URLs, but a swing
that is still in the processing queue only exists as a local source file.
Serving that file with a plain io.Copy lets a slow or disconnected mobile
client pin a handler goroutine for as long as it likes. This package wraps
http.ResponseWriter with per-write and idle timeouts so stalled playback
is detected and terminated.

# Usage

The typical entry point is StreamWithTimeout:

	func (h *Handlers) StreamSwingVideo(w http.ResponseWriter, r *http.Request) {
		file, err := os.Open(swing.SourcePath)
		if err != nil {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		defer file.Close()

		w.Header().Set("Content-Type", swing.MimeType)
		err = streaming.StreamWithTimeout(r.Context(), w, file, h.streamConfig)
		if errors.Is(err, streaming.ErrClientGone) {
			// Client went away, not a server error
			return
		}
	}

For more control, create a TimeoutWriter directly and copy into it; Stats
reports bytes written and elapsed time when the copy ends.

# Configuration

TimeoutWriterConfig controls the behavior:

  - WriteTimeout bounds a single write; exceeding it terminates the
    stream (default 30s).
  - IdleTimeout bounds the gap between successful writes (default 60s).
  - MaxDuration caps the whole stream; 0 means unlimited (default 0).
  - ChunkSize splits large writes so cancellation is noticed between
    chunks, with a flush after each chunk so playback starts before the
    copy completes (default 64KB).

# Error Handling

Three sentinel errors distinguish why a stream ended, checked with
errors.Is:

  - ErrWriteTimeout: the client consumed data too slowly
  - ErrClientGone: the client disconnected (request context canceled)
  - ErrStreamCanceled: the stream was closed programmatically

ErrClientGone and ErrWriteTimeout are normal occurrences for mobile
clients and should be logged at debug level, not treated as failures.

# Thread Safety

TimeoutWriter is safe for concurrent use. Internal state is guarded by a
mutex and the idle checker runs in its own goroutine, exiting when the
stream closes.
*/
package streaming
