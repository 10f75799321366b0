package streaming

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"
)

func TestDefaultTimeoutWriterConfig(t *testing.T) {
	config := DefaultTimeoutWriterConfig()

	if config.WriteTimeout != 30*time.Second {
		t.Errorf("Expected WriteTimeout=30s, got %v", config.WriteTimeout)
	}
	if config.IdleTimeout != 60*time.Second {
		t.Errorf("Expected IdleTimeout=60s, got %v", config.IdleTimeout)
	}
	if config.MaxDuration != 0 {
		t.Errorf("Expected MaxDuration=0 (unlimited), got %v", config.MaxDuration)
	}
	if config.ChunkSize != 64*1024 {
		t.Errorf("Expected ChunkSize=64KB, got %d", config.ChunkSize)
	}
}

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrWriteTimeout", ErrWriteTimeout, "write timeout exceeded"},
		{"ErrClientGone", ErrClientGone, "client disconnected"},
		{"ErrStreamCanceled", ErrStreamCanceled, "stream canceled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("Expected error message=%q, got %q", tt.msg, tt.err.Error())
			}
		})
	}

	if errors.Is(ErrWriteTimeout, ErrClientGone) || errors.Is(ErrClientGone, ErrStreamCanceled) {
		t.Error("Sentinel errors must be distinct")
	}
}

func TestTimeoutWriterWrite(t *testing.T) {
	w := httptest.NewRecorder()
	tw := NewTimeoutWriter(context.Background(), w, DefaultTimeoutWriterConfig())
	defer tw.Close()

	data := []byte("test data")
	n, err := tw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	bytesWritten, _ := tw.Stats()
	if bytesWritten != int64(len(data)) {
		t.Errorf("Expected bytes written=%d, got %d", len(data), bytesWritten)
	}

	if w.Body.String() != "test data" {
		t.Errorf("Recorder body = %q", w.Body.String())
	}
}

func TestTimeoutWriterClose(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), DefaultTimeoutWriterConfig())

	if err := tw.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
	// Second close should be safe
	if err := tw.Close(); err != nil {
		t.Errorf("Second Close() returned error: %v", err)
	}

	// Writing after close should fail
	if _, err := tw.Write([]byte("data")); !errors.Is(err, ErrStreamCanceled) {
		t.Errorf("Expected ErrStreamCanceled, got %v", err)
	}
}

func TestTimeoutWriterClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	tw := NewTimeoutWriter(ctx, httptest.NewRecorder(), DefaultTimeoutWriterConfig())
	defer tw.Close()

	cancel()
	time.Sleep(10 * time.Millisecond)

	if _, err := tw.Write([]byte("test")); !errors.Is(err, ErrClientGone) {
		t.Errorf("Expected ErrClientGone after context cancellation, got %v", err)
	}
}

func TestTimeoutWriterMaxDuration(t *testing.T) {
	config := DefaultTimeoutWriterConfig()
	config.MaxDuration = time.Millisecond

	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), config)
	defer tw.Close()

	time.Sleep(5 * time.Millisecond)

	if _, err := tw.Write([]byte("late")); !errors.Is(err, ErrWriteTimeout) {
		t.Errorf("Expected ErrWriteTimeout past MaxDuration, got %v", err)
	}
}

func TestTimeoutWriterChunkedWrites(t *testing.T) {
	w := httptest.NewRecorder()
	config := DefaultTimeoutWriterConfig()
	config.ChunkSize = 10

	tw := NewTimeoutWriter(context.Background(), w, config)
	defer tw.Close()

	data := make([]byte, 100)
	for i := range data {
		data[i] = byte(i % 256)
	}

	n, err := tw.Write(data)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if n != len(data) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(data), n)
	}

	if !bytes.Equal(w.Body.Bytes(), data) {
		t.Error("Chunked write corrupted the payload")
	}

	bytesWritten, _ := tw.Stats()
	if bytesWritten != int64(len(data)) {
		t.Errorf("Expected %d bytes written total, got %d", len(data), bytesWritten)
	}
}

func TestTimeoutWriterStats(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), DefaultTimeoutWriterConfig())
	defer tw.Close()

	bytesWritten, duration := tw.Stats()
	if bytesWritten != 0 {
		t.Errorf("Initial bytes written should be 0, got %d", bytesWritten)
	}
	if duration > 100*time.Millisecond {
		t.Errorf("Initial duration too high: %v", duration)
	}

	data := []byte("swing clip bytes")
	if _, err := tw.Write(data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	time.Sleep(50 * time.Millisecond)

	bytesWritten, duration = tw.Stats()
	if bytesWritten != int64(len(data)) {
		t.Errorf("Expected bytes written=%d, got %d", len(data), bytesWritten)
	}
	if duration < 50*time.Millisecond {
		t.Errorf("Duration should be at least 50ms, got %v", duration)
	}
}

func TestTimeoutWriterConcurrentWrites(t *testing.T) {
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), DefaultTimeoutWriterConfig())
	defer tw.Close()

	const numGoroutines = 5
	const writesPerGoroutine = 10

	done := make(chan error, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			for j := 0; j < writesPerGoroutine; j++ {
				if _, err := tw.Write([]byte{byte(id), byte(j)}); err != nil {
					done <- err
					return
				}
			}
			done <- nil
		}(i)
	}

	for i := 0; i < numGoroutines; i++ {
		if err := <-done; err != nil {
			t.Errorf("Concurrent write failed: %v", err)
		}
	}

	bytesWritten, _ := tw.Stats()
	if bytesWritten != numGoroutines*writesPerGoroutine*2 {
		t.Errorf("Expected %d bytes, got %d", numGoroutines*writesPerGoroutine*2, bytesWritten)
	}
}

func TestStreamWithTimeout(t *testing.T) {
	w := httptest.NewRecorder()
	payload := bytes.Repeat([]byte("frame"), 1000)

	config := DefaultTimeoutWriterConfig()
	config.ChunkSize = 512

	err := StreamWithTimeout(context.Background(), w, bytes.NewReader(payload), config)
	if err != nil {
		t.Fatalf("StreamWithTimeout failed: %v", err)
	}

	if !bytes.Equal(w.Body.Bytes(), payload) {
		t.Error("Streamed payload does not match source")
	}
	if got := w.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", got)
	}
}

func TestStreamWithTimeoutClientGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload := bytes.Repeat([]byte("frame"), 100000)
	err := StreamWithTimeout(ctx, httptest.NewRecorder(), bytes.NewReader(payload), DefaultTimeoutWriterConfig())
	if !errors.Is(err, ErrClientGone) {
		t.Errorf("Expected ErrClientGone, got %v", err)
	}
}

func BenchmarkTimeoutWriterWrite(b *testing.B) {
	tw := NewTimeoutWriter(context.Background(), httptest.NewRecorder(), DefaultTimeoutWriterConfig())
	defer tw.Close()

	data := make([]byte, 1024)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = tw.Write(data)
	}
}
