package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"swing-lab/internal/auth"
	"swing-lab/internal/database"
	"swing-lab/internal/logging"
	"swing-lab/internal/mediatypes"
	"swing-lab/internal/metrics"
	"swing-lab/internal/streaming"
)

// base64Upload is the JSON upload body used by clients that record in the
// browser and cannot send multipart (e.g. MediaRecorder blobs).
type base64Upload struct {
	FileName   string `json:"fileName"`
	Data       string `json:"data"`
	Club       string `json:"club"`
	Notes      string `json:"notes"`
	RecordedAt string `json:"recordedAt"`
}

// UploadSwing accepts a new swing video, multipart or base64 JSON, stores
// it locally and queues it for processing.
func (h *Handlers) UploadSwing(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		writeJSONError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)

	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var swing *database.Swing
	var err error
	var source string
	if contentType == "application/json" {
		source = "base64"
		swing, err = h.receiveBase64(r, userID)
	} else {
		source = "multipart"
		swing, err = h.receiveMultipart(r, userID)
	}
	if err != nil {
		metrics.UploadsTotal.WithLabelValues(source, "error").Inc()
		var ue *uploadError
		if errors.As(err, &ue) {
			writeJSONError(w, ue.message, ue.status)
		} else {
			logging.Error("Upload failed: %v", err)
			writeJSONError(w, "Upload failed", http.StatusInternalServerError)
		}
		return
	}

	if err := h.db.CreateSwing(r.Context(), swing); err != nil {
		metrics.UploadsTotal.WithLabelValues(source, "error").Inc()
		logging.Error("Failed to record swing %s: %v", swing.ID, err)
		if removeErr := os.Remove(swing.SourcePath); removeErr != nil {
			logging.Warn("failed to remove orphaned upload %s: %v", swing.SourcePath, removeErr)
		}
		writeJSONError(w, "Failed to record swing", http.StatusInternalServerError)
		return
	}

	metrics.UploadsTotal.WithLabelValues(source, "success").Inc()
	metrics.UploadBytes.Observe(float64(swing.SizeBytes))
	logging.Info("Swing %s uploaded by %s (%d bytes, %s)", swing.ID, userID, swing.SizeBytes, source)

	h.pipeline.Enqueue(swing.ID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, swing)
}

// uploadError carries an HTTP status for client-side upload problems.
type uploadError struct {
	status  int
	message string
}

func (e *uploadError) Error() string { return e.message }

func badUpload(status int, format string, args ...interface{}) error {
	return &uploadError{status: status, message: fmt.Sprintf(format, args...)}
}

func (h *Handlers) receiveMultipart(r *http.Request, userID string) (*database.Swing, error) {
	file, header, err := r.FormFile("video")
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, badUpload(http.StatusRequestEntityTooLarge, "Video exceeds the %d MB limit", h.maxUploadBytes/(1<<20))
		}
		return nil, badUpload(http.StatusBadRequest, "Missing video file")
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logging.Warn("failed to close multipart file: %v", closeErr)
		}
	}()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !mediatypes.IsAcceptedExtension(ext) {
		return nil, badUpload(http.StatusBadRequest, "Unsupported video type %q", ext)
	}

	mimeType := mediatypes.MimeTypeForExtension(ext)
	if declared, _, parseErr := mime.ParseMediaType(header.Header.Get("Content-Type")); parseErr == nil && declared != "" {
		if !mediatypes.IsAcceptedMimeType(declared) {
			return nil, badUpload(http.StatusBadRequest, "Unsupported content type %q", declared)
		}
		mimeType = declared
	}

	swing := h.newSwing(userID, ext, mimeType)
	swing.Club = r.FormValue("club")
	swing.Notes = r.FormValue("notes")
	swing.RecordedAt = parseRecordedAt(r.FormValue("recordedAt"))

	size, err := h.saveUpload(swing.SourcePath, file)
	if err != nil {
		if isBodyTooLarge(err) {
			return nil, badUpload(http.StatusRequestEntityTooLarge, "Video exceeds the %d MB limit", h.maxUploadBytes/(1<<20))
		}
		return nil, err
	}
	swing.SizeBytes = size
	return swing, nil
}

func (h *Handlers) receiveBase64(r *http.Request, userID string) (*database.Swing, error) {
	var req base64Upload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if isBodyTooLarge(err) {
			return nil, badUpload(http.StatusRequestEntityTooLarge, "Video exceeds the %d MB limit", h.maxUploadBytes/(1<<20))
		}
		return nil, badUpload(http.StatusBadRequest, "Invalid JSON body")
	}
	if req.Data == "" {
		return nil, badUpload(http.StatusBadRequest, "Missing video data")
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	if ext == "" {
		ext = ".mp4"
	}
	if !mediatypes.IsAcceptedExtension(ext) {
		return nil, badUpload(http.StatusBadRequest, "Unsupported video type %q", ext)
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		return nil, badUpload(http.StatusBadRequest, "Invalid base64 video data")
	}
	// The JSON body fits the request cap, but base64 inflates by a third;
	// enforce the limit on the decoded size too.
	if int64(len(data)) > h.maxUploadBytes {
		return nil, badUpload(http.StatusRequestEntityTooLarge, "Video exceeds the %d MB limit", h.maxUploadBytes/(1<<20))
	}

	swing := h.newSwing(userID, ext, mediatypes.MimeTypeForExtension(ext))
	swing.Club = req.Club
	swing.Notes = req.Notes
	swing.RecordedAt = parseRecordedAt(req.RecordedAt)

	if err := os.WriteFile(swing.SourcePath, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write upload: %w", err)
	}
	swing.SizeBytes = int64(len(data))
	return swing, nil
}

func (h *Handlers) newSwing(userID, ext, mimeType string) *database.Swing {
	id := uuid.New().String()
	return &database.Swing{
		ID:         id,
		UserID:     userID,
		Status:     database.StatusPending,
		SourcePath: filepath.Join(h.uploadDir, id+ext),
		MimeType:   mimeType,
		RecordedAt: time.Now(),
	}
}

func (h *Handlers) saveUpload(path string, src io.Reader) (int64, error) {
	dst, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("failed to create upload file: %w", err)
	}

	size, err := io.Copy(dst, src)
	if closeErr := dst.Close(); closeErr != nil {
		logging.Warn("failed to close upload file %s: %v", path, closeErr)
	}
	if err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			logging.Warn("failed to remove partial upload %s: %v", path, removeErr)
		}
		return 0, err
	}
	return size, nil
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func parseRecordedAt(value string) time.Time {
	if value == "" {
		return time.Now()
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t
	}
	logging.Debug("Unparseable recordedAt %q, using now", value)
	return time.Now()
}

// ListSwings returns one page of the caller's swing history.
func (h *Handlers) ListSwings(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	page := 1
	pageSize := 20
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("pageSize")); err == nil && v > 0 {
		pageSize = v
	}

	result, err := h.db.ListSwings(r.Context(), userID, page, pageSize)
	if err != nil {
		logging.Error("Failed to list swings for %s: %v", userID, err)
		writeJSONError(w, "Failed to list swings", http.StatusInternalServerError)
		return
	}

	for i := range result.Items {
		h.attachURLs(r, &result.Items[i])
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, result)
}

// GetSwing returns a single swing with signed playback URLs.
func (h *Handlers) GetSwing(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := mux.Vars(r)["id"]

	swing, err := h.db.GetSwing(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Swing not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to get swing %s: %v", id, err)
		writeJSONError(w, "Failed to get swing", http.StatusInternalServerError)
		return
	}

	h.attachURLs(r, swing)

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, swing)
}

// attachURLs fills the transient signed URLs for a ready swing. Signing
// failures degrade to a response without URLs rather than an error.
func (h *Handlers) attachURLs(r *http.Request, swing *database.Swing) {
	if swing.ObjectKey != "" {
		url, err := h.store.SignedURL(r.Context(), swing.ObjectKey, h.signedTTL)
		if err != nil {
			logging.Warn("Failed to sign video URL for %s: %v", swing.ID, err)
		} else {
			swing.VideoURL = url
		}
	}
	if swing.PosterKey != "" {
		url, err := h.store.SignedURL(r.Context(), swing.PosterKey, h.signedTTL)
		if err != nil {
			logging.Warn("Failed to sign poster URL for %s: %v", swing.ID, err)
		} else {
			swing.PosterURL = url
		}
	}
}

// StreamSwingVideo serves the swing video: processed swings redirect to a
// signed URL, unprocessed ones stream the local source file.
func (h *Handlers) StreamSwingVideo(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := mux.Vars(r)["id"]

	swing, err := h.db.GetSwing(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Swing not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to get swing", http.StatusInternalServerError)
		return
	}

	if swing.ObjectKey != "" {
		url, err := h.store.SignedURL(r.Context(), swing.ObjectKey, h.signedTTL)
		if err != nil {
			logging.Error("Failed to sign video URL for %s: %v", id, err)
			writeJSONError(w, "Failed to sign video URL", http.StatusBadGateway)
			return
		}
		http.Redirect(w, r, url, http.StatusTemporaryRedirect)
		return
	}

	// Not uploaded yet; stream the local source while processing runs.
	if swing.SourcePath == "" {
		writeJSONError(w, "Video not available", http.StatusNotFound)
		return
	}
	file, err := os.Open(swing.SourcePath)
	if err != nil {
		writeJSONError(w, "Video not available", http.StatusNotFound)
		return
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			logging.Warn("failed to close video file %s: %v", swing.SourcePath, closeErr)
		}
	}()

	w.Header().Set("Content-Type", swing.MimeType)
	if err := streaming.StreamWithTimeout(r.Context(), w, file, h.streamConfig); err != nil {
		if errors.Is(err, streaming.ErrClientGone) || errors.Is(err, streaming.ErrWriteTimeout) {
			logging.Debug("Stream ended: %v for swing %s", err, id)
			return
		}
		logging.Error("Failed to stream swing %s: %v", id, err)
	}
}

// GetSwingPoster redirects to the signed poster URL.
func (h *Handlers) GetSwingPoster(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := mux.Vars(r)["id"]

	swing, err := h.db.GetSwing(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Swing not found", http.StatusNotFound)
			return
		}
		writeJSONError(w, "Failed to get swing", http.StatusInternalServerError)
		return
	}

	if swing.PosterKey == "" {
		writeJSONError(w, "Poster not available", http.StatusNotFound)
		return
	}

	url, err := h.store.SignedURL(r.Context(), swing.PosterKey, h.signedTTL)
	if err != nil {
		logging.Error("Failed to sign poster URL for %s: %v", id, err)
		writeJSONError(w, "Failed to sign poster URL", http.StatusBadGateway)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// DeleteSwing removes a swing, its stored objects and any local file.
func (h *Handlers) DeleteSwing(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := mux.Vars(r)["id"]

	swing, err := h.db.DeleteSwing(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Swing not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to delete swing %s: %v", id, err)
		writeJSONError(w, "Failed to delete swing", http.StatusInternalServerError)
		return
	}

	// Object and file cleanup is best effort; the row is already gone.
	if err := h.store.Delete(r.Context(), swing.ObjectKey, swing.PosterKey); err != nil {
		logging.Warn("Failed to delete objects for swing %s: %v", id, err)
	}
	if swing.SourcePath != "" {
		if err := os.Remove(swing.SourcePath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove source file for %s: %v", id, err)
		}
	}

	logging.Info("Swing %s deleted by %s", id, userID)
	w.WriteHeader(http.StatusNoContent)
}
