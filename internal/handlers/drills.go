package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"swing-lab/internal/auth"
	"swing-lab/internal/database"
	"swing-lab/internal/logging"
)

const dayFormat = "2006-01-02"

// CreateDrill adds a practice drill to the caller's checklist.
func (h *Handlers) CreateDrill(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	var req struct {
		Title      string `json:"title"`
		Category   string `json:"category"`
		TargetReps int    `json:"targetReps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		writeJSONError(w, "Title is required", http.StatusBadRequest)
		return
	}

	drill := &database.Drill{
		ID:         uuid.New().String(),
		UserID:     userID,
		Title:      req.Title,
		Category:   req.Category,
		TargetReps: req.TargetReps,
		CreatedAt:  time.Now(),
	}
	if err := h.db.CreateDrill(r.Context(), drill); err != nil {
		logging.Error("Failed to create drill: %v", err)
		writeJSONError(w, "Failed to create drill", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, drill)
}

// GetChecklist returns the caller's drills with completion state for a day.
// The day query parameter defaults to today.
func (h *Handlers) GetChecklist(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	day, ok := parseDay(r.URL.Query().Get("day"))
	if !ok {
		writeJSONError(w, "Invalid day, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	items, err := h.db.GetChecklist(r.Context(), userID, day)
	if err != nil {
		logging.Error("Failed to get checklist for %s: %v", userID, err)
		writeJSONError(w, "Failed to get checklist", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, map[string]interface{}{
		"day":    day,
		"drills": items,
	})
}

// DeleteDrill removes a drill and its check history.
func (h *Handlers) DeleteDrill(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	id := mux.Vars(r)["id"]

	if err := h.db.DeleteDrill(r.Context(), userID, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Drill not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to delete drill %s: %v", id, err)
		writeJSONError(w, "Failed to delete drill", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckDrill marks a drill complete for a day. Repeating the call is a
// no-op, not a toggle.
func (h *Handlers) CheckDrill(w http.ResponseWriter, r *http.Request) {
	h.setDrillChecked(w, r, true)
}

// UncheckDrill clears a drill's completion for a day.
func (h *Handlers) UncheckDrill(w http.ResponseWriter, r *http.Request) {
	h.setDrillChecked(w, r, false)
}

func (h *Handlers) setDrillChecked(w http.ResponseWriter, r *http.Request, checked bool) {
	userID := auth.UserID(r.Context())
	id := mux.Vars(r)["id"]

	day, ok := parseDay(r.URL.Query().Get("day"))
	if !ok {
		writeJSONError(w, "Invalid day, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	var err error
	if checked {
		err = h.db.CheckDrill(r.Context(), userID, id, day)
	} else {
		err = h.db.UncheckDrill(r.Context(), userID, id, day)
	}
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			writeJSONError(w, "Drill not found", http.StatusNotFound)
			return
		}
		logging.Error("Failed to update drill check %s: %v", id, err)
		writeJSONError(w, "Failed to update drill", http.StatusInternalServerError)
		return
	}

	writeJSONStatus(w, "ok")
}

func parseDay(value string) (string, bool) {
	if value == "" {
		return time.Now().Format(dayFormat), true
	}
	if _, err := time.Parse(dayFormat, value); err != nil {
		return "", false
	}
	return value, true
}
