package database

import "time"

// SwingStatus tracks a swing through the processing pipeline.
type SwingStatus string

const (
	// StatusPending means the video is on local disk waiting for processing.
	StatusPending SwingStatus = "pending"
	// StatusProcessing means a worker owns the swing right now.
	StatusProcessing SwingStatus = "processing"
	// StatusReady means the video is in object storage and playable.
	StatusReady SwingStatus = "ready"
	// StatusFailed means processing gave up; the original is kept locally.
	StatusFailed SwingStatus = "failed"
)

// Swing is a single recorded golf swing.
type Swing struct {
	ID          string      `json:"id"`
	UserID      string      `json:"-"`
	Club        string      `json:"club,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	Status      SwingStatus `json:"status"`
	SourcePath  string      `json:"-"`
	ObjectKey   string      `json:"-"`
	PosterKey   string      `json:"-"`
	MimeType    string      `json:"mimeType,omitempty"`
	SizeBytes   int64       `json:"sizeBytes"`
	DurationSec float64     `json:"durationSec,omitempty"`
	Width       int         `json:"width,omitempty"`
	Height      int         `json:"height,omitempty"`
	Compressed  bool        `json:"compressed"`
	Error       string      `json:"error,omitempty"`
	RecordedAt  time.Time   `json:"recordedAt"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"-"`

	// Filled in by the handlers, never persisted.
	VideoURL  string `json:"videoUrl,omitempty"`
	PosterURL string `json:"posterUrl,omitempty"`

	Score *Score `json:"score,omitempty"`
}

// Score is the feedback payload the analysis service produced for a swing.
type Score struct {
	Overall    float64   `json:"overall"`
	Tempo      float64   `json:"tempo,omitempty"`
	Posture    float64   `json:"posture,omitempty"`
	Rotation   float64   `json:"rotation,omitempty"`
	Feedback   []string  `json:"feedback,omitempty"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// SwingPage is one page of a user's swing history.
type SwingPage struct {
	Items      []Swing `json:"items"`
	TotalItems int     `json:"totalItems"`
	Page       int     `json:"page"`
	PageSize   int     `json:"pageSize"`
	TotalPages int     `json:"totalPages"`
}

// Drill is a practice drill on the user's checklist.
type Drill struct {
	ID         string    `json:"id"`
	UserID     string    `json:"-"`
	Title      string    `json:"title"`
	Category   string    `json:"category,omitempty"`
	TargetReps int       `json:"targetReps,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ChecklistItem is a drill joined with its completion state for one day.
type ChecklistItem struct {
	Drill
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ProgressPoint is one day of aggregated scores for the progress chart.
type ProgressPoint struct {
	Day       string  `json:"day"` // YYYY-MM-DD
	Swings    int     `json:"swings"`
	AvgScore  float64 `json:"avgScore"`
	BestScore float64 `json:"bestScore"`
}

// ProgressSummary is the overall numbers shown above the chart.
type ProgressSummary struct {
	TotalSwings  int             `json:"totalSwings"`
	ScoredSwings int             `json:"scoredSwings"`
	AvgScore     float64         `json:"avgScore"`
	BestScore    float64         `json:"bestScore"`
	Series       []ProgressPoint `json:"series"`
}

// LibraryStats is the cached snapshot reported on /api/stats and to the
// metrics collector.
type LibraryStats struct {
	TotalSwings   int       `json:"totalSwings"`
	PendingSwings int       `json:"pendingSwings"`
	ReadySwings   int       `json:"readySwings"`
	FailedSwings  int       `json:"failedSwings"`
	TotalScores   int       `json:"totalScores"`
	TotalDrills   int       `json:"totalDrills"`
	LastProcessed time.Time `json:"lastProcessed,omitempty"`
}
