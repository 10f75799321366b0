package metrics

import (
	"os"
	"time"

	"swing-lab/internal/logging"
)

// StatsProvider supplies library counts and connection-pool gauges for the
// collector.
type StatsProvider interface {
	GetStats() Stats
	UpdateDBMetrics()
}

// Stats holds the current library statistics.
type Stats struct {
	TotalSwings   int
	PendingSwings int
	ReadySwings   int
	FailedSwings  int
	TotalScores   int
	TotalDrills   int
}

// Collector periodically collects and updates metrics.
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath may be empty to skip
// database file size collection.
func NewCollector(provider StatsProvider, dbPath string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop.
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection.
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider != nil {
		c.statsProvider.UpdateDBMetrics()
		stats := c.statsProvider.GetStats()

		SwingsTotal.WithLabelValues("pending").Set(float64(stats.PendingSwings))
		SwingsTotal.WithLabelValues("ready").Set(float64(stats.ReadySwings))
		SwingsTotal.WithLabelValues("failed").Set(float64(stats.FailedSwings))
		ScoresTotal.Set(float64(stats.TotalScores))
		DrillsTotal.Set(float64(stats.TotalDrills))

		logging.Debug("Metrics collected: swings=%d, scores=%d, drills=%d",
			stats.TotalSwings, stats.TotalScores, stats.TotalDrills)
	}

	c.collectDBSizes()
}

// collectDBSizes records the on-disk size of the SQLite database files.
func (c *Collector) collectDBSizes() {
	if c.dbPath == "" {
		return
	}

	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}

	for label, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			// WAL/SHM files come and go with checkpoints
			DBSizeBytes.WithLabelValues(label).Set(0)
			continue
		}
		DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
	}
}
