// Package processor drives uploaded swing videos through the pipeline:
// compression, object storage upload, poster generation and scoring by the
// analysis service. A worker pool consumes a queue fed by the upload
// handler, with a periodic sweep reclaiming anything left pending.
package processor
