// Package objectstore stores swing videos and poster frames in an
// S3-compatible bucket. Only object keys are persisted; playback goes
// through short-lived presigned URLs minted on demand.
package objectstore
