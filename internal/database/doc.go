// Package database provides SQLite-backed storage for swings, analyzer
// scores, practice drills and daily drill checks.
//
// All reads and writes are scoped to a user ID; a row owned by another user
// is indistinguishable from a missing row (ErrNotFound). The database opens
// in WAL mode with a busy timeout so the background processor and the HTTP
// handlers can write concurrently.
package database
