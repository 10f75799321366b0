// Package handlers implements the HTTP API: swing uploads and playback,
// practice drill checklists, progress aggregates and health endpoints.
// Every data route is scoped to the authenticated user from the request
// context.
package handlers
