// Package analyzer is the HTTP client for the external swing analysis
// service, which scores uploaded swing videos and returns feedback.
package analyzer
