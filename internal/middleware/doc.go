// Package middleware provides the HTTP middleware chain for the swing
// service: W3C Extended Log Format access logging, gzip response
// compression for JSON payloads, and Prometheus request metrics with
// path normalization to keep label cardinality bounded. Video streaming
// responses are measured by time to first byte rather than total
// duration.
package middleware
