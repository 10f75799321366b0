// Package metrics defines the Prometheus metrics exported by the swing-lab
// service and a collector that periodically refreshes library gauges.
//
// All metrics use the swing_lab_ prefix and are registered via promauto at
// package initialization. InitializeMetrics pre-populates expected label
// combinations so dashboards see every series from the first scrape.
package metrics
