package main

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// HTTP metrics
var (
	httpRequestsTotal atomic.Int64
	httpErrorsTotal   atomic.Int64
)

// Publish metrics
var (
	eventsPublishedTotal  atomic.Int64
	publishFailuresTotal  atomic.Int64
	relayPublishesTotal   atomic.Int64
	relayPublishFailTotal atomic.Int64
)

// Websocket broadcast metrics
var (
	wsClientsActive   atomic.Int64
	broadcastsTotal   atomic.Int64
	broadcastsDropped atomic.Int64
)

var serverStartTime = time.Now()

var storeBackendType = "memory"

// metricsHandler serves Prometheus-compatible metrics
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	// Build info metric
	fmt.Fprintf(w, "# HELP cyberherd_build_info Build and configuration information\n")
	fmt.Fprintf(w, "# TYPE cyberherd_build_info gauge\n")
	fmt.Fprintf(w, "cyberherd_build_info{store_backend=%q,go_version=%q} 1\n\n", storeBackendType, runtime.Version())

	// Process metrics
	fmt.Fprintf(w, "# HELP process_start_time_seconds Unix timestamp of process start\n")
	fmt.Fprintf(w, "# TYPE process_start_time_seconds gauge\n")
	fmt.Fprintf(w, "process_start_time_seconds %d\n\n", serverStartTime.Unix())

	fmt.Fprintf(w, "# HELP process_uptime_seconds Time since process started\n")
	fmt.Fprintf(w, "# TYPE process_uptime_seconds gauge\n")
	fmt.Fprintf(w, "process_uptime_seconds %.0f\n\n", time.Since(serverStartTime).Seconds())

	// Go runtime metrics
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	fmt.Fprintf(w, "# HELP go_goroutines Number of active goroutines\n")
	fmt.Fprintf(w, "# TYPE go_goroutines gauge\n")
	fmt.Fprintf(w, "go_goroutines %d\n\n", runtime.NumGoroutine())

	fmt.Fprintf(w, "# HELP go_memstats_alloc_bytes Currently allocated memory in bytes\n")
	fmt.Fprintf(w, "# TYPE go_memstats_alloc_bytes gauge\n")
	fmt.Fprintf(w, "go_memstats_alloc_bytes %d\n\n", memStats.Alloc)

	fmt.Fprintf(w, "# HELP go_memstats_sys_bytes Total memory obtained from the OS\n")
	fmt.Fprintf(w, "# TYPE go_memstats_sys_bytes gauge\n")
	fmt.Fprintf(w, "go_memstats_sys_bytes %d\n\n", memStats.Sys)

	fmt.Fprintf(w, "# HELP go_gc_cycles_total Number of completed GC cycles\n")
	fmt.Fprintf(w, "# TYPE go_gc_cycles_total counter\n")
	fmt.Fprintf(w, "go_gc_cycles_total %d\n\n", memStats.NumGC)

	// HTTP metrics
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", httpRequestsTotal.Load())

	fmt.Fprintf(w, "# HELP http_errors_total Total number of HTTP 5xx errors\n")
	fmt.Fprintf(w, "# TYPE http_errors_total counter\n")
	fmt.Fprintf(w, "http_errors_total %d\n\n", httpErrorsTotal.Load())

	// Publish metrics
	fmt.Fprintf(w, "# HELP nostr_events_published_total Events signed and sent to relays\n")
	fmt.Fprintf(w, "# TYPE nostr_events_published_total counter\n")
	fmt.Fprintf(w, "nostr_events_published_total %d\n\n", eventsPublishedTotal.Load())

	fmt.Fprintf(w, "# HELP nostr_publish_failures_total Publishes rejected by every relay\n")
	fmt.Fprintf(w, "# TYPE nostr_publish_failures_total counter\n")
	fmt.Fprintf(w, "nostr_publish_failures_total %d\n\n", publishFailuresTotal.Load())

	fmt.Fprintf(w, "# HELP nostr_relay_publishes_total Per-relay publish attempts that succeeded\n")
	fmt.Fprintf(w, "# TYPE nostr_relay_publishes_total counter\n")
	fmt.Fprintf(w, "nostr_relay_publishes_total %d\n\n", relayPublishesTotal.Load())

	fmt.Fprintf(w, "# HELP nostr_relay_publish_failures_total Per-relay publish attempts that failed\n")
	fmt.Fprintf(w, "# TYPE nostr_relay_publish_failures_total counter\n")
	fmt.Fprintf(w, "nostr_relay_publish_failures_total %d\n\n", relayPublishFailTotal.Load())

	// Websocket metrics
	fmt.Fprintf(w, "# HELP ws_clients_active Number of connected websocket clients\n")
	fmt.Fprintf(w, "# TYPE ws_clients_active gauge\n")
	fmt.Fprintf(w, "ws_clients_active %d\n\n", wsClientsActive.Load())

	fmt.Fprintf(w, "# HELP ws_broadcasts_total Messages broadcast to websocket clients\n")
	fmt.Fprintf(w, "# TYPE ws_broadcasts_total counter\n")
	fmt.Fprintf(w, "ws_broadcasts_total %d\n\n", broadcastsTotal.Load())

	fmt.Fprintf(w, "# HELP ws_broadcasts_dropped_total Broadcasts dropped due to slow clients\n")
	fmt.Fprintf(w, "# TYPE ws_broadcasts_dropped_total counter\n")
	fmt.Fprintf(w, "ws_broadcasts_dropped_total %d\n", broadcastsDropped.Load())
}
