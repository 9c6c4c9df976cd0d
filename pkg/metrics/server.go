/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package metrics defines the Prometheus metrics exported by the registry.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ServerMetrics holds Prometheus metrics for the registry's HTTP surface
// and chart artifact traffic.
type ServerMetrics struct {
	// RequestsTotal counts handled requests by route pattern, method, and
	// status code.
	RequestsTotal *prometheus.CounterVec
	// RequestDuration is the histogram of request durations by route
	// pattern and method.
	RequestDuration *prometheus.HistogramVec

	// ChartUploadsTotal counts chart tarball uploads by status.
	ChartUploadsTotal *prometheus.CounterVec
	// ChartDownloadsTotal counts chart tarball downloads by status.
	ChartDownloadsTotal *prometheus.CounterVec
}

// ServerMetricsConfig configures the server metrics.
type ServerMetricsConfig struct {
	// RequestDurationBuckets for the request duration histogram.
	// If nil, defaults to DefaultRequestDurationBuckets.
	RequestDurationBuckets []float64
}

// DefaultRequestDurationBuckets are the default histogram buckets for
// request durations. Most registry requests are index or metadata reads;
// tarball uploads stretch the tail.
var DefaultRequestDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewServerMetrics creates and registers all Prometheus metrics for the
// registry server.
func NewServerMetrics(cfg ServerMetricsConfig) *ServerMetrics {
	return newServerMetricsWithRegistry(cfg, prometheus.DefaultRegisterer)
}

func newServerMetricsWithRegistry(cfg ServerMetricsConfig, reg prometheus.Registerer) *ServerMetrics {
	buckets := cfg.RequestDurationBuckets
	if buckets == nil {
		buckets = DefaultRequestDurationBuckets
	}
	factory := promauto.With(reg)

	return &ServerMetrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "charted_server_requests_total",
			Help: "Total number of handled HTTP requests",
		}, []string{"route", "method", "status"}),

		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "charted_server_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: buckets,
		}, []string{"route", "method"}),

		ChartUploadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "charted_server_chart_uploads_total",
			Help: "Total number of chart tarball uploads",
		}, []string{"status"}),

		ChartDownloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "charted_server_chart_downloads_total",
			Help: "Total number of chart tarball downloads",
		}, []string{"status"}),
	}
}

// RequestMetrics contains the metrics for a single handled request.
type RequestMetrics struct {
	Route           string
	Method          string
	StatusCode      int
	DurationSeconds float64
}

// RecordRequest records metrics for a handled request.
func (m *ServerMetrics) RecordRequest(rm RequestMetrics) {
	status := strconv.Itoa(rm.StatusCode)
	m.RequestsTotal.WithLabelValues(rm.Route, rm.Method, status).Inc()
	m.RequestDuration.WithLabelValues(rm.Route, rm.Method).Observe(rm.DurationSeconds)
}

// RecordChartUpload records a chart tarball upload.
func (m *ServerMetrics) RecordChartUpload(success bool) {
	m.ChartUploadsTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordChartDownload records a chart tarball download.
func (m *ServerMetrics) RecordChartDownload(success bool) {
	m.ChartDownloadsTotal.WithLabelValues(outcome(success)).Inc()
}

// Metric label values for operation outcomes.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func outcome(success bool) string {
	if success {
		return StatusSuccess
	}
	return StatusError
}

// ServerMetricsRecorder is the interface for recording server metrics.
// This allows for no-op implementations when metrics are disabled.
type ServerMetricsRecorder interface {
	RecordRequest(rm RequestMetrics)
	RecordChartUpload(success bool)
	RecordChartDownload(success bool)
}

// NoOpServerMetrics is a no-op implementation for when metrics are disabled.
type NoOpServerMetrics struct{}

// RecordRequest is a no-op implementation for disabled metrics.
func (n *NoOpServerMetrics) RecordRequest(_ RequestMetrics) {
	// Intentionally empty - metrics are disabled
}

// RecordChartUpload is a no-op implementation for disabled metrics.
func (n *NoOpServerMetrics) RecordChartUpload(_ bool) {
	// Intentionally empty - metrics are disabled
}

// RecordChartDownload is a no-op implementation for disabled metrics.
func (n *NoOpServerMetrics) RecordChartDownload(_ bool) {
	// Intentionally empty - metrics are disabled
}
