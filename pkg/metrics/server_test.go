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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewServerMetrics(t *testing.T) {
	// Use a custom registry to avoid conflicts with the global registry
	reg := prometheus.NewRegistry()
	m := newServerMetricsWithRegistry(ServerMetricsConfig{}, reg)

	if m.RequestsTotal == nil {
		t.Error("RequestsTotal is nil")
	}
	if m.RequestDuration == nil {
		t.Error("RequestDuration is nil")
	}
	if m.ChartUploadsTotal == nil {
		t.Error("ChartUploadsTotal is nil")
	}
	if m.ChartDownloadsTotal == nil {
		t.Error("ChartDownloadsTotal is nil")
	}
}

func TestRecordRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newServerMetricsWithRegistry(ServerMetricsConfig{}, reg)

	m.RecordRequest(RequestMetrics{
		Route:           "GET /v1/users/{idOrName}",
		Method:          "GET",
		StatusCode:      200,
		DurationSeconds: 0.042,
	})
	m.RecordRequest(RequestMetrics{
		Route:           "GET /v1/users/{idOrName}",
		Method:          "GET",
		StatusCode:      404,
		DurationSeconds: 0.001,
	})

	ok := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET /v1/users/{idOrName}", "GET", "200"))
	if ok != 1 {
		t.Errorf("expected 1 request with status 200, got %v", ok)
	}
	notFound := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET /v1/users/{idOrName}", "GET", "404"))
	if notFound != 1 {
		t.Errorf("expected 1 request with status 404, got %v", notFound)
	}
	if count := testutil.CollectAndCount(m.RequestDuration); count != 1 {
		t.Errorf("expected 1 duration series, got %d", count)
	}
}

func TestRecordChartTraffic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newServerMetricsWithRegistry(ServerMetricsConfig{}, reg)

	m.RecordChartUpload(true)
	m.RecordChartUpload(false)
	m.RecordChartDownload(true)

	if got := testutil.ToFloat64(m.ChartUploadsTotal.WithLabelValues(StatusSuccess)); got != 1 {
		t.Errorf("expected 1 successful upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChartUploadsTotal.WithLabelValues(StatusError)); got != 1 {
		t.Errorf("expected 1 failed upload, got %v", got)
	}
	if got := testutil.ToFloat64(m.ChartDownloadsTotal.WithLabelValues(StatusSuccess)); got != 1 {
		t.Errorf("expected 1 successful download, got %v", got)
	}
}

func TestNoOpServerMetrics(t *testing.T) {
	var rec ServerMetricsRecorder = &NoOpServerMetrics{}
	rec.RecordRequest(RequestMetrics{Route: "GET /v1/heartbeat", Method: "GET", StatusCode: 200})
	rec.RecordChartUpload(true)
	rec.RecordChartDownload(false)
}
