// Copyright 2024 AI SA Assistant Project
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AnswerOutcomes counts how each chat request was resolved
	AnswerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_answer_outcomes_total",
			Help: "Total number of chat requests by final orchestration outcome",
		},
		[]string{"outcome"},
	)

	// UpstreamRequests counts Discovery Engine calls by endpoint and HTTP status
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_upstream_requests_total",
			Help: "Total number of upstream API calls",
		},
		[]string{"endpoint", "status"},
	)

	// UpstreamDuration observes latency of Discovery Engine calls
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentbridge_upstream_request_duration_seconds",
			Help:    "Duration of upstream API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// SignedURLs counts signed download links by result
	SignedURLs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_signed_urls_total",
			Help: "Total number of signed URL attempts for cited documents",
		},
		[]string{"result"},
	)

	// HTTPRequests counts inbound requests by route, method and status
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agentbridge_http_requests_total",
			Help: "Total number of inbound HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPDuration observes latency of inbound requests
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "agentbridge_http_request_duration_seconds",
			Help:    "Duration of inbound HTTP requests in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"route"},
	)
)

// ObserveUpstream records one upstream call. A status of 0 means the call
// never produced an HTTP response.
func ObserveUpstream(endpoint string, status int, elapsed time.Duration) {
	label := "transport_error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	UpstreamRequests.WithLabelValues(endpoint, label).Inc()
	UpstreamDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// ObserveHTTP records one inbound request
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
