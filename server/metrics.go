/*
 * Copyright 2024 The Autodash Authors. All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rgbkrk/autodash/internal/version"
)

const (
	namespace = "autodash"
)

// Metrics manages the metric information that relay collects.
type Metrics struct {
	registry *prometheus.Registry

	serverVersion *prometheus.GaugeVec

	connections   prometheus.Gauge
	rooms         prometheus.Gauge
	framesTotal   *prometheus.CounterVec
	framesDropped prometheus.Counter
}

// NewMetrics creates a new instance of Metrics.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	metrics := &Metrics{
		registry: reg,
		serverVersion: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "version",
			Help:      "Which version is running. 1 for 'server_version' label with current version.",
		}, []string{"server_version"}),
		connections: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "connections",
			Help:      "The number of live websocket connections.",
		}),
		rooms: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "rooms",
			Help:      "The number of documents the relay is tracking.",
		}),
		framesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_total",
			Help:      "The total number of frames handled by kind.",
		}, []string{"kind"}),
		framesDropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "relay",
			Name:      "frames_dropped_total",
			Help:      "The total number of frames dropped on slow member queues.",
		}),
	}

	metrics.serverVersion.With(prometheus.Labels{
		"server_version": version.Version,
	}).Set(1)

	return metrics
}

// ConnectionOpened increments the live connection gauge.
func (m *Metrics) ConnectionOpened() {
	m.connections.Inc()
}

// ConnectionClosed decrements the live connection gauge.
func (m *Metrics) ConnectionClosed() {
	m.connections.Dec()
}

// RoomOpened increments the room gauge.
func (m *Metrics) RoomOpened() {
	m.rooms.Inc()
}

// RoomClosed decrements the room gauge.
func (m *Metrics) RoomClosed() {
	m.rooms.Dec()
}

// FrameHandled counts an inbound frame by kind.
func (m *Metrics) FrameHandled(kind string) {
	m.framesTotal.WithLabelValues(kind).Inc()
}

// FrameDropped counts a frame discarded on a full member queue.
func (m *Metrics) FrameDropped() {
	m.framesDropped.Inc()
}

// Handler returns the http handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
