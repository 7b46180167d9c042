// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package metrics exposes render node activity as Prometheus metrics.
//
// A nil *Collector is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "animnode"

// Collector records node metrics.
type Collector struct {
	frames        *prometheus.CounterVec
	frameDuration prometheus.Histogram
	recreates     *prometheus.CounterVec
	portChanges   *prometheus.CounterVec
	textureBytes  prometheus.Gauge
}

// New creates a collector and registers it with reg. A nil reg uses the
// default registerer.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames executed, by result.",
		}, []string{"result"}),
		frameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Wall time of a frame including the GPU wait.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		recreates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recreates_total",
			Help:      "Recreate calls, by outcome.",
		}, []string{"status"}),
		portChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "port_changes_total",
			Help:      "Dynamic ports created or deleted by reconciliation.",
		}, []string{"op"}),
		textureBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "texture_bytes",
			Help:      "Allocation size of the current exported texture.",
		}),
	}
	for _, col := range []prometheus.Collector{c.frames, c.frameDuration, c.recreates, c.portChanges, c.textureBytes} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Frame records one executed frame.
func (c *Collector) Frame(d time.Duration, err error) {
	if c == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.frames.WithLabelValues(result).Inc()
	c.frameDuration.Observe(d.Seconds())
}

// Recreate records a Recreate outcome: "ready", "pending" or "error".
func (c *Collector) Recreate(status string) {
	if c == nil {
		return
	}
	c.recreates.WithLabelValues(status).Inc()
}

// Ports records a reconciliation.
func (c *Collector) Ports(created, deleted int) {
	if c == nil {
		return
	}
	c.portChanges.WithLabelValues("create").Add(float64(created))
	c.portChanges.WithLabelValues("delete").Add(float64(deleted))
}

// TextureBytes sets the size of the current texture. Zero means none.
func (c *Collector) TextureBytes(n uint64) {
	if c == nil {
		return
	}
	c.textureBytes.Set(float64(n))
}
