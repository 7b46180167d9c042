// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilCollector(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Frame(time.Millisecond, nil)
		c.Recreate("ready")
		c.Ports(1, 2)
		c.TextureBytes(4)
	})
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	require.NoError(t, err)

	c.Frame(2*time.Millisecond, nil)
	c.Frame(3*time.Millisecond, nil)
	c.Frame(time.Millisecond, errors.New("lost"))
	c.Recreate("pending")
	c.Recreate("ready")
	c.Ports(2, 1)
	c.TextureBytes(640 * 360 * 4)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.frames.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.frames.WithLabelValues("error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.recreates.WithLabelValues("pending")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.portChanges.WithLabelValues("create")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.portChanges.WithLabelValues("delete")))
	assert.Equal(t, float64(640*360*4), testutil.ToFloat64(c.textureBytes))
	assert.Equal(t, 1, testutil.CollectAndCount(c.frameDuration))
}

func TestDoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}
