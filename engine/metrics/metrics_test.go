// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNewWithNilRegistryIsANoOp(t *testing.T) {
	var m *Metrics
	require.NotPanics(t, func() {
		m = New(nil)
	})
	require.Nil(t, m)

	require.NotPanics(t, func() {
		m.IncParseCount()
		m.IncGCPause()
		m.IncExceptionsThrown()
		m.SetHeapBytesAllocated(123)
		m.SetMicrotaskQueueDepth(4)
	})
}

func TestMetricsRecordObservedValues(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NotNil(t, m)

	m.IncParseCount()
	m.IncParseCount()
	m.IncGCPause()
	m.IncExceptionsThrown()
	m.SetHeapBytesAllocated(4096)
	m.SetMicrotaskQueueDepth(3)

	require.Equal(t, float64(2), testutil.ToFloat64(m.parseCount))
	require.Equal(t, float64(1), testutil.ToFloat64(m.gcPauseCount))
	require.Equal(t, float64(1), testutil.ToFloat64(m.exceptionsThrown))
	require.Equal(t, float64(4096), testutil.ToFloat64(m.heapBytesAllocated))
	require.Equal(t, float64(3), testutil.ToFloat64(m.microtaskQueueDepth))
}

func TestNewRegistersAllCollectorsOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 5)
}
