/*
Copyright 2024 The Quarry Authors.

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

package serverstats

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quarrydb/quarry/go/quarry/connector"
)

type fakeRuntime struct {
	snap RuntimeSnapshot
}

func (f *fakeRuntime) Snapshot() RuntimeSnapshot { return f.snap }

func TestCacheDelta(t *testing.T) {
	prev := connector.FileHandleCacheStats{Hits: 10, Misses: 4, Entries: 7}
	cur := connector.FileHandleCacheStats{Hits: 25, Misses: 9, Entries: 5}

	d := cacheDelta(prev, cur)
	assert.Equal(t, int64(15), d.Hits)
	assert.Equal(t, int64(5), d.Misses)
	// Entries is a level, not a counter.
	assert.Equal(t, int64(5), d.Entries)

	// A fresh sampler has no previous snapshot; the first delta is the
	// full cumulative value.
	d = cacheDelta(connector.FileHandleCacheStats{}, cur)
	assert.Equal(t, int64(25), d.Hits)
	assert.Equal(t, int64(9), d.Misses)

	// A replaced cache restarts its counters. The delta clamps instead of
	// going negative.
	d = cacheDelta(prev, connector.FileHandleCacheStats{Hits: 2, Misses: 1, Entries: 1})
	assert.Equal(t, int64(0), d.Hits)
	assert.Equal(t, int64(0), d.Misses)
	assert.Equal(t, int64(1), d.Entries)
}

func TestSampleCaches(t *testing.T) {
	cache := connector.NewFileHandleCache(60)
	cache.Put(&connector.FileHandle{Path: "/warehouse/a"})

	reg := prometheus.NewRegistry()
	m := NewManager(reg, &fakeRuntime{},
		map[string]*connector.FileHandleCache{"warehouse": cache},
		time.Second, time.Minute)

	cache.Get("/warehouse/a")
	cache.Get("/warehouse/missing")
	m.sampleCaches()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("warehouse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("warehouse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheEntries.WithLabelValues("warehouse")))

	// The next interval only adds that interval's activity.
	cache.Get("/warehouse/a")
	m.sampleCaches()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheHits.WithLabelValues("warehouse")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheMisses.WithLabelValues("warehouse")))
}

func TestSampleHot(t *testing.T) {
	runtime := &fakeRuntime{snap: RuntimeSnapshot{
		QueuedDrivers:           3,
		RunningDrivers:          8,
		TasksRunning:            2,
		ExecutorQueueDepth:      12,
		ExecutorScheduleLatency: 250 * time.Millisecond,
		OutputBufferedBytes:     1 << 20,
		MemoryAllocatedBytes:    1 << 30,
	}}

	reg := prometheus.NewRegistry()
	m := NewManager(reg, runtime, nil, time.Second, time.Minute)

	m.sampleHot()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.drivers.WithLabelValues("queued")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.drivers.WithLabelValues("running")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.tasks.WithLabelValues("running")))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.executorQueueDepth))
	assert.Equal(t, 0.25, testutil.ToFloat64(m.scheduleLatency))
	assert.Equal(t, float64(1<<20), testutil.ToFloat64(m.outputBuffered))
	assert.Equal(t, float64(1<<30), testutil.ToFloat64(m.memoryAllocated))

	// Resource usage deltas only start accumulating from the second
	// sample.
	m.sampleHot()
	require.True(t, m.haveUsage)
}

func TestManagerStop(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewManager(reg, &fakeRuntime{}, nil, 10*time.Millisecond, 10*time.Millisecond)

	m.Start()
	time.Sleep(30 * time.Millisecond)
	m.Stop()
	// Stop is idempotent.
	m.Stop()
}
