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

// Package serverstats periodically exports worker runtime counters as
// prometheus metrics. Hot execution counters are sampled on a short
// interval; cache counters, which are cheap to read but slow to change,
// on a long one. OS resource usage is reported as interval deltas so the
// exported counters survive scrape gaps.
package serverstats

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sys/unix"

	"github.com/quarrydb/quarry/go/quarry/connector"
	"github.com/quarrydb/quarry/go/quarry/log"
)

// RuntimeSnapshot is a point-in-time view of the worker's execution state.
type RuntimeSnapshot struct {
	QueuedDrivers  int64
	RunningDrivers int64
	BlockedDrivers int64

	TasksPlanned  int64
	TasksRunning  int64
	TasksFinished int64
	TasksFailed   int64

	ExecutorQueueDepth      int64
	ExecutorScheduleLatency time.Duration

	OutputBufferedBytes int64
	ExchangeQueuedBytes int64
	ExchangePeakBytes   int64

	MemoryAllocatedBytes int64
	MemoryMappedBytes    int64
}

// RuntimeSource provides runtime snapshots. Implemented by the task
// executor.
type RuntimeSource interface {
	Snapshot() RuntimeSnapshot
}

// Manager samples runtime and cache counters on fixed intervals and
// exports them through prometheus. Start it once; Stop blocks until both
// sampling loops have exited.
type Manager struct {
	runtime       RuntimeSource
	caches        map[string]*connector.FileHandleCache
	hotInterval   time.Duration
	cacheInterval time.Duration

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	prevCache map[string]connector.FileHandleCacheStats
	prevUsage unix.Rusage
	haveUsage bool

	drivers            *prometheus.GaugeVec
	tasks              *prometheus.GaugeVec
	executorQueueDepth prometheus.Gauge
	scheduleLatency    prometheus.Gauge
	outputBuffered     prometheus.Gauge
	exchangeQueued     prometheus.Gauge
	exchangePeak       prometheus.Gauge
	memoryAllocated    prometheus.Gauge
	memoryMapped       prometheus.Gauge

	cpuSeconds      *prometheus.CounterVec
	pageFaults      *prometheus.CounterVec
	contextSwitches *prometheus.CounterVec

	cacheEntries *prometheus.GaugeVec
	cacheHits    *prometheus.CounterVec
	cacheMisses  *prometheus.CounterVec
}

// NewManager returns a manager exporting through reg. caches maps a
// connector id to its file-handle cache.
func NewManager(reg prometheus.Registerer, runtime RuntimeSource, caches map[string]*connector.FileHandleCache, hotInterval, cacheInterval time.Duration) *Manager {
	m := &Manager{
		runtime:       runtime,
		caches:        caches,
		hotInterval:   hotInterval,
		cacheInterval: cacheInterval,
		stop:          make(chan struct{}),
		prevCache:     make(map[string]connector.FileHandleCacheStats),

		drivers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quarry_worker_drivers",
			Help: "Drivers by state.",
		}, []string{"state"}),
		tasks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quarry_worker_tasks",
			Help: "Tasks by state.",
		}, []string{"state"}),
		executorQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarry_worker_executor_queue_depth",
			Help: "Splits waiting for an executor thread.",
		}),
		scheduleLatency: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarry_worker_executor_schedule_latency_seconds",
			Help: "Time the oldest queued split has waited.",
		}),
		outputBuffered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarry_worker_output_buffered_bytes",
			Help: "Bytes buffered in partitioned output tails.",
		}),
		exchangeQueued: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarry_worker_exchange_queued_bytes",
			Help: "Bytes queued in exchange sources.",
		}),
		exchangePeak: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarry_worker_exchange_peak_bytes",
			Help: "Peak bytes queued in exchange sources.",
		}),
		memoryAllocated: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarry_worker_memory_allocated_bytes",
			Help: "Bytes allocated by the query memory allocator.",
		}),
		memoryMapped: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "quarry_worker_memory_mapped_bytes",
			Help: "Bytes mapped by the query memory allocator.",
		}),

		cpuSeconds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarry_worker_cpu_seconds_total",
			Help: "Process CPU time by mode.",
		}, []string{"mode"}),
		pageFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarry_worker_page_faults_total",
			Help: "Process page faults by kind.",
		}, []string{"kind"}),
		contextSwitches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarry_worker_context_switches_total",
			Help: "Process context switches by kind.",
		}, []string{"kind"}),

		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "quarry_worker_file_handle_cache_entries",
			Help: "Live file-handle cache entries per connector.",
		}, []string{"connector"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarry_worker_file_handle_cache_hits_total",
			Help: "File-handle cache hits per connector.",
		}, []string{"connector"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "quarry_worker_file_handle_cache_misses_total",
			Help: "File-handle cache misses per connector.",
		}, []string{"connector"}),
	}
	reg.MustRegister(
		m.drivers, m.tasks, m.executorQueueDepth, m.scheduleLatency,
		m.outputBuffered, m.exchangeQueued, m.exchangePeak,
		m.memoryAllocated, m.memoryMapped,
		m.cpuSeconds, m.pageFaults, m.contextSwitches,
		m.cacheEntries, m.cacheHits, m.cacheMisses,
	)
	return m
}

// Start launches the sampling loops.
func (m *Manager) Start() {
	m.wg.Add(2)
	go m.loop(m.hotInterval, m.sampleHot)
	go m.loop(m.cacheInterval, m.sampleCaches)
	log.Infof("serverstats: sampling every %v (hot) and %v (caches)", m.hotInterval, m.cacheInterval)
}

// Stop terminates the sampling loops and waits for them to exit.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

func (m *Manager) loop(interval time.Duration, sample func()) {
	defer m.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			sample()
		case <-m.stop:
			return
		}
	}
}

func (m *Manager) sampleHot() {
	snap := m.runtime.Snapshot()

	m.drivers.WithLabelValues("queued").Set(float64(snap.QueuedDrivers))
	m.drivers.WithLabelValues("running").Set(float64(snap.RunningDrivers))
	m.drivers.WithLabelValues("blocked").Set(float64(snap.BlockedDrivers))

	m.tasks.WithLabelValues("planned").Set(float64(snap.TasksPlanned))
	m.tasks.WithLabelValues("running").Set(float64(snap.TasksRunning))
	m.tasks.WithLabelValues("finished").Set(float64(snap.TasksFinished))
	m.tasks.WithLabelValues("failed").Set(float64(snap.TasksFailed))

	m.executorQueueDepth.Set(float64(snap.ExecutorQueueDepth))
	m.scheduleLatency.Set(snap.ExecutorScheduleLatency.Seconds())
	m.outputBuffered.Set(float64(snap.OutputBufferedBytes))
	m.exchangeQueued.Set(float64(snap.ExchangeQueuedBytes))
	m.exchangePeak.Set(float64(snap.ExchangePeakBytes))
	m.memoryAllocated.Set(float64(snap.MemoryAllocatedBytes))
	m.memoryMapped.Set(float64(snap.MemoryMappedBytes))

	m.sampleUsage()
}

func (m *Manager) sampleUsage() {
	var usage unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &usage); err != nil {
		log.Warningf("serverstats: getrusage: %v", err)
		return
	}
	if m.haveUsage {
		m.cpuSeconds.WithLabelValues("user").Add(timevalSeconds(usage.Utime) - timevalSeconds(m.prevUsage.Utime))
		m.cpuSeconds.WithLabelValues("system").Add(timevalSeconds(usage.Stime) - timevalSeconds(m.prevUsage.Stime))
		m.pageFaults.WithLabelValues("soft").Add(nonNegative(usage.Minflt - m.prevUsage.Minflt))
		m.pageFaults.WithLabelValues("hard").Add(nonNegative(usage.Majflt - m.prevUsage.Majflt))
		m.contextSwitches.WithLabelValues("voluntary").Add(nonNegative(usage.Nvcsw - m.prevUsage.Nvcsw))
		m.contextSwitches.WithLabelValues("forced").Add(nonNegative(usage.Nivcsw - m.prevUsage.Nivcsw))
	}
	m.prevUsage = usage
	m.haveUsage = true
}

func (m *Manager) sampleCaches() {
	for id, cache := range m.caches {
		cur := cache.Stats()
		d := cacheDelta(m.prevCache[id], cur)
		m.prevCache[id] = cur

		m.cacheEntries.WithLabelValues(id).Set(float64(cur.Entries))
		m.cacheHits.WithLabelValues(id).Add(float64(d.Hits))
		m.cacheMisses.WithLabelValues(id).Add(float64(d.Misses))
	}
}

// cacheDelta computes the interval delta of the monotonic cache counters.
// Entries is a level, not a counter, so the current value passes through.
// Negative deltas (a replaced cache) clamp to zero rather than corrupting
// the cumulative counters.
func cacheDelta(prev, cur connector.FileHandleCacheStats) connector.FileHandleCacheStats {
	d := connector.FileHandleCacheStats{
		Hits:    cur.Hits - prev.Hits,
		Misses:  cur.Misses - prev.Misses,
		Entries: cur.Entries,
	}
	if d.Hits < 0 {
		d.Hits = 0
	}
	if d.Misses < 0 {
		d.Misses = 0
	}
	return d
}

func timevalSeconds(tv unix.Timeval) float64 {
	return float64(tv.Sec) + float64(tv.Usec)/1e6
}

func nonNegative(v int64) float64 {
	if v < 0 {
		return 0
	}
	return float64(v)
}
