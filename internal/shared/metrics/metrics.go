package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
)

var (
	jobsStartedTotal   atomic.Uint64
	jobsCompletedTotal atomic.Uint64
	jobsFailedTotal    atomic.Uint64

	cacheHitsTotal   atomic.Uint64
	cacheMissesTotal atomic.Uint64

	workerJobsReceivedTotal             atomic.Uint64
	workerJobsCompletedTotal            atomic.Uint64
	workerJobsFailedTotal               atomic.Uint64
	workerJobsDeletedUnrecoverableTotal atomic.Uint64

	analysisDuration = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000, 900000})
)

// IncJobStarted increments the started counter.
func IncJobStarted() {
	jobsStartedTotal.Add(1)
}

// IncJobCompleted increments the completed counter.
func IncJobCompleted() {
	jobsCompletedTotal.Add(1)
}

// IncJobFailed increments the failed counter.
func IncJobFailed() {
	jobsFailedTotal.Add(1)
}

// IncCacheHit increments the cache hit counter.
func IncCacheHit() {
	cacheHitsTotal.Add(1)
}

// IncCacheMiss increments the cache miss counter.
func IncCacheMiss() {
	cacheMissesTotal.Add(1)
}

// IncWorkerJobsReceived increments the worker received counter.
func IncWorkerJobsReceived() {
	workerJobsReceivedTotal.Add(1)
}

// IncWorkerJobsCompleted increments the worker completed counter.
func IncWorkerJobsCompleted() {
	workerJobsCompletedTotal.Add(1)
}

// IncWorkerJobsFailed increments the worker failed counter.
func IncWorkerJobsFailed() {
	workerJobsFailedTotal.Add(1)
}

// IncWorkerJobsDeletedUnrecoverable counts messages dropped as unparsable.
func IncWorkerJobsDeletedUnrecoverable() {
	workerJobsDeletedUnrecoverableTotal.Add(1)
}

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "inspection_jobs_started_total", "Total inspection jobs started", jobsStartedTotal.Load())
	writeCounter(&buf, "inspection_jobs_completed_total", "Total inspection jobs completed", jobsCompletedTotal.Load())
	writeCounter(&buf, "inspection_jobs_failed_total", "Total inspection jobs failed", jobsFailedTotal.Load())
	writeCounter(&buf, "result_cache_hits_total", "Total result cache hits", cacheHitsTotal.Load())
	writeCounter(&buf, "result_cache_misses_total", "Total result cache misses", cacheMissesTotal.Load())
	writeCounter(&buf, "worker_jobs_received_total", "Total queue messages received by the worker", workerJobsReceivedTotal.Load())
	writeCounter(&buf, "worker_jobs_completed_total", "Total queue messages processed by the worker", workerJobsCompletedTotal.Load())
	writeCounter(&buf, "worker_jobs_failed_total", "Total queue messages that failed processing", workerJobsFailedTotal.Load())
	writeCounter(&buf, "worker_jobs_deleted_unrecoverable_total", "Total unparsable queue messages dropped", workerJobsDeletedUnrecoverableTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "Video analysis duration in milliseconds", analysisDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NowMillis returns current time in milliseconds, useful for callers without time utilities.
func NowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
