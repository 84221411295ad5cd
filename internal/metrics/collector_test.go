package metrics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), nil)

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.selectionsTotal)
	assert.NotNil(t, collector.injectionsTotal)
	assert.NotNil(t, collector.conflictsDetected)
	assert.NotNil(t, collector.llmCost)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/api/v1/kpi", 200, 10*time.Millisecond)
	collector.RecordHTTPRequest("GET", "/api/v1/kpi", 200, 5*time.Millisecond)
	collector.RecordHTTPRequest("POST", "/api/v1/kpi/export", 500, 5*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/api/v1/kpi", "2xx")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/api/v1/kpi/export", "5xx")))
}

func TestCollector_ObserveTurn(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveTurn("cfo", "success", 300*time.Millisecond, 120, 0.02)
	collector.ObserveTurn("cfo", "error", 100*time.Millisecond, 0, 0)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("cfo", "success")))
	assert.Equal(t, float64(120), testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("cfo")))
	assert.InDelta(t, 0.02, testutil.ToFloat64(collector.llmCost.WithLabelValues("cfo")), 1e-9)
}

func TestCollector_ObserveSelectionAndEvaluation(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveSelection("cfo", "analysis", 2.5)
	collector.ObserveEvaluation("analysis", 0.9, 50, 0.4)
	collector.ObserveEvaluation("analysis", 0.2, -25, -0.2)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.selectionsTotal.WithLabelValues("cfo", "analysis")))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.conversationsEvaluated.WithLabelValues("analysis")))
	// 负节省不计入
	assert.InDelta(t, 0.4, testutil.ToFloat64(collector.costSaved.WithLabelValues("analysis")), 1e-9)
}

func TestCollector_InjectionAndCache(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveInjection("hit", time.Millisecond)
	collector.ObserveInjection("miss", 20*time.Millisecond)
	collector.RecordCacheHit("turn_context")
	collector.RecordCacheMiss("turn_context")

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.injectionsTotal.WithLabelValues("hit")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheHits.WithLabelValues("turn_context")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.cacheMisses.WithLabelValues("turn_context")))
}

func TestCollector_ObserveConflicts(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.ObserveConflicts("opposite_terms", 0)
	collector.ObserveConflicts("opposite_terms", 3)

	assert.Equal(t, float64(3), testutil.ToFloat64(collector.conflictsDetected.WithLabelValues("opposite_terms")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.ObserveSelection("cso", "discovery", 1)
			collector.RecordCacheHit("turn_context")
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(10), testutil.ToFloat64(collector.selectionsTotal.WithLabelValues("cso", "discovery")))
	assert.Greater(t, testutil.CollectAndCount(collector.cacheHits), 0)
}

func TestStatusCode(t *testing.T) {
	assert.Equal(t, "2xx", statusCode(204))
	assert.Equal(t, "3xx", statusCode(302))
	assert.Equal(t, "4xx", statusCode(404))
	assert.Equal(t, "5xx", statusCode(503))
	assert.Equal(t, "unknown", statusCode(100))
}
