package stats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorAggregatesPerProvider(t *testing.T) {
	c := NewCollector(nil, 10)

	c.Record(&RequestMetrics{Provider: "gemini", Success: true, LatencyMs: 100})
	c.Record(&RequestMetrics{Provider: "gemini", Success: true, LatencyMs: 300})
	c.Record(&RequestMetrics{Provider: "gemini", Success: false, LatencyMs: 200, ErrorMessage: "timeout"})
	c.Record(&RequestMetrics{Provider: "mistral", Success: true, LatencyMs: 50})

	gemini := c.GetProviderMetrics("gemini")
	require.NotNil(t, gemini)
	assert.Equal(t, int64(3), gemini.TotalRequests)
	assert.Equal(t, int64(2), gemini.SuccessCount)
	assert.Equal(t, int64(1), gemini.ErrorCount)
	assert.Equal(t, int64(600), gemini.TotalLatencyMs)

	mistral := c.GetProviderMetrics("mistral")
	require.NotNil(t, mistral)
	assert.Equal(t, int64(1), mistral.TotalRequests)

	assert.Nil(t, c.GetProviderMetrics("unknown"))
}

func TestCollectorSuccessRateAndLatency(t *testing.T) {
	c := NewCollector(nil, 10)

	c.Record(&RequestMetrics{Provider: "gemini", Success: true, LatencyMs: 100})
	c.Record(&RequestMetrics{Provider: "gemini", Success: false, LatencyMs: 300})

	assert.InDelta(t, 0.5, c.CalculateSuccessRate("gemini"), 0.001)
	assert.Equal(t, int64(200), c.CalculateAvgLatency("gemini"))

	// Unknown provider has no data
	assert.Equal(t, 0.0, c.CalculateSuccessRate("unknown"))
	assert.Equal(t, int64(0), c.CalculateAvgLatency("unknown"))
}

func TestCollectorCountsCacheHitsAndRateLimits(t *testing.T) {
	c := NewCollector(nil, 10)

	c.Record(&RequestMetrics{Provider: "gemini", Success: true, CacheHit: true})
	c.Record(&RequestMetrics{Provider: "gemini", Success: false, RateLimited: true})

	m := c.GetProviderMetrics("gemini")
	require.NotNil(t, m)
	assert.Equal(t, int64(1), m.CacheHits)
	assert.Equal(t, int64(1), m.RateLimited)
}

func TestCollectorTimestampDefaultsToNow(t *testing.T) {
	c := NewCollector(nil, 10)

	before := time.Now()
	c.Record(&RequestMetrics{Provider: "gemini", Success: true})

	c.logBufferMu.Lock()
	defer c.logBufferMu.Unlock()
	require.Len(t, c.logBuffer, 1)
	assert.False(t, c.logBuffer[0].Timestamp.Before(before))
}

func TestCollectorResetMetrics(t *testing.T) {
	c := NewCollector(nil, 10)

	c.Record(&RequestMetrics{Provider: "gemini", Success: true})
	require.NotNil(t, c.GetProviderMetrics("gemini"))

	c.ResetMetrics()
	assert.Nil(t, c.GetProviderMetrics("gemini"))
	assert.Empty(t, c.GetAllMetrics())
}
