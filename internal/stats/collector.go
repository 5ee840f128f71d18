package stats

import (
	"context"
	"sync"
	"time"

	"github.com/biodoia/gocareerflow/pkg/database"
	"github.com/biodoia/gocareerflow/pkg/models"
	"github.com/rs/zerolog/log"
)

// RequestMetrics rappresenta le metriche di una singola richiesta di generazione
type RequestMetrics struct {
	Provider     string
	Agent        string
	Mode         string
	LatencyMs    int64
	Attempts     int
	Success      bool
	CacheHit     bool
	RateLimited  bool
	Confidence   float64
	ErrorMessage string
	Timestamp    time.Time
}

// AggregatedMetrics rappresenta metriche aggregate in memoria per provider
type AggregatedMetrics struct {
	Provider       string
	TotalRequests  int64
	SuccessCount   int64
	ErrorCount     int64
	CacheHits      int64
	RateLimited    int64
	TotalLatencyMs int64
	LastUpdated    time.Time
}

// Collector raccoglie e aggrega metriche dalle richieste.
// I log vengono bufferizzati e scritti a batch nel database;
// con db nil l'aggregazione resta solo in memoria.
type Collector struct {
	db *database.DB

	// In-memory aggregation per provider
	metrics map[string]*AggregatedMetrics
	mu      sync.RWMutex

	// Buffer per request logs
	logBuffer   []*models.RequestLog
	logBufferMu sync.Mutex
	bufferSize  int
	flushTicker *time.Ticker
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewCollector crea un nuovo collector
func NewCollector(db *database.DB, bufferSize int) *Collector {
	if bufferSize <= 0 {
		bufferSize = 100
	}

	return &Collector{
		db:         db,
		metrics:    make(map[string]*AggregatedMetrics),
		logBuffer:  make([]*models.RequestLog, 0, bufferSize),
		bufferSize: bufferSize,
		stopCh:     make(chan struct{}),
	}
}

// Start avvia il flush periodico
func (c *Collector) Start(flushInterval time.Duration) {
	c.flushTicker = time.NewTicker(flushInterval)
	c.wg.Add(1)

	go c.flushLoop()
	log.Info().
		Dur("flush_interval", flushInterval).
		Msg("Stats collector started")
}

// Stop ferma il collector
func (c *Collector) Stop() {
	if c.flushTicker != nil {
		c.flushTicker.Stop()
	}
	close(c.stopCh)
	c.wg.Wait()

	// Final flush
	c.flush()
	log.Info().Msg("Stats collector stopped")
}

// Record registra le metriche di una richiesta
func (c *Collector) Record(metrics *RequestMetrics) {
	reqLog := &models.RequestLog{
		Provider:     metrics.Provider,
		Agent:        metrics.Agent,
		Mode:         metrics.Mode,
		LatencyMs:    metrics.LatencyMs,
		Attempts:     metrics.Attempts,
		Success:      metrics.Success,
		CacheHit:     metrics.CacheHit,
		RateLimited:  metrics.RateLimited,
		Confidence:   metrics.Confidence,
		ErrorMessage: metrics.ErrorMessage,
		Timestamp:    metrics.Timestamp,
	}

	if reqLog.Timestamp.IsZero() {
		reqLog.Timestamp = time.Now()
	}

	c.logBufferMu.Lock()
	c.logBuffer = append(c.logBuffer, reqLog)
	shouldFlush := len(c.logBuffer) >= c.bufferSize
	c.logBufferMu.Unlock()

	c.updateAggregatedMetrics(metrics)

	if shouldFlush {
		go c.flush()
	}
}

// updateAggregatedMetrics aggiorna le metriche aggregate in memoria
func (c *Collector) updateAggregatedMetrics(metrics *RequestMetrics) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg, exists := c.metrics[metrics.Provider]
	if !exists {
		agg = &AggregatedMetrics{
			Provider: metrics.Provider,
		}
		c.metrics[metrics.Provider] = agg
	}

	agg.TotalRequests++
	if metrics.Success {
		agg.SuccessCount++
	} else {
		agg.ErrorCount++
	}
	if metrics.CacheHit {
		agg.CacheHits++
	}
	if metrics.RateLimited {
		agg.RateLimited++
	}

	agg.TotalLatencyMs += metrics.LatencyMs
	agg.LastUpdated = time.Now()
}

// GetProviderMetrics restituisce le metriche aggregate per un provider
func (c *Collector) GetProviderMetrics(provider string) *AggregatedMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if metrics, exists := c.metrics[provider]; exists {
		copy := *metrics
		return &copy
	}

	return nil
}

// GetAllMetrics restituisce tutte le metriche aggregate
func (c *Collector) GetAllMetrics() map[string]*AggregatedMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]*AggregatedMetrics, len(c.metrics))
	for provider, metrics := range c.metrics {
		copy := *metrics
		result[provider] = &copy
	}

	return result
}

// CalculateSuccessRate calcola il success rate per un provider
func (c *Collector) CalculateSuccessRate(provider string) float64 {
	metrics := c.GetProviderMetrics(provider)
	if metrics == nil || metrics.TotalRequests == 0 {
		return 0.0
	}

	return float64(metrics.SuccessCount) / float64(metrics.TotalRequests)
}

// CalculateAvgLatency calcola la latenza media in millisecondi per un provider
func (c *Collector) CalculateAvgLatency(provider string) int64 {
	metrics := c.GetProviderMetrics(provider)
	if metrics == nil || metrics.TotalRequests == 0 {
		return 0
	}

	return metrics.TotalLatencyMs / metrics.TotalRequests
}

// flushLoop esegue il flush periodico
func (c *Collector) flushLoop() {
	defer c.wg.Done()

	for {
		select {
		case <-c.flushTicker.C:
			c.flush()
		case <-c.stopCh:
			return
		}
	}
}

// flush scrive i dati bufferizzati nel database
func (c *Collector) flush() {
	c.logBufferMu.Lock()
	logsToFlush := c.logBuffer
	c.logBuffer = make([]*models.RequestLog, 0, c.bufferSize)
	c.logBufferMu.Unlock()

	if len(logsToFlush) == 0 || c.db == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.db.WithContext(ctx).CreateInBatches(logsToFlush, 100).Error; err != nil {
		log.Error().
			Err(err).
			Int("count", len(logsToFlush)).
			Msg("Failed to flush request logs")
	} else {
		log.Debug().
			Int("count", len(logsToFlush)).
			Msg("Flushed request logs to database")
	}
}

// ResetMetrics resetta le metriche aggregate in memoria
func (c *Collector) ResetMetrics() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics = make(map[string]*AggregatedMetrics)
	log.Info().Msg("Reset aggregated metrics")
}
