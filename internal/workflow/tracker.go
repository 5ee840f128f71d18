package workflow

import (
	"sync"
	"time"
)

const (
	// defaultSuccessRate è il success rate neutro di un agent mai osservato
	defaultSuccessRate = 100.0

	// defaultConfidence è il confidence neutro di un agent mai osservato
	defaultConfidence = 85.0
)

// AgentPerformance è lo snapshot delle performance di un agent
type AgentPerformance struct {
	Agent           string        `json:"agent"`
	SuccessRate     float64       `json:"success_rate"` // 0-100
	AvgResponseTime time.Duration `json:"avg_response_time"`
	Confidence      float64       `json:"confidence"` // 0-100
	TotalRuns       int64         `json:"total_runs"`
	SuccessCount    int64         `json:"success_count"`
}

// agentRecord mantiene i contatori espliciti di un agent.
// Il success rate è sempre derivato da successCount/totalRuns,
// mai ricostruito dal rate precedente.
type agentRecord struct {
	mu              sync.Mutex
	totalRuns       int64
	successCount    int64
	avgResponseTime time.Duration
	confidence      float64
	hasConfidence   bool
}

// Tracker osserva gli esiti degli stage e mantiene le performance per agent
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*agentRecord
}

// NewTracker crea un nuovo tracker vuoto
func NewTracker() *Tracker {
	return &Tracker{
		records: make(map[string]*agentRecord),
	}
}

// record ottiene o crea il record di un agent
func (t *Tracker) record(agent string) *agentRecord {
	t.mu.RLock()
	rec, exists := t.records[agent]
	t.mu.RUnlock()

	if exists {
		return rec
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, exists := t.records[agent]; exists {
		return rec
	}

	rec = &agentRecord{confidence: defaultConfidence}
	t.records[agent] = rec
	return rec
}

// Observe registra l'esito di un'esecuzione di un agent
func (t *Tracker) Observe(agent string, success bool, duration time.Duration, confidence float64) {
	rec := t.record(agent)

	rec.mu.Lock()
	defer rec.mu.Unlock()

	first := rec.totalRuns == 0

	rec.totalRuns++
	if success {
		rec.successCount++
	}

	// Media a due punti: il valore corrente pesa quanto tutta la storia
	if first {
		rec.avgResponseTime = duration
	} else {
		rec.avgResponseTime = (rec.avgResponseTime + duration) / 2
	}

	// La confidence viene aggiornata solo quando lo stage ne riporta una:
	// gli stage falliti non la trascinano verso zero
	if confidence > 0 {
		if rec.hasConfidence {
			rec.confidence = (rec.confidence + confidence) / 2
		} else {
			rec.confidence = confidence
			rec.hasConfidence = true
		}
	}
}

// Get restituisce le performance di un agent.
// Un agent mai osservato ha valori neutri: success rate 100, confidence 85.
func (t *Tracker) Get(agent string) AgentPerformance {
	t.mu.RLock()
	rec, exists := t.records[agent]
	t.mu.RUnlock()

	if !exists {
		return AgentPerformance{
			Agent:       agent,
			SuccessRate: defaultSuccessRate,
			Confidence:  defaultConfidence,
		}
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	perf := AgentPerformance{
		Agent:           agent,
		AvgResponseTime: rec.avgResponseTime,
		Confidence:      rec.confidence,
		TotalRuns:       rec.totalRuns,
		SuccessCount:    rec.successCount,
	}

	if rec.totalRuns > 0 {
		perf.SuccessRate = float64(rec.successCount) / float64(rec.totalRuns) * 100
	} else {
		perf.SuccessRate = defaultSuccessRate
	}

	return perf
}

// Snapshot restituisce le performance di tutti gli agent osservati
func (t *Tracker) Snapshot() map[string]AgentPerformance {
	t.mu.RLock()
	agents := make([]string, 0, len(t.records))
	for agent := range t.records {
		agents = append(agents, agent)
	}
	t.mu.RUnlock()

	result := make(map[string]AgentPerformance, len(agents))
	for _, agent := range agents {
		result[agent] = t.Get(agent)
	}

	return result
}

// Thresholds soglie per il routing adattivo e il quality gate
type Thresholds struct {
	MinimumConfidence      float64
	MaximumResponseTime    time.Duration
	MinimumSuccessRate     float64
	MinimumWorkflowQuality float64
}

// DefaultThresholds restituisce le soglie di default
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinimumConfidence:      70,
		MaximumResponseTime:    30 * time.Second,
		MinimumSuccessRate:     80,
		MinimumWorkflowQuality: 70,
	}
}

// Router decide la strategia di esecuzione in base alle performance osservate
type Router struct {
	tracker    *Tracker
	thresholds Thresholds
}

// NewRouter crea un nuovo router adattivo
func NewRouter(tracker *Tracker, thresholds Thresholds) *Router {
	return &Router{
		tracker:    tracker,
		thresholds: thresholds,
	}
}

// ShouldParallelize decide se un gruppo di stage può essere eseguito in
// parallelo. Un solo agent degradato riporta tutto il gruppo in sequenza.
func (r *Router) ShouldParallelize(agents []string) bool {
	for _, agent := range agents {
		perf := r.tracker.Get(agent)
		if perf.SuccessRate < r.thresholds.MinimumSuccessRate {
			return false
		}
		if perf.AvgResponseTime > r.thresholds.MaximumResponseTime {
			return false
		}
	}
	return true
}
