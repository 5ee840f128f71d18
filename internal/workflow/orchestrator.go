package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/biodoia/gocareerflow/internal/stats"
	"github.com/biodoia/gocareerflow/pkg/database"
	"github.com/biodoia/gocareerflow/pkg/models"
	"github.com/rs/zerolog/log"
)

const (
	// defaultOverallConfidence è la confidence complessiva quando nessuno
	// stage ha prodotto una misura
	defaultOverallConfidence = 70.0
)

// Config configurazione dell'orchestrator
type Config struct {
	MaxWorkers   int
	StageTimeout time.Duration
	Thresholds   Thresholds
}

// Result è l'esito di un run completo del workflow.
// Lo stato terminale è sempre completed o degraded, mai un errore.
type Result struct {
	mu sync.Mutex

	Status            models.WorkflowStatus       `json:"status"`
	Stages            map[Stage]*StageResult      `json:"stages"`
	QualityScore      float64                     `json:"quality_score"`
	Confidence        float64                     `json:"confidence"`
	ExecutionTime     time.Duration               `json:"execution_time"`
	ParallelExecution bool                        `json:"parallel_execution"`
	StagesCompleted   int                         `json:"stages_completed"`
	AgentPerformance  map[string]AgentPerformance `json:"agent_performance"`
	Timestamp         time.Time                   `json:"timestamp"`
}

// Orchestrator coordina gli stage del workflow con routing adattivo
type Orchestrator struct {
	config   Config
	executor *Executor
	tracker  *Tracker
	router   *Router
	pool     *Pool
	runners  map[Stage]Runner
	exporter *stats.PrometheusExporter
	db       *database.DB
}

// Option configura l'orchestrator alla creazione
type Option func(*Orchestrator)

// WithExporter imposta l'exporter Prometheus
func WithExporter(e *stats.PrometheusExporter) Option {
	return func(o *Orchestrator) { o.exporter = e }
}

// WithDB abilita la persistenza dei run di workflow
func WithDB(db *database.DB) Option {
	return func(o *Orchestrator) { o.db = db }
}

// WithTracker sostituisce il tracker di default
func WithTracker(t *Tracker) Option {
	return func(o *Orchestrator) {
		o.tracker = t
		o.router = NewRouter(t, o.config.Thresholds)
	}
}

// NewOrchestrator crea un nuovo orchestrator.
// runners deve coprire gli stage resume_parsing, job_matching,
// skill_analysis e result_synthesis.
func NewOrchestrator(config Config, runners map[Stage]Runner, opts ...Option) *Orchestrator {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 3
	}
	if config.Thresholds == (Thresholds{}) {
		config.Thresholds = DefaultThresholds()
	}

	tracker := NewTracker()

	o := &Orchestrator{
		config:   config,
		executor: NewExecutor(config.StageTimeout),
		tracker:  tracker,
		router:   NewRouter(tracker, config.Thresholds),
		pool:     NewPool(config.MaxWorkers),
		runners:  runners,
	}

	for _, opt := range opts {
		opt(o)
	}

	return o
}

// Tracker restituisce il performance tracker dell'orchestrator
func (o *Orchestrator) Tracker() *Tracker {
	return o.tracker
}

// RunWorkflow esegue il workflow completo e restituisce sempre un
// risultato non-nil con stato terminale completed o degraded.
func (o *Orchestrator) RunWorkflow(ctx context.Context, input *Input) *Result {
	start := time.Now()

	result := &Result{
		Status:    models.WorkflowStatusDegraded,
		Stages:    make(map[Stage]*StageResult),
		Timestamp: start,
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Workflow panicked, returning degraded result")
			result.ExecutionTime = time.Since(start)
		}
	}()

	// Stage 1: parsing sequenziale
	o.runStage(ctx, StageResumeParsing, input, result)

	// Stage 2+3: matching e skill analysis, in parallelo se gli agent
	// osservati lo consentono
	group := []Stage{StageJobMatching, StageSkillAnalysis}
	result.ParallelExecution = o.router.ShouldParallelize(o.agentsFor(group))

	if result.ParallelExecution {
		o.runParallel(ctx, group, input, result)
	} else {
		for _, stage := range group {
			o.runStage(ctx, stage, input, result)
		}
	}

	// Stage 4: sintesi
	o.runStage(ctx, StageResultSynthesis, input, result)

	// Stage 5: quality gate con eventuale passata correttiva
	o.runQualityAssurance(ctx, input, result)

	// Stage 6: finalizzazione, non fallisce mai
	o.runFinalization(result)

	result.StagesCompleted = countCompleted(result.Stages)
	result.AgentPerformance = o.tracker.Snapshot()
	result.ExecutionTime = time.Since(start)
	result.Status = o.terminalStatus(result)

	log.Info().
		Str("status", string(result.Status)).
		Float64("quality", result.QualityScore).
		Bool("parallel", result.ParallelExecution).
		Dur("execution_time", result.ExecutionTime).
		Msg("Workflow finished")

	if o.exporter != nil {
		o.exporter.RecordWorkflowRun(string(result.Status), float64(result.ExecutionTime.Milliseconds()))
	}

	o.persist(result)

	return result
}

// runStage esegue uno stage, registra l'esito nel tracker e nel risultato
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, input *Input, result *Result) {
	runner, ok := o.runners[stage]
	if !ok {
		msg := fmt.Sprintf("no runner configured for stage %s", stage)
		result.setStage(&StageResult{
			Stage:   stage,
			Success: false,
			Error:   msg,
			Output:  map[string]interface{}{"error": msg},
		})
		return
	}

	stageResult := o.executor.Run(ctx, stage, runner, input, result.priorSnapshot())

	o.tracker.Observe(runner.Agent(), stageResult.Success, stageResult.Duration, stageResult.Confidence)

	if o.exporter != nil {
		o.exporter.SetStageQuality(string(stage), stageResult.QualityScore)
		perf := o.tracker.Get(runner.Agent())
		o.exporter.SetAgentPerformance(runner.Agent(), perf.SuccessRate, perf.AvgResponseTime.Seconds())
	}

	result.setStage(stageResult)
}

// runParallel esegue un gruppo di stage tramite il worker pool
func (o *Orchestrator) runParallel(ctx context.Context, group []Stage, input *Input, result *Result) {
	tasks := make([]func(), len(group))
	for i, stage := range group {
		stage := stage
		tasks[i] = func() {
			o.runStage(ctx, stage, input, result)
		}
	}

	o.pool.Run(ctx, tasks)
}

// runQualityAssurance calcola la qualità complessiva e, se insufficiente,
// applica una passata correttiva con default conservativi per gli stage
// falliti. Gli stage non vengono mai rieseguiti.
func (o *Orchestrator) runQualityAssurance(ctx context.Context, input *Input, result *Result) {
	start := time.Now()

	quality, confidence := overallQuality(result.Stages)

	corrected := false
	if quality < o.config.Thresholds.MinimumWorkflowQuality {
		log.Warn().
			Float64("quality", quality).
			Float64("minimum", o.config.Thresholds.MinimumWorkflowQuality).
			Msg("Workflow quality below threshold, applying corrective defaults")

		quality, confidence = correctedQuality(result.Stages)
		corrected = true
	}

	result.QualityScore = quality
	result.Confidence = confidence

	result.setStage(&StageResult{
		Stage:   StageQualityAssurance,
		Agent:   "quality_controller",
		Success: true,
		Output: map[string]interface{}{
			"overall_quality":    quality,
			"overall_confidence": confidence,
			"corrective_pass":    corrected,
		},
		QualityScore: ValidateStageOutput(StageQualityAssurance, nil),
		Confidence:   confidence,
		Duration:     time.Since(start),
	})
}

// runFinalization assembla il report finale. Non fallisce mai: in assenza
// di sintesi produce un report degradato dai dati disponibili.
func (o *Orchestrator) runFinalization(result *Result) {
	start := time.Now()

	report := ""
	if synthesis, ok := result.getStage(StageResultSynthesis); ok && synthesis.Success {
		if summary, ok := synthesis.Output["summary"].(string); ok {
			report = summary
		}
	}

	degraded := report == ""
	if degraded {
		report = "Partial results only: the synthesis stage did not produce a report."
	}

	result.setStage(&StageResult{
		Stage:   StageFinalization,
		Agent:   "finalizer",
		Success: true,
		Output: map[string]interface{}{
			"report":   report,
			"degraded": degraded,
		},
		QualityScore: ValidateStageOutput(StageFinalization, nil),
		Duration:     time.Since(start),
	})
}

// terminalStatus determina lo stato terminale del run
func (o *Orchestrator) terminalStatus(result *Result) models.WorkflowStatus {
	if result.QualityScore < o.config.Thresholds.MinimumWorkflowQuality {
		return models.WorkflowStatusDegraded
	}

	for _, stage := range []Stage{StageResumeParsing, StageJobMatching, StageSkillAnalysis, StageResultSynthesis} {
		if sr, ok := result.getStage(stage); !ok || !sr.Success {
			return models.WorkflowStatusDegraded
		}
	}

	return models.WorkflowStatusCompleted
}

// persist salva il run nel database se configurato
func (o *Orchestrator) persist(result *Result) {
	if o.db == nil {
		return
	}

	stagesJSON := marshalDegrading(result.Stages)
	perfJSON := marshalDegrading(result.AgentPerformance)

	run := &models.WorkflowRun{
		Status:            result.Status,
		QualityScore:      result.QualityScore,
		ExecutionTimeMs:   result.ExecutionTime.Milliseconds(),
		ParallelExecution: result.ParallelExecution,
		StagesCompleted:   result.StagesCompleted,
		Stages:            stagesJSON,
		AgentPerformance:  perfJSON,
	}

	if err := o.db.Create(run).Error; err != nil {
		log.Error().Err(err).Msg("Failed to persist workflow run")
	}
}

// marshalDegrading serializza un valore degradando progressivamente:
// JSON strutturato, poi la sua rappresentazione in stringa, infine un
// placeholder generico
func marshalDegrading(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err == nil {
		return data
	}

	log.Warn().Err(err).Msg("Structured serialization failed, storing string form")

	data, err = json.Marshal(fmt.Sprintf("%v", v))
	if err == nil {
		return data
	}

	return []byte(`"unserializable"`)
}

// agentsFor restituisce i nomi degli agent di un gruppo di stage
func (o *Orchestrator) agentsFor(group []Stage) []string {
	agents := make([]string, 0, len(group))
	for _, stage := range group {
		if runner, ok := o.runners[stage]; ok {
			agents = append(agents, runner.Agent())
		}
	}
	return agents
}

// overallQuality calcola qualità e confidence medie degli stage eseguiti
func overallQuality(stages map[Stage]*StageResult) (float64, float64) {
	core := []Stage{StageResumeParsing, StageJobMatching, StageSkillAnalysis, StageResultSynthesis}

	var qualitySum, confidenceSum float64
	var qualityCount, confidenceCount int

	for _, stage := range core {
		sr, ok := stages[stage]
		if !ok {
			continue
		}
		qualitySum += sr.QualityScore
		qualityCount++
		if sr.Confidence > 0 {
			confidenceSum += sr.Confidence
			confidenceCount++
		}
	}

	quality := 0.0
	if qualityCount > 0 {
		quality = qualitySum / float64(qualityCount)
	}

	confidence := defaultOverallConfidence
	if confidenceCount > 0 {
		confidence = confidenceSum / float64(confidenceCount)
	}

	return quality, confidence
}

// correctedQuality ricalcola qualità e confidence attribuendo agli stage
// falliti o mancanti un punteggio conservativo invece di zero
func correctedQuality(stages map[Stage]*StageResult) (float64, float64) {
	core := []Stage{StageResumeParsing, StageJobMatching, StageSkillAnalysis, StageResultSynthesis}

	var qualitySum, confidenceSum float64
	var confidenceCount int

	for _, stage := range core {
		sr, ok := stages[stage]
		if !ok || !sr.Success {
			qualitySum += qualityDegraded
			continue
		}
		qualitySum += sr.QualityScore
		if sr.Confidence > 0 {
			confidenceSum += sr.Confidence
			confidenceCount++
		}
	}

	quality := qualitySum / float64(len(core))

	confidence := defaultOverallConfidence
	if confidenceCount > 0 {
		confidence = confidenceSum / float64(confidenceCount)
	}

	return quality, confidence
}

// setStage registra l'esito di uno stage in modo thread-safe
func (r *Result) setStage(sr *StageResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Stages[sr.Stage] = sr
}

// getStage restituisce l'esito di uno stage in modo thread-safe
func (r *Result) getStage(stage Stage) (*StageResult, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr, ok := r.Stages[stage]
	return sr, ok
}

// priorSnapshot restituisce una copia degli esiti correnti da passare ai runner
func (r *Result) priorSnapshot() map[Stage]*StageResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[Stage]*StageResult, len(r.Stages))
	for stage, sr := range r.Stages {
		snapshot[stage] = sr
	}
	return snapshot
}

func countCompleted(stages map[Stage]*StageResult) int {
	count := 0
	for _, sr := range stages {
		if sr.Success {
			count++
		}
	}
	return count
}
