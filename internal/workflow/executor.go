package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// qualityFull è il punteggio per uno stage con output completo
	qualityFull = 85.0

	// qualityDegraded è il punteggio quando manca un campo obbligatorio
	qualityDegraded = 50.0
)

// requiredFields elenca i campi obbligatori dell'output per stage.
// Gli stage assenti dalla mappa non hanno regole di validazione.
var requiredFields = map[Stage][]string{
	StageResumeParsing: {"parsed_data"},
	StageJobMatching:   {"overall_match"},
	StageSkillAnalysis: {"skill_recommendations"},
}

// Executor esegue i runner degli stage con timeout, recover e
// validazione di qualità dell'output
type Executor struct {
	timeout time.Duration
}

// NewExecutor crea un nuovo executor con il timeout per stage dato
func NewExecutor(timeout time.Duration) *Executor {
	return &Executor{timeout: timeout}
}

// Run esegue uno stage e restituisce sempre un risultato non-nil.
// Panics e timeout diventano risultati falliti.
func (e *Executor) Run(ctx context.Context, stage Stage, runner Runner, input *Input, prior map[Stage]*StageResult) *StageResult {
	result := &StageResult{
		Stage: stage,
		Agent: runner.Agent(),
	}

	start := time.Now()

	runCtx := ctx
	var cancel context.CancelFunc
	if e.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	output, confidence, err := e.runProtected(runCtx, stage, runner, input, prior)
	result.Duration = time.Since(start)

	if err != nil {
		result.Success = false
		result.Error = err.Error()
		result.QualityScore = 0
		// Downstream stages read the output map, never the error field
		result.Output = map[string]interface{}{"error": err.Error()}

		log.Warn().
			Str("stage", string(stage)).
			Str("agent", runner.Agent()).
			Err(err).
			Dur("duration", result.Duration).
			Msg("Stage failed")

		return result
	}

	result.Success = true
	result.Output = output
	result.Confidence = confidence
	result.QualityScore = ValidateStageOutput(stage, output)

	log.Debug().
		Str("stage", string(stage)).
		Str("agent", runner.Agent()).
		Float64("quality", result.QualityScore).
		Dur("duration", result.Duration).
		Msg("Stage completed")

	return result
}

// runProtected esegue il runner convertendo panic in errori
func (e *Executor) runProtected(ctx context.Context, stage Stage, runner Runner, input *Input, prior map[Stage]*StageResult) (output map[string]interface{}, confidence float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			confidence = 0
			err = fmt.Errorf("stage %s panicked: %v", stage, r)
		}
	}()

	type runOutcome struct {
		output     map[string]interface{}
		confidence float64
		err        error
	}

	done := make(chan runOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- runOutcome{err: fmt.Errorf("stage %s panicked: %v", stage, r)}
			}
		}()
		out, conf, runErr := runner.Run(ctx, input, prior)
		done <- runOutcome{output: out, confidence: conf, err: runErr}
	}()

	select {
	case outcome := <-done:
		return outcome.output, outcome.confidence, outcome.err
	case <-ctx.Done():
		// Lo stage abbandonato continua in background ma il suo esito viene ignorato
		return nil, 0, fmt.Errorf("stage %s timed out: %w", stage, ctx.Err())
	}
}

// ValidateStageOutput calcola il quality score dell'output di uno stage.
// Campo obbligatorio mancante: 50. Presente o senza regola: 85.
func ValidateStageOutput(stage Stage, output map[string]interface{}) float64 {
	fields, hasRule := requiredFields[stage]
	if !hasRule {
		return qualityFull
	}

	for _, field := range fields {
		if _, ok := output[field]; !ok {
			return qualityDegraded
		}
	}

	return qualityFull
}
