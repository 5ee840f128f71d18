package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type stubRunner struct {
	agent string
	fn    func(ctx context.Context) (map[string]interface{}, float64, error)
}

func (s *stubRunner) Agent() string { return s.agent }

func (s *stubRunner) Run(ctx context.Context, input *Input, prior map[Stage]*StageResult) (map[string]interface{}, float64, error) {
	return s.fn(ctx)
}

func TestExecutorSuccessfulStage(t *testing.T) {
	e := NewExecutor(time.Second)
	runner := &stubRunner{agent: "parser", fn: func(ctx context.Context) (map[string]interface{}, float64, error) {
		return map[string]interface{}{"parsed_data": "profile"}, 90, nil
	}}

	result := e.Run(context.Background(), StageResumeParsing, runner, &Input{}, nil)

	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.QualityScore != 85 {
		t.Errorf("expected quality 85, got %f", result.QualityScore)
	}
	if result.Confidence != 90 {
		t.Errorf("expected confidence 90, got %f", result.Confidence)
	}
}

func TestExecutorMissingRequiredFieldDegradesQuality(t *testing.T) {
	e := NewExecutor(time.Second)
	runner := &stubRunner{agent: "parser", fn: func(ctx context.Context) (map[string]interface{}, float64, error) {
		return map[string]interface{}{"wrong_field": "x"}, 90, nil
	}}

	result := e.Run(context.Background(), StageResumeParsing, runner, &Input{}, nil)

	if !result.Success {
		t.Fatal("stage itself succeeded, only quality should degrade")
	}
	if result.QualityScore != 50 {
		t.Errorf("expected quality 50 for missing required field, got %f", result.QualityScore)
	}
}

func TestExecutorStageWithoutValidationRule(t *testing.T) {
	e := NewExecutor(time.Second)
	runner := &stubRunner{agent: "synth", fn: func(ctx context.Context) (map[string]interface{}, float64, error) {
		return map[string]interface{}{"anything": true}, 80, nil
	}}

	result := e.Run(context.Background(), StageResultSynthesis, runner, &Input{}, nil)

	if result.QualityScore != 85 {
		t.Errorf("stage without rule should score 85, got %f", result.QualityScore)
	}
}

func TestExecutorErrorBecomesData(t *testing.T) {
	e := NewExecutor(time.Second)
	runner := &stubRunner{agent: "parser", fn: func(ctx context.Context) (map[string]interface{}, float64, error) {
		return nil, 0, errors.New("upstream exploded")
	}}

	result := e.Run(context.Background(), StageResumeParsing, runner, &Input{}, nil)

	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "upstream exploded" {
		t.Errorf("unexpected error text: %q", result.Error)
	}
	if result.QualityScore != 0 {
		t.Errorf("failed stage should score 0, got %f", result.QualityScore)
	}
	if result.Output == nil || result.Output["error"] != "upstream exploded" {
		t.Errorf("failed stage must carry the error in its output, got %v", result.Output)
	}
}

func TestExecutorRecoversFromPanic(t *testing.T) {
	e := NewExecutor(time.Second)
	runner := &stubRunner{agent: "parser", fn: func(ctx context.Context) (map[string]interface{}, float64, error) {
		panic("boom")
	}}

	result := e.Run(context.Background(), StageResumeParsing, runner, &Input{}, nil)

	if result.Success {
		t.Fatal("panicking stage must produce a failed result, not crash")
	}
	if !strings.Contains(result.Error, "panicked") {
		t.Errorf("expected panic message, got %q", result.Error)
	}
}

func TestExecutorTimeoutAbandonsStage(t *testing.T) {
	e := NewExecutor(20 * time.Millisecond)
	runner := &stubRunner{agent: "parser", fn: func(ctx context.Context) (map[string]interface{}, float64, error) {
		time.Sleep(200 * time.Millisecond)
		return map[string]interface{}{"parsed_data": "late"}, 90, nil
	}}

	start := time.Now()
	result := e.Run(context.Background(), StageResumeParsing, runner, &Input{}, nil)
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("timed out stage must fail")
	}
	if !strings.Contains(result.Error, "timed out") {
		t.Errorf("expected timeout error, got %q", result.Error)
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("executor should return at the timeout, took %v", elapsed)
	}
}

func TestValidateStageOutput(t *testing.T) {
	tests := []struct {
		name   string
		stage  Stage
		output map[string]interface{}
		want   float64
	}{
		{"required present", StageJobMatching, map[string]interface{}{"overall_match": "good"}, 85},
		{"required missing", StageJobMatching, map[string]interface{}{}, 50},
		{"nil output with rule", StageSkillAnalysis, nil, 50},
		{"no rule", StageFinalization, nil, 85},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateStageOutput(tt.stage, tt.output); got != tt.want {
				t.Errorf("expected %f, got %f", tt.want, got)
			}
		})
	}
}
