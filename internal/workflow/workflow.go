package workflow

import (
	"context"
	"time"
)

// Stage identifica uno stage del workflow
type Stage string

const (
	StageResumeParsing    Stage = "resume_parsing"
	StageJobMatching      Stage = "job_matching"
	StageSkillAnalysis    Stage = "skill_analysis"
	StageResultSynthesis  Stage = "result_synthesis"
	StageQualityAssurance Stage = "quality_assurance"
	StageFinalization     Stage = "finalization"
)

// Input è l'input del workflow
type Input struct {
	ResumeText     string            `json:"resume_text"`
	JobDescription string            `json:"job_description"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// StageResult è l'esito di uno stage. Gli errori sono dati, mai panic:
// uno stage fallito produce un risultato con Success false.
type StageResult struct {
	Stage        Stage                  `json:"stage"`
	Agent        string                 `json:"agent"`
	Success      bool                   `json:"success"`
	Output       map[string]interface{} `json:"output,omitempty"`
	Error        string                 `json:"error,omitempty"`
	QualityScore float64                `json:"quality_score"`
	Confidence   float64                `json:"confidence"`
	Duration     time.Duration          `json:"duration"`
}

// Runner esegue il lavoro di uno stage.
// Riceve l'input del workflow e i risultati degli stage precedenti.
type Runner interface {
	// Agent restituisce il nome dell'agent che esegue lo stage
	Agent() string

	// Run produce l'output dello stage e un confidence hint (0-100)
	Run(ctx context.Context, input *Input, prior map[Stage]*StageResult) (map[string]interface{}, float64, error)
}
