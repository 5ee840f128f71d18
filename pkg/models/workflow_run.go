package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// WorkflowStatus stato terminale di un run
type WorkflowStatus string

const (
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusDegraded  WorkflowStatus = "degraded"
)

// WorkflowRun rappresenta un'esecuzione completa del workflow
type WorkflowRun struct {
	ID     uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	Status WorkflowStatus `json:"status" gorm:"index;not null"`

	// Metadata di esecuzione
	QualityScore      float64 `json:"quality_score"`
	ExecutionTimeMs   int64   `json:"execution_time_ms"`
	ParallelExecution bool    `json:"parallel_execution"`
	StagesCompleted   int     `json:"stages_completed"`

	// Output per stage e snapshot delle performance degli agent,
	// serializzati come JSON
	Stages           datatypes.JSON `json:"stages"`
	AgentPerformance datatypes.JSON `json:"agent_performance"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// BeforeCreate genera l'ID se mancante
func (w *WorkflowRun) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

// TableName nome esplicito della tabella
func (WorkflowRun) TableName() string {
	return "workflow_runs"
}
