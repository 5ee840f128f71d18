package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RequestLog rappresenta una singola chiamata di generazione verso un provider
type RequestLog struct {
	ID       uuid.UUID `json:"id" gorm:"type:uuid;primary_key"`
	Provider string    `json:"provider" gorm:"index;not null"`
	Mode     string    `json:"mode"` // failover, aggregate, compare, structured
	Agent    string    `json:"agent" gorm:"index"`

	// Outcome
	Success      bool    `json:"success"`
	CacheHit     bool    `json:"cache_hit"`
	RateLimited  bool    `json:"rate_limited"`
	Attempts     int     `json:"attempts"`
	LatencyMs    int64   `json:"latency_ms"`
	Confidence   float64 `json:"confidence"`
	ErrorMessage string  `json:"error_message,omitempty"`

	Timestamp time.Time `json:"timestamp" gorm:"index;not null"`
}

// BeforeCreate genera l'ID se mancante
func (r *RequestLog) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// TableName nome esplicito della tabella
func (RequestLog) TableName() string {
	return "request_logs"
}
