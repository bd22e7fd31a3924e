package types

import (
	"time"

	"github.com/google/uuid"
)

// StageMetric is one append-only timing sample for a pipeline stage. Rows are
// never updated or deleted here; retention is handled out of band.
type StageMetric struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID `gorm:"type:uuid;not null;index" json:"user_id"`
	Stage      string    `gorm:"not null;index;column:stage" json:"stage"`
	DurationMs int64     `gorm:"not null;column:duration_ms" json:"duration_ms"`
	RecordedAt time.Time `gorm:"not null;column:recorded_at" json:"recorded_at"`
}

func (StageMetric) TableName() string {
	return "stage_metric"
}
