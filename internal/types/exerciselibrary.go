package types

import (
	"time"

	"github.com/google/uuid"
)

// ExerciseLibraryEntry is the curated reference material fed to the model
// during generation. Rows are read-only at runtime; seeding happens at
// migration time.
type ExerciseLibraryEntry struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Name           string    `gorm:"not null;column:name" json:"name"`
	Condition      string    `gorm:"not null;index;column:condition" json:"condition"`
	Description    string    `gorm:"column:description" json:"description"`
	EvidenceSource string    `gorm:"not null;column:evidence_source" json:"evidence_source"`
	CreatedAt      time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (ExerciseLibraryEntry) TableName() string {
	return "exercise_library"
}
