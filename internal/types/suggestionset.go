package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SuggestionSet is one persisted generation result. Payload holds the full
// validated response (exercises, clinical notes, citations) as jsonb.
type SuggestionSet struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	User            *User          `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"user,omitempty"`
	PatientRef      string         `gorm:"column:patient_ref" json:"patient_ref,omitempty"`
	ClinicRef       string         `gorm:"column:clinic_ref" json:"clinic_ref,omitempty"`
	Prompt          string         `gorm:"not null;column:prompt" json:"prompt"`
	Payload         datatypes.JSON `gorm:"type:jsonb;not null;column:payload" json:"payload"`
	ConfidenceLevel string         `gorm:"column:confidence_level" json:"confidence_level"`
	CreatedAt       time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (SuggestionSet) TableName() string {
	return "suggestion_set"
}
