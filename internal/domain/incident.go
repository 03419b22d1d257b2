package domain

import (
	"time"
)

// Severity wire values are Spanish, matching the public API contract.
type Severity string

const (
	SeverityLow      Severity = "baja"
	SeverityMedium   Severity = "media"
	SeverityHigh     Severity = "alta"
	SeverityCritical Severity = "critica"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

type IncidentState string

const (
	IncidentPending   IncidentState = "pendiente"
	IncidentValidated IncidentState = "validado"
	IncidentVerified  IncidentState = "verificado"
	IncidentArchived  IncidentState = "archivado"
)

// VerificationQuorum is the validation count that flips a report to verified.
const VerificationQuorum = 3

type Incident struct {
	ID               int64         `json:"id"`
	Type             string        `json:"tipo"`
	Description      string        `json:"descripcion"`
	Lat              float64       `json:"latitud"`
	Lng              float64       `json:"longitud"`
	Severity         Severity      `json:"severidad"`
	State            IncidentState `json:"estado"`
	OwnerID          int64         `json:"usuario_id"`
	ValidationsCount int           `json:"validaciones_count"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        *time.Time    `json:"updated_at,omitempty"`
}

type ValidationRecord struct {
	ID         int64     `json:"id"`
	IncidentID int64     `json:"incidente_id"`
	UserID     int64     `json:"usuario_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ValidationResult is the outcome of one SubmitValidation call.
// JustVerified is true only on the call that pushed the counter to quorum.
type ValidationResult struct {
	IncidentID       int64
	UserID           int64
	OwnerID          int64
	IncidentType     string
	Severity         Severity
	ValidationsCount int
	State            IncidentState
	JustVerified     bool
}
