package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	TriggerAppointmentScheduled = "appointment_scheduled"
	TriggerAppointmentCompleted = "appointment_completed"
	TriggerManual               = "manual"
)

const (
	ChannelAuto     = "auto"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// FollowUpDefinition is staff-owned configuration. The processor only reads it.
type FollowUpDefinition struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID        uuid.UUID `gorm:"type:uuid;index;not null" json:"clinicId"`
	Name            string    `gorm:"not null" json:"name"`
	TriggerEvent    string    `gorm:"type:varchar(40);not null" json:"triggerEvent"`
	OffsetMinutes   int       `json:"offsetMinutes"` // relative to appointment start, may be negative
	Channel         string    `gorm:"type:varchar(20);default:'auto'" json:"channel"`
	MessageTemplate string    `gorm:"type:text;not null" json:"messageTemplate"`
	IsActive        bool      `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (d *FollowUpDefinition) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// ExecutionStatus is the lifecycle state of a FollowUpExecution.
type ExecutionStatus string

const (
	ExecutionPending   ExecutionStatus = "PENDING"
	ExecutionClaimed   ExecutionStatus = "CLAIMED"
	ExecutionSent      ExecutionStatus = "SENT"
	ExecutionFailed    ExecutionStatus = "FAILED"
	ExecutionCancelled ExecutionStatus = "CANCELLED"
)

var executionTransitions = map[ExecutionStatus][]ExecutionStatus{
	ExecutionPending: {ExecutionClaimed, ExecutionSent, ExecutionFailed, ExecutionCancelled},
	ExecutionClaimed: {ExecutionSent, ExecutionFailed},
}

// CanTransition reports whether from -> to is an allowed status change.
// SENT, FAILED and CANCELLED have no outgoing transitions.
func (s ExecutionStatus) CanTransition(to ExecutionStatus) bool {
	for _, next := range executionTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s ExecutionStatus) IsTerminal() bool {
	return s == ExecutionSent || s == ExecutionFailed || s == ExecutionCancelled
}

func (s ExecutionStatus) Valid() bool {
	switch s {
	case ExecutionPending, ExecutionClaimed, ExecutionSent, ExecutionFailed, ExecutionCancelled:
		return true
	}
	return false
}

var ErrScheduledForImmutable = errors.New("scheduled_for cannot change once set")

// FollowUpExecution is one attempt to deliver a definition to a patient.
// Rows are never deleted; they are the audit trail of what was sent.
type FollowUpExecution struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DefinitionID  uuid.UUID  `gorm:"type:uuid;index;not null" json:"definitionId"`
	ClinicID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"clinicId"`
	PatientID     uuid.UUID  `gorm:"type:uuid;index;not null" json:"patientId"`
	AppointmentID *uuid.UUID `gorm:"type:uuid;index" json:"appointmentId"`

	ScheduledFor time.Time       `gorm:"not null;index:idx_execution_status_scheduled,priority:2" json:"scheduledFor"`
	Status       ExecutionStatus `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_execution_status_scheduled,priority:1" json:"status"`
	ClaimedAt    *time.Time      `json:"claimedAt"`
	CompletedAt  *time.Time      `json:"completedAt"`
	Channel      string          `gorm:"type:varchar(20)" json:"channel"`
	ProviderRef  string          `gorm:"type:varchar(64)" json:"providerRef"`
	ErrorDetail  string          `gorm:"type:text" json:"errorDetail"`

	Definition  FollowUpDefinition `gorm:"foreignKey:DefinitionID" json:"definition,omitempty"`
	Clinic      Clinic             `gorm:"foreignKey:ClinicID" json:"-"`
	Patient     Patient            `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Appointment *Appointment       `gorm:"foreignKey:AppointmentID" json:"appointment,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (e *FollowUpExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = ExecutionPending
	}
	// Due scans compare timestamps; keep them all in one zone.
	e.ScheduledFor = e.ScheduledFor.UTC()
	return nil
}

func (e *FollowUpExecution) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("ScheduledFor") {
		return ErrScheduledForImmutable
	}
	return nil
}
