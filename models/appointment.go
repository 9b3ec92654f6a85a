package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	AppointmentScheduled = "scheduled"
	AppointmentConfirmed = "confirmed"
	AppointmentCompleted = "completed"
	AppointmentCancelled = "cancelled"
	AppointmentNoShow    = "no_show"
)

type Appointment struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"clinicId"`
	PatientID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"patientId"`
	ProfessionalID uuid.UUID  `gorm:"type:uuid;index;not null" json:"professionalId"`
	ServiceID      *uuid.UUID `gorm:"type:uuid;index" json:"serviceId"`

	StartsAt time.Time `gorm:"index;not null" json:"startsAt"`
	EndsAt   time.Time `gorm:"not null" json:"endsAt"`
	Status   string    `gorm:"type:varchar(20);default:'scheduled'" json:"status"`
	Notes    string    `gorm:"type:text" json:"notes"`

	Patient      Patient      `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Professional Professional `gorm:"foreignKey:ProfessionalID" json:"professional,omitempty"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (a *Appointment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.StartsAt = a.StartsAt.UTC()
	a.EndsAt = a.EndsAt.UTC()
	return nil
}
