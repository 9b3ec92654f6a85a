package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentRefunded = "refunded"
)

type Payment struct {
	ID              uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"clinicId"`
	CreatedByUserID uuid.UUID  `gorm:"type:uuid;index;not null" json:"createdByUserId"`
	PatientID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"patientId"`
	AppointmentID   *uuid.UUID `gorm:"type:uuid;index" json:"appointmentId"`

	Amount       float64    `gorm:"type:decimal(10,2);not null" json:"amount"`
	Method       string     `gorm:"type:varchar(20)" json:"method"`
	Status       string     `gorm:"type:varchar(20);default:'pending'" json:"status"`
	DueDate      *time.Time `json:"dueDate"`
	PaidAt       *time.Time `json:"paidAt"`
	Installments int        `gorm:"default:1" json:"installments"`
	Notes        string     `gorm:"type:text" json:"notes"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
