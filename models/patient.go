package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Patient struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID        uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_clinic_patient_phone,priority:1" json:"clinicId"`
	CreatedByUserID uuid.UUID `gorm:"type:uuid;index;not null" json:"createdByUserId"`

	Name      string     `gorm:"not null" json:"name"`
	Phone     string     `gorm:"not null;uniqueIndex:idx_clinic_patient_phone,priority:2" json:"phone"`
	Email     string     `json:"email"`
	BirthDate *time.Time `json:"birthDate"`
	Document  string     `json:"document"`
	Notes     string     `gorm:"type:text" json:"notes"`
	LastVisit *time.Time `json:"lastVisit"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`

	Appointments []Appointment `gorm:"foreignKey:PatientID" json:"-"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Patient) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// Anamnesis holds one medical history per patient, written with an upsert.
type Anamnesis struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_anamnesis_patient,priority:1" json:"clinicId"`
	PatientID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_anamnesis_patient,priority:2" json:"patientId"`
	Allergies   string    `gorm:"type:text" json:"allergies"`
	Medications string    `gorm:"type:text" json:"medications"`
	Conditions  string    `gorm:"type:text" json:"conditions"`
	Smoker      bool      `json:"smoker"`
	Pregnant    bool      `json:"pregnant"`
	Notes       string    `gorm:"type:text" json:"notes"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (a *Anamnesis) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
