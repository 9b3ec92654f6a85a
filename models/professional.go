package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Professional struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID           uuid.UUID  `gorm:"type:uuid;index;not null" json:"clinicId"`
	UserID             *uuid.UUID `gorm:"type:uuid;index" json:"userId"`
	Name               string     `gorm:"not null" json:"name"`
	Specialty          string     `json:"specialty"`
	RegistrationNumber string     `json:"registrationNumber"` // CRO
	Phone              string     `json:"phone"`
	Email              string     `json:"email"`
	Color              string     `gorm:"type:varchar(10)" json:"color"`
	IsActive           bool       `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Professional) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
