package models

import (
	"time"

	"github.com/lcjefferson/cliniflow2026-sub001/utils"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	RoleOwner        = "owner"
	RoleStaff        = "staff"
	RoleProfessional = "professional"
)

type User struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email    string    `gorm:"uniqueIndex;not null" json:"email"`
	Password string    `gorm:"not null" json:"-"`
	Name     string    `gorm:"not null" json:"name"`
	Phone    string    `json:"phone"`

	Role     string    `gorm:"type:varchar(20);not null" json:"role"`
	ClinicID uuid.UUID `gorm:"type:uuid;index;not null" json:"clinicId"`

	Clinic Clinic `gorm:"foreignKey:ClinicID" json:"-"`

	LastLogin *time.Time `json:"lastLogin"`
	IsActive  bool       `gorm:"default:true" json:"isActive"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Initialize UUID and hash the plain password before creating
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	hashed, err := utils.HashPassword(u.Password)
	if err != nil {
		return err
	}
	u.Password = hashed
	return nil
}
