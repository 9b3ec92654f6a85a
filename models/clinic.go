package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Clinic is the tenant boundary. Every other record hangs off a ClinicID.
type Clinic struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name     string    `gorm:"not null" json:"name"`
	Address  string    `json:"address"`
	Phone    string    `json:"phone"`
	Timezone string    `gorm:"default:'America/Sao_Paulo'" json:"timezone"`
	IsActive bool      `gorm:"default:true" json:"isActive"`

	Users    []User    `gorm:"foreignKey:ClinicID" json:"-"`
	Patients []Patient `gorm:"foreignKey:ClinicID" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Clinic) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

// ClinicSettings is saved with an upsert keyed on ClinicID. The flags carry
// no column default so an explicit false survives the insert.
type ClinicSettings struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID              uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"clinicId"`
	WorkingHours          JSONB     `gorm:"type:jsonb" json:"workingHours"`
	WhatsAppNotifications bool      `gorm:"not null" json:"whatsAppNotifications"`
	SMSNotifications      bool      `gorm:"not null" json:"smsNotifications"`
	FollowUpsEnabled      bool      `gorm:"not null" json:"followUpsEnabled"`
	DefaultChannel        string    `gorm:"type:varchar(20);not null" json:"defaultChannel"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (s *ClinicSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// NewClinicSettings returns the settings a clinic starts with.
func NewClinicSettings(clinicID uuid.UUID) *ClinicSettings {
	return &ClinicSettings{
		ClinicID:              clinicID,
		WorkingHours:          DefaultWorkingHours(),
		WhatsAppNotifications: true,
		SMSNotifications:      true,
		FollowUpsEnabled:      true,
		DefaultChannel:        "auto",
	}
}

// DefaultWorkingHours is applied when a clinic registers without its own hours.
func DefaultWorkingHours() JSONB {
	return JSONB{
		"monday":    map[string]interface{}{"open": "08:00", "close": "18:00", "closed": false},
		"tuesday":   map[string]interface{}{"open": "08:00", "close": "18:00", "closed": false},
		"wednesday": map[string]interface{}{"open": "08:00", "close": "18:00", "closed": false},
		"thursday":  map[string]interface{}{"open": "08:00", "close": "18:00", "closed": false},
		"friday":    map[string]interface{}{"open": "08:00", "close": "18:00", "closed": false},
		"saturday":  map[string]interface{}{"open": "08:00", "close": "12:00", "closed": false},
		"sunday":    map[string]interface{}{"open": "", "close": "", "closed": true},
	}
}
