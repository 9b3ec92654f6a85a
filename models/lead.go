package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	LeadNew       = "new"
	LeadContacted = "contacted"
	LeadQualified = "qualified"
	LeadConverted = "converted"
	LeadLost      = "lost"
)

type Lead struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID           uuid.UUID  `gorm:"type:uuid;index;not null" json:"clinicId"`
	Name               string     `gorm:"not null" json:"name"`
	Phone              string     `gorm:"index" json:"phone"`
	Email              string     `json:"email"`
	Source             string     `gorm:"type:varchar(20)" json:"source"`
	Status             string     `gorm:"type:varchar(20);default:'new'" json:"status"`
	Interest           string     `json:"interest"`
	Notes              string     `gorm:"type:text" json:"notes"`
	ConvertedPatientID *uuid.UUID `gorm:"type:uuid" json:"convertedPatientId"`

	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// Conversation is one omnichannel thread with a lead or a patient.
type Conversation struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClinicID      uuid.UUID  `gorm:"type:uuid;index;not null" json:"clinicId"`
	LeadID        *uuid.UUID `gorm:"type:uuid;index" json:"leadId"`
	PatientID     *uuid.UUID `gorm:"type:uuid;index" json:"patientId"`
	Channel       string     `gorm:"type:varchar(20);not null" json:"channel"`
	Status        string     `gorm:"type:varchar(20);default:'open'" json:"status"`
	LastMessageAt *time.Time `json:"lastMessageAt"`

	Messages []ConversationMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type ConversationMessage struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ConversationID uuid.UUID `gorm:"type:uuid;index;not null" json:"conversationId"`
	Direction      string    `gorm:"type:varchar(10);not null" json:"direction"` // inbound, outbound
	Body           string    `gorm:"type:text;not null" json:"body"`
	SentAt         time.Time `json:"sentAt"`
}

func (m *ConversationMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
