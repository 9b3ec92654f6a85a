package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type UpdateSettingsInput struct {
	ClinicName            *string      `json:"clinicName"`
	ClinicAddress         *string      `json:"clinicAddress"`
	ClinicPhone           *string      `json:"clinicPhone"`
	Timezone              *string      `json:"timezone"`
	WorkingHours          models.JSONB `json:"workingHours"`
	WhatsAppNotifications *bool        `json:"whatsAppNotifications"`
	SMSNotifications      *bool        `json:"smsNotifications"`
	FollowUpsEnabled      *bool        `json:"followUpsEnabled"`
	DefaultChannel        *string      `json:"defaultChannel" binding:"omitempty,oneof=auto sms whatsapp"`
}

type SettingsController struct {
	db *gorm.DB
}

func NewSettingsController(db *gorm.DB) *SettingsController {
	return &SettingsController{db: db}
}

// GetSettings returns clinic profile and notification settings. Clinics that
// never saved settings get the defaults.
func (sc *SettingsController) GetSettings(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	db := sc.db.WithContext(c.Request.Context())

	var clinic models.Clinic
	if err := db.First(&clinic, "id = ?", clinicID).Error; err != nil {
		respondLookupError(c, err, "Clinic not found")
		return
	}

	settings, err := loadSettings(db, clinic.ID)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}

	c.JSON(http.StatusOK, settingsView(&clinic, settings))
}

// UpdateSettings applies a partial update. The settings row is written with
// an insert-or-update keyed on the clinic.
func (sc *SettingsController) UpdateSettings(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input UpdateSettingsInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Timezone != nil {
		if _, err := time.LoadLocation(*input.Timezone); err != nil || *input.Timezone == "" {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid timezone")
			return
		}
	}

	var (
		clinic   models.Clinic
		settings *models.ClinicSettings
	)
	err := sc.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&clinic, "id = ?", clinicID).Error; err != nil {
			return err
		}

		clinicUpdates := map[string]interface{}{}
		if input.ClinicName != nil && *input.ClinicName != "" {
			clinicUpdates["name"] = *input.ClinicName
		}
		if input.ClinicAddress != nil {
			clinicUpdates["address"] = *input.ClinicAddress
		}
		if input.ClinicPhone != nil {
			clinicUpdates["phone"] = utils.NormalizePhone(*input.ClinicPhone)
		}
		if input.Timezone != nil {
			clinicUpdates["timezone"] = *input.Timezone
		}
		if len(clinicUpdates) > 0 {
			if err := tx.Model(&clinic).Updates(clinicUpdates).Error; err != nil {
				return err
			}
		}

		current, err := loadSettings(tx, clinicID)
		if err != nil {
			return err
		}
		if input.WorkingHours != nil {
			current.WorkingHours = input.WorkingHours
		}
		if input.WhatsAppNotifications != nil {
			current.WhatsAppNotifications = *input.WhatsAppNotifications
		}
		if input.SMSNotifications != nil {
			current.SMSNotifications = *input.SMSNotifications
		}
		if input.FollowUpsEnabled != nil {
			current.FollowUpsEnabled = *input.FollowUpsEnabled
		}
		if input.DefaultChannel != nil {
			current.DefaultChannel = *input.DefaultChannel
		}
		if err := upsertSettings(tx, current); err != nil {
			return err
		}

		settings, err = loadSettings(tx, clinicID)
		return err
	})
	if err != nil {
		respondLookupError(c, err, "Clinic not found")
		return
	}

	c.JSON(http.StatusOK, settingsView(&clinic, settings))
}

// loadSettings returns the stored row or an unsaved default one.
func loadSettings(db *gorm.DB, clinicID uuid.UUID) (*models.ClinicSettings, error) {
	var settings models.ClinicSettings
	err := db.Where("clinic_id = ?", clinicID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewClinicSettings(clinicID), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

// upsertSettings inserts or updates the clinic's row. The conflict target is
// clinic_id alone, so the candidate row always gets a fresh primary key.
func upsertSettings(db *gorm.DB, s *models.ClinicSettings) error {
	s.ID = uuid.Nil
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "clinic_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"working_hours", "whats_app_notifications", "sms_notifications",
			"follow_ups_enabled", "default_channel", "updated_at",
		}),
	}).Create(s).Error
}

func settingsView(clinic *models.Clinic, s *models.ClinicSettings) gin.H {
	return gin.H{
		"clinicName":            clinic.Name,
		"clinicAddress":         clinic.Address,
		"clinicPhone":           clinic.Phone,
		"timezone":              clinic.Timezone,
		"workingHours":          s.WorkingHours,
		"whatsAppNotifications": s.WhatsAppNotifications,
		"smsNotifications":      s.SMSNotifications,
		"followUpsEnabled":      s.FollowUpsEnabled,
		"defaultChannel":        s.DefaultChannel,
	}
}
