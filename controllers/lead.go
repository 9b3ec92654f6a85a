package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type CreateLeadInput struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone"`
	Email    string `json:"email" binding:"omitempty,email"`
	Source   string `json:"source" binding:"omitempty,oneof=whatsapp instagram facebook site referral walk_in other"`
	Interest string `json:"interest"`
	Notes    string `json:"notes"`
}

type UpdateLeadInput struct {
	Name     *string `json:"name"`
	Phone    *string `json:"phone"`
	Email    *string `json:"email" binding:"omitempty,email"`
	Status   *string `json:"status" binding:"omitempty,oneof=new contacted qualified lost"`
	Interest *string `json:"interest"`
	Notes    *string `json:"notes"`
}

type CreateConversationInput struct {
	LeadID    *uuid.UUID `json:"leadId"`
	PatientID *uuid.UUID `json:"patientId"`
	Channel   string     `json:"channel" binding:"required,oneof=whatsapp sms instagram email phone"`
}

type AddMessageInput struct {
	Direction string `json:"direction" binding:"required,oneof=inbound outbound"`
	Body      string `json:"body" binding:"required"`
}

var (
	errLeadConverted = errors.New("lead already converted")
	errLeadNoPhone   = errors.New("lead has no phone")
)

// LeadController covers the CRM side: leads and their conversations.
type LeadController struct {
	db *gorm.DB
}

func NewLeadController(db *gorm.DB) *LeadController {
	return &LeadController{db: db}
}

func (lc *LeadController) CreateLead(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input CreateLeadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if input.Phone != "" && !utils.ValidatePhone(input.Phone) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
		return
	}

	lead := models.Lead{
		ClinicID: clinicID,
		Name:     strings.TrimSpace(input.Name),
		Phone:    utils.NormalizePhone(input.Phone),
		Email:    input.Email,
		Source:   input.Source,
		Status:   models.LeadNew,
		Interest: input.Interest,
		Notes:    input.Notes,
	}
	if err := lc.db.WithContext(c.Request.Context()).Create(&lead).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create lead")
		return
	}

	c.JSON(http.StatusCreated, lead)
}

func (lc *LeadController) GetLeads(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	query := lc.db.WithContext(c.Request.Context()).Where("clinic_id = ?", clinicID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var leads []models.Lead
	if err := query.Order("created_at DESC").Find(&leads).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve leads")
		return
	}

	c.JSON(http.StatusOK, leads)
}

func (lc *LeadController) GetLead(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	leadID, ok := utils.ParamUUID(c, "id", "lead")
	if !ok {
		return
	}

	var lead models.Lead
	if err := lc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, leadID).
		First(&lead).Error; err != nil {
		respondLookupError(c, err, "Lead not found")
		return
	}

	c.JSON(http.StatusOK, lead)
}

func (lc *LeadController) UpdateLead(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	leadID, ok := utils.ParamUUID(c, "id", "lead")
	if !ok {
		return
	}

	var input UpdateLeadInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var lead models.Lead
	if err := lc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, leadID).
		First(&lead).Error; err != nil {
		respondLookupError(c, err, "Lead not found")
		return
	}
	if lead.Status == models.LeadConverted {
		utils.RespondWithError(c, http.StatusConflict, "Lead already converted")
		return
	}

	if input.Name != nil {
		lead.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		if *input.Phone != "" && !utils.ValidatePhone(*input.Phone) {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
			return
		}
		lead.Phone = utils.NormalizePhone(*input.Phone)
	}
	if input.Email != nil {
		lead.Email = *input.Email
	}
	if input.Status != nil {
		lead.Status = *input.Status
	}
	if input.Interest != nil {
		lead.Interest = *input.Interest
	}
	if input.Notes != nil {
		lead.Notes = *input.Notes
	}

	if err := lc.db.WithContext(c.Request.Context()).Save(&lead).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update lead")
		return
	}

	c.JSON(http.StatusOK, lead)
}

// ConvertLead turns a lead into a patient, reusing an existing patient with
// the same phone.
func (lc *LeadController) ConvertLead(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	userID, ok := utils.UserID(c)
	if !ok {
		return
	}
	leadID, ok := utils.ParamUUID(c, "id", "lead")
	if !ok {
		return
	}

	var patient models.Patient
	err := lc.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var lead models.Lead
		if err := tx.Where("clinic_id = ? AND id = ?", clinicID, leadID).First(&lead).Error; err != nil {
			return err
		}
		if lead.Status == models.LeadConverted {
			return errLeadConverted
		}
		if lead.Phone == "" {
			return errLeadNoPhone
		}

		existing, err := patientByPhone(tx, clinicID, lead.Phone)
		switch {
		case err != nil:
		case existing != nil && existing.DeletedAt.Valid:
			patient = *existing
			err = restorePatient(tx, &patient, map[string]interface{}{})
		case existing != nil:
			patient = *existing
		default:
			patient = models.Patient{
				ClinicID:        clinicID,
				CreatedByUserID: userID,
				Name:            lead.Name,
				Phone:           lead.Phone,
				Email:           lead.Email,
				Notes:           lead.Notes,
				IsActive:        true,
			}
			err = tx.Create(&patient).Error
		}
		if err != nil {
			return err
		}

		return tx.Model(&lead).Updates(map[string]interface{}{
			"status":               models.LeadConverted,
			"converted_patient_id": patient.ID,
		}).Error
	})
	switch {
	case err == nil:
	case errors.Is(err, errLeadConverted):
		utils.RespondWithError(c, http.StatusConflict, "Lead already converted")
		return
	case errors.Is(err, errLeadNoPhone):
		utils.RespondWithError(c, http.StatusBadRequest, "Lead has no phone number")
		return
	default:
		respondLookupError(c, err, "Lead not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Lead converted", "patient": patient})
}

func (lc *LeadController) DeleteLead(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	leadID, ok := utils.ParamUUID(c, "id", "lead")
	if !ok {
		return
	}

	result := lc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, leadID).
		Delete(&models.Lead{})
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete lead")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Lead not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Lead deleted successfully"})
}

func (lc *LeadController) CreateConversation(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input CreateConversationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if (input.LeadID == nil) == (input.PatientID == nil) {
		utils.RespondWithError(c, http.StatusBadRequest, "Exactly one of leadId or patientId is required")
		return
	}

	db := lc.db.WithContext(c.Request.Context())
	var (
		exists bool
		err    error
	)
	if input.LeadID != nil {
		exists, err = belongsToClinic(db, &models.Lead{}, clinicID, *input.LeadID)
	} else {
		exists, err = belongsToClinic(db, &models.Patient{}, clinicID, *input.PatientID)
	}
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		utils.RespondWithError(c, http.StatusBadRequest, "Contact not found")
		return
	}

	conversation := models.Conversation{
		ClinicID:  clinicID,
		LeadID:    input.LeadID,
		PatientID: input.PatientID,
		Channel:   input.Channel,
		Status:    "open",
	}
	if err := db.Create(&conversation).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

func (lc *LeadController) GetConversations(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	query := lc.db.WithContext(c.Request.Context()).Where("clinic_id = ?", clinicID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var conversations []models.Conversation
	if err := query.Order("last_message_at DESC").Order("created_at DESC").Find(&conversations).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve conversations")
		return
	}

	c.JSON(http.StatusOK, conversations)
}

func (lc *LeadController) GetConversation(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	conversationID, ok := utils.ParamUUID(c, "id", "conversation")
	if !ok {
		return
	}

	var conversation models.Conversation
	if err := lc.db.WithContext(c.Request.Context()).
		Preload("Messages", func(db *gorm.DB) *gorm.DB { return db.Order("sent_at ASC") }).
		Where("clinic_id = ? AND id = ?", clinicID, conversationID).
		First(&conversation).Error; err != nil {
		respondLookupError(c, err, "Conversation not found")
		return
	}

	c.JSON(http.StatusOK, conversation)
}

func (lc *LeadController) AddMessage(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	conversationID, ok := utils.ParamUUID(c, "id", "conversation")
	if !ok {
		return
	}

	var input AddMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	now := time.Now().UTC()
	message := models.ConversationMessage{
		ConversationID: conversationID,
		Direction:      input.Direction,
		Body:           input.Body,
		SentAt:         now,
	}
	err := lc.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Conversation{}).
			Where("clinic_id = ? AND id = ?", clinicID, conversationID).
			Update("last_message_at", &now)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Create(&message).Error
	})
	if err != nil {
		respondLookupError(c, err, "Conversation not found")
		return
	}

	c.JSON(http.StatusCreated, message)
}
