package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/services"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type CreateDefinitionInput struct {
	Name            string `json:"name" binding:"required"`
	TriggerEvent    string `json:"triggerEvent" binding:"required,oneof=appointment_scheduled appointment_completed manual"`
	OffsetMinutes   int    `json:"offsetMinutes" binding:"min=-43200,max=525600"`
	Channel         string `json:"channel" binding:"omitempty,oneof=auto sms whatsapp"`
	MessageTemplate string `json:"messageTemplate" binding:"required"`
}

type UpdateDefinitionInput struct {
	Name            *string `json:"name"`
	TriggerEvent    *string `json:"triggerEvent" binding:"omitempty,oneof=appointment_scheduled appointment_completed manual"`
	OffsetMinutes   *int    `json:"offsetMinutes" binding:"omitempty,min=-43200,max=525600"`
	Channel         *string `json:"channel" binding:"omitempty,oneof=auto sms whatsapp"`
	MessageTemplate *string `json:"messageTemplate"`
	IsActive        *bool   `json:"isActive"`
}

type ScheduleExecutionInput struct {
	DefinitionID uuid.UUID  `json:"definitionId" binding:"required"`
	PatientID    uuid.UUID  `json:"patientId" binding:"required"`
	ScheduledFor *time.Time `json:"scheduledFor"`
}

type CancelExecutionInput struct {
	Reason string `json:"reason"`
}

// FollowUpController manages definitions and exposes the execution log.
type FollowUpController struct {
	db          *gorm.DB
	definitions store.DefinitionStore
	executions  store.ExecutionStore
	generator   *services.FollowUpGenerator
	log         zerolog.Logger
}

func NewFollowUpController(db *gorm.DB, definitions store.DefinitionStore, executions store.ExecutionStore, generator *services.FollowUpGenerator, log zerolog.Logger) *FollowUpController {
	return &FollowUpController{db: db, definitions: definitions, executions: executions, generator: generator, log: log}
}

func (fc *FollowUpController) CreateDefinition(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input CreateDefinitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	def := models.FollowUpDefinition{
		ClinicID:        clinicID,
		Name:            input.Name,
		TriggerEvent:    input.TriggerEvent,
		OffsetMinutes:   input.OffsetMinutes,
		Channel:         input.Channel,
		MessageTemplate: input.MessageTemplate,
		IsActive:        true,
	}
	if def.Channel == "" {
		def.Channel = models.ChannelAuto
	}

	if err := fc.definitions.Create(c.Request.Context(), &def); err != nil {
		fc.log.Error().Err(err).Msg("create definition")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create follow-up")
		return
	}

	c.JSON(http.StatusCreated, def)
}

func (fc *FollowUpController) GetDefinitions(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	defs, err := fc.definitions.List(c.Request.Context(), clinicID)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve follow-ups")
		return
	}

	c.JSON(http.StatusOK, defs)
}

func (fc *FollowUpController) GetDefinition(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	defID, ok := utils.ParamUUID(c, "id", "follow-up")
	if !ok {
		return
	}

	def, err := fc.definitions.Get(c.Request.Context(), clinicID, defID)
	if err != nil {
		respondLookupError(c, err, "Follow-up not found")
		return
	}

	c.JSON(http.StatusOK, def)
}

// UpdateDefinition edits a definition. Executions already scheduled keep
// their time; template and channel changes apply at send time.
func (fc *FollowUpController) UpdateDefinition(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	defID, ok := utils.ParamUUID(c, "id", "follow-up")
	if !ok {
		return
	}

	var input UpdateDefinitionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	def, err := fc.definitions.Get(c.Request.Context(), clinicID, defID)
	if err != nil {
		respondLookupError(c, err, "Follow-up not found")
		return
	}

	if input.Name != nil {
		def.Name = *input.Name
	}
	if input.TriggerEvent != nil {
		def.TriggerEvent = *input.TriggerEvent
	}
	if input.OffsetMinutes != nil {
		def.OffsetMinutes = *input.OffsetMinutes
	}
	if input.Channel != nil {
		def.Channel = *input.Channel
	}
	if input.MessageTemplate != nil {
		if *input.MessageTemplate == "" {
			utils.RespondWithError(c, http.StatusBadRequest, "Message template cannot be empty")
			return
		}
		def.MessageTemplate = *input.MessageTemplate
	}
	if input.IsActive != nil {
		def.IsActive = *input.IsActive
	}

	if err := fc.definitions.Save(c.Request.Context(), def); err != nil {
		fc.log.Error().Err(err).Msg("update definition")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update follow-up")
		return
	}

	c.JSON(http.StatusOK, def)
}

func (fc *FollowUpController) DeleteDefinition(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	defID, ok := utils.ParamUUID(c, "id", "follow-up")
	if !ok {
		return
	}

	if err := fc.definitions.Delete(c.Request.Context(), clinicID, defID); err != nil {
		respondLookupError(c, err, "Follow-up not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Follow-up deleted successfully"})
}

// GetExecutions is the paginated execution log of the session's clinic.
// Query: status, patientId, definitionId, page (default 1), limit (default 50).
func (fc *FollowUpController) GetExecutions(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var filter store.ExecutionFilter
	if v := c.Query("status"); v != "" {
		status := models.ExecutionStatus(v)
		if !status.Valid() {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid status filter")
			return
		}
		filter.Status = status
	}
	if v := c.Query("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid patient ID format")
			return
		}
		filter.PatientID = &id
	}
	if v := c.Query("definitionId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid follow-up ID format")
			return
		}
		filter.DefinitionID = &id
	}
	page, limit := utils.PageParams(c)

	result, err := fc.executions.ListByClinic(c.Request.Context(), clinicID, filter, page, limit)
	if err != nil {
		fc.log.Error().Err(err).Msg("list executions")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve executions")
		return
	}
	if result.Executions == nil {
		result.Executions = []models.FollowUpExecution{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       result.Executions,
		"pagination": utils.NewPagination(page, limit, result.Total),
	})
}

func (fc *FollowUpController) GetExecution(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	execID, ok := utils.ParamUUID(c, "id", "execution")
	if !ok {
		return
	}

	exec, err := fc.executions.Get(c.Request.Context(), clinicID, execID)
	if err != nil {
		respondLookupError(c, err, "Execution not found")
		return
	}

	c.JSON(http.StatusOK, exec)
}

// ScheduleExecution queues a one-off follow-up for a patient.
func (fc *FollowUpController) ScheduleExecution(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input ScheduleExecutionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var at time.Time
	if input.ScheduledFor != nil {
		at = *input.ScheduledFor
	}

	ctx := c.Request.Context()
	exists, err := belongsToClinic(fc.db.WithContext(ctx), &models.Patient{}, clinicID, input.PatientID)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		utils.RespondWithError(c, http.StatusBadRequest, "Patient not found")
		return
	}

	exec, err := fc.generator.Schedule(ctx, clinicID, input.DefinitionID, input.PatientID, at)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		utils.RespondWithError(c, http.StatusBadRequest, "Follow-up not found")
		return
	case errors.Is(err, services.ErrDefinitionInactive):
		utils.RespondWithError(c, http.StatusConflict, "Follow-up is inactive")
		return
	default:
		fc.log.Error().Err(err).Msg("schedule execution")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to schedule follow-up")
		return
	}

	c.JSON(http.StatusCreated, exec)
}

func (fc *FollowUpController) CancelExecution(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	execID, ok := utils.ParamUUID(c, "id", "execution")
	if !ok {
		return
	}

	var input CancelExecutionInput
	// Body is optional.
	_ = c.ShouldBindJSON(&input)
	if input.Reason == "" {
		input.Reason = "cancelled by staff"
	}

	err := fc.executions.Cancel(c.Request.Context(), clinicID, execID, input.Reason, time.Now())
	switch {
	case err == nil:
	case errors.Is(err, store.ErrInvalidTransition):
		utils.RespondWithError(c, http.StatusConflict, "Only pending executions can be cancelled")
		return
	default:
		respondLookupError(c, err, "Execution not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Execution cancelled"})
}
