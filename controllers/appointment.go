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

type CreateAppointmentInput struct {
	PatientID      uuid.UUID  `json:"patientId" binding:"required"`
	ProfessionalID uuid.UUID  `json:"professionalId" binding:"required"`
	ServiceID      *uuid.UUID `json:"serviceId"`
	StartsAt       time.Time  `json:"startsAt" binding:"required"`
	EndsAt         *time.Time `json:"endsAt"`
	Notes          string     `json:"notes"`
}

type UpdateAppointmentInput struct {
	ProfessionalID *uuid.UUID `json:"professionalId"`
	ServiceID      *uuid.UUID `json:"serviceId"`
	StartsAt       *time.Time `json:"startsAt"`
	EndsAt         *time.Time `json:"endsAt"`
	Status         *string    `json:"status" binding:"omitempty,oneof=scheduled confirmed no_show"`
	Notes          *string    `json:"notes"`
}

const defaultAppointmentLength = 30 * time.Minute

// AppointmentController changes an appointment and its follow-ups in the same
// transaction, so a cancelled visit never keeps a pending reminder.
type AppointmentController struct {
	db        *gorm.DB
	generator *services.FollowUpGenerator
	log       zerolog.Logger
}

func NewAppointmentController(db *gorm.DB, generator *services.FollowUpGenerator, log zerolog.Logger) *AppointmentController {
	return &AppointmentController{db: db, generator: generator, log: log}
}

// followUpTx is the follow-up persistence bound to one transaction.
type followUpTx struct {
	tx         *gorm.DB
	executions store.ExecutionStore
	generator  *services.FollowUpGenerator
}

func (ac *AppointmentController) transaction(c *gin.Context, fn func(ft followUpTx) error) error {
	return ac.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		executions := store.NewGormExecutionStore(tx)
		return fn(followUpTx{
			tx:         tx,
			executions: executions,
			generator:  ac.generator.Using(store.NewGormDefinitionStore(tx), executions),
		})
	})
}

func (ac *AppointmentController) CreateAppointment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input CreateAppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	db := ac.db.WithContext(c.Request.Context())
	if !ac.checkRefs(c, db, clinicID, &input.PatientID, &input.ProfessionalID) {
		return
	}

	endsAt, ok := ac.resolveEnd(c, db, clinicID, input.ServiceID, input.StartsAt, input.EndsAt)
	if !ok {
		return
	}
	if ac.overlaps(c, db, clinicID, input.ProfessionalID, uuid.Nil, input.StartsAt, endsAt) {
		return
	}

	appointment := models.Appointment{
		ClinicID:       clinicID,
		PatientID:      input.PatientID,
		ProfessionalID: input.ProfessionalID,
		ServiceID:      input.ServiceID,
		StartsAt:       input.StartsAt,
		EndsAt:         endsAt,
		Status:         models.AppointmentScheduled,
		Notes:          input.Notes,
	}
	if err := db.Omit("Patient", "Professional").Create(&appointment).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create appointment")
		return
	}

	scheduled := ac.generate(c, &appointment, models.TriggerAppointmentScheduled)

	c.JSON(http.StatusCreated, gin.H{
		"appointment":        appointment,
		"followUpsScheduled": scheduled,
	})
}

// GetAppointments lists appointments; filters: from, to (RFC3339), professionalId, patientId, status
func (ac *AppointmentController) GetAppointments(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	query := ac.db.WithContext(c.Request.Context()).
		Preload("Patient").
		Preload("Professional").
		Where("clinic_id = ?", clinicID)

	if v := c.Query("from"); v != "" {
		from, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid from date")
			return
		}
		query = query.Where("starts_at >= ?", from.UTC())
	}
	if v := c.Query("to"); v != "" {
		to, err := time.Parse(time.RFC3339, v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid to date")
			return
		}
		query = query.Where("starts_at < ?", to.UTC())
	}
	if v := c.Query("professionalId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid professional ID format")
			return
		}
		query = query.Where("professional_id = ?", id)
	}
	if v := c.Query("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid patient ID format")
			return
		}
		query = query.Where("patient_id = ?", id)
	}
	if v := c.Query("status"); v != "" {
		query = query.Where("status = ?", v)
	}

	var appointments []models.Appointment
	if err := query.Order("starts_at ASC").Find(&appointments).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve appointments")
		return
	}

	c.JSON(http.StatusOK, appointments)
}

func (ac *AppointmentController) GetAppointment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	appointmentID, ok := utils.ParamUUID(c, "id", "appointment")
	if !ok {
		return
	}

	var appointment models.Appointment
	if err := ac.db.WithContext(c.Request.Context()).
		Preload("Patient").
		Preload("Professional").
		Where("clinic_id = ? AND id = ?", clinicID, appointmentID).
		First(&appointment).Error; err != nil {
		respondLookupError(c, err, "Appointment not found")
		return
	}

	c.JSON(http.StatusOK, appointment)
}

// UpdateAppointment edits an open appointment. Moving the start time replaces
// its pending follow-ups with freshly scheduled ones.
func (ac *AppointmentController) UpdateAppointment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	appointmentID, ok := utils.ParamUUID(c, "id", "appointment")
	if !ok {
		return
	}

	var input UpdateAppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	db := ac.db.WithContext(c.Request.Context())
	appointment, ok := ac.loadOpen(c, db, clinicID, appointmentID)
	if !ok {
		return
	}

	if input.ProfessionalID != nil {
		if !ac.checkRefs(c, db, clinicID, nil, input.ProfessionalID) {
			return
		}
		appointment.ProfessionalID = *input.ProfessionalID
	}
	if input.ServiceID != nil {
		appointment.ServiceID = input.ServiceID
	}

	moved := false
	if input.StartsAt != nil && !input.StartsAt.Equal(appointment.StartsAt) {
		length := appointment.EndsAt.Sub(appointment.StartsAt)
		appointment.StartsAt = input.StartsAt.UTC()
		appointment.EndsAt = appointment.StartsAt.Add(length)
		moved = true
	}
	if input.EndsAt != nil {
		appointment.EndsAt = input.EndsAt.UTC()
	}
	if !appointment.EndsAt.After(appointment.StartsAt) {
		utils.RespondWithError(c, http.StatusBadRequest, "endsAt must be after startsAt")
		return
	}
	if input.ProfessionalID != nil || input.StartsAt != nil || input.EndsAt != nil {
		if ac.overlaps(c, db, clinicID, appointment.ProfessionalID, appointment.ID, appointment.StartsAt, appointment.EndsAt) {
			return
		}
	}
	if input.Status != nil {
		appointment.Status = *input.Status
	}
	if input.Notes != nil {
		appointment.Notes = *input.Notes
	}

	scheduled := 0
	err := ac.transaction(c, func(ft followUpTx) error {
		if err := ft.tx.Omit("Patient", "Professional").Save(appointment).Error; err != nil {
			return err
		}
		if !moved {
			return nil
		}
		if _, err := ft.executions.CancelPendingForAppointment(c.Request.Context(), clinicID, appointment.ID, "appointment rescheduled", time.Now()); err != nil {
			return err
		}
		n, err := ft.generator.ForAppointment(c.Request.Context(), appointment, models.TriggerAppointmentScheduled)
		scheduled = n
		return err
	})
	if err != nil {
		ac.log.Error().Err(err).Str("appointment_id", appointment.ID.String()).Msg("update appointment")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update appointment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"appointment":        appointment,
		"followUpsScheduled": scheduled,
	})
}

func (ac *AppointmentController) CancelAppointment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	appointmentID, ok := utils.ParamUUID(c, "id", "appointment")
	if !ok {
		return
	}

	db := ac.db.WithContext(c.Request.Context())
	appointment, ok := ac.loadOpen(c, db, clinicID, appointmentID)
	if !ok {
		return
	}

	cancelled := 0
	err := ac.transaction(c, func(ft followUpTx) error {
		if err := ft.tx.Model(appointment).Update("status", models.AppointmentCancelled).Error; err != nil {
			return err
		}
		n, err := ft.executions.CancelPendingForAppointment(c.Request.Context(), clinicID, appointment.ID, "appointment cancelled", time.Now())
		cancelled = n
		return err
	})
	if err != nil {
		ac.log.Error().Err(err).Str("appointment_id", appointment.ID.String()).Msg("cancel appointment")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to cancel appointment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Appointment cancelled",
		"followUpsCancelled": cancelled,
	})
}

// CompleteAppointment closes the visit and schedules post-visit follow-ups.
func (ac *AppointmentController) CompleteAppointment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	appointmentID, ok := utils.ParamUUID(c, "id", "appointment")
	if !ok {
		return
	}

	db := ac.db.WithContext(c.Request.Context())
	appointment, ok := ac.loadOpen(c, db, clinicID, appointmentID)
	if !ok {
		return
	}

	scheduled := 0
	err := ac.transaction(c, func(ft followUpTx) error {
		if err := ft.tx.Model(appointment).Update("status", models.AppointmentCompleted).Error; err != nil {
			return err
		}
		err := ft.tx.Model(&models.Patient{}).
			Where("clinic_id = ? AND id = ?", clinicID, appointment.PatientID).
			Update("last_visit", appointment.StartsAt).Error
		if err != nil {
			return err
		}
		n, err := ft.generator.ForAppointment(c.Request.Context(), appointment, models.TriggerAppointmentCompleted)
		scheduled = n
		return err
	})
	if err != nil {
		ac.log.Error().Err(err).Str("appointment_id", appointment.ID.String()).Msg("complete appointment")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to complete appointment")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":            "Appointment completed",
		"followUpsScheduled": scheduled,
	})
}

func (ac *AppointmentController) DeleteAppointment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	appointmentID, ok := utils.ParamUUID(c, "id", "appointment")
	if !ok {
		return
	}

	err := ac.transaction(c, func(ft followUpTx) error {
		result := ft.tx.Where("clinic_id = ? AND id = ?", clinicID, appointmentID).Delete(&models.Appointment{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		_, err := ft.executions.CancelPendingForAppointment(c.Request.Context(), clinicID, appointmentID, "appointment deleted", time.Now())
		return err
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		utils.RespondWithError(c, http.StatusNotFound, "Appointment not found")
		return
	}
	if err != nil {
		ac.log.Error().Err(err).Str("appointment_id", appointmentID.String()).Msg("delete appointment")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete appointment")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Appointment deleted successfully"})
}

// loadOpen fetches an appointment that is neither cancelled nor completed.
func (ac *AppointmentController) loadOpen(c *gin.Context, db *gorm.DB, clinicID, id uuid.UUID) (*models.Appointment, bool) {
	var appointment models.Appointment
	if err := db.Where("clinic_id = ? AND id = ?", clinicID, id).First(&appointment).Error; err != nil {
		respondLookupError(c, err, "Appointment not found")
		return nil, false
	}
	if appointment.Status == models.AppointmentCancelled || appointment.Status == models.AppointmentCompleted {
		utils.RespondWithError(c, http.StatusConflict, "Appointment is already "+appointment.Status)
		return nil, false
	}
	return &appointment, true
}

func (ac *AppointmentController) checkRefs(c *gin.Context, db *gorm.DB, clinicID uuid.UUID, patientID, professionalID *uuid.UUID) bool {
	if patientID != nil {
		exists, err := belongsToClinic(db, &models.Patient{}, clinicID, *patientID)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
			return false
		}
		if !exists {
			utils.RespondWithError(c, http.StatusBadRequest, "Patient not found")
			return false
		}
	}
	if professionalID != nil {
		exists, err := belongsToClinic(db, &models.Professional{}, clinicID, *professionalID)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
			return false
		}
		if !exists {
			utils.RespondWithError(c, http.StatusBadRequest, "Professional not found")
			return false
		}
	}
	return true
}

// resolveEnd picks the end time: explicit, else start + service duration,
// else a default slot.
func (ac *AppointmentController) resolveEnd(c *gin.Context, db *gorm.DB, clinicID uuid.UUID, serviceID *uuid.UUID, start time.Time, end *time.Time) (time.Time, bool) {
	if end != nil {
		if !end.After(start) {
			utils.RespondWithError(c, http.StatusBadRequest, "endsAt must be after startsAt")
			return time.Time{}, false
		}
		return *end, true
	}
	length := defaultAppointmentLength
	if serviceID != nil {
		var service models.Service
		if err := db.Where("clinic_id = ? AND id = ?", clinicID, *serviceID).First(&service).Error; err != nil {
			respondLookupError(c, err, "Service not found")
			return time.Time{}, false
		}
		if service.Duration > 0 {
			length = time.Duration(service.Duration) * time.Minute
		}
	}
	return start.Add(length), true
}

func (ac *AppointmentController) overlaps(c *gin.Context, db *gorm.DB, clinicID, professionalID, exclude uuid.UUID, start, end time.Time) bool {
	var count int64
	err := db.Model(&models.Appointment{}).
		Where("clinic_id = ? AND professional_id = ? AND id <> ?", clinicID, professionalID, exclude).
		Where("status NOT IN ?", []string{models.AppointmentCancelled, models.AppointmentNoShow}).
		Where("starts_at < ? AND ends_at > ?", end.UTC(), start.UTC()).
		Count(&count).Error
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return true
	}
	if count > 0 {
		utils.RespondWithError(c, http.StatusConflict, "Professional already has an appointment in this slot")
		return true
	}
	return false
}

// generate schedules follow-ups; failures are logged, the appointment stands.
func (ac *AppointmentController) generate(c *gin.Context, appointment *models.Appointment, trigger string) int {
	n, err := ac.generator.ForAppointment(c.Request.Context(), appointment, trigger)
	if err != nil {
		ac.log.Error().Err(err).Str("appointment_id", appointment.ID.String()).Msg("schedule follow-ups")
	}
	return n
}
