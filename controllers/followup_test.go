package controllers

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/internal/testdb"
	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/services"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type executionList struct {
	Data       []models.FollowUpExecution `json:"data"`
	Pagination utils.Pagination           `json:"pagination"`
}

func followUpRouter(db *gorm.DB, clinicID uuid.UUID) *gin.Engine {
	defs := store.NewGormDefinitionStore(db)
	execs := store.NewGormExecutionStore(db)
	fc := NewFollowUpController(db, defs, execs, services.NewFollowUpGenerator(defs, execs, zerolog.Nop()), zerolog.Nop())

	r := sessionRouter(clinicID, uuid.New())
	r.POST("/followups/definitions", fc.CreateDefinition)
	r.GET("/followups/definitions", fc.GetDefinitions)
	r.PUT("/followups/definitions/:id", fc.UpdateDefinition)
	r.DELETE("/followups/definitions/:id", fc.DeleteDefinition)
	r.GET("/followups/executions", fc.GetExecutions)
	r.POST("/followups/executions", fc.ScheduleExecution)
	r.GET("/followups/executions/:id", fc.GetExecution)
	r.POST("/followups/executions/:id/cancel", fc.CancelExecution)
	return r
}

func TestGetExecutionsIsPagedAndTenantScoped(t *testing.T) {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	other := testdb.Clinic(t, db, "Outra")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	otherPatient := testdb.Patient(t, db, other.ID, "Bia", "+5511999990002")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	otherDef := testdb.Definition(t, db, other.ID, models.TriggerManual, 0)

	now := time.Now()
	for i := 0; i < 3; i++ {
		testdb.Execution(t, db, def, patient, now.Add(time.Duration(i)*time.Hour))
	}
	foreign := testdb.Execution(t, db, otherDef, otherPatient, now)

	r := followUpRouter(db, clinic.ID)

	w := doJSON(t, r, http.MethodGet, "/followups/executions?page=1&limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var list executionList
	decode(t, w, &list)
	assert.Len(t, list.Data, 2)
	assert.Equal(t, int64(3), list.Pagination.Total)
	assert.Equal(t, 2, list.Pagination.Pages)
	for _, e := range list.Data {
		assert.Equal(t, clinic.ID, e.ClinicID)
		assert.Equal(t, "Ana", e.Patient.Name)
	}

	w = doJSON(t, r, http.MethodGet, "/followups/executions?status=SENT", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list = executionList{}
	decode(t, w, &list)
	assert.NotNil(t, list.Data)
	assert.Empty(t, list.Data)

	w = doJSON(t, r, http.MethodGet, "/followups/executions?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodGet, "/followups/executions/"+foreign.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleExecution(t *testing.T) {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	other := testdb.Clinic(t, db, "Outra")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	foreignPatient := testdb.Patient(t, db, other.ID, "Bia", "+5511999990002")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	r := followUpRouter(db, clinic.ID)

	at := time.Now().Add(2 * time.Hour).UTC().Truncate(time.Second)
	w := doJSON(t, r, http.MethodPost, "/followups/executions", gin.H{
		"definitionId": def.ID,
		"patientId":    patient.ID,
		"scheduledFor": at,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.FollowUpExecution
	decode(t, w, &created)
	assert.Equal(t, models.ExecutionPending, created.Status)
	assert.True(t, created.ScheduledFor.Equal(at))

	w = doJSON(t, r, http.MethodPost, "/followups/executions", gin.H{
		"definitionId": def.ID,
		"patientId":    foreignPatient.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/followups/executions", gin.H{
		"definitionId": uuid.New(),
		"patientId":    patient.ID,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, db.Model(&def).Update("is_active", false).Error)
	w = doJSON(t, r, http.MethodPost, "/followups/executions", gin.H{
		"definitionId": def.ID,
		"patientId":    patient.ID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCancelExecution(t *testing.T) {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	exec := testdb.Execution(t, db, def, patient, time.Now().Add(time.Hour))
	r := followUpRouter(db, clinic.ID)

	path := "/followups/executions/" + exec.ID.String() + "/cancel"
	w := doJSON(t, r, http.MethodPost, path, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored := testdb.Reload(t, db, exec.ID)
	assert.Equal(t, models.ExecutionCancelled, stored.Status)
	assert.Equal(t, "cancelled by staff", stored.ErrorDetail)

	w = doJSON(t, r, http.MethodPost, path, gin.H{"reason": "again"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodPost, "/followups/executions/"+uuid.NewString()+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/followups/executions/not-a-uuid/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDefinitionLifecycle(t *testing.T) {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	r := followUpRouter(db, clinic.ID)

	w := doJSON(t, r, http.MethodPost, "/followups/definitions", gin.H{
		"name":            "Retorno",
		"triggerEvent":    "whenever",
		"messageTemplate": "Oi",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, r, http.MethodPost, "/followups/definitions", gin.H{
		"name":            "Retorno",
		"triggerEvent":    models.TriggerAppointmentCompleted,
		"offsetMinutes":   7 * 24 * 60,
		"messageTemplate": "Oi {{patient_first_name}}",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var def models.FollowUpDefinition
	decode(t, w, &def)
	assert.True(t, def.IsActive)
	assert.Equal(t, models.ChannelAuto, def.Channel)

	w = doJSON(t, r, http.MethodPut, "/followups/definitions/"+def.ID.String(), gin.H{"isActive": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	stored, err := store.NewGormDefinitionStore(db).Get(context.Background(), clinic.ID, def.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	w = doJSON(t, r, http.MethodDelete, "/followups/definitions/"+def.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/followups/definitions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var defs []models.FollowUpDefinition
	decode(t, w, &defs)
	assert.Empty(t, defs)
}
