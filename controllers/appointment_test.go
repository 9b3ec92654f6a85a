package controllers

import (
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
)

type appointmentFixture struct {
	db      *gorm.DB
	r       *gin.Engine
	patient models.Patient
	pro     models.Professional
}

func newAppointmentFixture(t *testing.T) *appointmentFixture {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentScheduled, -24*60)
	testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentScheduled, -2*60)
	testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentCompleted, 3*24*60)

	defs := store.NewGormDefinitionStore(db)
	execs := store.NewGormExecutionStore(db)
	ac := NewAppointmentController(db, services.NewFollowUpGenerator(defs, execs, zerolog.Nop()), zerolog.Nop())

	r := sessionRouter(clinic.ID, uuid.New())
	r.POST("/appointments", ac.CreateAppointment)
	r.PUT("/appointments/:id", ac.UpdateAppointment)
	r.DELETE("/appointments/:id", ac.DeleteAppointment)
	r.POST("/appointments/:id/cancel", ac.CancelAppointment)
	r.POST("/appointments/:id/complete", ac.CompleteAppointment)

	return &appointmentFixture{
		db:      db,
		r:       r,
		patient: testdb.Patient(t, db, clinic.ID, "Ana Souza", "+5511999990001"),
		pro:     testdb.Professional(t, db, clinic.ID, "Dr. Paulo"),
	}
}

func (f *appointmentFixture) book(t *testing.T, startsAt time.Time) uuid.UUID {
	t.Helper()
	w := doJSON(t, f.r, http.MethodPost, "/appointments", gin.H{
		"patientId":      f.patient.ID,
		"professionalId": f.pro.ID,
		"startsAt":       startsAt,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Appointment        models.Appointment `json:"appointment"`
		FollowUpsScheduled int                `json:"followUpsScheduled"`
	}
	decode(t, w, &created)
	assert.Equal(t, 2, created.FollowUpsScheduled)
	return created.Appointment.ID
}

func (f *appointmentFixture) executions(t *testing.T, appointmentID uuid.UUID, status models.ExecutionStatus) []models.FollowUpExecution {
	t.Helper()
	var out []models.FollowUpExecution
	require.NoError(t, f.db.
		Where("appointment_id = ? AND status = ?", appointmentID, status).
		Order("scheduled_for ASC").
		Find(&out).Error)
	return out
}

func TestRescheduleReplacesPendingFollowUps(t *testing.T) {
	f := newAppointmentFixture(t)
	startsAt := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Minute)
	id := f.book(t, startsAt)

	before := f.executions(t, id, models.ExecutionPending)
	require.Len(t, before, 2)

	moved := startsAt.Add(24 * time.Hour)
	w := doJSON(t, f.r, http.MethodPut, "/appointments/"+id.String(), gin.H{"startsAt": moved})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"followUpsScheduled":2`)

	cancelled := f.executions(t, id, models.ExecutionCancelled)
	require.Len(t, cancelled, 2)
	for i, exec := range cancelled {
		assert.Equal(t, before[i].ID, exec.ID)
		assert.WithinDuration(t, before[i].ScheduledFor, exec.ScheduledFor, time.Second)
		assert.Equal(t, "appointment rescheduled", exec.ErrorDetail)
	}

	pending := f.executions(t, id, models.ExecutionPending)
	require.Len(t, pending, 2)
	assert.WithinDuration(t, moved.Add(-24*time.Hour), pending[0].ScheduledFor, time.Second)
	assert.WithinDuration(t, moved.Add(-2*time.Hour), pending[1].ScheduledFor, time.Second)
}

func TestUpdateWithoutMoveKeepsFollowUps(t *testing.T) {
	f := newAppointmentFixture(t)
	id := f.book(t, time.Now().Add(72*time.Hour).UTC().Truncate(time.Minute))

	w := doJSON(t, f.r, http.MethodPut, "/appointments/"+id.String(), gin.H{"notes": "bring x-rays"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Len(t, f.executions(t, id, models.ExecutionPending), 2)
	assert.Empty(t, f.executions(t, id, models.ExecutionCancelled))
}

func TestCancelAppointmentCancelsPendingFollowUps(t *testing.T) {
	f := newAppointmentFixture(t)
	id := f.book(t, time.Now().Add(72*time.Hour).UTC().Truncate(time.Minute))

	w := doJSON(t, f.r, http.MethodPost, "/appointments/"+id.String()+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"followUpsCancelled":2`)

	assert.Empty(t, f.executions(t, id, models.ExecutionPending))
	cancelled := f.executions(t, id, models.ExecutionCancelled)
	require.Len(t, cancelled, 2)
	assert.Equal(t, "appointment cancelled", cancelled[0].ErrorDetail)

	var appt models.Appointment
	require.NoError(t, f.db.First(&appt, "id = ?", id).Error)
	assert.Equal(t, models.AppointmentCancelled, appt.Status)

	w = doJSON(t, f.r, http.MethodPost, "/appointments/"+id.String()+"/cancel", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCompleteAppointmentSchedulesPostVisitFollowUps(t *testing.T) {
	f := newAppointmentFixture(t)
	startsAt := time.Now().Add(72 * time.Hour).UTC().Truncate(time.Minute)
	id := f.book(t, startsAt)

	w := doJSON(t, f.r, http.MethodPost, "/appointments/"+id.String()+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"followUpsScheduled":1`)

	pending := f.executions(t, id, models.ExecutionPending)
	require.Len(t, pending, 3)
	assert.WithinDuration(t, startsAt.Add(72*time.Hour), pending[2].ScheduledFor, time.Second)

	var patient models.Patient
	require.NoError(t, f.db.First(&patient, "id = ?", f.patient.ID).Error)
	require.NotNil(t, patient.LastVisit)
	assert.WithinDuration(t, startsAt, *patient.LastVisit, time.Second)
}

func TestDeleteAppointmentCancelsPendingFollowUps(t *testing.T) {
	f := newAppointmentFixture(t)
	id := f.book(t, time.Now().Add(72*time.Hour).UTC().Truncate(time.Minute))

	w := doJSON(t, f.r, http.MethodDelete, "/appointments/"+id.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Empty(t, f.executions(t, id, models.ExecutionPending))
	assert.Len(t, f.executions(t, id, models.ExecutionCancelled), 2)

	w = doJSON(t, f.r, http.MethodDelete, "/appointments/"+id.String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
