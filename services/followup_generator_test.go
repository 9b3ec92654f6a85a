package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcjefferson/cliniflow2026-sub001/internal/testdb"
	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
)

func newGenerator(t *testing.T, now time.Time) (*FollowUpGenerator, *fixture) {
	t.Helper()
	f := newFixture(t)
	f.now = now
	g := NewFollowUpGenerator(store.NewGormDefinitionStore(f.db), f.store, zerolog.Nop())
	g.now = func() time.Time { return now }
	return g, f
}

func listExecutions(t *testing.T, f *fixture) []models.FollowUpExecution {
	t.Helper()
	var out []models.FollowUpExecution
	require.NoError(t, f.db.Order("scheduled_for ASC").Find(&out).Error)
	return out
}

func TestForAppointmentSchedulesFromOffsets(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g, f := newGenerator(t, now)
	ctx := context.Background()

	testdb.Definition(t, f.db, f.clinic.ID, models.TriggerAppointmentScheduled, -24*60)
	testdb.Definition(t, f.db, f.clinic.ID, models.TriggerAppointmentScheduled, -2*60)
	testdb.Definition(t, f.db, f.clinic.ID, models.TriggerAppointmentCompleted, 60)

	appt := &models.Appointment{
		ID:        uuid.New(),
		ClinicID:  f.clinic.ID,
		PatientID: f.patient.ID,
		StartsAt:  now.Add(48 * time.Hour),
	}
	n, err := g.ForAppointment(ctx, appt, models.TriggerAppointmentScheduled)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	execs := listExecutions(t, f)
	require.Len(t, execs, 2)
	assert.True(t, execs[0].ScheduledFor.Equal(appt.StartsAt.Add(-24*time.Hour)))
	assert.True(t, execs[1].ScheduledFor.Equal(appt.StartsAt.Add(-2*time.Hour)))
	for _, e := range execs {
		assert.Equal(t, models.ExecutionPending, e.Status)
		require.NotNil(t, e.AppointmentID)
		assert.Equal(t, appt.ID, *e.AppointmentID)
	}
}

func TestForAppointmentSkipsPastReminders(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g, f := newGenerator(t, now)

	testdb.Definition(t, f.db, f.clinic.ID, models.TriggerAppointmentScheduled, -24*60)
	testdb.Definition(t, f.db, f.clinic.ID, models.TriggerAppointmentScheduled, -2*60)

	appt := &models.Appointment{ID: uuid.New(), ClinicID: f.clinic.ID, PatientID: f.patient.ID, StartsAt: now.Add(3 * time.Hour)}
	n, err := g.ForAppointment(context.Background(), appt, models.TriggerAppointmentScheduled)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestForAppointmentClampsPastCompletionFollowUps(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g, f := newGenerator(t, now)

	testdb.Definition(t, f.db, f.clinic.ID, models.TriggerAppointmentCompleted, 30)

	appt := &models.Appointment{ID: uuid.New(), ClinicID: f.clinic.ID, PatientID: f.patient.ID, StartsAt: now.Add(-2 * time.Hour)}
	n, err := g.ForAppointment(context.Background(), appt, models.TriggerAppointmentCompleted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	execs := listExecutions(t, f)
	require.Len(t, execs, 1)
	assert.True(t, execs[0].ScheduledFor.Equal(now))
}

func TestSchedule(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	g, f := newGenerator(t, now)
	ctx := context.Background()

	exec, err := g.Schedule(ctx, f.clinic.ID, f.def.ID, f.patient.ID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionPending, exec.Status)
	assert.Nil(t, exec.AppointmentID)
	assert.True(t, exec.ScheduledFor.Equal(now.Add(time.Hour)))

	exec, err = g.Schedule(ctx, f.clinic.ID, f.def.ID, f.patient.ID, time.Time{})
	require.NoError(t, err)
	assert.True(t, exec.ScheduledFor.Equal(now))

	_, err = g.Schedule(ctx, uuid.New(), f.def.ID, f.patient.ID, now)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, f.db.Model(&f.def).Update("is_active", false).Error)
	_, err = g.Schedule(ctx, f.clinic.ID, f.def.ID, f.patient.ID, now)
	assert.ErrorIs(t, err, ErrDefinitionInactive)
}
