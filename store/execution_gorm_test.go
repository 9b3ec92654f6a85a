package store_test

import (
	"context"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcjefferson/cliniflow2026-sub001/internal/testdb"
	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
)

func TestListDueReturnsOnlyPendingDueRows(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana Souza", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)

	late := testdb.Execution(t, db, def, patient, now.Add(-time.Hour))
	justDue := testdb.Execution(t, db, def, patient, now.Add(-time.Minute))
	testdb.Execution(t, db, def, patient, now.Add(time.Hour))
	sent := testdb.Execution(t, db, def, patient, now.Add(-2*time.Hour))
	require.NoError(t, db.Model(&models.FollowUpExecution{}).Where("id = ?", sent.ID).
		Update("status", models.ExecutionSent).Error)

	due, err := st.ListDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 2)
	assert.Equal(t, late.ID, due[0].ID)
	assert.Equal(t, justDue.ID, due[1].ID)
	assert.Equal(t, def.ID, due[0].Definition.ID)
	assert.Equal(t, "Ana Souza", due[0].Patient.Name)
	assert.Equal(t, "Sorriso", due[0].Clinic.Name)
}

func TestListDueIncludesSoftDeletedDefinition(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	defs := store.NewGormDefinitionStore(db)
	ctx := context.Background()

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	testdb.Execution(t, db, def, patient, time.Now().Add(-time.Minute))

	require.NoError(t, defs.Delete(ctx, clinic.ID, def.ID))

	due, err := st.ListDue(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, def.ID, due[0].Definition.ID)
	assert.True(t, due[0].Definition.DeletedAt.Valid)
}

func TestClaimSucceedsOnce(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	exec := testdb.Execution(t, db, def, patient, time.Now().Add(-time.Minute))

	ok, err := st.Claim(ctx, exec.ID, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.Claim(ctx, exec.ID, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	stored := testdb.Reload(t, db, exec.ID)
	assert.Equal(t, models.ExecutionClaimed, stored.Status)
	assert.NotNil(t, stored.ClaimedAt)
}

func TestMarkSentAndFailedRequireClaim(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()
	now := time.Now()

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	first := testdb.Execution(t, db, def, patient, now.Add(-time.Minute))
	second := testdb.Execution(t, db, def, patient, now.Add(-time.Minute))

	err := st.MarkSent(ctx, first.ID, store.Outcome{Channel: models.ChannelSMS}, now)
	assert.ErrorIs(t, err, store.ErrClaimLost)
	assert.Equal(t, models.ExecutionPending, testdb.Reload(t, db, first.ID).Status)

	_, err = st.Claim(ctx, first.ID, now)
	require.NoError(t, err)
	require.NoError(t, st.MarkSent(ctx, first.ID, store.Outcome{Channel: models.ChannelSMS, ProviderRef: "SM123"}, now))

	sent := testdb.Reload(t, db, first.ID)
	assert.Equal(t, models.ExecutionSent, sent.Status)
	assert.Equal(t, "SM123", sent.ProviderRef)
	assert.NotNil(t, sent.CompletedAt)

	// Terminal rows stay terminal.
	err = st.MarkFailed(ctx, first.ID, store.Outcome{ErrorDetail: "late"}, now)
	assert.ErrorIs(t, err, store.ErrClaimLost)

	_, err = st.Claim(ctx, second.ID, now)
	require.NoError(t, err)
	require.NoError(t, st.MarkFailed(ctx, second.ID, store.Outcome{}, now))
	failed := testdb.Reload(t, db, second.ID)
	assert.Equal(t, models.ExecutionFailed, failed.Status)
	assert.Equal(t, "dispatch failed", failed.ErrorDetail)
}

func TestMarkFailedTruncatesLongDetailOnRuneBoundary(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana Souza", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	exec := testdb.Execution(t, db, def, patient, now.Add(-time.Minute))

	claimed, err := st.Claim(ctx, exec.ID, now)
	require.NoError(t, err)
	require.True(t, claimed)

	// "ã" is two bytes; one leading byte puts a rune across the 2000 byte cut.
	detail := "x" + strings.Repeat("ã", 1500)
	require.NoError(t, st.MarkFailed(ctx, exec.ID, store.Outcome{ErrorDetail: detail}, now))

	stored := testdb.Reload(t, db, exec.ID)
	assert.Equal(t, models.ExecutionFailed, stored.Status)
	assert.True(t, utf8.ValidString(stored.ErrorDetail))
	assert.Equal(t, 1999, len(stored.ErrorDetail))
	assert.True(t, strings.HasPrefix(detail, stored.ErrorDetail))
}

func TestCancel(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()
	now := time.Now()

	clinic := testdb.Clinic(t, db, "Sorriso")
	other := testdb.Clinic(t, db, "Outra")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	pending := testdb.Execution(t, db, def, patient, now.Add(time.Hour))
	claimed := testdb.Execution(t, db, def, patient, now.Add(-time.Minute))
	_, err := st.Claim(ctx, claimed.ID, now)
	require.NoError(t, err)

	assert.ErrorIs(t, st.Cancel(ctx, other.ID, pending.ID, "nope", now), store.ErrNotFound)
	assert.ErrorIs(t, st.Cancel(ctx, clinic.ID, uuid.New(), "nope", now), store.ErrNotFound)
	assert.ErrorIs(t, st.Cancel(ctx, clinic.ID, claimed.ID, "nope", now), store.ErrInvalidTransition)

	require.NoError(t, st.Cancel(ctx, clinic.ID, pending.ID, "patient asked", now))
	cancelled := testdb.Reload(t, db, pending.ID)
	assert.Equal(t, models.ExecutionCancelled, cancelled.Status)
	assert.Equal(t, "patient asked", cancelled.ErrorDetail)

	assert.ErrorIs(t, st.Cancel(ctx, clinic.ID, pending.ID, "again", now), store.ErrInvalidTransition)
}

func TestCancelPendingForAppointment(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()
	now := time.Now()

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentScheduled, -60)
	apptID := uuid.New()

	for i := 0; i < 2; i++ {
		exec := models.FollowUpExecution{
			DefinitionID:  def.ID,
			ClinicID:      clinic.ID,
			PatientID:     patient.ID,
			AppointmentID: &apptID,
			ScheduledFor:  now.Add(time.Duration(i+1) * time.Hour),
		}
		require.NoError(t, st.Create(ctx, &exec))
	}
	unrelated := testdb.Execution(t, db, def, patient, now.Add(time.Hour))

	n, err := st.CancelPendingForAppointment(ctx, clinic.ID, apptID, "rescheduled", now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, models.ExecutionPending, testdb.Reload(t, db, unrelated.ID).Status)
}

func TestExpireStaleClaims(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()
	now := time.Now()

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	stale := testdb.Execution(t, db, def, patient, now.Add(-time.Hour))
	fresh := testdb.Execution(t, db, def, patient, now.Add(-time.Hour))

	_, err := st.Claim(ctx, stale.ID, now.Add(-30*time.Minute))
	require.NoError(t, err)
	_, err = st.Claim(ctx, fresh.ID, now)
	require.NoError(t, err)

	n, err := st.ExpireStaleClaims(ctx, now.Add(-10*time.Minute), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	expired := testdb.Reload(t, db, stale.ID)
	assert.Equal(t, models.ExecutionFailed, expired.Status)
	assert.NotEmpty(t, expired.ErrorDetail)
	assert.Equal(t, models.ExecutionClaimed, testdb.Reload(t, db, fresh.ID).Status)
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)

	err := st.Create(context.Background(), &models.FollowUpExecution{ClinicID: uuid.New(), ScheduledFor: time.Now()})
	assert.Error(t, err)

	err = st.Create(context.Background(), &models.FollowUpExecution{
		ClinicID: uuid.New(), DefinitionID: uuid.New(), PatientID: uuid.New(),
	})
	assert.Error(t, err)
}

func TestScheduledForIsImmutable(t *testing.T) {
	db := testdb.Open(t)

	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	exec := testdb.Execution(t, db, def, patient, time.Now().Add(time.Hour))
	original := exec.ScheduledFor

	err := db.Model(&exec).Update("scheduled_for", time.Now().Add(2*time.Hour)).Error
	assert.ErrorIs(t, err, models.ErrScheduledForImmutable)
	assert.WithinDuration(t, original, testdb.Reload(t, db, exec.ID).ScheduledFor, time.Second)
}

func TestListByClinicIsTenantScopedAndPaged(t *testing.T) {
	db := testdb.Open(t)
	st := store.NewGormExecutionStore(db)
	ctx := context.Background()
	now := time.Now()

	clinic := testdb.Clinic(t, db, "Sorriso")
	other := testdb.Clinic(t, db, "Outra")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	otherPatient := testdb.Patient(t, db, other.ID, "Bia", "+5511999990002")
	def := testdb.Definition(t, db, clinic.ID, models.TriggerManual, 0)
	otherDef := testdb.Definition(t, db, other.ID, models.TriggerManual, 0)

	for i := 0; i < 5; i++ {
		testdb.Execution(t, db, def, patient, now.Add(time.Duration(i)*time.Hour))
	}
	testdb.Execution(t, db, otherDef, otherPatient, now)

	page, err := st.ListByClinic(ctx, clinic.ID, store.ExecutionFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), page.Total)
	require.Len(t, page.Executions, 2)
	for _, e := range page.Executions {
		assert.Equal(t, clinic.ID, e.ClinicID)
	}
	// Newest first: page 2 holds the third and fourth latest.
	assert.True(t, page.Executions[0].ScheduledFor.After(page.Executions[1].ScheduledFor))

	page, err = st.ListByClinic(ctx, clinic.ID, store.ExecutionFilter{Status: models.ExecutionSent}, 1, 50)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
	assert.Empty(t, page.Executions)

	pid := otherPatient.ID
	page, err = st.ListByClinic(ctx, clinic.ID, store.ExecutionFilter{PatientID: &pid}, 1, 50)
	require.NoError(t, err)
	assert.Zero(t, page.Total)
}

func TestDefinitionStore(t *testing.T) {
	db := testdb.Open(t)
	defs := store.NewGormDefinitionStore(db)
	ctx := context.Background()

	clinic := testdb.Clinic(t, db, "Sorriso")
	other := testdb.Clinic(t, db, "Outra")
	early := testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentScheduled, -1440)
	late := testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentScheduled, -120)
	inactive := testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentScheduled, -60)
	inactive.IsActive = false
	require.NoError(t, defs.Save(ctx, &inactive))
	testdb.Definition(t, db, clinic.ID, models.TriggerAppointmentCompleted, 60)

	active, err := defs.ListActiveByTrigger(ctx, clinic.ID, models.TriggerAppointmentScheduled)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, early.ID, active[0].ID)
	assert.Equal(t, late.ID, active[1].ID)

	_, err = defs.Get(ctx, other.ID, early.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	assert.ErrorIs(t, defs.Delete(ctx, other.ID, early.ID), store.ErrNotFound)
	require.NoError(t, defs.Delete(ctx, clinic.ID, early.ID))
	_, err = defs.Get(ctx, clinic.ID, early.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	all, err := defs.List(ctx, clinic.ID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
