// services/followup_generator.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
)

var ErrDefinitionInactive = errors.New("follow-up definition is inactive")

// FollowUpGenerator turns clinic definitions into PENDING executions.
type FollowUpGenerator struct {
	definitions store.DefinitionStore
	executions  store.ExecutionStore
	log         zerolog.Logger
	now         func() time.Time
}

func NewFollowUpGenerator(definitions store.DefinitionStore, executions store.ExecutionStore, log zerolog.Logger) *FollowUpGenerator {
	return &FollowUpGenerator{
		definitions: definitions,
		executions:  executions,
		log:         log,
		now:         time.Now,
	}
}

// Using returns a generator with the same clock and logger that reads and
// writes through the given stores, typically bound to a transaction.
func (g *FollowUpGenerator) Using(definitions store.DefinitionStore, executions store.ExecutionStore) *FollowUpGenerator {
	cp := *g
	cp.definitions = definitions
	cp.executions = executions
	return &cp
}

// ForAppointment schedules one execution per active definition of the
// trigger, offset from the appointment start. Scheduled-trigger follow-ups
// whose time already passed are skipped; completion follow-ups that would
// land in the past are sent on the next pass.
func (g *FollowUpGenerator) ForAppointment(ctx context.Context, appt *models.Appointment, trigger string) (int, error) {
	defs, err := g.definitions.ListActiveByTrigger(ctx, appt.ClinicID, trigger)
	if err != nil {
		return 0, err
	}

	now := g.now()
	created := 0
	for i := range defs {
		def := &defs[i]
		at := appt.StartsAt.Add(time.Duration(def.OffsetMinutes) * time.Minute)
		if at.Before(now) {
			if trigger == models.TriggerAppointmentScheduled {
				g.log.Debug().
					Str("appointment_id", appt.ID.String()).
					Str("definition_id", def.ID.String()).
					Msg("follow-up time already passed, skipping")
				continue
			}
			at = now
		}

		apptID := appt.ID
		exec := &models.FollowUpExecution{
			DefinitionID:  def.ID,
			ClinicID:      appt.ClinicID,
			PatientID:     appt.PatientID,
			AppointmentID: &apptID,
			ScheduledFor:  at,
		}
		if err := g.executions.Create(ctx, exec); err != nil {
			return created, fmt.Errorf("schedule %q for appointment %s: %w", def.Name, appt.ID, err)
		}
		created++
	}

	if created > 0 {
		g.log.Info().
			Str("appointment_id", appt.ID.String()).
			Str("trigger", trigger).
			Int("scheduled", created).
			Msg("follow-ups scheduled")
	}
	return created, nil
}

// Schedule creates a single execution of a definition for a patient at the
// given time. Past times are clamped to now.
func (g *FollowUpGenerator) Schedule(ctx context.Context, clinicID, definitionID, patientID uuid.UUID, at time.Time) (*models.FollowUpExecution, error) {
	def, err := g.definitions.Get(ctx, clinicID, definitionID)
	if err != nil {
		return nil, err
	}
	if !def.IsActive {
		return nil, ErrDefinitionInactive
	}
	if now := g.now(); at.IsZero() || at.Before(now) {
		at = now
	}

	exec := &models.FollowUpExecution{
		DefinitionID: def.ID,
		ClinicID:     clinicID,
		PatientID:    patientID,
		ScheduledFor: at,
	}
	if err := g.executions.Create(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}
