// services/followup_processor.go
package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
)

const (
	DefaultDispatchTimeout = 15 * time.Second
	DefaultConcurrency     = 1
)

// Processor runs one pass over due follow-up executions. Each pass works on a
// snapshot of what was due when it started; rows that become due later wait
// for the next pass.
type Processor struct {
	executions      store.ExecutionStore
	dispatcher      Dispatcher
	log             zerolog.Logger
	now             func() time.Time
	dispatchTimeout time.Duration
	concurrency     int
}

type ProcessorOption func(*Processor)

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) { p.now = now }
}

func WithDispatchTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.dispatchTimeout = d
		}
	}
}

// WithConcurrency bounds how many executions are dispatched at once.
func WithConcurrency(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

func WithProcessorLogger(log zerolog.Logger) ProcessorOption {
	return func(p *Processor) { p.log = log }
}

func NewProcessor(executions store.ExecutionStore, dispatcher Dispatcher, opts ...ProcessorOption) *Processor {
	p := &Processor{
		executions:      executions,
		dispatcher:      dispatcher,
		log:             zerolog.Nop(),
		now:             time.Now,
		dispatchTimeout: DefaultDispatchTimeout,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process claims and dispatches every execution due at call time and returns
// how many were attempted. Executions lost to a concurrent claim are not
// counted. Only a failure to read the due set is returned as an error; per
// execution failures are recorded on the execution itself.
func (p *Processor) Process(ctx context.Context) (int, error) {
	started := p.now()
	due, err := p.executions.ListDue(ctx, started)
	if err != nil {
		return 0, fmt.Errorf("select due follow-ups: %w", err)
	}
	if len(due) == 0 {
		p.log.Debug().Msg("no follow-ups due")
		return 0, nil
	}

	// The batch runs to completion even if the caller goes away.
	batchCtx := context.WithoutCancel(ctx)

	var attempted atomic.Int64
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i := range due {
		exec := &due[i]
		g.Go(func() error {
			if p.attempt(batchCtx, exec) {
				attempted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	processed := int(attempted.Load())
	p.log.Info().
		Int("due", len(due)).
		Int("processed", processed).
		Dur("took", time.Since(started)).
		Msg("follow-up pass finished")
	return processed, nil
}

// attempt claims one execution and, if the claim holds, dispatches it and
// records the outcome. It reports whether the execution was attempted.
func (p *Processor) attempt(ctx context.Context, exec *models.FollowUpExecution) bool {
	log := p.log.With().
		Str("execution_id", exec.ID.String()).
		Str("clinic_id", exec.ClinicID.String()).
		Logger()

	claimed, err := p.executions.Claim(ctx, exec.ID, p.now())
	if err != nil {
		log.Error().Err(err).Msg("claim failed")
		return false
	}
	if !claimed {
		log.Debug().Msg("execution already claimed elsewhere")
		return false
	}

	result, dispatchErr := p.dispatch(ctx, exec)
	completedAt := p.now()

	if dispatchErr != nil {
		log.Warn().Err(dispatchErr).Msg("follow-up dispatch failed")
		outcome := store.Outcome{Channel: result.Channel, ErrorDetail: dispatchErr.Error()}
		if err := p.executions.MarkFailed(ctx, exec.ID, outcome, completedAt); err != nil {
			log.Error().Err(err).Msg("record failed outcome")
		}
		return true
	}

	outcome := store.Outcome{Channel: result.Channel, ProviderRef: result.ProviderRef}
	if err := p.executions.MarkSent(ctx, exec.ID, outcome, completedAt); err != nil {
		log.Error().Err(err).Msg("record sent outcome")
		return true
	}
	log.Info().Str("channel", result.Channel).Msg("follow-up sent")
	return true
}

func (p *Processor) dispatch(ctx context.Context, exec *models.FollowUpExecution) (result DispatchResult, err error) {
	if err := checkTarget(exec); err != nil {
		return DispatchResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.dispatchTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispatch panic: %v", r)
		}
	}()

	result, err = p.dispatcher.Dispatch(ctx, exec)
	if errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("dispatch timed out after %s: %w", p.dispatchTimeout, err)
	}
	return result, err
}

var (
	errDefinitionGone       = errors.New("follow-up definition was deleted")
	errDefinitionOff        = errors.New("follow-up definition is inactive")
	errPatientGone          = errors.New("patient was deleted or deactivated")
	errClinicInactive       = errors.New("clinic is inactive")
	errAppointmentWithdrawn = errors.New("appointment was cancelled or deleted")
)

func checkTarget(exec *models.FollowUpExecution) error {
	if exec.Clinic.ID == exec.ClinicID && !exec.Clinic.IsActive {
		return errClinicInactive
	}
	if exec.Definition.ID != exec.DefinitionID || exec.Definition.DeletedAt.Valid {
		return errDefinitionGone
	}
	if !exec.Definition.IsActive {
		return errDefinitionOff
	}
	if exec.Patient.ID != exec.PatientID || exec.Patient.DeletedAt.Valid || !exec.Patient.IsActive {
		return errPatientGone
	}
	if appt := exec.Appointment; appt != nil && (appt.DeletedAt.Valid || appt.Status == models.AppointmentCancelled) {
		return errAppointmentWithdrawn
	}
	return nil
}
