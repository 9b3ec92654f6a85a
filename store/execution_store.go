// Package store persists follow-up definitions and executions.
//
// The processor only talks to the ExecutionStore interface; GormExecutionStore
// is the implementation used by the server and the tests.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrClaimLost         = errors.New("execution is no longer in the expected status")
	ErrInvalidTransition = errors.New("invalid execution status transition")
)

// ExecutionFilter narrows a tenant listing.
type ExecutionFilter struct {
	Status       models.ExecutionStatus
	PatientID    *uuid.UUID
	DefinitionID *uuid.UUID
}

// ExecutionPage is one page of a tenant listing.
type ExecutionPage struct {
	Executions []models.FollowUpExecution
	Total      int64
}

// ExecutionStore is everything the processor and the HTTP layer need from
// execution persistence.
type ExecutionStore interface {
	// ListDue returns PENDING executions with scheduled_for <= now across all
	// clinics, ordered by clinic and then scheduled_for.
	ListDue(ctx context.Context, now time.Time) ([]models.FollowUpExecution, error)

	// Claim moves an execution from PENDING to CLAIMED. It returns false when
	// another caller got there first or the row left PENDING.
	Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)

	// MarkSent and MarkFailed complete a CLAIMED execution. They return
	// ErrClaimLost when the row is not CLAIMED.
	MarkSent(ctx context.Context, id uuid.UUID, outcome Outcome, now time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, outcome Outcome, now time.Time) error

	// Cancel moves a PENDING execution of the clinic to CANCELLED.
	Cancel(ctx context.Context, clinicID, id uuid.UUID, reason string, now time.Time) error

	// CancelPendingForAppointment cancels every PENDING execution tied to the
	// appointment and returns how many were cancelled.
	CancelPendingForAppointment(ctx context.Context, clinicID, appointmentID uuid.UUID, reason string, now time.Time) (int, error)

	// ExpireStaleClaims fails CLAIMED executions whose claim is older than
	// claimedBefore. Used once at startup after a crash.
	ExpireStaleClaims(ctx context.Context, claimedBefore, now time.Time) (int, error)

	Create(ctx context.Context, exec *models.FollowUpExecution) error
	Get(ctx context.Context, clinicID, id uuid.UUID) (*models.FollowUpExecution, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID, filter ExecutionFilter, page, limit int) (ExecutionPage, error)
}

// Outcome is what the processor records when completing an execution.
type Outcome struct {
	Channel     string
	ProviderRef string
	ErrorDetail string
}
