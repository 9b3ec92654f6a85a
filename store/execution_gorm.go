package store

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
)

// Compile-time check that GormExecutionStore implements ExecutionStore.
var _ ExecutionStore = (*GormExecutionStore)(nil)

const maxErrorDetail = 2000

type GormExecutionStore struct {
	db *gorm.DB
}

func NewGormExecutionStore(db *gorm.DB) *GormExecutionStore {
	return &GormExecutionStore{db: db}
}

func unscoped(db *gorm.DB) *gorm.DB { return db.Unscoped() }

func (s *GormExecutionStore) ListDue(ctx context.Context, now time.Time) ([]models.FollowUpExecution, error) {
	var due []models.FollowUpExecution
	err := s.db.WithContext(ctx).
		Preload("Definition", unscoped).
		Preload("Clinic").
		Preload("Patient", unscoped).
		Preload("Appointment", unscoped).
		Preload("Appointment.Professional", unscoped).
		Where("status = ? AND scheduled_for <= ?", models.ExecutionPending, now.UTC()).
		Order("clinic_id ASC").
		Order("scheduled_for ASC").
		Find(&due).Error
	if err != nil {
		return nil, fmt.Errorf("list due executions: %w", err)
	}
	return due, nil
}

func (s *GormExecutionStore) Claim(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	claimedAt := now.UTC()
	result := s.db.WithContext(ctx).
		Model(&models.FollowUpExecution{}).
		Where("id = ? AND status = ?", id, models.ExecutionPending).
		Updates(map[string]interface{}{
			"status":     models.ExecutionClaimed,
			"claimed_at": &claimedAt,
		})
	if result.Error != nil {
		return false, fmt.Errorf("claim execution %s: %w", id, result.Error)
	}
	return result.RowsAffected == 1, nil
}

func (s *GormExecutionStore) MarkSent(ctx context.Context, id uuid.UUID, outcome Outcome, now time.Time) error {
	return s.complete(ctx, id, models.ExecutionSent, outcome, now)
}

func (s *GormExecutionStore) MarkFailed(ctx context.Context, id uuid.UUID, outcome Outcome, now time.Time) error {
	if outcome.ErrorDetail == "" {
		outcome.ErrorDetail = "dispatch failed"
	}
	return s.complete(ctx, id, models.ExecutionFailed, outcome, now)
}

func (s *GormExecutionStore) complete(ctx context.Context, id uuid.UUID, to models.ExecutionStatus, outcome Outcome, now time.Time) error {
	completedAt := now.UTC()
	result := s.db.WithContext(ctx).
		Model(&models.FollowUpExecution{}).
		Where("id = ? AND status = ?", id, models.ExecutionClaimed).
		Updates(map[string]interface{}{
			"status":       to,
			"completed_at": &completedAt,
			"channel":      outcome.Channel,
			"provider_ref": outcome.ProviderRef,
			"error_detail": truncate(outcome.ErrorDetail, maxErrorDetail),
		})
	if result.Error != nil {
		return fmt.Errorf("mark execution %s %s: %w", id, to, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *GormExecutionStore) Cancel(ctx context.Context, clinicID, id uuid.UUID, reason string, now time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exec models.FollowUpExecution
		if err := tx.Where("clinic_id = ? AND id = ?", clinicID, id).First(&exec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("load execution %s: %w", id, err)
		}
		if !exec.Status.CanTransition(models.ExecutionCancelled) {
			return ErrInvalidTransition
		}

		completedAt := now.UTC()
		result := tx.Model(&models.FollowUpExecution{}).
			Where("id = ? AND status = ?", id, models.ExecutionPending).
			Updates(map[string]interface{}{
				"status":       models.ExecutionCancelled,
				"completed_at": &completedAt,
				"error_detail": truncate(reason, maxErrorDetail),
			})
		if result.Error != nil {
			return fmt.Errorf("cancel execution %s: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			// Claimed by a processor between the read and the write.
			return ErrInvalidTransition
		}
		return nil
	})
}

func (s *GormExecutionStore) CancelPendingForAppointment(ctx context.Context, clinicID, appointmentID uuid.UUID, reason string, now time.Time) (int, error) {
	completedAt := now.UTC()
	result := s.db.WithContext(ctx).
		Model(&models.FollowUpExecution{}).
		Where("clinic_id = ? AND appointment_id = ? AND status = ?", clinicID, appointmentID, models.ExecutionPending).
		Updates(map[string]interface{}{
			"status":       models.ExecutionCancelled,
			"completed_at": &completedAt,
			"error_detail": truncate(reason, maxErrorDetail),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("cancel executions for appointment %s: %w", appointmentID, result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *GormExecutionStore) ExpireStaleClaims(ctx context.Context, claimedBefore, now time.Time) (int, error) {
	completedAt := now.UTC()
	result := s.db.WithContext(ctx).
		Model(&models.FollowUpExecution{}).
		Where("status = ? AND claimed_at < ?", models.ExecutionClaimed, claimedBefore.UTC()).
		Updates(map[string]interface{}{
			"status":       models.ExecutionFailed,
			"completed_at": &completedAt,
			"error_detail": "claim expired before completion; delivery state unknown",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("expire stale claims: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

func (s *GormExecutionStore) Create(ctx context.Context, exec *models.FollowUpExecution) error {
	if exec.ClinicID == uuid.Nil || exec.DefinitionID == uuid.Nil || exec.PatientID == uuid.Nil {
		return fmt.Errorf("create execution: clinic, definition and patient are required")
	}
	if exec.ScheduledFor.IsZero() {
		return fmt.Errorf("create execution: scheduled_for is required")
	}
	if err := s.db.WithContext(ctx).Omit("Definition", "Clinic", "Patient", "Appointment").Create(exec).Error; err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

func (s *GormExecutionStore) Get(ctx context.Context, clinicID, id uuid.UUID) (*models.FollowUpExecution, error) {
	var exec models.FollowUpExecution
	err := s.db.WithContext(ctx).
		Preload("Definition", unscoped).
		Preload("Patient", unscoped).
		Where("clinic_id = ? AND id = ?", clinicID, id).
		First(&exec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution %s: %w", id, err)
	}
	return &exec, nil
}

func (s *GormExecutionStore) ListByClinic(ctx context.Context, clinicID uuid.UUID, filter ExecutionFilter, page, limit int) (ExecutionPage, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 50
	}

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("clinic_id = ?", clinicID)
		if filter.Status != "" {
			db = db.Where("status = ?", filter.Status)
		}
		if filter.PatientID != nil {
			db = db.Where("patient_id = ?", *filter.PatientID)
		}
		if filter.DefinitionID != nil {
			db = db.Where("definition_id = ?", *filter.DefinitionID)
		}
		return db
	}

	var out ExecutionPage
	if err := s.db.WithContext(ctx).Model(&models.FollowUpExecution{}).Scopes(scope).Count(&out.Total).Error; err != nil {
		return ExecutionPage{}, fmt.Errorf("count executions: %w", err)
	}
	err := s.db.WithContext(ctx).
		Scopes(scope).
		Preload("Definition", unscoped).
		Preload("Patient", unscoped).
		Order("scheduled_for DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&out.Executions).Error
	if err != nil {
		return ExecutionPage{}, fmt.Errorf("list executions: %w", err)
	}
	return out, nil
}

// truncate cuts s to at most max bytes without splitting a UTF-8 sequence.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}
