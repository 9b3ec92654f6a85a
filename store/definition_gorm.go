package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
)

// DefinitionStore reads and edits clinic follow-up definitions.
type DefinitionStore interface {
	ListActiveByTrigger(ctx context.Context, clinicID uuid.UUID, trigger string) ([]models.FollowUpDefinition, error)
	List(ctx context.Context, clinicID uuid.UUID) ([]models.FollowUpDefinition, error)
	Get(ctx context.Context, clinicID, id uuid.UUID) (*models.FollowUpDefinition, error)
	Create(ctx context.Context, def *models.FollowUpDefinition) error
	Save(ctx context.Context, def *models.FollowUpDefinition) error
	Delete(ctx context.Context, clinicID, id uuid.UUID) error
}

var _ DefinitionStore = (*GormDefinitionStore)(nil)

type GormDefinitionStore struct {
	db *gorm.DB
}

func NewGormDefinitionStore(db *gorm.DB) *GormDefinitionStore {
	return &GormDefinitionStore{db: db}
}

func (s *GormDefinitionStore) ListActiveByTrigger(ctx context.Context, clinicID uuid.UUID, trigger string) ([]models.FollowUpDefinition, error) {
	var defs []models.FollowUpDefinition
	err := s.db.WithContext(ctx).
		Where("clinic_id = ? AND trigger_event = ? AND is_active = ?", clinicID, trigger, true).
		Order("offset_minutes ASC").
		Find(&defs).Error
	if err != nil {
		return nil, fmt.Errorf("list definitions for %s: %w", trigger, err)
	}
	return defs, nil
}

func (s *GormDefinitionStore) List(ctx context.Context, clinicID uuid.UUID) ([]models.FollowUpDefinition, error) {
	var defs []models.FollowUpDefinition
	if err := s.db.WithContext(ctx).Where("clinic_id = ?", clinicID).Order("created_at ASC").Find(&defs).Error; err != nil {
		return nil, fmt.Errorf("list definitions: %w", err)
	}
	return defs, nil
}

func (s *GormDefinitionStore) Get(ctx context.Context, clinicID, id uuid.UUID) (*models.FollowUpDefinition, error) {
	var def models.FollowUpDefinition
	err := s.db.WithContext(ctx).Where("clinic_id = ? AND id = ?", clinicID, id).First(&def).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get definition %s: %w", id, err)
	}
	return &def, nil
}

func (s *GormDefinitionStore) Create(ctx context.Context, def *models.FollowUpDefinition) error {
	if err := s.db.WithContext(ctx).Create(def).Error; err != nil {
		return fmt.Errorf("create definition: %w", err)
	}
	return nil
}

func (s *GormDefinitionStore) Save(ctx context.Context, def *models.FollowUpDefinition) error {
	if err := s.db.WithContext(ctx).Save(def).Error; err != nil {
		return fmt.Errorf("save definition %s: %w", def.ID, err)
	}
	return nil
}

// Delete soft-deletes the definition. Executions keep pointing at it.
func (s *GormDefinitionStore) Delete(ctx context.Context, clinicID, id uuid.UUID) error {
	result := s.db.WithContext(ctx).Where("clinic_id = ? AND id = ?", clinicID, id).Delete(&models.FollowUpDefinition{})
	if result.Error != nil {
		return fmt.Errorf("delete definition %s: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
