// services/auth_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// AuthFailure is the reason a login was refused.
type AuthFailure int

const (
	AuthFailureNone AuthFailure = iota
	AuthFailureMissingCredentials
	AuthFailureInvalidCredentials
	AuthFailureInactiveAccount
)

func (f AuthFailure) String() string {
	switch f {
	case AuthFailureNone:
		return "none"
	case AuthFailureMissingCredentials:
		return "missing_credentials"
	case AuthFailureInvalidCredentials:
		return "invalid_credentials"
	case AuthFailureInactiveAccount:
		return "inactive_account"
	}
	return fmt.Sprintf("AuthFailure(%d)", int(f))
}

// AuthResult carries either the authenticated user or the failure reason.
type AuthResult struct {
	User    *models.User
	Failure AuthFailure
}

func (r AuthResult) OK() bool { return r.Failure == AuthFailureNone && r.User != nil }

var ErrEmailTaken = errors.New("email already registered")

type AuthService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAuthService(db *gorm.DB) *AuthService {
	return &AuthService{db: db, now: time.Now}
}

// Authenticate checks an email or phone plus password. Unknown users and
// wrong passwords both report InvalidCredentials. A non-nil error means the
// lookup itself failed.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string) (AuthResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return AuthResult{Failure: AuthFailureMissingCredentials}, nil
	}

	var user models.User
	err := s.db.WithContext(ctx).
		Preload("Clinic").
		Where("email = ? OR phone = ?", strings.ToLower(identifier), identifier).
		First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return AuthResult{Failure: AuthFailureInvalidCredentials}, nil
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("lookup user: %w", err)
	}

	if !utils.CheckPasswordHash(password, user.Password) {
		return AuthResult{Failure: AuthFailureInvalidCredentials}, nil
	}
	if !user.IsActive || !user.Clinic.IsActive {
		return AuthResult{Failure: AuthFailureInactiveAccount}, nil
	}

	now := s.now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", &now).Error; err != nil {
		return AuthResult{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLogin = &now
	return AuthResult{User: &user}, nil
}

// RegisterParams is what a new clinic signs up with.
type RegisterParams struct {
	Email         string
	Password      string
	Name          string
	Phone         string
	ClinicName    string
	ClinicAddress string
	Timezone      string
	WorkingHours  models.JSONB
}

// RegisterClinic creates the clinic, its settings, the owner account and a
// starter set of follow-up definitions in one transaction.
func (s *AuthService) RegisterClinic(ctx context.Context, p RegisterParams) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(p.Email))

	var owner models.User
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Unscoped().Where("email = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrEmailTaken
		}

		clinic := models.Clinic{
			Name:     p.ClinicName,
			Address:  p.ClinicAddress,
			Phone:    p.Phone,
			Timezone: p.Timezone,
		}
		if err := tx.Create(&clinic).Error; err != nil {
			return fmt.Errorf("create clinic: %w", err)
		}

		settings := models.NewClinicSettings(clinic.ID)
		if p.WorkingHours != nil {
			settings.WorkingHours = p.WorkingHours
		}
		if err := tx.Create(settings).Error; err != nil {
			return fmt.Errorf("create settings: %w", err)
		}

		owner = models.User{
			Email:    email,
			Password: p.Password, // hashed in BeforeCreate
			Name:     p.Name,
			Phone:    utils.NormalizePhone(p.Phone),
			Role:     models.RoleOwner,
			ClinicID: clinic.ID,
		}
		if err := tx.Omit("Clinic").Create(&owner).Error; err != nil {
			return fmt.Errorf("create owner: %w", err)
		}
		owner.Clinic = clinic

		defs := DefaultFollowUpDefinitions(clinic.ID)
		if err := tx.Create(&defs).Error; err != nil {
			return fmt.Errorf("create default follow-ups: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &owner, nil
}
