// Package testdb opens migrated throwaway databases and seeds the records
// most tests need.
package testdb

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/lcjefferson/cliniflow2026-sub001/config"
	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// Open returns a migrated SQLite database in the test's temp dir.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	utils.PasswordHashCost = bcrypt.MinCost

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func Clinic(t testing.TB, db *gorm.DB, name string) models.Clinic {
	t.Helper()
	clinic := models.Clinic{Name: name, Timezone: "America/Sao_Paulo"}
	require.NoError(t, db.Create(&clinic).Error)
	return clinic
}

func User(t testing.TB, db *gorm.DB, clinicID uuid.UUID, email, password string) models.User {
	t.Helper()
	user := models.User{
		Email:    email,
		Password: password,
		Name:     "Owner",
		Role:     models.RoleOwner,
		ClinicID: clinicID,
	}
	require.NoError(t, db.Omit("Clinic").Create(&user).Error)
	return user
}

func Patient(t testing.TB, db *gorm.DB, clinicID uuid.UUID, name, phone string) models.Patient {
	t.Helper()
	patient := models.Patient{
		ClinicID:        clinicID,
		CreatedByUserID: uuid.New(),
		Name:            name,
		Phone:           phone,
	}
	require.NoError(t, db.Create(&patient).Error)
	return patient
}

func Professional(t testing.TB, db *gorm.DB, clinicID uuid.UUID, name string) models.Professional {
	t.Helper()
	pro := models.Professional{ClinicID: clinicID, Name: name}
	require.NoError(t, db.Create(&pro).Error)
	return pro
}

func Definition(t testing.TB, db *gorm.DB, clinicID uuid.UUID, trigger string, offsetMinutes int) models.FollowUpDefinition {
	t.Helper()
	def := models.FollowUpDefinition{
		ClinicID:        clinicID,
		Name:            "Reminder " + trigger,
		TriggerEvent:    trigger,
		OffsetMinutes:   offsetMinutes,
		Channel:         models.ChannelAuto,
		MessageTemplate: "Hello {{patient_first_name}}, see you at {{clinic_name}}.",
		IsActive:        true,
	}
	require.NoError(t, db.Create(&def).Error)
	return def
}

// Execution seeds a PENDING execution scheduled at the given time.
func Execution(t testing.TB, db *gorm.DB, def models.FollowUpDefinition, patient models.Patient, at time.Time) models.FollowUpExecution {
	t.Helper()
	exec := models.FollowUpExecution{
		DefinitionID: def.ID,
		ClinicID:     def.ClinicID,
		PatientID:    patient.ID,
		ScheduledFor: at,
	}
	require.NoError(t, db.Omit("Definition", "Clinic", "Patient", "Appointment").Create(&exec).Error)
	return exec
}

// Reload returns the stored execution.
func Reload(t testing.TB, db *gorm.DB, id uuid.UUID) models.FollowUpExecution {
	t.Helper()
	var exec models.FollowUpExecution
	require.NoError(t, db.First(&exec, "id = ?", id).Error)
	return exec
}
