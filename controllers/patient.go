package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// CreatePatientInput defines the expected JSON structure for creating a patient
type CreatePatientInput struct {
	Name      string     `json:"name" binding:"required"`
	Phone     string     `json:"phone" binding:"required"`
	Email     *string    `json:"email"`
	BirthDate *time.Time `json:"birthDate"`
	Document  string     `json:"document"`
	Notes     string     `json:"notes"`
}

// UpdatePatientInput defines the expected JSON structure for updating a patient
type UpdatePatientInput struct {
	Name      *string    `json:"name"`
	Phone     *string    `json:"phone"`
	Email     *string    `json:"email"`
	BirthDate *time.Time `json:"birthDate"`
	Document  *string    `json:"document"`
	Notes     *string    `json:"notes"`
	IsActive  *bool      `json:"isActive"`
}

type AnamnesisInput struct {
	Allergies   string `json:"allergies"`
	Medications string `json:"medications"`
	Conditions  string `json:"conditions"`
	Smoker      bool   `json:"smoker"`
	Pregnant    bool   `json:"pregnant"`
	Notes       string `json:"notes"`
}

type PatientController struct {
	db *gorm.DB
}

func NewPatientController(db *gorm.DB) *PatientController {
	return &PatientController{db: db}
}

// patientByPhone looks the phone up including soft-deleted patients, since the
// unique index still covers them.
func patientByPhone(db *gorm.DB, clinicID interface{}, phone string) (*models.Patient, error) {
	var existing models.Patient
	err := db.Unscoped().
		Where("clinic_id = ? AND phone = ?", clinicID, phone).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &existing, nil
}

// restorePatient brings a soft-deleted patient back as active.
func restorePatient(db *gorm.DB, patient *models.Patient, fields map[string]interface{}) error {
	fields["deleted_at"] = nil
	fields["is_active"] = true
	if err := db.Unscoped().Model(patient).Updates(fields).Error; err != nil {
		return err
	}
	return db.Where("id = ?", patient.ID).First(patient).Error
}

// CreatePatient registers a patient for the clinic
func (pc *PatientController) CreatePatient(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	userID, ok := utils.UserID(c)
	if !ok {
		return
	}

	var input CreatePatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	if !utils.ValidatePhone(input.Phone) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
		return
	}
	phone := utils.NormalizePhone(input.Phone)

	db := pc.db.WithContext(c.Request.Context())
	existing, err := patientByPhone(db, clinicID, phone)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if existing != nil && !existing.DeletedAt.Valid {
		utils.RespondWithError(c, http.StatusConflict, "Patient with this phone number already exists")
		return
	}

	email := ""
	if input.Email != nil {
		email = *input.Email
	}

	if existing != nil {
		err := restorePatient(db, existing, map[string]interface{}{
			"name":       strings.TrimSpace(input.Name),
			"email":      email,
			"birth_date": input.BirthDate,
			"document":   input.Document,
			"notes":      input.Notes,
		})
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create patient")
			return
		}
		c.JSON(http.StatusCreated, existing)
		return
	}

	patient := models.Patient{
		ClinicID:        clinicID,
		CreatedByUserID: userID,
		Name:            strings.TrimSpace(input.Name),
		Phone:           phone,
		Email:           email,
		BirthDate:       input.BirthDate,
		Document:        input.Document,
		Notes:           input.Notes,
		IsActive:        true,
	}

	if err := db.Create(&patient).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create patient")
		return
	}

	c.JSON(http.StatusCreated, patient)
}

// GetPatients lists clinic patients, optionally filtered by ?search=
func (pc *PatientController) GetPatients(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	page, limit := utils.PageParams(c)

	query := pc.db.WithContext(c.Request.Context()).Model(&models.Patient{}).Where("clinic_id = ?", clinicID)
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR phone LIKE ?", like, like)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve patients")
		return
	}

	var patients []models.Patient
	if err := query.Order("name ASC").Offset((page - 1) * limit).Limit(limit).Find(&patients).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve patients")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       patients,
		"pagination": utils.NewPagination(page, limit, total),
	})
}

// GetPatient retrieves a specific patient by ID
func (pc *PatientController) GetPatient(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	patientID, ok := utils.ParamUUID(c, "id", "patient")
	if !ok {
		return
	}

	var patient models.Patient
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, patientID).
		First(&patient).Error; err != nil {
		respondLookupError(c, err, "Patient not found")
		return
	}

	c.JSON(http.StatusOK, patient)
}

// UpdatePatient applies a partial update
func (pc *PatientController) UpdatePatient(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	patientID, ok := utils.ParamUUID(c, "id", "patient")
	if !ok {
		return
	}

	var input UpdatePatientInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var patient models.Patient
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, patientID).
		First(&patient).Error; err != nil {
		respondLookupError(c, err, "Patient not found")
		return
	}

	if input.Name != nil {
		patient.Name = strings.TrimSpace(*input.Name)
	}
	if input.Phone != nil {
		if !utils.ValidatePhone(*input.Phone) {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
			return
		}
		phone := utils.NormalizePhone(*input.Phone)
		if phone != patient.Phone {
			existing, err := patientByPhone(pc.db.WithContext(c.Request.Context()), clinicID, phone)
			if err != nil {
				utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
				return
			}
			if existing != nil {
				utils.RespondWithError(c, http.StatusConflict, "Another patient with this phone number already exists")
				return
			}
		}
		patient.Phone = phone
	}
	if input.Email != nil {
		patient.Email = *input.Email
	}
	if input.BirthDate != nil {
		patient.BirthDate = input.BirthDate
	}
	if input.Document != nil {
		patient.Document = *input.Document
	}
	if input.Notes != nil {
		patient.Notes = *input.Notes
	}
	if input.IsActive != nil {
		patient.IsActive = *input.IsActive
	}

	if err := pc.db.WithContext(c.Request.Context()).Save(&patient).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update patient")
		return
	}

	c.JSON(http.StatusOK, patient)
}

// DeletePatient soft deletes a patient
func (pc *PatientController) DeletePatient(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	patientID, ok := utils.ParamUUID(c, "id", "patient")
	if !ok {
		return
	}

	result := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, patientID).
		Delete(&models.Patient{})
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete patient")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Patient not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Patient deleted successfully"})
}

func (pc *PatientController) GetAnamnesis(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	patientID, ok := utils.ParamUUID(c, "id", "patient")
	if !ok {
		return
	}

	var anamnesis models.Anamnesis
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND patient_id = ?", clinicID, patientID).
		First(&anamnesis).Error; err != nil {
		respondLookupError(c, err, "Anamnesis not found")
		return
	}

	c.JSON(http.StatusOK, anamnesis)
}

// UpsertAnamnesis writes the patient's single anamnesis record.
func (pc *PatientController) UpsertAnamnesis(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	patientID, ok := utils.ParamUUID(c, "id", "patient")
	if !ok {
		return
	}

	var input AnamnesisInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	db := pc.db.WithContext(c.Request.Context())
	exists, err := belongsToClinic(db, &models.Patient{}, clinicID, patientID)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		utils.RespondWithError(c, http.StatusNotFound, "Patient not found")
		return
	}

	anamnesis := models.Anamnesis{
		ClinicID:    clinicID,
		PatientID:   patientID,
		Allergies:   input.Allergies,
		Medications: input.Medications,
		Conditions:  input.Conditions,
		Smoker:      input.Smoker,
		Pregnant:    input.Pregnant,
		Notes:       input.Notes,
	}
	err = db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "clinic_id"}, {Name: "patient_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"allergies", "medications", "conditions", "smoker", "pregnant", "notes", "updated_at"}),
	}).Create(&anamnesis).Error
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to save anamnesis")
		return
	}

	var saved models.Anamnesis
	if err := db.Where("clinic_id = ? AND patient_id = ?", clinicID, patientID).First(&saved).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}
	c.JSON(http.StatusOK, saved)
}
