package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type CreateProfessionalInput struct {
	Name               string     `json:"name" binding:"required"`
	UserID             *uuid.UUID `json:"userId"`
	Specialty          string     `json:"specialty"`
	RegistrationNumber string     `json:"registrationNumber"`
	Phone              string     `json:"phone"`
	Email              string     `json:"email"`
	Color              string     `json:"color" binding:"omitempty,max=10"`
}

type UpdateProfessionalInput struct {
	Name               *string `json:"name"`
	Specialty          *string `json:"specialty"`
	RegistrationNumber *string `json:"registrationNumber"`
	Phone              *string `json:"phone"`
	Email              *string `json:"email"`
	Color              *string `json:"color" binding:"omitempty,max=10"`
	IsActive           *bool   `json:"isActive"`
}

type ProfessionalController struct {
	db *gorm.DB
}

func NewProfessionalController(db *gorm.DB) *ProfessionalController {
	return &ProfessionalController{db: db}
}

func (pc *ProfessionalController) CreateProfessional(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input CreateProfessionalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	db := pc.db.WithContext(c.Request.Context())
	if input.UserID != nil {
		exists, err := belongsToClinic(db, &models.User{}, clinicID, *input.UserID)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
			return
		}
		if !exists {
			utils.RespondWithError(c, http.StatusBadRequest, "User not found")
			return
		}
	}

	professional := models.Professional{
		ClinicID:           clinicID,
		UserID:             input.UserID,
		Name:               input.Name,
		Specialty:          input.Specialty,
		RegistrationNumber: input.RegistrationNumber,
		Phone:              utils.NormalizePhone(input.Phone),
		Email:              input.Email,
		Color:              input.Color,
		IsActive:           true,
	}
	if err := db.Create(&professional).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create professional")
		return
	}

	c.JSON(http.StatusCreated, professional)
}

func (pc *ProfessionalController) GetProfessionals(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var professionals []models.Professional
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ?", clinicID).
		Order("name ASC").
		Find(&professionals).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve professionals")
		return
	}

	c.JSON(http.StatusOK, professionals)
}

func (pc *ProfessionalController) GetProfessional(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	professionalID, ok := utils.ParamUUID(c, "id", "professional")
	if !ok {
		return
	}

	var professional models.Professional
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, professionalID).
		First(&professional).Error; err != nil {
		respondLookupError(c, err, "Professional not found")
		return
	}

	c.JSON(http.StatusOK, professional)
}

func (pc *ProfessionalController) UpdateProfessional(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	professionalID, ok := utils.ParamUUID(c, "id", "professional")
	if !ok {
		return
	}

	var input UpdateProfessionalInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var professional models.Professional
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, professionalID).
		First(&professional).Error; err != nil {
		respondLookupError(c, err, "Professional not found")
		return
	}

	if input.Name != nil {
		professional.Name = *input.Name
	}
	if input.Specialty != nil {
		professional.Specialty = *input.Specialty
	}
	if input.RegistrationNumber != nil {
		professional.RegistrationNumber = *input.RegistrationNumber
	}
	if input.Phone != nil {
		professional.Phone = utils.NormalizePhone(*input.Phone)
	}
	if input.Email != nil {
		professional.Email = *input.Email
	}
	if input.Color != nil {
		professional.Color = *input.Color
	}
	if input.IsActive != nil {
		professional.IsActive = *input.IsActive
	}

	if err := pc.db.WithContext(c.Request.Context()).Save(&professional).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update professional")
		return
	}

	c.JSON(http.StatusOK, professional)
}

func (pc *ProfessionalController) DeleteProfessional(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	professionalID, ok := utils.ParamUUID(c, "id", "professional")
	if !ok {
		return
	}

	result := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, professionalID).
		Delete(&models.Professional{})
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete professional")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Professional not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Professional deleted successfully"})
}
