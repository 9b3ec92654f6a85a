// controllers/service.go
package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// CreateServiceInput defines the expected JSON structure for creating a service
type CreateServiceInput struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Price       float64 `json:"price" binding:"min=0"`
	Duration    int     `json:"duration" binding:"min=0"` // in minutes
	Category    string  `json:"category"`
}

// UpdateServiceInput defines the expected JSON structure for updating a service
type UpdateServiceInput struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Price       *float64 `json:"price" binding:"omitempty,min=0"`
	Duration    *int     `json:"duration" binding:"omitempty,min=0"`
	Category    *string  `json:"category"`
	IsActive    *bool    `json:"isActive"`
}

type ServiceController struct {
	db *gorm.DB
}

func NewServiceController(db *gorm.DB) *ServiceController {
	return &ServiceController{db: db}
}

// CreateService adds a procedure to the clinic catalogue
func (sc *ServiceController) CreateService(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	var input CreateServiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	service := models.Service{
		ClinicID:    clinicID,
		Name:        input.Name,
		Description: input.Description,
		Price:       input.Price,
		Duration:    input.Duration,
		Category:    input.Category,
		IsActive:    true,
	}

	if err := sc.db.WithContext(c.Request.Context()).Create(&service).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create service")
		return
	}

	c.JSON(http.StatusCreated, service)
}

// GetServices lists the catalogue; ?active=true hides disabled entries
func (sc *ServiceController) GetServices(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	query := sc.db.WithContext(c.Request.Context()).Where("clinic_id = ?", clinicID)
	if c.Query("active") == "true" {
		query = query.Where("is_active = ?", true)
	}

	var services []models.Service
	if err := query.Order("category ASC, name ASC").Find(&services).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve services")
		return
	}

	c.JSON(http.StatusOK, services)
}

func (sc *ServiceController) GetService(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	serviceID, ok := utils.ParamUUID(c, "id", "service")
	if !ok {
		return
	}

	var service models.Service
	if err := sc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, serviceID).
		First(&service).Error; err != nil {
		respondLookupError(c, err, "Service not found")
		return
	}

	c.JSON(http.StatusOK, service)
}

func (sc *ServiceController) UpdateService(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	serviceID, ok := utils.ParamUUID(c, "id", "service")
	if !ok {
		return
	}

	var input UpdateServiceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var service models.Service
	if err := sc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, serviceID).
		First(&service).Error; err != nil {
		respondLookupError(c, err, "Service not found")
		return
	}

	if input.Name != nil {
		service.Name = *input.Name
	}
	if input.Description != nil {
		service.Description = *input.Description
	}
	if input.Price != nil {
		service.Price = *input.Price
	}
	if input.Duration != nil {
		service.Duration = *input.Duration
	}
	if input.Category != nil {
		service.Category = *input.Category
	}
	if input.IsActive != nil {
		service.IsActive = *input.IsActive
	}

	if err := sc.db.WithContext(c.Request.Context()).Save(&service).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update service")
		return
	}

	c.JSON(http.StatusOK, service)
}

// DeleteService soft deletes a service
func (sc *ServiceController) DeleteService(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	serviceID, ok := utils.ParamUUID(c, "id", "service")
	if !ok {
		return
	}

	result := sc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, serviceID).
		Delete(&models.Service{})
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete service")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Service not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Service deleted successfully"})
}
