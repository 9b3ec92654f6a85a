// controllers/payment.go
package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type CreatePaymentInput struct {
	PatientID     uuid.UUID  `json:"patientId" binding:"required"`
	AppointmentID *uuid.UUID `json:"appointmentId"`
	Amount        float64    `json:"amount" binding:"required,gt=0"`
	Method        string     `json:"method" binding:"omitempty,oneof=cash pix credit_card debit_card transfer insurance"`
	Status        string     `json:"status" binding:"omitempty,oneof=pending paid refunded"`
	DueDate       *time.Time `json:"dueDate"`
	Installments  int        `json:"installments" binding:"omitempty,min=1,max=24"`
	Notes         string     `json:"notes"`
}

type UpdatePaymentInput struct {
	Amount       *float64   `json:"amount" binding:"omitempty,gt=0"`
	Method       *string    `json:"method" binding:"omitempty,oneof=cash pix credit_card debit_card transfer insurance"`
	Status       *string    `json:"status" binding:"omitempty,oneof=pending paid refunded"`
	DueDate      *time.Time `json:"dueDate"`
	Installments *int       `json:"installments" binding:"omitempty,min=1,max=24"`
	Notes        *string    `json:"notes"`
}

// PaymentSummary is the revenue overview for a period.
type PaymentSummary struct {
	From         time.Time `json:"from"`
	To           time.Time `json:"to"`
	Received     float64   `json:"received"`
	Pending      float64   `json:"pending"`
	Refunded     float64   `json:"refunded"`
	PaymentCount int64     `json:"paymentCount"`
	Overdue      int64     `json:"overdue"`
}

type PaymentController struct {
	db *gorm.DB
}

func NewPaymentController(db *gorm.DB) *PaymentController {
	return &PaymentController{db: db}
}

func (pc *PaymentController) CreatePayment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	userID, ok := utils.UserID(c)
	if !ok {
		return
	}

	var input CreatePaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	db := pc.db.WithContext(c.Request.Context())
	exists, err := belongsToClinic(db, &models.Patient{}, clinicID, input.PatientID)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}
	if !exists {
		utils.RespondWithError(c, http.StatusBadRequest, "Patient not found")
		return
	}
	if input.AppointmentID != nil {
		exists, err := belongsToClinic(db, &models.Appointment{}, clinicID, *input.AppointmentID)
		if err != nil {
			utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
			return
		}
		if !exists {
			utils.RespondWithError(c, http.StatusBadRequest, "Appointment not found")
			return
		}
	}

	payment := models.Payment{
		ClinicID:        clinicID,
		CreatedByUserID: userID,
		PatientID:       input.PatientID,
		AppointmentID:   input.AppointmentID,
		Amount:          input.Amount,
		Method:          input.Method,
		Status:          input.Status,
		DueDate:         input.DueDate,
		Installments:    input.Installments,
		Notes:           input.Notes,
	}
	if payment.Status == "" {
		payment.Status = models.PaymentPending
	}
	if payment.Installments == 0 {
		payment.Installments = 1
	}
	if payment.Status == models.PaymentPaid {
		now := time.Now()
		payment.PaidAt = &now
	}

	if err := db.Create(&payment).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create payment")
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// GetPayments lists payments; filters: status, patientId
func (pc *PaymentController) GetPayments(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	page, limit := utils.PageParams(c)

	query := pc.db.WithContext(c.Request.Context()).Model(&models.Payment{}).Where("clinic_id = ?", clinicID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if v := c.Query("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid patient ID format")
			return
		}
		query = query.Where("patient_id = ?", id)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve payments")
		return
	}

	var payments []models.Payment
	if err := query.Order("created_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&payments).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to retrieve payments")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":       payments,
		"pagination": utils.NewPagination(page, limit, total),
	})
}

func (pc *PaymentController) GetPayment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	paymentID, ok := utils.ParamUUID(c, "id", "payment")
	if !ok {
		return
	}

	var payment models.Payment
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, paymentID).
		First(&payment).Error; err != nil {
		respondLookupError(c, err, "Payment not found")
		return
	}

	c.JSON(http.StatusOK, payment)
}

func (pc *PaymentController) UpdatePayment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	paymentID, ok := utils.ParamUUID(c, "id", "payment")
	if !ok {
		return
	}

	var input UpdatePaymentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}

	var payment models.Payment
	if err := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, paymentID).
		First(&payment).Error; err != nil {
		respondLookupError(c, err, "Payment not found")
		return
	}

	if input.Amount != nil {
		payment.Amount = *input.Amount
	}
	if input.Method != nil {
		payment.Method = *input.Method
	}
	if input.Status != nil && *input.Status != payment.Status {
		payment.Status = *input.Status
		if payment.Status == models.PaymentPaid {
			now := time.Now()
			payment.PaidAt = &now
		}
	}
	if input.DueDate != nil {
		payment.DueDate = input.DueDate
	}
	if input.Installments != nil {
		payment.Installments = *input.Installments
	}
	if input.Notes != nil {
		payment.Notes = *input.Notes
	}

	if err := pc.db.WithContext(c.Request.Context()).Save(&payment).Error; err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to update payment")
		return
	}

	c.JSON(http.StatusOK, payment)
}

func (pc *PaymentController) DeletePayment(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	paymentID, ok := utils.ParamUUID(c, "id", "payment")
	if !ok {
		return
	}

	result := pc.db.WithContext(c.Request.Context()).
		Where("clinic_id = ? AND id = ?", clinicID, paymentID).
		Delete(&models.Payment{})
	if result.Error != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to delete payment")
		return
	}
	if result.RowsAffected == 0 {
		utils.RespondWithError(c, http.StatusNotFound, "Payment not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Payment deleted successfully"})
}

// GetPaymentSummary totals payments created in [from, to). Defaults to the
// current month.
func (pc *PaymentController) GetPaymentSummary(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}

	now := time.Now().UTC()
	from := utils.BeginningOfMonth(now)
	to := from.AddDate(0, 1, 0)
	if v := c.Query("from"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD")
			return
		}
		from = t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse("2006-01-02", v)
		if err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD")
			return
		}
		to = t.AddDate(0, 0, 1)
	}

	summary, err := paymentSummary(pc.db.WithContext(c.Request.Context()), clinicID, from, to, now)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to compute summary")
		return
	}
	c.JSON(http.StatusOK, summary)
}

func paymentSummary(db *gorm.DB, clinicID uuid.UUID, from, to, now time.Time) (PaymentSummary, error) {
	summary := PaymentSummary{From: from, To: to}

	var rows []struct {
		Status string
		Total  float64
		Count  int64
	}
	err := db.Model(&models.Payment{}).
		Select("status, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("clinic_id = ? AND created_at >= ? AND created_at < ?", clinicID, from, to).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return summary, err
	}
	for _, r := range rows {
		summary.PaymentCount += r.Count
		switch r.Status {
		case models.PaymentPaid:
			summary.Received = r.Total
		case models.PaymentPending:
			summary.Pending = r.Total
		case models.PaymentRefunded:
			summary.Refunded = r.Total
		}
	}

	err = db.Model(&models.Payment{}).
		Where("clinic_id = ? AND status = ? AND due_date < ?", clinicID, models.PaymentPending, now).
		Count(&summary.Overdue).Error
	return summary, err
}
