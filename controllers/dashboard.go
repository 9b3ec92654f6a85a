package controllers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type DashboardOverview struct {
	TotalPatients     int64                 `json:"totalPatients"`
	NewPatientsMonth  int64                 `json:"newPatientsMonth"`
	MonthlyRevenue    float64               `json:"monthlyRevenue"`
	PendingPayments   float64               `json:"pendingPayments"`
	OpenLeads         int64                 `json:"openLeads"`
	TodayAppointments []TodayAppointment    `json:"todayAppointments"`
	RecentPatients    []RecentPatient       `json:"recentPatients"`
	FollowUps         FollowUpStats         `json:"followUps"`
	UpcomingFollowUps []UpcomingFollowUpRow `json:"upcomingFollowUps"`
}

type TodayAppointment struct {
	ID           uuid.UUID `json:"id"`
	Patient      string    `json:"patient"`
	Professional string    `json:"professional"`
	Time         string    `json:"time"`
	Status       string    `json:"status"`
}

type RecentPatient struct {
	Name      string `json:"name"`
	VisitDate string `json:"visitDate"` // "Today", "Yesterday", "3 days ago"
}

// FollowUpStats counts executions created in the last 30 days by status.
type FollowUpStats struct {
	Pending   int64 `json:"pending"`
	Sent      int64 `json:"sent"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
}

type UpcomingFollowUpRow struct {
	Patient      string    `json:"patient"`
	Definition   string    `json:"definition"`
	ScheduledFor time.Time `json:"scheduledFor"`
}

type DashboardController struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDashboardController(db *gorm.DB) *DashboardController {
	return &DashboardController{db: db, now: time.Now}
}

func (dc *DashboardController) GetDashboardOverview(c *gin.Context) {
	clinicID, ok := utils.ClinicID(c)
	if !ok {
		return
	}
	db := dc.db.WithContext(c.Request.Context())

	var clinic models.Clinic
	if err := db.First(&clinic, "id = ?", clinicID).Error; err != nil {
		respondLookupError(c, err, "Clinic not found")
		return
	}
	loc := utils.LoadLocation(clinic.Timezone)
	now := dc.now().In(loc)
	today := utils.BeginningOfDay(now)
	monthStart := utils.BeginningOfMonth(now)

	overview, err := dc.overview(db, clinicID, now, today, monthStart)
	if err != nil {
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to build dashboard")
		return
	}

	c.JSON(http.StatusOK, overview)
}

func (dc *DashboardController) overview(db *gorm.DB, clinicID uuid.UUID, now, today, monthStart time.Time) (*DashboardOverview, error) {
	out := &DashboardOverview{
		TodayAppointments: []TodayAppointment{},
		RecentPatients:    []RecentPatient{},
		UpcomingFollowUps: []UpcomingFollowUpRow{},
	}

	if err := db.Model(&models.Patient{}).Where("clinic_id = ?", clinicID).Count(&out.TotalPatients).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Patient{}).
		Where("clinic_id = ? AND created_at >= ?", clinicID, monthStart.UTC()).
		Count(&out.NewPatientsMonth).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("clinic_id = ? AND status = ? AND paid_at >= ?", clinicID, models.PaymentPaid, monthStart.UTC()).
		Scan(&out.MonthlyRevenue).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Payment{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("clinic_id = ? AND status = ?", clinicID, models.PaymentPending).
		Scan(&out.PendingPayments).Error; err != nil {
		return nil, err
	}

	if err := db.Model(&models.Lead{}).
		Where("clinic_id = ? AND status IN ?", clinicID, []string{models.LeadNew, models.LeadContacted, models.LeadQualified}).
		Count(&out.OpenLeads).Error; err != nil {
		return nil, err
	}

	var appointments []models.Appointment
	if err := db.Preload("Patient").Preload("Professional").
		Where("clinic_id = ? AND starts_at >= ? AND starts_at < ?", clinicID, today.UTC(), today.AddDate(0, 0, 1).UTC()).
		Order("starts_at ASC").
		Find(&appointments).Error; err != nil {
		return nil, err
	}
	for _, a := range appointments {
		out.TodayAppointments = append(out.TodayAppointments, TodayAppointment{
			ID:           a.ID,
			Patient:      a.Patient.Name,
			Professional: a.Professional.Name,
			Time:         a.StartsAt.In(now.Location()).Format("15:04"),
			Status:       a.Status,
		})
	}

	var recent []models.Patient
	if err := db.Where("clinic_id = ? AND last_visit IS NOT NULL", clinicID).
		Order("last_visit DESC").
		Limit(3).
		Find(&recent).Error; err != nil {
		return nil, err
	}
	for _, p := range recent {
		out.RecentPatients = append(out.RecentPatients, RecentPatient{
			Name:      p.Name,
			VisitDate: visitLabel(utils.DaysBetween(p.LastVisit.In(now.Location()), now)),
		})
	}

	var counts []struct {
		Status models.ExecutionStatus
		Count  int64
	}
	if err := db.Model(&models.FollowUpExecution{}).
		Select("status, COUNT(*) AS count").
		Where("clinic_id = ? AND created_at >= ?", clinicID, now.AddDate(0, 0, -30).UTC()).
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	for _, row := range counts {
		switch row.Status {
		case models.ExecutionPending, models.ExecutionClaimed:
			out.FollowUps.Pending += row.Count
		case models.ExecutionSent:
			out.FollowUps.Sent = row.Count
		case models.ExecutionFailed:
			out.FollowUps.Failed = row.Count
		case models.ExecutionCancelled:
			out.FollowUps.Cancelled = row.Count
		}
	}

	var upcoming []models.FollowUpExecution
	if err := db.Preload("Patient").Preload("Definition").
		Where("clinic_id = ? AND status = ?", clinicID, models.ExecutionPending).
		Order("scheduled_for ASC").
		Limit(5).
		Find(&upcoming).Error; err != nil {
		return nil, err
	}
	for _, e := range upcoming {
		out.UpcomingFollowUps = append(out.UpcomingFollowUps, UpcomingFollowUpRow{
			Patient:      e.Patient.Name,
			Definition:   e.Definition.Name,
			ScheduledFor: e.ScheduledFor,
		})
	}

	return out, nil
}

func visitLabel(daysAgo int) string {
	switch daysAgo {
	case 0:
		return "Today"
	case 1:
		return "Yesterday"
	default:
		return fmt.Sprintf("%d days ago", daysAgo)
	}
}
