package routes

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/config"
	"github.com/lcjefferson/cliniflow2026-sub001/controllers"
	"github.com/lcjefferson/cliniflow2026-sub001/services"
	"github.com/lcjefferson/cliniflow2026-sub001/store"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// Dependencies is everything the HTTP layer needs. All of it is built once in
// the serve command.
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	Log         zerolog.Logger
	Runner      controllers.FollowUpRunner
	Definitions store.DefinitionStore
	Executions  store.ExecutionStore
	Generator   *services.FollowUpGenerator
}

func SetupRouter(deps Dependencies) *gin.Engine {
	cfg := deps.Config
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())

	origins := make(map[string]bool, len(cfg.CORSOrigins))
	for _, o := range cfg.CORSOrigins {
		origins[o] = true
	}
	r.Use(cors.New(cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		AllowOriginFunc:  func(origin string) bool { return origins[origin] },
		MaxAge:           12 * time.Hour,
	}))

	r.Use(config.RequestLogger(deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authRequired := utils.AuthMiddleware(cfg.JWTSecret)

	authController := controllers.NewAuthController(deps.DB, services.NewAuthService(deps.DB), controllers.SessionConfig{
		Secret:       cfg.JWTSecret,
		TTL:          cfg.SessionTTL(),
		SecureCookie: cfg.IsProduction(),
	}, deps.Log)

	auth := r.Group("/auth")
	{
		auth.POST("/register", authController.Register)
		auth.POST("/login", authController.Login)
		auth.POST("/logout", authController.Logout)
		auth.GET("/me", authRequired, authController.Me)
	}

	// Time-triggered endpoints authenticate with the cron secret, not a session.
	cronController := controllers.NewCronController(deps.Runner, deps.Log)
	cron := r.Group("/api/cron", utils.TrustedInvocation(cfg.CronSecret))
	{
		cron.POST("/process-followups", cronController.ProcessFollowUps)
		cron.GET("/process-followups", cronController.ProcessFollowUps)
	}

	api := r.Group("/api")
	api.Use(authRequired)
	{
		patientController := controllers.NewPatientController(deps.DB)
		patients := api.Group("/patients")
		{
			patients.POST("", patientController.CreatePatient)
			patients.GET("", patientController.GetPatients)
			patients.GET("/:id", patientController.GetPatient)
			patients.PUT("/:id", patientController.UpdatePatient)
			patients.DELETE("/:id", patientController.DeletePatient)
			patients.GET("/:id/anamnesis", patientController.GetAnamnesis)
			patients.PUT("/:id/anamnesis", patientController.UpsertAnamnesis)
		}

		professionalController := controllers.NewProfessionalController(deps.DB)
		professionals := api.Group("/professionals")
		{
			professionals.POST("", professionalController.CreateProfessional)
			professionals.GET("", professionalController.GetProfessionals)
			professionals.GET("/:id", professionalController.GetProfessional)
			professionals.PUT("/:id", professionalController.UpdateProfessional)
			professionals.DELETE("/:id", professionalController.DeleteProfessional)
		}

		serviceController := controllers.NewServiceController(deps.DB)
		services := api.Group("/services")
		{
			services.POST("", serviceController.CreateService)
			services.GET("", serviceController.GetServices)
			services.GET("/:id", serviceController.GetService)
			services.PUT("/:id", serviceController.UpdateService)
			services.DELETE("/:id", serviceController.DeleteService)
		}

		appointmentController := controllers.NewAppointmentController(deps.DB, deps.Generator, deps.Log)
		appointments := api.Group("/appointments")
		{
			appointments.POST("", appointmentController.CreateAppointment)
			appointments.GET("", appointmentController.GetAppointments)
			appointments.GET("/:id", appointmentController.GetAppointment)
			appointments.PUT("/:id", appointmentController.UpdateAppointment)
			appointments.DELETE("/:id", appointmentController.DeleteAppointment)
			appointments.POST("/:id/cancel", appointmentController.CancelAppointment)
			appointments.POST("/:id/complete", appointmentController.CompleteAppointment)
		}

		paymentController := controllers.NewPaymentController(deps.DB)
		payments := api.Group("/payments")
		{
			payments.POST("", paymentController.CreatePayment)
			payments.GET("", paymentController.GetPayments)
			payments.GET("/summary", paymentController.GetPaymentSummary)
			payments.GET("/:id", paymentController.GetPayment)
			payments.PUT("/:id", paymentController.UpdatePayment)
			payments.DELETE("/:id", paymentController.DeletePayment)
		}

		leadController := controllers.NewLeadController(deps.DB)
		leads := api.Group("/leads")
		{
			leads.POST("", leadController.CreateLead)
			leads.GET("", leadController.GetLeads)
			leads.GET("/:id", leadController.GetLead)
			leads.PUT("/:id", leadController.UpdateLead)
			leads.DELETE("/:id", leadController.DeleteLead)
			leads.POST("/:id/convert", leadController.ConvertLead)
		}
		conversations := api.Group("/conversations")
		{
			conversations.POST("", leadController.CreateConversation)
			conversations.GET("", leadController.GetConversations)
			conversations.GET("/:id", leadController.GetConversation)
			conversations.POST("/:id/messages", leadController.AddMessage)
		}

		followUpController := controllers.NewFollowUpController(deps.DB, deps.Definitions, deps.Executions, deps.Generator, deps.Log)
		followups := api.Group("/followups")
		{
			followups.POST("/definitions", followUpController.CreateDefinition)
			followups.GET("/definitions", followUpController.GetDefinitions)
			followups.GET("/definitions/:id", followUpController.GetDefinition)
			followups.PUT("/definitions/:id", followUpController.UpdateDefinition)
			followups.DELETE("/definitions/:id", followUpController.DeleteDefinition)

			followups.GET("/executions", followUpController.GetExecutions)
			followups.POST("/executions", followUpController.ScheduleExecution)
			followups.GET("/executions/:id", followUpController.GetExecution)
			followups.POST("/executions/:id/cancel", followUpController.CancelExecution)
		}

		settingsController := controllers.NewSettingsController(deps.DB)
		api.GET("/settings", settingsController.GetSettings)
		api.PUT("/settings", settingsController.UpdateSettings)

		dashboardController := controllers.NewDashboardController(deps.DB)
		api.GET("/dashboard", dashboardController.GetDashboardOverview)
	}

	return r
}
