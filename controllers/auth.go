package controllers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
	"github.com/lcjefferson/cliniflow2026-sub001/services"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

type RegisterInput struct {
	Email         string       `json:"email" binding:"required,email"`
	Phone         string       `json:"phone" binding:"required"`
	Name          string       `json:"name" binding:"required"`
	Password      string       `json:"password" binding:"required,min=8"`
	ClinicName    string       `json:"clinicName" binding:"required"`
	ClinicAddress string       `json:"clinicAddress"`
	Timezone      string       `json:"timezone"`
	WorkingHours  models.JSONB `json:"workingHours"`
}

type LoginInput struct {
	Identifier string `json:"identifier"` // email or phone
	Password   string `json:"password"`
}

// SessionConfig controls how session tokens are issued.
type SessionConfig struct {
	Secret       string
	TTL          time.Duration
	SecureCookie bool
}

type AuthController struct {
	db      *gorm.DB
	auth    *services.AuthService
	session SessionConfig
	log     zerolog.Logger
}

func NewAuthController(db *gorm.DB, auth *services.AuthService, session SessionConfig, log zerolog.Logger) *AuthController {
	return &AuthController{db: db, auth: auth, session: session, log: log}
}

func (ac *AuthController) Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input: "+err.Error())
		return
	}
	if !utils.ValidatePhone(input.Phone) {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid phone number format")
		return
	}
	if input.Timezone != "" {
		if _, err := time.LoadLocation(input.Timezone); err != nil {
			utils.RespondWithError(c, http.StatusBadRequest, "Invalid timezone")
			return
		}
	}

	user, err := ac.auth.RegisterClinic(c.Request.Context(), services.RegisterParams{
		Email:         input.Email,
		Password:      input.Password,
		Name:          input.Name,
		Phone:         input.Phone,
		ClinicName:    input.ClinicName,
		ClinicAddress: input.ClinicAddress,
		Timezone:      input.Timezone,
		WorkingHours:  input.WorkingHours,
	})
	if errors.Is(err, services.ErrEmailTaken) {
		utils.RespondWithError(c, http.StatusConflict, "Email already registered")
		return
	}
	if err != nil {
		ac.log.Error().Err(err).Msg("register clinic")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to create account")
		return
	}

	token, ok := ac.issueSession(c, user)
	if !ok {
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Registration successful",
		"token":   token,
		"user":    userView(user),
	})
}

func (ac *AuthController) Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		utils.RespondWithError(c, http.StatusBadRequest, "Invalid input")
		return
	}

	result, err := ac.auth.Authenticate(c.Request.Context(), input.Identifier, input.Password)
	if err != nil {
		ac.log.Error().Err(err).Msg("authenticate")
		utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
		return
	}

	switch result.Failure {
	case services.AuthFailureNone:
	case services.AuthFailureMissingCredentials:
		utils.RespondWithError(c, http.StatusBadRequest, "Identifier and password are required")
		return
	case services.AuthFailureInactiveAccount:
		utils.RespondWithError(c, http.StatusForbidden, "Account is inactive")
		return
	default:
		utils.RespondWithError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, ok := ac.issueSession(c, result.User)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user":  userView(result.User),
	})
}

func (ac *AuthController) Me(c *gin.Context) {
	userID, ok := utils.UserID(c)
	if !ok {
		return
	}

	var user models.User
	if err := ac.db.WithContext(c.Request.Context()).Preload("Clinic").First(&user, "id = ?", userID).Error; err != nil {
		utils.RespondWithError(c, http.StatusUnauthorized, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": userView(&user)})
}

func (ac *AuthController) Logout(c *gin.Context) {
	c.SetCookie(utils.SessionCookie, "", -1, "/", "", ac.session.SecureCookie, true)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

func (ac *AuthController) issueSession(c *gin.Context, user *models.User) (string, bool) {
	token, err := utils.GenerateToken(user.ID.String(), user.ClinicID.String(), user.Role, ac.session.Secret, ac.session.TTL)
	if err != nil {
		ac.log.Error().Err(err).Msg("generate token")
		utils.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token")
		return "", false
	}
	c.SetCookie(utils.SessionCookie, token, int(ac.session.TTL.Seconds()), "/", "", ac.session.SecureCookie, true)
	return token, true
}

func userView(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"name":       u.Name,
		"phone":      u.Phone,
		"role":       u.Role,
		"clinicId":   u.ClinicID,
		"clinicName": u.Clinic.Name,
	}
}
