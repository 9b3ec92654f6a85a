package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/store"
	"github.com/lcjefferson/cliniflow2026-sub001/utils"
)

// respondLookupError maps a failed single-record lookup to 404 or 500.
func respondLookupError(c *gin.Context, err error, notFound string) {
	if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, store.ErrNotFound) {
		utils.RespondWithError(c, http.StatusNotFound, notFound)
		return
	}
	utils.RespondWithError(c, http.StatusInternalServerError, "Database error")
}

// belongsToClinic checks that id names a live row of model in the clinic.
func belongsToClinic(db *gorm.DB, model interface{}, clinicID, id interface{}) (bool, error) {
	var count int64
	err := db.Model(model).Where("clinic_id = ? AND id = ?", clinicID, id).Count(&count).Error
	return count > 0, err
}
