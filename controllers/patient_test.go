package controllers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/lcjefferson/cliniflow2026-sub001/internal/testdb"
	"github.com/lcjefferson/cliniflow2026-sub001/models"
)

func patientRouter(db *gorm.DB, clinicID uuid.UUID) *gin.Engine {
	pc := NewPatientController(db)
	r := sessionRouter(clinicID, uuid.New())
	r.POST("/patients", pc.CreatePatient)
	r.PUT("/patients/:id", pc.UpdatePatient)
	r.DELETE("/patients/:id", pc.DeletePatient)
	r.GET("/patients/:id/anamnesis", pc.GetAnamnesis)
	r.PUT("/patients/:id/anamnesis", pc.UpsertAnamnesis)
	return r
}

func TestCreatePatientRestoresDeletedPhone(t *testing.T) {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	r := patientRouter(db, clinic.ID)

	w := doJSON(t, r, http.MethodPost, "/patients", gin.H{"name": "Ana Souza", "phone": "+5511999990001"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first models.Patient
	decode(t, w, &first)

	w = doJSON(t, r, http.MethodPost, "/patients", gin.H{"name": "Ana S.", "phone": "+55 11 99999-0001"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, r, http.MethodDelete, "/patients/"+first.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, r, http.MethodPost, "/patients", gin.H{"name": "Ana Lima", "phone": "+5511999990001"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var restored models.Patient
	decode(t, w, &restored)
	assert.Equal(t, first.ID, restored.ID)
	assert.Equal(t, "Ana Lima", restored.Name)
	assert.True(t, restored.IsActive)

	var count int64
	require.NoError(t, db.Unscoped().Model(&models.Patient{}).Where("clinic_id = ?", clinic.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpdatePatientRejectsPhoneOfDeletedPatient(t *testing.T) {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	gone := testdb.Patient(t, db, clinic.ID, "Bia", "+5511999990002")
	require.NoError(t, db.Delete(&gone).Error)
	ana := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	r := patientRouter(db, clinic.ID)

	w := doJSON(t, r, http.MethodPut, "/patients/"+ana.ID.String(), gin.H{"phone": "+5511999990002"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestUpsertAnamnesisKeepsSingleRecord(t *testing.T) {
	db := testdb.Open(t)
	clinic := testdb.Clinic(t, db, "Sorriso")
	patient := testdb.Patient(t, db, clinic.ID, "Ana", "+5511999990001")
	r := patientRouter(db, clinic.ID)
	path := "/patients/" + patient.ID.String() + "/anamnesis"

	w := doJSON(t, r, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPut, path, gin.H{"allergies": "penicillin", "smoker": true})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var first models.Anamnesis
	decode(t, w, &first)

	w = doJSON(t, r, http.MethodPut, path, gin.H{"allergies": "latex", "medications": "none"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var second models.Anamnesis
	decode(t, w, &second)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "latex", second.Allergies)
	assert.Equal(t, "none", second.Medications)
	assert.False(t, second.Smoker)

	var count int64
	require.NoError(t, db.Model(&models.Anamnesis{}).Where("patient_id = ?", patient.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	w = doJSON(t, r, http.MethodPut, "/patients/"+uuid.NewString()+"/anamnesis", gin.H{"allergies": "x"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
