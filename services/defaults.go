package services

import (
	"github.com/google/uuid"

	"github.com/lcjefferson/cliniflow2026-sub001/models"
)

// DefaultFollowUpDefinitions is the starter set every new clinic gets.
func DefaultFollowUpDefinitions(clinicID uuid.UUID) []models.FollowUpDefinition {
	return []models.FollowUpDefinition{
		{
			ClinicID:        clinicID,
			Name:            "Lembrete 24h",
			TriggerEvent:    models.TriggerAppointmentScheduled,
			OffsetMinutes:   -24 * 60,
			Channel:         models.ChannelAuto,
			MessageTemplate: "Olá {{patient_first_name}}, lembramos da sua consulta com {{professional_name}} amanhã, {{appointment_date}} às {{appointment_time}}. {{clinic_name}}",
			IsActive:        true,
		},
		{
			ClinicID:        clinicID,
			Name:            "Lembrete 2h",
			TriggerEvent:    models.TriggerAppointmentScheduled,
			OffsetMinutes:   -2 * 60,
			Channel:         models.ChannelAuto,
			MessageTemplate: "Olá {{patient_first_name}}, sua consulta é hoje às {{appointment_time}}. Até logo! {{clinic_name}}",
			IsActive:        true,
		},
		{
			ClinicID:        clinicID,
			Name:            "Pós-consulta",
			TriggerEvent:    models.TriggerAppointmentCompleted,
			OffsetMinutes:   3 * 24 * 60,
			Channel:         models.ChannelAuto,
			MessageTemplate: "Olá {{patient_first_name}}, como você está após a consulta com {{professional_name}}? Qualquer dúvida, fale com a {{clinic_name}}.",
			IsActive:        true,
		},
	}
}
