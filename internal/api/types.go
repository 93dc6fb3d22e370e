package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/offday"
)

type CreateAppointmentRequest struct {
	StudentID       string  `json:"studentId" validate:"required,uuid"`
	Date            string  `json:"date" validate:"required,datetime=2006-01-02"`
	AppointmentType string  `json:"appointmentType" validate:"required,slot_kind"`
	Notes           *string `json:"notes" validate:"omitempty,max=1000"`
}

type CancelAppointmentRequest struct {
	Reason *string `json:"reason" validate:"omitempty,max=500"`
}

type OffDayRequest struct {
	Date           string   `json:"date" validate:"required,datetime=2006-01-02"`
	IsRecurring    bool     `json:"isRecurring"`
	RecurringUntil *string  `json:"recurringUntil" validate:"omitempty,datetime=2006-01-02"`
	DisabledSlots  []string `json:"disabledSlots" validate:"required,min=1,dive,slot_kind"`
	Reason         *string  `json:"reason" validate:"omitempty,max=255"`
}

type StudentResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email *string   `json:"email,omitempty"`
}

type AppointmentResponse struct {
	ID              uuid.UUID        `json:"id"`
	StudentID       uuid.UUID        `json:"studentId"`
	Date            string           `json:"date"`
	AppointmentType string           `json:"appointmentType"`
	Status          string           `json:"status"`
	Notes           *string          `json:"notes,omitempty"`
	CancelReason    *string          `json:"cancelReason,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	ExpiresAt       *time.Time       `json:"expiresAt,omitempty"`
	Student         *StudentResponse `json:"student,omitempty"`
}

type AvailabilityResponse struct {
	Date      string `json:"date"`
	Type      string `json:"type"`
	Available bool   `json:"available"`
}

type OffDayResponse struct {
	ID             uuid.UUID `json:"id"`
	Date           string    `json:"date"`
	IsRecurring    bool      `json:"isRecurring"`
	RecurringUntil *string   `json:"recurringUntil,omitempty"`
	DisabledSlots  []string  `json:"disabledSlots"`
	Reason         *string   `json:"reason,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type OccurrenceResponse struct {
	OffDayID     uuid.UUID `json:"offDayId"`
	Date         string    `json:"date"`
	BlockedSlots []string  `json:"blockedSlots"`
	Reason       *string   `json:"reason,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		StudentID:       a.StudentID,
		Date:            a.Date.String(),
		AppointmentType: string(a.Type),
		Status:          string(a.Status),
		Notes:           a.Notes,
		CancelReason:    a.CancelReason,
		CreatedAt:       a.CreatedAt,
		ExpiresAt:       a.ExpiresAt,
	}
}

func toAppointmentResponses(list []appointment.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, len(list))
	for i, a := range list {
		out[i] = toAppointmentResponse(a)
	}
	return out
}

func toOffDayResponse(o offday.OffDay) OffDayResponse {
	resp := OffDayResponse{
		ID:            o.ID,
		Date:          o.Date.String(),
		IsRecurring:   o.IsRecurring,
		DisabledSlots: kindStrings(o.DisabledSlots),
		Reason:        o.Reason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	if o.RecurringUntil != nil {
		until := o.RecurringUntil.String()
		resp.RecurringUntil = &until
	}
	return resp
}

func kindStrings(kinds []availability.SlotKind) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = string(k)
	}
	return out
}
