package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/appointment"
	"github.com/hackgods/training-appointments/internal/availability"
)

func createAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}

		// validated above
		studentID, _ := uuid.Parse(req.StudentID)
		kind, _ := availability.ParseSlotKind(req.AppointmentType)
		date, err := parseDate(req.Date, "date")
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
			return
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.NewAppointment{
			StudentID: studentID,
			Date:      date,
			Type:      kind,
			Notes:     req.Notes,
		})
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(*appt))
	}
}

func confirmAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := svc.ConfirmAppointment(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func cancelAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		var req CancelAppointmentRequest
		// the body is optional
		if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
			return
		}

		appt, err := svc.CancelAppointment(r.Context(), id, req.Reason)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func getAppointmentHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_appointment_id")
		if !ok {
			return
		}

		detail, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		resp := toAppointmentResponse(detail.Appointment)
		if detail.Student != nil {
			resp.Student = &StudentResponse{
				ID:    detail.Student.ID,
				Name:  detail.Student.Name,
				Email: detail.Student.Email,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func listAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, ok := parseDateQuery(w, r, "startDate")
		if !ok {
			return
		}
		end, ok := parseDateQuery(w, r, "endDate")
		if !ok {
			return
		}

		includeCancelled := false
		if raw := r.URL.Query().Get("includeCancelled"); raw != "" {
			v, err := strconv.ParseBool(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_includeCancelled", "includeCancelled must be a boolean")
				return
			}
			includeCancelled = v
		}

		list, err := svc.ListAppointments(r.Context(), appointment.ListFilter{
			Start:            start,
			End:              end,
			IncludeCancelled: includeCancelled,
		})
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func listStudentAppointmentsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		studentID, ok := parseIDParam(w, r, "invalid_student_id")
		if !ok {
			return
		}

		limit, err := queryInt(r, "limit", 20)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_limit", err.Error())
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_offset", err.Error())
			return
		}

		list, err := svc.ListAppointmentsByStudent(r.Context(), studentID, limit, offset)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(list))
	}
}

func checkAvailabilityHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		date, ok := parseDateQuery(w, r, "date")
		if !ok {
			return
		}
		kind, err := availability.ParseSlotKind(r.URL.Query().Get("type"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_type", "type must be one of morning, afternoon, full_day")
			return
		}

		available, err := svc.CheckAvailability(r.Context(), date, kind)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, AvailabilityResponse{
			Date:      date.String(),
			Type:      string(kind),
			Available: available,
		})
	}
}

func availableSlotsHandler(svc AppointmentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, ok := parseDateQuery(w, r, "startDate")
		if !ok {
			return
		}
		end, ok := parseDateQuery(w, r, "endDate")
		if !ok {
			return
		}

		days, err := svc.AvailableSlots(r.Context(), start, end)
		if err != nil {
			handleAppointmentError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, days)
	}
}

func handleAppointmentError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, appointment.ErrStudentNotFound):
		writeError(w, http.StatusNotFound, "student_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrDateInPast):
		writeError(w, http.StatusBadRequest, "date_in_past", err.Error())
	case errors.Is(err, appointment.ErrDateNotBookable):
		writeError(w, http.StatusBadRequest, "date_not_bookable", err.Error())
	case errors.Is(err, appointment.ErrInvalidSlotKind):
		writeError(w, http.StatusBadRequest, "invalid_appointment_type", err.Error())
	case errors.Is(err, appointment.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, appointment.ErrRangeTooLarge):
		writeError(w, http.StatusBadRequest, "range_too_large", err.Error())
	case errors.Is(err, appointment.ErrSlotUnavailable):
		writeError(w, http.StatusConflict, "slot_unavailable", err.Error())
	case errors.Is(err, appointment.ErrSlotBeingBooked):
		writeError(w, http.StatusConflict, "slot_being_booked", "date is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrAppointmentExpiredState):
		writeError(w, http.StatusConflict, "appointment_expired", err.Error())
	case errors.Is(err, appointment.ErrInvalidStatusTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	default:
		LoggerFrom(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
