package api

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hackgods/training-appointments/internal/availability"
	"github.com/hackgods/training-appointments/internal/offday"
)

func offDayInput(req OffDayRequest) (offday.Input, error) {
	date, err := parseDate(req.Date, "date")
	if err != nil {
		return offday.Input{}, err
	}

	in := offday.Input{
		Date:        date,
		IsRecurring: req.IsRecurring,
		Reason:      req.Reason,
	}
	if req.RecurringUntil != nil {
		until, err := parseDate(*req.RecurringUntil, "recurringUntil")
		if err != nil {
			return offday.Input{}, err
		}
		in.RecurringUntil = &until
	}

	in.DisabledSlots = make([]availability.SlotKind, 0, len(req.DisabledSlots))
	for _, raw := range req.DisabledSlots {
		k, err := availability.ParseSlotKind(raw)
		if err != nil {
			return offday.Input{}, err
		}
		in.DisabledSlots = append(in.DisabledSlots, k)
	}
	return in, nil
}

func createOffDayHandler(svc OffDayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OffDayRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		in, err := offDayInput(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		created, err := svc.Create(r.Context(), in)
		if err != nil {
			handleOffDayError(w, r, err)
			return
		}

		writeJSON(w, http.StatusCreated, toOffDayResponse(*created))
	}
}

func updateOffDayHandler(svc OffDayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_off_day_id")
		if !ok {
			return
		}

		var req OffDayRequest
		if !decodeAndValidate(w, r, &req) {
			return
		}
		in, err := offDayInput(req)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
			return
		}

		updated, err := svc.Update(r.Context(), id, in)
		if err != nil {
			handleOffDayError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toOffDayResponse(*updated))
	}
}

func deleteOffDayHandler(svc OffDayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_off_day_id")
		if !ok {
			return
		}

		if err := svc.Delete(r.Context(), id); err != nil {
			handleOffDayError(w, r, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func getOffDayHandler(svc OffDayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseIDParam(w, r, "invalid_off_day_id")
		if !ok {
			return
		}

		o, err := svc.Get(r.Context(), id)
		if err != nil {
			handleOffDayError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, toOffDayResponse(*o))
	}
}

func listOffDaysHandler(svc OffDayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			handleOffDayError(w, r, err)
			return
		}

		resp := make([]OffDayResponse, len(list))
		for i, o := range list {
			resp[i] = toOffDayResponse(o)
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func offDayCalendarHandler(svc OffDayService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start, ok := parseDateQuery(w, r, "startDate")
		if !ok {
			return
		}
		end, ok := parseDateQuery(w, r, "endDate")
		if !ok {
			return
		}

		occ, err := svc.Calendar(r.Context(), start, end)
		if err != nil {
			handleOffDayError(w, r, err)
			return
		}

		resp := make([]OccurrenceResponse, len(occ))
		for i, o := range occ {
			resp[i] = OccurrenceResponse{
				OffDayID:     o.OffDayID,
				Date:         o.Date.String(),
				BlockedSlots: kindStrings(o.Blocked),
				Reason:       o.Reason,
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleOffDayError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, offday.ErrOffDayNotFound):
		writeError(w, http.StatusNotFound, "off_day_not_found", err.Error())
	case errors.Is(err, offday.ErrInvalidOffDay):
		writeError(w, http.StatusBadRequest, "invalid_off_day", err.Error())
	case errors.Is(err, offday.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "invalid_range", err.Error())
	case errors.Is(err, offday.ErrRangeTooLarge):
		writeError(w, http.StatusBadRequest, "range_too_large", err.Error())
	default:
		LoggerFrom(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
