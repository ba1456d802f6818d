package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/booking"
	"github.com/hackgods/clinic-scheduling/internal/profile"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

func createAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		// Formats were checked by the validate tags.
		date, _ := timeslot.ParseDate(req.Date)
		start, _ := timeslot.ParseTime(req.StartTime)
		end, _ := timeslot.ParseTime(req.EndTime)

		appt, err := svc.RequestBooking(r.Context(), booking.Request{
			PatientID:   uuid.MustParse(req.PatientID),
			DoctorID:    uuid.MustParse(req.DoctorID),
			Date:        date,
			Start:       start,
			End:         end,
			ServiceKind: appointment.ServiceKind(req.ServiceKind),
			Notes:       req.Notes,
		})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc BookingService) http.HandlerFunc {
	return appointmentActionHandler(svc.Get)
}

// appointmentActionHandler serves the body-less endpoints that act on one
// appointment by id and return it: get, confirm, cancel, complete.
func appointmentActionHandler(action func(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		appt, err := action(r.Context(), id)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func rescheduleAppointmentHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_appointment_id")
		if !ok {
			return
		}

		var req RescheduleRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		date, _ := timeslot.ParseDate(req.Date)
		start, _ := timeslot.ParseTime(req.StartTime)
		end, _ := timeslot.ParseTime(req.EndTime)

		appt, err := svc.Reschedule(r.Context(), id, date, timeslot.Interval{Start: start, End: end})
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := parseAppointmentFilter(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_query", err.Error())
			return
		}

		list, err := svc.List(r.Context(), f)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		resp := ListAppointmentsResponse{
			Appointments: make([]AppointmentResponse, 0, len(list)),
			Limit:        f.Limit,
			Offset:       f.Offset,
		}
		for i := range list {
			resp.Appointments = append(resp.Appointments, toAppointmentResponse(&list[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func parseAppointmentFilter(r *http.Request) (appointment.Filter, error) {
	q := r.URL.Query()
	var f appointment.Filter

	if v := q.Get("doctor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("doctor_id must be a valid UUID")
		}
		f.DoctorID = &id
	}
	if v := q.Get("patient_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return f, errors.New("patient_id must be a valid UUID")
		}
		f.PatientID = &id
	}
	if v := q.Get("status"); v != "" {
		st := appointment.Status(v)
		if !st.Valid() {
			return f, errors.New("unknown status")
		}
		f.Status = &st
	}
	if v := q.Get("from"); v != "" {
		d, err := timeslot.ParseDate(v)
		if err != nil {
			return f, errors.New("from must be YYYY-MM-DD")
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := timeslot.ParseDate(v)
		if err != nil {
			return f, errors.New("to must be YYYY-MM-DD")
		}
		f.To = &d
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("limit must be an integer")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return f, errors.New("offset must be an integer")
		}
		f.Offset = n
	}

	// Mirror the service defaults so the response echoes what was applied.
	if f.Limit <= 0 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f, nil
}

func uuidParam(w http.ResponseWriter, r *http.Request, name, code string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, code, name+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func dateQuery(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	d, err := timeslot.ParseDate(r.URL.Query().Get("date"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
		return time.Time{}, false
	}
	return d, true
}

func handleBookingError(w http.ResponseWriter, err error) {
	var queued *booking.QueuedError

	switch {
	case errors.As(err, &queued):
		entry := toWaitingListEntryResponse(queued.Entry)
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:            "slot_unavailable_queued",
			Details:          booking.ErrSlotUnavailableQueued.Error(),
			WaitingListEntry: &entry,
		})
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, profile.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, profile.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, booking.ErrPolicyViolation):
		writeError(w, http.StatusUnprocessableEntity, "policy_violation", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
