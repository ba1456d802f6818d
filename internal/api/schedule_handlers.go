package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hackgods/clinic-scheduling/internal/profile"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
)

func dayParam(w http.ResponseWriter, r *http.Request) (time.Weekday, bool) {
	raw := chi.URLParam(r, "day")
	if err := validate.Var(raw, "weekday"); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_day", "day must be a weekday name such as monday")
		return 0, false
	}
	day, _ := timeslot.ParseWeekday(raw)
	return day, true
}

func upsertScheduleHandler(svc ScheduleService, profiles ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}
		day, ok := dayParam(w, r)
		if !ok {
			return
		}

		var req UpsertScheduleRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		if _, err := profiles.GetDoctorByID(r.Context(), doctorID); err != nil {
			handleScheduleError(w, err)
			return
		}

		t := &schedule.Template{
			DoctorID: doctorID,
			Day:      day,
			Active:   req.Active == nil || *req.Active,
		}
		t.Start, _ = timeslot.ParseTime(req.StartTime)
		t.End, _ = timeslot.ParseTime(req.EndTime)
		if req.BreakStart != nil {
			bs, _ := timeslot.ParseTime(*req.BreakStart)
			t.BreakStart = &bs
		}
		if req.BreakEnd != nil {
			be, _ := timeslot.ParseTime(*req.BreakEnd)
			t.BreakEnd = &be
		}

		if err := svc.Upsert(r.Context(), t); err != nil {
			handleScheduleError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toScheduleResponse(t))
	}
}

func listSchedulesHandler(svc ScheduleService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}

		templates, err := svc.ListByDoctor(r.Context(), doctorID)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := make([]ScheduleResponse, 0, len(templates))
		for i := range templates {
			resp = append(resp, toScheduleResponse(&templates[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func setScheduleActiveHandler(svc ScheduleService, active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}
		day, ok := dayParam(w, r)
		if !ok {
			return
		}

		t, err := svc.SetActive(r.Context(), doctorID, day, active)
		if err != nil {
			handleScheduleError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toScheduleResponse(t))
	}
}

func availableSlotsHandler(svc SlotService, profiles ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r)
		if !ok {
			return
		}

		if _, err := profiles.GetDoctorByID(r.Context(), doctorID); err != nil {
			handleScheduleError(w, err)
			return
		}

		slots, err := svc.AvailableSlots(r.Context(), doctorID, date)
		if err != nil {
			handleScheduleError(w, err)
			return
		}

		resp := AvailableSlotsResponse{
			DoctorID: doctorID,
			Date:     timeslot.FormatDate(date),
			Slots:    make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{StartTime: s.Start.String(), EndTime: s.End.String()})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleScheduleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrInvalidTemplate):
		writeError(w, http.StatusBadRequest, "invalid_schedule", err.Error())
	case errors.Is(err, schedule.ErrTemplateNotFound):
		writeError(w, http.StatusNotFound, "schedule_not_found", err.Error())
	case errors.Is(err, profile.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
