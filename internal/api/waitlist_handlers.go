package api

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/profile"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

func joinWaitingListHandler(svc WaitlistService, profiles ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinWaitingListRequest
		if err := decodeAndValidate(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", err.Error())
			return
		}

		patientID := uuid.MustParse(req.PatientID)
		doctorID := uuid.MustParse(req.DoctorID)
		if _, err := profiles.GetPatientByID(r.Context(), patientID); err != nil {
			handleWaitlistError(w, err)
			return
		}
		if _, err := profiles.GetDoctorByID(r.Context(), doctorID); err != nil {
			handleWaitlistError(w, err)
			return
		}

		date, _ := timeslot.ParseDate(req.Date)
		start, _ := timeslot.ParseTime(req.StartTime)
		end, _ := timeslot.ParseTime(req.EndTime)

		e, err := svc.Enqueue(r.Context(), patientID, doctorID, date, timeslot.Interval{Start: start, End: end}, req.Notes)
		if err != nil {
			handleWaitlistError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toWaitingListEntryResponse(e))
	}
}

func listWaitingListHandler(svc WaitlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, err := uuid.Parse(r.URL.Query().Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		entries, err := svc.ListByPatient(r.Context(), patientID)
		if err != nil {
			handleWaitlistError(w, err)
			return
		}

		resp := make([]WaitingListEntryResponse, 0, len(entries))
		for i := range entries {
			resp = append(resp, toWaitingListEntryResponse(&entries[i]))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func getWaitingListEntryHandler(svc WaitlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := uuidParam(w, r, "id", "invalid_entry_id")
		if !ok {
			return
		}

		e, err := svc.Get(r.Context(), id)
		if err != nil {
			handleWaitlistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toWaitingListEntryResponse(e))
	}
}

// notifyWaitingListHandler runs the slot-opened check for one doctor and date
// on demand, for operators who disabled the automatic hook.
func notifyWaitingListHandler(svc WaitlistService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doctorID, ok := uuidParam(w, r, "doctorID", "invalid_doctor_id")
		if !ok {
			return
		}
		date, ok := dateQuery(w, r)
		if !ok {
			return
		}

		n, err := svc.NotifyIfOpened(r.Context(), doctorID, date)
		if err != nil {
			handleWaitlistError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, NotifyWaitingListResponse{
			DoctorID: doctorID,
			Date:     timeslot.FormatDate(date),
			Notified: n,
		})
	}
}

func handleWaitlistError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, waitlist.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, "invalid_waiting_list_entry", err.Error())
	case errors.Is(err, waitlist.ErrEntryNotFound):
		writeError(w, http.StatusNotFound, "waiting_list_entry_not_found", err.Error())
	case errors.Is(err, profile.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, profile.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
