package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/schedule"
	"github.com/hackgods/clinic-scheduling/internal/timeslot"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type CreateAppointmentRequest struct {
	PatientID   string `json:"patient_id" validate:"required,uuid"`
	DoctorID    string `json:"doctor_id" validate:"required,uuid"`
	Date        string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime   string `json:"start_time" validate:"required,hhmm"`
	EndTime     string `json:"end_time" validate:"required,hhmm"`
	ServiceKind string `json:"service_kind" validate:"required,service_kind"`
	Notes       string `json:"notes" validate:"max=2000"`
}

type RescheduleRequest struct {
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
}

type UpsertScheduleRequest struct {
	StartTime  string  `json:"start_time" validate:"required,hhmm"`
	EndTime    string  `json:"end_time" validate:"required,hhmm"`
	BreakStart *string `json:"break_start" validate:"omitempty,hhmm"`
	BreakEnd   *string `json:"break_end" validate:"omitempty,hhmm"`
	Active     *bool   `json:"active"`
}

type JoinWaitingListRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string `json:"start_time" validate:"required,hhmm"`
	EndTime   string `json:"end_time" validate:"required,hhmm"`
	Notes     string `json:"notes" validate:"max=2000"`
}

type AppointmentResponse struct {
	ID          uuid.UUID  `json:"id"`
	Code        string     `json:"code"`
	PatientID   uuid.UUID  `json:"patient_id"`
	DoctorID    uuid.UUID  `json:"doctor_id"`
	Date        string     `json:"date"`
	StartTime   string     `json:"start_time"`
	EndTime     string     `json:"end_time"`
	ServiceKind string     `json:"service_kind"`
	Status      string     `json:"status"`
	Notes       string     `json:"notes,omitempty"`
	RemindedAt  *time.Time `json:"reminded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:          a.ID,
		Code:        a.Code,
		PatientID:   a.PatientID,
		DoctorID:    a.DoctorID,
		Date:        timeslot.FormatDate(a.Date),
		StartTime:   a.Start.String(),
		EndTime:     a.End.String(),
		ServiceKind: string(a.ServiceKind),
		Status:      string(a.Status),
		Notes:       a.Notes,
		RemindedAt:  a.RemindedAt,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

type ListAppointmentsResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

type SlotResponse struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type AvailableSlotsResponse struct {
	DoctorID uuid.UUID      `json:"doctor_id"`
	Date     string         `json:"date"`
	Slots    []SlotResponse `json:"slots"`
}

type ScheduleResponse struct {
	ID         uuid.UUID `json:"id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	Day        string    `json:"day_of_week"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	BreakStart *string   `json:"break_start,omitempty"`
	BreakEnd   *string   `json:"break_end,omitempty"`
	Active     bool      `json:"active"`
}

func toScheduleResponse(t *schedule.Template) ScheduleResponse {
	resp := ScheduleResponse{
		ID:        t.ID,
		DoctorID:  t.DoctorID,
		Day:       timeslot.WeekdayName(t.Day),
		StartTime: t.Start.String(),
		EndTime:   t.End.String(),
		Active:    t.Active,
	}
	if br, ok := t.Break(); ok {
		bs, be := br.Start.String(), br.End.String()
		resp.BreakStart, resp.BreakEnd = &bs, &be
	}
	return resp
}

type WaitingListEntryResponse struct {
	ID         uuid.UUID  `json:"id"`
	PatientID  uuid.UUID  `json:"patient_id"`
	DoctorID   uuid.UUID  `json:"doctor_id"`
	Date       string     `json:"date"`
	StartTime  string     `json:"start_time"`
	EndTime    string     `json:"end_time"`
	Notes      string     `json:"notes,omitempty"`
	Notified   bool       `json:"notified"`
	NotifiedAt *time.Time `json:"notified_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

func toWaitingListEntryResponse(e *waitlist.Entry) WaitingListEntryResponse {
	return WaitingListEntryResponse{
		ID:         e.ID,
		PatientID:  e.PatientID,
		DoctorID:   e.DoctorID,
		Date:       timeslot.FormatDate(e.RequestedDate),
		StartTime:  e.RequestedStart.String(),
		EndTime:    e.RequestedEnd.String(),
		Notes:      e.Notes,
		Notified:   e.Notified,
		NotifiedAt: e.NotifiedAt,
		CreatedAt:  e.CreatedAt,
	}
}

type NotifyWaitingListResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Date     string    `json:"date"`
	Notified int       `json:"notified"`
}

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Details          string                    `json:"details,omitempty"`
	WaitingListEntry *WaitingListEntryResponse `json:"waiting_list_entry,omitempty"`
}
