package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/slotwise/doctor-calendar/internal/scheduling"
)

type OpenTimesRequest struct {
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type BookAppointmentRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type AppointmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
	Taken     bool       `json:"taken"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	Version   int64      `json:"version"`
}

type AppointmentListResponse struct {
	Appointments []AppointmentResponse `json:"appointments"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a scheduling.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		StartTime: a.StartTime,
		EndTime:   a.EndTime,
		Taken:     a.Taken,
		PatientID: a.PatientID,
		Version:   a.Version,
	}
}

func toAppointmentListResponse(appts []scheduling.Appointment) AppointmentListResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return AppointmentListResponse{Appointments: out}
}
