package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/slotwise/doctor-calendar/internal/scheduling"
)

func openTimesHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req OpenTimesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.StartTime.IsZero() || req.EndTime.IsZero() {
			writeError(w, http.StatusBadRequest, "missing_time_range", "start_time and end_time are required")
			return
		}

		created, err := svc.OpenTimes(r.Context(), req.StartTime, req.EndTime)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentListResponse(created))
	}
}

func listOpenHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var (
			appts []scheduling.Appointment
			err   error
		)

		if dateStr := r.URL.Query().Get("date"); dateStr != "" {
			day, parseErr := time.Parse("2006-01-02", dateStr)
			if parseErr != nil {
				writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
				return
			}
			appts, err = svc.OpenAppointmentsOn(r.Context(), day)
		} else {
			appts, err = svc.OpenAppointments(r.Context())
		}

		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentListResponse(appts))
	}
}

func listTakenHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		appts, err := svc.TakenAppointments(r.Context())
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentListResponse(appts))
	}
}

func patientAppointmentsHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := r.URL.Query().Get("phone")
		if phone == "" {
			writeError(w, http.StatusBadRequest, "missing_phone", "phone query parameter is required")
			return
		}

		appts, err := svc.PatientAppointments(r.Context(), phone)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentListResponse(appts))
	}
}

func bookAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.Name == "" || req.Phone == "" {
			writeError(w, http.StatusBadRequest, "missing_patient_details", "name and phone are required")
			return
		}

		appt, err := svc.Book(r.Context(), id, req.Name, req.Phone)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(*appt))
	}
}

func retractAppointmentHandler(svc *scheduling.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		if err := svc.Retract(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidTimeRange):
		writeError(w, http.StatusBadRequest, "invalid_time_range", err.Error())
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, scheduling.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, scheduling.ErrNoAppointments):
		writeError(w, http.StatusNotFound, "no_appointments", err.Error())
	case errors.Is(err, scheduling.ErrAlreadyTaken):
		writeError(w, http.StatusConflict, "already_taken", err.Error())
	case errors.Is(err, scheduling.ErrConcurrentConflict):
		writeError(w, http.StatusConflict, "concurrent_conflict", "the appointment was modified concurrently, re-fetch and retry")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
