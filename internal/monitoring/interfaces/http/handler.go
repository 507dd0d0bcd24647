package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	monitoringapp "child-monitoring/internal/monitoring/application"
	monitoring "child-monitoring/internal/monitoring/domain"
)

// SessionsHandler provides the session lifecycle endpoints.
type SessionsHandler struct {
	service *monitoringapp.Service
	logger  *log.Logger
}

// NewSessionsHandler constructs a sessions handler.
func NewSessionsHandler(service *monitoringapp.Service, logger *log.Logger) (*SessionsHandler, error) {
	if service == nil {
		return nil, errors.New("sessions handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &SessionsHandler{service: service, logger: logger}, nil
}

type sessionRequest struct {
	RecipientID string `json:"recipient_id"`
	ChildID     string `json:"child_id"`
}

type confirmRequest struct {
	RecipientID string `json:"recipient_id"`
	ChildID     string `json:"child_id"`
	PickedUp    bool   `json:"picked_up"`
}

type sessionResponse struct {
	SessionID      string     `json:"session_id"`
	RecipientID    string     `json:"recipient_id"`
	ChildID        string     `json:"child_id"`
	Zone           string     `json:"zone"`
	StartedAt      time.Time  `json:"started_at"`
	LastSampleAt   *time.Time `json:"last_sample_at,omitempty"`
	LastDistanceKM *float64   `json:"last_distance_km,omitempty"`
}

func toSessionResponse(session monitoring.Session) sessionResponse {
	resp := sessionResponse{
		SessionID:   session.ID,
		RecipientID: session.RecipientID,
		ChildID:     session.ChildID,
		Zone:        string(session.Zone),
		StartedAt:   session.StartedAt,
	}
	if !session.LastSampleAt.IsZero() {
		at := session.LastSampleAt
		resp.LastSampleAt = &at
		km := session.LastDistanceKM
		resp.LastDistanceKM = &km
	}
	return resp
}

// ServeHTTP routes /api/v1/sessions and its subpaths.
func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/sessions" && r.Method == http.MethodPost:
		h.handleStart(w, r)
	case r.URL.Path == "/api/v1/sessions/end" && r.Method == http.MethodPost:
		h.handleEnd(w, r)
	case r.URL.Path == "/api/v1/sessions/confirm" && r.Method == http.MethodPost:
		h.handleConfirm(w, r)
	case r.URL.Path == "/api/v1/sessions/status" && r.Method == http.MethodGet:
		h.handleStatus(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *SessionsHandler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RecipientID == "" || req.ChildID == "" {
		writeError(w, http.StatusBadRequest, "recipient_id and child_id required")
		return
	}

	session, err := h.service.StartMonitoring(r.Context(), req.RecipientID, req.ChildID)
	switch {
	case errors.Is(err, monitoringapp.ErrNoMapping):
		writeError(w, http.StatusNotFound, "no active mapping for recipient and child")
		return
	case err != nil:
		h.logger.Printf("sessions: start error: %v", err)
		writeError(w, http.StatusInternalServerError, "start monitoring failed")
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

func (h *SessionsHandler) handleEnd(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RecipientID == "" || req.ChildID == "" {
		writeError(w, http.StatusBadRequest, "recipient_id and child_id required")
		return
	}

	session, err := h.service.StopMonitoring(r.Context(), req.RecipientID, req.ChildID)
	if err != nil {
		h.logger.Printf("sessions: end error: %v", err)
		writeError(w, http.StatusInternalServerError, "stop monitoring failed")
		return
	}
	if session == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "no active session"})
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*session))
}

func (h *SessionsHandler) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RecipientID == "" || req.ChildID == "" {
		writeError(w, http.StatusBadRequest, "recipient_id and child_id required")
		return
	}

	err := h.service.ConfirmPickup(r.Context(), req.RecipientID, req.ChildID, req.PickedUp)
	switch {
	case errors.Is(err, monitoring.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "no active session")
		return
	case err != nil:
		h.logger.Printf("sessions: confirm error: %v", err)
		writeError(w, http.StatusInternalServerError, "pickup confirmation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SessionsHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	recipientID := r.URL.Query().Get("recipient_id")
	childID := r.URL.Query().Get("child_id")
	if recipientID == "" || childID == "" {
		writeError(w, http.StatusBadRequest, "recipient_id and child_id required")
		return
	}

	session, err := h.service.Status(r.Context(), recipientID, childID)
	if err != nil {
		h.logger.Printf("sessions: status error: %v", err)
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	if session == nil {
		writeError(w, http.StatusNotFound, "no active session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*session))
}

// LocationsHandler ingests recipient GPS samples.
type LocationsHandler struct {
	service *monitoringapp.Service
	logger  *log.Logger
}

// NewLocationsHandler constructs a locations handler.
func NewLocationsHandler(service *monitoringapp.Service, logger *log.Logger) (*LocationsHandler, error) {
	if service == nil {
		return nil, errors.New("locations handler: nil service")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &LocationsHandler{service: service, logger: logger}, nil
}

type locationRequest struct {
	RecipientID string    `json:"recipient_id"`
	ChildID     string    `json:"child_id"`
	Lat         float64   `json:"lat"`
	Lng         float64   `json:"lng"`
	ObservedAt  time.Time `json:"observed_at"`
}

type locationResponse struct {
	Status       string  `json:"status"`
	Zone         string  `json:"zone"`
	DistanceKM   float64 `json:"distance_km"`
	Transitioned bool    `json:"transitioned"`
}

// ServeHTTP handles POST /api/v1/locations. Samples answer 202 so the
// mobile client keeps streaming regardless of downstream routing.
func (h *LocationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req locationRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.RecipientID == "" || req.ChildID == "" {
		writeError(w, http.StatusBadRequest, "recipient_id and child_id required")
		return
	}

	result, err := h.service.HandleLocationSample(r.Context(), monitoringapp.LocationSample{
		RecipientID: req.RecipientID,
		ChildID:     req.ChildID,
		Lat:         req.Lat,
		Lng:         req.Lng,
		ObservedAt:  req.ObservedAt,
	})
	switch {
	case errors.Is(err, monitoring.ErrInvalidSample):
		writeError(w, http.StatusBadRequest, "invalid coordinates")
		return
	case errors.Is(err, monitoring.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "no active session")
		return
	case err != nil:
		h.logger.Printf("locations: sample error: %v", err)
		writeError(w, http.StatusInternalServerError, "sample processing failed")
		return
	}

	writeJSON(w, http.StatusAccepted, locationResponse{
		Status:       "accepted",
		Zone:         string(result.Zone),
		DistanceKM:   result.DistanceKM,
		Transitioned: result.Transitioned,
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
