package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/elektrokombinacija/stsched/internal/core"
	"github.com/elektrokombinacija/stsched/internal/scheduler"
	"github.com/elektrokombinacija/stsched/internal/world"
)

// Error codes of the API.
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeNotFound   = "NOT_FOUND"
	ErrCodeConflict   = "CONFLICT"
	ErrCodeInfeasible = "INFEASIBLE"
	ErrCodeInternal   = "INTERNAL_ERROR"
)

// Response is the envelope of every API response.
type Response struct {
	Status    string    `json:"status"` // ok or error
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil)
}

func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil)
}

func respondError(w http.ResponseWriter, reqID string, status int, apiErr *APIError) {
	respondJSON(w, status, reqID, nil, apiErr)
}

// respondErr maps a scheduling error to its status and code.
func respondErr(w http.ResponseWriter, reqID string, err error) {
	status, code := http.StatusInternalServerError, ErrCodeInternal
	switch {
	case errors.Is(err, core.ErrNoFeasiblePlacement):
		status, code = http.StatusUnprocessableEntity, ErrCodeInfeasible
	case errors.Is(err, core.ErrUnknownAgent),
		errors.Is(err, core.ErrUnknownJob),
		errors.Is(err, scheduler.ErrUnknownTransaction):
		status, code = http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, core.ErrInconsistentAlternative),
		errors.Is(err, core.ErrIllegalState):
		status, code = http.StatusConflict, ErrCodeConflict
	case errors.Is(err, core.ErrInvalidArgument),
		errors.Is(err, world.ErrInvalidSpace):
		status, code = http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	respondError(w, reqID, status, &APIError{Code: code, Message: err.Error()})
}

func respondValidation(w http.ResponseWriter, reqID, msg string) {
	respondError(w, reqID, http.StatusBadRequest, &APIError{Code: ErrCodeValidation, Message: msg})
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, apiErr *APIError) {
	resp := Response{
		RequestID: reqID,
		Timestamp: time.Now().UTC(),
		Data:      data,
		Error:     apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// decodeBody decodes the JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respondValidation(w, RequestIDFromContext(r.Context()), "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
