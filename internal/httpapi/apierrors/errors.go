// Package apierrors renders the core error taxonomy as JSON HTTP
// responses: bad-path and invalid-action/unknown-action-tag become 400,
// unknown-path becomes 404, revision-mismatch becomes 412,
// external-failure becomes 502, and anything else is a 500.
package apierrors

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/DonGar/house-monitor/internal/actions"
	"github.com/DonGar/house-monitor/internal/statustree"
)

// APIError is the JSON shape written for any handler failure.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// FromError classifies err per the core error taxonomy and returns the
// APIError plus the HTTP status it should be reported with.
func FromError(err error) (APIError, int) {
	var badPath *statustree.BadPathError
	var unknownPath *statustree.UnknownPathError
	var revMismatch *statustree.RevisionMismatchError
	var invalidAction *actions.InvalidActionError
	var unknownTag *actions.UnknownActionTagError
	var external *actions.ExternalFailureError

	switch {
	case errors.As(err, &revMismatch):
		return APIError{Code: "revision_mismatch", Message: err.Error()}, http.StatusPreconditionFailed
	case errors.As(err, &badPath):
		return APIError{Code: "bad_path", Message: err.Error()}, http.StatusBadRequest
	case errors.As(err, &unknownPath):
		return APIError{Code: "unknown_path", Message: err.Error()}, http.StatusNotFound
	case errors.As(err, &invalidAction):
		return APIError{Code: "invalid_action", Message: err.Error()}, http.StatusBadRequest
	case errors.As(err, &unknownTag):
		return APIError{Code: "unknown_action_tag", Message: err.Error()}, http.StatusBadRequest
	case errors.As(err, &external):
		return APIError{Code: "external_failure", Message: err.Error()}, http.StatusBadGateway
	default:
		return APIError{Code: "internal_error", Message: err.Error()}, http.StatusInternalServerError
	}
}

// Write renders err as a JSON error response, tagging it with the
// request's ID if requestID is non-empty.
func Write(w http.ResponseWriter, requestID string, err error) {
	apiErr, status := FromError(err)
	apiErr.RequestID = requestID

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: apiErr})
}
