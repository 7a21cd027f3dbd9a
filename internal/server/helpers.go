// -------------------------------------------------------------------------------
// Helpers - JSON Responses and Request Parsing
//
// Project: Streamlo
//
// Utility functions for the server package. JSON response envelopes, the
// service-error to status-code mapping, and shared parsing for pagination
// query parameters and ObjectID path values.
// -------------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/dunguyenn/StreamloWebservice/internal/auth"
	"github.com/dunguyenn/StreamloWebservice/internal/pagination"
	"github.com/dunguyenn/StreamloWebservice/internal/saga"
	"github.com/dunguyenn/StreamloWebservice/internal/service"
)

// -------------------------------------------------------------------------
// RESPONSES
// -------------------------------------------------------------------------

// writeJSON sends a JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// errorBody is the machine-readable error envelope.
type errorBody struct {
	Error string `json:"error"`
	// State distinguishes a failed-but-undone mutation from one that left
	// orphaned resources. Empty for precondition failures.
	State string `json:"state,omitempty"`
	// Orphans names the compensation steps that failed.
	Orphans []string `json:"orphans,omitempty"`
}

// writeError sends a plain JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorBody{Error: message})
}

// writeServiceError maps a service-layer error onto an HTTP response.
// Precondition failures keep their message; consistency failures report
// whether the partial writes were undone.
func writeServiceError(w http.ResponseWriter, err error) {
	var cerr *service.ConsistencyError
	if errors.As(err, &cerr) {
		body := errorBody{
			Error: cerr.Error(),
			State: cerr.Result.State.String(),
		}
		if cerr.Result.State == saga.StateOrphaned {
			for _, o := range cerr.Result.Orphans {
				body.Orphans = append(body.Orphans, o.Step)
			}
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}

	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrDuplicate):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	default:
		slog.Error("Unhandled service error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// -------------------------------------------------------------------------
// REQUEST PARSING
// -------------------------------------------------------------------------

// pageParams reads page and per_page query parameters, applying the
// pagination defaults when absent.
func pageParams(r *http.Request) (page, perPage int, err error) {
	page = pagination.DefaultPage
	perPage = pagination.DefaultPerPage

	if v := r.URL.Query().Get("page"); v != "" {
		page, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("page must be an integer")
		}
	}
	if v := r.URL.Query().Get("per_page"); v != "" {
		perPage, err = strconv.Atoi(v)
		if err != nil {
			return 0, 0, errors.New("per_page must be an integer")
		}
	}
	if err := pagination.Validate(page, perPage); err != nil {
		return 0, 0, err
	}
	return page, perPage, nil
}

// pathObjectID parses an ObjectID path value.
func pathObjectID(r *http.Request, name string) (primitive.ObjectID, error) {
	return parseObjectID(r.PathValue(name), name)
}

// parseObjectID parses a hex ObjectID, naming the field in the error.
func parseObjectID(value, name string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(value)
	if err != nil {
		return primitive.NilObjectID, errors.New(name + " is not a valid id")
	}
	return id, nil
}

// requester returns the authenticated account id. Routes behind the auth
// middleware always have one; a miss means a wiring bug.
func requester(r *http.Request) (primitive.ObjectID, bool) {
	return auth.UserID(r.Context())
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errors.New("malformed JSON body")
	}
	return nil
}
