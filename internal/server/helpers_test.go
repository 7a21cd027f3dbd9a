// -------------------------------------------------------------------------------
// Helpers Tests - Error Mapping and Request Parsing
//
// Project: Streamlo
//
// Unit tests for the service-error to status-code mapping, pagination query
// parsing, and ObjectID path parsing.
// -------------------------------------------------------------------------------

package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dunguyenn/StreamloWebservice/internal/saga"
	"github.com/dunguyenn/StreamloWebservice/internal/service"
)

// -------------------------------------------------------------------------
// ERROR MAPPING
// -------------------------------------------------------------------------

func TestWriteServiceErrorStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid argument", err: fmt.Errorf("%w: bad genre", service.ErrInvalidArgument), want: http.StatusBadRequest},
		{name: "duplicate", err: fmt.Errorf("%w: taken", service.ErrDuplicate), want: http.StatusBadRequest},
		{name: "forbidden", err: fmt.Errorf("%w: not yours", service.ErrForbidden), want: http.StatusForbidden},
		{name: "not found", err: fmt.Errorf("%w: track", service.ErrNotFound), want: http.StatusNotFound},
		{name: "unknown", err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, tc.err)
			if rec.Code != tc.want {
				t.Errorf("status = %d, want %d", rec.Code, tc.want)
			}

			var body errorBody
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("response not JSON: %v", err)
			}
			if body.Error == "" {
				t.Error("error message missing from body")
			}
		})
	}
}

func TestWriteServiceErrorCompensated(t *testing.T) {
	err := &service.ConsistencyError{Result: &saga.Result{
		Saga:       "follow",
		State:      saga.StateCompensated,
		FailedStep: "increment follower count",
		Err:        errors.New("write timeout"),
	}}

	rec := httptest.NewRecorder()
	writeServiceError(rec, err)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if body.State != "compensated" {
		t.Errorf("state = %q, want compensated", body.State)
	}
	if len(body.Orphans) != 0 {
		t.Errorf("orphans = %v for a clean rollback, want none", body.Orphans)
	}
}

func TestWriteServiceErrorOrphaned(t *testing.T) {
	err := &service.ConsistencyError{Result: &saga.Result{
		Saga:       "track-upload",
		State:      saga.StateOrphaned,
		FailedStep: "create track document",
		Err:        errors.New("insert failed"),
		Orphans: []saga.CompensationFailure{
			{Step: "write audio blob", Err: errors.New("delete failed")},
		},
	}}

	rec := httptest.NewRecorder()
	writeServiceError(rec, err)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v", err)
	}
	if body.State != "orphaned" {
		t.Errorf("state = %q, want orphaned", body.State)
	}
	if len(body.Orphans) != 1 || body.Orphans[0] != "write audio blob" {
		t.Errorf("orphans = %v, want the failed compensation step", body.Orphans)
	}
}

// -------------------------------------------------------------------------
// REQUEST PARSING
// -------------------------------------------------------------------------

func TestPageParams(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		wantPage    int
		wantPerPage int
		wantErr     bool
	}{
		{name: "defaults", query: "", wantPage: 1, wantPerPage: 5},
		{name: "explicit", query: "page=3&per_page=10", wantPage: 3, wantPerPage: 10},
		{name: "zero page", query: "page=0", wantErr: true},
		{name: "oversized per_page", query: "per_page=11", wantErr: true},
		{name: "non-numeric", query: "page=abc", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/tracks?"+tc.query, nil)
			page, perPage, err := pageParams(r)

			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("pageParams: %v", err)
			}
			if page != tc.wantPage || perPage != tc.wantPerPage {
				t.Errorf("got page=%d per_page=%d, want %d/%d", page, perPage, tc.wantPage, tc.wantPerPage)
			}
		})
	}
}

func TestParseObjectID(t *testing.T) {
	if _, err := parseObjectID("5a9e27110e3b3c1bf0a2b9f1", "userId"); err != nil {
		t.Errorf("valid hex rejected: %v", err)
	}
	if _, err := parseObjectID("not-hex", "userId"); err == nil {
		t.Error("invalid hex accepted")
	}
}

// -------------------------------------------------------------------------
// ROUTING
// -------------------------------------------------------------------------

func TestHealthRoute(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestInvalidObjectIDPath(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/not-an-id", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUploaderTracksRouteValidatesID(t *testing.T) {
	s := &Server{}
	rec := httptest.NewRecorder()
	s.Routes().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/not-an-id/tracks", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}
