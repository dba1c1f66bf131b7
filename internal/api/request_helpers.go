package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/api/shared"
)

// getStudentIDFromContext extracts the authenticated student's UUID from the
// request context, where the identity middleware placed it.
func getStudentIDFromContext(r *http.Request) (uuid.UUID, bool) {
	studentID, ok := r.Context().Value(shared.StudentIDContextKey).(uuid.UUID)
	if !ok || studentID == uuid.Nil {
		return uuid.Nil, false
	}
	return studentID, true
}

// getPathUUID extracts and parses a UUID path parameter. An error response
// has already been written when ok is false.
func getPathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, bool) {
	raw := chi.URLParam(r, paramName)
	if raw == "" {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing "+paramName+" parameter")
		return uuid.Nil, false
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid "+paramName+" format")
		return uuid.Nil, false
	}
	return id, true
}

// requireStudentID extracts the student ID or writes a 401 response.
func requireStudentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	studentID, ok := getStudentIDFromContext(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Student identity not found")
		return uuid.Nil, false
	}
	return studentID, true
}
