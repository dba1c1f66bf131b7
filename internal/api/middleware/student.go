package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/lingotrail/trail-api/internal/api/shared"
)

// StudentIDHeader carries the authenticated student's ID on every request.
// The API gateway terminates authentication and forwards the verified
// identity in this header.
const StudentIDHeader = "X-Student-ID"

// StudentIdentity extracts the student ID from the identity header and adds
// it to the request context. Requests without a valid ID are rejected.
func StudentIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(StudentIDHeader)
		if raw == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Student identity required")
			return
		}

		studentID, err := uuid.Parse(raw)
		if err != nil || studentID == uuid.Nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid student identity")
			return
		}

		ctx := context.WithValue(r.Context(), shared.StudentIDContextKey, studentID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
