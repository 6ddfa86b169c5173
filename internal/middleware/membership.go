package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/nikhil/worktrack/internal/apperr"
	"github.com/nikhil/worktrack/internal/models"
)

// MembershipLookup resolves a user's role in an organization. It returns
// apperr.ErrNotFound when the user is not a member.
type MembershipLookup interface {
	MemberRole(ctx context.Context, userID, orgID int64) (models.Role, error)
}

// RequireMembership rejects requests whose caller is not a member of the
// route's {orgId}. With roles given, the member must hold one of them.
// It must run after AuthMiddleware.
func RequireMembership(lookup MembershipLookup, roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			orgID, err := strconv.ParseInt(mux.Vars(r)["orgId"], 10, 64)
			if err != nil {
				http.Error(w, "Invalid organization", http.StatusBadRequest)
				return
			}

			role, err := lookup.MemberRole(r.Context(), userID, orgID)
			switch {
			case errors.Is(err, apperr.ErrNotFound):
				http.Error(w, "Not a member of this organization", http.StatusForbidden)
				return
			case err != nil:
				http.Error(w, "Service temporarily unavailable, please retry", http.StatusServiceUnavailable)
				return
			}
			if len(roles) > 0 && !slices.Contains(roles, role) {
				http.Error(w, "Insufficient role for this organization", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
