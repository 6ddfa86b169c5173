package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"golang.org/x/time/rate"
)

// OrgRateLimiter gives every organization its own token bucket.
type OrgRateLimiter struct {
	mu       sync.Mutex
	limiters map[int64]*rate.Limiter
	limit    rate.Limit
	burst    int
}

// NewOrgRateLimiter allows perMinute requests per organization with burst.
func NewOrgRateLimiter(perMinute, burst int) *OrgRateLimiter {
	if perMinute <= 0 {
		perMinute = 1
	}
	return &OrgRateLimiter{
		limiters: make(map[int64]*rate.Limiter),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
	}
}

// Allow consumes one token of orgID's bucket.
func (l *OrgRateLimiter) Allow(orgID int64) bool {
	l.mu.Lock()
	lim, ok := l.limiters[orgID]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.limiters[orgID] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

// Middleware limits requests by the route's {orgId} variable.
func (l *OrgRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		orgID, err := strconv.ParseInt(mux.Vars(r)["orgId"], 10, 64)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		if !l.Allow(orgID) {
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Too many report requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
