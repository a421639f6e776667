package middleware

import (
	"net/http"
	"sync"
	"time"

	"mentorly/pkg/logger"
)

type UserExtractor func(r *http.Request) string

type UserRateLimiter struct {
	mu            sync.RWMutex
	requests      map[string][]time.Time
	limit         int
	window        time.Duration
	userExtractor UserExtractor
	log           *logger.Logger
	stopCh        chan struct{}
}

func NewUserRateLimiter(limit int, window time.Duration, extractor UserExtractor, log *logger.Logger) *UserRateLimiter {
	limiter := &UserRateLimiter{
		requests:      make(map[string][]time.Time),
		limit:         limit,
		window:        window,
		userExtractor: extractor,
		log:           log,
		stopCh:        make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for userID, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, userID)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *UserRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *UserRateLimiter) Allow(userID string) bool {
	if userID == "" {
		return true
	}

	now := time.Now()

	rl.mu.RLock()
	timestamps := rl.requests[userID]
	rl.mu.RUnlock()

	validTimestamps := make([]time.Time, 0)
	for _, ts := range timestamps {
		if now.Sub(ts) < rl.window {
			validTimestamps = append(validTimestamps, ts)
		}
	}

	if len(validTimestamps) >= rl.limit {
		return false
	}

	validTimestamps = append(validTimestamps, now)

	rl.mu.Lock()
	rl.requests[userID] = validTimestamps
	rl.mu.Unlock()

	return true
}

func UserRateLimit(limiter *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := extractUserID(r, limiter.userExtractor)

			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(userID) {
				rejectRateLimited(w, limiter.log, r, userID)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func extractUserID(r *http.Request, extractor UserExtractor) string {
	if extractor == nil {
		return DefaultUserExtractor(r)
	}
	return extractor(r)
}

func rejectRateLimited(w http.ResponseWriter, log *logger.Logger, r *http.Request, userID string) {
	requestID := ""
	if rid := r.Context().Value(RequestIDKey); rid != nil {
		requestID = rid.(string)
	}

	log.Warn("Rate limit exceeded",
		"request_id", requestID,
		"user_id", userID,
		"path", r.URL.Path,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
}

// DefaultUserExtractor keys the limiter on the caller's user id, taken
// from the X-User-ID header or the user_id query parameter.
func DefaultUserExtractor(r *http.Request) string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return id
	}
	return r.URL.Query().Get("user_id")
}
