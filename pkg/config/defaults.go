package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "mentorly"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "8080"
	DefaultLogLevel = "info"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	// DefaultBatch is the page size applied when a listing request does
	// not name one; DefaultMaxBatch caps what a client may ask for.
	DefaultBatch    = 20
	DefaultMaxBatch = 100

	// DefaultMaxPeriodSecs bounds both the recurrence-expansion horizon
	// and the longest bookable span: 31 days.
	DefaultMaxPeriodSecs = 86400 * 31

	// DefaultBookingLockTTL bounds how long an advisory slot lock may
	// outlive a crashed request.
	DefaultBookingLockTTL = 10 * time.Second

	DefaultProfileEventsTopic = "mentor-profile-events"
)
