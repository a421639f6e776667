package model

import "time"

// ReservationLock is an advisory lock document. Inserting it with a
// deterministic id serializes the conflict check and the paired write
// for one user's time window; a duplicate key means another request is
// mid-flight on the same window.
type ReservationLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
