package model

import (
	"fmt"
	"time"
)

type SlotKind string

const (
	SlotAllow     SlotKind = "ALLOW"
	SlotForbidden SlotKind = "FORBIDDEN"
)

// TimeSlot is one declared availability window before recurrence
// expansion. DTYear/DTMonth are derived from DTStart in the slot's
// timezone and cached on the row for range-partitioned month listing.
type TimeSlot struct {
	ID        string   `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	UserID    string   `json:"user_id" bson:"user_id" validate:"required"`
	DTType    SlotKind `json:"dt_type" bson:"dt_type" validate:"required,oneof=ALLOW FORBIDDEN"`
	DTYear    int      `json:"dt_year" bson:"dt_year" validate:"omitempty"`
	DTMonth   int      `json:"dt_month" bson:"dt_month" validate:"omitempty"`
	DTStart   int64    `json:"dtstart" bson:"dtstart" validate:"required,gt=0"`
	DTEnd     int64    `json:"dtend" bson:"dtend" validate:"required,gtfield=DTStart"`
	Timezone  string   `json:"timezone" bson:"timezone" validate:"required,timezone"`
	RRule     string   `json:"rrule,omitempty" bson:"rrule,omitempty" validate:"omitempty"`
	ExDate    []int64  `json:"exdate,omitempty" bson:"exdate,omitempty" validate:"omitempty,dive,gt=0"`
	CreatedAt int64    `json:"created_at,omitempty" bson:"created_at" validate:"omitempty"`
	UpdatedAt int64    `json:"updated_at,omitempty" bson:"updated_at" validate:"omitempty"`
}

// InitDerivedFields stamps UserID and caches DTYear/DTMonth from
// DTStart interpreted in the slot's timezone.
func (s *TimeSlot) InitDerivedFields(userID string) error {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", s.Timezone, err)
	}
	s.UserID = userID
	start := time.Unix(s.DTStart, 0).In(loc)
	s.DTYear = start.Year()
	s.DTMonth = int(start.Month())
	return nil
}

// TimeSlotList is one page of slots. NextDTStart is set only when
// another page exists.
type TimeSlotList struct {
	Timeslots   []*TimeSlot `json:"timeslots"`
	NextDTStart *int64      `json:"next_dtstart,omitempty"`
}
