package model

type BookingStatus string

const (
	BookingPending BookingStatus = "PENDING"
	BookingAccept  BookingStatus = "ACCEPT"
	BookingReject  BookingStatus = "REJECT"
)

type RoleType string

const (
	RoleMentor RoleType = "MENTOR"
	RoleMentee RoleType = "MENTEE"
)

// Opposite returns the counterparty's role.
func (r RoleType) Opposite() RoleType {
	if r == RoleMentor {
		return RoleMentee
	}
	return RoleMentor
}

type ReservationListState string

const (
	ListStateUpcoming ReservationListState = "UPCOMING"
	ListStatePending  ReservationListState = "PENDING"
	ListStateHistory  ReservationListState = "HISTORY"
)

// Message is one free-text entry in a reservation's discussion log.
// The log is kept newest first.
type Message struct {
	Content string `json:"content" bson:"content" validate:"required,max=2000"`
	SentBy  string `json:"sent_by" bson:"sent_by" validate:"required"`
	SentAt  int64  `json:"sent_at" bson:"sent_at" validate:"omitempty,gt=0"`
}

// PreviousReserve points at the reservation this record supersedes,
// so a rebooking chain stays traceable from either party's row.
type PreviousReserve struct {
	ReserveID string `json:"reserve_id" bson:"reserve_id" validate:"required,mongodb"`
}

// Reservation is ONE party's row of a two-party booking. Every logical
// booking is materialized as exactly two rows, one owned by each party,
// each mirroring the counterparty's status so listing never needs a join
// across parties. The two rows are always written together.
type Reservation struct {
	ID              string           `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ScheduleID      string           `json:"schedule_id" bson:"schedule_id" validate:"required"`
	DTStart         int64            `json:"dtstart" bson:"dtstart" validate:"required,gt=0"`
	DTEnd           int64            `json:"dtend" bson:"dtend" validate:"required,gtfield=DTStart"`
	MyUserID        string           `json:"my_user_id" bson:"my_user_id" validate:"required"`
	MyStatus        BookingStatus    `json:"my_status" bson:"my_status" validate:"required,oneof=PENDING ACCEPT REJECT"`
	MyRole          RoleType         `json:"my_role" bson:"my_role" validate:"required,oneof=MENTOR MENTEE"`
	UserID          string           `json:"user_id" bson:"user_id" validate:"required,nefield=MyUserID"`
	Status          BookingStatus    `json:"status" bson:"status" validate:"required,oneof=PENDING ACCEPT REJECT"`
	Messages        []Message        `json:"messages" bson:"messages" validate:"omitempty,dive"`
	PreviousReserve *PreviousReserve `json:"previous_reserve,omitempty" bson:"previous_reserve,omitempty" validate:"omitempty"`
	CreatedAt       int64            `json:"created_at,omitempty" bson:"created_at" validate:"omitempty"`
	UpdatedAt       int64            `json:"updated_at,omitempty" bson:"updated_at" validate:"omitempty"`
}

// Mirror builds the counterparty's row of the same logical booking:
// swapped user ids, swapped role, each side's status mirrored onto the
// other. ID and PreviousReserve are intentionally left unset; the
// counterparty's chain pointer refers to their own prior row, not ours.
func (r *Reservation) Mirror() *Reservation {
	return &Reservation{
		ScheduleID: r.ScheduleID,
		DTStart:    r.DTStart,
		DTEnd:      r.DTEnd,
		MyUserID:   r.UserID,
		MyStatus:   r.Status,
		MyRole:     r.MyRole.Opposite(),
		UserID:     r.MyUserID,
		Status:     r.MyStatus,
		Messages:   []Message{},
	}
}

// PrependMessage inserts a new entry at the head of the message log.
func (r *Reservation) PrependMessage(msg Message) {
	r.Messages = append([]Message{msg}, r.Messages...)
}

// CounterpartProfile carries the public profile fields of the other
// party, denormalized into list responses so clients render a row
// without a second lookup.
type CounterpartProfile struct {
	UserID            string `json:"user_id" bson:"user_id"`
	Name              string `json:"name" bson:"name"`
	Avatar            string `json:"avatar" bson:"avatar"`
	JobTitle          string `json:"job_title" bson:"job_title"`
	YearsOfExperience string `json:"years_of_experience" bson:"years_of_experience"`
}

type JoinedReservation struct {
	Reservation `bson:",inline"`
	Counterpart *CounterpartProfile `json:"counterpart,omitempty" bson:"counterpart,omitempty"`
}

// ReservationList is one page of reservations. NextDTEnd is set only
// when another page exists.
type ReservationList struct {
	Reservations []*JoinedReservation `json:"reservations"`
	NextDTEnd    *int64               `json:"next_dtend,omitempty"`
}
