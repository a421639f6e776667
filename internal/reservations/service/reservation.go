package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "mentorly/internal/reservations/errors"
	"mentorly/internal/reservations/repository"
	"mentorly/internal/reservations/validator"
	"mentorly/pkg/config"
	apperrors "mentorly/pkg/errors"
	"mentorly/pkg/model"
	"mentorly/pkg/notify"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ReservationService interface {
	Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error)
	CreateAndSupersede(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error)
	UpdateStatus(ctx context.Context, id string, ownerUserID string, status model.BookingStatus, message *model.Message) (*model.Reservation, error)
	List(ctx context.Context, ownerUserID string, state string, role string, cursor int64, batch int) (*model.ReservationList, error)
}

type reservationService struct {
	repo      repository.ReservationRepository
	lockRepo  repository.ReservationLockRepository
	validator *validator.ReservationValidator
	notifier  notify.ProfileNotifier
	cfg       *config.Config
}

func NewReservationService(
	repo repository.ReservationRepository,
	lockRepo repository.ReservationLockRepository,
	validator *validator.ReservationValidator,
	notifier notify.ProfileNotifier,
	cfg *config.Config,
) ReservationService {
	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// Create books a new reservation pair: the initiator's row in ACCEPT and
// the counterparty's row in PENDING, each mirroring the other's status.
// The initiator's calendar is checked for overlap against their own
// accepted bookings only; a merely requested slot does not block the
// counterparty.
func (s *reservationService) Create(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error) {
	s.applyCreateDefaults(reservation)
	if err := s.validate(reservation); err != nil {
		return nil, err
	}

	lockID, err := s.acquireSlotLock(ctx, reservation.MyUserID, reservation.DTStart, reservation.DTEnd)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if err := s.verifyNoOverlap(sessCtx, reservation.MyUserID, reservation.DTStart, reservation.DTEnd, nil); err != nil {
			return err
		}

		pair := []*model.Reservation{reservation, reservation.Mirror()}
		if err := s.repo.SaveAll(sessCtx, pair); err != nil {
			return apperrors.Internal("Failed to create reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to create reservation",
			"my_user_id", reservation.MyUserID,
			"user_id", reservation.UserID,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Reservation created successfully",
		"id", reservation.ID,
		"schedule_id", reservation.ScheduleID,
		"my_user_id", reservation.MyUserID,
		"dtstart", reservation.DTStart,
	)
	s.notifyMentor(reservation)
	return reservation, nil
}

// CreateAndSupersede rebooks: the predecessor pair is transitioned to
// REJECT and a fresh pair is written, each new row pointing back at the
// same party's prior row so the history chain stays one hop from either
// side. Rows are never deleted. All four writes share one transaction.
func (s *reservationService) CreateAndSupersede(ctx context.Context, reservation *model.Reservation) (*model.Reservation, error) {
	if reservation.PreviousReserve == nil || reservation.PreviousReserve.ReserveID == "" {
		return nil, apperrors.InvalidInput("previous_reserve is required for rebooking")
	}

	s.applyCreateDefaults(reservation)
	if err := s.validate(reservation); err != nil {
		return nil, err
	}

	lockID, err := s.acquireSlotLock(ctx, reservation.MyUserID, reservation.DTStart, reservation.DTEnd)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := s.releaseSlotLock(ctx, lockID); releaseErr != nil {
			s.cfg.Log.Warn("Failed to release reservation lock", "lock_id", lockID, "error", releaseErr)
		}
	}()

	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		priorMine, err := s.findOwn(sessCtx, reservation.PreviousReserve.ReserveID, reservation.MyUserID)
		if err != nil {
			return err
		}
		priorTheirs, err := s.findCounterpart(sessCtx, priorMine)
		if err != nil {
			return err
		}

		exclude := map[string]struct{}{priorMine.ID: {}}
		if err := s.verifyNoOverlap(sessCtx, reservation.MyUserID, reservation.DTStart, reservation.DTEnd, exclude); err != nil {
			return err
		}

		priorMine.MyStatus = model.BookingReject
		priorMine.Status = model.BookingReject
		priorTheirs.MyStatus = model.BookingReject
		priorTheirs.Status = model.BookingReject

		mirror := reservation.Mirror()
		mirror.PreviousReserve = &model.PreviousReserve{ReserveID: priorTheirs.ID}

		quad := []*model.Reservation{priorMine, priorTheirs, reservation, mirror}
		if err := s.repo.SaveAll(sessCtx, quad); err != nil {
			return apperrors.Internal("Failed to rebook reservation", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to rebook reservation",
			"previous_reserve_id", reservation.PreviousReserve.ReserveID,
			"my_user_id", reservation.MyUserID,
			"error", err,
		)
		return nil, err
	}

	s.cfg.Log.Info("Reservation rebooked successfully",
		"id", reservation.ID,
		"previous_reserve_id", reservation.PreviousReserve.ReserveID,
		"my_user_id", reservation.MyUserID,
	)
	s.notifyMentor(reservation)
	return reservation, nil
}

// UpdateStatus transitions the caller's row and mirrors the new status
// onto the counterparty's row. Accepting re-runs the overlap check
// against the caller's other accepted bookings.
func (s *reservationService) UpdateStatus(ctx context.Context, id string, ownerUserID string, status model.BookingStatus, message *model.Message) (*model.Reservation, error) {
	if id == "" || ownerUserID == "" {
		return nil, apperrors.InvalidInput("Reservation ID and user ID are required")
	}
	if err := s.validator.ValidateStatus(status); err != nil {
		s.cfg.Log.Warn("Status validation failed", "id", id, "error", err)
		return nil, apperrors.Validation("Invalid status", map[string]any{"error": err.Error()})
	}

	var mine *model.Reservation
	err := s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var err error
		mine, err = s.findOwn(sessCtx, id, ownerUserID)
		if err != nil {
			return err
		}
		theirs, err := s.findCounterpart(sessCtx, mine)
		if err != nil {
			return err
		}

		if status == model.BookingAccept {
			exclude := map[string]struct{}{mine.ID: {}}
			if err := s.verifyNoOverlap(sessCtx, ownerUserID, mine.DTStart, mine.DTEnd, exclude); err != nil {
				return err
			}
		}

		if message != nil {
			message.SentBy = ownerUserID
			if message.SentAt == 0 {
				message.SentAt = time.Now().Unix()
			}
			mine.PrependMessage(*message)
		}

		mine.MyStatus = status
		theirs.Status = status

		if err := s.repo.SaveAll(sessCtx, []*model.Reservation{mine, theirs}); err != nil {
			return apperrors.Internal("Failed to update reservation status", err)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to update reservation status", "id", id, "status", status, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Reservation status updated", "id", id, "status", status)
	s.notifyMentor(mine)
	return mine, nil
}

// List pages the caller's reservations joined with counterparty profiles.
// Fetches batch+1 rows; the presence of the extra row decides whether a
// next cursor is returned.
func (s *reservationService) List(ctx context.Context, ownerUserID string, state string, role string, cursor int64, batch int) (*model.ReservationList, error) {
	if ownerUserID == "" {
		return nil, apperrors.InvalidInput("User ID is required")
	}

	listState, err := s.validator.ValidateListState(state)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}

	if batch <= 0 {
		batch = s.cfg.Batch
	}
	if batch > s.cfg.MaxBatch {
		return nil, apperrors.InvalidInput(fmt.Sprintf("batch %d exceeds maximum %d", batch, s.cfg.MaxBatch))
	}

	filter := listStateFilter(listState, time.Now().Unix())
	if role != "" {
		if role != string(model.RoleMentor) && role != string(model.RoleMentee) {
			return nil, apperrors.InvalidInput(fmt.Sprintf("role must be one of: %s, %s", model.RoleMentor, model.RoleMentee))
		}
		filter["my_role"] = role
	}

	rows, err := s.repo.ListJoined(ctx, ownerUserID, filter, cursor, batch+1)
	if err != nil {
		s.cfg.Log.Error("Failed to list reservations", "my_user_id", ownerUserID, "state", state, "error", err)
		return nil, apperrors.Internal("Failed to retrieve reservations", err)
	}

	list := &model.ReservationList{Reservations: rows}
	if len(rows) == batch+1 {
		list.Reservations = rows[:batch]
		next := rows[batch-1].DTEnd
		list.NextDTEnd = &next
	}

	return list, nil
}

// --- Helpers ---

func (s *reservationService) applyCreateDefaults(r *model.Reservation) {
	r.ID = ""
	r.MyStatus = model.BookingAccept
	r.Status = model.BookingPending
	if r.Messages == nil {
		r.Messages = []model.Message{}
	}
	for i := range r.Messages {
		if r.Messages[i].SentBy == "" {
			r.Messages[i].SentBy = r.MyUserID
		}
		if r.Messages[i].SentAt == 0 {
			r.Messages[i].SentAt = time.Now().Unix()
		}
	}
}

func (s *reservationService) validate(reservation *model.Reservation) error {
	if err := s.validator.Validate(reservation); err != nil {
		s.cfg.Log.Warn("Reservation validation failed", "error", err)
		return apperrors.Validation("Reservation validation failed", map[string]any{"error": err.Error()})
	}
	return nil
}

func (s *reservationService) findOwn(ctx context.Context, id string, ownerUserID string) (*model.Reservation, error) {
	reservation, err := s.repo.FindByID(ctx, id, ownerUserID)
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Reservation", id)
		}
		if errors.Is(err, reservationserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid reservation ID format")
		}
		return nil, apperrors.Internal("Failed to retrieve reservation", err)
	}
	return reservation, nil
}

// findCounterpart derives the mirrored row of the same logical booking:
// swapped user ids, identical schedule and window.
func (s *reservationService) findCounterpart(ctx context.Context, mine *model.Reservation) (*model.Reservation, error) {
	theirs, err := s.repo.FindOne(ctx, bson.M{
		"my_user_id":  mine.UserID,
		"user_id":     mine.MyUserID,
		"schedule_id": mine.ScheduleID,
		"dtstart":     mine.DTStart,
		"dtend":       mine.DTEnd,
	})
	if err != nil {
		if errors.Is(err, reservationserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Counterpart reservation", mine.ID)
		}
		return nil, apperrors.Internal("Failed to retrieve counterpart reservation", err)
	}
	return theirs, nil
}

// verifyNoOverlap fails with a Conflict carrying every colliding record
// when the window intersects any of the user's own ACCEPT-state rows.
// Intersection is strict, abutting windows pass.
func (s *reservationService) verifyNoOverlap(ctx context.Context, ownerUserID string, dtstart, dtend int64, exclude map[string]struct{}) error {
	existing, err := s.repo.FindAllInRange(ctx, bson.M{
		"my_user_id": ownerUserID,
		"my_status":  model.BookingAccept,
	}, dtstart, dtend)
	if err != nil {
		return apperrors.Internal("Failed to check existing reservations", err)
	}

	violating := make([]*model.Reservation, 0, len(existing))
	for _, r := range existing {
		if _, skip := exclude[r.ID]; skip {
			continue
		}
		violating = append(violating, r)
	}

	if len(violating) > 0 {
		return apperrors.Conflict("Requested time window overlaps accepted reservations").
			WithDetails(map[string]any{"conflicts": violating})
	}
	return nil
}

func listStateFilter(state model.ReservationListState, now int64) bson.M {
	switch state {
	case model.ListStateUpcoming:
		return bson.M{
			"my_status": model.BookingAccept,
			"status":    model.BookingAccept,
			"dtend":     bson.M{"$gt": now},
		}
	case model.ListStatePending:
		return bson.M{
			"dtend":     bson.M{"$gt": now},
			"my_status": bson.M{"$ne": model.BookingReject},
			"status":    bson.M{"$ne": model.BookingReject},
			"$or": []bson.M{
				{"my_status": model.BookingPending},
				{"status": model.BookingPending},
			},
		}
	default:
		return bson.M{
			"$or": []bson.M{
				{"dtend": bson.M{"$lte": now}},
				{"my_status": model.BookingReject},
				{"status": model.BookingReject},
			},
		}
	}
}

// notifyMentor informs the mentor side that their public profile counters
// may have changed. Fire-and-forget; never fails the booking.
func (s *reservationService) notifyMentor(reservation *model.Reservation) {
	if reservation == nil {
		return
	}
	mentorID := reservation.MyUserID
	if reservation.MyRole != model.RoleMentor {
		mentorID = reservation.UserID
	}
	s.notifier.NotifyProfileChanged(mentorID)
}

// acquireSlotLock creates an advisory lock covering one user's window so
// the overlap check and the paired write cannot interleave with another
// request for the same slot.
func (s *reservationService) acquireSlotLock(ctx context.Context, ownerUserID string, dtstart, dtend int64) (string, error) {
	lockID := fmt.Sprintf("reservation_lock_%s_%d_%d", ownerUserID, dtstart, dtend)

	lock := &model.ReservationLock{
		ID:        lockID,
		ExpiresAt: time.Now().Add(s.cfg.BookingLockTTL),
	}

	_, err := s.lockRepo.Create(ctx, lock)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", apperrors.Conflict("This time slot is currently being booked by another request. Please try again.")
		}
		return "", apperrors.Internal("Failed to acquire reservation lock", err)
	}

	return lockID, nil
}

// releaseSlotLock removes the advisory lock
func (s *reservationService) releaseSlotLock(ctx context.Context, lockID string) error {
	return s.lockRepo.Delete(ctx, lockID)
}
