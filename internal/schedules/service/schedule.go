package service

import (
	"context"
	"errors"
	"fmt"

	scheduleserrors "mentorly/internal/schedules/errors"
	"mentorly/internal/schedules/repository"
	"mentorly/internal/schedules/validator"
	"mentorly/pkg/config"
	apperrors "mentorly/pkg/errors"
	"mentorly/pkg/interval"
	"mentorly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type ScheduleService interface {
	Save(ctx context.Context, ownerUserID string, slots []*model.TimeSlot, until int64) ([]*model.TimeSlot, error)
	List(ctx context.Context, ownerUserID string, year, month int, cursor int64, batch int) (*model.TimeSlotList, error)
	DeleteSlot(ctx context.Context, ownerUserID string, id string) error
}

type scheduleService struct {
	repo      repository.ScheduleRepository
	validator *validator.ScheduleValidator
	engine    *interval.Engine
	cfg       *config.Config
}

func NewScheduleService(
	repo repository.ScheduleRepository,
	validator *validator.ScheduleValidator,
	engine *interval.Engine,
	cfg *config.Config,
) ScheduleService {
	return &scheduleService{
		repo:      repo,
		validator: validator,
		engine:    engine,
		cfg:       cfg,
	}
}

// Save validates the submitted slots against the user's stored slots in
// the affected window and persists them only when the merged set expands
// overlap-free. Edited slots are checked at their proposed times; stored
// slots outside the edit set still contribute to conflict detection but
// are never rewritten.
func (s *scheduleService) Save(ctx context.Context, ownerUserID string, slots []*model.TimeSlot, until int64) ([]*model.TimeSlot, error) {
	if ownerUserID == "" {
		return nil, apperrors.InvalidInput("User ID is required")
	}
	if len(slots) == 0 {
		return nil, apperrors.InvalidInput("At least one time slot is required")
	}

	for _, slot := range slots {
		if err := slot.InitDerivedFields(ownerUserID); err != nil {
			return nil, apperrors.InvalidInput(err.Error())
		}
		if err := s.validator.Validate(slot); err != nil {
			s.cfg.Log.Warn("Time slot validation failed", "user_id", ownerUserID, "error", err)
			return nil, apperrors.Validation("Time slot validation failed", map[string]any{"error": err.Error()})
		}
	}

	minStart, maxEnd := boundingWindow(slots)
	stored, err := s.repo.FindInRange(ctx, ownerUserID, minStart, maxEnd)
	if err != nil {
		s.cfg.Log.Error("Failed to fetch stored time slots", "user_id", ownerUserID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve time slots", err)
	}

	merged := interval.MergeForValidation(stored, slots)
	report, err := s.engine.DetectOverlaps(merged, until)
	if err != nil {
		return nil, apperrors.InvalidInput(err.Error())
	}
	if report.HasConflicts() {
		s.cfg.Log.Warn("Time slot save rejected",
			"user_id", ownerUserID,
			"conflicts", len(report.Conflicts),
		)
		return nil, apperrors.Conflict("Time slots overlap").WithDetails(report.ToDetails())
	}

	var persisted []*model.TimeSlot
	err = s.repo.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		var saveErr error
		persisted, saveErr = s.repo.SaveAll(sessCtx, slots)
		if saveErr != nil {
			return apperrors.Internal("Failed to save time slots", saveErr)
		}
		return nil
	})
	if err != nil {
		s.cfg.Log.Error("Failed to save time slots", "user_id", ownerUserID, "error", err)
		return nil, err
	}

	s.cfg.Log.Info("Time slots saved successfully",
		"user_id", ownerUserID,
		"count", len(persisted),
	)
	return persisted, nil
}

// List pages the user's slots, optionally narrowed to one year/month
// partition. Fetches batch+1; the extra row decides the next cursor.
func (s *scheduleService) List(ctx context.Context, ownerUserID string, year, month int, cursor int64, batch int) (*model.TimeSlotList, error) {
	if ownerUserID == "" {
		return nil, apperrors.InvalidInput("User ID is required")
	}
	if (year == 0) != (month == 0) {
		return nil, apperrors.InvalidInput("year and month must be provided together")
	}
	if month < 0 || month > 12 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("invalid month: %d", month))
	}

	if batch <= 0 {
		batch = s.cfg.Batch
	}
	if batch > s.cfg.MaxBatch {
		return nil, apperrors.InvalidInput(fmt.Sprintf("batch %d exceeds maximum %d", batch, s.cfg.MaxBatch))
	}

	filter := bson.M{"user_id": ownerUserID}
	if year != 0 {
		filter["dt_year"] = year
		filter["dt_month"] = month
	}

	slots, err := s.repo.FindByFilter(ctx, filter, cursor, batch+1)
	if err != nil {
		s.cfg.Log.Error("Failed to list time slots", "user_id", ownerUserID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve time slots", err)
	}

	list := &model.TimeSlotList{Timeslots: slots}
	if len(slots) == batch+1 {
		list.Timeslots = slots[:batch]
		next := slots[batch-1].DTStart
		list.NextDTStart = &next
	}

	return list, nil
}

func (s *scheduleService) DeleteSlot(ctx context.Context, ownerUserID string, id string) error {
	if ownerUserID == "" || id == "" {
		return apperrors.InvalidInput("User ID and slot ID are required")
	}

	deleted, err := s.repo.DeleteByID(ctx, ownerUserID, id)
	if err != nil {
		if errors.Is(err, scheduleserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid time slot ID format")
		}
		s.cfg.Log.Error("Failed to delete time slot", "user_id", ownerUserID, "id", id, "error", err)
		return apperrors.Internal("Failed to delete time slot", err)
	}
	if !deleted {
		return apperrors.NotFoundWithID("Time slot", id)
	}

	s.cfg.Log.Info("Time slot deleted", "user_id", ownerUserID, "id", id)
	return nil
}

func boundingWindow(slots []*model.TimeSlot) (int64, int64) {
	minStart, maxEnd := slots[0].DTStart, slots[0].DTEnd
	for _, slot := range slots[1:] {
		if slot.DTStart < minStart {
			minStart = slot.DTStart
		}
		if slot.DTEnd > maxEnd {
			maxEnd = slot.DTEnd
		}
	}
	return minStart, maxEnd
}
