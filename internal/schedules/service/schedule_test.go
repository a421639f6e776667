package service

import (
	"context"
	"testing"

	"mentorly/internal/schedules/validator"
	"mentorly/pkg/config"
	mongotx "mentorly/pkg/db/mongo"
	apperrors "mentorly/pkg/errors"
	"mentorly/pkg/interval"
	"mentorly/pkg/logger"
	"mentorly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

const slotID = "507f1f77bcf86cd799439021"

// Mock repository for testing
type mockScheduleRepository struct {
	findInRangeFunc  func(ctx context.Context, ownerUserID string, dtstart, dtend int64) ([]*model.TimeSlot, error)
	findByFilterFunc func(ctx context.Context, filter bson.M, cursor int64, limit int) ([]*model.TimeSlot, error)
	deleteByIDFunc   func(ctx context.Context, ownerUserID string, id string) (bool, error)

	saved [][]*model.TimeSlot
}

func (m *mockScheduleRepository) FindInRange(ctx context.Context, ownerUserID string, dtstart, dtend int64) ([]*model.TimeSlot, error) {
	if m.findInRangeFunc != nil {
		return m.findInRangeFunc(ctx, ownerUserID, dtstart, dtend)
	}
	return nil, nil
}

func (m *mockScheduleRepository) FindByFilter(ctx context.Context, filter bson.M, cursor int64, limit int) ([]*model.TimeSlot, error) {
	if m.findByFilterFunc != nil {
		return m.findByFilterFunc(ctx, filter, cursor, limit)
	}
	return nil, nil
}

func (m *mockScheduleRepository) SaveAll(ctx context.Context, slots []*model.TimeSlot) ([]*model.TimeSlot, error) {
	for i, slot := range slots {
		if slot.ID == "" {
			slot.ID = slotID[:len(slotID)-1] + string(rune('0'+i))
		}
	}
	m.saved = append(m.saved, slots)
	return slots, nil
}

func (m *mockScheduleRepository) DeleteByID(ctx context.Context, ownerUserID string, id string) (bool, error) {
	if m.deleteByIDFunc != nil {
		return m.deleteByIDFunc(ctx, ownerUserID, id)
	}
	return false, nil
}

func (m *mockScheduleRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

func newTestService(repo *mockScheduleRepository) *scheduleService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	cfg := &config.Config{
		Log:           log,
		Batch:         20,
		MaxBatch:      100,
		MaxPeriodSecs: 86400 * 31,
	}

	return &scheduleService{
		repo:      repo,
		validator: validator.NewScheduleValidator(log, cfg.MaxPeriodSecs),
		engine:    interval.NewEngine(cfg.MaxPeriodSecs),
		cfg:       cfg,
	}
}

func newSlot(dtstart, dtend int64) *model.TimeSlot {
	return &model.TimeSlot{
		DTType:   model.SlotAllow,
		DTStart:  dtstart,
		DTEnd:    dtend,
		Timezone: "UTC",
	}
}

func TestSavePersistsNonOverlappingSlots(t *testing.T) {
	repo := &mockScheduleRepository{}
	svc := newTestService(repo)

	persisted, err := svc.Save(context.Background(), "mentor-1",
		[]*model.TimeSlot{newSlot(1000, 2000), newSlot(2000, 3000)}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(persisted) != 2 {
		t.Fatalf("expected 2 persisted slots, got %d", len(persisted))
	}
	for _, slot := range persisted {
		if slot.UserID != "mentor-1" {
			t.Errorf("owner not stamped, got %q", slot.UserID)
		}
		if slot.ID == "" {
			t.Error("persisted slot has no id")
		}
		if slot.DTYear == 0 || slot.DTMonth == 0 {
			t.Error("derived year/month not stamped")
		}
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected one save batch, got %d", len(repo.saved))
	}
}

func TestSaveRejectsOverlapWithStoredSlot(t *testing.T) {
	stored := newSlot(1500, 2500)
	stored.ID = slotID
	stored.UserID = "mentor-1"

	repo := &mockScheduleRepository{
		findInRangeFunc: func(ctx context.Context, ownerUserID string, dtstart, dtend int64) ([]*model.TimeSlot, error) {
			return []*model.TimeSlot{stored}, nil
		},
	}
	svc := newTestService(repo)

	_, err := svc.Save(context.Background(), "mentor-1", []*model.TimeSlot{newSlot(1000, 2000)}, 0)
	if err == nil {
		t.Fatal("expected conflict error")
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict code, got %s", appErr.Code)
	}
	if appErr.Details["summary"] == nil {
		t.Error("conflict details missing summary")
	}
	if len(repo.saved) != 0 {
		t.Error("slots were persisted despite the conflict")
	}
}

func TestSaveValidatesEditAtProposedTime(t *testing.T) {
	// Stored at (1000, 2000); the edit moves it to (5000, 6000), so a new
	// slot at (1000, 2000) no longer collides with it.
	stored := newSlot(1000, 2000)
	stored.ID = slotID
	stored.UserID = "mentor-1"

	repo := &mockScheduleRepository{
		findInRangeFunc: func(ctx context.Context, ownerUserID string, dtstart, dtend int64) ([]*model.TimeSlot, error) {
			return []*model.TimeSlot{stored}, nil
		},
	}
	svc := newTestService(repo)

	edited := newSlot(5000, 6000)
	edited.ID = slotID

	_, err := svc.Save(context.Background(), "mentor-1",
		[]*model.TimeSlot{edited, newSlot(1000, 2000)}, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected slots persisted, got %v", repo.saved)
	}
}

func TestSaveRejectsRecurringOverlap(t *testing.T) {
	repo := &mockScheduleRepository{}
	svc := newTestService(repo)

	// Daily one-hour slot collides with a plain slot on its second day.
	recurring := newSlot(86400*100, 86400*100+3600)
	recurring.RRule = "FREQ=DAILY;COUNT=5"
	plain := newSlot(86400*101+1800, 86400*101+5400)

	_, err := svc.Save(context.Background(), "mentor-1",
		[]*model.TimeSlot{recurring, plain}, 0)
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict code, got %s", appErr.Code)
	}
}

func TestSaveRejectsUnknownTimezone(t *testing.T) {
	svc := newTestService(&mockScheduleRepository{})

	bad := newSlot(1000, 2000)
	bad.Timezone = "Mars/Olympus"

	_, err := svc.Save(context.Background(), "mentor-1", []*model.TimeSlot{bad}, 0)
	if err == nil {
		t.Fatal("expected invalid input error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input code, got %s", appErr.Code)
	}
}

func TestListPaginationBoundary(t *testing.T) {
	makeSlots := func(n int) []*model.TimeSlot {
		slots := make([]*model.TimeSlot, n)
		for i := range slots {
			slots[i] = newSlot(int64(1000+i), int64(2000+i))
		}
		return slots
	}

	cases := []struct {
		name       string
		available  int
		batch      int
		wantRows   int
		wantCursor bool
	}{
		{"fewer than batch", 2, 5, 2, false},
		{"exactly batch", 5, 5, 5, false},
		{"more than batch", 7, 5, 5, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockScheduleRepository{
				findByFilterFunc: func(ctx context.Context, filter bson.M, cursor int64, limit int) ([]*model.TimeSlot, error) {
					slots := makeSlots(tc.available)
					if len(slots) > limit {
						slots = slots[:limit]
					}
					return slots, nil
				},
			}
			svc := newTestService(repo)

			list, err := svc.List(context.Background(), "mentor-1", 2026, 1, 0, tc.batch)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(list.Timeslots) != tc.wantRows {
				t.Errorf("expected %d slots, got %d", tc.wantRows, len(list.Timeslots))
			}
			if (list.NextDTStart != nil) != tc.wantCursor {
				t.Errorf("cursor presence: expected %v, got %v", tc.wantCursor, list.NextDTStart)
			}
			if tc.wantCursor && *list.NextDTStart != list.Timeslots[tc.wantRows-1].DTStart {
				t.Errorf("cursor should be last returned dtstart, got %d", *list.NextDTStart)
			}
		})
	}
}

func TestListRejectsYearWithoutMonth(t *testing.T) {
	svc := newTestService(&mockScheduleRepository{})

	_, err := svc.List(context.Background(), "mentor-1", 2026, 0, 0, 10)
	if err == nil {
		t.Fatal("expected invalid input error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input code, got %s", appErr.Code)
	}
}

func TestDeleteSlotNotFound(t *testing.T) {
	svc := newTestService(&mockScheduleRepository{})

	err := svc.DeleteSlot(context.Background(), "mentor-1", slotID)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected not found code, got %s", appErr.Code)
	}
}

func TestDeleteSlotFound(t *testing.T) {
	repo := &mockScheduleRepository{
		deleteByIDFunc: func(ctx context.Context, ownerUserID string, id string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestService(repo)

	if err := svc.DeleteSlot(context.Background(), "mentor-1", slotID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
