package service

import (
	"context"
	"testing"
	"time"

	reservationserrors "mentorly/internal/reservations/errors"
	"mentorly/internal/reservations/validator"
	"mentorly/pkg/config"
	mongotx "mentorly/pkg/db/mongo"
	apperrors "mentorly/pkg/errors"
	"mentorly/pkg/logger"
	"mentorly/pkg/model"
	"mentorly/pkg/notify"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const predecessorID = "507f1f77bcf86cd799439011"

// Mock repository for testing
type mockReservationRepository struct {
	findByIDFunc       func(ctx context.Context, id string, ownerUserID string) (*model.Reservation, error)
	findOneFunc        func(ctx context.Context, filter bson.M) (*model.Reservation, error)
	findAllInRangeFunc func(ctx context.Context, filter bson.M, dtstart, dtend int64) ([]*model.Reservation, error)
	listJoinedFunc     func(ctx context.Context, ownerUserID string, filter bson.M, cursor int64, limit int) ([]*model.JoinedReservation, error)

	saved [][]*model.Reservation
}

func (m *mockReservationRepository) FindByID(ctx context.Context, id string, ownerUserID string) (*model.Reservation, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id, ownerUserID)
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepository) FindOne(ctx context.Context, filter bson.M) (*model.Reservation, error) {
	if m.findOneFunc != nil {
		return m.findOneFunc(ctx, filter)
	}
	return nil, reservationserrors.ErrNotFound
}

func (m *mockReservationRepository) FindAllInRange(ctx context.Context, filter bson.M, dtstart, dtend int64) ([]*model.Reservation, error) {
	if m.findAllInRangeFunc != nil {
		return m.findAllInRangeFunc(ctx, filter, dtstart, dtend)
	}
	return nil, nil
}

func (m *mockReservationRepository) SaveAll(ctx context.Context, reservations []*model.Reservation) error {
	for i, r := range reservations {
		if r.ID == "" {
			r.ID = predecessorID[:len(predecessorID)-1] + string(rune('0'+i))
		}
	}
	m.saved = append(m.saved, reservations)
	return nil
}

func (m *mockReservationRepository) ListJoined(ctx context.Context, ownerUserID string, filter bson.M, cursor int64, limit int) ([]*model.JoinedReservation, error) {
	if m.listJoinedFunc != nil {
		return m.listJoinedFunc(ctx, ownerUserID, filter, cursor, limit)
	}
	return nil, nil
}

func (m *mockReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(nil)
}

type mockLockRepository struct {
	createErr error
	created   []*model.ReservationLock
	deleted   []string
}

func (m *mockLockRepository) Create(ctx context.Context, lock *model.ReservationLock) (*model.ReservationLock, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.created = append(m.created, lock)
	return lock, nil
}

func (m *mockLockRepository) Delete(ctx context.Context, lockID string) error {
	m.deleted = append(m.deleted, lockID)
	return nil
}

func newTestService(repo *mockReservationRepository, lockRepo *mockLockRepository) *reservationService {
	log := logger.New(logger.Config{
		Level:     "error",
		Format:    logger.JSON,
		AddSource: false,
		Service:   "test",
	})

	cfg := &config.Config{
		Log:            log,
		Batch:          20,
		MaxBatch:       100,
		MaxPeriodSecs:  86400 * 31,
		BookingLockTTL: 10 * time.Second,
	}

	return &reservationService{
		repo:      repo,
		lockRepo:  lockRepo,
		validator: validator.NewReservationValidator(log, cfg.MaxPeriodSecs),
		notifier:  notify.NopNotifier{},
		cfg:       cfg,
	}
}

func newCreateRequest() *model.Reservation {
	return &model.Reservation{
		ScheduleID: "sched-1",
		DTStart:    1000,
		DTEnd:      2000,
		MyUserID:   "mentee-1",
		MyRole:     model.RoleMentee,
		UserID:     "mentor-1",
	}
}

func TestCreateWritesMirroredPair(t *testing.T) {
	repo := &mockReservationRepository{}
	svc := newTestService(repo, &mockLockRepository{})

	created, err := svc.Create(context.Background(), newCreateRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.saved) != 1 || len(repo.saved[0]) != 2 {
		t.Fatalf("expected one batch of 2 records, got %v", repo.saved)
	}

	mine, theirs := repo.saved[0][0], repo.saved[0][1]
	if mine.MyStatus != model.BookingAccept || mine.Status != model.BookingPending {
		t.Errorf("initiator row: expected ACCEPT/PENDING, got %s/%s", mine.MyStatus, mine.Status)
	}
	if theirs.MyUserID != mine.UserID || theirs.UserID != mine.MyUserID {
		t.Errorf("counterpart row user ids not swapped: %+v", theirs)
	}
	if theirs.MyStatus != mine.Status || theirs.Status != mine.MyStatus {
		t.Errorf("statuses not mirrored: mine %s/%s, theirs %s/%s",
			mine.MyStatus, mine.Status, theirs.MyStatus, theirs.Status)
	}
	if theirs.ScheduleID != mine.ScheduleID || theirs.DTStart != mine.DTStart || theirs.DTEnd != mine.DTEnd {
		t.Errorf("rows not schedule/time identical")
	}
	if theirs.MyRole != model.RoleMentor {
		t.Errorf("expected counterpart role MENTOR, got %s", theirs.MyRole)
	}
	if created.ID == "" {
		t.Error("created reservation has no id")
	}
}

func TestCreateConflictListsCollidingRecords(t *testing.T) {
	colliding := &model.Reservation{
		ID:       predecessorID,
		MyUserID: "mentee-1",
		MyStatus: model.BookingAccept,
		DTStart:  1500,
		DTEnd:    1800,
	}
	repo := &mockReservationRepository{
		findAllInRangeFunc: func(ctx context.Context, filter bson.M, dtstart, dtend int64) ([]*model.Reservation, error) {
			return []*model.Reservation{colliding}, nil
		},
	}
	svc := newTestService(repo, &mockLockRepository{})

	_, err := svc.Create(context.Background(), newCreateRequest())
	if err == nil {
		t.Fatal("expected conflict error")
	}

	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeConflict {
		t.Fatalf("expected conflict code, got %s", appErr.Code)
	}
	conflicts, ok := appErr.Details["conflicts"].([]*model.Reservation)
	if !ok || len(conflicts) != 1 || conflicts[0].ID != predecessorID {
		t.Errorf("expected the colliding record in details, got %v", appErr.Details)
	}
	if len(repo.saved) != 0 {
		t.Error("records were written despite the conflict")
	}
}

func TestCreateReleasesLock(t *testing.T) {
	repo := &mockReservationRepository{}
	lockRepo := &mockLockRepository{}
	svc := newTestService(repo, lockRepo)

	if _, err := svc.Create(context.Background(), newCreateRequest()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lockRepo.created) != 1 {
		t.Fatalf("expected 1 lock acquired, got %d", len(lockRepo.created))
	}
	if len(lockRepo.deleted) != 1 || lockRepo.deleted[0] != lockRepo.created[0].ID {
		t.Errorf("lock not released: created %v, deleted %v", lockRepo.created, lockRepo.deleted)
	}
}

func TestCreateLockHeldByAnotherRequest(t *testing.T) {
	repo := &mockReservationRepository{}
	lockRepo := &mockLockRepository{
		createErr: mongo.WriteException{WriteErrors: []mongo.WriteError{{Code: 11000}}},
	}
	svc := newTestService(repo, lockRepo)

	_, err := svc.Create(context.Background(), newCreateRequest())
	if err == nil {
		t.Fatal("expected conflict error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeConflict {
		t.Errorf("expected conflict code, got %s", appErr.Code)
	}
	if len(repo.saved) != 0 {
		t.Error("records were written without the lock")
	}
}

func TestCreateAndSupersedeTransitionsPriorPair(t *testing.T) {
	priorMine := &model.Reservation{
		ID:         predecessorID,
		ScheduleID: "sched-1",
		DTStart:    5000,
		DTEnd:      6000,
		MyUserID:   "mentee-1",
		MyStatus:   model.BookingAccept,
		MyRole:     model.RoleMentee,
		UserID:     "mentor-1",
		Status:     model.BookingPending,
	}
	priorTheirs := &model.Reservation{
		ID:         "507f1f77bcf86cd799439012",
		ScheduleID: "sched-1",
		DTStart:    5000,
		DTEnd:      6000,
		MyUserID:   "mentor-1",
		MyStatus:   model.BookingPending,
		MyRole:     model.RoleMentor,
		UserID:     "mentee-1",
		Status:     model.BookingAccept,
	}

	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string, ownerUserID string) (*model.Reservation, error) {
			if id == priorMine.ID && ownerUserID == priorMine.MyUserID {
				return priorMine, nil
			}
			return nil, reservationserrors.ErrNotFound
		},
		findOneFunc: func(ctx context.Context, filter bson.M) (*model.Reservation, error) {
			return priorTheirs, nil
		},
	}
	svc := newTestService(repo, &mockLockRepository{})

	request := newCreateRequest()
	request.PreviousReserve = &model.PreviousReserve{ReserveID: predecessorID}

	created, err := svc.CreateAndSupersede(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(repo.saved) != 1 || len(repo.saved[0]) != 4 {
		t.Fatalf("expected one batch of 4 records, got %v", repo.saved)
	}

	if priorMine.MyStatus != model.BookingReject || priorMine.Status != model.BookingReject {
		t.Errorf("prior initiator row not rejected: %s/%s", priorMine.MyStatus, priorMine.Status)
	}
	if priorTheirs.MyStatus != model.BookingReject || priorTheirs.Status != model.BookingReject {
		t.Errorf("prior counterpart row not rejected: %s/%s", priorTheirs.MyStatus, priorTheirs.Status)
	}

	if created.PreviousReserve == nil || created.PreviousReserve.ReserveID != priorMine.ID {
		t.Errorf("new initiator row does not point at predecessor")
	}
	newTheirs := repo.saved[0][3]
	if newTheirs.PreviousReserve == nil || newTheirs.PreviousReserve.ReserveID != priorTheirs.ID {
		t.Errorf("new counterpart row does not point at counterpart predecessor")
	}
}

func TestCreateAndSupersedePredecessorMissing(t *testing.T) {
	repo := &mockReservationRepository{}
	svc := newTestService(repo, &mockLockRepository{})

	request := newCreateRequest()
	request.PreviousReserve = &model.PreviousReserve{ReserveID: predecessorID}

	_, err := svc.CreateAndSupersede(context.Background(), request)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected not found code, got %s", appErr.Code)
	}
	if len(repo.saved) != 0 {
		t.Error("records were written despite missing predecessor")
	}
}

func TestUpdateStatusMirrorsAndPrependsMessage(t *testing.T) {
	mine := &model.Reservation{
		ID:         predecessorID,
		ScheduleID: "sched-1",
		DTStart:    1000,
		DTEnd:      2000,
		MyUserID:   "mentor-1",
		MyStatus:   model.BookingPending,
		MyRole:     model.RoleMentor,
		UserID:     "mentee-1",
		Status:     model.BookingAccept,
		Messages:   []model.Message{{Content: "first", SentBy: "mentee-1", SentAt: 1}},
	}
	theirs := &model.Reservation{
		ID:         "507f1f77bcf86cd799439012",
		ScheduleID: "sched-1",
		DTStart:    1000,
		DTEnd:      2000,
		MyUserID:   "mentee-1",
		MyStatus:   model.BookingAccept,
		MyRole:     model.RoleMentee,
		UserID:     "mentor-1",
		Status:     model.BookingPending,
	}

	repo := &mockReservationRepository{
		findByIDFunc: func(ctx context.Context, id string, ownerUserID string) (*model.Reservation, error) {
			return mine, nil
		},
		findOneFunc: func(ctx context.Context, filter bson.M) (*model.Reservation, error) {
			return theirs, nil
		},
	}
	svc := newTestService(repo, &mockLockRepository{})

	updated, err := svc.UpdateStatus(context.Background(), mine.ID, "mentor-1", model.BookingAccept,
		&model.Message{Content: "see you then"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.MyStatus != model.BookingAccept {
		t.Errorf("expected caller status ACCEPT, got %s", updated.MyStatus)
	}
	if theirs.Status != model.BookingAccept {
		t.Errorf("counterpart mirrored status not updated, got %s", theirs.Status)
	}
	if len(updated.Messages) != 2 || updated.Messages[0].Content != "see you then" {
		t.Errorf("message not prepended: %v", updated.Messages)
	}
	if updated.Messages[0].SentBy != "mentor-1" {
		t.Errorf("message sender not stamped, got %q", updated.Messages[0].SentBy)
	}
	if len(repo.saved) != 1 || len(repo.saved[0]) != 2 {
		t.Fatalf("expected both rows written together, got %v", repo.saved)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	repo := &mockReservationRepository{}
	svc := newTestService(repo, &mockLockRepository{})

	_, err := svc.UpdateStatus(context.Background(), predecessorID, "mentor-1", model.BookingReject, nil)
	if err == nil {
		t.Fatal("expected not found error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeNotFound {
		t.Errorf("expected not found code, got %s", appErr.Code)
	}
}

func TestUpdateStatusRejectsPendingTarget(t *testing.T) {
	svc := newTestService(&mockReservationRepository{}, &mockLockRepository{})

	_, err := svc.UpdateStatus(context.Background(), predecessorID, "mentor-1", model.BookingPending, nil)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeValidation {
		t.Errorf("expected validation code, got %s", appErr.Code)
	}
}

func TestListPaginationBoundary(t *testing.T) {
	makeRows := func(n int) []*model.JoinedReservation {
		rows := make([]*model.JoinedReservation, n)
		for i := range rows {
			rows[i] = &model.JoinedReservation{
				Reservation: model.Reservation{DTEnd: int64(1000 + i)},
			}
		}
		return rows
	}

	cases := []struct {
		name       string
		available  int
		batch      int
		wantRows   int
		wantCursor bool
	}{
		{"fewer than batch", 3, 5, 3, false},
		{"exactly batch", 5, 5, 5, false},
		{"more than batch", 6, 5, 5, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &mockReservationRepository{
				listJoinedFunc: func(ctx context.Context, ownerUserID string, filter bson.M, cursor int64, limit int) ([]*model.JoinedReservation, error) {
					rows := makeRows(tc.available)
					if len(rows) > limit {
						rows = rows[:limit]
					}
					return rows, nil
				},
			}
			svc := newTestService(repo, &mockLockRepository{})

			list, err := svc.List(context.Background(), "mentee-1", string(model.ListStateUpcoming), "", 0, tc.batch)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(list.Reservations) != tc.wantRows {
				t.Errorf("expected %d rows, got %d", tc.wantRows, len(list.Reservations))
			}
			if (list.NextDTEnd != nil) != tc.wantCursor {
				t.Errorf("cursor presence: expected %v, got %v", tc.wantCursor, list.NextDTEnd)
			}
			if tc.wantCursor && *list.NextDTEnd != list.Reservations[tc.wantRows-1].DTEnd {
				t.Errorf("cursor should be last returned dtend, got %d", *list.NextDTEnd)
			}
		})
	}
}

func TestListRejectsUnknownState(t *testing.T) {
	svc := newTestService(&mockReservationRepository{}, &mockLockRepository{})

	_, err := svc.List(context.Background(), "mentee-1", "SOMEDAY", "", 0, 10)
	if err == nil {
		t.Fatal("expected invalid input error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input code, got %s", appErr.Code)
	}
}

func TestListRejectsOversizedBatch(t *testing.T) {
	svc := newTestService(&mockReservationRepository{}, &mockLockRepository{})

	_, err := svc.List(context.Background(), "mentee-1", string(model.ListStateHistory), "", 0, 101)
	if err == nil {
		t.Fatal("expected invalid input error")
	}
	if appErr := apperrors.AsAppError(err); appErr.Code != apperrors.CodeInvalidInput {
		t.Errorf("expected invalid input code, got %s", appErr.Code)
	}
}
