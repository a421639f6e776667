package repository

import (
	"context"
	"fmt"
	"time"

	scheduleserrors "mentorly/internal/schedules/errors"
	"mentorly/pkg/config"
	mongotx "mentorly/pkg/db/mongo"
	"mentorly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Timeslots"
)

type mongoScheduleRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ScheduleRepository interface {
	FindInRange(ctx context.Context, ownerUserID string, dtstart, dtend int64) ([]*model.TimeSlot, error)
	FindByFilter(ctx context.Context, filter bson.M, cursor int64, limit int) ([]*model.TimeSlot, error)
	SaveAll(ctx context.Context, slots []*model.TimeSlot) ([]*model.TimeSlot, error)
	DeleteByID(ctx context.Context, ownerUserID string, id string) (bool, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoScheduleRepository(cfg *config.Config) ScheduleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoScheduleRepository{
		cfg:        cfg,
		db:         db,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoScheduleRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline {
		return context.WithTimeout(ctx, timeout)
	}

	remaining := time.Until(deadline)
	if remaining < timeout {
		return context.WithTimeout(ctx, remaining)
	}

	return context.WithTimeout(ctx, timeout)
}

// FindInRange returns the user's slots whose window intersects
// [dtstart, dtend). Strict comparison, abutting slots do not match.
func (r *mongoScheduleRepository) FindInRange(ctx context.Context, ownerUserID string, dtstart, dtend int64) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"user_id": ownerUserID,
		"dtstart": bson.M{"$lt": dtend},
		"dtend":   bson.M{"$gt": dtstart},
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "dtstart", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to find time slots in range: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.TimeSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode time slots: %w", err)
	}

	return slots, nil
}

// FindByFilter pages slots sorted by dtstart ascending, keyed on a
// dtstart cursor. The caller passes limit = batch+1 and trims the extra.
func (r *mongoScheduleRepository) FindByFilter(ctx context.Context, filter bson.M, cursor int64, limit int) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := bson.M{}
	for k, v := range filter {
		match[k] = v
	}
	if cursor > 0 {
		match["dtstart"] = bson.M{"$gt": cursor}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "dtstart", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	findCursor, err := r.collection.Find(ctx, match, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find time slots: %w", err)
	}
	defer findCursor.Close(ctx)

	var slots []*model.TimeSlot
	if err = findCursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode time slots: %w", err)
	}

	return slots, nil
}

// SaveAll upserts a batch: slots carrying an id are replaced in place,
// slots without one are inserted and receive a generated id.
func (r *mongoScheduleRepository) SaveAll(ctx context.Context, slots []*model.TimeSlot) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().Unix()
	for _, slot := range slots {
		slot.UpdatedAt = now

		if slot.ID == "" {
			slot.CreatedAt = now
			result, err := r.collection.InsertOne(ctx, slot)
			if err != nil {
				return nil, fmt.Errorf("failed to insert time slot: %w", err)
			}
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				slot.ID = oid.Hex()
			}
			continue
		}

		objectID, err := primitive.ObjectIDFromHex(slot.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", scheduleserrors.ErrInvalidID, slot.ID)
		}

		update := bson.M{
			"$set": bson.M{
				"dt_type":    slot.DTType,
				"dt_year":    slot.DTYear,
				"dt_month":   slot.DTMonth,
				"dtstart":    slot.DTStart,
				"dtend":      slot.DTEnd,
				"timezone":   slot.Timezone,
				"rrule":      slot.RRule,
				"exdate":     slot.ExDate,
				"updated_at": slot.UpdatedAt,
			},
		}

		result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID, "user_id": slot.UserID}, update)
		if err != nil {
			return nil, fmt.Errorf("failed to update time slot: %w", err)
		}
		if result.MatchedCount == 0 {
			return nil, fmt.Errorf("%w: %s", scheduleserrors.ErrNotFound, slot.ID)
		}
	}

	return slots, nil
}

// DeleteByID removes a slot owned by the user. Returns false when no
// matching slot exists.
func (r *mongoScheduleRepository) DeleteByID(ctx context.Context, ownerUserID string, id string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, fmt.Errorf("%w: %s", scheduleserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID, "user_id": ownerUserID})
	if err != nil {
		return false, fmt.Errorf("failed to delete time slot: %w", err)
	}

	return result.DeletedCount > 0, nil
}

func (r *mongoScheduleRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
