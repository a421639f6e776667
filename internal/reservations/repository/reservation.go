package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	reservationserrors "mentorly/internal/reservations/errors"
	"mentorly/pkg/config"
	mongotx "mentorly/pkg/db/mongo"
	"mentorly/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName        = "Reservations"
	ProfileCollectionName = "Profiles"
)

type mongoReservationRepository struct {
	cfg        *config.Config
	db         *mongo.Database
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

type ReservationRepository interface {
	FindByID(ctx context.Context, id string, ownerUserID string) (*model.Reservation, error)
	FindOne(ctx context.Context, filter bson.M) (*model.Reservation, error)
	FindAllInRange(ctx context.Context, filter bson.M, dtstart, dtend int64) ([]*model.Reservation, error)
	SaveAll(ctx context.Context, reservations []*model.Reservation) error
	ListJoined(ctx context.Context, ownerUserID string, filter bson.M, cursor int64, limit int) ([]*model.JoinedReservation, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

func NewMongoReservationRepository(cfg *config.Config) ReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoReservationRepository{
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
func (r *mongoReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoReservationRepository) FindByID(ctx context.Context, id string, ownerUserID string) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "my_user_id": ownerUserID}

	var reservation model.Reservation
	err = r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

func (r *mongoReservationRepository) FindOne(ctx context.Context, filter bson.M) (*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var reservation model.Reservation
	err := r.collection.FindOne(ctx, filter).Decode(&reservation)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, reservationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find reservation: %w", err)
	}

	return &reservation, nil
}

// FindAllInRange returns records matching the filter whose window
// intersects [dtstart, dtend). Intersection is strict: abutting windows
// do not match.
func (r *mongoReservationRepository) FindAllInRange(ctx context.Context, filter bson.M, dtstart, dtend int64) ([]*model.Reservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	rangeFilter := bson.M{
		"dtstart": bson.M{"$lt": dtend},
		"dtend":   bson.M{"$gt": dtstart},
	}
	for k, v := range filter {
		rangeFilter[k] = v
	}

	opts := options.Find().SetSort(bson.D{{Key: "dtend", Value: 1}})

	cursor, err := r.collection.Find(ctx, rangeFilter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find reservations in range: %w", err)
	}
	defer cursor.Close(ctx)

	var reservations []*model.Reservation
	if err = cursor.All(ctx, &reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}

	return reservations, nil
}

// SaveAll upserts a batch: records carrying an id are replaced in place,
// records without one are inserted and receive a generated id. Callers
// pass a SessionContext so a pair (or quad) commits or rolls back as one.
func (r *mongoReservationRepository) SaveAll(ctx context.Context, reservations []*model.Reservation) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().Unix()
	for _, reservation := range reservations {
		reservation.UpdatedAt = now

		if reservation.ID == "" {
			reservation.CreatedAt = now
			result, err := r.collection.InsertOne(ctx, reservation)
			if err != nil {
				return fmt.Errorf("failed to insert reservation: %w", err)
			}
			if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
				reservation.ID = oid.Hex()
			}
			continue
		}

		objectID, err := primitive.ObjectIDFromHex(reservation.ID)
		if err != nil {
			return fmt.Errorf("%w: %s", reservationserrors.ErrInvalidID, reservation.ID)
		}

		update := bson.M{
			"$set": bson.M{
				"schedule_id":      reservation.ScheduleID,
				"dtstart":          reservation.DTStart,
				"dtend":            reservation.DTEnd,
				"my_status":        reservation.MyStatus,
				"status":           reservation.Status,
				"messages":         reservation.Messages,
				"previous_reserve": reservation.PreviousReserve,
				"updated_at":       reservation.UpdatedAt,
			},
		}

		result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
		if err != nil {
			return fmt.Errorf("failed to update reservation: %w", err)
		}
		if result.MatchedCount == 0 {
			return reservationserrors.ErrNotFound
		}
	}

	return nil
}

// ListJoined pages the owner's records joined with the counterparty's
// public profile, sorted by dtend ascending and keyed on a dtend cursor.
// The caller passes limit = batch+1 and trims the extra row itself.
func (r *mongoReservationRepository) ListJoined(ctx context.Context, ownerUserID string, filter bson.M, cursor int64, limit int) ([]*model.JoinedReservation, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := bson.M{"my_user_id": ownerUserID}
	for k, v := range filter {
		match[k] = v
	}
	if cursor > 0 {
		if existing, ok := match["dtend"].(bson.M); ok {
			if prev, ok := existing["$gt"].(int64); !ok || cursor > prev {
				existing["$gt"] = cursor
			}
		} else {
			match["dtend"] = bson.M{"$gt": cursor}
		}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "dtend", Value: 1}, {Key: "_id", Value: 1}}}},
		{{Key: "$limit", Value: int64(limit)}},
		{{Key: "$lookup", Value: bson.M{
			"from":         ProfileCollectionName,
			"localField":   "user_id",
			"foreignField": "user_id",
			"as":           "counterpart_profiles",
		}}},
		{{Key: "$addFields", Value: bson.M{
			"counterpart": bson.M{"$arrayElemAt": bson.A{"$counterpart_profiles", 0}},
		}}},
		{{Key: "$project", Value: bson.M{"counterpart_profiles": 0}}},
	}

	aggCursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to list reservations: %w", err)
	}
	defer aggCursor.Close(ctx)

	var joined []*model.JoinedReservation
	if err = aggCursor.All(ctx, &joined); err != nil {
		return nil, fmt.Errorf("failed to decode joined reservations: %w", err)
	}

	return joined, nil
}

func (r *mongoReservationRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
