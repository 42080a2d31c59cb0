package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	turfserrors "turfbook/internal/turfs/errors"
	"turfbook/pkg/config"
	mongotx "turfbook/pkg/db/mongo"
	"turfbook/pkg/model"
)

const (
	CollectionName = "Turfs"
)

type TurfRepository interface {
	Create(ctx context.Context, turf *model.Turf) error
	FindByID(ctx context.Context, id string) (*model.Turf, error)
	FindAvailable(ctx context.Context, limit int, offset int64) ([]*model.Turf, error)
	CountAvailable(ctx context.Context) (int64, error)
	FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Turf, error)
	CountByOwner(ctx context.Context, ownerID string) (int64, error)

	// UpdateOwned and DeleteOwned filter on {_id, owner_id} in one query, so a
	// missing turf and a turf owned by someone else are indistinguishable.
	UpdateOwned(ctx context.Context, id, ownerID string, updates *model.TurfUpdate) error
	DeleteOwned(ctx context.Context, id, ownerID string) error

	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoTurfRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoTurfRepository(cfg *config.Config) TurfRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTurfRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout if not already in a transaction.
// When inside a transaction (SessionContext), returns the original context unchanged
// with a no-op cancel function, as we cannot wrap SessionContext without breaking
// transaction semantics.
func (r *mongoTurfRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
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

func (r *mongoTurfRepository) Create(ctx context.Context, turf *model.Turf) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	turf.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	result, err := r.collection.InsertOne(ctx, turf)
	if err != nil {
		return fmt.Errorf("failed to create turf: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		turf.ID = oid.Hex()
	}

	return nil
}

func (r *mongoTurfRepository) FindByID(ctx context.Context, id string) (*model.Turf, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", turfserrors.ErrInvalidID, id)
	}

	var turf model.Turf
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&turf)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", turfserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find turf: %w", err)
	}
	return &turf, nil
}

func (r *mongoTurfRepository) FindAvailable(ctx context.Context, limit int, offset int64) ([]*model.Turf, error) {
	return r.findMany(ctx, bson.M{"available": true}, limit, offset)
}

func (r *mongoTurfRepository) CountAvailable(ctx context.Context) (int64, error) {
	return r.count(ctx, bson.M{"available": true})
}

func (r *mongoTurfRepository) FindByOwner(ctx context.Context, ownerID string, limit int, offset int64) ([]*model.Turf, error) {
	return r.findMany(ctx, bson.M{"owner_id": ownerID}, limit, offset)
}

func (r *mongoTurfRepository) CountByOwner(ctx context.Context, ownerID string) (int64, error) {
	return r.count(ctx, bson.M{"owner_id": ownerID})
}

func (r *mongoTurfRepository) findMany(ctx context.Context, filter bson.M, limit int, offset int64) ([]*model.Turf, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query turfs: %w", err)
	}
	defer cursor.Close(ctx)

	var turfs []*model.Turf
	if err = cursor.All(ctx, &turfs); err != nil {
		return nil, fmt.Errorf("failed to decode turfs: %w", err)
	}

	return turfs, nil
}

func (r *mongoTurfRepository) count(ctx context.Context, filter bson.M) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count turfs: %w", err)
	}
	return count, nil
}

func (r *mongoTurfRepository) UpdateOwned(ctx context.Context, id, ownerID string, updates *model.TurfUpdate) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", turfserrors.ErrInvalidID, id)
	}

	set := bson.M{}
	if updates.Name != nil {
		set["name"] = *updates.Name
	}
	if updates.Location != nil {
		set["location"] = *updates.Location
	}
	if updates.PricePerHour != nil {
		set["price_per_hour"] = *updates.PricePerHour
	}
	if updates.Available != nil {
		set["available"] = *updates.Available
	}
	if updates.Description != nil {
		set["description"] = *updates.Description
	}
	if updates.Amenities != nil {
		set["amenities"] = *updates.Amenities
	}

	filter := bson.M{"_id": objectID, "owner_id": ownerID}
	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update turf: %w", err)
	}

	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", turfserrors.ErrNotFound, id)
	}

	return nil
}

func (r *mongoTurfRepository) DeleteOwned(ctx context.Context, id, ownerID string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", turfserrors.ErrInvalidID, id)
	}

	filter := bson.M{"_id": objectID, "owner_id": ownerID}
	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to delete turf: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", turfserrors.ErrNotFound, id)
	}

	return nil
}

func (r *mongoTurfRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
