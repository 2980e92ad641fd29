package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"collabstream/internal/core/domain"
	"collabstream/internal/core/ports"
)

var terminalStatuses = []domain.SessionStatus{domain.StatusEnded, domain.StatusCancelled}

// activeCreatorIndex allows at most one non-terminal session per creator.
const activeCreatorIndex = "creator_active_unique"

// MongoSessionRepository keeps one document per session keyed by its ID.
// Updates are conditional on the stored version, so concurrent writers
// never overwrite each other silently.
type MongoSessionRepository struct {
	collection *mongo.Collection
}

func NewMongoSessionRepository(collection *mongo.Collection) ports.SessionRepository {
	return &MongoSessionRepository{collection: collection}
}

// EnsureIndexes creates the indexes the list and creator lookups rely on,
// plus the partial unique index behind the one-active-session rule.
// Partial filters with $in need MongoDB 6.0 or newer.
func EnsureIndexes(ctx context.Context, collection *mongo.Collection) error {
	_, err := collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		{Keys: bson.D{{Key: "creator", Value: 1}, {Key: "status", Value: 1}}},
		{
			Keys: bson.D{{Key: "creator", Value: 1}},
			Options: options.Index().
				SetName(activeCreatorIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": bson.M{"$in": domain.ActiveStatuses}}),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create session indexes: %w", err)
	}
	return nil
}

func (r *MongoSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	stored := session.Clone()
	stored.Version = 1

	if _, err := r.collection.InsertOne(ctx, stored); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			if strings.Contains(err.Error(), activeCreatorIndex) {
				return domain.ErrActiveSessionExists
			}
			return domain.ErrSessionExists
		}
		return fmt.Errorf("failed to insert session: %w", err)
	}

	session.Version = stored.Version
	return nil
}

func (r *MongoSessionRepository) GetByID(ctx context.Context, id domain.SessionID) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (r *MongoSessionRepository) Update(ctx context.Context, session *domain.Session) error {
	next := session.Clone()
	next.Version = session.Version + 1

	filter := bson.M{"_id": session.ID, "version": session.Version}
	result, err := r.collection.ReplaceOne(ctx, filter, next)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}

	if result.MatchedCount == 0 {
		// Either the document is gone or someone else bumped the version.
		count, err := r.collection.CountDocuments(ctx, bson.M{"_id": session.ID})
		if err != nil {
			return fmt.Errorf("failed to check session existence: %w", err)
		}
		if count == 0 {
			return domain.ErrSessionNotFound
		}
		return domain.ErrVersionConflict
	}

	session.Version = next.Version
	return nil
}

func (r *MongoSessionRepository) Delete(ctx context.Context, id domain.SessionID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.DeletedCount == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// ListByStatus returns matching sessions oldest first. No statuses means all sessions.
func (r *MongoSessionRepository) ListByStatus(ctx context.Context, statuses ...domain.SessionStatus) ([]*domain.Session, error) {
	filter := bson.M{}
	if len(statuses) > 0 {
		filter["status"] = bson.M{"$in": statuses}
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var sessions []*domain.Session
	if err := cursor.All(ctx, &sessions); err != nil {
		return nil, fmt.Errorf("failed to decode sessions: %w", err)
	}
	return sessions, nil
}

func (r *MongoSessionRepository) FindActiveByCreator(ctx context.Context, creator domain.UserID) (*domain.Session, error) {
	filter := bson.M{
		"creator": creator,
		"status":  bson.M{"$nin": terminalStatuses},
	}

	var session domain.Session
	err := r.collection.FindOne(ctx, filter).Decode(&session)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find active session: %w", err)
	}
	return &session, nil
}
