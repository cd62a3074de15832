package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskdeck/internal/domain"
)

type taskDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description,omitempty"`
	Status      string             `bson:"status"`
	Priority    string             `bson:"priority"`
	DueDate     *time.Time         `bson:"dueDate"`
	User        string             `bson:"user"`
	IsDeleted   bool               `bson:"isDeleted"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

func (d taskDoc) toDomain() domain.Task {
	t := domain.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		Status:      domain.Status(d.Status),
		Priority:    domain.Priority(d.Priority),
		Owner:       d.User,
		IsDeleted:   d.IsDeleted,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}
	if d.DueDate != nil {
		due := d.DueDate.UTC()
		t.DueDate = &due
	}
	return t
}

func liveTaskFilter(owner string, oid primitive.ObjectID) bson.M {
	return bson.M{"_id": oid, "user": owner, "isDeleted": false}
}

func (s *Store) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	doc := taskDoc{
		ID:          primitive.NewObjectID(),
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		DueDate:     t.DueDate,
		User:        t.Owner,
		IsDeleted:   t.IsDeleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if _, err := s.tasks.InsertOne(ctx, doc); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	t.ID = doc.ID.Hex()
	return t, nil
}

func (s *Store) ListTasks(ctx context.Context, owner string) ([]domain.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.tasks.Find(ctx, bson.M{"user": owner, "isDeleted": false}, opts)
	if err != nil {
		return nil, err
	}
	return decodeTasks(ctx, cursor)
}

func (s *Store) GetTask(ctx context.Context, owner, id string) (domain.Task, error) {
	oid, err := objectID(id)
	if err != nil {
		return domain.Task{}, err
	}
	var doc taskDoc
	if err := s.tasks.FindOne(ctx, liveTaskFilter(owner, oid)).Decode(&doc); err != nil {
		return domain.Task{}, notFound(err)
	}
	return doc.toDomain(), nil
}

// UpdateTask reads the live task, applies mutate and writes the mutable
// fields back guarded by the same owner and not-deleted filter.
func (s *Store) UpdateTask(ctx context.Context, owner, id string, mutate func(*domain.Task) error) (domain.Task, error) {
	t, err := s.GetTask(ctx, owner, id)
	if err != nil {
		return domain.Task{}, err
	}
	if err := mutate(&t); err != nil {
		return domain.Task{}, err
	}
	oid, _ := objectID(id)
	update := bson.M{"$set": bson.M{
		"title":       t.Title,
		"description": t.Description,
		"status":      string(t.Status),
		"priority":    string(t.Priority),
		"dueDate":     t.DueDate,
		"updatedAt":   t.UpdatedAt,
	}}
	res, err := s.tasks.UpdateOne(ctx, liveTaskFilter(owner, oid), update)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.Task{}, notFound(mongo.ErrNoDocuments)
	}
	return t, nil
}

func (s *Store) SoftDeleteTask(ctx context.Context, owner, id string, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := s.tasks.UpdateOne(ctx, liveTaskFilter(owner, oid), bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": at}})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if res.MatchedCount == 0 {
		return notFound(mongo.ErrNoDocuments)
	}
	return nil
}

func (s *Store) ListTasksDue(ctx context.Context, from, to time.Time) ([]domain.Task, error) {
	filter := bson.M{
		"isDeleted": false,
		"status":    bson.M{"$ne": string(domain.StatusDone)},
		"dueDate":   bson.M{"$gte": from, "$lt": to},
	}
	cursor, err := s.tasks.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "user", Value: 1}, {Key: "dueDate", Value: 1}}))
	if err != nil {
		return nil, err
	}
	return decodeTasks(ctx, cursor)
}

func decodeTasks(ctx context.Context, cursor *mongo.Cursor) ([]domain.Task, error) {
	defer cursor.Close(ctx)
	res := []domain.Task{}
	for cursor.Next(ctx) {
		var doc taskDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode task: %w", err)
		}
		res = append(res, doc.toDomain())
	}
	return res, cursor.Err()
}
