package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"

	"taskdeck/internal/domain"
)

type notificationDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userId"`
	Type      string             `bson:"type"`
	Title     string             `bson:"title"`
	Message   string             `bson:"message"`
	TaskID    string             `bson:"taskId,omitempty"`
	Points    *int               `bson:"points,omitempty"`
	Read      bool               `bson:"read"`
	CreatedAt time.Time          `bson:"createdAt"`
}

func (d notificationDoc) toDomain() domain.Notification {
	return domain.Notification{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Type:      domain.NotificationType(d.Type),
		Title:     d.Title,
		Message:   d.Message,
		TaskID:    d.TaskID,
		Points:    d.Points,
		Read:      d.Read,
		CreatedAt: d.CreatedAt.UTC(),
	}
}

func (s *Store) InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	doc := notificationDoc{
		ID:        primitive.NewObjectID(),
		UserID:    n.UserID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		TaskID:    n.TaskID,
		Points:    n.Points,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if _, err := s.notifications.InsertOne(ctx, doc); err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return doc.toDomain(), nil
}

func (s *Store) ListNotifications(ctx context.Context, userID string) ([]domain.Notification, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := s.notifications.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)
	res := []domain.Notification{}
	for cursor.Next(ctx) {
		var doc notificationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode notification: %w", err)
		}
		res = append(res, doc.toDomain())
	}
	return res, cursor.Err()
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) (domain.Notification, error) {
	oid, err := objectID(id)
	if err != nil {
		return domain.Notification{}, err
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc notificationDoc
	err = s.notifications.FindOneAndUpdate(ctx, bson.M{"_id": oid, "userId": userID}, bson.M{"$set": bson.M{"read": true}}, opts).Decode(&doc)
	if err != nil {
		return domain.Notification{}, notFound(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := s.notifications.UpdateMany(ctx, bson.M{"userId": userID, "read": false}, bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	var doc notificationDoc
	if err := s.notifications.FindOneAndDelete(ctx, bson.M{"_id": oid, "userId": userID}).Decode(&doc); err != nil {
		return notFound(err)
	}
	return nil
}

func (s *Store) HasNotification(ctx context.Context, userID, taskID string, typ domain.NotificationType, since time.Time) (bool, error) {
	n, err := s.notifications.CountDocuments(ctx, bson.M{
		"userId":    userID,
		"taskId":    taskID,
		"type":      string(typ),
		"createdAt": bson.M{"$gte": since},
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
