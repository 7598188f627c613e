package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"messaging-service/internal/db"
	"messaging-service/internal/models"
)

// SystemMessageRepository stores platform messages and each user's read marker.
type SystemMessageRepository interface {
	Create(ctx context.Context, msg models.SystemMessage) (models.SystemMessage, error)
	ListForUser(ctx context.Context, userID string, skip, limit int64) ([]models.SystemMessage, int64, error)
	CountSince(ctx context.Context, userID string, since time.Time) (int64, error)
	LastRead(ctx context.Context, userID string) (time.Time, error)
	SetLastRead(ctx context.Context, userID string, at time.Time) error
}

type systemMessageDoc struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	ReceiverID string        `bson:"receiver_id,omitempty"`
	SenderType string        `bson:"sender_type"`
	Text       string        `bson:"text"`
	TextAr     string        `bson:"text_ar,omitempty"`
	ImageURL   string        `bson:"image_url,omitempty"`
	CreatedAt  time.Time     `bson:"created_at"`
}

func (d systemMessageDoc) model() models.SystemMessage {
	return models.SystemMessage{
		ID:         d.ID.Hex(),
		ReceiverID: d.ReceiverID,
		SenderType: models.SystemSenderType(d.SenderType),
		Content:    models.SystemContent{Text: d.Text, TextAr: d.TextAr, ImageURL: d.ImageURL},
		CreatedAt:  d.CreatedAt,
	}
}

type SystemMessageRepo struct {
	messages *mongo.Collection
	reads    *mongo.Collection
}

func NewSystemMessageRepo(database *mongo.Database) *SystemMessageRepo {
	return &SystemMessageRepo{
		messages: database.Collection(db.SystemMessagesCollection),
		reads:    database.Collection(db.SystemReadsCollection),
	}
}

func (r *SystemMessageRepo) Create(ctx context.Context, msg models.SystemMessage) (models.SystemMessage, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	doc := systemMessageDoc{
		ID:         bson.NewObjectID(),
		ReceiverID: msg.ReceiverID,
		SenderType: string(msg.SenderType),
		Text:       msg.Content.Text,
		TextAr:     msg.Content.TextAr,
		ImageURL:   msg.Content.ImageURL,
		CreatedAt:  msg.CreatedAt,
	}
	if _, err := r.messages.InsertOne(ctx, doc); err != nil {
		return models.SystemMessage{}, fmt.Errorf("insert system message: %w", err)
	}
	return doc.model(), nil
}

// visibleTo matches broadcasts and messages addressed to userID.
func visibleTo(userID string) bson.M {
	return bson.M{"$or": []bson.M{
		{"sender_type": string(models.SystemBroadcast)},
		{"receiver_id": userID},
	}}
}

func (r *SystemMessageRepo) ListForUser(ctx context.Context, userID string, skip, limit int64) ([]models.SystemMessage, int64, error) {
	filter := visibleTo(userID)
	total, err := r.messages.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetSkip(skip).SetLimit(limit)
	cur, err := r.messages.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list system messages: %w", err)
	}
	var docs []systemMessageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]models.SystemMessage, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, total, nil
}

func (r *SystemMessageRepo) CountSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	filter := visibleTo(userID)
	filter["created_at"] = bson.M{"$gt": since}
	return r.messages.CountDocuments(ctx, filter)
}

// LastRead returns the user's read marker, or the zero time when none is stored.
func (r *SystemMessageRepo) LastRead(ctx context.Context, userID string) (time.Time, error) {
	var doc struct {
		LastReadAt time.Time `bson:"last_read_at"`
	}
	err := r.reads.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return doc.LastReadAt, nil
}

func (r *SystemMessageRepo) SetLastRead(ctx context.Context, userID string, at time.Time) error {
	_, err := r.reads.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$max": bson.M{"last_read_at": at}},
		options.UpdateOne().SetUpsert(true),
	)
	return err
}

var _ SystemMessageRepository = (*SystemMessageRepo)(nil)
