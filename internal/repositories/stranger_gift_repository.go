package repositories

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"messaging-service/internal/db"
	"messaging-service/internal/models"
)

// StrangerGiftRepository persists the per-receiver ledger of gifts from non-friends.
type StrangerGiftRepository interface {
	Record(ctx context.Context, receiverID, senderID string, gift models.GiftRef, at time.Time) (models.StrangerGift, error)
	ListForReceiver(ctx context.Context, receiverID string, limit int64) ([]models.StrangerGift, error)
	MarkAllRead(ctx context.Context, receiverID string) (int64, error)
	CountUnread(ctx context.Context, receiverID string) (int64, error)
}

type strangerGiftDoc struct {
	ID         bson.ObjectID `bson:"_id,omitempty"`
	ReceiverID string        `bson:"receiver_id"`
	SenderID   string        `bson:"sender_id"`
	GiftID     string        `bson:"gift_id"`
	GiftImage  string        `bson:"gift_image,omitempty"`
	Total      int64         `bson:"total"`
	IsRead     bool          `bson:"is_read"`
	Date       time.Time     `bson:"date"`
	CreatedAt  time.Time     `bson:"created_at"`
	UpdatedAt  time.Time     `bson:"updated_at"`
}

func (d strangerGiftDoc) model() models.StrangerGift {
	return models.StrangerGift{
		ID:         d.ID.Hex(),
		ReceiverID: d.ReceiverID,
		SenderID:   d.SenderID,
		GiftID:     d.GiftID,
		GiftImage:  d.GiftImage,
		Total:      d.Total,
		IsRead:     d.IsRead,
		Date:       d.Date,
		CreatedAt:  d.CreatedAt,
		UpdatedAt:  d.UpdatedAt,
	}
}

type StrangerGiftRepo struct {
	coll *mongo.Collection
}

func NewStrangerGiftRepo(database *mongo.Database) *StrangerGiftRepo {
	return &StrangerGiftRepo{coll: database.Collection(db.StrangerGiftsCollection)}
}

// Record adds the gift amount to the (receiver, sender, gift) entry, creating it on first
// use, and marks it unread.
func (r *StrangerGiftRepo) Record(ctx context.Context, receiverID, senderID string, gift models.GiftRef, at time.Time) (models.StrangerGift, error) {
	filter := bson.M{"receiver_id": receiverID, "sender_id": senderID, "gift_id": gift.GiftID}
	set := bson.M{"is_read": false, "date": at, "updated_at": at}
	if gift.Image != "" {
		set["gift_image"] = gift.Image
	}
	update := bson.M{
		"$inc":         bson.M{"total": gift.Amount},
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": at},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var doc strangerGiftDoc
	err := r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if mongo.IsDuplicateKeyError(err) {
		// two upserts raced on an empty slot; the loser retries as a plain update
		err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	}
	if err != nil {
		return models.StrangerGift{}, fmt.Errorf("record stranger gift: %w", err)
	}
	return doc.model(), nil
}

func (r *StrangerGiftRepo) ListForReceiver(ctx context.Context, receiverID string, limit int64) ([]models.StrangerGift, error) {
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: -1}}).SetLimit(limit)
	cur, err := r.coll.Find(ctx, bson.M{"receiver_id": receiverID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list stranger gifts: %w", err)
	}
	var docs []strangerGiftDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.StrangerGift, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

func (r *StrangerGiftRepo) MarkAllRead(ctx context.Context, receiverID string) (int64, error) {
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"receiver_id": receiverID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

func (r *StrangerGiftRepo) CountUnread(ctx context.Context, receiverID string) (int64, error) {
	return r.coll.CountDocuments(ctx, bson.M{"receiver_id": receiverID, "is_read": false})
}

var _ StrangerGiftRepository = (*StrangerGiftRepo)(nil)
