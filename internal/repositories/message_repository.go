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

// MessageRepository defines interactions for conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg models.Message) (models.Message, error)
	Get(ctx context.Context, id string) (models.Message, error)
	GetMany(ctx context.Context, ids []string) (map[string]models.Message, error)
	ListVisible(ctx context.Context, conversationID string, after time.Time, skip, limit int64) ([]models.Message, int64, error)
	MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error)
	ReplaceContent(ctx context.Context, id string, msgType models.MessageType, content models.Content, deleted bool, at time.Time) (models.Message, error)
	ListImages(ctx context.Context, conversationID string, after time.Time) ([]models.Message, error)
	ListExpiredMedia(ctx context.Context, before time.Time, limit int64) ([]models.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) (int64, error)
	CountMediaBefore(ctx context.Context, before time.Time) (map[models.MessageType]int64, error)
	CountExpired(ctx context.Context) (map[models.MessageType]int64, error)
}

type contentDoc struct {
	Body           string  `bson:"body,omitempty"`
	BodyAr         string  `bson:"body_ar,omitempty"`
	Duration       float64 `bson:"duration,omitempty"`
	GiftID         string  `bson:"gift_id,omitempty"`
	Amount         int64   `bson:"amount,omitempty"`
	InvitationType string  `bson:"invitation_type,omitempty"`
	InvitationID   string  `bson:"invitation_id,omitempty"`
	OriginalType   string  `bson:"original_type,omitempty"`
}

type messageDoc struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	ConversationID bson.ObjectID `bson:"conversation_id"`
	SenderID       string        `bson:"sender_id"`
	ReceiverID     string        `bson:"receiver_id"`
	Type           string        `bson:"type"`
	Content        contentDoc    `bson:"content"`
	IsRead         bool          `bson:"is_read"`
	IsDeleted      bool          `bson:"is_deleted"`
	CreatedAt      time.Time     `bson:"created_at"`
	UpdatedAt      time.Time     `bson:"updated_at"`
}

func toContentDoc(c models.Content) contentDoc {
	return contentDoc{
		Body:           c.Body,
		BodyAr:         c.BodyAr,
		Duration:       c.Duration,
		GiftID:         c.GiftID,
		Amount:         c.Amount,
		InvitationType: string(c.InvitationType),
		InvitationID:   c.InvitationID,
		OriginalType:   string(c.OriginalType),
	}
}

func (d messageDoc) model() models.Message {
	return models.Message{
		ID:             d.ID.Hex(),
		ConversationID: d.ConversationID.Hex(),
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Type:           models.MessageType(d.Type),
		Content: models.Content{
			Body:           d.Content.Body,
			BodyAr:         d.Content.BodyAr,
			Duration:       d.Content.Duration,
			GiftID:         d.Content.GiftID,
			Amount:         d.Content.Amount,
			InvitationType: models.InvitationType(d.Content.InvitationType),
			InvitationID:   d.Content.InvitationID,
			OriginalType:   models.MessageType(d.Content.OriginalType),
		},
		IsRead:    d.IsRead,
		IsDeleted: d.IsDeleted,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

// MessageRepo is a MongoDB-backed repository.
type MessageRepo struct {
	coll *mongo.Collection
}

func NewMessageRepo(database *mongo.Database) *MessageRepo {
	return &MessageRepo{coll: database.Collection(db.MessagesCollection)}
}

func (r *MessageRepo) Create(ctx context.Context, msg models.Message) (models.Message, error) {
	convID, err := objectID(msg.ConversationID)
	if err != nil {
		return models.Message{}, err
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	doc := messageDoc{
		ID:             bson.NewObjectID(),
		ConversationID: convID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Type:           string(msg.Type),
		Content:        toContentDoc(msg.Content),
		IsRead:         msg.IsRead,
		IsDeleted:      msg.IsDeleted,
		CreatedAt:      msg.CreatedAt,
		UpdatedAt:      msg.CreatedAt,
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return models.Message{}, fmt.Errorf("insert message: %w", err)
	}
	return doc.model(), nil
}

func (r *MessageRepo) Get(ctx context.Context, id string) (models.Message, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Message{}, err
	}
	var doc messageDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, err
	}
	return doc.model(), nil
}

// GetMany loads messages by id. Unknown ids are absent from the result.
func (r *MessageRepo) GetMany(ctx context.Context, ids []string) (map[string]models.Message, error) {
	out := make(map[string]models.Message, len(ids))
	oids := objectIDs(ids)
	if len(oids) == 0 {
		return out, nil
	}
	docs, err := r.find(ctx, bson.M{"_id": bson.M{"$in": oids}}, options.Find())
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		out[d.ID] = d
	}
	return out, nil
}

// ListVisible pages messages created strictly after the caller's deletion cutoff, newest
// first.
func (r *MessageRepo) ListVisible(ctx context.Context, conversationID string, after time.Time, skip, limit int64) ([]models.Message, int64, error) {
	convID, err := objectID(conversationID)
	if err != nil {
		return nil, 0, err
	}
	filter := visibleFilter(convID, after)
	total, err := r.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count messages: %w", err)
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(skip).
		SetLimit(limit)
	msgs, err := r.find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}
	return msgs, total, nil
}

// MarkRead marks every unread message addressed to receiverID in the conversation.
// visibleFilter hides everything up to and including the caller's deletion cutoff.
func visibleFilter(conversationID bson.ObjectID, after time.Time) bson.M {
	return bson.M{"conversation_id": conversationID, "created_at": bson.M{"$gt": after}}
}

func (r *MessageRepo) MarkRead(ctx context.Context, conversationID, receiverID string) (int64, error) {
	convID, err := objectID(conversationID)
	if err != nil {
		return 0, err
	}
	res, err := r.coll.UpdateMany(ctx,
		bson.M{"conversation_id": convID, "receiver_id": receiverID, "is_read": false},
		bson.M{"$set": bson.M{"is_read": true}},
	)
	if err != nil {
		return 0, fmt.Errorf("mark read: %w", err)
	}
	return res.ModifiedCount, nil
}

// ReplaceContent rewrites a message in place, used for sender deletion and media expiry.
func (r *MessageRepo) ReplaceContent(ctx context.Context, id string, msgType models.MessageType, content models.Content, deleted bool, at time.Time) (models.Message, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Message{}, err
	}
	update := bson.M{"$set": bson.M{
		"type":       string(msgType),
		"content":    toContentDoc(content),
		"is_deleted": deleted,
		"updated_at": at,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc messageDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Message{}, ErrMessageNotFound
		}
		return models.Message{}, fmt.Errorf("replace content: %w", err)
	}
	return doc.model(), nil
}

func (r *MessageRepo) ListImages(ctx context.Context, conversationID string, after time.Time) ([]models.Message, error) {
	convID, err := objectID(conversationID)
	if err != nil {
		return nil, err
	}
	filter := visibleFilter(convID, after)
	filter["type"] = string(models.MessageImage)
	filter["is_deleted"] = false
	return r.find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
}

// ListExpiredMedia returns live image and voice messages created before the cutoff.
func (r *MessageRepo) ListExpiredMedia(ctx context.Context, before time.Time, limit int64) ([]models.Message, error) {
	filter := bson.M{
		"type":       bson.M{"$in": []string{string(models.MessageImage), string(models.MessageVoice)}},
		"is_deleted": false,
		"created_at": bson.M{"$lt": before},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit)
	return r.find(ctx, filter, opts)
}

func (r *MessageRepo) DeleteByConversation(ctx context.Context, conversationID string) (int64, error) {
	convID, err := objectID(conversationID)
	if err != nil {
		return 0, err
	}
	res, err := r.coll.DeleteMany(ctx, bson.M{"conversation_id": convID})
	if err != nil {
		return 0, fmt.Errorf("delete messages: %w", err)
	}
	return res.DeletedCount, nil
}

// CountMediaBefore counts live image and voice messages created before the cutoff.
func (r *MessageRepo) CountMediaBefore(ctx context.Context, before time.Time) (map[models.MessageType]int64, error) {
	match := bson.M{
		"type":       bson.M{"$in": []string{string(models.MessageImage), string(models.MessageVoice)}},
		"is_deleted": false,
		"created_at": bson.M{"$lt": before},
	}
	return r.countBy(ctx, match, "$type")
}

// CountExpired counts media messages already rewritten by expiry, by original type.
func (r *MessageRepo) CountExpired(ctx context.Context) (map[models.MessageType]int64, error) {
	match := bson.M{"is_deleted": true, "content.original_type": bson.M{"$exists": true}}
	return r.countBy(ctx, match, "$content.original_type")
}

func (r *MessageRepo) countBy(ctx context.Context, match bson.M, field string) (map[models.MessageType]int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: field},
			{Key: "count", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}
	var rows []struct {
		Type  string `bson:"_id"`
		Count int64  `bson:"count"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, err
	}
	out := make(map[models.MessageType]int64, len(rows))
	for _, row := range rows {
		out[models.MessageType(row.Type)] = row.Count
	}
	return out, nil
}

func (r *MessageRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]models.Message, error) {
	cur, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find messages: %w", err)
	}
	var docs []messageDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]models.Message, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

var _ MessageRepository = (*MessageRepo)(nil)
