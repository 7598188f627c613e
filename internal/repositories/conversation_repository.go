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

// ConversationFilter narrows a user's conversation list.
type ConversationFilter struct {
	UnreadOnly bool
	Skip       int64
	Limit      int64
}

// ConversationRepository abstracts conversation persistence. Per-participant fields are
// always changed with single atomic updates scoped to that participant's slot.
type ConversationRepository interface {
	Create(ctx context.Context, conv models.Conversation) (models.Conversation, error)
	Get(ctx context.Context, id string) (models.Conversation, error)
	FindByPair(ctx context.Context, a, b string) (models.Conversation, error)
	RecordMessage(ctx context.Context, id, messageID, receiverID string, at time.Time, countUnread bool) (models.Conversation, error)
	ResetUnread(ctx context.Context, id, userID string) error
	SoftDelete(ctx context.Context, id string, userIDs []string, at time.Time) error
	SetSecure(ctx context.Context, id string, expect, secure bool, enabledBy string) (models.Conversation, error)
	SetBackground(ctx context.Context, id, userID string, url *string) error
	SetFriendship(ctx context.Context, a, b string, friends bool) error
	ListForUser(ctx context.Context, userID string, filter ConversationFilter) ([]models.Conversation, int64, error)
	SumUnread(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, id string) error
}

type memberDoc struct {
	UserID      string     `bson:"user_id"`
	UnreadCount int64      `bson:"unread_count"`
	DeletedAt   *time.Time `bson:"deleted_at"`
	Hidden      bool       `bson:"hidden"`
	Background  *string    `bson:"background"`
}

type conversationDoc struct {
	ID              bson.ObjectID  `bson:"_id,omitempty"`
	PairKey         string         `bson:"pair_key"`
	Participants    []string       `bson:"participants"`
	Members         []memberDoc    `bson:"members"`
	LastMessageID   *bson.ObjectID `bson:"last_message_id,omitempty"`
	LastMessageAt   time.Time      `bson:"last_message_at"`
	AreFriends      bool           `bson:"are_friends"`
	IsSecure        bool           `bson:"is_secure"`
	SecureEnabledBy string         `bson:"secure_enabled_by,omitempty"`
	CreatedAt       time.Time      `bson:"created_at"`
	UpdatedAt       time.Time      `bson:"updated_at"`
}

func (d conversationDoc) model() models.Conversation {
	conv := models.Conversation{
		ID:              d.ID.Hex(),
		LastMessageAt:   d.LastMessageAt,
		AreFriends:      d.AreFriends,
		IsSecure:        d.IsSecure,
		SecureEnabledBy: d.SecureEnabledBy,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	if d.LastMessageID != nil {
		conv.LastMessageID = d.LastMessageID.Hex()
	}
	for i := 0; i < len(d.Members) && i < 2; i++ {
		m := d.Members[i]
		conv.Members[i] = models.ParticipantState{
			UserID:      m.UserID,
			UnreadCount: m.UnreadCount,
			DeletedAt:   m.DeletedAt,
			Hidden:      m.Hidden,
			Background:  m.Background,
		}
	}
	return conv
}

// ConversationRepo is a MongoDB implementation of ConversationRepository.
type ConversationRepo struct {
	coll *mongo.Collection
}

func NewConversationRepo(database *mongo.Database) *ConversationRepo {
	return &ConversationRepo{coll: database.Collection(db.ConversationsCollection)}
}

// Create inserts a new conversation. A second conversation for the same pair is rejected
// by the unique pair index.
func (r *ConversationRepo) Create(ctx context.Context, conv models.Conversation) (models.Conversation, error) {
	now := time.Now().UTC()
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = now
	}
	conv.UpdatedAt = conv.CreatedAt
	a, b := conv.Members[0].UserID, conv.Members[1].UserID
	doc := conversationDoc{
		ID:              bson.NewObjectID(),
		PairKey:         pairKey(a, b),
		Participants:    []string{a, b},
		LastMessageAt:   conv.CreatedAt,
		AreFriends:      conv.AreFriends,
		IsSecure:        conv.IsSecure,
		SecureEnabledBy: conv.SecureEnabledBy,
		CreatedAt:       conv.CreatedAt,
		UpdatedAt:       conv.UpdatedAt,
	}
	for _, m := range conv.Members {
		doc.Members = append(doc.Members, memberDoc{
			UserID:      m.UserID,
			UnreadCount: m.UnreadCount,
			DeletedAt:   m.DeletedAt,
			Hidden:      m.Hidden,
			Background:  m.Background,
		})
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return models.Conversation{}, ErrConversationExists
		}
		return models.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	return doc.model(), nil
}

func (r *ConversationRepo) Get(ctx context.Context, id string) (models.Conversation, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Conversation{}, err
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *ConversationRepo) FindByPair(ctx context.Context, a, b string) (models.Conversation, error) {
	return r.findOne(ctx, bson.M{"pair_key": pairKey(a, b)})
}

func (r *ConversationRepo) findOne(ctx context.Context, filter bson.M) (models.Conversation, error) {
	var doc conversationDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, err
	}
	return doc.model(), nil
}

// RecordMessage moves the last-message pointer, unhides the conversation for both
// participants and, when countUnread is set, increments the receiver's unread counter in
// the same update. The updated conversation is returned.
func (r *ConversationRepo) RecordMessage(ctx context.Context, id, messageID, receiverID string, at time.Time, countUnread bool) (models.Conversation, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Conversation{}, err
	}
	mid, err := objectID(messageID)
	if err != nil {
		return models.Conversation{}, err
	}

	update, arrayFilters := recordMessageUpdate(mid, receiverID, at, countUnread)
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	if len(arrayFilters) > 0 {
		opts.SetArrayFilters(arrayFilters)
	}

	var doc conversationDoc
	if err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Conversation{}, ErrConversationNotFound
		}
		return models.Conversation{}, fmt.Errorf("record message: %w", err)
	}
	return doc.model(), nil
}

// recordMessageUpdate unhides every member slot and, with countUnread, bumps only the
// receiver's slot through the "receiver" array filter.
func recordMessageUpdate(messageID bson.ObjectID, receiverID string, at time.Time, countUnread bool) (bson.M, []any) {
	update := bson.M{
		"$set": bson.M{
			"last_message_id":    messageID,
			"last_message_at":    at,
			"updated_at":         at,
			"members.$[].hidden": false,
		},
	}
	if !countUnread {
		return update, nil
	}
	update["$inc"] = bson.M{"members.$[receiver].unread_count": 1}
	return update, []any{bson.M{"receiver.user_id": receiverID}}
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, id, userID string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "members.user_id": userID},
		bson.M{"$set": bson.M{"members.$.unread_count": 0}},
	)
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SoftDelete stamps the deletion cutoff for each user, hides the conversation for them and
// clears their unread counter. The other participant's slot is untouched.
func (r *ConversationRepo) SoftDelete(ctx context.Context, id string, userIDs []string, at time.Time) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	update, arrayFilters := softDeleteUpdate(userIDs, at)
	opts := options.UpdateOne().SetArrayFilters(arrayFilters)
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": oid}, update, opts)
	if err != nil {
		return fmt.Errorf("soft delete conversation: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func softDeleteUpdate(userIDs []string, at time.Time) (bson.M, []any) {
	update := bson.M{"$set": bson.M{
		"members.$[m].deleted_at":   at,
		"members.$[m].hidden":       true,
		"members.$[m].unread_count": 0,
		"updated_at":                at,
	}}
	return update, []any{bson.M{"m.user_id": bson.M{"$in": userIDs}}}
}

// SetSecure flips the secure flag only if it still equals expect.
func (r *ConversationRepo) SetSecure(ctx context.Context, id string, expect, secure bool, enabledBy string) (models.Conversation, error) {
	oid, err := objectID(id)
	if err != nil {
		return models.Conversation{}, err
	}
	filter, update := secureToggle(oid, expect, secure, enabledBy, time.Now().UTC())
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc conversationDoc
	err = r.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Conversation{}, ErrStaleWrite
	}
	if err != nil {
		return models.Conversation{}, fmt.Errorf("set secure: %w", err)
	}
	return doc.model(), nil
}

// secureToggle matches only while is_secure still equals expect, so a concurrent toggle
// makes the update miss instead of overwriting it.
func secureToggle(oid bson.ObjectID, expect, secure bool, enabledBy string, at time.Time) (filter, update bson.M) {
	set := bson.M{"is_secure": secure, "updated_at": at}
	update = bson.M{"$set": set}
	if secure {
		set["secure_enabled_by"] = enabledBy
	} else {
		update["$unset"] = bson.M{"secure_enabled_by": ""}
	}
	return bson.M{"_id": oid, "is_secure": expect}, update
}

func (r *ConversationRepo) SetBackground(ctx context.Context, id, userID string, url *string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": oid, "members.user_id": userID},
		bson.M{"$set": bson.M{"members.$.background": url}},
	)
	if err != nil {
		return fmt.Errorf("set background: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// SetFriendship refreshes the cached friendship flag. Missing conversations are ignored.
func (r *ConversationRepo) SetFriendship(ctx context.Context, a, b string, friends bool) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"pair_key": pairKey(a, b)},
		bson.M{"$set": bson.M{"are_friends": friends}},
	)
	return err
}

// ListForUser returns the conversations visible to userID, most recent activity first.
func (r *ConversationRepo) ListForUser(ctx context.Context, userID string, filter ConversationFilter) ([]models.Conversation, int64, error) {
	query := conversationListQuery(userID, filter.UnreadOnly)

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	opts := options.Find().SetSort(bson.D{{Key: "last_message_at", Value: -1}}).SetSkip(filter.Skip)
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}
	cur, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	var docs []conversationDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	out := make([]models.Conversation, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, total, nil
}

// conversationListQuery matches on the caller's own member slot, so the other side's
// hidden or unread state never decides visibility.
func conversationListQuery(userID string, unreadOnly bool) bson.M {
	member := bson.M{"user_id": userID, "hidden": false}
	if unreadOnly {
		member["unread_count"] = bson.M{"$gt": 0}
	}
	return bson.M{
		"participants":    userID,
		"last_message_id": bson.M{"$exists": true},
		"members":         bson.M{"$elemMatch": member},
	}
}

// SumUnread totals the user's unread counters across all conversations.
func (r *ConversationRepo) SumUnread(ctx context.Context, userID string) (int64, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "participants", Value: userID}}}},
		{{Key: "$unwind", Value: "$members"}},
		{{Key: "$match", Value: bson.D{{Key: "members.user_id", Value: userID}}}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: "$members.unread_count"}}},
		}}},
	}
	cur, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, fmt.Errorf("sum unread: %w", err)
	}
	var rows []struct {
		Total int64 `bson:"total"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	return rows[0].Total, nil
}

func (r *ConversationRepo) Delete(ctx context.Context, id string) error {
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrConversationNotFound
	}
	return nil
}

var _ ConversationRepository = (*ConversationRepo)(nil)
