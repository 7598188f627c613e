package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
)

var testAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestRecordMessageUpdateCountsReceiverOnly(t *testing.T) {
	mid := bson.NewObjectID()

	update, arrayFilters := recordMessageUpdate(mid, "bob", testAt, true)

	assert.Equal(t, bson.M{
		"last_message_id":    mid,
		"last_message_at":    testAt,
		"updated_at":         testAt,
		"members.$[].hidden": false,
	}, update["$set"])
	assert.Equal(t, bson.M{"members.$[receiver].unread_count": 1}, update["$inc"])
	assert.Equal(t, []any{bson.M{"receiver.user_id": "bob"}}, arrayFilters)
}

func TestRecordMessageUpdateWithoutUnread(t *testing.T) {
	update, arrayFilters := recordMessageUpdate(bson.NewObjectID(), "bob", testAt, false)

	assert.NotContains(t, update, "$inc")
	assert.Nil(t, arrayFilters)
	set := update["$set"].(bson.M)
	assert.Equal(t, false, set["members.$[].hidden"], "both sides are unhidden even when nothing is counted")
}

func TestSoftDeleteUpdateScopesToUsers(t *testing.T) {
	update, arrayFilters := softDeleteUpdate([]string{"alice"}, testAt)

	assert.Equal(t, bson.M{
		"members.$[m].deleted_at":   testAt,
		"members.$[m].hidden":       true,
		"members.$[m].unread_count": 0,
		"updated_at":                testAt,
	}, update["$set"])
	assert.Equal(t, []any{bson.M{"m.user_id": bson.M{"$in": []string{"alice"}}}}, arrayFilters)
}

func TestSecureToggleIsCompareAndSwap(t *testing.T) {
	oid := bson.NewObjectID()

	t.Run("enable", func(t *testing.T) {
		filter, update := secureToggle(oid, false, true, "alice", testAt)
		assert.Equal(t, bson.M{"_id": oid, "is_secure": false}, filter)
		assert.Equal(t, bson.M{"is_secure": true, "updated_at": testAt, "secure_enabled_by": "alice"}, update["$set"])
		assert.NotContains(t, update, "$unset")
	})

	t.Run("disable", func(t *testing.T) {
		filter, update := secureToggle(oid, true, false, "", testAt)
		assert.Equal(t, bson.M{"_id": oid, "is_secure": true}, filter)
		assert.Equal(t, bson.M{"is_secure": false, "updated_at": testAt}, update["$set"])
		assert.Equal(t, bson.M{"secure_enabled_by": ""}, update["$unset"])
	})
}

func TestConversationListQuery(t *testing.T) {
	all := conversationListQuery("alice", false)
	assert.Equal(t, bson.M{
		"participants":    "alice",
		"last_message_id": bson.M{"$exists": true},
		"members":         bson.M{"$elemMatch": bson.M{"user_id": "alice", "hidden": false}},
	}, all)

	unread := conversationListQuery("alice", true)
	assert.Equal(t,
		bson.M{"$elemMatch": bson.M{"user_id": "alice", "hidden": false, "unread_count": bson.M{"$gt": 0}}},
		unread["members"])
}

func TestVisibleFilterExcludesCutoff(t *testing.T) {
	conv := bson.NewObjectID()

	assert.Equal(t, bson.M{"conversation_id": conv, "created_at": bson.M{"$gt": testAt}}, visibleFilter(conv, testAt))
	assert.Equal(t, bson.M{"$gt": time.Time{}}, visibleFilter(conv, time.Time{})["created_at"])
}

func TestConversationDocModel(t *testing.T) {
	mid := bson.NewObjectID()
	bg := "https://media.example.com/bg.png"
	doc := conversationDoc{
		ID:            bson.NewObjectID(),
		PairKey:       pairKey("bob", "alice"),
		Participants:  []string{"alice", "bob"},
		LastMessageID: &mid,
		Members: []memberDoc{
			{UserID: "alice", UnreadCount: 0, Background: &bg},
			{UserID: "bob", UnreadCount: 3, Hidden: true},
		},
	}

	conv := doc.model()
	assert.Equal(t, "alice:bob", doc.PairKey)
	assert.Equal(t, mid.Hex(), conv.LastMessageID)
	assert.Equal(t, int64(3), conv.UnreadFor("bob"))
	require.NotNil(t, conv.BackgroundFor("alice"))
	assert.Equal(t, bg, *conv.BackgroundFor("alice"))
	assert.Nil(t, conv.BackgroundFor("bob"))
}

func TestObjectID(t *testing.T) {
	_, err := objectID("nope")
	assert.ErrorIs(t, err, ErrInvalidID)

	oid := bson.NewObjectID()
	got, err := objectID(oid.Hex())
	require.NoError(t, err)
	assert.Equal(t, oid, got)
	assert.Equal(t, []bson.ObjectID{oid}, objectIDs([]string{"bad", oid.Hex()}))
}
