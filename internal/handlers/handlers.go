package handlers

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/v2/bson"

	"messaging-service/internal/apperrors"
	"messaging-service/internal/logger"
	"messaging-service/internal/models"
	"messaging-service/internal/services"
)

// ChatAPI is the conversation surface the HTTP layer drives.
type ChatAPI interface {
	SendText(ctx context.Context, conversationID, senderID, text string) (models.Message, error)
	SendSticker(ctx context.Context, conversationID, senderID, stickerID string) (models.Message, error)
	UploadMedia(ctx context.Context, conversationID, senderID string, kind models.MessageType, file services.Upload, duration float64) (models.Message, error)
	ConversationMessages(ctx context.Context, conversationID, userID string, page, limit int64) (services.ConversationDetails, error)
	ConversationImages(ctx context.Context, conversationID, userID string) ([]string, error)
	StartConversation(ctx context.Context, in services.StartConversationInput) (models.Conversation, error)
	OpenConversationWith(ctx context.Context, userID, otherID string) (services.ConversationDetails, bool, error)
	ListConversations(ctx context.Context, userID string, page, limit int64, unreadOnly bool) (models.Page[models.ConversationSummary], error)
	TotalUnread(ctx context.Context, userID string) (int64, error)
	IsUserOnline(ctx context.Context, userID string) (services.OnlineStatus, error)
	DeleteChatMessage(ctx context.Context, messageID, senderID string) (models.Message, error)
	DeleteConversation(ctx context.Context, conversationID, userID string, selfDelete bool) error
	ToggleSecure(ctx context.Context, conversationID, userID string) (models.Conversation, error)
	UploadBackground(ctx context.Context, conversationID, userID string, file services.Upload) (string, error)
	SetBackground(ctx context.Context, conversationID, userID string, url *string) error
	GetBackground(ctx context.Context, conversationID, userID string) (*string, error)
	ListStickers(ctx context.Context) ([]models.StickerCategory, error)
	PurgeConversation(ctx context.Context, conversationID, adminID string) error
}

type SystemMessages interface {
	SendIndividual(ctx context.Context, receiverID string, content models.SystemContent) (models.SystemMessage, error)
	Broadcast(ctx context.Context, content models.SystemContent) (models.SystemMessage, error)
	ListForUser(ctx context.Context, userID string, page, limit int64) (models.Page[models.SystemMessage], error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type StrangerGifts interface {
	ListForUser(ctx context.Context, userID string) ([]models.StrangerGiftView, error)
	UnreadCount(ctx context.Context, userID string) (int64, error)
}

type Cleaner interface {
	Cleanup(ctx context.Context) (services.CleanupResult, error)
	Statistics(ctx context.Context) (services.CleanupStatistics, error)
}

// Auditor records admin actions. *telemetry.AuditEmitter satisfies it.
type Auditor interface {
	Emit(ctx context.Context, level, action, text, requestID string, userID *string, fields map[string]string)
}

var (
	_ ChatAPI        = (*services.ChatService)(nil)
	_ SystemMessages = (*services.SystemMessageService)(nil)
	_ StrangerGifts  = (*services.StrangerGiftService)(nil)
	_ Cleaner        = (*services.MediaCleaner)(nil)
)

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		_, err := bson.ObjectIDFromHex(fl.Field().String())
		return err == nil
	})
}

func respondError(c *gin.Context, op string, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= 500 {
		l := logger.FromContext(c.Request.Context())
		l.Error().Err(err).Str("op", op).Msg("request failed")
	}
	c.AbortWithStatusJSON(status, apperrors.Body(err))
}

func respondBindError(c *gin.Context, err error) {
	respondError(c, "bind", apperrors.Wrap(apperrors.CodeBadRequest, "Invalid request body", "بيانات الطلب غير صالحة", err))
}

func currentUser(c *gin.Context) string {
	return c.GetString("userID")
}

// pageParams reads ?page and ?limit. Bad values fall back to the defaults.
func pageParams(c *gin.Context) (int64, int64) {
	page, _ := strconv.ParseInt(c.DefaultQuery("page", "1"), 10, 64)
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "20"), 10, 64)
	return models.NormalizePage(page, limit)
}
