package handlers

import (
	"github.com/gin-gonic/gin"

	"messaging-service/internal/middleware"
)

// Routes groups the handlers mounted under /v1/chat.
type Routes struct {
	Chat     *ChatHandler
	Inbox    *InboxHandler
	Admin    *AdminHandler
	Internal *InternalHandler
}

// Register mounts the authenticated chat API. auth must set the caller id and role.
func (r Routes) Register(router gin.IRouter, auth gin.HandlerFunc) {
	api := router.Group("/v1/chat", auth)

	api.POST("/messages/:conversationId", r.Chat.SendMessage)
	api.GET("/messages/:conversationId", r.Chat.GetMessages)
	api.POST("/messages/media/:conversationId", r.Chat.SendMedia)
	api.DELETE("/messages/:messageId", r.Chat.DeleteMessage)
	api.GET("/conversation-images/:conversationId", r.Chat.ConversationImages)

	api.POST("/conversations/start", r.Chat.StartConversation)
	api.GET("/conversations", r.Chat.ListConversations)
	api.GET("/conversations/unread", r.Chat.ListUnreadConversations)
	api.POST("/conversations/delete-conversation", r.Chat.DeleteConversation)
	api.POST("/conversations/toggle-secure", r.Chat.ToggleSecure)
	api.GET("/conversations/:conversationId/background", r.Chat.GetBackground)
	api.POST("/conversations/:conversationId/background", r.Chat.UploadBackground)
	api.DELETE("/conversations/:conversationId/background", r.Chat.ClearBackground)
	api.GET("/get-conversation/:userId", r.Chat.GetConversationWith)

	api.GET("/unread", r.Chat.TotalUnread)
	api.GET("/isuseronline/:userId", r.Chat.IsUserOnline)
	api.GET("/stickers", r.Chat.ListStickers)

	api.GET("/system/unread-count", r.Inbox.SystemUnreadCount)
	api.GET("/system/messages", r.Inbox.SystemMessages)
	api.GET("/stranger-gifts/unread-count", r.Inbox.StrangerGiftsUnreadCount)
	api.GET("/stranger-gifts", r.Inbox.StrangerGifts)

	admin := api.Group("/admin", middleware.AdminOnly())
	admin.GET("/cleanup/statistics", r.Admin.CleanupStatistics)
	admin.POST("/cleanup/trigger", r.Admin.TriggerCleanup)
	admin.DELETE("/conversations/:conversationId", r.Admin.PurgeConversation)
	admin.POST("/system-messages", r.Admin.SendSystemMessage)
	admin.POST("/system-messages/broadcast", r.Admin.BroadcastSystemMessage)

	internal := api.Group("/internal", middleware.AdminOnly())
	internal.POST("/gifts", r.Internal.SendGift)
	internal.POST("/invitations", r.Internal.SendInvitation)
	internal.POST("/friendships", r.Internal.RefreshFriendship)
}
