package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// RegisterNotificationRoutes registers the notification read side
func RegisterNotificationRoutes(router *gin.RouterGroup, h *Handlers) {
	router.GET("", h.getNotifications)
	router.GET("/unread-count", h.getUnreadCount)
	router.POST("/read-all", h.markAllNotificationsRead)
	router.POST("/:id/read", h.markNotificationRead)
}

// getNotifications returns a page of the user's notifications
func (h *Handlers) getNotifications(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	result, err := h.Notifications.List(c.Request.Context(), currentUserID(c), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":       true,
		"notifications": result.Notifications,
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total_count": result.TotalCount,
			"has_more":    result.HasMore,
		},
	})
}

func (h *Handlers) getUnreadCount(c *gin.Context) {
	count, err := h.Notifications.UnreadCount(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "unread_count": count})
}

func (h *Handlers) markNotificationRead(c *gin.Context) {
	notificationID, ok := idParam(c, "id")
	if !ok {
		return
	}
	notification, err := h.Notifications.MarkRead(c.Request.Context(), currentUserID(c), notificationID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Notification marked as read", "data": notification})
}

func (h *Handlers) markAllNotificationsRead(c *gin.Context) {
	updated, err := h.Notifications.MarkAllRead(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "All notifications marked as read", "updated": updated})
}
