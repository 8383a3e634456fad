package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yeremiapane/food-delivery/services"
	"github.com/yeremiapane/food-delivery/utils"
)

type NotificationController struct {
	Notifications *services.NotificationService
}

func NewNotificationController(notifications *services.NotificationService) *NotificationController {
	return &NotificationController{Notifications: notifications}
}

// GetNotifications -> newest first, at most 50
func (nc *NotificationController) GetNotifications(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	notifs, err := nc.Notifications.List(c.Request.Context(), actor.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications", notifs)
}

// GetPending -> {"pending": bool} for badge UIs
func (nc *NotificationController) GetPending(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	pending, err := nc.Notifications.HasUnread(c.Request.Context(), actor.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Pending notifications", gin.H{"pending": pending})
}

func (nc *NotificationController) MarkAsRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	if err := nc.Notifications.MarkRead(c.Request.Context(), actor.UserID, c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notification marked as read", nil)
}

func (nc *NotificationController) MarkAllAsRead(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	n, err := nc.Notifications.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "All notifications marked as read", gin.H{"updated": n})
}

// ClearNotifications -> empties the unread queue
func (nc *NotificationController) ClearNotifications(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	n, err := nc.Notifications.Clear(c.Request.Context(), actor.UserID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Notifications cleared", gin.H{"updated": n})
}
