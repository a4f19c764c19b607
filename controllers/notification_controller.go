package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"research-showcase-api/services"
)

// GetNotifications lists the caller's in-app notifications.
// GET /api/v1/notifications?limit=20&offset=0&unreadOnly=true
func GetNotifications(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	limit := parseIntOrDefault(c.Query("limit"), 20)
	offset := parseIntOrDefault(c.Query("offset"), 0)
	items, err := deps.Inbox.List(c.Request.Context(), actor.UserID, parseBool(c.Query("unreadOnly")), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": items})
}

// GetUnreadCount returns the number of unread notifications.
// GET /api/v1/notifications/unread-count
func GetUnreadCount(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	n, err := deps.Inbox.UnreadCount(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "count": n})
}

// MarkNotificationRead flags one notification as read.
// PATCH /api/v1/notifications/:id/read
func MarkNotificationRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		respondBadRequest(c, "Invalid notification id")
		return
	}
	if err := deps.Inbox.MarkRead(c.Request.Context(), actor.UserID, uint(id)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// MarkAllNotificationsRead flags every unread notification of the caller.
// POST /api/v1/notifications/mark-all-read
func MarkAllNotificationsRead(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	n, err := deps.Inbox.MarkAllRead(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "updated": n})
}

type PreferencesRequest struct {
	NotifyByEmailOnStatusChange *bool `json:"notify_by_email_on_status_change"`
	NotifyInAppOnStatusChange   *bool `json:"notify_in_app_on_status_change"`
}

// UpdateNotificationPreferences sets the caller's status-change opt-ins.
// Omitted flags keep their stored value.
// PUT /api/v1/notifications/preferences
func UpdateNotificationPreferences(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid preferences payload")
		return
	}
	current, err := deps.Accounts.Get(c.Request.Context(), actor.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	prefs := services.Preferences{
		NotifyByEmailOnStatusChange: current.NotifyByEmailOnStatusChange,
		NotifyInAppOnStatusChange:   current.NotifyInAppOnStatusChange,
	}
	if req.NotifyByEmailOnStatusChange != nil {
		prefs.NotifyByEmailOnStatusChange = *req.NotifyByEmailOnStatusChange
	}
	if req.NotifyInAppOnStatusChange != nil {
		prefs.NotifyInAppOnStatusChange = *req.NotifyInAppOnStatusChange
	}
	user, err := deps.Accounts.UpdatePreferences(c.Request.Context(), actor.UserID, prefs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "preferences": services.Preferences{
		NotifyByEmailOnStatusChange: user.NotifyByEmailOnStatusChange,
		NotifyInAppOnStatusChange:   user.NotifyInAppOnStatusChange,
	}})
}
