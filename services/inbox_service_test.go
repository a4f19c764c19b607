package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"research-showcase-api/models"
	"research-showcase-api/utils"
)

func TestInboxListAndMarkRead(t *testing.T) {
	db := newTestDB(t)
	me := createUser(t, db, "faculty", models.RoleFaculty)
	someone := createUser(t, db, "other", models.RoleFaculty)
	for i := 1; i <= 3; i++ {
		require.NoError(t, db.Create(&models.Notification{UserID: me.UserID, Kind: models.EventStatusApproved, Message: fmt.Sprintf("note %d", i)}).Error)
	}
	theirs := models.Notification{UserID: someone.UserID, Kind: models.EventStatusRejected, Message: "not mine"}
	require.NoError(t, db.Create(&theirs).Error)

	svc := NewInboxService(db)
	ctx := context.Background()

	items, err := svc.List(ctx, me.UserID, false, 0, 0)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "note 3", items[0].Message, "newest first")

	page, err := svc.List(ctx, me.UserID, false, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "note 1", page[0].Message)

	n, err := svc.UnreadCount(ctx, me.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	require.NoError(t, svc.MarkRead(ctx, me.UserID, items[0].NotificationID))
	require.NoError(t, svc.MarkRead(ctx, me.UserID, items[0].NotificationID), "marking twice is fine")
	assert.True(t, utils.IsCode(svc.MarkRead(ctx, me.UserID, theirs.NotificationID), utils.CodeNotFound))

	unread, err := svc.List(ctx, me.UserID, true, 10, 0)
	require.NoError(t, err)
	assert.Len(t, unread, 2)

	changed, err := svc.MarkAllRead(ctx, me.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), changed)

	n, err = svc.UnreadCount(ctx, me.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = svc.UnreadCount(ctx, someone.UserID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
