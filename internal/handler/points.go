package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sucaihub/backend/internal/service"
	"github.com/sucaihub/backend/pkg/errno"
)

// GetPointsInfo 获取当前用户的积分与等级信息
func GetPointsInfo(c *gin.Context) {
	info, err := service.NewPointsService().GetUserPointsInfo(currentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, info)
}

// GetPointsRecords 分页查询当前用户的积分流水
func GetPointsRecords(c *gin.Context) {
	var query service.PointsRecordQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	list, err := service.NewPointsService().GetPointsRecords(currentUserID(c), &query)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, list)
}

// GetExpiringPoints 查询即将过期的积分，days 为 0 时取配置的提醒窗口
func GetExpiringPoints(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "0"))

	result, err := service.NewPointsExpiryService().GetExpiringPoints(currentUserID(c), days)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// GetPointsExpiryDetails 分页查询积分有效期明细（含汇总）
func GetPointsExpiryDetails(c *gin.Context) {
	var query service.ExpiryDetailQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	list, err := service.NewPointsExpiryService().GetPointsExpiryDetails(currentUserID(c), &query)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, list)
}

// GetExpiryReminder 获取当前用户的积分过期提醒摘要
func GetExpiryReminder(c *gin.Context) {
	reminder, err := service.NewPointsExpiryService().GetUserExpiryReminder(currentUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, reminder)
}

// GetNotifications 分页查询当前用户的站内通知
func GetNotifications(c *gin.Context) {
	var query service.NotificationQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	list, err := service.NewNotificationService().GetUserNotifications(currentUserID(c), &query)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, list)
}

// MarkNotificationRead 标记单条通知已读
func MarkNotificationRead(c *gin.Context) {
	err := service.NewNotificationService().MarkAsRead(currentUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}

// MarkAllNotificationsRead 标记全部通知已读
func MarkAllNotificationsRead(c *gin.Context) {
	if err := service.NewNotificationService().MarkAllAsRead(currentUserID(c)); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}
