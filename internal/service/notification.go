package service

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/models"
)

// NotificationService 站内信服务
type NotificationService struct{}

// NewNotificationService 创建站内信服务
func NewNotificationService() *NotificationService {
	return &NotificationService{}
}

// NotificationInput 一条待发送的通知
type NotificationInput struct {
	UserID  string
	Title   string
	Content string
	Type    string
	LinkURL string
}

// Send 发送通知。调用方按尽力而为处理：发送失败记日志，不阻断主流程
func (s *NotificationService) Send(input NotificationInput) error {
	return s.SendTx(database.GetDB(), input)
}

// SendTx 在给定事务内写入通知，供需要与业务写入同生共死的场景使用
func (s *NotificationService) SendTx(tx *gorm.DB, input NotificationInput) error {
	if input.Type == "" {
		input.Type = models.NotificationTypeSystem
	}

	n := models.Notification{
		NotificationID: uuid.NewString(),
		UserID:         input.UserID,
		Title:          input.Title,
		Content:        input.Content,
		Type:           input.Type,
		LinkURL:        input.LinkURL,
	}
	if err := tx.Create(&n).Error; err != nil {
		return err
	}

	logger.Debug("发送站内通知",
		zap.String("user_id", input.UserID),
		zap.String("type", input.Type),
		zap.String("title", input.Title))
	return nil
}

// NotificationQuery 通知查询参数
type NotificationQuery struct {
	Page     int   `form:"page"`
	PageSize int   `form:"page_size"`
	IsRead   *bool `form:"is_read"`
}

// NotificationList 通知列表结果
type NotificationList struct {
	Total       int64                 `json:"total"`
	UnreadCount int64                 `json:"unread_count"`
	Page        int                   `json:"page"`
	PageSize    int                   `json:"page_size"`
	Records     []models.Notification `json:"records"`
}

// GetUserNotifications 分页查询用户通知
func (s *NotificationService) GetUserNotifications(userID string, query *NotificationQuery) (*NotificationList, error) {
	db := database.GetDB()

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	tx := db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if query.IsRead != nil {
		tx = tx.Where("is_read = ?", *query.IsRead)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var unread int64
	if err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&unread).Error; err != nil {
		return nil, err
	}

	var records []models.Notification
	offset := (query.Page - 1) * query.PageSize
	if err := tx.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&records).Error; err != nil {
		return nil, err
	}

	return &NotificationList{
		Total:       total,
		UnreadCount: unread,
		Page:        query.Page,
		PageSize:    query.PageSize,
		Records:     records,
	}, nil
}

// MarkAsRead 标记单条通知已读
func (s *NotificationService) MarkAsRead(userID, notificationID string) error {
	return database.GetDB().Model(&models.Notification{}).
		Where("notification_id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true).Error
}

// MarkAllAsRead 标记用户全部通知已读
func (s *NotificationService) MarkAllAsRead(userID string) error {
	return database.GetDB().Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true).Error
}

// GetUnreadCount 未读通知数
func (s *NotificationService) GetUnreadCount(userID string) (int64, error) {
	var count int64
	err := database.GetDB().Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}
