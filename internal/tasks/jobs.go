package tasks

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/service"
)

// 任务名，管理后台手动补跑时引用
const (
	TaskOrderTimeout   = "order_timeout"
	TaskReconciliation = "reconciliation"
	TaskPointsExpiry   = "points_expiry"
	TaskExpiryReminder = "points_expiry_reminder"
	TaskVipReminder    = "vip_expiry_reminder"
)

// RegisterAll 注册全部后台任务，周期从配置读取
func RegisterAll(m *Manager) {
	intervals := config.Get().Tasks

	m.Register(TaskOrderTimeout, intervals.OrderTimeoutInterval, cancelExpiredOrders)
	m.Register(TaskReconciliation, intervals.ReconciliationInterval, reconcileRecentOrders)
	m.Register(TaskPointsExpiry, intervals.PointsExpiryInterval, processExpiredPoints)
	m.Register(TaskExpiryReminder, intervals.ExpiryReminderInterval, sendPointsExpiryReminders)
	m.Register(TaskVipReminder, intervals.VipReminderInterval, sendVipExpiryReminders)
}

// cancelExpiredOrders 扫描超时未支付订单并取消
func cancelExpiredOrders(ctx context.Context) error {
	cancelled, err := service.NewReconciliationService().CancelExpiredOrders()
	if err != nil {
		return err
	}
	if cancelled > 0 {
		logger.Info("超时订单已取消", zap.Int64("count", cancelled))
	}
	return nil
}

// reconcileRecentOrders 对账最近 24 小时订单，异常只记日志，补单由人工触发
func reconcileRecentOrders(ctx context.Context) error {
	now := time.Now()
	result, err := service.NewReconciliationService().Reconcile(now.Add(-24*time.Hour), now)
	if err != nil {
		return err
	}
	if len(result.AnomalousOrders) > 0 {
		logger.Warn("对账发现异常订单",
			zap.Int("anomalous", len(result.AnomalousOrders)),
			zap.Int("total", result.TotalOrders))
		for _, anomaly := range result.AnomalousOrders {
			logger.Warn("异常订单明细",
				zap.String("order_no", anomaly.OrderNo),
				zap.String("type", string(anomaly.AnomalyType)),
				zap.String("reason", anomaly.AnomalyReason))
		}
	}
	return nil
}

// processExpiredPoints 清理已到期积分
func processExpiredPoints(ctx context.Context) error {
	result, err := service.NewPointsExpiryService().ProcessExpiredPoints()
	if err != nil {
		return err
	}
	if result.ProcessedCount > 0 {
		logger.Info("积分过期清理完成",
			zap.Int("records", result.ProcessedCount),
			zap.Int("points", result.TotalExpiredPoints),
			zap.Int("users", len(result.AffectedUsers)))
	}
	return nil
}

// sendPointsExpiryReminders 发送积分即将过期提醒
func sendPointsExpiryReminders(ctx context.Context) error {
	result, err := service.NewPointsExpiryService().SendExpiryReminders()
	if err != nil {
		return err
	}
	if result.SentCount > 0 {
		logger.Info("积分过期提醒已发送", zap.Int("count", result.SentCount))
	}
	return nil
}

// sendVipExpiryReminders 发送VIP到期提醒
func sendVipExpiryReminders(ctx context.Context) error {
	sent, err := service.NewVipService().SendVipExpiryReminders()
	if err != nil {
		return err
	}
	if sent > 0 {
		logger.Info("VIP到期提醒已发送", zap.Int("count", sent))
	}
	return nil
}
