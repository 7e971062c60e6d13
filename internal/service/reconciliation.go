package service

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/cache"
	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/pkg/errno"
	"github.com/sucaihub/backend/pkg/lock"
)

// AnomalyType 对账异常类型
type AnomalyType string

const (
	AnomalyPaymentTimeout     AnomalyType = "payment_timeout"     // 支付超时未取消
	AnomalyCallbackMissing    AnomalyType = "callback_missing"    // 回调缺失
	AnomalyPointsNotIssued    AnomalyType = "points_not_issued"   // 积分未发放
	AnomalyDuplicatePayment   AnomalyType = "duplicate_payment"   // 重复支付
	AnomalyAmountMismatch     AnomalyType = "amount_mismatch"     // 金额不匹配
	AnomalyStatusInconsistent AnomalyType = "status_inconsistent" // 状态不一致
)

// AnomalousOrder 对账发现的异常订单（运行时投影，不落库）
type AnomalousOrder struct {
	OrderID       string          `json:"order_id"`
	OrderNo       string          `json:"order_no"`
	UserID        string          `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	TotalPoints   int             `json:"total_points"`
	PaymentStatus int             `json:"payment_status"`
	TransactionID *string         `json:"transaction_id,omitempty"`
	AnomalyType   AnomalyType     `json:"anomaly_type"`
	AnomalyReason string          `json:"anomaly_reason"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ReconciliationResult 一次对账的结果
type ReconciliationResult struct {
	TotalOrders      int              `json:"total_orders"`
	MatchedOrders    int              `json:"matched_orders"`
	MismatchedOrders int              `json:"mismatched_orders"`
	PendingOrders    int              `json:"pending_orders"`
	AnomalousOrders  []AnomalousOrder `json:"anomalous_orders"`
}

// ReconciliationService 充值对账服务
//
// 交叉核对充值订单、支付回调与积分流水三方状态，发现异常并支持
// 对"已支付未发积分"的订单自动补单。
type ReconciliationService struct {
	orderLock lock.DistributedLock
}

// NewReconciliationService 创建对账服务。已接入 Redis 时补单使用
// 分布式锁串行化同一订单的并发补单请求
func NewReconciliationService() *ReconciliationService {
	if cache.IsConnected() {
		return &ReconciliationService{orderLock: lock.NewRedisLock(cache.GetClient())}
	}
	return &ReconciliationService{orderLock: lock.NewNoopLock()}
}

// Reconcile 对窗口内的全部订单做四分类：
// 待支付且已过期 → payment_timeout 异常；待支付未过期 → pending；
// 已支付按积分流水核对 → points_not_issued / amount_mismatch / matched；
// 已取消 → matched（终态）
func (s *ReconciliationService) Reconcile(startDate, endDate time.Time) (*ReconciliationResult, error) {
	db := database.GetDB()
	now := time.Now()

	var orders []models.RechargeOrder
	err := db.Where("created_at >= ? AND created_at <= ?", startDate, endDate).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}

	result := &ReconciliationResult{
		TotalOrders:     len(orders),
		AnomalousOrders: []AnomalousOrder{},
	}

	for _, order := range orders {
		switch order.PaymentStatus {
		case models.OrderStatusPending:
			if now.After(order.ExpireAt) {
				result.AnomalousOrders = append(result.AnomalousOrders,
					newAnomaly(order, AnomalyPaymentTimeout, "订单已过期但未自动取消"))
				result.MismatchedOrders++
			} else {
				result.PendingOrders++
			}

		case models.OrderStatusPaid:
			record, err := s.findRechargeRecord(db, order)
			if err != nil {
				return nil, err
			}
			switch {
			case record == nil:
				result.AnomalousOrders = append(result.AnomalousOrders,
					newAnomaly(order, AnomalyPointsNotIssued, "订单已支付但积分未发放"))
				result.MismatchedOrders++
			case record.PointsChange != order.TotalPoints:
				reason := fmt.Sprintf("积分发放数量不匹配: 应发%d, 实发%d", order.TotalPoints, record.PointsChange)
				result.AnomalousOrders = append(result.AnomalousOrders,
					newAnomaly(order, AnomalyAmountMismatch, reason))
				result.MismatchedOrders++
			default:
				result.MatchedOrders++
			}

		case models.OrderStatusCancelled:
			result.MatchedOrders++
		}
	}
	return result, nil
}

// findRechargeRecord 查找订单对应的充值积分流水，不存在返回 (nil, nil)
func (s *ReconciliationService) findRechargeRecord(db *gorm.DB, order models.RechargeOrder) (*models.PointsRecord, error) {
	var record models.PointsRecord
	err := db.Where("user_id = ? AND source_id = ? AND change_type = ?",
		order.UserID, order.OrderID, models.ChangeTypeRecharge).
		First(&record).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func newAnomaly(order models.RechargeOrder, typ AnomalyType, reason string) AnomalousOrder {
	return AnomalousOrder{
		OrderID:       order.OrderID,
		OrderNo:       order.OrderNo,
		UserID:        order.UserID,
		Amount:        order.Amount,
		TotalPoints:   order.TotalPoints,
		PaymentStatus: order.PaymentStatus,
		TransactionID: order.TransactionID,
		AnomalyType:   typ,
		AnomalyReason: reason,
		CreatedAt:     order.CreatedAt,
	}
}

// FindAnomalousOrders 全量查找两类异常：过期未取消、已支付未发积分。
// 金额不匹配与重复支付由窗口对账和专门的重复支付检查覆盖
func (s *ReconciliationService) FindAnomalousOrders() ([]AnomalousOrder, error) {
	db := database.GetDB()
	anomalous := []AnomalousOrder{}

	var expiredOrders []models.RechargeOrder
	err := db.Where("payment_status = ? AND expire_at < ?", models.OrderStatusPending, time.Now()).
		Find(&expiredOrders).Error
	if err != nil {
		return nil, err
	}
	for _, order := range expiredOrders {
		anomalous = append(anomalous, newAnomaly(order, AnomalyPaymentTimeout, "订单已过期但未自动取消"))
	}

	var paidOrders []models.RechargeOrder
	if err := db.Where("payment_status = ?", models.OrderStatusPaid).Find(&paidOrders).Error; err != nil {
		return nil, err
	}
	for _, order := range paidOrders {
		record, err := s.findRechargeRecord(db, order)
		if err != nil {
			return nil, err
		}
		if record == nil {
			anomalous = append(anomalous, newAnomaly(order, AnomalyPointsNotIssued, "订单已支付但积分未发放"))
		}
	}
	return anomalous, nil
}

// autoFixLockTTL 补单锁的持有上限
const autoFixLockTTL = 30 * time.Second

// AutoFix 为已支付但积分未发放的订单补发积分。
// 整个补单在一个事务内完成：余额更新、流水写入、补发通知同生共死。
// 同一订单的并发补单先被分布式锁挡掉；绕过锁的极端情况由流水表
// (user_id, source_id, change_type) 唯一索引兜底，重复写入会回滚。
func (s *ReconciliationService) AutoFix(orderID string) error {
	ctx := context.Background()
	lockKey := "autofix:" + orderID

	acquired, err := s.orderLock.Acquire(ctx, lockKey, autoFixLockTTL)
	if err != nil {
		return err
	}
	if !acquired {
		return errno.ErrAutoFixBusy
	}
	defer func() {
		if err := s.orderLock.Release(ctx, lockKey); err != nil {
			logger.Warn("释放补单锁失败", zap.String("order_id", orderID), zap.Error(err))
		}
	}()

	points := NewPointsService()
	notifications := NewNotificationService()

	return database.Transaction(func(tx *gorm.DB) error {
		var order models.RechargeOrder
		if err := tx.Where("order_id = ?", orderID).First(&order).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errno.ErrOrderNotFound
			}
			return err
		}

		if order.PaymentStatus != models.OrderStatusPaid {
			return errno.ErrInvalidOrderStatus
		}

		existing, err := s.findRechargeRecord(tx, order)
		if err != nil {
			return err
		}
		if existing != nil {
			return errno.ErrPointsAlreadyIssued
		}

		orderIDRef := order.OrderID
		_, err = points.AddPointsTx(tx, order.UserID, order.TotalPoints, PointsChange{
			ChangeType:  models.ChangeTypeRecharge,
			Source:      "recharge_auto_fix",
			SourceID:    &orderIDRef,
			Description: fmt.Sprintf("充值补单: 订单%s，补发%d积分", order.OrderNo, order.TotalPoints),
		})
		if err != nil {
			return err
		}

		if err := notifications.SendTx(tx, NotificationInput{
			UserID:  order.UserID,
			Title:   "积分补发通知",
			Content: fmt.Sprintf("您的充值订单%s积分已补发，到账%d积分。", order.OrderNo, order.TotalPoints),
			Type:    models.NotificationTypePointsRecharge,
		}); err != nil {
			return err
		}

		logger.Info("充值补单完成",
			zap.String("order_id", order.OrderID),
			zap.String("order_no", order.OrderNo),
			zap.Int("points", order.TotalPoints))
		return nil
	})
}

// DetectDuplicatePayment 同一交易号是否存在多次成功回调
func (s *ReconciliationService) DetectDuplicatePayment(transactionID string) (bool, error) {
	var count int64
	err := database.GetDB().Model(&models.RechargeCallback{}).
		Where("transaction_id = ? AND processed = ? AND process_result = ?",
			transactionID, true, models.CallbackResultSuccess).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 1, nil
}

// GetDuplicatePaymentOrders 查找所有存在重复成功回调的订单
func (s *ReconciliationService) GetDuplicatePaymentOrders() ([]AnomalousOrder, error) {
	db := database.GetDB()

	var transactionIDs []string
	err := db.Model(&models.RechargeCallback{}).
		Select("transaction_id").
		Where("processed = ? AND process_result = ? AND transaction_id IS NOT NULL",
			true, models.CallbackResultSuccess).
		Group("transaction_id").
		Having("COUNT(*) > 1").
		Pluck("transaction_id", &transactionIDs).Error
	if err != nil {
		return nil, err
	}

	anomalous := []AnomalousOrder{}
	for _, txnID := range transactionIDs {
		var order models.RechargeOrder
		err := db.Where("transaction_id = ?", txnID).First(&order).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return nil, err
		}
		anomalous = append(anomalous, newAnomaly(order, AnomalyDuplicatePayment, "检测到重复支付回调"))
	}
	return anomalous, nil
}

// CancelExpiredOrders 批量取消过期未支付订单，返回取消数量
func (s *ReconciliationService) CancelExpiredOrders() (int64, error) {
	now := time.Now()
	result := database.GetDB().Model(&models.RechargeOrder{}).
		Where("payment_status = ? AND expire_at < ?", models.OrderStatusPending, now).
		Updates(map[string]interface{}{
			"payment_status": models.OrderStatusCancelled,
			"cancelled_at":   now,
			"cancel_reason":  "订单超时自动取消",
			"updated_at":     now,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	if result.RowsAffected > 0 {
		logger.Info("取消过期订单", zap.Int64("count", result.RowsAffected))
	}
	return result.RowsAffected, nil
}

// ReconciliationStats 对账统计
type ReconciliationStats struct {
	TotalOrders     int64           `json:"total_orders"`
	PaidOrders      int64           `json:"paid_orders"`
	CancelledOrders int64           `json:"cancelled_orders"`
	PendingOrders   int64           `json:"pending_orders"`
	AnomalousCount  int             `json:"anomalous_count"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	TotalPoints     int64           `json:"total_points"`
}

// GetReconciliationStats 统计最近 days 天的订单总量与异常数。
// 异常数通过同窗口对账得出，统计口径与其他字段保持一致
func (s *ReconciliationService) GetReconciliationStats(days int) (*ReconciliationStats, error) {
	if days <= 0 {
		days = 7
	}

	db := database.GetDB()
	now := time.Now()
	startDate := now.AddDate(0, 0, -days)

	stats := &ReconciliationStats{}

	base := db.Model(&models.RechargeOrder{}).Where("created_at >= ?", startDate)
	if err := base.Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}

	statusCount := func(status int) (int64, error) {
		var count int64
		err := db.Model(&models.RechargeOrder{}).
			Where("created_at >= ? AND payment_status = ?", startDate, status).
			Count(&count).Error
		return count, err
	}

	var err error
	if stats.PaidOrders, err = statusCount(models.OrderStatusPaid); err != nil {
		return nil, err
	}
	if stats.CancelledOrders, err = statusCount(models.OrderStatusCancelled); err != nil {
		return nil, err
	}
	if stats.PendingOrders, err = statusCount(models.OrderStatusPending); err != nil {
		return nil, err
	}

	type sumRow struct {
		TotalAmount decimal.Decimal
		TotalPoints int64
	}
	var sums sumRow
	err = db.Model(&models.RechargeOrder{}).
		Where("created_at >= ?", startDate).
		Select("COALESCE(SUM(amount), 0) as total_amount, COALESCE(SUM(total_points), 0) as total_points").
		Scan(&sums).Error
	if err != nil {
		return nil, err
	}
	stats.TotalAmount = sums.TotalAmount
	stats.TotalPoints = sums.TotalPoints

	reconciled, err := s.Reconcile(startDate, now)
	if err != nil {
		return nil, err
	}
	stats.AnomalousCount = len(reconciled.AnomalousOrders)

	return stats, nil
}
