package service

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/pkg/errno"
)

// RechargeOrderService 充值订单服务
type RechargeOrderService struct{}

// NewRechargeOrderService 创建充值订单服务
func NewRechargeOrderService() *RechargeOrderService {
	return &RechargeOrderService{}
}

var orderNoCounter uint64

// GenerateOrderNo 生成订单号：RC + 毫秒时间戳 + 3位递增序号 + 3位随机数
func GenerateOrderNo() string {
	timestamp := time.Now().UnixMilli()
	counter := atomic.AddUint64(&orderNoCounter, 1) % 1000
	random := rand.Intn(1000)
	return fmt.Sprintf("RC%d%03d%03d", timestamp, counter, random)
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	UserID        string `json:"user_id"`
	PackageID     string `json:"package_id" binding:"required"`
	PaymentMethod string `json:"payment_method" binding:"required,oneof=wechat alipay"`
	IPAddress     string `json:"-"`
	DeviceInfo    string `json:"-"`
}

// CheckRechargeLimit 检查用户是否允许充值。不允许时返回原因
func (s *RechargeOrderService) CheckRechargeLimit(userID string, amount decimal.Decimal) (bool, string, error) {
	var user models.User
	if err := database.GetDB().Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return false, "用户不存在", nil
		}
		return false, "", err
	}

	if user.Status != models.UserStatusEnabled {
		return false, "账号状态异常，无法充值", nil
	}
	if user.VipLevel > 0 || user.IsLifetimeVip {
		return false, "VIP用户无需充值积分", nil
	}
	if user.PaymentLocked {
		return false, "账号支付功能已锁定，请联系客服", nil
	}

	// 每日限制只在当天已有充值时生效，跨天后计数视为清零
	today := startOfDay(time.Now())
	if user.LastRechargeDate != nil && !user.LastRechargeDate.Before(today) {
		limits := config.Get().Recharge
		if user.DailyRechargeCount >= limits.DailyMaxCount {
			return false, fmt.Sprintf("每日充值次数已达上限（%d次）", limits.DailyMaxCount), nil
		}
		maxAmount := decimal.NewFromFloat(limits.DailyMaxAmount)
		if user.DailyRechargeAmount.Add(amount).GreaterThan(maxAmount) {
			return false, fmt.Sprintf("每日充值金额已达上限（%s元）", maxAmount.String()), nil
		}
	}
	return true, "", nil
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// CreateOrder 创建充值订单
func (s *RechargeOrderService) CreateOrder(req *CreateOrderRequest) (*models.RechargeOrder, error) {
	packages := NewRechargePackageService()

	pkg, err := packages.GetPackageByID(req.PackageID)
	if err != nil {
		return nil, err
	}
	if pkg.Status != models.PackageStatusEnabled {
		return nil, errno.ErrPackageDisabled
	}

	allowed, reason, err := s.CheckRechargeLimit(req.UserID, pkg.Price)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, errno.ErrRechargeNotAllowed.WithMessage(reason)
	}

	expireMinutes := config.Get().Recharge.OrderExpireMinutes
	order := models.RechargeOrder{
		OrderID:       uuid.NewString(),
		OrderNo:       GenerateOrderNo(),
		UserID:        req.UserID,
		PackageID:     pkg.PackageID,
		Amount:        pkg.Price,
		BasePoints:    pkg.BasePoints,
		BonusPoints:   pkg.BonusPoints,
		TotalPoints:   pkg.BasePoints + pkg.BonusPoints,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: models.OrderStatusPending,
		ExpireAt:      time.Now().Add(time.Duration(expireMinutes) * time.Minute),
		IPAddress:     req.IPAddress,
		DeviceInfo:    req.DeviceInfo,
	}
	if err := database.GetDB().Create(&order).Error; err != nil {
		return nil, err
	}

	logger.Info("创建充值订单",
		zap.String("order_no", order.OrderNo),
		zap.String("user_id", order.UserID),
		zap.String("amount", order.Amount.String()))
	return &order, nil
}

// GetOrderByID 按订单ID查询
func (s *RechargeOrderService) GetOrderByID(orderID string) (*models.RechargeOrder, error) {
	var order models.RechargeOrder
	if err := database.GetDB().Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetOrderByNo 按订单号查询
func (s *RechargeOrderService) GetOrderByNo(orderNo string) (*models.RechargeOrder, error) {
	var order models.RechargeOrder
	if err := database.GetDB().Where("order_no = ?", orderNo).First(&order).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// CancelOrder 取消待支付订单
func (s *RechargeOrderService) CancelOrder(orderID, reason string) (*models.RechargeOrder, error) {
	order, err := s.GetOrderByID(orderID)
	if err != nil {
		return nil, err
	}
	if order.PaymentStatus != models.OrderStatusPending {
		return nil, errno.ErrOrderStatusError
	}

	if reason == "" {
		reason = "用户取消"
	}
	now := time.Now()
	err = database.GetDB().Model(order).Updates(map[string]interface{}{
		"payment_status": models.OrderStatusCancelled,
		"cancelled_at":   now,
		"cancel_reason":  reason,
		"updated_at":     now,
	}).Error
	if err != nil {
		return nil, err
	}
	return s.GetOrderByID(orderID)
}

// OrderQuery 订单查询参数
type OrderQuery struct {
	Page      int    `form:"page"`
	PageSize  int    `form:"page_size"`
	Status    *int   `form:"status"`
	UserID    string `form:"user_id"`
	OrderNo   string `form:"order_no"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// OrderList 订单列表结果
type OrderList struct {
	Total    int64                  `json:"total"`
	Page     int                    `json:"page"`
	PageSize int                    `json:"page_size"`
	Records  []models.RechargeOrder `json:"records"`
}

// GetUserOrders 查询用户自己的订单
func (s *RechargeOrderService) GetUserOrders(userID string, query *OrderQuery) (*OrderList, error) {
	query.UserID = userID
	query.OrderNo = ""
	return s.GetOrders(query)
}

// GetOrders 分页查询订单（管理后台支持全量过滤）
func (s *RechargeOrderService) GetOrders(query *OrderQuery) (*OrderList, error) {
	db := database.GetDB()

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 10
	}

	tx := db.Model(&models.RechargeOrder{})
	if query.UserID != "" {
		tx = tx.Where("user_id = ?", query.UserID)
	}
	if query.Status != nil {
		tx = tx.Where("payment_status = ?", *query.Status)
	}
	if query.OrderNo != "" {
		tx = tx.Where("order_no LIKE ?", "%"+query.OrderNo+"%")
	}
	if query.StartDate != "" {
		tx = tx.Where("created_at >= ?", query.StartDate)
	}
	if query.EndDate != "" {
		tx = tx.Where("created_at <= ?", query.EndDate+" 23:59:59")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var records []models.RechargeOrder
	offset := (query.Page - 1) * query.PageSize
	if err := tx.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&records).Error; err != nil {
		return nil, err
	}

	return &OrderList{
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
		Records:  records,
	}, nil
}

// HandlePaymentSuccess 处理一次支付成功：订单置已支付、发放积分、
// 更新每日充值计数、发送通知，全部在一个事务内完成。
// 同一交易号的重复回调幂等返回；不同交易号打到已支付订单视为重复支付
func (s *RechargeOrderService) HandlePaymentSuccess(orderNo, transactionID string, paidAt time.Time) error {
	points := NewPointsService()
	notifications := NewNotificationService()

	return database.Transaction(func(tx *gorm.DB) error {
		var order models.RechargeOrder
		if err := tx.Where("order_no = ?", orderNo).First(&order).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return errno.ErrOrderNotFound
			}
			return err
		}

		if order.PaymentStatus == models.OrderStatusPaid {
			if order.TransactionID != nil && *order.TransactionID != transactionID {
				logger.Warn("检测到重复支付",
					zap.String("order_no", orderNo),
					zap.String("existing_txn", *order.TransactionID),
					zap.String("new_txn", transactionID))
				return errno.ErrDuplicatePayment
			}
			// 相同交易号，幂等返回
			return nil
		}
		if order.PaymentStatus != models.OrderStatusPending {
			return errno.ErrOrderStatusError.WithMessage("订单状态异常，无法处理支付")
		}

		now := time.Now()
		if err := tx.Model(&models.RechargeOrder{}).
			Where("order_no = ?", orderNo).
			Updates(map[string]interface{}{
				"payment_status": models.OrderStatusPaid,
				"transaction_id": transactionID,
				"paid_at":        paidAt,
				"updated_at":     now,
			}).Error; err != nil {
			return err
		}

		orderIDRef := order.OrderID
		result, err := points.AddPointsTx(tx, order.UserID, order.TotalPoints, PointsChange{
			ChangeType:  models.ChangeTypeRecharge,
			Source:      "recharge_order",
			SourceID:    &orderIDRef,
			Description: fmt.Sprintf("充值%d积分（基础%d+赠送%d）", order.TotalPoints, order.BasePoints, order.BonusPoints),
		})
		if err != nil {
			return err
		}

		if err := s.bumpDailyRecharge(tx, order.UserID, order.Amount, now); err != nil {
			return err
		}

		if err := notifications.SendTx(tx, NotificationInput{
			UserID: order.UserID,
			Title:  "积分充值成功",
			Content: fmt.Sprintf("您已成功充值%d积分（基础%d积分+赠送%d积分），当前积分余额：%d",
				order.TotalPoints, order.BasePoints, order.BonusPoints, result.PointsBalance),
			Type: models.NotificationTypePaymentSuccess,
		}); err != nil {
			return err
		}

		logger.Info("支付成功处理完成",
			zap.String("order_no", orderNo),
			zap.String("transaction_id", transactionID),
			zap.Int("points", order.TotalPoints))
		return nil
	})
}

// bumpDailyRecharge 更新每日充值计数，跨天后从头计数
func (s *RechargeOrderService) bumpDailyRecharge(tx *gorm.DB, userID string, amount decimal.Decimal, now time.Time) error {
	var user models.User
	if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return err
	}

	count := 1
	total := amount
	today := startOfDay(now)
	if user.LastRechargeDate != nil && !user.LastRechargeDate.Before(today) {
		count = user.DailyRechargeCount + 1
		total = user.DailyRechargeAmount.Add(amount)
	}

	return tx.Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"daily_recharge_count":  count,
			"daily_recharge_amount": total,
			"last_recharge_date":    now,
			"updated_at":            now,
		}).Error
}

// CallbackInput 一次支付回调的入参（网关差异已在接入层抹平）
type CallbackInput struct {
	OrderNo       string
	Channel       string
	TransactionID string
	RawData       string
	PaidAt        time.Time
}

// CallbackOutcome 回调处理结果
type CallbackOutcome struct {
	Success     bool   `json:"success"`
	OrderNo     string `json:"order_no"`
	IsDuplicate bool   `json:"is_duplicate"`
	Error       string `json:"error,omitempty"`
}

// ProcessPaymentCallback 处理支付回调：幂等检查、落回调日志、推进订单。
// 每次回调无论成败都留一行 recharge_callbacks，供对账做重复支付检测
func (s *RechargeOrderService) ProcessPaymentCallback(input *CallbackInput) (*CallbackOutcome, error) {
	db := database.GetDB()

	var processedCount int64
	err := db.Model(&models.RechargeCallback{}).
		Where("transaction_id = ? AND processed = ? AND process_result = ?",
			input.TransactionID, true, models.CallbackResultSuccess).
		Count(&processedCount).Error
	if err != nil {
		return nil, err
	}
	if processedCount > 0 {
		if err := s.logCallback(input, true, "duplicate"); err != nil {
			return nil, err
		}
		return &CallbackOutcome{Success: true, OrderNo: input.OrderNo, IsDuplicate: true}, nil
	}

	paidAt := input.PaidAt
	if paidAt.IsZero() {
		paidAt = time.Now()
	}

	if err := s.HandlePaymentSuccess(input.OrderNo, input.TransactionID, paidAt); err != nil {
		if logErr := s.logCallback(input, false, models.CallbackResultFailed); logErr != nil {
			logger.Error("记录失败回调日志失败", zap.Error(logErr))
		}
		return &CallbackOutcome{Success: false, OrderNo: input.OrderNo, Error: err.Error()}, nil
	}

	if err := s.logCallback(input, true, models.CallbackResultSuccess); err != nil {
		return nil, err
	}
	return &CallbackOutcome{Success: true, OrderNo: input.OrderNo}, nil
}

func (s *RechargeOrderService) logCallback(input *CallbackInput, processed bool, result string) error {
	txnID := input.TransactionID
	callback := models.RechargeCallback{
		CallbackID:    uuid.NewString(),
		OrderNo:       input.OrderNo,
		Channel:       input.Channel,
		TransactionID: &txnID,
		CallbackData:  input.RawData,
		Processed:     processed,
		ProcessResult: result,
	}
	return database.GetDB().Create(&callback).Error
}
