package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 订单支付状态
const (
	OrderStatusPending   = 0 // 待支付
	OrderStatusPaid      = 1 // 已支付
	OrderStatusCancelled = 2 // 已取消
	OrderStatusRefunded  = 3 // 已退款
)

// OrderStatusText 订单状态文本
func OrderStatusText(status int) string {
	switch status {
	case OrderStatusPending:
		return "待支付"
	case OrderStatusPaid:
		return "已支付"
	case OrderStatusCancelled:
		return "已取消"
	case OrderStatusRefunded:
		return "已退款"
	default:
		return "未知状态"
	}
}

// 支付方式
const (
	PaymentMethodWechat = "wechat"
	PaymentMethodAlipay = "alipay"
)

// RechargeOrder 充值订单表
type RechargeOrder struct {
	OrderID       string          `gorm:"column:order_id;primaryKey" json:"order_id"`
	OrderNo       string          `gorm:"column:order_no;uniqueIndex" json:"order_no"`
	UserID        string          `gorm:"column:user_id;index" json:"user_id"`
	PackageID     string          `gorm:"column:package_id" json:"package_id"`
	Amount        decimal.Decimal `gorm:"column:amount;type:decimal(10,2)" json:"amount"`
	BasePoints    int             `gorm:"column:base_points" json:"base_points"`
	BonusPoints   int             `gorm:"column:bonus_points" json:"bonus_points"`
	TotalPoints   int             `gorm:"column:total_points" json:"total_points"`
	PaymentMethod string          `gorm:"column:payment_method" json:"payment_method"`
	PaymentStatus int             `gorm:"column:payment_status;default:0;index" json:"payment_status"`
	TransactionID *string         `gorm:"column:transaction_id;index" json:"transaction_id,omitempty"`
	ExpireAt      time.Time       `gorm:"column:expire_at;index" json:"expire_at"`
	PaidAt        *time.Time      `gorm:"column:paid_at" json:"paid_at,omitempty"`
	CancelledAt   *time.Time      `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancelReason  string          `gorm:"column:cancel_reason" json:"cancel_reason"`
	IPAddress     string          `gorm:"column:ip_address" json:"ip_address"`
	DeviceInfo    string          `gorm:"column:device_info" json:"device_info"`
	CreatedAt     time.Time       `gorm:"column:created_at;index" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (RechargeOrder) TableName() string {
	return "recharge_orders"
}

// 回调处理结果
const (
	CallbackResultSuccess = "success"
	CallbackResultFailed  = "failed"
)

// RechargeCallback 支付回调记录表（每次网关回调一行，用于重复支付检测）
type RechargeCallback struct {
	CallbackID    string    `gorm:"column:callback_id;primaryKey" json:"callback_id"`
	OrderNo       string    `gorm:"column:order_no;index" json:"order_no"`
	Channel       string    `gorm:"column:channel" json:"channel"`
	TransactionID *string   `gorm:"column:transaction_id;index" json:"transaction_id,omitempty"`
	CallbackData  string    `gorm:"column:callback_data" json:"callback_data"`
	Processed     bool      `gorm:"column:processed;default:false" json:"processed"`
	ProcessResult string    `gorm:"column:process_result" json:"process_result"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (RechargeCallback) TableName() string {
	return "recharge_callbacks"
}

// 套餐状态
const (
	PackageStatusDisabled = 0
	PackageStatusEnabled  = 1
)

// RechargePackage 充值套餐表
type RechargePackage struct {
	PackageID   string          `gorm:"column:package_id;primaryKey" json:"package_id"`
	PackageName string          `gorm:"column:package_name" json:"package_name"`
	PackageCode string          `gorm:"column:package_code;uniqueIndex" json:"package_code"`
	Price       decimal.Decimal `gorm:"column:price;type:decimal(10,2)" json:"price"`
	BasePoints  int             `gorm:"column:base_points" json:"base_points"`
	BonusPoints int             `gorm:"column:bonus_points" json:"bonus_points"`
	SortOrder   int             `gorm:"column:sort_order;default:0" json:"sort_order"`
	IsRecommend bool            `gorm:"column:is_recommend;default:false" json:"is_recommend"`
	Status      int             `gorm:"column:status;default:1" json:"status"`
	CreatedAt   time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (RechargePackage) TableName() string {
	return "recharge_packages"
}
