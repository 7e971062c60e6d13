package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 用户状态
const (
	UserStatusDisabled = 0 // 禁用
	UserStatusEnabled  = 1 // 正常
)

// User 用户表（积分余额与 VIP 状态的聚合根）
type User struct {
	UserID              string          `gorm:"column:user_id;primaryKey" json:"user_id"`
	Username            string          `gorm:"column:username" json:"username"`
	Nickname            string          `gorm:"column:nickname" json:"nickname"`
	Phone               string          `gorm:"column:phone" json:"phone"`
	Password            string          `gorm:"column:password" json:"-"`
	Status              int             `gorm:"column:status;default:1" json:"status"`
	Role                int             `gorm:"column:role;default:1" json:"role"`
	PointsBalance       int             `gorm:"column:points_balance;default:0" json:"points_balance"`
	PointsTotal         int             `gorm:"column:points_total;default:0" json:"points_total"`
	UserLevel           int             `gorm:"column:user_level;default:1" json:"user_level"`
	VipLevel            int             `gorm:"column:vip_level;default:0" json:"vip_level"`
	VipExpireAt         *time.Time      `gorm:"column:vip_expire_at" json:"vip_expire_at,omitempty"`
	IsLifetimeVip       bool            `gorm:"column:is_lifetime_vip;default:false" json:"is_lifetime_vip"`
	VipActivatedAt      *time.Time      `gorm:"column:vip_activated_at" json:"vip_activated_at,omitempty"`
	PaymentLocked       bool            `gorm:"column:payment_locked;default:false" json:"payment_locked"`
	DailyRechargeCount  int             `gorm:"column:daily_recharge_count;default:0" json:"daily_recharge_count"`
	DailyRechargeAmount decimal.Decimal `gorm:"column:daily_recharge_amount;type:decimal(10,2);default:0" json:"daily_recharge_amount"`
	LastRechargeDate    *time.Time      `gorm:"column:last_recharge_date" json:"last_recharge_date,omitempty"`
	CreatedAt           time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt           time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// 通知类型
const (
	NotificationTypeSystem         = "system"
	NotificationTypeVipExpiry      = "vip_expiry"
	NotificationTypeVipExpired     = "vip_expired"
	NotificationTypePaymentSuccess = "payment_success"
	NotificationTypePointsRecharge = "points_recharge"
	NotificationTypePointsExpiry   = "points_expiry"
)

// Notification 站内信
type Notification struct {
	NotificationID string    `gorm:"column:notification_id;primaryKey" json:"notification_id"`
	UserID         string    `gorm:"column:user_id;index" json:"user_id"`
	Title          string    `gorm:"column:title" json:"title"`
	Content        string    `gorm:"column:content" json:"content"`
	Type           string    `gorm:"column:type" json:"type"`
	LinkURL        string    `gorm:"column:link_url" json:"link_url"`
	IsRead         bool      `gorm:"column:is_read;default:false" json:"is_read"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
