package models

import (
	"time"
)

// 积分变动类型
const (
	ChangeTypeRecharge    = "recharge"     // 充值获得
	ChangeTypeDownload    = "download"     // 下载消耗
	ChangeTypeUpload      = "upload"       // 上传奖励
	ChangeTypeSignIn      = "sign_in"      // 签到奖励
	ChangeTypeTask        = "task"         // 任务奖励
	ChangeTypeAdminAdd    = "admin_add"    // 管理员增加
	ChangeTypeAdminDeduct = "admin_deduct" // 管理员扣减
	ChangeTypeExchangeVip = "exchange_vip" // 积分兑换VIP
	ChangeTypeExpire      = "expire"       // 积分过期
)

// PointsRecord 积分流水表
//
// 唯一索引 (user_id, source_id, change_type) 保证同一来源的积分只发放一次，
// 补单的幂等性由该约束在存储层兜底（source_id 为 NULL 的记录不受约束）。
type PointsRecord struct {
	RecordID      string     `gorm:"column:record_id;primaryKey" json:"record_id"`
	UserID        string     `gorm:"column:user_id;index;uniqueIndex:uniq_points_source" json:"user_id"`
	PointsChange  int        `gorm:"column:points_change" json:"points_change"`
	PointsBalance int        `gorm:"column:points_balance" json:"points_balance"`
	ChangeType    string     `gorm:"column:change_type;uniqueIndex:uniq_points_source" json:"change_type"`
	Source        string     `gorm:"column:source" json:"source"`
	SourceID      *string    `gorm:"column:source_id;uniqueIndex:uniq_points_source" json:"source_id,omitempty"`
	Description   string     `gorm:"column:description" json:"description"`
	AcquiredAt    *time.Time `gorm:"column:acquired_at" json:"acquired_at,omitempty"`
	ExpireAt      *time.Time `gorm:"column:expire_at;index" json:"expire_at,omitempty"`
	IsExpired     bool       `gorm:"column:is_expired;default:false;index" json:"is_expired"`
	CreatedAt     time.Time  `gorm:"column:created_at" json:"created_at"`
}

func (PointsRecord) TableName() string {
	return "points_records"
}
