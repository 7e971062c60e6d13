package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LifetimeDuration 终身套餐的 duration_days 取值
const LifetimeDuration = -1

// VipPackage VIP套餐表
type VipPackage struct {
	PackageID     string          `gorm:"column:package_id;primaryKey" json:"package_id"`
	PackageName   string          `gorm:"column:package_name" json:"package_name"`
	PackageCode   string          `gorm:"column:package_code;uniqueIndex" json:"package_code"`
	DurationDays  int             `gorm:"column:duration_days" json:"duration_days"` // -1 表示终身
	OriginalPrice decimal.Decimal `gorm:"column:original_price;type:decimal(10,2)" json:"original_price"`
	CurrentPrice  decimal.Decimal `gorm:"column:current_price;type:decimal(10,2)" json:"current_price"`
	Description   string          `gorm:"column:description" json:"description"`
	SortOrder     int             `gorm:"column:sort_order;default:0" json:"sort_order"`
	Status        int             `gorm:"column:status;default:1" json:"status"`
	CreatedAt     time.Time       `gorm:"column:created_at" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"column:updated_at" json:"updated_at"`
}

func (VipPackage) TableName() string {
	return "vip_packages"
}

// VipPrivilege VIP特权表
type VipPrivilege struct {
	PrivilegeID    string    `gorm:"column:privilege_id;primaryKey" json:"privilege_id"`
	PrivilegeCode  string    `gorm:"column:privilege_code;uniqueIndex" json:"privilege_code"`
	PrivilegeName  string    `gorm:"column:privilege_name" json:"privilege_name"`
	PrivilegeValue string    `gorm:"column:privilege_value" json:"privilege_value"`
	Description    string    `gorm:"column:description" json:"description"`
	SortOrder      int       `gorm:"column:sort_order;default:0" json:"sort_order"`
	IsEnabled      bool      `gorm:"column:is_enabled;default:true" json:"is_enabled"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"created_at"`
}

func (VipPrivilege) TableName() string {
	return "vip_privileges"
}
