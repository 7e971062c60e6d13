package service

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/models"
)

// setupTestDB 创建测试用的内存数据库并注入全局默认配置
func setupTestDB(t *testing.T) *gorm.DB {
	config.Set(config.Default())

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("无法创建测试数据库: %v", err)
	}

	err = db.AutoMigrate(
		&models.User{},
		&models.PointsRecord{},
		&models.RechargeOrder{},
		&models.RechargeCallback{},
		&models.RechargePackage{},
		&models.VipPackage{},
		&models.VipPrivilege{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("无法迁移表结构: %v", err)
	}

	database.SetTestDB(db)
	t.Cleanup(database.ClearTestDB)
	return db
}

// seedUser 插入一个启用状态的测试用户
func seedUser(t *testing.T, db *gorm.DB, userID string, balance, total int) *models.User {
	user := &models.User{
		UserID:        userID,
		Username:      "test_" + userID,
		Phone:         "13800138000",
		Status:        models.UserStatusEnabled,
		PointsBalance: balance,
		PointsTotal:   total,
		UserLevel:     CalculateUserLevel(total),
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("创建测试用户失败: %v", err)
	}
	return user
}

// seedPointsRecord 插入一条正向积分流水
func seedPointsRecord(t *testing.T, db *gorm.DB, recordID, userID string, points int, acquiredAt, expireAt time.Time, expired bool) {
	record := &models.PointsRecord{
		RecordID:      recordID,
		UserID:        userID,
		PointsChange:  points,
		PointsBalance: points,
		ChangeType:    models.ChangeTypeRecharge,
		Source:        "recharge_order",
		AcquiredAt:    &acquiredAt,
		ExpireAt:      &expireAt,
		IsExpired:     expired,
	}
	if err := db.Create(record).Error; err != nil {
		t.Fatalf("创建积分流水失败: %v", err)
	}
}

// seedOrder 插入一笔充值订单
func seedOrder(t *testing.T, db *gorm.DB, order *models.RechargeOrder) {
	if order.OrderNo == "" {
		order.OrderNo = GenerateOrderNo()
	}
	if order.ExpireAt.IsZero() {
		order.ExpireAt = time.Now().Add(30 * time.Minute)
	}
	if err := db.Create(order).Error; err != nil {
		t.Fatalf("创建测试订单失败: %v", err)
	}
}
