package service

import (
	"testing"
	"time"

	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/models"
)

func TestCalculateExpireDate(t *testing.T) {
	config.Set(config.Default())

	acquired := time.Date(2024, 1, 15, 10, 0, 0, 0, time.Local)
	expire := CalculateExpireDate(acquired)

	want := time.Date(2025, 1, 15, 10, 0, 0, 0, time.Local)
	if !expire.Equal(want) {
		t.Errorf("过期时间期望 %v, 实际 %v", want, expire)
	}

	// 同输入两次计算结果一致
	if !CalculateExpireDate(acquired).Equal(expire) {
		t.Error("相同输入的过期时间应一致")
	}

	// 结果必须晚于获取时间
	if !expire.After(acquired) {
		t.Error("过期时间必须晚于获取时间")
	}
}

func TestCalculateExpireDateLeapDay(t *testing.T) {
	config.Set(config.Default())

	// 闰年2月29日 + 12个月：目标年没有2月29日，顺延到3月1日
	acquired := time.Date(2024, 2, 29, 0, 0, 0, 0, time.Local)
	expire := CalculateExpireDate(acquired)

	want := time.Date(2025, 3, 1, 0, 0, 0, 0, time.Local)
	if !expire.Equal(want) {
		t.Errorf("闰日过期时间期望 %v, 实际 %v", want, expire)
	}
}

func TestExpiryAndReminderMutualExclusion(t *testing.T) {
	config.Set(config.Default())

	expireAt := time.Date(2025, 1, 15, 0, 0, 0, 0, time.Local)

	cases := []struct {
		name         string
		now          time.Time
		expired      bool
		expiringSoon bool
	}{
		{"到期前31天", expireAt.AddDate(0, 0, -31), false, false},
		{"到期前30天整", expireAt.AddDate(0, 0, -30), false, true},
		{"到期前1天", expireAt.AddDate(0, 0, -1), false, true},
		{"恰好到期时刻", expireAt, false, false},
		{"到期后1天", expireAt.AddDate(0, 0, 1), true, false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := isExpiredAt(expireAt, c.now); got != c.expired {
				t.Errorf("isExpiredAt 期望 %v, 实际 %v", c.expired, got)
			}
			if got := isExpiringSoonAt(expireAt, c.now); got != c.expiringSoon {
				t.Errorf("isExpiringSoonAt 期望 %v, 实际 %v", c.expiringSoon, got)
			}
			// 已过期与即将过期互斥
			if isExpiredAt(expireAt, c.now) && isExpiringSoonAt(expireAt, c.now) {
				t.Error("已过期与即将过期不能同时成立")
			}
		})
	}
}

func TestGetExpiringPoints(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 300, 300)

	now := time.Now()
	// 10天后过期：命中
	seedPointsRecord(t, db, "r1", "u1", 100, now.AddDate(0, -1, 0), now.AddDate(0, 0, 10), false)
	// 60天后过期：窗口外
	seedPointsRecord(t, db, "r2", "u1", 100, now, now.AddDate(0, 0, 60), false)
	// 已过期：不命中
	seedPointsRecord(t, db, "r3", "u1", 100, now.AddDate(-1, 0, 0), now.AddDate(0, 0, -1), false)

	svc := NewPointsExpiryService()
	result, err := svc.GetExpiringPoints("u1", 30)
	if err != nil {
		t.Fatalf("GetExpiringPoints 失败: %v", err)
	}

	if result.TotalExpiringPoints != 100 {
		t.Errorf("即将过期积分期望 100, 实际 %d", result.TotalExpiringPoints)
	}
	if len(result.Records) != 1 || result.Records[0].RecordID != "r1" {
		t.Fatalf("应只命中 r1, 实际 %+v", result.Records)
	}
	if result.Records[0].DaysUntilExpiry <= 0 || result.Records[0].DaysUntilExpiry > 10 {
		t.Errorf("剩余天数应在 (0, 10] 内, 实际 %d", result.Records[0].DaysUntilExpiry)
	}
}

func TestProcessExpiredPoints(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 300, 300)
	seedUser(t, db, "u2", 50, 50)

	now := time.Now()
	// u1 两批过期共150，u2 一批过期50
	seedPointsRecord(t, db, "r1", "u1", 100, now.AddDate(-1, -1, 0), now.AddDate(0, 0, -2), false)
	seedPointsRecord(t, db, "r2", "u1", 50, now.AddDate(-1, 0, 0), now.AddDate(0, 0, -1), false)
	seedPointsRecord(t, db, "r3", "u2", 50, now.AddDate(-1, 0, 0), now.Add(-time.Hour), false)
	// 未过期批次不受影响
	seedPointsRecord(t, db, "r4", "u1", 100, now, now.AddDate(0, 6, 0), false)
	// 无归属的孤儿记录跳过
	seedPointsRecord(t, db, "r5", "", 999, now.AddDate(-1, 0, 0), now.AddDate(0, 0, -1), false)

	svc := NewPointsExpiryService()
	result, err := svc.ProcessExpiredPoints()
	if err != nil {
		t.Fatalf("ProcessExpiredPoints 失败: %v", err)
	}

	if result.ProcessedCount != 3 {
		t.Errorf("处理批次数期望 3, 实际 %d", result.ProcessedCount)
	}
	if result.TotalExpiredPoints != 200 {
		t.Errorf("过期总积分期望 200, 实际 %d", result.TotalExpiredPoints)
	}
	if len(result.AffectedUsers) != 2 {
		t.Errorf("受影响用户数期望 2, 实际 %d", len(result.AffectedUsers))
	}

	// 余额守恒：new_balance = old_balance - Σ过期积分
	var u1, u2 models.User
	db.Where("user_id = ?", "u1").First(&u1)
	db.Where("user_id = ?", "u2").First(&u2)
	if u1.PointsBalance != 150 {
		t.Errorf("u1 余额期望 150, 实际 %d", u1.PointsBalance)
	}
	if u2.PointsBalance != 0 {
		t.Errorf("u2 余额期望 0, 实际 %d", u2.PointsBalance)
	}

	// 命中批次全部标记过期
	var expiredCount int64
	db.Model(&models.PointsRecord{}).
		Where("record_id IN ? AND is_expired = ?", []string{"r1", "r2", "r3"}, true).
		Count(&expiredCount)
	if expiredCount != 3 {
		t.Errorf("过期标记数期望 3, 实际 %d", expiredCount)
	}

	// 每个用户落一条负向 expire 流水
	var expireRecords []models.PointsRecord
	db.Where("change_type = ?", models.ChangeTypeExpire).Find(&expireRecords)
	if len(expireRecords) != 2 {
		t.Fatalf("expire 流水数期望 2, 实际 %d", len(expireRecords))
	}
	for _, r := range expireRecords {
		if r.PointsChange >= 0 {
			t.Errorf("expire 流水应为负数, 实际 %d", r.PointsChange)
		}
		if r.Source != "points_expiry" {
			t.Errorf("expire 流水来源期望 points_expiry, 实际 %s", r.Source)
		}
	}

	// 幂等：再次执行不产生任何变化
	again, err := svc.ProcessExpiredPoints()
	if err != nil {
		t.Fatalf("重复执行失败: %v", err)
	}
	if again.ProcessedCount != 0 || again.TotalExpiredPoints != 0 {
		t.Errorf("重复执行应无新处理, 实际 %+v", again)
	}

	db.Where("user_id = ?", "u1").First(&u1)
	if u1.PointsBalance != 150 {
		t.Errorf("重复执行后 u1 余额应保持 150, 实际 %d", u1.PointsBalance)
	}
}

func TestSendExpiryReminders(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 100, 100)
	seedUser(t, db, "u2", 100, 100)

	now := time.Now()
	// u1 在提醒窗口内，u2 的积分60天后才过期
	seedPointsRecord(t, db, "r1", "u1", 100, now.AddDate(0, -11, 0), now.AddDate(0, 0, 15), false)
	seedPointsRecord(t, db, "r2", "u2", 100, now, now.AddDate(0, 0, 60), false)

	svc := NewPointsExpiryService()
	result, err := svc.SendExpiryReminders()
	if err != nil {
		t.Fatalf("SendExpiryReminders 失败: %v", err)
	}

	if result.SentCount != 1 {
		t.Fatalf("发送数期望 1, 实际 %d", result.SentCount)
	}
	if result.Users[0] != "u1" {
		t.Errorf("提醒对象期望 u1, 实际 %s", result.Users[0])
	}

	var n models.Notification
	if err := db.Where("user_id = ?", "u1").First(&n).Error; err != nil {
		t.Fatalf("u1 应收到站内通知: %v", err)
	}
	if n.Title != "积分即将过期提醒" {
		t.Errorf("通知标题错误: %s", n.Title)
	}
	if n.Type != models.NotificationTypePointsExpiry {
		t.Errorf("通知类型期望 points_expiry, 实际 %s", n.Type)
	}
}

func TestGetUserExpiryReminder(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 100, 100)

	svc := NewPointsExpiryService()

	// 没有即将过期的积分
	reminder, err := svc.GetUserExpiryReminder("u1")
	if err != nil {
		t.Fatalf("GetUserExpiryReminder 失败: %v", err)
	}
	if reminder.HasExpiringPoints {
		t.Error("无即将过期积分时不应提醒")
	}

	now := time.Now()
	seedPointsRecord(t, db, "r1", "u1", 100, now.AddDate(0, -11, 0), now.AddDate(0, 0, 5), false)

	reminder, err = svc.GetUserExpiryReminder("u1")
	if err != nil {
		t.Fatalf("GetUserExpiryReminder 失败: %v", err)
	}
	if !reminder.HasExpiringPoints || reminder.ExpiringPoints != 100 {
		t.Errorf("应提醒100积分即将过期, 实际 %+v", reminder)
	}
	if reminder.NearestExpiryDate == nil {
		t.Error("应返回最近过期时间")
	}
}
