package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/pkg/errno"
)

func TestReconcileClassification(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 0, 0)

	now := time.Now()

	// 1. 待支付且已过期 → payment_timeout
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o1", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPending,
		ExpireAt: now.Add(-time.Hour),
	})
	// 2. 待支付未过期 → pending
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o2", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPending,
		ExpireAt: now.Add(time.Hour),
	})
	// 3. 已支付无流水 → points_not_issued
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o3", UserID: "u1", Amount: decimal.NewFromInt(50),
		TotalPoints: 600, PaymentStatus: models.OrderStatusPaid,
	})
	// 4. 已支付流水金额不符 → amount_mismatch
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o4", UserID: "u1", Amount: decimal.NewFromInt(100),
		TotalPoints: 1250, PaymentStatus: models.OrderStatusPaid,
	})
	sourceO4 := "o4"
	db.Create(&models.PointsRecord{
		RecordID: "pr4", UserID: "u1", PointsChange: 1000, ChangeType: models.ChangeTypeRecharge,
		Source: "recharge_order", SourceID: &sourceO4,
	})
	// 5. 已支付流水一致 → matched
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o5", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPaid,
	})
	sourceO5 := "o5"
	db.Create(&models.PointsRecord{
		RecordID: "pr5", UserID: "u1", PointsChange: 110, ChangeType: models.ChangeTypeRecharge,
		Source: "recharge_order", SourceID: &sourceO5,
	})
	// 6. 已取消 → matched
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o6", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusCancelled,
	})

	svc := NewReconciliationService()
	result, err := svc.Reconcile(now.Add(-24*time.Hour), now.Add(time.Hour))
	if err != nil {
		t.Fatalf("Reconcile 失败: %v", err)
	}

	if result.TotalOrders != 6 {
		t.Errorf("订单总数期望 6, 实际 %d", result.TotalOrders)
	}
	if result.MatchedOrders != 2 {
		t.Errorf("匹配订单期望 2, 实际 %d", result.MatchedOrders)
	}
	if result.PendingOrders != 1 {
		t.Errorf("待支付订单期望 1, 实际 %d", result.PendingOrders)
	}
	if result.MismatchedOrders != 3 {
		t.Errorf("异常订单期望 3, 实际 %d", result.MismatchedOrders)
	}
	if len(result.AnomalousOrders) != result.MismatchedOrders {
		t.Errorf("异常列表长度 %d 应等于异常计数 %d", len(result.AnomalousOrders), result.MismatchedOrders)
	}

	// 每个订单只归入一类
	types := map[string]AnomalyType{}
	for _, a := range result.AnomalousOrders {
		if _, dup := types[a.OrderID]; dup {
			t.Errorf("订单 %s 被归入多个异常类别", a.OrderID)
		}
		types[a.OrderID] = a.AnomalyType
	}
	if types["o1"] != AnomalyPaymentTimeout {
		t.Errorf("o1 应为 payment_timeout, 实际 %s", types["o1"])
	}
	if types["o3"] != AnomalyPointsNotIssued {
		t.Errorf("o3 应为 points_not_issued, 实际 %s", types["o3"])
	}
	if types["o4"] != AnomalyAmountMismatch {
		t.Errorf("o4 应为 amount_mismatch, 实际 %s", types["o4"])
	}
}

func TestFindAnomalousOrders(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 0, 0)

	now := time.Now()
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o1", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPending,
		ExpireAt: now.Add(-time.Hour),
	})
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o2", UserID: "u1", Amount: decimal.NewFromInt(50),
		TotalPoints: 600, PaymentStatus: models.OrderStatusPaid,
	})

	svc := NewReconciliationService()
	anomalous, err := svc.FindAnomalousOrders()
	if err != nil {
		t.Fatalf("FindAnomalousOrders 失败: %v", err)
	}
	if len(anomalous) != 2 {
		t.Fatalf("异常订单数期望 2, 实际 %d", len(anomalous))
	}
}

func TestAutoFix(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 100, 100)

	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o1", OrderNo: "RC1001", UserID: "u1",
		Amount: decimal.NewFromInt(50), BasePoints: 500, BonusPoints: 100,
		TotalPoints: 600, PaymentStatus: models.OrderStatusPaid,
	})

	svc := NewReconciliationService()
	if err := svc.AutoFix("o1"); err != nil {
		t.Fatalf("AutoFix 失败: %v", err)
	}

	// 余额与累计各增加600
	var user models.User
	db.Where("user_id = ?", "u1").First(&user)
	if user.PointsBalance != 700 {
		t.Errorf("补单后余额期望 700, 实际 %d", user.PointsBalance)
	}
	if user.PointsTotal != 700 {
		t.Errorf("补单后累计期望 700, 实际 %d", user.PointsTotal)
	}

	// 恰好一条补单流水
	var records []models.PointsRecord
	db.Where("user_id = ? AND source = ?", "u1", "recharge_auto_fix").Find(&records)
	if len(records) != 1 {
		t.Fatalf("补单流水数期望 1, 实际 %d", len(records))
	}
	if records[0].PointsChange != 600 {
		t.Errorf("补单流水积分期望 600, 实际 %d", records[0].PointsChange)
	}

	// 补单通知与积分写入同事务落库
	var n models.Notification
	if err := db.Where("user_id = ? AND type = ?", "u1", models.NotificationTypePointsRecharge).First(&n).Error; err != nil {
		t.Fatalf("补单通知应落库: %v", err)
	}

	// 幂等：二次补单报"积分已发放"，余额不变
	err := svc.AutoFix("o1")
	if err != errno.ErrPointsAlreadyIssued {
		t.Fatalf("重复补单应返回 ErrPointsAlreadyIssued, 实际 %v", err)
	}
	db.Where("user_id = ?", "u1").First(&user)
	if user.PointsBalance != 700 {
		t.Errorf("重复补单后余额应保持 700, 实际 %d", user.PointsBalance)
	}
}

func TestAutoFixValidation(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 0, 0)

	svc := NewReconciliationService()

	if err := svc.AutoFix("missing"); err != errno.ErrOrderNotFound {
		t.Errorf("订单不存在应返回 ErrOrderNotFound, 实际 %v", err)
	}

	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o1", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPending,
	})
	if err := svc.AutoFix("o1"); err != errno.ErrInvalidOrderStatus {
		t.Errorf("未支付订单应返回 ErrInvalidOrderStatus, 实际 %v", err)
	}

	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o2", UserID: "ghost", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPaid,
	})
	if err := svc.AutoFix("o2"); err != errno.ErrUserNotFound {
		t.Errorf("用户不存在应返回 ErrUserNotFound, 实际 %v", err)
	}
}

func TestDetectDuplicatePayment(t *testing.T) {
	db := setupTestDB(t)

	txn := "TXN001"
	for i := 0; i < 2; i++ {
		db.Create(&models.RechargeCallback{
			CallbackID: string(rune('a' + i)), OrderNo: "RC1001", Channel: "wechat",
			TransactionID: &txn, Processed: true, ProcessResult: models.CallbackResultSuccess,
		})
	}
	other := "TXN002"
	db.Create(&models.RechargeCallback{
		CallbackID: "c3", OrderNo: "RC1002", Channel: "alipay",
		TransactionID: &other, Processed: true, ProcessResult: models.CallbackResultSuccess,
	})

	svc := NewReconciliationService()

	dup, err := svc.DetectDuplicatePayment("TXN001")
	if err != nil {
		t.Fatalf("DetectDuplicatePayment 失败: %v", err)
	}
	if !dup {
		t.Error("TXN001 应判定为重复支付")
	}

	dup, err = svc.DetectDuplicatePayment("TXN002")
	if err != nil {
		t.Fatalf("DetectDuplicatePayment 失败: %v", err)
	}
	if dup {
		t.Error("TXN002 只有一次回调，不应判定为重复支付")
	}
}

func TestGetDuplicatePaymentOrders(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 0, 0)

	txn := "TXN001"
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o1", OrderNo: "RC1001", UserID: "u1",
		Amount: decimal.NewFromInt(10), TotalPoints: 110,
		PaymentStatus: models.OrderStatusPaid, TransactionID: &txn,
	})
	for i := 0; i < 2; i++ {
		db.Create(&models.RechargeCallback{
			CallbackID: string(rune('a' + i)), OrderNo: "RC1001", Channel: "wechat",
			TransactionID: &txn, Processed: true, ProcessResult: models.CallbackResultSuccess,
		})
	}

	svc := NewReconciliationService()
	anomalous, err := svc.GetDuplicatePaymentOrders()
	if err != nil {
		t.Fatalf("GetDuplicatePaymentOrders 失败: %v", err)
	}
	if len(anomalous) != 1 {
		t.Fatalf("重复支付订单数期望 1, 实际 %d", len(anomalous))
	}
	if anomalous[0].AnomalyType != AnomalyDuplicatePayment {
		t.Errorf("异常类型期望 duplicate_payment, 实际 %s", anomalous[0].AnomalyType)
	}
}

func TestCancelExpiredOrders(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 0, 0)

	now := time.Now()
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o1", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPending,
		ExpireAt: now.Add(-time.Hour),
	})
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o2", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPending,
		ExpireAt: now.Add(time.Hour),
	})

	svc := NewReconciliationService()
	count, err := svc.CancelExpiredOrders()
	if err != nil {
		t.Fatalf("CancelExpiredOrders 失败: %v", err)
	}
	if count != 1 {
		t.Errorf("取消数期望 1, 实际 %d", count)
	}

	var o1 models.RechargeOrder
	db.Where("order_id = ?", "o1").First(&o1)
	if o1.PaymentStatus != models.OrderStatusCancelled {
		t.Errorf("o1 应已取消, 实际状态 %d", o1.PaymentStatus)
	}
	if o1.CancelReason != "订单超时自动取消" {
		t.Errorf("取消原因错误: %s", o1.CancelReason)
	}
	if o1.CancelledAt == nil {
		t.Error("应记录取消时间")
	}

	var o2 models.RechargeOrder
	db.Where("order_id = ?", "o2").First(&o2)
	if o2.PaymentStatus != models.OrderStatusPending {
		t.Errorf("未过期订单不应被取消, 实际状态 %d", o2.PaymentStatus)
	}
}

func TestGetReconciliationStats(t *testing.T) {
	db := setupTestDB(t)
	seedUser(t, db, "u1", 0, 0)

	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o1", UserID: "u1", Amount: decimal.NewFromInt(10),
		TotalPoints: 110, PaymentStatus: models.OrderStatusPaid,
	})
	sourceO1 := "o1"
	db.Create(&models.PointsRecord{
		RecordID: "pr1", UserID: "u1", PointsChange: 110, ChangeType: models.ChangeTypeRecharge,
		Source: "recharge_order", SourceID: &sourceO1,
	})
	seedOrder(t, db, &models.RechargeOrder{
		OrderID: "o2", UserID: "u1", Amount: decimal.NewFromInt(50),
		TotalPoints: 600, PaymentStatus: models.OrderStatusPaid,
	})

	svc := NewReconciliationService()
	stats, err := svc.GetReconciliationStats(7)
	if err != nil {
		t.Fatalf("GetReconciliationStats 失败: %v", err)
	}

	if stats.TotalOrders != 2 {
		t.Errorf("订单总数期望 2, 实际 %d", stats.TotalOrders)
	}
	if stats.PaidOrders != 2 {
		t.Errorf("已支付期望 2, 实际 %d", stats.PaidOrders)
	}
	if stats.TotalPoints != 710 {
		t.Errorf("积分总数期望 710, 实际 %d", stats.TotalPoints)
	}
	// o2 已支付但未发积分，同窗口对账应报 1 个异常
	if stats.AnomalousCount != 1 {
		t.Errorf("异常数期望 1, 实际 %d", stats.AnomalousCount)
	}
}
