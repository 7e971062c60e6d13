package service

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/pkg/errno"
)

func TestValidatePackageData(t *testing.T) {
	base := func() *PackageData {
		return &PackageData{
			PackageName: "测试套餐",
			PackageCode: "test_pkg-1",
			Price:       decimal.NewFromInt(50),
			BasePoints:  500,
			BonusPoints: 100,
		}
	}

	if err := ValidatePackageData(base()); err != nil {
		t.Fatalf("合法数据不应报错: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*PackageData)
	}{
		{"名称为空", func(d *PackageData) { d.PackageName = "" }},
		{"名称过长", func(d *PackageData) {
			for len(d.PackageName) <= 50 {
				d.PackageName += "長"
			}
		}},
		{"编码含非法字符", func(d *PackageData) { d.PackageCode = "bad code!" }},
		{"价格为零", func(d *PackageData) { d.Price = decimal.Zero }},
		{"价格为负", func(d *PackageData) { d.Price = decimal.NewFromInt(-10) }},
		{"基础积分不等于价格×10", func(d *PackageData) { d.BasePoints = 499 }},
		{"赠送积分为负", func(d *PackageData) { d.BonusPoints = -1 }},
	}
	for _, c := range cases {
		data := base()
		c.mutate(data)
		if err := ValidatePackageData(data); err == nil {
			t.Errorf("%s: 应校验失败", c.name)
		}
	}

	// 小数价格四舍五入后比对
	data := base()
	data.Price = decimal.NewFromFloat(9.99)
	data.BasePoints = 100 // round(99.9) = 100
	if err := ValidatePackageData(data); err != nil {
		t.Errorf("9.99元对应100基础积分应通过: %v", err)
	}
}

func TestCalculatePackageMetrics(t *testing.T) {
	m := CalculatePackageMetrics(decimal.NewFromInt(50), 500, 100)
	if m.TotalPoints != 600 {
		t.Errorf("总积分期望 600, 实际 %d", m.TotalPoints)
	}
	if m.BonusRate != 20 {
		t.Errorf("赠送比例期望 20, 实际 %v", m.BonusRate)
	}
	if m.ValuePerYuan != 12 {
		t.Errorf("每元积分期望 12, 实际 %v", m.ValuePerYuan)
	}

	// 零基础积分不除零
	m = CalculatePackageMetrics(decimal.Zero, 0, 0)
	if m.BonusRate != 0 || m.ValuePerYuan != 0 {
		t.Errorf("零值套餐指标应为 0: %+v", m)
	}
}

func TestCreatePackage(t *testing.T) {
	setupTestDB(t)
	svc := NewRechargePackageService()

	pkg, err := svc.CreatePackage(&PackageData{
		PackageName: "基础套餐",
		PackageCode: "basic",
		Price:       decimal.NewFromInt(20),
		BasePoints:  200,
		BonusPoints: 20,
	})
	if err != nil {
		t.Fatalf("CreatePackage 失败: %v", err)
	}
	if pkg.Status != models.PackageStatusEnabled {
		t.Errorf("默认状态应为上架, 实际 %d", pkg.Status)
	}

	// 编码重复
	_, err = svc.CreatePackage(&PackageData{
		PackageName: "另一个套餐",
		PackageCode: "basic",
		Price:       decimal.NewFromInt(20),
		BasePoints:  200,
	})
	if err == nil {
		t.Error("重复编码应被拒绝")
	}
}

func TestUpdatePackage(t *testing.T) {
	db := setupTestDB(t)
	seedPackage(t, db, "p1", 50, 500, 100, models.PackageStatusEnabled)

	svc := NewRechargePackageService()

	// 只改价格但不改基础积分：比例校验失败
	_, err := svc.UpdatePackage("p1", &PackageData{
		Price: decimal.NewFromInt(80),
	})
	if err == nil {
		t.Error("价格与基础积分比例不符应被拒绝")
	}

	updated, err := svc.UpdatePackage("p1", &PackageData{
		Price:       decimal.NewFromInt(80),
		BasePoints:  800,
		BonusPoints: 200,
	})
	if err != nil {
		t.Fatalf("UpdatePackage 失败: %v", err)
	}
	if updated.BasePoints != 800 || updated.BonusPoints != 200 {
		t.Errorf("更新结果错误: %+v", updated)
	}

	if _, err := svc.UpdatePackage("missing", &PackageData{}); err != errno.ErrPackageNotFound {
		t.Errorf("更新不存在套餐应返回 ErrPackageNotFound, 实际 %v", err)
	}
}

func TestSetPackageStatusAndList(t *testing.T) {
	db := setupTestDB(t)
	seedPackage(t, db, "p1", 10, 100, 10, models.PackageStatusEnabled)
	seedPackage(t, db, "p2", 50, 500, 100, models.PackageStatusEnabled)

	svc := NewRechargePackageService()
	if _, err := svc.SetPackageStatus("p2", models.PackageStatusDisabled); err != nil {
		t.Fatalf("SetPackageStatus 失败: %v", err)
	}

	available, err := svc.GetAvailablePackages()
	if err != nil {
		t.Fatalf("GetAvailablePackages 失败: %v", err)
	}
	if len(available) != 1 || available[0].PackageID != "p1" {
		t.Errorf("上架套餐应只剩 p1: %+v", available)
	}

	all, err := svc.GetAllPackages()
	if err != nil {
		t.Fatalf("GetAllPackages 失败: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("全部套餐期望 2, 实际 %d", len(all))
	}
}

func TestInitDefaultPackages(t *testing.T) {
	db := setupTestDB(t)
	svc := NewRechargePackageService()

	if err := svc.InitDefaultPackages(); err != nil {
		t.Fatalf("InitDefaultPackages 失败: %v", err)
	}

	var count int64
	db.Model(&models.RechargePackage{}).Count(&count)
	if count != 3 {
		t.Fatalf("默认套餐期望 3 个, 实际 %d", count)
	}

	// 每个默认套餐都要满足价格×10规则
	all, _ := svc.GetAllPackages()
	for _, pkg := range all {
		expected := int(pkg.Price.Mul(decimal.NewFromInt(10)).Round(0).IntPart())
		if pkg.BasePoints != expected {
			t.Errorf("套餐 %s 基础积分 %d 不满足价格×10", pkg.PackageCode, pkg.BasePoints)
		}
	}

	// 已有数据时不重复写入
	if err := svc.InitDefaultPackages(); err != nil {
		t.Fatalf("二次初始化失败: %v", err)
	}
	db.Model(&models.RechargePackage{}).Count(&count)
	if count != 3 {
		t.Errorf("二次初始化不应新增套餐, 实际 %d", count)
	}
}
