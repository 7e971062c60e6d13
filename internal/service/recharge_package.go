package service

import (
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/pkg/errno"
)

// RechargePackageService 充值套餐服务
type RechargePackageService struct{}

// NewRechargePackageService 创建充值套餐服务
func NewRechargePackageService() *RechargePackageService {
	return &RechargePackageService{}
}

var packageCodePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// PackageData 套餐创建/更新数据
type PackageData struct {
	PackageName string          `json:"package_name" binding:"required"`
	PackageCode string          `json:"package_code" binding:"required"`
	Price       decimal.Decimal `json:"price"`
	BasePoints  int             `json:"base_points"`
	BonusPoints int             `json:"bonus_points"`
	SortOrder   int             `json:"sort_order"`
	IsRecommend bool            `json:"is_recommend"`
	Status      *int            `json:"status"`
}

// ValidatePackageData 校验套餐数据，基础积分必须等于价格×10
func ValidatePackageData(data *PackageData) error {
	if data.PackageName == "" || len(data.PackageName) > 50 {
		return errno.ErrBind.WithMessage("套餐名称不能为空且不超过50个字符")
	}
	if data.PackageCode == "" || !packageCodePattern.MatchString(data.PackageCode) {
		return errno.ErrBind.WithMessage("套餐编码只能包含字母、数字、下划线和连字符")
	}
	if !data.Price.IsPositive() {
		return errno.ErrBind.WithMessage("价格必须为正数")
	}
	expectedBase := int(data.Price.Mul(decimal.NewFromInt(10)).Round(0).IntPart())
	if data.BasePoints != expectedBase {
		return errno.ErrBind.WithMessage(fmt.Sprintf("基础积分必须等于价格×10，期望值: %d", expectedBase))
	}
	if data.BonusPoints < 0 {
		return errno.ErrBind.WithMessage("赠送积分不能为负数")
	}
	return nil
}

// PackageMetrics 套餐性价比信息
type PackageMetrics struct {
	TotalPoints  int     `json:"total_points"`
	BonusRate    float64 `json:"bonus_rate"`
	ValuePerYuan float64 `json:"value_per_yuan"`
}

// CalculatePackageMetrics 计算总积分、赠送比例、每元积分值
func CalculatePackageMetrics(price decimal.Decimal, basePoints, bonusPoints int) PackageMetrics {
	m := PackageMetrics{TotalPoints: basePoints + bonusPoints}
	if basePoints > 0 {
		m.BonusRate, _ = decimal.NewFromInt(int64(bonusPoints)).
			Div(decimal.NewFromInt(int64(basePoints))).
			Mul(decimal.NewFromInt(100)).Round(2).Float64()
	}
	if price.IsPositive() {
		m.ValuePerYuan, _ = decimal.NewFromInt(int64(m.TotalPoints)).
			Div(price).Round(2).Float64()
	}
	return m
}

// GetAvailablePackages 获取上架套餐（按排序值升序）
func (s *RechargePackageService) GetAvailablePackages() ([]models.RechargePackage, error) {
	var packages []models.RechargePackage
	err := database.GetDB().
		Where("status = ?", models.PackageStatusEnabled).
		Order("sort_order ASC").
		Find(&packages).Error
	return packages, err
}

// GetAllPackages 获取全部套餐（管理后台）
func (s *RechargePackageService) GetAllPackages() ([]models.RechargePackage, error) {
	var packages []models.RechargePackage
	err := database.GetDB().Order("sort_order ASC").Find(&packages).Error
	return packages, err
}

// GetPackageByID 按ID查询套餐
func (s *RechargePackageService) GetPackageByID(packageID string) (*models.RechargePackage, error) {
	var pkg models.RechargePackage
	if err := database.GetDB().Where("package_id = ?", packageID).First(&pkg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// GetPackageByCode 按编码查询套餐
func (s *RechargePackageService) GetPackageByCode(packageCode string) (*models.RechargePackage, error) {
	var pkg models.RechargePackage
	if err := database.GetDB().Where("package_code = ?", packageCode).First(&pkg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrPackageNotFound
		}
		return nil, err
	}
	return &pkg, nil
}

// CreatePackage 创建充值套餐
func (s *RechargePackageService) CreatePackage(data *PackageData) (*models.RechargePackage, error) {
	if err := ValidatePackageData(data); err != nil {
		return nil, err
	}

	db := database.GetDB()

	var count int64
	if err := db.Model(&models.RechargePackage{}).
		Where("package_name = ? OR package_code = ?", data.PackageName, data.PackageCode).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errno.ErrBind.WithMessage("套餐名称或编码已存在")
	}

	status := models.PackageStatusEnabled
	if data.Status != nil {
		status = *data.Status
	}

	pkg := models.RechargePackage{
		PackageID:   uuid.NewString(),
		PackageName: data.PackageName,
		PackageCode: data.PackageCode,
		Price:       data.Price,
		BasePoints:  data.BasePoints,
		BonusPoints: data.BonusPoints,
		SortOrder:   data.SortOrder,
		IsRecommend: data.IsRecommend,
		Status:      status,
	}
	if err := db.Create(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

// UpdatePackage 更新充值套餐，价格或基础积分变动时重新校验比例
func (s *RechargePackageService) UpdatePackage(packageID string, data *PackageData) (*models.RechargePackage, error) {
	pkg, err := s.GetPackageByID(packageID)
	if err != nil {
		return nil, err
	}

	merged := *data
	if merged.PackageName == "" {
		merged.PackageName = pkg.PackageName
	}
	if merged.PackageCode == "" {
		merged.PackageCode = pkg.PackageCode
	}
	if merged.Price.IsZero() {
		merged.Price = pkg.Price
	}
	if merged.BasePoints == 0 {
		merged.BasePoints = pkg.BasePoints
	}
	if err := ValidatePackageData(&merged); err != nil {
		return nil, err
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.RechargePackage{}).
		Where("(package_name = ? OR package_code = ?) AND package_id != ?",
			merged.PackageName, merged.PackageCode, packageID).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errno.ErrBind.WithMessage("套餐名称或编码已存在")
	}

	updates := map[string]interface{}{
		"package_name": merged.PackageName,
		"package_code": merged.PackageCode,
		"price":        merged.Price,
		"base_points":  merged.BasePoints,
		"bonus_points": merged.BonusPoints,
		"sort_order":   merged.SortOrder,
		"is_recommend": merged.IsRecommend,
		"updated_at":   time.Now(),
	}
	if merged.Status != nil {
		updates["status"] = *merged.Status
	}
	if err := db.Model(&models.RechargePackage{}).
		Where("package_id = ?", packageID).
		Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.GetPackageByID(packageID)
}

// SetPackageStatus 上架/下架套餐
func (s *RechargePackageService) SetPackageStatus(packageID string, status int) (*models.RechargePackage, error) {
	if _, err := s.GetPackageByID(packageID); err != nil {
		return nil, err
	}
	err := database.GetDB().Model(&models.RechargePackage{}).
		Where("package_id = ?", packageID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		}).Error
	if err != nil {
		return nil, err
	}
	return s.GetPackageByID(packageID)
}

// UpdateSortOrder 调整套餐排序
func (s *RechargePackageService) UpdateSortOrder(packageID string, sortOrder int) error {
	return database.GetDB().Model(&models.RechargePackage{}).
		Where("package_id = ?", packageID).
		Updates(map[string]interface{}{
			"sort_order": sortOrder,
			"updated_at": time.Now(),
		}).Error
}

// InitDefaultPackages 空表时写入默认套餐
func (s *RechargePackageService) InitDefaultPackages() error {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.RechargePackage{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	defaults := []*PackageData{
		{PackageName: "体验套餐", PackageCode: "experience", Price: decimal.NewFromInt(10), BasePoints: 100, BonusPoints: 10, SortOrder: 1},
		{PackageName: "进阶套餐", PackageCode: "advanced", Price: decimal.NewFromInt(50), BasePoints: 500, BonusPoints: 100, SortOrder: 2, IsRecommend: true},
		{PackageName: "尊享套餐", PackageCode: "premium", Price: decimal.NewFromInt(100), BasePoints: 1000, BonusPoints: 250, SortOrder: 3},
	}
	for _, data := range defaults {
		if _, err := s.CreatePackage(data); err != nil {
			return err
		}
	}
	return nil
}
