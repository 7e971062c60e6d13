package service

import (
	"fmt"
	"math"
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

// VIP 图标状态
const (
	VipIconNone           = "none"            // 无图标
	VipIconActive         = "active"          // 金色图标
	VipIconActiveLifetime = "active_lifetime" // 金色图标+终身标签
	VipIconGracePeriod    = "grace_period"    // 灰色图标（宽限期）
)

// VipService VIP 服务：开通/续费的到期时间推算、状态与宽限期判断、
// 套餐与特权管理
type VipService struct{}

// NewVipService 创建 VIP 服务
func NewVipService() *VipService {
	return &VipService{}
}

// VipStatus VIP 状态
type VipStatus struct {
	IsVip         bool       `json:"is_vip"`
	IsLifetime    bool       `json:"is_lifetime"`
	ExpireAt      *time.Time `json:"expire_at"`
	InGracePeriod bool       `json:"in_grace_period"`
}

// CheckVipStatus 判定用户当前 VIP 状态。
// 有效期内为 VIP；过期后宽限期内不再是 VIP 但保留宽限标记
func (s *VipService) CheckVipStatus(userID string) (*VipStatus, error) {
	var user models.User
	if err := database.GetDB().Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return &VipStatus{}, nil
		}
		return nil, err
	}

	if user.IsLifetimeVip {
		return &VipStatus{IsVip: true, IsLifetime: true}, nil
	}
	if user.VipExpireAt == nil {
		return &VipStatus{}, nil
	}

	now := time.Now()
	graceEnd := user.VipExpireAt.AddDate(0, 0, config.Get().Vip.GracePeriodDays)

	status := &VipStatus{ExpireAt: user.VipExpireAt}
	switch {
	case now.Before(*user.VipExpireAt):
		status.IsVip = true
	case now.Before(graceEnd):
		status.InGracePeriod = true
	}
	return status, nil
}

// VipInfo 用户 VIP 详情
type VipInfo struct {
	UserID        string                `json:"user_id"`
	VipLevel      int                   `json:"vip_level"`
	IsVip         bool                  `json:"is_vip"`
	IsLifetime    bool                  `json:"is_lifetime"`
	ExpireAt      *time.Time            `json:"expire_at"`
	DaysRemaining int                   `json:"days_remaining"` // -1 表示永久
	IconStatus    string                `json:"icon_status"`
	Privileges    []models.VipPrivilege `json:"privileges"`
	ActivatedAt   *time.Time            `json:"activated_at"`
}

// GetUserVipInfo 获取用户 VIP 详情（含图标状态与特权列表）
func (s *VipService) GetUserVipInfo(userID string) (*VipInfo, error) {
	var user models.User
	if err := database.GetDB().Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}

	info := &VipInfo{
		UserID:      user.UserID,
		VipLevel:    user.VipLevel,
		IsLifetime:  user.IsLifetimeVip,
		ExpireAt:    user.VipExpireAt,
		IconStatus:  VipIconNone,
		Privileges:  []models.VipPrivilege{},
		ActivatedAt: user.VipActivatedAt,
	}

	now := time.Now()
	if user.IsLifetimeVip {
		info.IsVip = true
		info.DaysRemaining = -1
		info.IconStatus = VipIconActiveLifetime
	} else if user.VipExpireAt != nil {
		graceEnd := user.VipExpireAt.AddDate(0, 0, config.Get().Vip.GracePeriodDays)
		switch {
		case now.Before(*user.VipExpireAt):
			info.IsVip = true
			info.DaysRemaining = int(math.Ceil(user.VipExpireAt.Sub(now).Hours() / 24))
			info.IconStatus = VipIconActive
		case now.Before(graceEnd):
			info.IconStatus = VipIconGracePeriod
		}
	}

	if info.IsVip {
		privileges, err := s.GetVipPrivileges()
		if err != nil {
			return nil, err
		}
		info.Privileges = privileges
	}
	return info, nil
}

// VipActivationResult VIP 开通/续费结果
type VipActivationResult struct {
	VipLevel         int        `json:"vip_level"`
	ExpireAt         *time.Time `json:"expire_at"` // 终身会员为 nil
	IsLifetime       bool       `json:"is_lifetime"`
	IsRenewal        bool       `json:"is_renewal"`
	PreviousExpireAt *time.Time `json:"previous_expire_at"`
}

// ActivateVip 开通或续费 VIP。
// 有效期内续费从原到期时间顺延，否则从当前时间起算；
// 终身套餐（duration_days = -1 或编码 lifetime）清空到期时间
func (s *VipService) ActivateVip(userID, packageID string) (*VipActivationResult, error) {
	db := database.GetDB()

	var pkg models.VipPackage
	if err := db.Where("package_id = ?", packageID).First(&pkg).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrVipPackageNotFound
		}
		return nil, err
	}

	var user models.User
	if err := db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}

	now := time.Now()
	isRenewal := user.VipLevel > 0 && user.VipExpireAt != nil && user.VipExpireAt.After(now)
	isLifetime := pkg.DurationDays == models.LifetimeDuration || pkg.PackageCode == "lifetime"

	var expireAt *time.Time
	switch {
	case isLifetime:
		expireAt = nil
	case isRenewal:
		t := user.VipExpireAt.AddDate(0, 0, pkg.DurationDays)
		expireAt = &t
	default:
		t := now.AddDate(0, 0, pkg.DurationDays)
		expireAt = &t
	}

	activatedAt := user.VipActivatedAt
	if activatedAt == nil {
		activatedAt = &now
	}

	err := db.Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"vip_level":        1,
			"vip_expire_at":    expireAt,
			"is_lifetime_vip":  isLifetime,
			"vip_activated_at": activatedAt,
			"updated_at":       now,
		}).Error
	if err != nil {
		return nil, err
	}

	expireText := "终身"
	if expireAt != nil {
		expireText = expireAt.Format("2006-01-02 15:04:05")
	}
	logger.Info("VIP开通成功",
		zap.String("user_id", userID),
		zap.String("package", pkg.PackageName),
		zap.String("expire_at", expireText))

	return &VipActivationResult{
		VipLevel:         1,
		ExpireAt:         expireAt,
		IsLifetime:       isLifetime,
		IsRenewal:        isRenewal,
		PreviousExpireAt: user.VipExpireAt,
	}, nil
}

// ExpiringVipUser 即将到期的 VIP 用户
type ExpiringVipUser struct {
	UserID        string    `json:"user_id"`
	Nickname      string    `json:"nickname"`
	Phone         string    `json:"phone"`
	ExpireAt      time.Time `json:"expire_at"`
	DaysRemaining int       `json:"days_remaining"`
}

// GetExpiringVipUsers 查询恰好在 daysUntilExpiry 天后那个日历日到期的用户
func (s *VipService) GetExpiringVipUsers(daysUntilExpiry int) ([]ExpiringVipUser, error) {
	target := time.Now().AddDate(0, 0, daysUntilExpiry)
	dayStart := startOfDay(target)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var users []models.User
	err := database.GetDB().
		Where("vip_level > 0 AND is_lifetime_vip = ?", false).
		Where("vip_expire_at >= ? AND vip_expire_at < ?", dayStart, dayEnd).
		Find(&users).Error
	if err != nil {
		return nil, err
	}

	result := make([]ExpiringVipUser, 0, len(users))
	for _, u := range users {
		if u.VipExpireAt == nil {
			continue
		}
		result = append(result, ExpiringVipUser{
			UserID:        u.UserID,
			Nickname:      u.Nickname,
			Phone:         u.Phone,
			ExpireAt:      *u.VipExpireAt,
			DaysRemaining: daysUntilExpiry,
		})
	}
	return result, nil
}

// SendVipExpiryReminders 按 3天/1天/当日/已过期 四档发送到期提醒。
// 单个用户发送失败只记日志，不影响其余用户
func (s *VipService) SendVipExpiryReminders() (int, error) {
	sent := 0
	for _, days := range []int{3, 1, 0} {
		users, err := s.GetExpiringVipUsers(days)
		if err != nil {
			return sent, err
		}
		for _, u := range users {
			if err := s.sendExpiryReminder(u.UserID, days); err != nil {
				logger.Warn("发送VIP到期提醒失败", zap.String("user_id", u.UserID), zap.Error(err))
				continue
			}
			sent++
		}
	}

	// 已过期但仍在宽限期内的用户
	now := time.Now()
	today := startOfDay(now)
	graceStart := today.AddDate(0, 0, -config.Get().Vip.GracePeriodDays)

	var expiredUsers []models.User
	err := database.GetDB().
		Where("vip_level > 0 AND is_lifetime_vip = ?", false).
		Where("vip_expire_at >= ? AND vip_expire_at < ?", graceStart, today).
		Find(&expiredUsers).Error
	if err != nil {
		return sent, err
	}
	for _, u := range expiredUsers {
		if u.VipExpireAt == nil {
			continue
		}
		daysExpired := int(now.Sub(*u.VipExpireAt).Hours() / 24)
		if err := s.sendExpiryReminder(u.UserID, -daysExpired); err != nil {
			logger.Warn("发送VIP过期提醒失败", zap.String("user_id", u.UserID), zap.Error(err))
			continue
		}
		sent++
	}
	return sent, nil
}

// sendExpiryReminder days > 0 到期前提醒，= 0 当日到期，< 0 已过期
func (s *VipService) sendExpiryReminder(userID string, days int) error {
	notifications := NewNotificationService()

	input := NotificationInput{
		UserID:  userID,
		LinkURL: "/user/vip",
	}
	switch {
	case days > 0:
		input.Title = "会员即将到期提醒"
		input.Content = fmt.Sprintf("您的VIP会员将在%d天后到期，续费可继续享受会员特权。", days)
		input.Type = models.NotificationTypeVipExpiry
	case days == 0:
		input.Title = "会员今日到期提醒"
		input.Content = "您的VIP会员今日到期，续费可继续享受会员特权。"
		input.Type = models.NotificationTypeVipExpiry
	default:
		input.Title = "会员已过期"
		input.Content = fmt.Sprintf("您的VIP会员已过期%d天，宽限期内续费可保留原有权益。", -days)
		input.Type = models.NotificationTypeVipExpired
	}
	return notifications.Send(input)
}

// GetVipPackages 获取上架的 VIP 套餐
func (s *VipService) GetVipPackages() ([]models.VipPackage, error) {
	var packages []models.VipPackage
	err := database.GetDB().
		Where("status = ?", models.PackageStatusEnabled).
		Order("sort_order ASC").
		Find(&packages).Error
	return packages, err
}

// VipPackageData VIP 套餐创建/更新数据
type VipPackageData struct {
	PackageName   string          `json:"package_name" binding:"required"`
	PackageCode   string          `json:"package_code" binding:"required"`
	DurationDays  int             `json:"duration_days"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Description   string          `json:"description"`
	SortOrder     int             `json:"sort_order"`
}

// CreateVipPackage 创建 VIP 套餐
func (s *VipService) CreateVipPackage(data *VipPackageData) (*models.VipPackage, error) {
	db := database.GetDB()

	var count int64
	if err := db.Model(&models.VipPackage{}).
		Where("package_code = ?", data.PackageCode).
		Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errno.ErrVipPackageCodeDup
	}

	pkg := models.VipPackage{
		PackageID:     uuid.NewString(),
		PackageName:   data.PackageName,
		PackageCode:   data.PackageCode,
		DurationDays:  data.DurationDays,
		OriginalPrice: data.OriginalPrice,
		CurrentPrice:  data.CurrentPrice,
		Description:   data.Description,
		SortOrder:     data.SortOrder,
		Status:        models.PackageStatusEnabled,
	}
	if err := db.Create(&pkg).Error; err != nil {
		return nil, err
	}
	return &pkg, nil
}

// GetVipPrivileges 获取启用的 VIP 特权（按排序值升序）
func (s *VipService) GetVipPrivileges() ([]models.VipPrivilege, error) {
	var privileges []models.VipPrivilege
	err := database.GetDB().
		Where("is_enabled = ?", true).
		Order("sort_order ASC").
		Find(&privileges).Error
	return privileges, err
}
