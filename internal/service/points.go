package service

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/pkg/errno"
)

// PointsService 积分服务
//
// 用户余额与积分流水的双写只允许经过本服务的事务化入口，
// 避免两处状态各自更新产生漂移。
type PointsService struct{}

// NewPointsService 创建积分服务
func NewPointsService() *PointsService {
	return &PointsService{}
}

// LevelConfig 用户等级配置
type LevelConfig struct {
	Level      int      `json:"level"`
	Name       string   `json:"name"`
	MinPoints  int      `json:"min_points"`
	MaxPoints  int      `json:"max_points"` // -1 表示无上限
	Discount   float64  `json:"discount"`
	Privileges []string `json:"privileges"`
}

var userLevels = []LevelConfig{
	{Level: 1, Name: "LV1 新手", MinPoints: 0, MaxPoints: 499, Discount: 0, Privileges: []string{"基础功能"}},
	{Level: 2, Name: "LV2 初级", MinPoints: 500, MaxPoints: 1999, Discount: 0.05, Privileges: []string{"下载资源-5%积分消耗"}},
	{Level: 3, Name: "LV3 中级", MinPoints: 2000, MaxPoints: 4999, Discount: 0.10, Privileges: []string{"下载资源-10%积分消耗", "专属等级徽章"}},
	{Level: 4, Name: "LV4 高级", MinPoints: 5000, MaxPoints: 9999, Discount: 0.15, Privileges: []string{"下载资源-15%积分消耗", "作品优先展示"}},
	{Level: 5, Name: "LV5 专家", MinPoints: 10000, MaxPoints: 19999, Discount: 0.20, Privileges: []string{"下载资源-20%积分消耗", "专属客服"}},
	{Level: 6, Name: "LV6 大师", MinPoints: 20000, MaxPoints: -1, Discount: 0.30, Privileges: []string{"下载资源-30%积分消耗", "所有特权"}},
}

// CalculateUserLevel 根据累计积分计算用户等级
func CalculateUserLevel(totalPoints int) int {
	for _, lc := range userLevels {
		if totalPoints >= lc.MinPoints && (lc.MaxPoints < 0 || totalPoints <= lc.MaxPoints) {
			return lc.Level
		}
	}
	return 1
}

// GetLevelConfig 获取等级配置，未知等级返回 LV1
func GetLevelConfig(level int) LevelConfig {
	for _, lc := range userLevels {
		if lc.Level == level {
			return lc
		}
	}
	return userLevels[0]
}

// NextLevelPoints 距下一等级还需的积分，已满级返回 (0, false)
func NextLevelPoints(currentLevel, currentTotal int) (int, bool) {
	if currentLevel >= userLevels[len(userLevels)-1].Level {
		return 0, false
	}
	next := GetLevelConfig(currentLevel + 1)
	return next.MinPoints - currentTotal, true
}

// PointsChange 一次积分变动的描述
type PointsChange struct {
	ChangeType  string
	Source      string
	SourceID    *string
	Description string
}

// PointsResult 积分变动后的用户状态
type PointsResult struct {
	PointsBalance int `json:"points_balance"`
	PointsTotal   int `json:"points_total"`
	UserLevel     int `json:"user_level"`
}

// AddPoints 增加用户积分（独立事务）
func (s *PointsService) AddPoints(userID string, points int, change PointsChange) (*PointsResult, error) {
	var result *PointsResult
	err := database.Transaction(func(tx *gorm.DB) error {
		r, err := s.AddPointsTx(tx, userID, points, change)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// AddPointsTx 在给定事务内增加用户积分并写入流水。
// 正向获得的积分带上有效期（获取时间 + 配置的有效期月数）。
// 补单等需要跨服务组合写入的调用方复用本方法保持原子性。
func (s *PointsService) AddPointsTx(tx *gorm.DB, userID string, points int, change PointsChange) (*PointsResult, error) {
	var user models.User
	if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}

	newBalance := user.PointsBalance + points
	newTotal := user.PointsTotal + points
	newLevel := CalculateUserLevel(newTotal)

	if err := tx.Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"points_balance": newBalance,
			"points_total":   newTotal,
			"user_level":     newLevel,
			"updated_at":     time.Now(),
		}).Error; err != nil {
		return nil, err
	}

	now := time.Now()
	expireAt := CalculateExpireDate(now)
	record := models.PointsRecord{
		RecordID:      uuid.NewString(),
		UserID:        userID,
		PointsChange:  points,
		PointsBalance: newBalance,
		ChangeType:    change.ChangeType,
		Source:        change.Source,
		SourceID:      change.SourceID,
		Description:   change.Description,
		AcquiredAt:    &now,
		ExpireAt:      &expireAt,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}

	logger.Info("用户获得积分",
		zap.String("user_id", userID),
		zap.Int("points", points),
		zap.String("source", change.Source))

	return &PointsResult{
		PointsBalance: newBalance,
		PointsTotal:   newTotal,
		UserLevel:     newLevel,
	}, nil
}

// DeductPoints 扣除用户积分（独立事务），余额不足返回业务错误
func (s *PointsService) DeductPoints(userID string, points int, change PointsChange) (*PointsResult, error) {
	var result *PointsResult
	err := database.Transaction(func(tx *gorm.DB) error {
		r, err := s.DeductPointsTx(tx, userID, points, change)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// DeductPointsTx 在给定事务内扣除用户积分并写入负向流水
func (s *PointsService) DeductPointsTx(tx *gorm.DB, userID string, points int, change PointsChange) (*PointsResult, error) {
	var user models.User
	if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}

	if user.PointsBalance < points {
		return nil, errno.ErrInsufficientPoints
	}

	newBalance := user.PointsBalance - points
	if err := tx.Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"points_balance": newBalance,
			"updated_at":     time.Now(),
		}).Error; err != nil {
		return nil, err
	}

	record := models.PointsRecord{
		RecordID:      uuid.NewString(),
		UserID:        userID,
		PointsChange:  -points,
		PointsBalance: newBalance,
		ChangeType:    change.ChangeType,
		Source:        change.Source,
		SourceID:      change.SourceID,
		Description:   change.Description,
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}

	logger.Info("用户消耗积分",
		zap.String("user_id", userID),
		zap.Int("points", points),
		zap.String("source", change.Source))

	return &PointsResult{
		PointsBalance: newBalance,
		PointsTotal:   user.PointsTotal,
		UserLevel:     user.UserLevel,
	}, nil
}

// PointsInfo 用户积分概览
type PointsInfo struct {
	PointsBalance   int      `json:"points_balance"`
	PointsTotal     int      `json:"points_total"`
	UserLevel       int      `json:"user_level"`
	LevelName       string   `json:"level_name"`
	LevelDiscount   float64  `json:"level_discount"`
	LevelPrivileges []string `json:"level_privileges"`
	NextLevelPoints *int     `json:"next_level_points"`
}

// GetUserPointsInfo 获取用户积分与等级信息
func (s *PointsService) GetUserPointsInfo(userID string) (*PointsInfo, error) {
	db := database.GetDB()

	var user models.User
	if err := db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errno.ErrUserNotFound
		}
		return nil, err
	}

	lc := GetLevelConfig(user.UserLevel)
	info := &PointsInfo{
		PointsBalance:   user.PointsBalance,
		PointsTotal:     user.PointsTotal,
		UserLevel:       user.UserLevel,
		LevelName:       lc.Name,
		LevelDiscount:   lc.Discount,
		LevelPrivileges: lc.Privileges,
	}
	if need, ok := NextLevelPoints(user.UserLevel, user.PointsTotal); ok {
		info.NextLevelPoints = &need
	}
	return info, nil
}

// PointsRecordQuery 积分流水查询参数
type PointsRecordQuery struct {
	Page       int    `form:"page"`
	PageSize   int    `form:"page_size"`
	ChangeType string `form:"change_type"`
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
}

// PointsRecordList 积分流水列表结果
type PointsRecordList struct {
	Total    int64                 `json:"total"`
	Page     int                   `json:"page"`
	PageSize int                   `json:"page_size"`
	Records  []models.PointsRecord `json:"records"`
}

// GetPointsRecords 分页查询积分流水
func (s *PointsService) GetPointsRecords(userID string, query *PointsRecordQuery) (*PointsRecordList, error) {
	db := database.GetDB()

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	tx := db.Model(&models.PointsRecord{}).Where("user_id = ?", userID)
	if query.ChangeType != "" {
		tx = tx.Where("change_type = ?", query.ChangeType)
	}
	if query.StartDate != "" {
		tx = tx.Where("created_at >= ?", query.StartDate)
	}
	if query.EndDate != "" {
		tx = tx.Where("created_at <= ?", query.EndDate+" 23:59:59")
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var records []models.PointsRecord
	offset := (query.Page - 1) * query.PageSize
	if err := tx.Order("created_at DESC").Offset(offset).Limit(query.PageSize).Find(&records).Error; err != nil {
		return nil, fmt.Errorf("查询积分流水失败: %w", err)
	}

	return &PointsRecordList{
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
		Records:  records,
	}, nil
}
