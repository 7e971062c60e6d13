package service

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/models"
)

// PointsExpiryService 积分有效期服务
//
// 积分自获取起有固定有效期（默认12个月），到期前定期提醒，
// 到期后由定时清理任务扣除余额并落负向流水。
type PointsExpiryService struct{}

// NewPointsExpiryService 创建积分有效期服务
func NewPointsExpiryService() *PointsExpiryService {
	return &PointsExpiryService{}
}

// CalculateExpireDate 计算积分过期时间：获取时间 + 有效期月数。
// 月份加法使用标准库的日期归一化规则：目标月份没有对应日期时
// 顺延进入下月（如 2月29日 + 12个月 → 次年3月1日）。
func CalculateExpireDate(acquiredAt time.Time) time.Time {
	return acquiredAt.AddDate(0, config.Get().Points.ValidityMonths, 0)
}

// IsPointsExpired 积分是否已过期。恰好等于过期时刻视为未过期
func IsPointsExpired(expireAt time.Time) bool {
	return isExpiredAt(expireAt, time.Now())
}

// IsPointsExpiringSoon 积分是否即将过期（提醒窗口内且尚未过期）
func IsPointsExpiringSoon(expireAt time.Time) bool {
	return isExpiringSoonAt(expireAt, time.Now())
}

func isExpiredAt(expireAt, now time.Time) bool {
	return now.After(expireAt)
}

func isExpiringSoonAt(expireAt, now time.Time) bool {
	reminderStart := expireAt.AddDate(0, 0, -config.Get().Points.ReminderDays)
	return !now.Before(reminderStart) && now.Before(expireAt)
}

// daysUntil 距过期剩余天数（向上取整，至少0）
func daysUntil(expireAt, now time.Time) int {
	days := int(math.Ceil(expireAt.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// ExpiringRecord 即将过期的积分批次
type ExpiringRecord struct {
	RecordID        string    `json:"record_id"`
	PointsChange    int       `json:"points_change"`
	AcquiredAt      time.Time `json:"acquired_at"`
	ExpireAt        time.Time `json:"expire_at"`
	DaysUntilExpiry int       `json:"days_until_expiry"`
	Source          string    `json:"source"`
	Description     string    `json:"description"`
}

// ExpiringPoints 用户即将过期积分汇总
type ExpiringPoints struct {
	TotalExpiringPoints int              `json:"total_expiring_points"`
	Records             []ExpiringRecord `json:"records"`
}

// GetExpiringPoints 查询窗口内即将过期的积分（按过期时间升序）。
// daysUntilExpiry <= 0 时使用配置的提醒天数。
func (s *PointsExpiryService) GetExpiringPoints(userID string, daysUntilExpiry int) (*ExpiringPoints, error) {
	if daysUntilExpiry <= 0 {
		daysUntilExpiry = config.Get().Points.ReminderDays
	}

	now := time.Now()
	threshold := now.AddDate(0, 0, daysUntilExpiry)

	var records []models.PointsRecord
	err := database.GetDB().
		Where("user_id = ? AND points_change > 0 AND is_expired = ?", userID, false).
		Where("expire_at > ? AND expire_at <= ?", now, threshold).
		Order("expire_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	result := &ExpiringPoints{Records: make([]ExpiringRecord, 0, len(records))}
	for _, r := range records {
		expireAt := now
		if r.ExpireAt != nil {
			expireAt = *r.ExpireAt
		}
		acquiredAt := r.CreatedAt
		if r.AcquiredAt != nil {
			acquiredAt = *r.AcquiredAt
		}

		result.Records = append(result.Records, ExpiringRecord{
			RecordID:        r.RecordID,
			PointsChange:    r.PointsChange,
			AcquiredAt:      acquiredAt,
			ExpireAt:        expireAt,
			DaysUntilExpiry: daysUntil(expireAt, now),
			Source:          r.Source,
			Description:     r.Description,
		})
		result.TotalExpiringPoints += r.PointsChange
	}
	return result, nil
}

// ExpiryDetail 积分批次明细（含过期状态）
type ExpiryDetail struct {
	RecordID        string     `json:"record_id"`
	PointsChange    int        `json:"points_change"`
	AcquiredAt      time.Time  `json:"acquired_at"`
	ExpireAt        *time.Time `json:"expire_at"`
	IsExpired       bool       `json:"is_expired"`
	IsExpiringSoon  bool       `json:"is_expiring_soon"`
	DaysUntilExpiry *int       `json:"days_until_expiry"`
	Source          string     `json:"source"`
	Description     string     `json:"description"`
}

// ExpirySummary 全量批次汇总（不受分页影响）
type ExpirySummary struct {
	TotalActivePoints   int `json:"total_active_points"`
	TotalExpiringPoints int `json:"total_expiring_points"`
	TotalExpiredPoints  int `json:"total_expired_points"`
}

// ExpiryDetailQuery 明细查询参数
type ExpiryDetailQuery struct {
	Page           int  `form:"page"`
	PageSize       int  `form:"page_size"`
	IncludeExpired bool `form:"include_expired"`
}

// ExpiryDetailList 积分有效期明细结果
type ExpiryDetailList struct {
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	List     []ExpiryDetail `json:"list"`
	Summary  ExpirySummary  `json:"summary"`
}

// GetPointsExpiryDetails 分页查询积分批次明细，汇总始终覆盖全部批次
func (s *PointsExpiryService) GetPointsExpiryDetails(userID string, query *ExpiryDetailQuery) (*ExpiryDetailList, error) {
	db := database.GetDB()
	now := time.Now()

	if query.Page <= 0 {
		query.Page = 1
	}
	if query.PageSize <= 0 {
		query.PageSize = 20
	}

	tx := db.Model(&models.PointsRecord{}).
		Where("user_id = ? AND points_change > 0", userID)
	if !query.IncludeExpired {
		tx = tx.Where("is_expired = ?", false)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, err
	}

	var records []models.PointsRecord
	offset := (query.Page - 1) * query.PageSize
	if err := tx.Order("expire_at ASC").Offset(offset).Limit(query.PageSize).Find(&records).Error; err != nil {
		return nil, err
	}

	summary, err := s.buildSummary(userID, now)
	if err != nil {
		return nil, err
	}

	list := make([]ExpiryDetail, 0, len(records))
	for _, r := range records {
		acquiredAt := r.CreatedAt
		if r.AcquiredAt != nil {
			acquiredAt = *r.AcquiredAt
		}

		detail := ExpiryDetail{
			RecordID:     r.RecordID,
			PointsChange: r.PointsChange,
			AcquiredAt:   acquiredAt,
			ExpireAt:     r.ExpireAt,
			IsExpired:    r.IsExpired,
			Source:       r.Source,
			Description:  r.Description,
		}
		if r.ExpireAt != nil {
			if !detail.IsExpired {
				detail.IsExpired = isExpiredAt(*r.ExpireAt, now)
			}
			detail.IsExpiringSoon = isExpiringSoonAt(*r.ExpireAt, now)
			if !detail.IsExpired {
				d := daysUntil(*r.ExpireAt, now)
				detail.DaysUntilExpiry = &d
			}
		}
		list = append(list, detail)
	}

	return &ExpiryDetailList{
		Total:    total,
		Page:     query.Page,
		PageSize: query.PageSize,
		List:     list,
		Summary:  *summary,
	}, nil
}

// buildSummary 聚合统计：已过期 / 即将过期 / 有效。即将过期同时计入有效
func (s *PointsExpiryService) buildSummary(userID string, now time.Time) (*ExpirySummary, error) {
	db := database.GetDB()
	threshold := now.AddDate(0, 0, config.Get().Points.ReminderDays)

	type sumRow struct {
		Total int
	}
	base := func() *gorm.DB {
		return db.Model(&models.PointsRecord{}).
			Where("user_id = ? AND points_change > 0", userID)
	}

	var expired, active, expiring sumRow
	if err := base().Where("is_expired = ?", true).
		Select("COALESCE(SUM(points_change), 0) as total").Scan(&expired).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_expired = ?", false).
		Select("COALESCE(SUM(points_change), 0) as total").Scan(&active).Error; err != nil {
		return nil, err
	}
	if err := base().Where("is_expired = ? AND expire_at IS NOT NULL AND expire_at <= ?", false, threshold).
		Select("COALESCE(SUM(points_change), 0) as total").Scan(&expiring).Error; err != nil {
		return nil, err
	}

	return &ExpirySummary{
		TotalActivePoints:   active.Total,
		TotalExpiringPoints: expiring.Total,
		TotalExpiredPoints:  expired.Total,
	}, nil
}

// ExpiredSweepResult 过期清理结果
type ExpiredSweepResult struct {
	ProcessedCount     int      `json:"processed_count"`
	TotalExpiredPoints int      `json:"total_expired_points"`
	AffectedUsers      []string `json:"affected_users"`
}

// ProcessExpiredPoints 清理已到期积分。
// 按用户分组逐个处理，单个用户在一个事务内完成：标记批次过期、
// 扣减余额、写入负向流水。某个用户失败只记日志，不影响其他用户。
// 已标记过的批次不会再次命中，重复执行无副作用。
func (s *PointsExpiryService) ProcessExpiredPoints() (*ExpiredSweepResult, error) {
	now := time.Now()

	var expiredRecords []models.PointsRecord
	err := database.GetDB().
		Where("points_change > 0 AND is_expired = ? AND expire_at <= ?", false, now).
		Find(&expiredRecords).Error
	if err != nil {
		return nil, err
	}

	result := &ExpiredSweepResult{AffectedUsers: []string{}}
	if len(expiredRecords) == 0 {
		return result, nil
	}

	// 按用户分组，跳过无归属的孤儿记录
	type userBatch struct {
		points    int
		recordIDs []string
	}
	batches := make(map[string]*userBatch)
	for _, r := range expiredRecords {
		if r.UserID == "" {
			continue
		}
		b := batches[r.UserID]
		if b == nil {
			b = &userBatch{}
			batches[r.UserID] = b
		}
		b.points += r.PointsChange
		b.recordIDs = append(b.recordIDs, r.RecordID)
	}

	for userID, batch := range batches {
		err := database.Transaction(func(tx *gorm.DB) error {
			return s.expireUserPoints(tx, userID, batch.points, batch.recordIDs)
		})
		if err != nil {
			logger.Error("处理用户过期积分失败",
				zap.String("user_id", userID),
				zap.Error(err))
			continue
		}

		result.ProcessedCount += len(batch.recordIDs)
		result.TotalExpiredPoints += batch.points
		result.AffectedUsers = append(result.AffectedUsers, userID)

		logger.Info("用户积分已过期",
			zap.String("user_id", userID),
			zap.Int("points", batch.points))
	}
	return result, nil
}

// expireUserPoints 单用户过期处理：标记批次、扣余额、落流水
func (s *PointsExpiryService) expireUserPoints(tx *gorm.DB, userID string, points int, recordIDs []string) error {
	var user models.User
	if err := tx.Where("user_id = ?", userID).First(&user).Error; err != nil {
		return err
	}

	if err := tx.Model(&models.PointsRecord{}).
		Where("record_id IN ?", recordIDs).
		Update("is_expired", true).Error; err != nil {
		return err
	}

	newBalance := user.PointsBalance - points
	if err := tx.Model(&models.User{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"points_balance": newBalance,
			"updated_at":     time.Now(),
		}).Error; err != nil {
		return err
	}

	record := models.PointsRecord{
		RecordID:      uuid.NewString(),
		UserID:        userID,
		PointsChange:  -points,
		PointsBalance: newBalance,
		ChangeType:    models.ChangeTypeExpire,
		Source:        "points_expiry",
		Description:   fmt.Sprintf("%d 积分已过期", points),
	}
	return tx.Create(&record).Error
}

// ReminderResult 过期提醒发送结果
type ReminderResult struct {
	SentCount int      `json:"sent_count"`
	Users     []string `json:"users"`
}

// SendExpiryReminders 给提醒窗口内有积分将过期的用户发送站内通知。
// 单个用户发送失败记日志后继续处理下一个。
func (s *PointsExpiryService) SendExpiryReminders() (*ReminderResult, error) {
	now := time.Now()
	reminderDays := config.Get().Points.ReminderDays
	threshold := now.AddDate(0, 0, reminderDays)

	type userGroup struct {
		UserID string
		Total  int
	}
	var groups []userGroup
	err := database.GetDB().Model(&models.PointsRecord{}).
		Select("user_id, SUM(points_change) as total").
		Where("points_change > 0 AND is_expired = ?", false).
		Where("expire_at > ? AND expire_at <= ?", now, threshold).
		Group("user_id").
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}

	notifications := NewNotificationService()
	result := &ReminderResult{Users: []string{}}

	for _, g := range groups {
		if g.UserID == "" || g.Total <= 0 {
			continue
		}

		err := notifications.Send(NotificationInput{
			UserID:  g.UserID,
			Title:   "积分即将过期提醒",
			Content: fmt.Sprintf("您有 %d 积分将在%d天内过期，请尽快使用！", g.Total, reminderDays),
			Type:    models.NotificationTypePointsExpiry,
			LinkURL: "/user/points",
		})
		if err != nil {
			logger.Warn("发送积分过期提醒失败",
				zap.String("user_id", g.UserID),
				zap.Error(err))
			continue
		}

		result.SentCount++
		result.Users = append(result.Users, g.UserID)
		logger.Info("已发送积分过期提醒",
			zap.String("user_id", g.UserID),
			zap.Int("expiring_points", g.Total))
	}
	return result, nil
}

// ExpiryReminder 用户积分页的过期提醒信息
type ExpiryReminder struct {
	HasExpiringPoints bool       `json:"has_expiring_points"`
	ExpiringPoints    int        `json:"expiring_points"`
	NearestExpiryDate *time.Time `json:"nearest_expiry_date"`
	DaysUntilExpiry   *int       `json:"days_until_expiry"`
}

// GetUserExpiryReminder 获取用户即将过期积分的提醒摘要
func (s *PointsExpiryService) GetUserExpiryReminder(userID string) (*ExpiryReminder, error) {
	expiring, err := s.GetExpiringPoints(userID, 0)
	if err != nil {
		return nil, err
	}

	if expiring.TotalExpiringPoints == 0 {
		return &ExpiryReminder{}, nil
	}

	nearest := expiring.Records[0]
	return &ExpiryReminder{
		HasExpiringPoints: true,
		ExpiringPoints:    expiring.TotalExpiringPoints,
		NearestExpiryDate: &nearest.ExpireAt,
		DaysUntilExpiry:   &nearest.DaysUntilExpiry,
	}, nil
}
