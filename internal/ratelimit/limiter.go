package ratelimit

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/pkg/errno"
)

// Limits 短信验证码限流参数
type Limits struct {
	PhoneInterval time.Duration // 手机号两次请求的最小间隔
	PhoneDailyMax int           // 手机号每日上限
	IPInterval    time.Duration // IP 间隔窗口长度
	IPIntervalMax int           // IP 间隔窗口内上限
	IPDailyMax    int           // IP 每日上限
}

// LimitsFromConfig 从配置构建限流参数
func LimitsFromConfig(c config.SMSConfig) Limits {
	return Limits{
		PhoneInterval: c.PhoneInterval,
		PhoneDailyMax: c.PhoneDailyMax,
		IPInterval:    c.IPInterval,
		IPIntervalMax: c.IPIntervalMax,
		IPDailyMax:    c.IPDailyMax,
	}
}

// Result 限流检查结果。Allowed 为 false 时 Err 必不为空，
// RetryAfter 为建议等待秒数（仅间隔类拒绝携带）。
type Result struct {
	Allowed    bool
	Err        *errno.Errno
	RetryAfter int
}

// Limiter 手机号 + IP 双维度短信限流器。
// 检查与记录分离：先 CheckPhone / CheckIP，发送成功后再 Record。
type Limiter struct {
	phones Store
	ips    Store
	limits Limits
	now    func() time.Time
}

// NewLimiter 创建限流器，phones / ips 分别存储两个维度的计数
func NewLimiter(phones, ips Store, limits Limits) *Limiter {
	return &Limiter{
		phones: phones,
		ips:    ips,
		limits: limits,
		now:    time.Now,
	}
}

// SetNow 替换时钟（仅用于测试）
func (l *Limiter) SetNow(now func() time.Time) {
	l.now = now
}

// CheckPhone 检查手机号维度：先查间隔，再查每日上限
func (l *Limiter) CheckPhone(phone string) (Result, error) {
	now := l.now()

	state, err := loadState(l.phones, phone, now)
	if err != nil {
		return Result{}, err
	}

	elapsed := now.Sub(state.LastRequest)
	if elapsed < l.limits.PhoneInterval {
		retryAfter := retryAfterSeconds(elapsed, l.limits.PhoneInterval)
		logger.Warn("手机号请求验证码过于频繁",
			zap.String("phone", maskPhone(phone)),
			zap.Int("retry_after", retryAfter))
		return Result{
			Err:        errno.ErrSMSPhoneInterval.WithMessage(fmt.Sprintf("获取验证码过于频繁，请%d秒后再试", retryAfter)),
			RetryAfter: retryAfter,
		}, nil
	}

	if state.DailyCount >= l.limits.PhoneDailyMax {
		logger.Warn("手机号每日验证码次数已达上限", zap.String("phone", maskPhone(phone)))
		return Result{Err: errno.ErrSMSPhoneDailyLimit.WithMessage("今日获取验证码次数已达上限，请明日再试")}, nil
	}

	return Result{Allowed: true}, nil
}

// CheckIP 检查 IP 维度：间隔窗口内次数，再查每日上限
func (l *Limiter) CheckIP(ip string) (Result, error) {
	now := l.now()

	state, err := loadState(l.ips, ip, now)
	if err != nil {
		return Result{}, err
	}

	rollInterval(&state, l.limits.IPInterval, now)

	if state.IntervalCount >= l.limits.IPIntervalMax {
		retryAfter := retryAfterSeconds(now.Sub(state.LastRequest), l.limits.IPInterval)
		if retryAfter <= 0 {
			retryAfter = int(l.limits.IPInterval / time.Second)
		}
		logger.Warn("IP请求验证码过于频繁",
			zap.String("ip", ip),
			zap.Int("retry_after", retryAfter))
		return Result{Err: errno.ErrSMSIPLimit, RetryAfter: retryAfter}, nil
	}

	if state.DailyCount >= l.limits.IPDailyMax {
		logger.Warn("IP每日验证码次数已达上限", zap.String("ip", ip))
		return Result{Err: errno.ErrSMSIPLimit}, nil
	}

	return Result{Allowed: true}, nil
}

// Record 记录一次成功发送，同时更新两个维度的计数
func (l *Limiter) Record(phone, ip string) error {
	now := l.now()

	phoneState, err := loadState(l.phones, phone, now)
	if err != nil {
		return err
	}
	phoneState.LastRequest = now
	phoneState.DailyCount++
	if err := l.phones.Set(phone, phoneState); err != nil {
		return err
	}

	ipState, err := loadState(l.ips, ip, now)
	if err != nil {
		return err
	}
	rollInterval(&ipState, l.limits.IPInterval, now)
	ipState.LastRequest = now
	ipState.IntervalCount++
	ipState.DailyCount++
	if err := l.ips.Set(ip, ipState); err != nil {
		return err
	}

	logger.Info("记录验证码发送",
		zap.String("phone", maskPhone(phone)),
		zap.String("ip", ip))
	return nil
}

// maskPhone 日志脱敏：保留前3后4
func maskPhone(phone string) string {
	if len(phone) < 7 {
		return "****"
	}
	return phone[:3] + "****" + phone[len(phone)-4:]
}
