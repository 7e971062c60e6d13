package handler

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"
	"regexp"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sucaihub/backend/internal/cache"
	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/internal/models"
	"github.com/sucaihub/backend/internal/ratelimit"
	"github.com/sucaihub/backend/pkg/errno"
	"github.com/sucaihub/backend/pkg/jwt"
)

var phonePattern = regexp.MustCompile(`^1[3-9]\d{9}$`)

const smsCodeTTL = 5 * time.Minute

// SMSHandler 短信验证码相关接口，发送前先过手机号 + IP 双维度限流
type SMSHandler struct {
	limiter *ratelimit.Limiter
}

// NewSMSHandler 创建短信接口处理器
func NewSMSHandler(limiter *ratelimit.Limiter) *SMSHandler {
	return &SMSHandler{limiter: limiter}
}

type sendCodeRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// SendCode 发送登录验证码
func (h *SMSHandler) SendCode(c *gin.Context) {
	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, errno.ErrBind)
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		Fail(c, errno.ErrSMSInvalidPhone)
		return
	}

	ip := c.ClientIP()

	result, err := h.limiter.CheckPhone(req.Phone)
	if err != nil {
		Fail(c, errno.ErrSMSSystem)
		return
	}
	if !result.Allowed {
		failRateLimited(c, result)
		return
	}

	result, err = h.limiter.CheckIP(ip)
	if err != nil {
		Fail(c, errno.ErrSMSSystem)
		return
	}
	if !result.Allowed {
		failRateLimited(c, result)
		return
	}

	code, err := generateSMSCode()
	if err != nil {
		Fail(c, errno.ErrSMSSystem)
		return
	}
	if err := cache.Set(smsCodeKey(req.Phone), code, smsCodeTTL); err != nil {
		logger.Error("存储验证码失败", zap.Error(err))
		Fail(c, errno.ErrSMSSendFailed)
		return
	}

	// 两道检查都通过才记一次发送
	if err := h.limiter.Record(req.Phone, ip); err != nil {
		logger.Warn("记录发送状态失败", zap.Error(err))
	}

	// 短信网关对接前，验证码只打到调试日志
	logger.Debug("验证码已生成", zap.String("phone", req.Phone), zap.String("code", code))

	Success(c, gin.H{"message": "验证码已发送", "expires_in": int(smsCodeTTL / time.Second)})
}

type smsLoginRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// Login 验证码登录，手机号未注册时自动创建用户
func (h *SMSHandler) Login(c *gin.Context) {
	var req smsLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, errno.ErrBind)
		return
	}
	if !phonePattern.MatchString(req.Phone) {
		Fail(c, errno.ErrSMSInvalidPhone)
		return
	}

	var stored string
	if err := cache.Get(smsCodeKey(req.Phone), &stored); err != nil {
		Fail(c, errno.ErrSMSCodeNotFound)
		return
	}
	if stored != req.Code {
		Fail(c, errno.ErrSMSCodeInvalid)
		return
	}
	// 一个验证码只能用一次
	if err := cache.Delete(smsCodeKey(req.Phone)); err != nil {
		logger.Warn("删除已用验证码失败", zap.Error(err))
	}

	user, err := findOrCreateUserByPhone(req.Phone)
	if err != nil {
		Fail(c, err)
		return
	}

	cfg := config.Get()
	token, err := jwt.GenerateToken(user.UserID, 1, cfg.Auth.JWTExpireHours)
	if err != nil {
		logger.Error("生成 Token 失败", zap.Error(err))
		Fail(c, errno.InternalError)
		return
	}

	Success(c, gin.H{
		"token": token,
		"user": gin.H{
			"user_id":  user.UserID,
			"username": user.Username,
			"phone":    user.Phone,
		},
	})
}

func smsCodeKey(phone string) string {
	return cache.CacheKey("sms", "code", phone)
}

// generateSMSCode 生成 6 位数字验证码
func generateSMSCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

func failRateLimited(c *gin.Context, result ratelimit.Result) {
	status := http.StatusTooManyRequests
	code := ""
	message := "操作过于频繁，请稍后再试"
	if result.Err != nil {
		code = result.Err.Code
		message = result.Err.Message
		status = result.Err.Status
	}
	c.JSON(status, Response{
		Success: false,
		Code:    code,
		Message: message,
		Data:    gin.H{"retry_after": result.RetryAfter},
	})
}

func findOrCreateUserByPhone(phone string) (*models.User, error) {
	db := database.GetDB()

	var user models.User
	err := db.Where("phone = ?", phone).First(&user).Error
	if err == nil {
		if user.Status != models.UserStatusEnabled {
			return nil, errno.ErrBind.WithMessage("账号状态异常，无法登录")
		}
		return &user, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	user = models.User{
		UserID:    uuid.NewString(),
		Username:  "用户" + phone[len(phone)-4:],
		Phone:     phone,
		Status:    models.UserStatusEnabled,
		UserLevel: 1,
	}
	if err := db.Create(&user).Error; err != nil {
		return nil, err
	}
	logger.Info("新用户注册", zap.String("user_id", user.UserID))
	return &user, nil
}
