package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sucaihub/backend/internal/cache"
	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/database"
	"github.com/sucaihub/backend/internal/logger"
	"github.com/sucaihub/backend/pkg/errno"
	"github.com/sucaihub/backend/pkg/jwt"
)

// Response 统一响应结构
type Response struct {
	Success bool        `json:"success"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Fail 业务错误响应，状态码与错误码由 errno.Decode 决定
func Fail(c *gin.Context, err error) {
	code, message, status := errno.Decode(err)
	c.JSON(status, Response{
		Success: false,
		Code:    code,
		Message: message,
	})
}

// HealthCheck 健康检查
func HealthCheck(c *gin.Context) {
	if err := database.HealthCheck(); err != nil {
		logger.Error("数据库健康检查失败", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, Response{Success: false, Message: "数据库连接失败"})
		return
	}

	redisStatus := "ok"
	if err := cache.HealthCheck(); err != nil {
		redisStatus = "unavailable"
	}

	Success(c, gin.H{
		"status": "healthy",
		"redis":  redisStatus,
	})
}

// AdminLoginRequest 管理员登录请求
type AdminLoginRequest struct {
	Password string `json:"password" binding:"required"`
}

// AdminLogin 管理员登录
func AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Fail(c, errno.ErrBind)
		return
	}

	cfg := config.Get()
	if cfg.Auth.AdminPassword == "" {
		Fail(c, errno.InternalError.WithMessage("未配置管理员密码"))
		return
	}

	// 优先按 bcrypt 哈希比对，配置为明文时直接比较
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.Auth.AdminPassword), []byte(req.Password)); err != nil {
		if req.Password != cfg.Auth.AdminPassword {
			c.JSON(http.StatusUnauthorized, Response{Success: false, Message: "密码错误"})
			return
		}
	}

	token, err := jwt.GenerateToken("admin", 100, cfg.Auth.JWTExpireHours)
	if err != nil {
		logger.Error("生成 Token 失败", zap.Error(err))
		Fail(c, errno.InternalError)
		return
	}

	logger.Info("管理员登录成功", zap.String("ip", c.ClientIP()))

	expiresAt := time.Now().Add(time.Duration(cfg.Auth.JWTExpireHours) * time.Hour).UTC().Format(time.RFC3339)
	Success(c, gin.H{
		"token":      token,
		"expires_at": expiresAt,
	})
}

// Logout 登出（JWT 无状态，客户端删除 Token 即可）
func Logout(c *gin.Context) {
	Success(c, gin.H{"message": "登出成功"})
}

// GetCurrentUser 获取当前登录身份
func GetCurrentUser(c *gin.Context) {
	userID, _ := c.Get("user_id")
	role, _ := c.Get("role")
	Success(c, gin.H{
		"user_id": userID,
		"role":    role,
	})
}

// currentUserID 从上下文取当前用户ID
func currentUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}
