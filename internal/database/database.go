package database

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/sucaihub/backend/internal/config"
	"github.com/sucaihub/backend/internal/logger"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var db *gorm.DB

// Init 初始化数据库连接
func Init(cfg *config.Config) error {
	var dialector gorm.Dialector

	switch cfg.Database.Engine {
	case "postgres":
		dialector = postgres.Open(cfg.Database.DSN)
	case "mysql":
		dialector = mysql.Open(cfg.Database.DSN)
	case "sqlite":
		// 本地开发用
		dialector = sqlite.Open(cfg.Database.DSN)
	default:
		return fmt.Errorf("不支持的数据库类型: %s", cfg.Database.Engine)
	}

	gormConfig := &gorm.Config{
		Logger: newGormLogger(cfg.Server.Mode),
		NowFunc: func() time.Time {
			return time.Now().Local()
		},
	}

	conn, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return fmt.Errorf("连接数据库失败: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return fmt.Errorf("获取数据库实例失败: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("数据库连接测试失败: %w", err)
	}

	db = conn

	logger.Info("数据库连接成功", zap.String("engine", cfg.Database.Engine))
	return nil
}

// newGormLogger 创建 GORM 日志适配器
func newGormLogger(mode string) gormlogger.Interface {
	logLevel := gormlogger.Warn
	if mode == "debug" {
		logLevel = gormlogger.Info
	}

	return gormlogger.New(
		&gormLogWriter{},
		gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  mode == "debug",
		},
	)
}

// gormLogWriter GORM 日志写入器
type gormLogWriter struct{}

func (w *gormLogWriter) Printf(format string, args ...interface{}) {
	logger.GetSugar().Debugf(format, args...)
}

// GetDB 获取数据库连接
func GetDB() *gorm.DB {
	return db
}

// Transaction 执行事务
func Transaction(fn func(*gorm.DB) error) error {
	return db.Transaction(fn)
}

// AutoMigrate 同步表结构
func AutoMigrate(models ...interface{}) error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}
	return db.AutoMigrate(models...)
}

// Close 关闭数据库连接
func Close() error {
	if db == nil {
		return nil
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// HealthCheck 健康检查
func HealthCheck() error {
	if db == nil {
		return fmt.Errorf("数据库未初始化")
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("获取数据库实例失败: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("数据库连接失败: %w", err)
	}
	return nil
}

// SetTestDB 设置测试数据库（仅用于单元测试）
func SetTestDB(testDB *gorm.DB) {
	db = testDB
}

// ClearTestDB 清除测试数据库（仅用于单元测试）
func ClearTestDB() {
	db = nil
}
