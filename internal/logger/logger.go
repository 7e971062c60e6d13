package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log   *zap.Logger
	sugar *zap.SugaredLogger
)

// Init 初始化全局日志
func Init(mode string) error {
	var cfg zap.Config

	if mode == "debug" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Encoding = "console"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	log = l
	sugar = l.Sugar()
	return nil
}

// Sync 刷新日志缓冲
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}

// GetLogger 获取原始 Logger
func GetLogger() *zap.Logger {
	ensure()
	return log
}

// GetSugar 获取 SugaredLogger
func GetSugar() *zap.SugaredLogger {
	ensure()
	return sugar
}

// ensure 未初始化时回退到 no-op，避免测试中空指针
func ensure() {
	if log == nil {
		log = zap.NewNop()
		sugar = log.Sugar()
	}
}

func Debug(msg string, fields ...zap.Field) {
	ensure()
	log.Debug(msg, fields...)
}

func Info(msg string, fields ...zap.Field) {
	ensure()
	log.Info(msg, fields...)
}

func Warn(msg string, fields ...zap.Field) {
	ensure()
	log.Warn(msg, fields...)
}

func Error(msg string, fields ...zap.Field) {
	ensure()
	log.Error(msg, fields...)
}

func Fatal(msg string, fields ...zap.Field) {
	ensure()
	log.Fatal(msg, fields...)
}
