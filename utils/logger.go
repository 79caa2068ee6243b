package utils

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger 全局日志，InitLogger 之前为空操作日志，便于库代码与测试直接使用
var Logger = zap.NewNop()

// InitLogger 按运行模式替换全局日志：release 使用 JSON 生产配置，其余模式使用彩色级别的开发配置
func InitLogger(mode string) error {
	var config zap.Config

	if mode == "release" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		return err
	}

	Logger = logger
	return nil
}

// Sync 刷新全局日志缓冲，进程退出前调用
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}
