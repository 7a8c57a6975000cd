package common

import (
	"sync"
)

// Logger 统一的日志接口
type Logger interface {
	Debugf(format string, params ...interface{})

	Infof(format string, params ...interface{})

	Warnf(format string, params ...interface{})

	Errorf(format string, params ...interface{})

	// Sync flush缓冲的日志
	Sync()
}

// LogLevel 日志级别
type LogLevel string

// 支持的日志级别
const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

//全局Logger
var logger Logger = NewZapLogger(&LogConfig{})

var loggerMutex sync.Mutex

// initLogger 使用logConfig初始化全局的Logger
func initLogger(logConfig *LogConfig) error {
	loggerMutex.Lock()
	defer loggerMutex.Unlock()

	old := logger
	logger = NewZapLogger(logConfig)
	if old != nil {
		old.Sync()
	}
	return nil
}

// GetLogger 取得全局的Logger
func GetLogger() Logger {
	return logger
}

//默认的记录日志的函数

// Debugf debug
func Debugf(format string, params ...interface{}) {
	logger.Debugf(format, params...)
}

// Infof info
func Infof(format string, params ...interface{}) {
	logger.Infof(format, params...)
}

// Warnf warn
func Warnf(format string, params ...interface{}) {
	logger.Warnf(format, params...)
}

// Errorf error
func Errorf(format string, params ...interface{}) {
	logger.Errorf(format, params...)
}
