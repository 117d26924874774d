package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger 全局日志实例，Init 后可用
var Logger zerolog.Logger

// LogLevel 日志级别
type LogLevel string

const (
	TraceLevel LogLevel = "trace"
	DebugLevel LogLevel = "debug"
	InfoLevel  LogLevel = "info"
	WarnLevel  LogLevel = "warn"
	ErrorLevel LogLevel = "error"
)

var zerologLevels = map[LogLevel]zerolog.Level{
	TraceLevel: zerolog.TraceLevel,
	DebugLevel: zerolog.DebugLevel,
	InfoLevel:  zerolog.InfoLevel,
	WarnLevel:  zerolog.WarnLevel,
	ErrorLevel: zerolog.ErrorLevel,
}

// LevelFromVerbosity 将 -v 重复次数映射为日志级别
func LevelFromVerbosity(count int) LogLevel {
	switch {
	case count <= 0:
		return InfoLevel
	case count == 1:
		return DebugLevel
	default:
		return TraceLevel
	}
}

// Config 日志配置
type Config struct {
	Level      LogLevel
	Output     io.Writer
	TimeFormat string
	Pretty     bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Level:      InfoLevel,
		Output:     os.Stdout,
		TimeFormat: time.RFC3339,
		Pretty:     true,
	}
}

// Init 初始化全局日志。
// Pretty 模式只保留消息正文，运行输出不掺结构化字段。
func Init(cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	zerolog.TimeFieldFormat = cfg.TimeFormat
	zerolog.SetGlobalLevel(zerologLevel(cfg.Level))

	output := cfg.Output
	if cfg.Pretty {
		output = messageOnlyWriter(cfg.Output)
	}

	Logger = zerolog.New(output).With().Timestamp().Logger()
	log.Logger = Logger
}

// messageOnlyWriter 构造只输出消息正文的 ConsoleWriter，
// 时间戳、级别和字段全部抑制掉
func messageOnlyWriter(out io.Writer) zerolog.ConsoleWriter {
	discard := func(i interface{}) string { return "" }
	return zerolog.ConsoleWriter{
		Out:              out,
		TimeFormat:       "15:04:05",
		FormatLevel:      discard,
		FormatTimestamp:  discard,
		FormatFieldName:  discard,
		FormatFieldValue: discard,
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf("%s", i)
		},
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	if l, ok := zerologLevels[level]; ok {
		return l
	}
	return zerolog.InfoLevel
}

// SetLevel 调整全局日志级别
func SetLevel(level LogLevel) {
	zerolog.SetGlobalLevel(zerologLevel(level))
}

// Debugf 格式化调试日志
func Debugf(format string, args ...interface{}) {
	Logger.Debug().Msgf(format, args...)
}

// Infof 格式化信息日志
func Infof(format string, args ...interface{}) {
	Logger.Info().Msgf(format, args...)
}

// Warnf 格式化警告日志
func Warnf(format string, args ...interface{}) {
	Logger.Warn().Msgf(format, args...)
}

// Errorf 格式化错误日志
func Errorf(format string, args ...interface{}) {
	Logger.Error().Msgf(format, args...)
}
