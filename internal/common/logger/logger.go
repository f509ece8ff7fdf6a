// Package logger 提供结构化日志功能
package logger

import (
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/Yolo-Padel/yolo-padel-sub002/internal/common/config"
)

// 输出目标
const (
	OutputStdout = "stdout"
	OutputFile   = "file"
	OutputBoth   = "both"
)

var global *zap.Logger

// Init 按配置初始化全局日志器
func Init(cfg *config.LoggerConfig) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	global = l
	return nil
}

// New 按配置创建日志器，不影响全局日志器
// 输出为 file 但未配置路径时退回标准输出
func New(cfg *config.LoggerConfig) (*zap.Logger, error) {
	encCfg := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     encodeTime,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(writers(cfg)...), ParseLevel(cfg.Level))

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(core, opts...), nil
}

func writers(cfg *config.LoggerConfig) []zapcore.WriteSyncer {
	var ws []zapcore.WriteSyncer
	toFile := cfg.FilePath != "" && (cfg.Output == OutputFile || cfg.Output == OutputBoth)
	if !toFile || cfg.Output == OutputBoth {
		ws = append(ws, zapcore.AddSync(os.Stdout))
	}
	if toFile {
		ws = append(ws, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  true,
		}))
	}
	return ws
}

func encodeTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05.000"))
}

// ParseLevel 解析日志级别，无法识别时为 info
func ParseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// GetLogger 获取全局日志器，未初始化时返回开发模式日志器
func GetLogger() *zap.Logger {
	if global == nil {
		global, _ = zap.NewDevelopment()
	}
	return global
}

// Sync 刷新缓冲
func Sync() error {
	if global != nil {
		return global.Sync()
	}
	return nil
}

// RequestID 请求ID字段
func RequestID(id string) zap.Field {
	return zap.String("request_id", id)
}

// UserID 用户ID字段
func UserID(id int64) zap.Field {
	return zap.Int64("user_id", id)
}

// CourtID 场地ID字段
func CourtID(id int64) zap.Field {
	return zap.Int64("court_id", id)
}

// BookingID 预订ID字段
func BookingID(id int64) zap.Field {
	return zap.Int64("booking_id", id)
}

// OrderNo 订单号字段
func OrderNo(no string) zap.Field {
	return zap.String("order_no", no)
}

// PaymentNo 支付单号字段
func PaymentNo(no string) zap.Field {
	return zap.String("payment_no", no)
}

// ExternalID 网关外部ID字段
func ExternalID(id string) zap.Field {
	return zap.String("external_id", id)
}

func Latency(d time.Duration) zap.Field {
	return zap.Duration("latency", d)
}

func StatusCode(code int) zap.Field {
	return zap.Int("status_code", code)
}

func Method(method string) zap.Field {
	return zap.String("method", method)
}

func Path(path string) zap.Field {
	return zap.String("path", path)
}

func IP(ip string) zap.Field {
	return zap.String("ip", ip)
}
