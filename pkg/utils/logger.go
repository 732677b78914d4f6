package utils

import (
	"math"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogConfig controls how InitLogger builds a zap logger.
type LogConfig struct {
	Level       string // debug, info, warn, error, fatal (default: info)
	Format      string // "json" or "text" (default: json)
	Development bool   // enables stack traces on Warn+ and a friendlier encoder
	Output      string // file path; empty means stderr
}

// Logger wraps zap.Logger with the field helpers this repo's components use
// to tag log lines with the dimensions that matter here: exchange, symbol,
// pair, component.
type Logger struct {
	Logger *zap.Logger
	sugar  *zap.SugaredLogger
}

var (
	globalMu     sync.Mutex
	globalLogger *Logger
)

// parseLevel maps a config string to a zapcore.Level, defaulting to info
// for anything unrecognized.
func parseLevel(level string) zapcore.Level {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel
	case "info":
		return zapcore.InfoLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

// InitLogger builds a standalone Logger from config. It never returns nil:
// an invalid Output path falls back to stderr rather than failing startup.
func InitLogger(config LogConfig) *Logger {
	level := parseLevel(config.Level)

	var encoderCfg zapcore.EncoderConfig
	if config.Development {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
	} else {
		encoderCfg = zap.NewProductionEncoderConfig()
	}
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if strings.ToLower(config.Format) == "text" {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	sink := zapcore.AddSync(os.Stderr)
	if config.Output != "" {
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err == nil {
			sink = zapcore.AddSync(f)
		}
		// invalid path: keep stderr, don't fail startup over a logging sink
	}

	core := zapcore.NewCore(encoder, sink, level)

	opts := []zap.Option{zap.AddCaller()}
	if config.Development {
		opts = append(opts, zap.Development(), zap.AddStacktrace(zapcore.WarnLevel))
	}

	zl := zap.New(core, opts...)

	return &Logger{
		Logger: zl,
		sugar:  zl.Sugar(),
	}
}

// GetGlobalLogger returns the process-wide Logger, lazily creating a
// default one (info/json/stderr) on first use.
func GetGlobalLogger() *Logger {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger == nil {
		globalLogger = InitLogger(LogConfig{})
	}
	return globalLogger
}

// InitGlobalLogger builds a Logger from config and installs it as the
// global logger, returning it.
func InitGlobalLogger(config LogConfig) *Logger {
	logger := InitLogger(config)
	SetGlobalLogger(logger)
	return logger
}

// SetGlobalLogger installs an already-built Logger as the global logger.
// Used by cmd/monitor after parsing --log-level, and by tests that need a
// logger backed by an in-memory buffer.
func SetGlobalLogger(logger *Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = logger
}

// L is shorthand for GetGlobalLogger.
func L() *Logger {
	return GetGlobalLogger()
}

// With returns a child Logger carrying the given fields on every call.
func (l *Logger) With(fields ...zap.Field) *Logger {
	zl := l.Logger.With(fields...)
	return &Logger{Logger: zl, sugar: zl.Sugar()}
}

// WithComponent tags the child logger with the subsystem emitting the log
// line (e.g. "stream", "clocksync", "api").
func (l *Logger) WithComponent(name string) *Logger {
	return l.With(Component(name))
}

// WithExchange tags the child logger with the venue name.
func (l *Logger) WithExchange(name string) *Logger {
	return l.With(Exchange(name))
}

// WithSymbol tags the child logger with the venue symbol.
func (l *Logger) WithSymbol(symbol string) *Logger {
	return l.With(Symbol(symbol))
}

// WithPairID tags the child logger with a numeric pair identifier.
func (l *Logger) WithPairID(id int) *Logger {
	return l.With(PairID(id))
}

// Sugar exposes the underlying SugaredLogger for printf-style call sites.
func (l *Logger) Sugar() *zap.SugaredLogger {
	return l.sugar
}

// Sync flushes any buffered log entries.
func (l *Logger) Sync() error {
	return l.Logger.Sync()
}

func (l *Logger) Debug(msg string, fields ...zap.Field) { l.Logger.Debug(msg, fields...) }
func (l *Logger) Info(msg string, fields ...zap.Field)  { l.Logger.Info(msg, fields...) }
func (l *Logger) Warn(msg string, fields ...zap.Field)  { l.Logger.Warn(msg, fields...) }
func (l *Logger) Error(msg string, fields ...zap.Field) { l.Logger.Error(msg, fields...) }

// ============================================================
// Global logging functions — operate on GetGlobalLogger()
// ============================================================

func Debug(msg string, fields ...zap.Field) { GetGlobalLogger().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { GetGlobalLogger().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { GetGlobalLogger().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { GetGlobalLogger().Error(msg, fields...) }

func Debugf(format string, args ...interface{}) { GetGlobalLogger().sugar.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { GetGlobalLogger().sugar.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { GetGlobalLogger().sugar.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { GetGlobalLogger().sugar.Errorf(format, args...) }

// ============================================================
// Field constructors — generic passthroughs, plus domain-specific
// shorthand over zap.Field
// ============================================================

func String(key, value string) zap.Field       { return zap.String(key, value) }
func Int(key string, value int) zap.Field      { return zap.Int(key, value) }
func Int64(key string, value int64) zap.Field  { return zap.Int64(key, value) }
func Float64(key string, value float64) zap.Field { return zap.Float64(key, value) }
func Bool(key string, value bool) zap.Field    { return zap.Bool(key, value) }
func Err(err error) zap.Field                  { return zap.Error(err) }
func Any(key string, value interface{}) zap.Field { return zap.Any(key, value) }

func Exchange(name string) zap.Field  { return zap.String("exchange", name) }
func Symbol(symbol string) zap.Field  { return zap.String("symbol", symbol) }
func PairID(id int) zap.Field         { return zap.Int("pair_id", id) }
func OrderID(id string) zap.Field     { return zap.String("order_id", id) }
func Price(p float64) zap.Field       { return zap.Float64("price", p) }
func Volume(v float64) zap.Field      { return zap.Float64("volume", v) }
func Spread(s float64) zap.Field      { return zap.Float64("spread", s) }
func PNL(v float64) zap.Field         { return zap.Float64("pnl", v) }
func Side(side string) zap.Field      { return zap.String("side", side) }
func State(state string) zap.Field    { return zap.String("state", state) }
func Latency(ms float64) zap.Field    { return zap.Float64("latency_ms", ms) }
func RequestID(id string) zap.Field   { return zap.String("request_id", id) }
func UserID(id int) zap.Field         { return zap.Int("user_id", id) }
func Component(name string) zap.Field { return zap.String("component", name) }

// fieldsToInterface flattens zap.Field values into alternating key/value
// pairs, in field order, for call sites that need to hand fields to a
// non-zap sink (e.g. the sugared logger's printf-style helpers).
func fieldsToInterface(fields []zap.Field) []interface{} {
	out := make([]interface{}, 0, len(fields)*2)
	for _, f := range fields {
		out = append(out, f.Key, fieldValue(f))
	}
	return out
}

func fieldValue(f zap.Field) interface{} {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return f.Integer
	case zapcore.Float64Type:
		return math.Float64frombits(uint64(f.Integer))
	case zapcore.BoolType:
		return f.Integer == 1
	default:
		return f.Interface
	}
}
