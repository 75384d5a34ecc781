package xzap

import (
	"context"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConf struct {
	Level      string `toml:"level" mapstructure:"level" json:"level"`
	Mode       string `toml:"mode" mapstructure:"mode" json:"mode"` // console or json
	Path       string `toml:"path" mapstructure:"path" json:"path"`
	MaxSize    int    `toml:"max_size" mapstructure:"max_size" json:"max_size"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups" json:"max_backups"`
	MaxAge     int    `toml:"max_age" mapstructure:"max_age" json:"max_age"`
	Compress   bool   `toml:"compress" mapstructure:"compress" json:"compress"`
}

type traceKey struct{}

var logger = zap.NewNop()

// SetUp builds the process logger and installs it as the package default.
func SetUp(c LogConf) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if c.Level != "" {
		if err := level.UnmarshalText([]byte(c.Level)); err != nil {
			return nil, err
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if strings.EqualFold(c.Mode, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	if c.Path != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   c.Path,
			MaxSize:    c.MaxSize,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAge,
			Compress:   c.Compress,
		}))
	}

	core := zapcore.NewCore(enc, zapcore.NewMultiWriteSyncer(sinks...), level)
	l := zap.New(core, zap.AddCaller())
	SetLogger(l)
	return l, nil
}

func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger = l
	zap.ReplaceGlobals(l)
}

func Logger() *zap.Logger {
	return logger
}

// NewContext stores a trace id that WithContext attaches to every entry.
func NewContext(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey{}, traceID)
}

func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}

func WithContext(ctx context.Context) *zap.Logger {
	if id := TraceID(ctx); id != "" {
		return logger.With(zap.String("trace_id", id))
	}
	return logger
}
