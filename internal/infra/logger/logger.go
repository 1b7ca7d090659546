package logger

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sifan077/linkpulse/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/term"
)

const serviceName = "linkpulse"

// Config drives how the zap logger is built.
type Config struct {
	Development bool
	Level       string
	Encoding    string
}

// FromApp derives logger settings from the app section of the config.
func FromApp(app config.AppConfig) Config {
	return Config{
		Development: app.Development(),
		Level:       app.LogLevel,
		Encoding:    app.LogEncoding,
	}
}

var (
	mu     sync.RWMutex
	global *zap.Logger
	colors = stdoutIsTerminal()
)

// Init builds a logger from cfg and installs it as the process logger.
func Init(cfg Config) (*zap.Logger, error) {
	l, err := New(cfg)
	if err != nil {
		return nil, err
	}

	mu.Lock()
	previous := global
	global = l
	mu.Unlock()

	if previous != nil {
		_ = previous.Sync()
	}
	return l, nil
}

// MustInit panics if the logger cannot be built.
func MustInit(cfg Config) *zap.Logger {
	l, err := Init(cfg)
	if err != nil {
		panic(err)
	}
	return l
}

// L returns the process logger. Before Init it is a no-op logger, so packages
// can log from init paths and tests without any setup.
func L() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if global == nil {
		return zap.NewNop()
	}
	return global
}

// Component returns the process logger named after a subsystem, e.g. "resolver".
func Component(name string) *zap.Logger {
	return L().Named(name)
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func Sync() error {
	err := L().Sync()
	if err == nil || errors.Is(err, syscall.ENOTTY) || errors.Is(err, syscall.EINVAL) || errors.Is(err, os.ErrInvalid) {
		return nil
	}
	return err
}

// ParseLevel accepts zap level names in any case. Empty means info.
func ParseLevel(s string) (zapcore.Level, error) {
	if s == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return level, fmt.Errorf("logger: invalid level %q: %w", s, err)
	}
	return level, nil
}

// New returns a zap.Logger configured according to cfg. Development loggers
// default to debug and console output; production loggers to info, JSON and sampling.
func New(cfg Config) (*zap.Logger, error) {
	zapCfg := zap.NewProductionConfig()
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := ParseLevel(cfg.Level)
		if err != nil {
			return nil, err
		}
		zapCfg.Level = zap.NewAtomicLevelAt(level)
	}
	if cfg.Encoding != "" {
		zapCfg.Encoding = cfg.Encoding
	}
	zapCfg.EncoderConfig = encoderConfig(zapCfg.Encoding == "console")
	if !cfg.Development {
		zapCfg.InitialFields = map[string]interface{}{"service": serviceName}
	}

	return zapCfg.Build(zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}

func encoderConfig(console bool) zapcore.EncoderConfig {
	enc := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "component",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stack",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeName:     zapcore.FullNameEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.RFC3339NanoTimeEncoder,
	}
	if !console {
		return enc
	}

	enc.ConsoleSeparator = "  "
	enc.EncodeDuration = zapcore.StringDurationEncoder
	enc.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(t.Format("15:04:05.000"))
	}
	enc.EncodeLevel = consoleLevel
	enc.EncodeName = func(name string, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString("[" + name + "]")
	}
	return enc
}

var levelColors = map[zapcore.Level]string{
	zapcore.DebugLevel:  "\x1b[90m",
	zapcore.InfoLevel:   "\x1b[36m",
	zapcore.WarnLevel:   "\x1b[33m",
	zapcore.ErrorLevel:  "\x1b[31m",
	zapcore.DPanicLevel: "\x1b[35m",
	zapcore.PanicLevel:  "\x1b[35m",
	zapcore.FatalLevel:  "\x1b[1;31m",
}

func consoleLevel(level zapcore.Level, pae zapcore.PrimitiveArrayEncoder) {
	label := fmt.Sprintf("%-5s", level.CapitalString())
	if colors {
		if c, ok := levelColors[level]; ok {
			label = c + label + "\x1b[0m"
		}
	}
	pae.AppendString(label)
}

func stdoutIsTerminal() bool {
	if _, disabled := os.LookupEnv("NO_COLOR"); disabled {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}
