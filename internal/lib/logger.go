package lib

import (
	"io"
	"os"

	"github.com/rentchain/rental-client/internal/interfaces"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const timeLayout = "2006-01-02T15:04:05"

type LoggerConfig struct {
	Level    string
	Color    bool
	IsProd   bool
	JSON     bool
	FilePath string // optional, enables the file core

	extra io.Writer
}

func NewLogger(cfg LoggerConfig) (*Logger, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return &Logger{SugaredLogger: log.Sugar()}, nil
}

// NewLoggerMemory additionally writes every entry to wr, handy for asserting log output
func NewLoggerMemory(cfg LoggerConfig, wr io.Writer) (*Logger, error) {
	cfg.extra = wr
	return NewLogger(cfg)
}

// NewTestLogger logs only to stdout
func NewTestLogger() *Logger {
	log, _ := newLogger(LoggerConfig{Level: "debug"})
	return &Logger{SugaredLogger: log.Sugar()}
}

func newLogger(cfg LoggerConfig) (*zap.Logger, error) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{newConsoleCore(level, cfg)}

	if cfg.FilePath != "" {
		fileCore, err := newFileCore(cfg)
		if err != nil {
			return nil, err
		}
		cores = append(cores, fileCore)
	}
	if cfg.extra != nil {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
			zapcore.AddSync(cfg.extra),
			level,
		))
	}

	opts := []zap.Option{zap.AddStacktrace(zap.ErrorLevel)}
	if !cfg.IsProd {
		opts = append(opts, zap.Development())
	}

	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

func newEncoder(cfg LoggerConfig, color bool) zapcore.Encoder {
	var encoderCfg zapcore.EncoderConfig
	if cfg.IsProd {
		encoderCfg = zap.NewProductionEncoderConfig()
	} else {
		encoderCfg = zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeTime = zapcore.TimeEncoderOfLayout(timeLayout)
	}
	if color && !cfg.JSON {
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	if cfg.JSON {
		return zapcore.NewJSONEncoder(encoderCfg)
	}
	return zapcore.NewConsoleEncoder(encoderCfg)
}

func newConsoleCore(level zapcore.Level, cfg LoggerConfig) zapcore.Core {
	return zapcore.NewCore(newEncoder(cfg, cfg.Color), zapcore.AddSync(os.Stdout), level)
}

// file output always keeps debug entries, console honours the configured level
func newFileCore(cfg LoggerConfig) (zapcore.Core, error) {
	file, err := os.OpenFile(cfg.FilePath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0666)
	if err != nil {
		return nil, err
	}
	return zapcore.NewCore(newEncoder(cfg, false), zapcore.AddSync(file), zapcore.DebugLevel), nil
}

type Logger struct {
	*zap.SugaredLogger
}

func (l *Logger) Named(name string) interfaces.ILogger {
	return &Logger{l.SugaredLogger.Named(name)}
}

func (l *Logger) With(args ...interface{}) interfaces.ILogger {
	return &Logger{l.SugaredLogger.With(args...)}
}
