package main

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"ipchat/internal/server"
)

// buildLogger assembles the process logger: console encoding in development,
// JSON otherwise, with an optional size-rotated log file.
func buildLogger(cfg server.Config) (*zap.Logger, error) {
	if cfg.LogFile == "" {
		if cfg.DevLog {
			return zap.NewDevelopment()
		}
		return zap.NewProduction()
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if cfg.DevLog {
		enc = zapcore.NewConsoleEncoder(encCfg)
	} else {
		enc = zapcore.NewJSONEncoder(encCfg)
	}

	sink := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    100, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
		Compress:   true,
	})

	level := zapcore.InfoLevel
	if cfg.DevLog {
		level = zapcore.DebugLevel
	}

	core := zapcore.NewTee(
		zapcore.NewCore(enc, sink, level),
		zapcore.NewCore(enc, zapcore.AddSync(os.Stderr), level),
	)
	return zap.New(core), nil
}
