package main

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"
)

func newLoggerConfig(lFile string, lvl zapcore.Level) zap.Config {
	lcfg := zap.NewProductionConfig()
	lcfg.Encoding = "json"
	lcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	lcfg.DisableCaller = true
	lcfg.Sampling = nil
	// The console owns stdout; process logs go to stderr.
	lcfg.OutputPaths = []string{"stderr"}
	if lFile != "" {
		lcfg.OutputPaths = append(lcfg.OutputPaths, lFile)
	}
	lcfg.Level.SetLevel(lvl)
	return lcfg
}

// slogFrom bridges a zap logger into slog for the library packages.
func slogFrom(logger *zap.Logger) *slog.Logger {
	return slog.New(zapslog.NewHandler(logger.Core(), nil))
}
