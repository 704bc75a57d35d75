// Package logutil builds the process logger used by the command-line
// entry points.
package logutil

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New returns a JSON logger with datetime and caller information that
// splits output between stdout and stderr by error level.
func New() *zap.Logger {
	var isErrorLevel = zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= zapcore.ErrorLevel
	})
	var isInfoLevel = zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl < zapcore.ErrorLevel
	})
	var stdoutWriter = zapcore.Lock(os.Stdout)
	var stderrWriter = zapcore.Lock(os.Stderr)

	var config = zap.NewProductionEncoderConfig()
	config.EncodeTime = zapcore.RFC3339TimeEncoder
	var encoder = zapcore.NewJSONEncoder(config)

	var core = zapcore.NewTee(
		zapcore.NewCore(encoder, stderrWriter, isErrorLevel),
		zapcore.NewCore(encoder, stdoutWriter, isInfoLevel),
	)
	return zap.New(core, zap.AddCaller())
}
