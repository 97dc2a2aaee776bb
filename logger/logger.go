package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Logger is the global sugared logger. Safe to use before Initialize is
	// called: it starts as a no-op so early package init code never panics.
	Logger *zap.SugaredLogger

	// JSONOutput records which encoding Initialize last selected.
	JSONOutput bool
)

func init() {
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger at info level. jsonOutput selects
// structured JSON (for log aggregation) over the calm, human-readable
// console encoding; cmd/hamrd selects JSON for its run command and the
// console encoding for every other command.
func Initialize(jsonOutput bool) error {
	JSONOutput = jsonOutput

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		zapLogger, err = config.Build()
	} else {
		zapLogger = zap.New(
			zapcore.NewCore(
				newConsoleEncoder(),
				zapcore.AddSync(os.Stdout),
				zap.InfoLevel,
			),
		)
	}
	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Cleanup flushes any buffered log entries.
func Cleanup() error {
	if Logger != nil {
		return Logger.Sync()
	}
	return nil
}

func Info(args ...interface{})                        { Logger.Info(args...) }
func Infof(format string, args ...interface{})         { Logger.Infof(format, args...) }
func Infow(msg string, kv ...interface{})              { Logger.Infow(msg, kv...) }
func Warn(args ...interface{})                         { Logger.Warn(args...) }
func Warnf(format string, args ...interface{})         { Logger.Warnf(format, args...) }
func Warnw(msg string, kv ...interface{})              { Logger.Warnw(msg, kv...) }
func Error(args ...interface{})                        { Logger.Error(args...) }
func Errorf(format string, args ...interface{})        { Logger.Errorf(format, args...) }
func Errorw(msg string, kv ...interface{})             { Logger.Errorw(msg, kv...) }
func Debug(args ...interface{})                        { Logger.Debug(args...) }
func Debugf(format string, args ...interface{})        { Logger.Debugf(format, args...) }
func Debugw(msg string, kv ...interface{})             { Logger.Debugw(msg, kv...) }
