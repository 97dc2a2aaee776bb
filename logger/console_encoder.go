package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// consoleEncoder renders log entries as a single calm line:
//
//	15:04:05 INFO  component           message  key=value key=value
//
// It favors readability in a terminal over machine parsing; Initialize(true)
// switches to zapcore's JSON encoder for that case instead.
type consoleEncoder struct {
	zapcore.Encoder
	pool buffer.Pool
}

func newConsoleEncoder() zapcore.Encoder {
	cfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		EncodeTime:     zapcore.TimeEncoderOfLayout("15:04:05"),
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}
	return &consoleEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		pool:    buffer.NewPool(),
	}
}

const (
	colorReset  = "\x1b[0m"
	colorGray   = "\x1b[38;5;245m"
	colorGreen  = "\x1b[38;5;108m"
	colorYellow = "\x1b[38;5;179m"
	colorRed    = "\x1b[38;5;167m"
)

func levelColor(lvl zapcore.Level) string {
	switch lvl {
	case zapcore.DebugLevel:
		return colorGray
	case zapcore.WarnLevel:
		return colorYellow
	case zapcore.ErrorLevel, zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorRed
	default:
		return colorGreen
	}
}

func (e *consoleEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	buf := e.pool.Get()

	ts := entry.Time.Format("15:04:05")
	color := levelColor(entry.Level)

	buf.AppendString(colorGray)
	buf.AppendString(ts)
	buf.AppendString(colorReset + " ")
	buf.AppendString(color)
	buf.AppendString(fmt.Sprintf("%-5s", entry.Level.CapitalString()))
	buf.AppendString(colorReset + " ")

	if entry.LoggerName != "" {
		buf.AppendString(fmt.Sprintf("%-18s ", entry.LoggerName))
	}

	buf.AppendString(entry.Message)

	if len(fields) > 0 {
		parts := make([]string, 0, len(fields))
		for _, f := range fields {
			parts = append(parts, fmt.Sprintf("%s=%v", f.Key, fieldValue(f)))
		}
		buf.AppendString("  " + colorGray + strings.Join(parts, " ") + colorReset)
	}

	buf.AppendString("\n")
	return buf, nil
}

func fieldValue(f zapcore.Field) interface{} {
	switch f.Type {
	case zapcore.StringType:
		return f.String
	case zapcore.Int64Type, zapcore.Int32Type:
		return f.Integer
	case zapcore.BoolType:
		return f.Integer == 1
	default:
		if f.Interface != nil {
			return f.Interface
		}
		return f.String
	}
}
