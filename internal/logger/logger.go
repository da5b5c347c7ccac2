package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 结构化日志接口，参数以 key/value 成对传入
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Err(err error, msg string, args ...any)
	With(args ...any) Logger
}

// Options 日志初始化选项
type Options struct {
	Level   string   // debug/info/warn/error
	Writers []string // console/file
	File    string   // 日志文件路径
}

type zeroLogger struct {
	zl zerolog.Logger
}

// New 根据选项创建 zerolog 实现
func New(opts Options) Logger {
	var writers []io.Writer
	for _, w := range opts.Writers {
		switch strings.ToLower(w) {
		case "console":
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
		case "file":
			file := opts.File
			if file == "" {
				file = "logs/streamscope.log"
			}
			writers = append(writers, &lumberjack.Logger{
				Filename:   file,
				MaxSize:    10,
				MaxBackups: 5,
				MaxAge:     30,
				Compress:   true,
			})
		}
	}
	if len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.DateTime})
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).Level(level).With().Timestamp().Logger()
	return &zeroLogger{zl: zl}
}

// NewWithWriter 使用指定输出创建日志器，主要用于测试
func NewWithWriter(w io.Writer, level string) Logger {
	lv, err := zerolog.ParseLevel(level)
	if err != nil {
		lv = zerolog.DebugLevel
	}
	return &zeroLogger{zl: zerolog.New(w).Level(lv).With().Timestamp().Logger()}
}

// NewNop 创建丢弃所有输出的日志器
func NewNop() Logger {
	return &zeroLogger{zl: zerolog.Nop()}
}

func (l *zeroLogger) Debug(msg string, args ...any) { l.emit(l.zl.Debug(), msg, args) }
func (l *zeroLogger) Info(msg string, args ...any)  { l.emit(l.zl.Info(), msg, args) }
func (l *zeroLogger) Warn(msg string, args ...any)  { l.emit(l.zl.Warn(), msg, args) }
func (l *zeroLogger) Error(msg string, args ...any) { l.emit(l.zl.Error(), msg, args) }

func (l *zeroLogger) Err(err error, msg string, args ...any) {
	l.emit(l.zl.Error().Err(err), msg, args)
}

func (l *zeroLogger) With(args ...any) Logger {
	ctx := l.zl.With()
	for i := 0; i < len(args); i += 2 {
		key, val := pair(args, i)
		ctx = ctx.Interface(key, val)
	}
	return &zeroLogger{zl: ctx.Logger()}
}

func (l *zeroLogger) emit(e *zerolog.Event, msg string, args []any) {
	if e == nil {
		return
	}
	for i := 0; i < len(args); i += 2 {
		key, val := pair(args, i)
		if err, ok := val.(error); ok {
			e = e.AnErr(key, err)
			continue
		}
		e = e.Interface(key, val)
	}
	e.Msg(msg)
}

// pair 取出第 i 个键值对，缺失的值记为 "!MISSING"
func pair(args []any, i int) (string, any) {
	key, ok := args[i].(string)
	if !ok {
		key = "!BADKEY"
	}
	if i+1 >= len(args) {
		return key, "!MISSING"
	}
	return key, args[i+1]
}
