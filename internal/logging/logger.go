package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/kingrea/warroom/internal/config"
)

// Logger owns the zap logger and, when logging to a file, its handle. The
// TUI owns the terminal, so `play` writes to .warroom/logs/warroom.log and
// `serve` writes to stderr.
type Logger struct {
	zap  *zap.Logger
	file *os.File
}

// New builds a logger from the logging section of cfg.
func New(cfg *config.Config) (*Logger, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	var (
		sink zapcore.WriteSyncer
		file *os.File
	)
	if path := cfg.LogFilePath(); path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("logging: ensure log dir: %w", err)
		}
		file, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open log file: %w", err)
		}
		sink = zapcore.AddSync(file)
	} else {
		sink = zapcore.Lock(zapcore.AddSync(os.Stderr))
	}

	core := zapcore.NewCore(newEncoder(cfg.Logging.Format), sink, level)
	return &Logger{
		zap:  zap.New(core, zap.AddCaller()).Named("warroom"),
		file: file,
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{zap: zap.NewNop()}
}

func newEncoder(format string) zapcore.Encoder {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "console" {
		return zapcore.NewConsoleEncoder(encoderCfg)
	}
	return zapcore.NewJSONEncoder(encoderCfg)
}

// Zap returns the underlying logger.
func (l *Logger) Zap() *zap.Logger {
	if l == nil || l.zap == nil {
		return zap.NewNop()
	}
	return l.zap
}

// Close flushes buffered entries and releases the file handle.
func (l *Logger) Close() error {
	if l == nil || l.zap == nil {
		return nil
	}
	err := l.zap.Sync()
	if err != nil && isStdoutSyncError(err) {
		err = nil
	}
	if l.file != nil {
		if cerr := l.file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		l.file = nil
	}
	return err
}

// Syncing stderr on Linux returns EINVAL or ENOTTY.
func isStdoutSyncError(err error) bool {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return errno == syscall.EINVAL || errno == syscall.ENOTTY
	}
	return false
}
