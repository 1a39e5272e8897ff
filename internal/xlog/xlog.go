// Package xlog implements the structured append-only log sink (spec §4.2):
// one JSON object per line, opened append-mode per write for durability
// across orchestrator crashes and to permit external tailing.
//
// The Logf type mirrors the teacher's convention (tailscale.com/types/logger.Logf:
// a plain function value), and Sink.Logf has that shape. The other packages
// of this module take a *Sink directly rather than a Logf value.
package xlog

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"

	"github.com/candyconnect/candyconnectd/internal/vpnerr"
)

// Logf is the logging convention threaded through the rest of the module.
type Logf func(level, format string, args ...any)

// Sink is a single-writer-at-a-time JSON-lines file sink at a fixed path.
type Sink struct {
	path string
	mu   sync.Mutex
}

// New returns a Sink writing to path. New does not touch the file; each
// Write call opens it in append mode, creating it if absent, per spec §4.2.
func New(path string) *Sink {
	return &Sink{path: path}
}

var encoderConfig = zapcore.EncoderConfig{
	MessageKey:  "message",
	LevelKey:    "level",
	TimeKey:     "timestamp",
	EncodeTime:  zapcore.RFC3339TimeEncoder,
	EncodeLevel: zapcore.LowercaseLevelEncoder,
}

func levelOf(level string) zapcore.Level {
	switch level {
	case "error", "critical":
		return zapcore.ErrorLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "debug":
		return zapcore.DebugLevel
	default:
		return zapcore.InfoLevel
	}
}

// Write appends one JSON-object line: {timestamp, level, message}. Concurrent
// callers are serialized by s.mu; atomicity of the underlying append is
// provided by the OS (each line stays below the platform's atomic-append
// threshold for pipes and disks).
func (s *Sink) Write(level, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return vpnerr.New(vpnerr.IO, "open log sink", err)
	}
	defer f.Close()

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(f), zapcore.DebugLevel)
	ent := zapcore.Entry{Level: levelOf(level), Time: time.Now(), Message: message}
	if err := core.Write(ent, nil); err != nil {
		return vpnerr.New(vpnerr.IO, "write log line", err)
	}
	return nil
}

// Logf adapts the sink to the Logf convention, formatting with fmt-style
// verbs before the write. Write errors are swallowed here (IOError is
// non-fatal to the session per spec §7) but still returned by Write itself
// for callers that want to observe them.
func (s *Sink) Logf(level, format string, args ...any) {
	s.Write(level, fmt.Sprintf(format, args...))
}
