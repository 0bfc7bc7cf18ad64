// Package logx provides the server's leveled, printf-style logger plus a raw
// variant for pre-formatted messages, built on github.com/joeycumines/logiface
// fronting a github.com/joeycumines/stumpy JSON event, with repeated-warning
// suppression via github.com/joeycumines/go-catrate so a flapping connection
// can't flood the log.
//
// Level mapping onto logiface's syslog-style scale: Debug is the most verbose
// (logiface.LevelTrace), Verbose the next tier (logiface.LevelDebug), Notice
// the default (logiface.LevelNotice), Warning the least verbose
// (logiface.LevelWarning).
package logx

import (
	"io"
	"os"
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger wraps a logiface.Logger[*stumpy.Event] with printf-style leveled
// methods and a raw variant, in the shape of Redis's serverLog/serverLogRaw
// pair.
type Logger struct {
	base    *logiface.Logger[*stumpy.Event]
	limiter *catrate.Limiter
}

// Option configures a Logger at construction time.
type Option func(*config)

type config struct {
	writer io.Writer
}

// WithWriter overrides the default os.Stderr destination.
func WithWriter(w io.Writer) Option {
	return func(c *config) { c.writer = w }
}

// New builds a Logger. Repeated identical-category warnings (via
// WarningThrottled) are limited to burst per window, for noisy categories
// like idle-client churn or pool overflow.
func New(window time.Duration, burst int, opts ...Option) *Logger {
	var c config
	for _, o := range opts {
		o(&c)
	}
	if c.writer == nil {
		c.writer = os.Stderr
	}

	base := stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(c.writer)),
	)

	var limiter *catrate.Limiter
	if window > 0 && burst > 0 {
		limiter = catrate.NewLimiter(map[time.Duration]int{window: burst})
	}

	return &Logger{base: base, limiter: limiter}
}

// Debug logs at the most verbose level.
func (l *Logger) Debug(format string, args ...any) {
	l.base.Trace().Logf(format, args...)
}

// Verbose logs at the second most verbose level.
func (l *Logger) Verbose(format string, args ...any) {
	l.base.Debug().Logf(format, args...)
}

// Notice logs at the default level.
func (l *Logger) Notice(format string, args ...any) {
	l.base.Notice().Logf(format, args...)
}

// Warning logs at the least verbose level.
func (l *Logger) Warning(format string, args ...any) {
	l.base.Warning().Logf(format, args...)
}

// Raw emits msg verbatim at the given level, with no printf formatting,
// for pre-formatted messages (e.g. banners).
func (l *Logger) Raw(level logiface.Level, msg string) {
	l.base.Build(level).Log(msg)
}

// WarningThrottled emits a Warning for category at most burst times per
// configured window (see New); with no limiter configured it always emits; calls within the window still count toward the next window's
// allowance but produce no log line. Used for categories that can flood
// under pathological client behavior (a flapping connection, a client stuck
// retrying a full queue).
func (l *Logger) WarningThrottled(category string, format string, args ...any) {
	if l.limiter != nil {
		if _, ok := l.limiter.Allow(category); !ok {
			return
		}
	}
	l.Warning(format, args...)
}
