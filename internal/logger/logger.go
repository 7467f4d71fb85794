package logger

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/deltasync/internal/printer"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level string    // "debug","info","warn","error"
	JSON  bool      // JSON output (CI, host integration)
	Color bool      // colorize (console)
	Out   io.Writer // default os.Stdout
}

var (
	mu       sync.RWMutex
	zlog     *zap.SugaredLogger
	out      io.Writer = os.Stdout
	p        *printer.ColorPrinter
	curLevel = zapcore.InfoLevel
	curJSON  bool
	ready    atomic.Bool
)

// Configure sets up the global logger.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	configureLocked(opts)
}

func configureLocked(opts Options) {
	if opts.Out != nil {
		out = opts.Out
	}
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.CallerKey = ""
	encCfg.MessageKey = "msg"

	var enc zapcore.Encoder
	if opts.JSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(zapcore.EncoderConfig{MessageKey: "msg"})
	}

	level := parseLevel(opts.Level)
	ws := zapcore.AddSync(writerAdapter{out})
	core := zapcore.NewCore(enc, ws, level)

	zlog = zap.New(core).Sugar()
	curJSON = opts.JSON

	if opts.Color && !opts.JSON {
		p = printer.NewColorPrinter()
	} else {
		p = printer.NewPlainPrinter()
	}

	ready.Store(true)
}

// SetLevel adjusts current level at runtime ("debug","info","warn","error").
func SetLevel(level string) {
	mu.Lock()
	defer mu.Unlock()
	configureLocked(Options{Level: level, JSON: curJSON, Color: !curJSON, Out: out})
}

// SetOutput replaces the logger writer (use io.Discard in tests).
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	if w == nil {
		w = os.Stdout
	}
	configureLocked(Options{Level: curLevel.String(), JSON: curJSON, Color: !curJSON, Out: w})
}

// UseTestMode silences logs during tests.
func UseTestMode() {
	Configure(Options{
		Level: "error",
		Out:   io.Discard,
	})
}

// Out returns the current output writer (for tables).
func Out() io.Writer {
	mu.RLock()
	defer mu.RUnlock()
	return out
}

// ---- Public logging API ----

func Info(msg string, args ...interface{}) {
	logf(zapcore.InfoLevel, "", "✨ ", msg, args...)
}

func Success(msg string, args ...interface{}) {
	logf(zapcore.InfoLevel, "", "✅ ", msg, args...)
}

func LogError(msg string, args ...interface{}) {
	logf(zapcore.ErrorLevel, "", "❌ ", msg, args...)
}

func Warn(msg string, args ...interface{}) {
	logf(zapcore.WarnLevel, "", "⚠️ ", msg, args...)
}

func Debug(msg string, args ...interface{}) {
	logf(zapcore.DebugLevel, "", "🛠️ ", msg, args...)
}

// Scoped prefixes every message with a component name, so engine logs can be
// filtered per component ("cache", "scheduler", ...).
type Scoped struct {
	component string
}

func Named(component string) Scoped { return Scoped{component: component} }

func (s Scoped) Info(msg string, args ...interface{}) {
	logf(zapcore.InfoLevel, s.component, "✨ ", msg, args...)
}

func (s Scoped) Warn(msg string, args ...interface{}) {
	logf(zapcore.WarnLevel, s.component, "⚠️ ", msg, args...)
}

func (s Scoped) Error(msg string, args ...interface{}) {
	logf(zapcore.ErrorLevel, s.component, "❌ ", msg, args...)
}

func (s Scoped) Debug(msg string, args ...interface{}) {
	logf(zapcore.DebugLevel, s.component, "🛠️ ", msg, args...)
}

// ---- Tables ----

func CreateTable(headers []string) *tablewriter.Table {
	mu.RLock()
	defer mu.RUnlock()
	t := tablewriter.NewTable(out)
	t.Header(headers)
	return t
}

// ---- internals ----

func logf(level zapcore.Level, component, icon, msg string, args ...interface{}) {
	if !ensureReady() {
		return
	}
	mu.RLock()
	defer mu.RUnlock()

	if !zlog.Desugar().Core().Enabled(level) {
		return
	}

	var colorize func(string, ...interface{}) string
	switch level {
	case zapcore.ErrorLevel:
		colorize = p.Error
	case zapcore.WarnLevel:
		colorize = p.Warning
	case zapcore.DebugLevel:
		colorize = p.Debug
	default:
		colorize = p.Info
		if icon == "✅ " {
			colorize = p.Success
		}
	}

	if curJSON {
		icon = ""
	}
	line := colorize(icon+msg, args...)

	l := zlog
	if component != "" {
		if curJSON {
			l = l.With("component", component)
		} else {
			line = p.Accent("[%s] ", component) + line
		}
	}

	switch level {
	case zapcore.ErrorLevel:
		l.Error(line)
	case zapcore.WarnLevel:
		l.Warn(line)
	case zapcore.DebugLevel:
		l.Debug(line)
	default:
		l.Info(line)
	}
}

type writerAdapter struct{ w io.Writer }

func (wa writerAdapter) Write(p []byte) (int, error) { return wa.w.Write(p) }

func parseLevel(s string) zapcore.Level {
	switch s {
	case "debug":
		curLevel = zapcore.DebugLevel
	case "info", "":
		curLevel = zapcore.InfoLevel
	case "warn":
		curLevel = zapcore.WarnLevel
	case "error":
		curLevel = zapcore.ErrorLevel
	default:
		curLevel = zapcore.InfoLevel
	}
	return curLevel
}

func ensureReady() bool {
	if !ready.Load() {
		return false
	}
	return p != nil && zlog != nil
}
