package smalivm

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itchyny/timefmt-go"
	"github.com/mattn/go-isatty"
)

// LogLevel represents the severity level for logs.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "ERROR"
	case LevelWarn:
		return "WARN"
	case LevelInfo:
		return "INFO"
	case LevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string into a LogLevel.
func ParseLogLevel(s string) LogLevel {
	switch strings.ToUpper(s) {
	case "ERROR":
		return LevelError
	case "WARN", "WARNING":
		return LevelWarn
	case "INFO":
		return LevelInfo
	case "DEBUG":
		return LevelDebug
	default:
		return LevelWarn
	}
}

// Logger is the interface used by the interpreter for logging.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)

	// With returns a child logger augmented with the provided fields.
	With(fields map[string]any) Logger
}

// Fields the interpreter attaches to its loggers. A line carrying them is
// prefixed with its location, method@pc, instead of listing them as pairs.
const (
	FieldMethod = "method"
	FieldPC     = "pc"
	FieldDepth  = "depth"
)

// DefaultTimeLayout is the strftime layout used for log timestamps.
const DefaultTimeLayout = "%Y-%m-%dT%H:%M:%S.%f%z"

// textFormatter emits compact single-line text logs.
// Format: [LEVEL] ts method@pc [depth N]: msg key1=val1 key2=val2 ...
type textFormatter struct {
	includeTimestamp bool
	layout           string
	color            bool
}

func newTextFormatter(w io.Writer) *textFormatter {
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &textFormatter{
		includeTimestamp: true,
		layout:           DefaultTimeLayout,
		color:            color,
	}
}

var levelColors = map[LogLevel]string{
	LevelError: "\033[1;31m",
	LevelWarn:  "\033[1;33m",
	LevelInfo:  "\033[1;34m",
	LevelDebug: "\033[0;37m",
}

func (f *textFormatter) format(ts time.Time, level LogLevel, msg string, fields map[string]any) []byte {
	var b strings.Builder
	b.Grow(128)

	if f.color {
		b.WriteString(levelColors[level])
	}
	b.WriteByte('[')
	b.WriteString(level.String())
	b.WriteByte(']')
	if f.color {
		b.WriteString("\033[0m")
	}
	b.WriteByte(' ')

	if f.includeTimestamp {
		b.WriteString(timefmt.Format(ts.UTC(), f.layout))
		b.WriteByte(' ')
	}

	loc := location(fields)
	if loc != "" {
		b.WriteString(loc)
		b.WriteString(": ")
	}
	b.WriteString(msg)

	if len(fields) > 0 {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			if loc != "" && (k == FieldMethod || k == FieldPC || k == FieldDepth) {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			b.WriteByte(' ')
			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(safeSprint(fields[k]))
		}
	}

	b.WriteByte('\n')
	return []byte(b.String())
}

// location renders the method, pc and nested call depth of a line.
func location(fields map[string]any) string {
	m, ok := fields[FieldMethod]
	if !ok {
		return ""
	}
	loc := safeSprint(m)
	if pc, ok := fields[FieldPC]; ok {
		loc += "@" + safeSprint(pc)
	}
	if d, ok := fields[FieldDepth].(int); ok && d > 0 {
		loc += fmt.Sprintf(" [depth %d]", d)
	}
	return loc
}

func safeSprint(v any) string {
	switch t := v.(type) {
	case string:
		if strings.IndexFunc(t, func(r rune) bool { return r <= ' ' }) >= 0 {
			return fmt.Sprintf("%q", t)
		}
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}

// defaultLogger is a thread-safe logger implementation supporting With() context.
type defaultLogger struct {
	out        io.Writer
	level      LogLevel
	formatter  *textFormatter
	baseFields map[string]any

	// mu serializes writes to the writer.
	mu *sync.Mutex
}

// NewLogger creates a default logger with the given level.
// If w is nil, os.Stderr is used.
func NewLogger(level LogLevel, w io.Writer) Logger {
	if w == nil {
		w = os.Stderr
	}
	return &defaultLogger{
		out:        w,
		level:      level,
		formatter:  newTextFormatter(w),
		baseFields: make(map[string]any),
		mu:         &sync.Mutex{},
	}
}

// NewLoggerWithLayout is NewLogger with a custom strftime timestamp layout.
// An empty layout disables timestamps.
func NewLoggerWithLayout(level LogLevel, w io.Writer, layout string) Logger {
	l := NewLogger(level, w).(*defaultLogger)
	l.formatter.layout = layout
	l.formatter.includeTimestamp = layout != ""
	return l
}

type noopLogger struct{}

func (l *noopLogger) Debugf(format string, args ...any) {}
func (l *noopLogger) Infof(format string, args ...any)  {}
func (l *noopLogger) Warnf(format string, args ...any)  {}
func (l *noopLogger) Errorf(format string, args ...any) {}
func (l *noopLogger) With(fields map[string]any) Logger { return l }

// NopLogger returns a logger that discards all output.
func NopLogger() Logger {
	return &noopLogger{}
}

func (l *defaultLogger) enabled(level LogLevel) bool {
	return level <= l.level
}

func (l *defaultLogger) With(fields map[string]any) Logger {
	if len(fields) == 0 {
		return l
	}
	newFields := make(map[string]any, len(l.baseFields)+len(fields))
	for k, v := range l.baseFields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}
	return &defaultLogger{
		out:        l.out,
		level:      l.level,
		formatter:  l.formatter,
		baseFields: newFields,
		mu:         l.mu,
	}
}

func (l *defaultLogger) Debugf(format string, args ...any) {
	l.logf(LevelDebug, format, args...)
}

func (l *defaultLogger) Infof(format string, args ...any) {
	l.logf(LevelInfo, format, args...)
}

func (l *defaultLogger) Warnf(format string, args ...any) {
	l.logf(LevelWarn, format, args...)
}

func (l *defaultLogger) Errorf(format string, args ...any) {
	l.logf(LevelError, format, args...)
}

func (l *defaultLogger) logf(level LogLevel, format string, args ...any) {
	if !l.enabled(level) {
		return
	}
	msg := fmt.Sprintf(format, args...)

	// Snapshot fields so callers can't race the formatter.
	fields := make(map[string]any, len(l.baseFields))
	for k, v := range l.baseFields {
		fields[k] = v
	}

	line := l.formatter.format(time.Now(), level, msg, fields)

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(line)
}

// truncateList joins items with "," and appends +N if truncated.
func truncateList(items []string, max int) string {
	if max <= 0 || len(items) <= max {
		return strings.Join(items, ",")
	}
	return strings.Join(items[:max], ",") + fmt.Sprintf(",+%d", len(items)-max)
}

// registerSummary renders the first few registers of a context for debug logs.
func registerSummary(c *Context, limit int) string {
	n := c.Registers.Len()
	items := make([]string, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, fmt.Sprintf("v%d=%s", i, c.Registers.Get(i)))
	}
	return "[" + truncateList(items, limit) + "]"
}
