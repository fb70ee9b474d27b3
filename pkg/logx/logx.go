// Package logx writes component-tagged log lines to stderr, plus domain-filtered
// debug output switched on with DEBUG=1 and DEBUG_DOMAINS=negotiation,inpaint.
package logx

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02T15:04:05.000Z"

// Level is the severity printed on each line.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type contextKey string

// ComponentKey is the context key Debug reads the component name from.
const ComponentKey contextKey = "component"

//nolint:gochecknoglobals // process-wide log settings
var (
	mu      sync.RWMutex
	out     io.Writer // nil means stderr; stdout is reserved for the CLI result
	debugOn bool
	domains map[string]bool // nil enables every domain
)

func init() { //nolint:gochecknoinits // env-driven debug switch
	if v := os.Getenv("DEBUG"); v == "1" || strings.EqualFold(v, "true") {
		debugOn = true
	}
	if list := os.Getenv("DEBUG_DOMAINS"); list != "" {
		SetDebugDomains(strings.Split(list, ","))
	}
}

// Logger tags lines with a component name.
type Logger struct {
	component string
}

// NewLogger returns a logger for component.
func NewLogger(component string) *Logger {
	return &Logger{component: component}
}

// SetOutput redirects every logger. A nil writer restores stderr.
func SetOutput(w io.Writer) {
	mu.Lock()
	out = w
	mu.Unlock()
}

// SetDebug toggles debug output.
func SetDebug(enabled bool) {
	mu.Lock()
	debugOn = enabled
	mu.Unlock()
}

// SetDebugDomains limits package-level Debug to the listed domains. An empty
// list enables all of them.
func SetDebugDomains(list []string) {
	mu.Lock()
	defer mu.Unlock()
	if len(list) == 0 {
		domains = nil
		return
	}
	domains = make(map[string]bool, len(list))
	for _, d := range list {
		domains[strings.TrimSpace(d)] = true
	}
}

func debugEnabled(domain string) bool {
	mu.RLock()
	defer mu.RUnlock()
	if !debugOn {
		return false
	}
	return domain == "" || domains == nil || domains[domain]
}

func write(component string, level Level, msg string) {
	line := fmt.Sprintf("[%s] [%s] %s: %s\n", time.Now().UTC().Format(timestampFormat), component, level, msg)

	mu.RLock()
	w := out
	mu.RUnlock()
	if w == nil {
		w = os.Stderr
	}
	_, _ = io.WriteString(w, line)
}

func (l *Logger) Debug(format string, args ...any) {
	if debugEnabled("") {
		write(l.component, LevelDebug, fmt.Sprintf(format, args...))
	}
}

func (l *Logger) Info(format string, args ...any) {
	write(l.component, LevelInfo, fmt.Sprintf(format, args...))
}

func (l *Logger) Warn(format string, args ...any) {
	write(l.component, LevelWarn, fmt.Sprintf(format, args...))
}

func (l *Logger) Error(format string, args ...any) {
	write(l.component, LevelError, fmt.Sprintf(format, args...))
}

// Debug logs under domain when that domain is enabled. The component comes
// from ctx (see WithComponent).
//
//	logx.Debug(ctx, "inpaint", "step %d prompt %q", i, prompt)
func Debug(ctx context.Context, domain, format string, args ...any) {
	if !debugEnabled(domain) {
		return
	}
	component := "unknown"
	if ctx != nil {
		if c, ok := ctx.Value(ComponentKey).(string); ok {
			component = c
		}
	}
	write(component, LevelDebug, "["+domain+"] "+fmt.Sprintf(format, args...))
}

// WithComponent returns a context carrying the component name for Debug.
func WithComponent(ctx context.Context, component string) context.Context {
	return context.WithValue(ctx, ComponentKey, component)
}

// DebugState logs a state-machine step.
func DebugState(ctx context.Context, domain, action, state string, extra ...string) {
	if len(extra) > 0 {
		Debug(ctx, domain, "State %s: %s - %s", action, state, extra[0])
		return
	}
	Debug(ctx, domain, "State %s: %s", action, state)
}
