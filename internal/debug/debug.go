// Package debug writes component-tagged diagnostics for the extraction and
// resolution pipeline. Output is off unless enabled, and it is never written
// while stdio carries the MCP protocol.
package debug

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EnableDebug turns output on at build time:
// go build -ldflags "-X github.com/standardbeagle/codegraph/internal/debug.EnableDebug=true"
var EnableDebug = "false"

// MCPMode suppresses all output; set by the serve command.
var MCPMode = false

// Component tags a line with the pipeline stage that wrote it.
type Component string

const (
	Rules   Component = "RULES"
	Extract Component = "EXTRACT"
	Resolve Component = "RESOLVE"
	Store   Component = "STORE"
	Watch   Component = "WATCH"
	MCP     Component = "MCP"
)

var (
	mu     sync.Mutex
	forced bool
	out    io.Writer
	file   *os.File
)

// SetMCPMode enables MCP mode which suppresses all debug output to stdio
func SetMCPMode(enabled bool) {
	MCPMode = enabled
}

// SetEnabled turns debug output on regardless of build flag or environment.
func SetEnabled(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	forced = enabled
}

// SetDebugOutput sets the writer for debug output; nil discards it.
func SetDebugOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// InitDebugLogFile sends output to a new timestamped file under the temp
// directory and returns its path. CloseDebugLog closes it.
func InitDebugLogFile() (string, error) {
	dir := filepath.Join(os.TempDir(), "codegraph-debug-logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create debug log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("debug-%s-%d.log", time.Now().Format("2006-01-02T150405"), os.Getpid()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create debug log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
	}
	file, out = f, f
	return path, nil
}

// CloseDebugLog closes the debug log file if one is open.
func CloseDebugLog() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file, out = nil, nil
	return err
}

// IsDebugEnabled reports whether output is on: forced by flag, build flag or
// DEBUG=1 in the environment, and never in MCP mode.
func IsDebugEnabled() bool {
	if MCPMode {
		return false
	}
	mu.Lock()
	on := forced
	mu.Unlock()
	if on || EnableDebug == "true" {
		return true
	}
	v := os.Getenv("DEBUG")
	return v == "1" || v == "true"
}

// write holds the lock for the whole line so concurrent workers never
// interleave.
func write(prefix, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()
	if out == nil {
		return
	}
	fmt.Fprintf(out, prefix+format, args...)
}

// Log writes one line tagged with component.
func Log(component Component, format string, args ...interface{}) {
	if !IsDebugEnabled() {
		return
	}
	write("[DEBUG:"+string(component)+"] ", format, args...)
}

// LogRules logs rule table loading and validation
func LogRules(format string, args ...interface{}) { Log(Rules, format, args...) }

// LogExtract logs per-file extraction, including skipped candidates
func LogExtract(format string, args ...interface{}) { Log(Extract, format, args...) }

// LogResolve logs relationship resolution passes
func LogResolve(format string, args ...interface{}) { Log(Resolve, format, args...) }

// LogStore logs persistence writes
func LogStore(format string, args ...interface{}) { Log(Store, format, args...) }

// LogWatch logs file watcher activity
func LogWatch(format string, args ...interface{}) { Log(Watch, format, args...) }

// LogMCP logs MCP tool calls
func LogMCP(format string, args ...interface{}) { Log(MCP, format, args...) }

// Fatal records msg in the debug log, whether or not debugging is on, and
// returns it as an error. Nothing is written in MCP mode.
func Fatal(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	if !MCPMode {
		write("[FATAL] ", "%s", msg)
	}
	return fmt.Errorf("fatal error: %s", msg)
}
