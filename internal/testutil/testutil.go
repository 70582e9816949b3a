// Package testutil provides shared test helpers.
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/playspace-mover/internal/monitoring"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// DecodeJSON decodes body into v or fails the test.
func DecodeJSON(t testing.TB, body io.Reader, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

// LogCapture collects lines written through monitoring.Logf.
type LogCapture struct {
	mu    sync.Mutex
	lines []string
}

// CaptureLogs redirects monitoring.Logf into a LogCapture until the test
// ends.
func CaptureLogs(t testing.TB) *LogCapture {
	t.Helper()
	c := &LogCapture{}
	monitoring.SetLogger(func(format string, v ...interface{}) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.lines = append(c.lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(log.Printf) })
	return c
}

// Lines returns a copy of the captured lines.
func (c *LogCapture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

// Contains reports whether any captured line contains substr.
func (c *LogCapture) Contains(substr string) bool {
	for _, l := range c.Lines() {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}
