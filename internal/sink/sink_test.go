package sink

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFileSink_WritesOneFilePerExecution(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	s := NewFileSink(dir)
	s.now = func() time.Time {
		return time.Date(2026, 8, 29, 14, 30, 5, 0, time.UTC)
	}

	lines := []string{
		"Request: [Method: GET, URL: https://x/]",
		"Response: [Status: 200, URL: https://x/, Content-Type: text/html]",
	}
	require.NoError(t, s.Write("TestExample", lines))

	path := filepath.Join(dir, "TestExample_2026-08-29_14-30-05.log")
	data, err := os.ReadFile(path)
	require.NoError(t, err, "log directory must be created on demand")
	assert.Equal(t,
		"Request: [Method: GET, URL: https://x/]\nResponse: [Status: 200, URL: https://x/, Content-Type: text/html]\n",
		string(data))
}

func TestFileSink_SanitizesSubtestNames(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)
	s.now = func() time.Time {
		return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	}

	require.NoError(t, s.Write("TestGroup/sub case", []string{"line"}))

	_, err := os.Stat(filepath.Join(dir, "TestGroup-sub-case_2026-08-29_09-00-00.log"))
	assert.NoError(t, err)
}

func TestFileSink_EmptyTestName(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSink(dir)
	s.now = func() time.Time {
		return time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	}

	require.NoError(t, s.Write("", []string{"line"}))

	_, err := os.Stat(filepath.Join(dir, "unknown-test_2026-08-29_09-00-00.log"))
	assert.NoError(t, err)
}

func TestFileSink_BadDirectory(t *testing.T) {
	// A file where the directory should be makes MkdirAll fail.
	base := t.TempDir()
	blocker := filepath.Join(base, "blocked")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	s := NewFileSink(filepath.Join(blocker, "logs"))
	assert.Error(t, s.Write("TestX", []string{"line"}))
}

func TestConsoleSink_PrefixesTestName(t *testing.T) {
	var buf bytes.Buffer
	s := NewConsoleSink(&buf)

	require.NoError(t, s.Write("TestExample", []string{
		"Request: [Method: GET, URL: https://x/]",
		"No network requests were intercepted.",
	}))

	assert.Equal(t,
		"[TestExample] Request: [Method: GET, URL: https://x/]\n[TestExample] No network requests were intercepted.\n",
		buf.String())
}

func TestLogSink_EmitsStructuredEntries(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := NewLogSink(zap.New(core))

	require.NoError(t, s.Write("TestExample", []string{"line one", "line two"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "line one", entries[0].Message)
	assert.Equal(t, "TestExample", entries[0].ContextMap()["test"])
	assert.Equal(t, "line two", entries[1].Message)
}
