//go:build integration

package browser_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"webtrace/internal/browser"
	"webtrace/internal/capture"
	"webtrace/internal/registry"
)

type memorySink struct {
	writes [][]string
}

func (s *memorySink) Write(testName string, lines []string) error {
	s.writes = append(s.writes, lines)
	return nil
}

func TestCapture_RealBrowser_Integration(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintln(w, "<html><body><h1>Hello World</h1></body></html>")
	}))
	defer ts.Close()

	cfg := browser.DefaultConfig()
	cfg.NavigationTimeoutMs = 10000

	drv := browser.NewDriver(cfg, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defer func() {
		if err := drv.Shutdown(context.Background()); err != nil {
			t.Logf("shutdown error: %v", err)
		}
	}()

	require.NoError(t, drv.Start(ctx), "failed to start browser")

	reg := registry.New()
	snk := &memorySink{}
	lc := capture.New(drv, browser.NewNetworkFeed(nil), reg, snk, nil)

	require.NoError(t, lc.BeforeTest(ctx, t.Name()))

	cur, ok := reg.Current()
	require.True(t, ok, "current session must be available to the test body")

	require.NoError(t, drv.Navigate(ctx, cur, ts.URL))

	// Network delivery is asynchronous; give the feed time to drain before
	// flushing.
	time.Sleep(2 * time.Second)

	lc.AfterTest()

	require.Len(t, snk.writes, 1)
	lines := snk.writes[0]
	require.NotEmpty(t, lines)

	foundRequest := false
	foundResponse := false
	for _, line := range lines {
		if strings.HasPrefix(line, "Request: [Method: GET, URL: "+ts.URL) {
			foundRequest = true
		}
		if strings.HasPrefix(line, "Response: [Status: 200, URL: "+ts.URL) {
			foundResponse = true
		}
	}
	assert.True(t, foundRequest, "expected a request line for %s, got %v", ts.URL, lines)
	assert.True(t, foundResponse, "expected a response line for %s, got %v", ts.URL, lines)
}

func TestDriver_SessionTracking_Integration(t *testing.T) {
	drv := browser.NewDriver(browser.DefaultConfig(), nil)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer func() { _ = drv.Shutdown(context.Background()) }()

	require.NoError(t, drv.Start(ctx))
	require.True(t, drv.IsConnected())
	require.NotEmpty(t, drv.ControlURL())

	h, err := drv.CreateSession(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, h.ID())
	assert.Len(t, drv.List(), 1)

	require.NoError(t, drv.CloseSession(h))
	assert.Empty(t, drv.List())
}
