// Package browser implements the session factory and network event feed on
// top of Chrome DevTools, using rod. It owns the browser process; the
// capture lifecycle only sees opaque handles and channels.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"webtrace/internal/capture"
	"webtrace/internal/registry"
)

// Config holds browser configuration.
type Config struct {
	DebuggerURL         string   `yaml:"debugger_url"`
	Launch              []string `yaml:"launch"`
	Headless            bool     `yaml:"headless"`
	ViewportWidth       int      `yaml:"viewport_width"`
	ViewportHeight      int      `yaml:"viewport_height"`
	NavigationTimeoutMs int      `yaml:"navigation_timeout_ms"`
}

// DefaultConfig returns sensible defaults for test instrumentation.
func DefaultConfig() Config {
	return Config{
		Headless:            true,
		ViewportWidth:       1920,
		ViewportHeight:      1080,
		NavigationTimeoutMs: 30000,
	}
}

// GetViewportWidth returns viewport width.
func (c Config) GetViewportWidth() int {
	if c.ViewportWidth == 0 {
		return 1920
	}
	return c.ViewportWidth
}

// GetViewportHeight returns viewport height.
func (c Config) GetViewportHeight() int {
	if c.ViewportHeight == 0 {
		return 1080
	}
	return c.ViewportHeight
}

// NavigationTimeout returns the navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	if c.NavigationTimeoutMs == 0 {
		return 30 * time.Second
	}
	return time.Duration(c.NavigationTimeoutMs) * time.Millisecond
}

// Session is one live browser page tracked by the driver. It satisfies
// registry.Handle so test code can pull it back out of the session registry.
type Session struct {
	id   string
	page *rod.Page
}

// ID returns the opaque session identifier.
func (s *Session) ID() string { return s.id }

// Page exposes the underlying rod page for test-body interaction.
func (s *Session) Page() *rod.Page { return s.page }

// debugChannel is the devtools channel handed to the capture feed.
type debugChannel struct {
	page *rod.Page
}

// Driver owns the Chrome instance and creates sessions for the capture
// lifecycle. It implements capture.SessionFactory.
type Driver struct {
	cfg Config
	log *zap.Logger

	mu         sync.RWMutex
	browser    *rod.Browser
	sessions   map[string]*Session
	controlURL string
}

// NewDriver creates a driver. A nil logger is replaced with a no-op logger.
func NewDriver(cfg Config, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{
		cfg:      cfg,
		log:      logger,
		sessions: make(map[string]*Session),
	}
}

// Start connects to an existing Chrome or launches a new one.
func (d *Driver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	// If we already have a browser, verify it's still alive.
	if d.browser != nil {
		if _, err := d.browser.Version(); err == nil {
			return nil
		}
		d.log.Warn("stale browser connection, reconnecting")
		_ = d.browser.Close()
		d.browser = nil
		d.controlURL = ""
		d.sessions = make(map[string]*Session)
	}

	controlURL := d.cfg.DebuggerURL
	if controlURL == "" && len(d.cfg.Launch) > 0 {
		bin := d.cfg.Launch[0]
		launch := launcher.New().Bin(bin).Headless(d.cfg.Headless)
		for _, rawFlag := range d.cfg.Launch[1:] {
			flagStr := strings.TrimLeft(rawFlag, "-")
			name, val, hasVal := strings.Cut(flagStr, "=")
			if hasVal {
				launch = launch.Set(flags.Flag(name), val)
			} else {
				launch = launch.Set(flags.Flag(name))
			}
		}
		url, err := launch.Launch()
		if err != nil {
			// Retry without the extra flags before giving up.
			fallback := launcher.New().Bin(bin).Headless(d.cfg.Headless)
			alt, altErr := fallback.Launch()
			if altErr != nil {
				return fmt.Errorf("launch chrome: %w (fallback: %v)", err, altErr)
			}
			controlURL = alt
		} else {
			controlURL = url
		}
	}

	if controlURL == "" {
		url, err := launcher.New().Headless(d.cfg.Headless).Launch()
		if err != nil {
			return fmt.Errorf("no debugger_url and failed to launch: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to chrome: %w", err)
	}

	d.browser = browser
	d.controlURL = controlURL
	d.log.Debug("browser connected", zap.String("control_url", controlURL))
	return nil
}

func (d *Driver) ensureStarted(ctx context.Context) error {
	d.mu.RLock()
	if d.browser != nil {
		d.mu.RUnlock()
		return nil
	}
	d.mu.RUnlock()
	return d.Start(ctx)
}

// ControlURL returns the WebSocket debugger URL.
func (d *Driver) ControlURL() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.controlURL
}

// IsConnected reports whether the browser is connected.
func (d *Driver) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.browser != nil
}

// Shutdown closes tracked pages and the browser.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	for id, s := range d.sessions {
		if s.page != nil {
			_ = s.page.Close()
		}
		delete(d.sessions, id)
	}

	var err error
	if d.browser != nil {
		err = d.browser.Close()
		d.browser = nil
	}
	d.controlURL = ""
	return err
}

// List returns the IDs of all tracked sessions.
func (d *Driver) List() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := make([]string, 0, len(d.sessions))
	for id := range d.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CreateSession opens a fresh incognito page and tracks it.
func (d *Driver) CreateSession(ctx context.Context) (registry.Handle, error) {
	if err := d.ensureStarted(ctx); err != nil {
		return nil, err
	}
	d.mu.RLock()
	browser := d.browser
	d.mu.RUnlock()
	if browser == nil {
		return nil, errors.New("browser not connected")
	}

	incognito, err := browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.GetViewportWidth(),
		Height:            d.cfg.GetViewportHeight(),
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		d.log.Warn("set viewport", zap.Error(err))
	}

	s := &Session{id: uuid.NewString(), page: page}

	d.mu.Lock()
	d.sessions[s.id] = s
	d.mu.Unlock()

	d.log.Debug("session created", zap.String("session", s.id))
	return s, nil
}

// OpenDebugChannel returns the devtools channel for a session.
func (d *Driver) OpenDebugChannel(h registry.Handle) (capture.Channel, error) {
	s, ok := h.(*Session)
	if !ok || s.page == nil {
		return nil, fmt.Errorf("not a browser session: %T", h)
	}
	return &debugChannel{page: s.page}, nil
}

// CloseSession closes the session's page and stops tracking it.
func (d *Driver) CloseSession(h registry.Handle) error {
	s, ok := h.(*Session)
	if !ok {
		return fmt.Errorf("not a browser session: %T", h)
	}

	d.mu.Lock()
	delete(d.sessions, s.id)
	d.mu.Unlock()

	if s.page != nil {
		if err := s.page.Close(); err != nil {
			return fmt.Errorf("close page: %w", err)
		}
	}
	d.log.Debug("session closed", zap.String("session", s.id))
	return nil
}

// Navigate navigates a session to a URL.
func (d *Driver) Navigate(ctx context.Context, h registry.Handle, url string) error {
	s, ok := h.(*Session)
	if !ok || s.page == nil {
		return fmt.Errorf("not a browser session: %T", h)
	}
	return s.page.Context(ctx).Timeout(d.cfg.NavigationTimeout()).Navigate(url)
}

// Click clicks an element in a session.
func (d *Driver) Click(ctx context.Context, h registry.Handle, selector string) error {
	s, ok := h.(*Session)
	if !ok || s.page == nil {
		return fmt.Errorf("not a browser session: %T", h)
	}
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

// Type types text into an element in a session.
func (d *Driver) Type(ctx context.Context, h registry.Handle, selector, text string) error {
	s, ok := h.(*Session)
	if !ok || s.page == nil {
		return fmt.Errorf("not a browser session: %T", h)
	}
	el, err := s.page.Context(ctx).Element(selector)
	if err != nil {
		return fmt.Errorf("element not found: %w", err)
	}
	return el.Input(text)
}
