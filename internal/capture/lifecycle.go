package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"webtrace/internal/registry"
	"webtrace/internal/sink"
)

// ErrSessionInit is returned when session creation, channel open, or feed
// listener registration fails. It is fatal to the test execution it occurs
// in.
var ErrSessionInit = errors.New("capture: session initialization failed")

// NoActivityMarker is written instead of an empty log when a test provoked
// no network traffic.
const NoActivityMarker = "No network requests were intercepted."

// Channel is an opaque debugging-protocol channel opened against a session.
type Channel interface{}

// SessionFactory creates and tears down browser sessions. Its internals
// (browser process management) are outside this package.
type SessionFactory interface {
	CreateSession(ctx context.Context) (registry.Handle, error)
	OpenDebugChannel(h registry.Handle) (Channel, error)
	CloseSession(h registry.Handle) error
}

// Feed is the push-based source of network notifications. Callbacks are
// invoked from the feed's own goroutines.
type Feed interface {
	Enable(ch Channel) error
	OnRequest(ch Channel, fn func(Request)) error
	OnResponse(ch Channel, fn func(Response)) error
}

// State tracks one test execution through the lifecycle.
type State int

const (
	StateIdle State = iota
	StateSessionStarting
	StateCapturing
	StateFlushing
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSessionStarting:
		return "session-starting"
	case StateCapturing:
		return "capturing"
	case StateFlushing:
		return "flushing"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Lifecycle wraps one test execution: session creation, registry
// registration, network capture, and a flush that runs exactly once on
// every exit path. One Lifecycle instance serves one test execution.
type Lifecycle struct {
	factory SessionFactory
	feed    Feed
	reg     *registry.Registry
	sink    sink.Sink
	log     *zap.Logger

	mu       sync.Mutex
	state    State
	buf      *Buffer
	session  registry.Handle
	channel  Channel
	testName string
}

// New returns a lifecycle ready for one test execution. A nil logger is
// replaced with a no-op logger.
func New(factory SessionFactory, feed Feed, reg *registry.Registry, s sink.Sink, logger *zap.Logger) *Lifecycle {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Lifecycle{
		factory: factory,
		feed:    feed,
		reg:     reg,
		sink:    s,
		log:     logger,
		state:   StateIdle,
		buf:     NewBuffer(),
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// BeforeTest creates the browser session, publishes it as the current
// session in the registry (and under the test's name), opens the debug
// channel, and registers the network listeners. Any failure here is fatal
// to the test and surfaces as ErrSessionInit.
func (l *Lifecycle) BeforeTest(ctx context.Context, testName string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateIdle {
		return fmt.Errorf("capture: BeforeTest in state %s, lifecycle instances are single-use", l.state)
	}
	l.state = StateSessionStarting
	l.testName = testName

	h, err := l.factory.CreateSession(ctx)
	if err != nil {
		l.state = StateTerminated
		return fmt.Errorf("%w: create session: %v", ErrSessionInit, err)
	}
	if h == nil {
		l.state = StateTerminated
		return fmt.Errorf("%w: factory returned no handle", ErrSessionInit)
	}
	l.session = h

	l.reg.SetCurrent(h)
	if testName != "" {
		if err := l.reg.Put(testName, h); err != nil {
			l.failInitLocked()
			return fmt.Errorf("%w: register session: %v", ErrSessionInit, err)
		}
	}

	ch, err := l.factory.OpenDebugChannel(h)
	if err != nil {
		l.failInitLocked()
		return fmt.Errorf("%w: open debug channel: %v", ErrSessionInit, err)
	}
	l.channel = ch

	if err := l.feed.Enable(ch); err != nil {
		l.failInitLocked()
		return fmt.Errorf("%w: enable network feed: %v", ErrSessionInit, err)
	}

	buf := l.buf
	if err := l.feed.OnRequest(ch, func(q Request) {
		buf.Append(RequestEvent{Method: q.Method, URL: q.URL})
	}); err != nil {
		l.failInitLocked()
		return fmt.Errorf("%w: register request listener: %v", ErrSessionInit, err)
	}
	if err := l.feed.OnResponse(ch, func(p Response) {
		buf.Append(ResponseEvent{Status: p.Status, URL: p.URL, ContentType: p.ContentType})
	}); err != nil {
		l.failInitLocked()
		return fmt.Errorf("%w: register response listener: %v", ErrSessionInit, err)
	}

	l.state = StateCapturing
	l.log.Debug("network capture started", zap.String("test", testName), zap.String("session", h.ID()))
	return nil
}

// failInitLocked tears down a partially initialized session after a setup
// failure. Caller holds l.mu.
func (l *Lifecycle) failInitLocked() {
	if l.session != nil {
		if err := l.factory.CloseSession(l.session); err != nil {
			l.log.Warn("close session after failed init", zap.Error(err))
		}
	}
	l.unregisterLocked()
	l.session = nil
	l.channel = nil
	l.state = StateTerminated
}

// AfterTest flushes the captured events and tears the session down. It is
// the normal-completion terminal hook; if the exception hook already ran,
// it does nothing.
func (l *Lifecycle) AfterTest() {
	l.flushAndTeardown()
}

// OnTestError flushes and tears down exactly like AfterTest, then returns
// err unchanged so the runner still observes the real failure.
func (l *Lifecycle) OnTestError(err error) error {
	l.flushAndTeardown()
	return err
}

// flushAndTeardown drains the buffer to the sink and closes the session.
// The state guard makes it a no-op on any call after the first terminal
// hook.
func (l *Lifecycle) flushAndTeardown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateCapturing {
		return
	}
	l.state = StateFlushing

	events := l.buf.Drain()
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, e.Line())
	}
	if len(lines) == 0 {
		lines = []string{NoActivityMarker}
	}

	// Sink failure degrades to a log entry; it must not affect the test
	// outcome or prevent teardown.
	if err := l.sink.Write(l.testName, lines); err != nil {
		l.log.Error("flush network log", zap.String("test", l.testName), zap.Error(err))
	}

	if l.session != nil {
		if err := l.factory.CloseSession(l.session); err != nil {
			l.log.Warn("close session", zap.String("session", l.session.ID()), zap.Error(err))
		}
	}
	l.unregisterLocked()
	l.session = nil
	l.channel = nil
	l.state = StateTerminated
	l.log.Debug("network capture finished", zap.String("test", l.testName), zap.Int("events", len(events)))
}

// unregisterLocked removes this execution's registry entries. Caller holds
// l.mu.
func (l *Lifecycle) unregisterLocked() {
	l.reg.ClearCurrent()
	if l.testName != "" {
		_ = l.reg.Remove(l.testName)
	}
}
