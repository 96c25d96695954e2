package browser

import (
	"fmt"

	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"webtrace/internal/capture"
)

// NetworkFeed subscribes to CDP network notifications on a debug channel.
// It implements capture.Feed; rod delivers the events from its own
// goroutines, so the registered callbacks must be append-only.
type NetworkFeed struct {
	log *zap.Logger
}

// NewNetworkFeed creates a feed. A nil logger is replaced with a no-op
// logger.
func NewNetworkFeed(logger *zap.Logger) *NetworkFeed {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NetworkFeed{log: logger}
}

func channelPage(ch capture.Channel) (*debugChannel, error) {
	dc, ok := ch.(*debugChannel)
	if !ok || dc.page == nil {
		return nil, fmt.Errorf("not a devtools channel: %T", ch)
	}
	return dc, nil
}

// Enable turns on network-domain notifications for the channel's page.
func (f *NetworkFeed) Enable(ch capture.Channel) error {
	dc, err := channelPage(ch)
	if err != nil {
		return err
	}
	if err := (proto.NetworkEnable{}).Call(dc.page); err != nil {
		return fmt.Errorf("enable network domain: %w", err)
	}
	return nil
}

// OnRequest invokes fn for every outgoing-request notification. The
// subscription lives until the page closes.
func (f *NetworkFeed) OnRequest(ch capture.Channel, fn func(capture.Request)) error {
	dc, err := channelPage(ch)
	if err != nil {
		return err
	}
	wait := dc.page.EachEvent(func(ev *proto.NetworkRequestWillBeSent) {
		fn(capture.Request{
			Method: ev.Request.Method,
			URL:    ev.Request.URL,
		})
	})
	go wait()
	return nil
}

// OnResponse invokes fn for every response notification.
func (f *NetworkFeed) OnResponse(ch capture.Channel, fn func(capture.Response)) error {
	dc, err := channelPage(ch)
	if err != nil {
		return err
	}
	wait := dc.page.EachEvent(func(ev *proto.NetworkResponseReceived) {
		fn(capture.Response{
			Status:      ev.Response.Status,
			URL:         ev.Response.URL,
			ContentType: ev.Response.MIMEType,
		})
	})
	go wait()
	return nil
}
