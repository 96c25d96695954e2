// Package capture brackets one test execution with browser session
// setup/teardown and records the network activity the test provokes. The
// recorded events are flushed to a sink exactly once per test, on every exit
// path.
package capture

import "fmt"

// Event is one recorded network notification. Events are immutable once
// recorded; Line renders the human-readable log form.
type Event interface {
	Line() string
}

// RequestEvent records one outgoing request notification.
type RequestEvent struct {
	Method string
	URL    string
}

func (e RequestEvent) Line() string {
	return fmt.Sprintf("Request: [Method: %s, URL: %s]", e.Method, e.URL)
}

// ResponseEvent records one response notification.
type ResponseEvent struct {
	Status      int
	URL         string
	ContentType string
}

func (e ResponseEvent) Line() string {
	return fmt.Sprintf("Response: [Status: %d, URL: %s, Content-Type: %s]", e.Status, e.URL, e.ContentType)
}

// Request is the structured payload delivered by the feed for an outgoing
// request.
type Request struct {
	Method string
	URL    string
}

// Response is the structured payload delivered by the feed for a received
// response.
type Response struct {
	Status      int
	URL         string
	ContentType string
}
