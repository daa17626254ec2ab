// Package driver defines the narrow page-driver contract the flow engine
// consumes, plus the instrumentation artifacts a driver can produce. A
// concrete Chrome DevTools Protocol implementation lives in driver/cdp.
package driver

import (
	"context"
	"time"
)

// A Target describes what a navigation step should do: either load a URL, or
// run a caller-supplied callback that is expected to trigger a navigation as
// a side effect (clicking a link, submitting a form).
type Target struct {
	URL      string
	Callback func(ctx context.Context) error
}

// URLTarget returns a Target that loads the given URL.
func URLTarget(url string) Target {
	return Target{URL: url}
}

// CallbackTarget returns a Target driven by a caller-supplied callback.
// Callback-triggered navigations cannot guarantee storage-clearing
// preconditions the way URL targets can; that is an accepted limitation.
func CallbackTarget(fn func(ctx context.Context) error) Target {
	return Target{Callback: fn}
}

// InstrumentationOptions selects which artifacts a capture gathers.
type InstrumentationOptions struct {
	Trace   bool
	Network bool

	// Extra trace categories on top of the driver defaults.
	TraceCategories []string
}

// A PageDriver is the flow engine's handle on one exclusively-owned browser
// page. Implementations are not safe for concurrent use; the session
// serializes all calls.
type PageDriver interface {
	// NavigateTo requests a load of the given URL. It returns once the
	// navigation is accepted by the page, not once it settles; settling is
	// observed via WaitForNavigation.
	NavigateTo(ctx context.Context, url string) error

	// WaitForNavigation blocks until the current or next navigation reaches
	// the load event followed by a network-idle quiet period, or ctx is done.
	WaitForNavigation(ctx context.Context, idleWait time.Duration) (*NavigationInfo, error)

	// StartInstrumentation begins trace and/or network capture.
	StartInstrumentation(ctx context.Context, opts InstrumentationOptions) error

	// StopInstrumentation finalizes the capture started by
	// StartInstrumentation and returns the gathered artifacts.
	StopInstrumentation(ctx context.Context) (*Artifacts, error)

	// CaptureSnapshot returns the page's current DOM state.
	CaptureSnapshot(ctx context.Context) (*DOMSnapshot, error)

	// URL reports the page's current URL.
	URL(ctx context.Context) (string, error)

	// Done is closed when the driver becomes unavailable (tab crash,
	// connection loss, Close). Any capture in progress is lost.
	Done() <-chan struct{}

	// Close releases the page and the underlying transport.
	Close() error
}

// NavigationInfo describes one settled navigation.
type NavigationInfo struct {
	URL            string    `json:"url"`
	LoadedAt       time.Time `json:"loadedAt"`
	NetworkIdleAt  time.Time `json:"networkIdleAt"`
	FrameNavigated bool      `json:"frameNavigated"`
}

// Artifacts is the raw instrumentation output of one capture interval.
type Artifacts struct {
	StartedAt   time.Time    `json:"startedAt"`
	StoppedAt   time.Time    `json:"stoppedAt"`
	TraceEvents []TraceEvent `json:"traceEvents,omitempty"`
	Requests    []Request    `json:"requests,omitempty"`

	// DataLoss is set when the browser reported dropped trace data.
	DataLoss bool `json:"dataLoss,omitempty"`
}

// A TraceEvent is one entry of the browser trace, in the trace-event format.
// Timestamps and durations are microseconds on the trace clock.
type TraceEvent struct {
	Name      string `json:"name"`
	Category  string `json:"cat"`
	Phase     string `json:"ph"`
	Timestamp int64  `json:"ts"`
	Duration  int64  `json:"dur,omitempty"`
	ProcessID int64  `json:"pid,omitempty"`
	ThreadID  int64  `json:"tid,omitempty"`

	// Args carries the raw, event-specific payload.
	Args []byte `json:"args,omitempty"`
}

// A Request is one entry of the network log.
type Request struct {
	RequestID    string    `json:"requestId"`
	URL          string    `json:"url"`
	Method       string    `json:"method"`
	ResourceType string    `json:"resourceType,omitempty"`
	Status       int64     `json:"status,omitempty"`
	MimeType     string    `json:"mimeType,omitempty"`
	EncodedSize  int64     `json:"encodedSize,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
	ResponseAt   time.Time `json:"responseAt,omitempty"`
	FinishedAt   time.Time `json:"finishedAt,omitempty"`
	Failed       bool      `json:"failed,omitempty"`
	ErrorText    string    `json:"errorText,omitempty"`

	// MainDocument marks the request that produced the page's document.
	MainDocument bool `json:"mainDocument,omitempty"`
}

// DOMSnapshot is an instantaneous capture of the page's DOM state.
type DOMSnapshot struct {
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	CapturedAt time.Time `json:"capturedAt"`
	Root       *DOMNode  `json:"root"`
}

// A DOMNode is one node of a captured DOM tree.
type DOMNode struct {
	NodeType   int64             `json:"nodeType"`
	NodeName   string            `json:"nodeName"`
	NodeValue  string            `json:"nodeValue,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Children   []*DOMNode        `json:"children,omitempty"`
}

// Walk calls fn for every node of the subtree rooted at n, depth first. The
// depth of n itself is 0.
func (n *DOMNode) Walk(fn func(node *DOMNode, depth int)) {
	if n == nil {
		return
	}
	var walk func(node *DOMNode, depth int)
	walk = func(node *DOMNode, depth int) {
		fn(node, depth)
		for _, c := range node.Children {
			walk(c, depth+1)
		}
	}
	walk(n, 0)
}
