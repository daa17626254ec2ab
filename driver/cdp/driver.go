package cdp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/dom"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/cdproto/tracing"
	"github.com/tidwall/gjson"

	"go.beacon.dev/beacon/driver"
	"go.beacon.dev/beacon/lib"
	"go.beacon.dev/beacon/log"
)

// Ensure Driver implements the page driver contract.
var _ driver.PageDriver = &Driver{}

// Trace categories captured by default.
var defaultTraceCategories = []string{
	"blink.user_timing",
	"devtools.timeline",
	"disabled-by-default-devtools.timeline",
	"loading",
}

const tracingFlushTimeout = 10 * time.Second

// Driver drives one page target over the DevTools protocol. It is the
// concrete PageDriver the flow session binds to. The browser process itself
// is owned by the caller; Close releases the connection, not the browser.
type Driver struct {
	conn     *Connection
	session  *Session
	logger   *log.Logger
	targetID target.ID

	done      chan struct{}
	closeOnce sync.Once

	mu sync.Mutex
	// Page watcher state, kept current by the event pump.
	url             string
	lastLoad        time.Time
	consumedLoad    time.Time
	inflight        map[network.RequestID]struct{}
	lastNetActivity time.Time
	signal          chan struct{}

	// Capture state, only populated between Start- and StopInstrumentation.
	capturing       bool
	traceOn         bool
	captureStart    time.Time
	traceEvents     []driver.TraceEvent
	dataLoss        bool
	tracingComplete chan struct{}
	requests        map[network.RequestID]*driver.Request
	order           []network.RequestID
}

// New dials the devtools websocket endpoint, attaches to a page target
// (creating a blank one if the browser has none) and applies the emulation
// settings from opts for the lifetime of the driver.
func New(ctx context.Context, wsURL string, opts lib.Options, logger *log.Logger) (*Driver, error) {
	if logger == nil {
		logger = log.NewNullLogger()
	}
	conn, err := NewConnection(ctx, wsURL, logger)
	if err != nil {
		return nil, err
	}

	d := &Driver{
		conn:     conn,
		logger:   logger,
		done:     make(chan struct{}),
		inflight: make(map[network.RequestID]struct{}),
		signal:   make(chan struct{}),
	}

	if err := d.attach(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := d.enableDomains(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	if err := d.applyEmulation(ctx, opts); err != nil {
		_ = conn.Close()
		return nil, err
	}

	go d.pump()
	go func() {
		<-conn.Done()
		d.shutdown()
	}()
	return d, nil
}

func (d *Driver) attach(ctx context.Context) error {
	infos, err := target.GetTargets().Do(cdp.WithExecutor(ctx, d.conn))
	if err != nil {
		return fmt.Errorf("listing targets: %w", err)
	}
	for _, info := range infos {
		if info.Type == "page" {
			d.targetID = info.TargetID
			d.url = info.URL
			break
		}
	}
	if d.targetID == "" {
		id, err := target.CreateTarget("about:blank").Do(cdp.WithExecutor(ctx, d.conn))
		if err != nil {
			return fmt.Errorf("creating page target: %w", err)
		}
		d.targetID = id
	}

	session, err := d.conn.AttachToTarget(ctx, d.targetID)
	if err != nil {
		return err
	}
	d.session = session
	return nil
}

func (d *Driver) enableDomains(ctx context.Context) error {
	ectx := d.execCtx(ctx)
	if err := page.Enable().Do(ectx); err != nil {
		return fmt.Errorf("enabling page domain: %w", err)
	}
	if err := page.SetLifecycleEventsEnabled(true).Do(ectx); err != nil {
		return fmt.Errorf("enabling lifecycle events: %w", err)
	}
	if err := network.Enable().Do(ectx); err != nil {
		return fmt.Errorf("enabling network domain: %w", err)
	}
	if err := inspector.Enable().Do(ectx); err != nil {
		return fmt.Errorf("enabling inspector domain: %w", err)
	}
	return nil
}

func (d *Driver) applyEmulation(ctx context.Context, opts lib.Options) error {
	ectx := d.execCtx(ctx)
	if opts.UserAgent.Valid {
		if err := emulation.SetUserAgentOverride(opts.UserAgent.String).Do(ectx); err != nil {
			return fmt.Errorf("setting user agent: %w", err)
		}
	}
	if dev := opts.Device; dev != nil {
		action := emulation.SetDeviceMetricsOverride(dev.Width, dev.Height, dev.DeviceScaleFactor, dev.Mobile)
		if err := action.Do(ectx); err != nil {
			return fmt.Errorf("setting device metrics: %w", err)
		}
	}
	if opts.CPUThrottlingRate.Valid {
		if err := emulation.SetCPUThrottlingRate(opts.CPUThrottlingRate.Float64).Do(ectx); err != nil {
			return fmt.Errorf("setting cpu throttling: %w", err)
		}
	}
	if opts.ThrottlingProfile.Valid {
		profile := lib.GetNetworkProfiles()[opts.ThrottlingProfile.String]
		action := network.EmulateNetworkConditions(false, profile.Latency, profile.Download, profile.Upload)
		if err := action.Do(ectx); err != nil {
			return fmt.Errorf("throttling network: %w", err)
		}
	}
	return nil
}

func (d *Driver) execCtx(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, d.session)
}

// Done is closed when the page or transport becomes unavailable.
func (d *Driver) Done() <-chan struct{} { return d.done }

// Close releases the page session and the websocket connection.
func (d *Driver) Close() error {
	d.shutdown()
	return nil
}

func (d *Driver) shutdown() {
	d.closeOnce.Do(func() {
		close(d.done)
		_ = d.conn.Close()
	})
}

// NavigateTo requests a load of the given URL.
func (d *Driver) NavigateTo(ctx context.Context, url string) error {
	_, _, errorText, err := page.Navigate(url).Do(d.execCtx(ctx))
	if err != nil {
		return err
	}
	if errorText != "" {
		return fmt.Errorf("navigation to %q failed: %s", url, errorText)
	}
	return nil
}

// WaitForNavigation blocks until an unconsumed load event is followed by a
// network-idle quiet period.
func (d *Driver) WaitForNavigation(ctx context.Context, idleWait time.Duration) (*driver.NavigationInfo, error) {
	for {
		d.mu.Lock()
		loadAt := d.lastLoad
		loaded := loadAt.After(d.consumedLoad)
		inflight := len(d.inflight)
		quietSince := d.lastNetActivity
		if quietSince.Before(loadAt) {
			quietSince = loadAt
		}
		url := d.url
		sig := d.signal
		d.mu.Unlock()

		if loaded && inflight == 0 {
			quiet := time.Since(quietSince)
			if quiet >= idleWait {
				d.mu.Lock()
				d.consumedLoad = loadAt
				d.mu.Unlock()
				return &driver.NavigationInfo{
					URL:            url,
					LoadedAt:       loadAt,
					NetworkIdleAt:  time.Now(),
					FrameNavigated: true,
				}, nil
			}
			timer := time.NewTimer(idleWait - quiet)
			select {
			case <-timer.C:
			case <-sig:
				timer.Stop()
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-d.done:
				timer.Stop()
				return nil, driver.ErrClosed
			}
			continue
		}

		select {
		case <-sig:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-d.done:
			return nil, driver.ErrClosed
		}
	}
}

// StartInstrumentation begins trace and/or network capture.
func (d *Driver) StartInstrumentation(ctx context.Context, opts driver.InstrumentationOptions) error {
	d.mu.Lock()
	if d.capturing {
		d.mu.Unlock()
		return errors.New("instrumentation already active")
	}
	d.capturing = true
	d.traceOn = opts.Trace
	d.captureStart = time.Now()
	d.traceEvents = nil
	d.dataLoss = false
	d.tracingComplete = make(chan struct{})
	d.requests = nil
	d.order = nil
	if opts.Network {
		d.requests = make(map[network.RequestID]*driver.Request)
	}
	// Loads observed before this point belong to earlier steps.
	d.consumedLoad = d.lastLoad
	d.mu.Unlock()

	if opts.Trace {
		categories := append(append([]string{}, defaultTraceCategories...), opts.TraceCategories...)
		action := tracing.Start().WithTraceConfig(&tracing.TraceConfig{
			IncludedCategories: categories,
		})
		if err := action.Do(d.execCtx(ctx)); err != nil {
			d.mu.Lock()
			d.capturing = false
			d.mu.Unlock()
			return fmt.Errorf("starting trace: %w", err)
		}
	}
	return nil
}

// StopInstrumentation finalizes the capture and returns its artifacts.
func (d *Driver) StopInstrumentation(ctx context.Context) (*driver.Artifacts, error) {
	d.mu.Lock()
	if !d.capturing {
		d.mu.Unlock()
		return nil, errors.New("no instrumentation active")
	}
	traceOn := d.traceOn
	complete := d.tracingComplete
	d.mu.Unlock()

	if traceOn {
		if err := tracing.End().Do(d.execCtx(ctx)); err != nil {
			d.logger.Warnf("cdp:trace", "ending trace: %v", err)
		} else {
			select {
			case <-complete:
			case <-time.After(tracingFlushTimeout):
				d.logger.Warnf("cdp:trace", "trace flush timed out")
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-d.done:
				return nil, driver.ErrClosed
			}
		}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	art := &driver.Artifacts{
		StartedAt:   d.captureStart,
		StoppedAt:   time.Now(),
		TraceEvents: d.traceEvents,
		DataLoss:    d.dataLoss,
	}
	if d.requests != nil {
		art.Requests = make([]driver.Request, 0, len(d.order))
		mainSeen := false
		for _, id := range d.order {
			req := d.requests[id]
			if !mainSeen && req.ResourceType == "Document" {
				req.MainDocument = true
				mainSeen = true
			}
			art.Requests = append(art.Requests, *req)
		}
	}
	d.capturing = false
	d.traceOn = false
	d.traceEvents = nil
	d.requests = nil
	d.order = nil
	return art, nil
}

// CaptureSnapshot returns the page's current DOM tree.
func (d *Driver) CaptureSnapshot(ctx context.Context) (*driver.DOMSnapshot, error) {
	root, err := dom.GetDocument().WithDepth(-1).WithPierce(true).Do(d.execCtx(ctx))
	if err != nil {
		return nil, fmt.Errorf("capturing document: %w", err)
	}
	snap := &driver.DOMSnapshot{
		URL:        root.DocumentURL,
		CapturedAt: time.Now(),
		Root:       convertNode(root),
	}
	snap.Title = documentTitle(snap.Root)
	if snap.URL == "" {
		if url, err := d.URL(ctx); err == nil {
			snap.URL = url
		}
	}
	return snap, nil
}

// URL reports the page's current URL.
func (d *Driver) URL(ctx context.Context) (string, error) {
	d.mu.Lock()
	url := d.url
	d.mu.Unlock()
	if url != "" {
		return url, nil
	}

	raw, err := d.Evaluate(ctx, "window.location.href")
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(raw, &url); err != nil {
		return "", fmt.Errorf("decoding page url: %w", err)
	}
	return url, nil
}

// Evaluate runs a JavaScript expression on the page and returns its JSON
// value. It backs the interaction primitives caller callbacks use.
func (d *Driver) Evaluate(ctx context.Context, expression string) (json.RawMessage, error) {
	obj, exc, err := runtime.Evaluate(expression).WithReturnByValue(true).Do(d.execCtx(ctx))
	if err != nil {
		return nil, err
	}
	if exc != nil {
		return nil, fmt.Errorf("evaluation threw: %s", exc.Text)
	}
	if obj == nil {
		return nil, nil
	}
	return json.RawMessage(obj.Value), nil
}

// Click dispatches a click on the first element matching the selector.
func (d *Driver) Click(ctx context.Context, selector string) error {
	sel, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) throw new Error("no element matches selector");
		el.click();
		return true;
	})()`, sel)
	_, err = d.Evaluate(ctx, expr)
	return err
}

// Type sets the value of the first element matching the selector and fires
// an input event, the way a user typing would.
func (d *Driver) Type(ctx context.Context, selector, text string) error {
	sel, err := json.Marshal(selector)
	if err != nil {
		return err
	}
	val, err := json.Marshal(text)
	if err != nil {
		return err
	}
	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) throw new Error("no element matches selector");
		el.value = %s;
		el.dispatchEvent(new Event("input", {bubbles: true}));
		return true;
	})()`, sel, val)
	_, err = d.Evaluate(ctx, expr)
	return err
}

// pump consumes protocol events, keeping the page watcher current and
// accumulating capture artifacts while instrumentation is active.
func (d *Driver) pump() {
	sub := d.session.Subscribe(
		cdproto.EventPageLoadEventFired,
		cdproto.EventPageFrameNavigated,
		cdproto.EventNetworkRequestWillBeSent,
		cdproto.EventNetworkResponseReceived,
		cdproto.EventNetworkLoadingFinished,
		cdproto.EventNetworkLoadingFailed,
		cdproto.EventTracingDataCollected,
		cdproto.EventTracingTracingComplete,
		cdproto.EventInspectorTargetCrashed,
	)
	defer sub.Cancel()

	for {
		select {
		case ev := <-sub.C:
			d.handleEvent(ev)
		case <-d.session.Done():
			d.shutdown()
			return
		case <-d.done:
			return
		}
	}
}

func (d *Driver) handleEvent(ev *Event) {
	d.mu.Lock()
	defer func() {
		// Wake anyone waiting on watcher state.
		close(d.signal)
		d.signal = make(chan struct{})
		d.mu.Unlock()
	}()

	now := time.Now()
	switch data := ev.Data.(type) {
	case *page.EventLoadEventFired:
		d.lastLoad = now

	case *page.EventFrameNavigated:
		if data.Frame != nil && data.Frame.ParentID == "" {
			d.url = data.Frame.URL
		}

	case *network.EventRequestWillBeSent:
		d.inflight[data.RequestID] = struct{}{}
		d.lastNetActivity = now
		if d.requests != nil {
			req := &driver.Request{
				RequestID:    string(data.RequestID),
				ResourceType: string(data.Type),
				StartedAt:    now,
			}
			if data.Request != nil {
				req.URL = data.Request.URL
				req.Method = data.Request.Method
			}
			if _, seen := d.requests[data.RequestID]; !seen {
				d.order = append(d.order, data.RequestID)
			}
			d.requests[data.RequestID] = req
		}

	case *network.EventResponseReceived:
		d.lastNetActivity = now
		if req := d.trackedRequest(data.RequestID); req != nil && data.Response != nil {
			req.Status = data.Response.Status
			req.MimeType = data.Response.MimeType
			req.ResponseAt = now
		}

	case *network.EventLoadingFinished:
		delete(d.inflight, data.RequestID)
		d.lastNetActivity = now
		if req := d.trackedRequest(data.RequestID); req != nil {
			req.FinishedAt = now
			req.EncodedSize = int64(data.EncodedDataLength)
		}

	case *network.EventLoadingFailed:
		delete(d.inflight, data.RequestID)
		d.lastNetActivity = now
		if req := d.trackedRequest(data.RequestID); req != nil {
			req.FinishedAt = now
			req.Failed = true
			req.ErrorText = data.ErrorText
		}

	case *tracing.EventDataCollected:
		if d.capturing && d.traceOn {
			for _, raw := range data.Value {
				d.traceEvents = append(d.traceEvents, parseTraceEvent(raw))
			}
		}

	case *tracing.EventTracingComplete:
		d.dataLoss = data.DataLossOccurred
		select {
		case <-d.tracingComplete:
		default:
			if d.tracingComplete != nil {
				close(d.tracingComplete)
			}
		}

	case *inspector.EventTargetCrashed:
		d.logger.Errorf("cdp", "page target crashed")
		go d.shutdown()
	}
}

func (d *Driver) trackedRequest(id network.RequestID) *driver.Request {
	if d.requests == nil {
		return nil
	}
	return d.requests[id]
}

func convertNode(n *cdp.Node) *driver.DOMNode {
	if n == nil {
		return nil
	}
	out := &driver.DOMNode{
		NodeType:  int64(n.NodeType),
		NodeName:  n.NodeName,
		NodeValue: n.NodeValue,
	}
	if len(n.Attributes) >= 2 {
		out.Attributes = make(map[string]string, len(n.Attributes)/2)
		for i := 0; i+1 < len(n.Attributes); i += 2 {
			out.Attributes[n.Attributes[i]] = n.Attributes[i+1]
		}
	}
	for _, c := range n.Children {
		out.Children = append(out.Children, convertNode(c))
	}
	return out
}

func documentTitle(root *driver.DOMNode) string {
	title := ""
	root.Walk(func(n *driver.DOMNode, _ int) {
		if title != "" || n.NodeName != "TITLE" {
			return
		}
		for _, c := range n.Children {
			if c.NodeValue != "" {
				title = c.NodeValue
				return
			}
		}
	})
	return title
}

// parseTraceEvent extracts the fields the trace processor needs from one raw
// trace entry; the args payload stays raw for gjson to pick at later.
func parseTraceEvent(raw []byte) driver.TraceEvent {
	return driver.TraceEvent{
		Name:      gjson.GetBytes(raw, "name").String(),
		Category:  gjson.GetBytes(raw, "cat").String(),
		Phase:     gjson.GetBytes(raw, "ph").String(),
		Timestamp: gjson.GetBytes(raw, "ts").Int(),
		Duration:  gjson.GetBytes(raw, "dur").Int(),
		ProcessID: gjson.GetBytes(raw, "pid").Int(),
		ThreadID:  gjson.GetBytes(raw, "tid").Int(),
		Args:      []byte(gjson.GetBytes(raw, "args").Raw),
	}
}
