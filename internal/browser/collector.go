// internal/browser/collector.go
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/log"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/xkilldash9x/vibeloop/api/schemas"
)

// Collector listens to a tab's CDP events. It keeps the console transcript in
// emission order and tracks in-flight requests so a caller can wait for the
// network to go quiet.
type Collector struct {
	logger *zap.Logger

	mu          sync.RWMutex
	inflight    map[network.RequestID]bool
	consoleLogs []schemas.ConsoleLog
	// lastActivity is when a request last started or finished.
	lastActivity time.Time

	now func() time.Time
}

// NewCollector creates an empty collector.
func NewCollector(logger *zap.Logger) *Collector {
	return &Collector{
		logger:       logger.Named("collector"),
		inflight:     make(map[network.RequestID]bool),
		consoleLogs:  make([]schemas.ConsoleLog, 0),
		lastActivity: time.Now(),
		now:          time.Now,
	}
}

// Attach registers the collector on the tab behind ctx. It must be called
// before navigation so nothing the page logs while loading is missed. The
// listener lives as long as ctx.
func (c *Collector) Attach(ctx context.Context) {
	chromedp.ListenTarget(ctx, c.handleEvent)
}

// Enable turns on the CDP domains the collector listens to.
func (c *Collector) Enable() chromedp.Action {
	return chromedp.Tasks{
		network.Enable(),
		runtime.Enable(),
		log.Enable(),
	}
}

func (c *Collector) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	// -- Network Events --
	case *network.EventRequestWillBeSent:
		c.requestStarted(e.RequestID)
	case *network.EventLoadingFinished:
		c.requestDone(e.RequestID)
	case *network.EventLoadingFailed:
		c.requestDone(e.RequestID)

	// -- Console and Runtime Events --
	case *runtime.EventConsoleAPICalled:
		c.handleConsoleAPICalled(e)
	case *log.EventEntryAdded:
		c.handleLogEntryAdded(e)
	case *runtime.EventExceptionThrown:
		c.handleExceptionThrown(e)
	}
}

func (c *Collector) requestStarted(id network.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[id] = true
	c.lastActivity = c.now()
}

func (c *Collector) requestDone(id network.RequestID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, id)
	c.lastActivity = c.now()
}

// WaitNetworkIdle blocks until no request has been in flight for quietPeriod.
func (c *Collector) WaitNetworkIdle(ctx context.Context, quietPeriod time.Duration) error {
	if quietPeriod <= 0 {
		return nil
	}
	interval := quietPeriod / 5
	if interval < time.Millisecond {
		interval = time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		c.mu.RLock()
		inflightCount := len(c.inflight)
		idleFor := c.now().Sub(c.lastActivity)
		c.mu.RUnlock()

		if inflightCount == 0 && idleFor >= quietPeriod {
			return nil
		}

		select {
		case <-ctx.Done():
			c.logger.Debug("WaitNetworkIdle aborted due to context cancellation.", zap.Int("inflight_requests", inflightCount), zap.Error(ctx.Err()))
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Collector) handleConsoleAPICalled(e *runtime.EventConsoleAPICalled) {
	var textBuilder strings.Builder
	for i, arg := range e.Args {
		if i > 0 {
			textBuilder.WriteString(" ")
		}
		var val interface{}
		if arg.Value != nil && json.Unmarshal(arg.Value, &val) == nil {
			textBuilder.WriteString(fmt.Sprintf("%v", val))
		} else if arg.Description != "" {
			textBuilder.WriteString(arg.Description)
		} else {
			textBuilder.WriteString(fmt.Sprintf("[%s]", arg.Type))
		}
	}

	entry := schemas.ConsoleLog{
		Type:   string(e.Type),
		Text:   textBuilder.String(),
		Source: "console-api",
	}
	if e.Timestamp != nil {
		entry.Timestamp = e.Timestamp.Time()
	}
	if e.StackTrace != nil && len(e.StackTrace.CallFrames) > 0 {
		frame := e.StackTrace.CallFrames[0]
		entry.URL = frame.URL
		entry.Line = frame.LineNumber + 1
	}
	c.append(entry)
}

func (c *Collector) handleLogEntryAdded(e *log.EventEntryAdded) {
	if e.Entry == nil {
		return
	}
	entry := schemas.ConsoleLog{
		Type:   string(e.Entry.Level),
		Text:   e.Entry.Text,
		Source: string(e.Entry.Source),
		URL:    e.Entry.URL,
		Line:   e.Entry.LineNumber,
	}
	if e.Entry.Timestamp != nil {
		entry.Timestamp = e.Entry.Timestamp.Time()
	}
	c.append(entry)
}

func (c *Collector) handleExceptionThrown(e *runtime.EventExceptionThrown) {
	if e.ExceptionDetails == nil {
		return
	}
	// The description usually carries the stack trace.
	text := e.ExceptionDetails.Text
	if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
		text = e.ExceptionDetails.Exception.Description
	}

	entry := schemas.ConsoleLog{
		Type:   "exception",
		Text:   text,
		Source: "runtime",
		URL:    e.ExceptionDetails.URL,
		Line:   e.ExceptionDetails.LineNumber + 1,
	}
	if e.Timestamp != nil {
		entry.Timestamp = e.Timestamp.Time()
	}
	c.append(entry)
}

func (c *Collector) append(entry schemas.ConsoleLog) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.consoleLogs = append(c.consoleLogs, entry)
}

// Logs returns a copy of the transcript so far.
func (c *Collector) Logs() []schemas.ConsoleLog {
	c.mu.RLock()
	defer c.mu.RUnlock()
	logs := make([]schemas.ConsoleLog, len(c.consoleLogs))
	copy(logs, c.consoleLogs)
	return logs
}
