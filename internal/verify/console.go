package verify

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"uiverify/internal/browser"
)

// consoleForwarder prints browser console messages without ever blocking the
// page's event callback: messages go through a bounded queue and are dropped
// when it is full.
type consoleForwarder struct {
	out io.Writer
	log logrus.FieldLogger

	mu     sync.RWMutex
	closed bool
	queue  chan browser.ConsoleMessage
	done   chan struct{}

	// logMu guards log writes against abandon, which is set once close gives
	// up waiting; the run log may be closed after that.
	logMu     sync.Mutex
	abandoned bool

	received atomic.Int64
	dropped  atomic.Int64
}

func newConsoleForwarder(out io.Writer, log logrus.FieldLogger, size int) *consoleForwarder {
	f := &consoleForwarder{
		out:   out,
		log:   log.WithField("scope", "console"),
		queue: make(chan browser.ConsoleMessage, size),
		done:  make(chan struct{}),
	}
	go f.loop()
	return f
}

func (f *consoleForwarder) observe(msg browser.ConsoleMessage) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		f.dropped.Add(1)
		return
	}
	select {
	case f.queue <- msg:
		f.received.Add(1)
	default:
		f.dropped.Add(1)
	}
}

func (f *consoleForwarder) loop() {
	defer close(f.done)
	for msg := range f.queue {
		fmt.Fprintf(f.out, "BROWSER CONSOLE: %s: %s\n", msg.Type, msg.Text)
		f.logMu.Lock()
		if !f.abandoned {
			f.log.WithField("type", msg.Type).Debug(msg.Text)
		}
		f.logMu.Unlock()
	}
}

// close stops accepting messages and waits up to drain for queued ones to be
// printed. It is safe to call more than once.
func (f *consoleForwarder) close(drain time.Duration) {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
	case <-time.After(drain):
		f.logMu.Lock()
		f.abandoned = true
		f.logMu.Unlock()
		f.log.WithField("pending", len(f.queue)).Warn("console output still draining")
	}
}
