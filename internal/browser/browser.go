package browser

import (
	"errors"
	"time"
)

// ErrTimeout is returned when a navigation or wait exceeds its bound.
var ErrTimeout = errors.New("browser: timeout exceeded")

// Options configure a browser session.
type Options struct {
	Headless bool
	Viewport Viewport
	// Args are extra command line switches passed to chromium.
	Args []string
}

// Viewport is the page size in CSS pixels.
type Viewport struct {
	Width  int
	Height int
}

// ConsoleMessage is a single message emitted by the page's console.
type ConsoleMessage struct {
	Type string
	Text string
}

// ConsoleObserver receives console messages out of band. It is called on the
// browser's event goroutine and must not block.
type ConsoleObserver func(ConsoleMessage)

// Launcher starts browser sessions.
type Launcher interface {
	Launch(opts Options) (Session, error)
}

// Session is a running browser instance. Closing it destroys every page it owns.
type Session interface {
	NewPage() (Page, error)
	Close() error
}

// Page is a single browsing context. Every blocking call takes an explicit bound.
type Page interface {
	Goto(url string, timeout time.Duration) error
	Click(l Locator, timeout time.Duration) error
	WaitVisible(l Locator, timeout time.Duration) error
	// WaitForCondition polls a JavaScript predicate until it is truthy.
	WaitForCondition(expr string, timeout time.Duration) error
	Sleep(d time.Duration)
	Screenshot(fullPage bool) ([]byte, error)
	OnConsole(obs ConsoleObserver)
	URL() string
}
