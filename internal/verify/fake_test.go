package verify

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"uiverify/internal/browser"
)

type fakeLauncher struct {
	session   *fakeSession
	err       error
	launched  int
	launchOpt browser.Options
}

func (l *fakeLauncher) Launch(opts browser.Options) (browser.Session, error) {
	l.launched++
	l.launchOpt = opts
	if l.err != nil {
		return nil, l.err
	}
	return l.session, nil
}

type fakeSession struct {
	page     *fakePage
	pageErr  error
	closeErr error

	mu     sync.Mutex
	closed int
}

func (s *fakeSession) NewPage() (browser.Page, error) {
	if s.pageErr != nil {
		return nil, s.pageErr
	}
	return s.page, nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	if s.page != nil {
		s.page.record("close")
	}
	return s.closeErr
}

func (s *fakeSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakePage records every call as a string event. Failures are keyed by the
// event text.
type fakePage struct {
	mu      sync.Mutex
	events  []string
	fail    map[string]error
	panicOn string
	url     string

	observer browser.ConsoleObserver
	// consoleOnGoto is emitted synchronously from Goto.
	consoleOnGoto []browser.ConsoleMessage
}

func newFakePage() *fakePage {
	return &fakePage{fail: map[string]error{}}
}

func (p *fakePage) record(ev string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.panicOn == ev {
		panic("boom in " + ev)
	}
	p.events = append(p.events, ev)
	return p.fail[ev]
}

func (p *fakePage) Events() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.events...)
}

func (p *fakePage) Goto(url string, timeout time.Duration) error {
	err := p.record(fmt.Sprintf("goto %s %s", url, timeout))
	if err == nil {
		p.url = url
	}
	for _, m := range p.consoleOnGoto {
		if p.observer != nil {
			p.observer(m)
		}
	}
	return err
}

func (p *fakePage) Click(l browser.Locator, timeout time.Duration) error {
	return p.record(fmt.Sprintf("click %s %s", l, timeout))
}

func (p *fakePage) WaitVisible(l browser.Locator, timeout time.Duration) error {
	return p.record(fmt.Sprintf("wait %s %s", l, timeout))
}

func (p *fakePage) WaitForCondition(expr string, timeout time.Duration) error {
	name := "unknown"
	switch expr {
	case darkThemeApplied:
		name = "dark-class"
	case themeTransitionsDone:
		name = "transitions"
	}
	return p.record(fmt.Sprintf("condition %s %s", name, timeout))
}

func (p *fakePage) Sleep(d time.Duration) {
	_ = p.record(fmt.Sprintf("sleep %s", d))
}

func (p *fakePage) Screenshot(fullPage bool) ([]byte, error) {
	if err := p.record(fmt.Sprintf("screenshot full=%t", fullPage)); err != nil {
		return nil, err
	}
	return []byte("png"), nil
}

func (p *fakePage) OnConsole(obs browser.ConsoleObserver) {
	p.observer = obs
}

func (p *fakePage) URL() string { return p.url }

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
	err   error
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (s *memStore) Save(name string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.files[name] = data
	return "out/" + name, nil
}

func (s *memStore) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for n := range s.files {
		names = append(names, n)
	}
	return names
}

func timeoutErr(what string) error {
	return fmt.Errorf("%s: %w: %w", what, browser.ErrTimeout, errors.New("Timeout 30000ms exceeded."))
}
