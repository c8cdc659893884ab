// Package browsertest provides a scripted browser.Driver for tests.
package browsertest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deckshot/internal/browser"
)

// PNG is the default capture returned by fake pages.
var PNG = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// Driver records every session it opens. Fields must be set before use.
type Driver struct {
	LaunchErr   error
	NavigateErr error
	// Missing selectors never resolve; Hidden selectors resolve but never
	// become visible; Shown selectors report visible on a one-shot check.
	Missing map[string]bool
	Hidden  map[string]bool
	Shown   map[string]bool
	NoPopup bool
	Image   []byte
	// Gate, when non-nil, holds every Open until it is closed.
	Gate chan struct{}

	mu       sync.Mutex
	opens    int
	waiting  int
	sessions []*Session
}

func New() *Driver {
	return &Driver{
		Missing: map[string]bool{},
		Hidden:  map[string]bool{},
		Shown:   map[string]bool{},
		Image:   PNG,
	}
}

func (d *Driver) Open(ctx context.Context) (browser.Session, error) {
	if d.Gate != nil {
		d.mu.Lock()
		d.waiting++
		d.mu.Unlock()
		var err error
		select {
		case <-d.Gate:
		case <-ctx.Done():
			err = ctx.Err()
		}
		d.mu.Lock()
		d.waiting--
		d.mu.Unlock()
		if err != nil {
			return nil, err
		}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.LaunchErr != nil {
		return nil, fmt.Errorf("%w: %v", browser.ErrLaunch, d.LaunchErr)
	}
	s := &Session{driver: d}
	s.Page = &Page{driver: d, session: s, prefix: ""}
	d.sessions = append(d.sessions, s)
	return s, nil
}

// Opens counts Open calls, including failed launches.
func (d *Driver) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Waiting counts Open calls currently held at Gate.
func (d *Driver) Waiting() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.waiting
}

// CloseCalls sums Close calls across sessions.
func (d *Driver) CloseCalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sessions {
		n += s.closeCalls
	}
	return n
}

func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Session is a fake browser.Session.
type Session struct {
	*Page

	driver     *Driver
	actions    []string
	closeCalls int
	closed     bool
}

func (s *Session) ClickForPopup(ctx context.Context, selector string, timeout time.Duration) (browser.Page, error) {
	if err := s.Page.Click(ctx, selector); err != nil {
		return nil, err
	}
	if s.driver.NoPopup {
		return nil, fmt.Errorf("%w within %s", browser.ErrNoPopup, timeout)
	}
	s.record("popup opened")
	return &Page{driver: s.driver, session: s, prefix: "popup "}, nil
}

func (s *Session) Close() error {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	s.closeCalls++
	s.closed = true
	return nil
}

// Actions returns the ordered interaction log.
func (s *Session) Actions() []string {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return append([]string(nil), s.actions...)
}

func (s *Session) Closed() bool {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	return s.closed
}

func (s *Session) record(action string) {
	s.driver.mu.Lock()
	defer s.driver.mu.Unlock()
	s.actions = append(s.actions, action)
}

// Page is a fake browser.Page sharing its session's log.
type Page struct {
	driver  *Driver
	session *Session
	prefix  string
}

func (p *Page) Navigate(ctx context.Context, url string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.session.record(p.prefix + "navigate " + url)
	if p.driver.NavigateErr != nil {
		return fmt.Errorf("%w: %v", browser.ErrNavigation, p.driver.NavigateErr)
	}
	return nil
}

func (p *Page) Type(ctx context.Context, selector, text string) error {
	if err := p.lookup(ctx, selector); err != nil {
		return err
	}
	p.session.record(p.prefix + "type " + selector + " " + text)
	return nil
}

func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.lookup(ctx, selector); err != nil {
		return err
	}
	p.session.record(p.prefix + "click " + selector)
	return nil
}

func (p *Page) ClickAndWaitNavigation(ctx context.Context, selector string, _ time.Duration) error {
	if err := p.lookup(ctx, selector); err != nil {
		return err
	}
	p.session.record(p.prefix + "click+wait " + selector)
	return nil
}

func (p *Page) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.driver.Missing[selector] || p.driver.Hidden[selector] {
		return fmt.Errorf("%w: %s within %s", browser.ErrNotVisible, selector, timeout)
	}
	p.session.record(p.prefix + "visible " + selector)
	return nil
}

func (p *Page) Visible(ctx context.Context, selector string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.driver.Shown[selector], nil
}

func (p *Page) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.driver.Missing[selector] {
		p.session.record(p.prefix + "screenshot viewport")
	} else {
		p.session.record(p.prefix + "screenshot " + selector)
	}
	return append([]byte(nil), p.driver.Image...), nil
}

func (p *Page) lookup(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.driver.Missing[selector] {
		return fmt.Errorf("%w: %s", browser.ErrElementNotFound, selector)
	}
	return nil
}
