// Package browser drives one isolated headless browser per acquisition.
//
// A Session owns a primary page and any page opened from it. Closing the
// session tears down every page, the browser process and its throwaway
// profile directory.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLaunch          = errors.New("browser launch failed")
	ErrNavigation      = errors.New("navigation failed")
	ErrElementNotFound = errors.New("element not found")
	ErrNotVisible      = errors.New("element not visible")
	ErrNoPopup         = errors.New("no new page opened")
)

// Driver starts sessions.
type Driver interface {
	Open(ctx context.Context) (Session, error)
}

// Page is one browsing context.
type Page interface {
	// Navigate loads url and waits until at most two connections remain
	// open for half a second.
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	Type(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	// ClickAndWaitNavigation clicks and waits for the resulting navigation
	// to go network-quiescent.
	ClickAndWaitNavigation(ctx context.Context, selector string, timeout time.Duration) error
	// WaitVisible waits until selector is rendered, not merely attached.
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	// Visible checks selector once without waiting.
	Visible(ctx context.Context, selector string) (bool, error)
	// Screenshot captures selector as PNG, or the viewport when selector
	// does not resolve.
	Screenshot(ctx context.Context, selector string) ([]byte, error)
}

// Session is the primary page plus the lifecycle of the whole browser.
type Session interface {
	Page
	// ClickForPopup clicks selector on the primary page and returns the page
	// it opens. The observer is attached before the click.
	ClickForPopup(ctx context.Context, selector string, timeout time.Duration) (Page, error)
	// Close is idempotent.
	Close() error
}

// Config is the fixed launch configuration.
type Config struct {
	Bin            string
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
}

func (c Config) viewport() (int, int) {
	w, h := c.ViewportWidth, c.ViewportHeight
	if w <= 0 {
		w = 1280
	}
	if h <= 0 {
		h = 1024
	}
	return w, h
}

// SandboxFlags are passed to every launch. They suit containers without a
// GPU or a user namespace.
var SandboxFlags = []string{
	"disable-setuid-sandbox",
	"disable-dev-shm-usage",
	"disable-accelerated-2d-canvas",
	"no-first-run",
	"no-zygote",
	"single-process",
	"disable-gpu",
}
