package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

// RodDriver launches a fresh Chrome for every session.
type RodDriver struct {
	cfg    Config
	logger *zap.Logger
}

func NewRodDriver(cfg Config, logger *zap.Logger) *RodDriver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RodDriver{cfg: cfg, logger: logger.Named("browser")}
}

func (d *RodDriver) Open(ctx context.Context) (Session, error) {
	l := launcher.New().Context(ctx).Headless(d.cfg.Headless).NoSandbox(true)
	if bin := d.cfg.Bin; bin != "" {
		l = l.Bin(bin)
	} else if path, ok := launcher.LookPath(); ok {
		l = l.Bin(path)
	}
	for _, f := range SandboxFlags {
		l = l.Set(flags.Flag(f))
	}

	controlURL, err := l.Launch()
	if err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("%w: %v", ErrLaunch, err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		l.Cleanup()
		return nil, fmt.Errorf("%w: connect: %v", ErrLaunch, err)
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s := &rodSession{
		launcher: l,
		browser:  b,
		watchCtx: watchCtx,
		cancel:   cancel,
		logger:   d.logger,
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: create page: %v", ErrLaunch, err)
	}
	w, h := d.cfg.viewport()
	if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             w,
		Height:            h,
		DeviceScaleFactor: 1,
	}); err != nil {
		d.logger.Warn("set viewport failed", zap.Error(err))
	}
	s.rodPage = s.adopt(page)
	return s, nil
}

type rodSession struct {
	*rodPage

	launcher *launcher.Launcher
	browser  *rod.Browser
	watchCtx context.Context
	cancel   context.CancelFunc
	logger   *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// adopt wraps a page and starts accepting its dialogs.
func (s *rodSession) adopt(page *rod.Page) *rodPage {
	go page.Context(s.watchCtx).EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		s.logger.Debug("accepting dialog", zap.String("type", string(e.Type)), zap.String("message", e.Message))
		if err := (proto.PageHandleJavaScriptDialog{Accept: true}).Call(page); err != nil {
			s.logger.Warn("accept dialog failed", zap.Error(err))
		}
	})()
	return &rodPage{page: page}
}

func (s *rodSession) ClickForPopup(ctx context.Context, selector string, timeout time.Duration) (Page, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := s.page.Context(waitCtx)
	wait := page.WaitOpen()
	el, err := page.Element(selector)
	if err != nil {
		return nil, lookupErr(selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return nil, fmt.Errorf("click %s: %w", selector, err)
	}
	popup, err := wait()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w within %s", ErrNoPopup, timeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoPopup, err)
	}
	return s.adopt(popup.Context(ctx)), nil
}

func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.browser.Close()
		s.cancel()
		s.launcher.Kill()
		s.launcher.Cleanup()
	})
	return s.closeErr
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrNavigation, url, err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s did not settle: %v", ErrNavigation, url, err)
	}
	return nil
}

func (p *rodPage) Type(ctx context.Context, selector, text string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return lookupErr(selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("type into %s: %w", selector, err)
	}
	return nil
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return lookupErr(selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (p *rodPage) ClickAndWaitNavigation(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page := p.page.Context(ctx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameNetworkAlmostIdle)
	el, err := page.Element(selector)
	if err != nil {
		return lookupErr(selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	wait()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: after clicking %s: %v", ErrNavigation, selector, err)
	}
	return nil
}

func (p *rodPage) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return notVisibleErr(selector, timeout, err)
	}
	if err := el.WaitVisible(); err != nil {
		return notVisibleErr(selector, timeout, err)
	}
	return nil
}

func (p *rodPage) Visible(ctx context.Context, selector string) (bool, error) {
	has, el, err := p.page.Context(ctx).Has(selector)
	if err != nil || !has {
		return false, err
	}
	return el.Visible()
}

func (p *rodPage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	page := p.page.Context(ctx)
	if selector != "" {
		if has, el, err := page.Has(selector); err == nil && has {
			buf, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
			if err == nil {
				return buf, nil
			}
		}
	}
	buf, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("capture viewport: %w", err)
	}
	return buf, nil
}

func lookupErr(selector string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %s: %v", ErrElementNotFound, selector, err)
	}
	return fmt.Errorf("find %s: %w", selector, err)
}

func notVisibleErr(selector string, timeout time.Duration, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s within %s", ErrNotVisible, selector, timeout)
	}
	return fmt.Errorf("wait visible %s: %w", selector, err)
}
