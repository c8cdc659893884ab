// Package deck acquires deck images from the third-party deck site and
// records where they were stored.
package deck

import (
	"context"
	"errors"
	"time"

	"deckshot/internal/browser"
	"deckshot/internal/gateway/entity"

	"go.uber.org/zap"
)

type Step string

const (
	StepValidate                Step = "validate"
	StepQueued                  Step = "queued"
	StepInit                    Step = "init"
	StepSubmitCode              Step = "submit_code"
	StepAwaitSearchResult       Step = "await_search_result"
	StepConfirmRegulation       Step = "confirm_regulation"
	StepRegisterDeck            Step = "register_deck"
	StepOpenImageView           Step = "open_image_view"
	StepCaptureSecondaryContext Step = "capture_secondary_context"
	StepAwaitArtifactVisible    Step = "await_artifact_visible"
	StepCapture                 Step = "capture"
	StepTeardown                Step = "teardown"
	StepUpload                  Step = "upload"
	StepUpdateRecord            Step = "update_record"
)

// Selectors locate the site's controls. They track third-party markup.
type Selectors struct {
	CodeInput    string
	Search       string
	Regulation   string
	Register     string
	ImageTrigger string
	Artifact     string
	// NotFound, when set, is checked after the search settles. A visible
	// match fails the run with ErrDeckNotFound.
	NotFound string
}

func DefaultSelectors() Selectors {
	return Selectors{
		CodeInput:    "#deckID",
		Search:       "#searchDeckView",
		Regulation:   "#fr_regulationChekcBtn",
		Register:     "#fr_registDeckData",
		ImageTrigger: "#deckImgeBtn",
		Artifact:     ".deckThumbsImg",
	}
}

type Options struct {
	SiteURL   string
	Selectors Selectors
	// SettleDelay follows the regulation and registration clicks. The site
	// exposes no completion signal for either, so this is a known source of
	// flakiness.
	SettleDelay       time.Duration
	NavigationTimeout time.Duration
	VisibleTimeout    time.Duration
	PopupTimeout      time.Duration
	ArtifactTimeout   time.Duration
}

func DefaultOptions() Options {
	return Options{
		SiteURL:           "https://www.pokemon-card.com/deck/",
		Selectors:         DefaultSelectors(),
		SettleDelay:       300 * time.Millisecond,
		NavigationTimeout: 30 * time.Second,
		VisibleTimeout:    30 * time.Second,
		PopupTimeout:      15 * time.Second,
		ArtifactTimeout:   10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SiteURL == "" {
		o.SiteURL = def.SiteURL
	}
	if o.Selectors == (Selectors{}) {
		o.Selectors = def.Selectors
	}
	if o.SettleDelay < 0 {
		o.SettleDelay = 0
	}
	if o.NavigationTimeout <= 0 {
		o.NavigationTimeout = def.NavigationTimeout
	}
	if o.VisibleTimeout <= 0 {
		o.VisibleTimeout = def.VisibleTimeout
	}
	if o.PopupTimeout <= 0 {
		o.PopupTimeout = def.PopupTimeout
	}
	if o.ArtifactTimeout <= 0 {
		o.ArtifactTimeout = def.ArtifactTimeout
	}
	return o
}

// Artifact is a captured deck image held in memory until upload.
type Artifact struct {
	Code entity.DeckCode
	PNG  []byte
}

// Acquirer runs the acquisition protocol. Each call opens its own session.
type Acquirer struct {
	driver browser.Driver
	opts   Options
	logger *zap.Logger
}

func NewAcquirer(driver browser.Driver, opts Options, logger *zap.Logger) *Acquirer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Acquirer{driver: driver, opts: opts.withDefaults(), logger: logger.Named("deck")}
}

// Acquire drives the site from code entry to image capture. The session is
// closed exactly once on every return path. observe, when non-nil, is told
// about each step before it starts.
func (a *Acquirer) Acquire(ctx context.Context, code entity.DeckCode, observe func(Step)) (Artifact, error) {
	code = entity.NormalizeDeckCode(string(code))
	if code.IsZero() {
		return Artifact{}, &StepError{Step: StepValidate, Kind: ErrInputValidation, Err: errors.New("deck code is required")}
	}
	if observe == nil {
		observe = func(Step) {}
	}
	log := a.logger.With(zap.String("deck_code", code.String()))
	sel := a.opts.Selectors
	enter := func(step Step) {
		log.Info("acquisition step", zap.String("step", string(step)))
		observe(step)
	}

	enter(StepInit)
	session, err := a.driver.Open(ctx)
	if err != nil {
		return Artifact{}, classify(ctx, StepInit, ErrLaunch, err)
	}
	defer func() {
		enter(StepTeardown)
		if cerr := session.Close(); cerr != nil {
			log.Warn("session close failed", zap.Error(cerr))
		}
	}()

	if err := session.Navigate(ctx, a.opts.SiteURL, a.opts.NavigationTimeout); err != nil {
		return Artifact{}, classify(ctx, StepInit, ErrNavigation, err)
	}

	enter(StepSubmitCode)
	if err := a.bounded(ctx, func(ctx context.Context) error {
		return session.Type(ctx, sel.CodeInput, code.String())
	}); err != nil {
		return Artifact{}, classify(ctx, StepSubmitCode, ErrControlNotFound, err)
	}

	enter(StepAwaitSearchResult)
	if err := session.ClickAndWaitNavigation(ctx, sel.Search, a.opts.NavigationTimeout); err != nil {
		return Artifact{}, classify(ctx, StepAwaitSearchResult, ErrNavigation, err)
	}
	if sel.NotFound != "" {
		shown, err := session.Visible(ctx, sel.NotFound)
		if err != nil {
			log.Warn("not-found check failed", zap.Error(err))
		} else if shown {
			return Artifact{}, &StepError{Step: StepAwaitSearchResult, Kind: ErrDeckNotFound, Err: errors.New("site reported no deck for code")}
		}
	}

	enter(StepConfirmRegulation)
	if err := a.clickAndSettle(ctx, session, sel.Regulation); err != nil {
		return Artifact{}, classify(ctx, StepConfirmRegulation, ErrControlNotFound, err)
	}

	enter(StepRegisterDeck)
	if err := a.clickAndSettle(ctx, session, sel.Register); err != nil {
		return Artifact{}, classify(ctx, StepRegisterDeck, ErrControlNotFound, err)
	}

	enter(StepOpenImageView)
	if err := session.WaitVisible(ctx, sel.ImageTrigger, a.opts.VisibleTimeout); err != nil {
		return Artifact{}, classify(ctx, StepOpenImageView, ErrControlNotFound, err)
	}

	enter(StepCaptureSecondaryContext)
	popup, err := session.ClickForPopup(ctx, sel.ImageTrigger, a.opts.PopupTimeout)
	if err != nil {
		return Artifact{}, classify(ctx, StepCaptureSecondaryContext, ErrPopupTimeout, err)
	}

	enter(StepAwaitArtifactVisible)
	if err := popup.WaitVisible(ctx, sel.Artifact, a.opts.ArtifactTimeout); err != nil {
		if ctx.Err() != nil {
			return Artifact{}, classify(ctx, StepAwaitArtifactVisible, ErrCapture, err)
		}
		// Best effort: capture falls back to the viewport.
		log.Warn("artifact element not visible, capturing anyway", zap.Error(err))
	}

	enter(StepCapture)
	buf, err := popup.Screenshot(ctx, sel.Artifact)
	if err != nil {
		return Artifact{}, classify(ctx, StepCapture, ErrCapture, err)
	}
	if len(buf) == 0 {
		return Artifact{}, &StepError{Step: StepCapture, Kind: ErrCapture, Err: errors.New("empty image")}
	}
	log.Info("captured deck image", zap.Int("bytes", len(buf)))
	return Artifact{Code: code, PNG: buf}, nil
}

func (a *Acquirer) clickAndSettle(ctx context.Context, page browser.Page, selector string) error {
	if err := a.bounded(ctx, func(ctx context.Context) error {
		return page.Click(ctx, selector)
	}); err != nil {
		return err
	}
	return sleep(ctx, a.opts.SettleDelay)
}

// bounded gives element lookups the navigation timeout so a missing control
// fails instead of hanging.
func (a *Acquirer) bounded(ctx context.Context, fn func(context.Context) error) error {
	stepCtx, cancel := context.WithTimeout(ctx, a.opts.NavigationTimeout)
	defer cancel()
	return fn(stepCtx)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
