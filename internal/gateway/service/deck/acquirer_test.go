package deck

import (
	"context"
	"errors"
	"testing"
	"time"

	"deckshot/internal/browser/browsertest"
	"deckshot/internal/gateway/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.SiteURL = "https://deck.example/deck/"
	opts.SettleDelay = time.Millisecond
	opts.NavigationTimeout = time.Second
	opts.VisibleTimeout = time.Second
	opts.PopupTimeout = time.Second
	opts.ArtifactTimeout = time.Second
	return opts
}

func TestAcquireVisitsProtocolInOrder(t *testing.T) {
	driver := browsertest.New()
	a := NewAcquirer(driver, testOptions(), zaptest.NewLogger(t))

	var steps []Step
	art, err := a.Acquire(context.Background(), " abc123 ", func(s Step) { steps = append(steps, s) })
	require.NoError(t, err)
	assert.Equal(t, entity.DeckCode("abc123"), art.Code)
	assert.Equal(t, browsertest.PNG, art.PNG)

	require.Len(t, driver.Sessions(), 1)
	session := driver.Sessions()[0]
	assert.Equal(t, []string{
		"navigate https://deck.example/deck/",
		"type #deckID abc123",
		"click+wait #searchDeckView",
		"click #fr_regulationChekcBtn",
		"click #fr_registDeckData",
		"visible #deckImgeBtn",
		"click #deckImgeBtn",
		"popup opened",
		"popup visible .deckThumbsImg",
		"popup screenshot .deckThumbsImg",
	}, session.Actions())
	assert.Equal(t, 1, driver.CloseCalls())
	assert.Equal(t, []Step{
		StepInit, StepSubmitCode, StepAwaitSearchResult, StepConfirmRegulation, StepRegisterDeck,
		StepOpenImageView, StepCaptureSecondaryContext, StepAwaitArtifactVisible, StepCapture, StepTeardown,
	}, steps)
}

func TestAcquireEmptyCodeOpensNothing(t *testing.T) {
	driver := browsertest.New()
	a := NewAcquirer(driver, testOptions(), nil)

	_, err := a.Acquire(context.Background(), "  ", nil)
	require.ErrorIs(t, err, ErrInputValidation)
	assert.Zero(t, driver.Opens())
}

func TestAcquireTearsDownOnceOnEveryFailure(t *testing.T) {
	sel := DefaultSelectors()
	tests := []struct {
		name      string
		setup     func(d *browsertest.Driver)
		kind      error
		step      Step
		wantClose int
	}{
		{
			name:      "launch",
			setup:     func(d *browsertest.Driver) { d.LaunchErr = errors.New("chrome not found") },
			kind:      ErrLaunch,
			step:      StepInit,
			wantClose: 0,
		},
		{
			name:      "navigation",
			setup:     func(d *browsertest.Driver) { d.NavigateErr = errors.New("net::ERR_NAME_NOT_RESOLVED") },
			kind:      ErrNavigation,
			step:      StepInit,
			wantClose: 1,
		},
		{
			name:      "code input missing",
			setup:     func(d *browsertest.Driver) { d.Missing[sel.CodeInput] = true },
			kind:      ErrControlNotFound,
			step:      StepSubmitCode,
			wantClose: 1,
		},
		{
			name:      "search missing",
			setup:     func(d *browsertest.Driver) { d.Missing[sel.Search] = true },
			kind:      ErrControlNotFound,
			step:      StepAwaitSearchResult,
			wantClose: 1,
		},
		{
			name:      "regulation missing",
			setup:     func(d *browsertest.Driver) { d.Missing[sel.Regulation] = true },
			kind:      ErrControlNotFound,
			step:      StepConfirmRegulation,
			wantClose: 1,
		},
		{
			name:      "register missing",
			setup:     func(d *browsertest.Driver) { d.Missing[sel.Register] = true },
			kind:      ErrControlNotFound,
			step:      StepRegisterDeck,
			wantClose: 1,
		},
		{
			name:      "image trigger never visible",
			setup:     func(d *browsertest.Driver) { d.Hidden[sel.ImageTrigger] = true },
			kind:      ErrControlNotFound,
			step:      StepOpenImageView,
			wantClose: 1,
		},
		{
			name:      "popup never opens",
			setup:     func(d *browsertest.Driver) { d.NoPopup = true },
			kind:      ErrPopupTimeout,
			step:      StepCaptureSecondaryContext,
			wantClose: 1,
		},
		{
			name:      "empty capture",
			setup:     func(d *browsertest.Driver) { d.Image = nil },
			kind:      ErrCapture,
			step:      StepCapture,
			wantClose: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver := browsertest.New()
			tt.setup(driver)
			a := NewAcquirer(driver, testOptions(), zaptest.NewLogger(t))

			_, err := a.Acquire(context.Background(), "abc123", nil)
			require.ErrorIs(t, err, tt.kind)
			step, ok := FailedStep(err)
			require.True(t, ok)
			assert.Equal(t, tt.step, step)
			assert.Equal(t, 1, driver.Opens())
			assert.Equal(t, tt.wantClose, driver.CloseCalls())
		})
	}
}

func TestAcquireArtifactWaitIsBestEffort(t *testing.T) {
	driver := browsertest.New()
	driver.Missing[".deckThumbsImg"] = true
	a := NewAcquirer(driver, testOptions(), zaptest.NewLogger(t))

	art, err := a.Acquire(context.Background(), "abc123", nil)
	require.NoError(t, err)
	assert.NotEmpty(t, art.PNG)
	actions := driver.Sessions()[0].Actions()
	assert.Equal(t, "popup screenshot viewport", actions[len(actions)-1])
	assert.Equal(t, 1, driver.CloseCalls())
}

func TestAcquireDetectsNotFoundBanner(t *testing.T) {
	driver := browsertest.New()
	driver.Shown[".deckNotFound"] = true
	opts := testOptions()
	opts.Selectors.NotFound = ".deckNotFound"
	a := NewAcquirer(driver, opts, zaptest.NewLogger(t))

	_, err := a.Acquire(context.Background(), "nope", nil)
	require.ErrorIs(t, err, ErrDeckNotFound)
	assert.False(t, Retryable(err))
	assert.Equal(t, 1, driver.CloseCalls())
}

func TestAcquireDeadline(t *testing.T) {
	driver := browsertest.New()
	opts := testOptions()
	opts.SettleDelay = time.Minute
	a := NewAcquirer(driver, opts, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := a.Acquire(ctx, "abc123", nil)
	require.ErrorIs(t, err, ErrDeadline)
	assert.True(t, Retryable(err))
	assert.Equal(t, 1, driver.CloseCalls())
}

func TestOptionsWithDefaults(t *testing.T) {
	opts := Options{SettleDelay: -1}.withDefaults()
	assert.Equal(t, DefaultSelectors(), opts.Selectors)
	assert.Zero(t, opts.SettleDelay)
	assert.Equal(t, 30*time.Second, opts.NavigationTimeout)
}
