//go:build integration

package browser_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"deckshot/internal/browser"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G'}

const deckPage = `<html><body>
<input id="field">
<button id="open" onclick="window.open('/popup')">open</button>
<button id="noop" onclick="void 0">noop</button>
<a id="next" href="/next">next</a>
<div id="hidden" style="display:none">hidden</div>
<script>
alert("welcome");
var d = document.createElement("div");
d.id = "after";
d.textContent = "dialog accepted";
document.body.appendChild(d);
</script>
</body></html>`

const popupPage = `<html><body>
<button id="ask" onclick="if (confirm('show?')) document.getElementById('art').style.display='block'">ask</button>
<div id="art" style="display:none;width:200px;height:120px;background:#c33">deck</div>
</body></html>`

func newSiteServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, deckPage)
	})
	mux.HandleFunc("/popup", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, popupPage)
	})
	mux.HandleFunc("/next", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><body><h1>next</h1></body></html>")
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func openSession(t *testing.T, ctx context.Context) browser.Session {
	t.Helper()
	bin := os.Getenv("BROWSER_BIN")
	if bin == "" {
		if _, ok := launcher.LookPath(); !ok {
			t.Skip("no local browser found; set BROWSER_BIN")
		}
	}
	driver := browser.NewRodDriver(browser.Config{Bin: bin, Headless: true}, zaptest.NewLogger(t))
	session, err := driver.Open(ctx)
	require.NoError(t, err, "Failed to launch browser")
	return session
}

func TestRodSession_PageOperations_Integration(t *testing.T) {
	ts := newSiteServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session := openSession(t, ctx)
	defer session.Close()

	// The load-time alert must be accepted for the page to finish loading.
	require.NoError(t, session.Navigate(ctx, ts.URL, 15*time.Second))
	require.NoError(t, session.WaitVisible(ctx, "#after", 5*time.Second))

	require.NoError(t, session.Type(ctx, "#field", "abc123"))
	shown, err := session.Visible(ctx, "#field")
	require.NoError(t, err)
	assert.True(t, shown)

	shown, err = session.Visible(ctx, "#hidden")
	require.NoError(t, err)
	assert.False(t, shown)

	err = session.WaitVisible(ctx, "#hidden", 500*time.Millisecond)
	assert.ErrorIs(t, err, browser.ErrNotVisible)

	lookupCtx, lookupCancel := context.WithTimeout(ctx, 500*time.Millisecond)
	err = session.Click(lookupCtx, "#does-not-exist")
	lookupCancel()
	assert.ErrorIs(t, err, browser.ErrElementNotFound)
}

func TestRodSession_Popup_Integration(t *testing.T) {
	ts := newSiteServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session := openSession(t, ctx)
	defer session.Close()
	require.NoError(t, session.Navigate(ctx, ts.URL, 15*time.Second))

	popup, err := session.ClickForPopup(ctx, "#open", 10*time.Second)
	require.NoError(t, err, "Expected the click to open a new page")

	// The artifact only renders once the popup's confirm dialog is accepted.
	require.NoError(t, popup.Click(ctx, "#ask"))
	require.NoError(t, popup.WaitVisible(ctx, "#art", 10*time.Second))

	element, err := popup.Screenshot(ctx, "#art")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(element, pngMagic))

	viewport, err := popup.Screenshot(ctx, ".not-there")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(viewport, pngMagic))

	start := time.Now()
	_, err = session.ClickForPopup(ctx, "#noop", time.Second)
	assert.ErrorIs(t, err, browser.ErrNoPopup)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRodSession_NavigationAndClose_Integration(t *testing.T) {
	ts := newSiteServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	session := openSession(t, ctx)
	require.NoError(t, session.Navigate(ctx, ts.URL, 15*time.Second))
	require.NoError(t, session.ClickAndWaitNavigation(ctx, "#next", 15*time.Second))
	shown, err := session.Visible(ctx, "h1")
	require.NoError(t, err)
	assert.True(t, shown)

	first := session.Close()
	second := session.Close()
	assert.Equal(t, first, second)
}
