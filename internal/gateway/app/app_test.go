package app

import (
	"context"
	"testing"

	"deckshot/internal/gateway/config"
	artifactrepo "deckshot/internal/gateway/repository/artifact"
	"deckshot/internal/gateway/repository/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func localConfig() *config.Config {
	return &config.Config{
		Port:           ":0",
		Env:            "local",
		AllowedOrigins: []string{"http://localhost:8788"},
		Deck: config.DeckConfig{
			SiteURL:     "https://deck.example/deck/",
			MaxSessions: 1,
		},
	}
}

func TestNewFallsBackToMemoryStores(t *testing.T) {
	logger := zaptest.NewLogger(t)
	stores, err := initStores(context.Background(), localConfig(), logger)
	require.NoError(t, err)
	assert.IsType(t, &artifactrepo.MemoryStore{}, stores.artifacts)
	assert.IsType(t, &record.MemoryStore{}, stores.records)
	assert.Empty(t, stores.close)
}

func TestNewSelectsD1(t *testing.T) {
	cfg := localConfig()
	cfg.Record = config.RecordConfig{AccountID: "acct", APIToken: "tok", DatabaseID: "db"}
	stores, err := initStores(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &record.D1Store{}, stores.records)
}

func TestNewSelectsDiskArtifacts(t *testing.T) {
	cfg := localConfig()
	cfg.Artifact.LocalDir = t.TempDir()
	stores, err := initStores(context.Background(), cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.IsType(t, &artifactrepo.DiskStore{}, stores.artifacts)
}

func TestNewWiresApp(t *testing.T) {
	a, err := New(context.Background(), localConfig(), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, a.Service())
	assert.NoError(t, a.Shutdown(context.Background()))
}

func TestDeckOptions(t *testing.T) {
	opts := deckOptions(config.DeckConfig{SiteURL: "https://x/", NotFoundSelector: ".err"})
	assert.Equal(t, "https://x/", opts.SiteURL)
	assert.Equal(t, ".err", opts.Selectors.NotFound)
	assert.Equal(t, "#deckID", opts.Selectors.CodeInput)
}
