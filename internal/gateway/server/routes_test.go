package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"deckshot/internal/gateway/auth"
	"deckshot/internal/gateway/entity"
	"deckshot/internal/gateway/handler"
	"deckshot/internal/gateway/repository/record"
	"deckshot/internal/gateway/service/deck"
	"deckshot/internal/gateway/service/progress"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"
)

type stubFetcher struct{}

func (stubFetcher) Fetch(context.Context, deck.Request) (deck.Result, error) {
	return deck.Result{}, errors.New("unused")
}

func newTestMux(t *testing.T) http.Handler {
	logger := zaptest.NewLogger(t)
	verifier := auth.VerifierFunc(func(_ context.Context, token string) (entity.User, error) {
		if token == "good" {
			return entity.User{ID: "uid-1"}, nil
		}
		return entity.User{}, auth.ErrInvalidToken
	})
	return NewMux(Handlers{
		Deck:        handler.NewDeckHandler(stubFetcher{}, handler.DeckHandlerConfig{}, logger),
		User:        handler.NewUserHandler(record.NewMemoryStore(), logger),
		Acquisition: handler.NewAcquisitionHandler(progress.NewTracker(4), logger),
		Verifier:    verifier,
	}, []string{"http://localhost:8788"}, logger)
}

func TestRoutes(t *testing.T) {
	mux := newTestMux(t)

	tests := []struct {
		name   string
		method string
		path   string
		origin string
		bearer string
		want   int
	}{
		{"health", http.MethodGet, "/healthz", "", "", http.StatusOK},
		{"fetch wrong method", http.MethodGet, "/fetchDeck", "", "", http.StatusMethodNotAllowed},
		{"save user no header", http.MethodPost, "/saveUser", "", "", http.StatusUnauthorized},
		{"save user bad token", http.MethodPost, "/saveUser", "", "bad", http.StatusForbidden},
		{"save user", http.MethodPost, "/saveUser", "http://localhost:8788", "good", http.StatusOK},
		{"unknown acquisition", http.MethodGet, "/acquisitions/x", "", "", http.StatusNotFound},
		{"blocked origin", http.MethodGet, "/healthz", "https://evil.example", "", http.StatusForbidden},
		{"preflight", http.MethodOptions, "/fetchDeck", "http://localhost:8788", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.bearer != "" {
				req.Header.Set("Authorization", "Bearer "+tt.bearer)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
