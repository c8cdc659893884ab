package server

import (
	"net/http"

	"deckshot/internal/gateway/auth"
	"deckshot/internal/gateway/handler"
	"deckshot/internal/gateway/middleware"

	"go.uber.org/zap"
)

type Handlers struct {
	Deck        *handler.DeckHandler
	User        *handler.UserHandler
	Acquisition *handler.AcquisitionHandler
	Verifier    auth.Verifier
}

func NewMux(h Handlers, allowedOrigins []string, logger *zap.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /fetchDeck", h.Deck.HandleFetchDeck)
	mux.Handle("POST /saveUser", middleware.RequireBearer(h.Verifier, logger)(http.HandlerFunc(h.User.HandleSaveUser)))

	mux.HandleFunc("GET /healthz", handler.HandleHealth)
	mux.HandleFunc("GET /acquisitions/{id}", h.Acquisition.HandleGet)
	mux.HandleFunc("GET /acquisitions/{id}/watch", h.Acquisition.HandleWatch)

	// Middleware
	return middleware.Logging(logger)(middleware.CORS(allowedOrigins)(mux))
}
