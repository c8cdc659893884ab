package handler

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"deckshot/internal/gateway/entity"
	"deckshot/internal/gateway/service/deck"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// DeckFetcher runs one acquisition end to end.
type DeckFetcher interface {
	Fetch(ctx context.Context, req deck.Request) (deck.Result, error)
}

type DeckHandlerConfig struct {
	// PushToken is the shared secret carried by queue pushes.
	PushToken string
	// DirectRequireToken makes the direct form check apiToken as well.
	DirectRequireToken bool
}

type DeckHandler struct {
	fetcher DeckFetcher
	cfg     DeckHandlerConfig
	logger  *zap.Logger
}

func NewDeckHandler(fetcher DeckFetcher, cfg DeckHandlerConfig, logger *zap.Logger) *DeckHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeckHandler{fetcher: fetcher, cfg: cfg, logger: logger.Named("deck_handler")}
}

type fetchDeckRequest struct {
	DeckCode string       `json:"deckCode"`
	APIToken string       `json:"apiToken"`
	Message  *pushMessage `json:"message"`
}

type pushMessage struct {
	Data      string `json:"data"`
	MessageID string `json:"messageId"`
}

type pushPayload struct {
	Code       string     `json:"code"`
	DeckCodeID flexibleID `json:"deckCodeId"`
	APIToken   string     `json:"apiToken"`
}

// flexibleID accepts a record id sent as a JSON string or number.
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("deckCodeId: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

type fetchDeckResponse struct {
	Message       string `json:"message"`
	URL           string `json:"url"`
	AcquisitionID string `json:"acquisitionId,omitempty"`
}

// HandleFetchDeck serves both the direct form and the queue push form of
// POST /fetchDeck. The form is chosen by the presence of "message".
func (h *DeckHandler) HandleFetchDeck(w http.ResponseWriter, r *http.Request) {
	var req fetchDeckRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeMessage(w, h.logger, http.StatusBadRequest, "Invalid request body")
		return
	}
	// The acquisition outlives a disconnected caller; only its own deadline
	// stops it.
	ctx := context.WithoutCancel(r.Context())
	if req.Message != nil {
		h.handlePush(ctx, w, req.Message)
		return
	}
	h.handleDirect(ctx, w, req)
}

func (h *DeckHandler) handleDirect(ctx context.Context, w http.ResponseWriter, req fetchDeckRequest) {
	if h.cfg.DirectRequireToken && !h.tokenMatches(req.APIToken) {
		writeMessage(w, h.logger, http.StatusUnauthorized, "Unauthorized")
		return
	}
	code := entity.NormalizeDeckCode(req.DeckCode)
	if code.IsZero() {
		writeMessage(w, h.logger, http.StatusBadRequest, "Deck code is required")
		return
	}

	res, err := h.fetcher.Fetch(ctx, deck.Request{Code: code})
	if err != nil {
		h.logger.Error("direct fetch failed", zap.Bool("retryable", deck.Retryable(err)), zap.Error(err))
		writeMessage(w, h.logger, http.StatusInternalServerError, "Failed to fetch deck due to an error: "+err.Error())
		return
	}
	writeJSON(w, h.logger, http.StatusOK, fetchDeckResponse{
		Message:       "Deck fetched successfully",
		URL:           res.Reference.String(),
		AcquisitionID: res.AcquisitionID,
	})
}

func (h *DeckHandler) handlePush(ctx context.Context, w http.ResponseWriter, msg *pushMessage) {
	payload, err := decodePush(msg.Data)
	if err != nil {
		h.logger.Warn("undecodable push", zap.String("message_id", msg.MessageID), zap.Error(err))
		writeMessage(w, h.logger, http.StatusBadRequest, "Invalid push message")
		return
	}
	if !h.tokenMatches(payload.APIToken) {
		writeMessage(w, h.logger, http.StatusUnauthorized, "Unauthorized")
		return
	}
	code := entity.NormalizeDeckCode(payload.Code)
	id := entity.RecordID(strings.TrimSpace(string(payload.DeckCodeID)))
	if code.IsZero() || id.IsZero() {
		writeMessage(w, h.logger, http.StatusBadRequest, "Deck code and Deck ID are required")
		return
	}

	res, err := h.fetcher.Fetch(ctx, deck.Request{Code: code, RecordID: id})
	if err != nil {
		// Every pipeline failure acknowledges with 500.
		h.logger.Error("push fetch failed",
			zap.String("message_id", msg.MessageID),
			zap.Bool("retryable", deck.Retryable(err)),
			zap.Error(err),
		)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.logger.Info("push acknowledged",
		zap.String("message_id", msg.MessageID),
		zap.String("acquisition_id", res.AcquisitionID),
		zap.String("record_id", id.String()),
	)
	w.WriteHeader(http.StatusOK)
}

func (h *DeckHandler) tokenMatches(got string) bool {
	want := h.cfg.PushToken
	if want == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

func decodePush(data string) (pushPayload, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return pushPayload{}, errors.New("empty data")
	}
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		if raw, err = base64.URLEncoding.DecodeString(data); err != nil {
			return pushPayload{}, fmt.Errorf("decode base64: %w", err)
		}
	}
	var p pushPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return pushPayload{}, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
