package handler

import (
	"context"
	"net/http"

	"deckshot/internal/gateway/auth"
	"deckshot/internal/gateway/entity"
	"deckshot/internal/gateway/repository/record"

	"go.uber.org/zap"
)

type UserWriter interface {
	InsertUser(ctx context.Context, u entity.User) (record.QueryResult, error)
}

type UserHandler struct {
	users  UserWriter
	logger *zap.Logger
}

func NewUserHandler(users UserWriter, logger *zap.Logger) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, logger: logger.Named("user_handler")}
}

// HandleSaveUser stores the verified caller. It must sit behind
// middleware.RequireBearer.
func (h *UserHandler) HandleSaveUser(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok || u.ID.IsZero() {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	if _, err := h.users.InsertUser(r.Context(), u); err != nil {
		h.logger.Error("save user failed", zap.String("uid", u.ID.String()), zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	h.logger.Info("user saved", zap.String("uid", u.ID.String()))
	w.WriteHeader(http.StatusOK)
}
