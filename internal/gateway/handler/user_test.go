package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"deckshot/internal/gateway/auth"
	"deckshot/internal/gateway/entity"
	"deckshot/internal/gateway/repository/record"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSaveUser(t *testing.T) {
	store := record.NewMemoryStore()
	h := NewUserHandler(store, zaptest.NewLogger(t))
	u := entity.User{ID: "uid-1", Email: "a@example.com", CreatedAt: "2024-01-01T00:00:00Z"}

	req := httptest.NewRequest(http.MethodPost, "/saveUser", nil)
	req = req.WithContext(auth.WithUser(req.Context(), u))
	rec := httptest.NewRecorder()
	h.HandleSaveUser(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	got, ok := store.User("uid-1")
	require.True(t, ok)
	assert.Equal(t, u, got)

	// A second insert of the same uid hits the primary key.
	rec = httptest.NewRecorder()
	h.HandleSaveUser(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSaveUserStoreFailure(t *testing.T) {
	store := record.NewMemoryStore()
	store.FailWith(errors.New("d1 down"))
	h := NewUserHandler(store, zaptest.NewLogger(t))

	req := httptest.NewRequest(http.MethodPost, "/saveUser", nil)
	req = req.WithContext(auth.WithUser(req.Context(), entity.User{ID: "uid-1"}))
	rec := httptest.NewRecorder()
	h.HandleSaveUser(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSaveUserWithoutIdentity(t *testing.T) {
	h := NewUserHandler(record.NewMemoryStore(), zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.HandleSaveUser(rec, httptest.NewRequest(http.MethodPost, "/saveUser", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}
