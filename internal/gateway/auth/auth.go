// Package auth verifies identity-provider bearer tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"deckshot/internal/gateway/entity"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

var (
	ErrMissingToken = errors.New("authorization header missing")
	ErrInvalidToken = errors.New("invalid token")
)

type Verifier interface {
	Verify(ctx context.Context, token string) (entity.User, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (entity.User, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (entity.User, error) {
	return f(ctx, token)
}

// DenyAll rejects every token. It stands in when no identity provider is
// configured.
var DenyAll Verifier = VerifierFunc(func(context.Context, string) (entity.User, error) {
	return entity.User{}, fmt.Errorf("%w: no identity provider configured", ErrInvalidToken)
})

// FirebaseVerifier checks Firebase ID tokens, anonymous ones included.
type FirebaseVerifier struct {
	client *fbauth.Client
	now    func() time.Time
}

// NewFirebaseVerifier uses application default credentials.
func NewFirebaseVerifier(ctx context.Context, projectID string) (*FirebaseVerifier, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: strings.TrimSpace(projectID)})
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &FirebaseVerifier{client: client, now: time.Now}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (entity.User, error) {
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return entity.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return UserFromClaims(tok.UID, tok.Claims, v.now()), nil
}

// UserFromClaims maps token claims onto a users row. Missing claims become
// empty strings; createdAt defaults to now.
func UserFromClaims(uid string, claims map[string]any, now time.Time) entity.User {
	return entity.User{
		ID:          entity.NormalizeUserID(uid),
		Email:       claimString(claims, "email"),
		DisplayName: claimString(claims, "displayName", "name"),
		IconURL:     claimString(claims, "photoURL", "picture"),
		ProfileID:   claimString(claims, "profileId"),
		CreatedAt:   firstNonEmpty(claimString(claims, "createdAt"), now.UTC().Format(time.RFC3339)),
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: malformed authorization header", ErrInvalidToken)
	}
	return strings.TrimSpace(token), nil
}

type userKey struct{}

func WithUser(ctx context.Context, u entity.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func UserFromContext(ctx context.Context) (entity.User, bool) {
	u, ok := ctx.Value(userKey{}).(entity.User)
	return u, ok
}

func claimString(claims map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := claims[k].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
