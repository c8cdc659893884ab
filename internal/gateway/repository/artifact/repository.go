package artifact

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"deckshot/internal/gateway/entity"
)

const (
	ContentTypePNG = "image/png"

	keyPrefix = "screenshots/"
	keySuffix = "_final.png"
)

// Store uploads artifacts under deterministic keys. A second Put for the
// same key replaces the first.
type Store interface {
	Put(ctx context.Context, key string, content []byte, contentType string) (entity.ArtifactReference, error)
}

var ErrNotFound = errors.New("artifact not found")

// ObjectKey derives the storage key for a deck code. The code is path
// escaped, so distinct codes never share a key and a code cannot leave the
// prefix.
func ObjectKey(code entity.DeckCode) string {
	return keyPrefix + url.PathEscape(code.String()) + keySuffix
}

func normalizeKey(key string) string {
	return strings.TrimLeft(strings.TrimSpace(key), "/")
}
