// Package record writes to the externally owned relational store: deck
// image references and user rows.
package record

import (
	"context"
	"encoding/json"
	"errors"

	"deckshot/internal/gateway/entity"
)

// ErrRemote wraps every transport, auth or query failure from the store.
var ErrRemote = errors.New("record store request failed")

// QueryResult is the raw outcome of one statement. Zero RowsAffected is
// reported, not treated as an error.
type QueryResult struct {
	Success      bool            `json:"success"`
	RowsAffected int64           `json:"rowsAffected"`
	Raw          json.RawMessage `json:"raw,omitempty"`
}

type Store interface {
	// UpdateDeckImage sets imageUrl, and code when non-empty, on one deck
	// record.
	UpdateDeckImage(ctx context.Context, id entity.RecordID, ref entity.ArtifactReference, code entity.DeckCode) (QueryResult, error)
	InsertUser(ctx context.Context, u entity.User) (QueryResult, error)
}

type statement struct {
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

// updateDeckImageStatement renders the single conditional write. The
// placeholder style is supplied by the backend.
func updateDeckImageStatement(id entity.RecordID, ref entity.ArtifactReference, code entity.DeckCode, ph func(int) string) statement {
	if code.IsZero() {
		return statement{
			SQL:    `UPDATE deckCodes SET imageUrl = ` + ph(1) + ` WHERE id = ` + ph(2),
			Params: []any{ref.String(), id.String()},
		}
	}
	return statement{
		SQL:    `UPDATE deckCodes SET imageUrl = ` + ph(1) + `, code = ` + ph(2) + ` WHERE id = ` + ph(3),
		Params: []any{ref.String(), code.String(), id.String()},
	}
}

func insertUserStatement(u entity.User, ph func(int) string) statement {
	return statement{
		SQL: `INSERT INTO users (uid, email, displayName, iconUrl, profileId, createdAt) VALUES (` +
			ph(1) + `, ` + ph(2) + `, ` + ph(3) + `, ` + ph(4) + `, ` + ph(5) + `, ` + ph(6) + `)`,
		Params: []any{u.ID.String(), u.Email, u.DisplayName, u.IconURL, u.ProfileID, u.CreatedAt},
	}
}

func questionMark(int) string { return "?" }
