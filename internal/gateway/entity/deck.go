package entity

import "strings"

// DeckCode identifies a deck on the third-party site. The site is the only
// validator of its format.
type DeckCode string

func NormalizeDeckCode(raw string) DeckCode {
	return DeckCode(strings.TrimSpace(raw))
}

func (c DeckCode) String() string {
	return strings.TrimSpace(string(c))
}

func (c DeckCode) IsZero() bool {
	return c.String() == ""
}

// RecordID is the primary key of a deck record in the relational store.
type RecordID string

func (id RecordID) String() string {
	return strings.TrimSpace(string(id))
}

func (id RecordID) IsZero() bool {
	return id.String() == ""
}

// ArtifactReference is the public location of an uploaded deck image.
type ArtifactReference string

func (r ArtifactReference) String() string { return string(r) }
