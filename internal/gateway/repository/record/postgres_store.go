package record

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"deckshot/internal/gateway/entity"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresStore runs the same statements against a Postgres database whose
// deckCodes and users tables use unquoted (folded) column names.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres opens and pings dsn with the pgx driver.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}
	return NewPostgresStore(db), nil
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresStore) UpdateDeckImage(ctx context.Context, id entity.RecordID, ref entity.ArtifactReference, code entity.DeckCode) (QueryResult, error) {
	if id.IsZero() {
		return QueryResult{}, fmt.Errorf("record id is required")
	}
	return s.exec(ctx, updateDeckImageStatement(id, ref, code, dollar))
}

func (s *PostgresStore) InsertUser(ctx context.Context, u entity.User) (QueryResult, error) {
	if u.ID.IsZero() {
		return QueryResult{}, fmt.Errorf("uid is required")
	}
	return s.exec(ctx, insertUserStatement(u, dollar))
}

func (s *PostgresStore) exec(ctx context.Context, stmt statement) (QueryResult, error) {
	if s == nil || s.db == nil {
		return QueryResult{}, fmt.Errorf("db is nil")
	}
	res, err := s.db.ExecContext(ctx, stmt.SQL, stmt.Params...)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: rows affected: %v", ErrRemote, err)
	}
	return QueryResult{Success: true, RowsAffected: n}, nil
}

func dollar(i int) string { return "$" + strconv.Itoa(i) }
