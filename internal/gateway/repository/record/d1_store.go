package record

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deckshot/internal/gateway/entity"
)

const d1MaxErrorBody = 4096

// D1Store posts statements to the Cloudflare D1 query API.
type D1Store struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewD1Store(endpoint, token string, client *http.Client) (*D1Store, error) {
	endpoint = strings.TrimSpace(endpoint)
	token = strings.TrimSpace(token)
	if endpoint == "" {
		return nil, fmt.Errorf("d1 endpoint is required")
	}
	if token == "" {
		return nil, fmt.Errorf("d1 api token is required")
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &D1Store{endpoint: endpoint, token: token, client: client}, nil
}

type d1Response struct {
	Success bool `json:"success"`
	Errors  []struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
	Result []struct {
		Success bool `json:"success"`
		Meta    struct {
			Changes int64 `json:"changes"`
		} `json:"meta"`
	} `json:"result"`
}

func (s *D1Store) UpdateDeckImage(ctx context.Context, id entity.RecordID, ref entity.ArtifactReference, code entity.DeckCode) (QueryResult, error) {
	if id.IsZero() {
		return QueryResult{}, fmt.Errorf("record id is required")
	}
	return s.exec(ctx, updateDeckImageStatement(id, ref, code, questionMark))
}

func (s *D1Store) InsertUser(ctx context.Context, u entity.User) (QueryResult, error) {
	if u.ID.IsZero() {
		return QueryResult{}, fmt.Errorf("uid is required")
	}
	return s.exec(ctx, insertUserStatement(u, questionMark))
}

func (s *D1Store) exec(ctx context.Context, stmt statement) (QueryResult, error) {
	body, err := json.Marshal(stmt)
	if err != nil {
		return QueryResult{}, fmt.Errorf("encode statement: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: build request: %v", ErrRemote, err)
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: %v", ErrRemote, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return QueryResult{}, fmt.Errorf("%w: read response: %v", ErrRemote, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return QueryResult{}, fmt.Errorf("%w: status %d: %s", ErrRemote, resp.StatusCode, truncate(raw, d1MaxErrorBody))
	}

	var decoded d1Response
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return QueryResult{}, fmt.Errorf("%w: decode response: %v", ErrRemote, err)
	}
	if !decoded.Success {
		msgs := make([]string, 0, len(decoded.Errors))
		for _, e := range decoded.Errors {
			msgs = append(msgs, fmt.Sprintf("%d %s", e.Code, e.Message))
		}
		return QueryResult{}, fmt.Errorf("%w: %s", ErrRemote, strings.Join(msgs, "; "))
	}

	out := QueryResult{Success: true, Raw: json.RawMessage(raw)}
	for _, r := range decoded.Result {
		out.RowsAffected += r.Meta.Changes
	}
	return out, nil
}

func truncate(raw []byte, n int) string {
	if len(raw) <= n {
		return string(raw)
	}
	return string(raw[:n]) + "..."
}
