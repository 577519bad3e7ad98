package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/config"
)

// Qdrant is a minimal REST client to a Qdrant cluster. It assumes cosine
// distance.
type Qdrant struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	upsertAttempts int
	upsertDelay    time.Duration
}

// NewQdrant builds the client from config. Upsert retry parameters come
// from the retry section.
func NewQdrant(cfg *config.QdrantConfig, retry *config.RetryConfig) *Qdrant {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	q := &Qdrant{
		url:            cfg.URL,
		apiKey:         cfg.APIKey,
		collection:     cfg.Collection,
		client:         &http.Client{Timeout: timeout},
		upsertAttempts: 3,
		upsertDelay:    5 * time.Second,
	}
	if retry != nil {
		if retry.UpsertAttempts > 0 {
			q.upsertAttempts = retry.UpsertAttempts
		}
		if retry.UpsertDelaySecs > 0 {
			q.upsertDelay = retry.UpsertDelay()
		}
	}
	return q
}

// EnsureCollection creates the collection when missing and no-ops when it
// already exists.
func (q *Qdrant) EnsureCollection(ctx context.Context, vectorSize int) error {
	if vectorSize <= 0 {
		return fmt.Errorf("invalid vector size %d", vectorSize)
	}

	status, err := q.do(ctx, http.MethodGet, fmt.Sprintf("/collections/%s", q.collection), nil, nil)
	if err != nil {
		return err
	}
	switch {
	case status == http.StatusOK:
		log.Info().Str("collection", q.collection).Msg("qdrant collection already exists")
		return nil
	case status != http.StatusNotFound:
		// Auth or server failures must not be mistaken for a missing
		// collection.
		return fmt.Errorf("checking collection %s: status %d", q.collection, status)
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	status, err = q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s", q.collection), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("creating collection %s: status %d", q.collection, status)
	}
	log.Info().Str("collection", q.collection).Int("vector_size", vectorSize).Msg("created qdrant collection")
	return nil
}

// CreateFieldIndex registers a keyword payload index so equality filters on
// the field stay fast.
func (q *Qdrant) CreateFieldIndex(ctx context.Context, field string) error {
	body := map[string]any{
		"field_name":   field,
		"field_schema": "keyword",
	}
	status, err := q.do(ctx, http.MethodPut, fmt.Sprintf("/collections/%s/index", q.collection), body, nil)
	if err != nil {
		return err
	}
	if status >= 300 {
		return fmt.Errorf("creating payload index on %s: status %d", field, status)
	}
	return nil
}

// Upsert writes points with wait=true, retrying connectivity failures a
// bounded number of times with a fixed delay.
func (q *Qdrant) Upsert(ctx context.Context, points []Point) error {
	if len(points) == 0 {
		return nil
	}
	payload := make([]map[string]any, len(points))
	for i, p := range points {
		payload[i] = map[string]any{
			"id":      p.ID,
			"vector":  p.Vector,
			"payload": p.Payload,
		}
	}
	body := map[string]any{"points": payload}
	path := fmt.Sprintf("/collections/%s/points?wait=true", q.collection)

	var lastErr error
	for attempt := 1; attempt <= q.upsertAttempts; attempt++ {
		status, err := q.do(ctx, http.MethodPut, path, body, nil)
		if err == nil && status < 300 {
			return nil
		}
		if err == nil {
			// A definite HTTP rejection is not transient.
			return fmt.Errorf("upserting %d points: status %d", len(points), status)
		}
		lastErr = err
		if attempt == q.upsertAttempts {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("qdrant upsert failed, retrying")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(q.upsertDelay):
		}
	}
	return fmt.Errorf("upserting %d points after %d attempts: %w", len(points), q.upsertAttempts, lastErr)
}

// Search runs a filtered similarity search. Failures propagate immediately;
// query latency does not tolerate blind retries.
func (q *Qdrant) Search(ctx context.Context, vector []float32, bookID string, limit int, scoreThreshold float32) ([]Hit, error) {
	if limit <= 0 {
		limit = 5
	}
	body := map[string]any{
		"vector":          vector,
		"limit":           limit,
		"score_threshold": scoreThreshold,
		"with_payload":    true,
	}
	if bookID != "" {
		body["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "book_id", "match": map[string]any{"value": bookID}},
			},
		}
	}

	var resp struct {
		Result []struct {
			ID      uint64  `json:"id"`
			Score   float32 `json:"score"`
			Payload Payload `json:"payload"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/search", q.collection), body, &resp)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("searching collection %s: status %d", q.collection, status)
	}

	hits := make([]Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, Hit{ID: r.ID, Score: r.Score, Payload: r.Payload})
	}
	return hits, nil
}

// Count reports the number of points stored for a book.
func (q *Qdrant) Count(ctx context.Context, bookID string) (int, error) {
	body := map[string]any{"exact": true}
	if bookID != "" {
		body["filter"] = map[string]any{
			"must": []map[string]any{
				{"key": "book_id", "match": map[string]any{"value": bookID}},
			},
		}
	}
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	status, err := q.do(ctx, http.MethodPost, fmt.Sprintf("/collections/%s/points/count", q.collection), body, &resp)
	if err != nil {
		return 0, err
	}
	if status >= 300 {
		return 0, fmt.Errorf("counting points: status %d", status)
	}
	return resp.Result.Count, nil
}

// Close is a no-op; the underlying HTTP client holds no persistent state
// worth tearing down.
func (q *Qdrant) Close() error { return nil }

// do issues one JSON request. Network-level failures come back wrapped in
// ErrUnavailable; HTTP status handling is the caller's concern.
func (q *Qdrant) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.url+path, reader)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		// Transport-level failures (timeouts, refused connections) are
		// the transient class retry layers care about.
		return 0, unavailable(err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decoding response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
