// Package qdrant stores compression summaries as vectors so earlier
// conversations can be recalled by similarity. Qdrant is spoken to
// over its HTTP API directly.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/mkorchagin/context-assistant/internal/core/domain"
)

type MemoryClient struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
}

func NewMemoryClient(baseURL, collection string) *MemoryClient {
	return &MemoryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (c *MemoryClient) IndexSummary(ctx context.Context, summary domain.MemorySummary, vector []float64) error {
	if len(vector) == 0 {
		return nil
	}
	if err := c.ensureCollection(ctx, len(vector)); err != nil {
		return err
	}

	body := map[string]any{
		"points": []map[string]any{
			{
				"id":     summary.ID,
				"vector": vector,
				"payload": map[string]any{
					"summary_id":      summary.ID,
					"conversation_id": summary.ConversationID,
					"message_count":   summary.MessageCount,
					"text":            summary.Summary,
					"created_at":      summary.CreatedAt.Format(time.RFC3339),
				},
			},
		},
	}

	path := fmt.Sprintf("/collections/%s/points?wait=true", c.collection)
	return c.do(ctx, http.MethodPut, path, body, nil, "memory upsert")
}

func (c *MemoryClient) SearchSummaries(ctx context.Context, queryVector []float64, limit int) ([]domain.MemoryHit, error) {
	if len(queryVector) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 4
	}

	body := map[string]any{
		"query":        queryVector,
		"limit":        limit,
		"with_payload": true,
	}

	var response struct {
		Result struct {
			Points []queryPoint `json:"points"`
		} `json:"result"`
	}
	path := fmt.Sprintf("/collections/%s/points/query", c.collection)
	if err := c.do(ctx, http.MethodPost, path, body, &response, "memory query"); err != nil {
		return nil, err
	}

	out := make([]domain.MemoryHit, 0, len(response.Result.Points))
	for _, p := range response.Result.Points {
		hit := domain.MemoryHit{
			Score: p.Score,
			Summary: domain.MemorySummary{
				ID:             getStringPayload(p.Payload, "summary_id"),
				ConversationID: getStringPayload(p.Payload, "conversation_id"),
				MessageCount:   getIntPayload(p.Payload, "message_count"),
				Summary:        getStringPayload(p.Payload, "text"),
			},
		}
		if created, err := time.Parse(time.RFC3339, getStringPayload(p.Payload, "created_at")); err == nil {
			hit.Summary.CreatedAt = created
		}
		out = append(out, hit)
	}
	return out, nil
}

type queryPoint struct {
	Score   float64        `json:"score"`
	Payload map[string]any `json:"payload"`
}

type statusError struct {
	code int
	msg  string
}

func (e *statusError) Error() string { return e.msg }

func (c *MemoryClient) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	body := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}

	path := fmt.Sprintf("/collections/%s", c.collection)
	err := c.do(ctx, http.MethodPut, path, body, nil, "memory ensure collection")
	var statusErr *statusError
	if err != nil {
		// An existing collection answers 409; that is success here.
		if !errors.As(err, &statusErr) || statusErr.code != http.StatusConflict {
			return err
		}
	}

	c.ensureMu.Lock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
	c.ensureMu.Unlock()
	return nil
}

func (c *MemoryClient) do(ctx context.Context, method, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &statusError{
			code: resp.StatusCode,
			msg:  fmt.Sprintf("%s status: %s: %s", operation, resp.Status, strings.TrimSpace(string(respBody))),
		}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
	}
	return nil
}

func getStringPayload(payload map[string]any, key string) string {
	if v, ok := payload[key].(string); ok {
		return v
	}
	return ""
}

func getIntPayload(payload map[string]any, key string) int {
	switch v := payload[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
