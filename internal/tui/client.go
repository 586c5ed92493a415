package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mattjoyce/hookbox/internal/logstore"
)

// Fetcher returns the most recent log entries for an endpoint, newest first.
type Fetcher func(ctx context.Context) ([]logstore.Entry, error)

type logsPayload struct {
	Logs []logstore.Entry `json:"logs"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// HTTPFetcher polls GET /endpoints/{id}/logs on a running hookbox server.
func HTTPFetcher(apiURL, apiKey, endpointID string, limit int) Fetcher {
	client := &http.Client{Timeout: 5 * time.Second}
	base := strings.TrimRight(apiURL, "/")

	return func(ctx context.Context) ([]logstore.Entry, error) {
		u := fmt.Sprintf("%s/endpoints/%s/logs", base, url.PathEscape(endpointID))
		if limit > 0 {
			u += "?limit=" + strconv.Itoa(limit)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiKey)
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			var e errorPayload
			if err := json.NewDecoder(resp.Body).Decode(&e); err == nil && e.Error != "" {
				return nil, fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
			}
			return nil, fmt.Errorf("server returned %d", resp.StatusCode)
		}

		var p logsPayload
		if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
			return nil, fmt.Errorf("decode logs: %w", err)
		}
		return p.Logs, nil
	}
}
