package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goforj/datacache"
)

const maxResponseBytes = 8 << 20

var errInvalidJSON = errors.New("response is not valid JSON")

func httpFetch(client *http.Client, url string) datacache.FetchFunc[json.RawMessage] {
	return func(ctx context.Context) (json.RawMessage, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
		if err != nil {
			return nil, fmt.Errorf("GET %s: read body: %w", url, err)
		}
		if !json.Valid(body) {
			return nil, fmt.Errorf("GET %s: %w", url, errInvalidJSON)
		}
		return json.RawMessage(body), nil
	}
}

// isEmptyJSON treats an empty body and a JSON null as "no data".
func isEmptyJSON(v json.RawMessage) bool {
	trimmed := bytes.TrimSpace(v)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
