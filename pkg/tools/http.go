package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/harun/factkit/pkg/tool"
)

const maxErrorBody = 4 * 1024

// fetcher issues outbound requests for the network tools.
type fetcher struct {
	client    *http.Client
	userAgent string
}

func newFetcher(opts Options) *fetcher {
	opts = opts.withDefaults()
	return &fetcher{client: opts.HTTPClient, userAgent: opts.UserAgent}
}

// get performs the request and returns the response for 2xx statuses.
// Other statuses come back as a *tool.UpstreamError.
func (f *fetcher) get(ctx context.Context, service, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return f.do(service, req)
}

func (f *fetcher) do(service string, req *http.Request) (*http.Response, error) {
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", service, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &tool.UpstreamError{Service: service, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return resp, nil
}

func (f *fetcher) getJSON(ctx context.Context, service, url string, out interface{}) error {
	resp, err := f.get(ctx, service, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", service, err)
	}
	return nil
}

// postJSON sends body as JSON and decodes the 2xx response into out.
func (f *fetcher) postJSON(ctx context.Context, service, url string, header http.Header, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode %s request: %w", service, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.do(service, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", service, err)
	}
	return nil
}
