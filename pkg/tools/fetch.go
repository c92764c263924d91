package tools

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/harun/factkit/pkg/tool"
	"github.com/harun/factkit/pkg/toolresult"
)

const (
	defaultMaxBytes = 1_000_000
	maxMaxBytes     = 5_000_000
	maxFetchTimeout = 30
)

// Page is the page_fetch payload. Text is the readable text for HTML pages
// and the raw body otherwise.
type Page struct {
	URL         string `json:"url"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Text        string `json:"text"`
	Truncated   bool   `json:"truncated"`
}

// PageFetch downloads a page with a byte cap.
type PageFetch struct {
	tool.Base
	fetch          *fetcher
	defaultTimeout int
}

var pageFetchSchema = tool.MustSchema(false,
	tool.Parameter{Name: "url", Type: "string", Description: "http or https URL", Required: true},
	tool.Parameter{Name: "max_bytes", Type: "integer", Description: "Body size cap", Minimum: tool.Bound(1), Maximum: tool.Bound(maxMaxBytes), Default: defaultMaxBytes},
	tool.Parameter{Name: "timeout", Type: "integer", Description: "Timeout in seconds", Minimum: tool.Bound(1), Maximum: tool.Bound(maxFetchTimeout)},
)

func NewPageFetch(opts Options) *PageFetch {
	opts = opts.withDefaults()
	timeout := int(opts.HTTPTimeout / time.Second)
	if timeout < 1 || timeout > maxFetchTimeout {
		timeout = int(defaultHTTPTimeout / time.Second)
	}
	return &PageFetch{
		Base: tool.Base{
			ToolName:    "page_fetch",
			Description: "Fetch a web page and return its text.",
		},
		fetch:          newFetcher(opts),
		defaultTimeout: timeout,
	}
}

func (t *PageFetch) Schema() *tool.Schema { return pageFetchSchema }

func (t *PageFetch) ValidateArgs(args tool.Args) (tool.Args, error) {
	u := args.TrimmedString("url")
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return nil, tool.NewArgError("url must be http or https")
	}

	maxBytes := defaultMaxBytes
	if args.Has("max_bytes") && args["max_bytes"] != nil {
		n, ok := args.Int("max_bytes")
		if !ok || n < 1 || n > maxMaxBytes {
			return nil, tool.ArgErrorf("max_bytes must be 1..%d", maxMaxBytes)
		}
		maxBytes = n
	}

	timeout := t.defaultTimeout
	if args.Has("timeout") && args["timeout"] != nil {
		n, ok := args.Int("timeout")
		if !ok || n < 1 || n > maxFetchTimeout {
			return nil, tool.ArgErrorf("timeout must be 1..%d", maxFetchTimeout)
		}
		timeout = n
	}

	return tool.Args{"url": u, "max_bytes": maxBytes, "timeout": timeout}, nil
}

func (t *PageFetch) Execute(ctx context.Context, args tool.Args) (toolresult.Envelope[Page], error) {
	u, _ := args.String("url")
	maxBytes, _ := args.Int("max_bytes")
	timeout, _ := args.Int("timeout")

	ctx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	resp, err := t.fetch.get(ctx, "page", u)
	if err != nil {
		return fetchFailure[Page](err), nil
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, int64(maxBytes)+1))
	if err != nil {
		return fetchFailure[Page](err), nil
	}
	truncated := len(body) > maxBytes
	if truncated {
		body = body[:maxBytes]
	}

	contentType := resp.Header.Get("Content-Type")
	text := strings.ToValidUTF8(string(body), "�")
	if strings.Contains(strings.ToLower(contentType), "html") {
		text = htmlToText(text)
	}

	return toolresult.Success(Page{
		URL:         u,
		Status:      resp.StatusCode,
		ContentType: contentType,
		Text:        text,
		Truncated:   truncated,
	}), nil
}
