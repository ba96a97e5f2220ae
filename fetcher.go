package kompas

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"
)

// FetchOptions adjusts a single fetch.
type FetchOptions struct {
	// Query is appended to the request URL.
	Query url.Values

	// SkipAuthCheck bypasses any authentication precondition the transport
	// enforces. Set on initial document fetches, which must be reachable
	// before authentication.
	SkipAuthCheck bool

	// SkipDiscoveryCheck bypasses any discovery freshness precondition. Set
	// on external document fetches, which are themselves the discovery
	// refresh and cannot require fresh discovery data.
	SkipDiscoveryCheck bool
}

// Fetcher is the transport collaborator: a GET request returning status,
// headers and body. Retry, backoff and auth policy belong to the
// implementation, not to the coordinator.
type Fetcher interface {
	Get(ctx context.Context, url string, opts *FetchOptions) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, url string, opts *FetchOptions) (*Response, error)

// Get implements Fetcher.
func (f FetcherFunc) Get(ctx context.Context, url string, opts *FetchOptions) (*Response, error) {
	return f(ctx, url, opts)
}

// Response is the transport result consumed by the coordinator.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// JSON decodes the response body into v.
func (r *Response) JSON(v interface{}) error {
	return json.Unmarshal(r.Body, v)
}

// HTTPFetcher is the default Fetcher over net/http. The exported hook fields
// let an SDK integration enforce its auth or discovery preconditions before a
// request goes out; a hook returning an error aborts the fetch. FetchOptions
// skip flags suppress the corresponding hook.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string

	// AuthCheck runs before requests that do not set SkipAuthCheck.
	AuthCheck func(ctx context.Context) error

	// DiscoveryCheck runs before requests that do not set SkipDiscoveryCheck.
	DiscoveryCheck func(ctx context.Context) error
}

// NewHTTPFetcher returns an HTTPFetcher with a 30 second request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (f *HTTPFetcher) Get(ctx context.Context, rawURL string, opts *FetchOptions) (*Response, error) {
	if opts == nil {
		opts = &FetchOptions{}
	}

	if !opts.SkipAuthCheck && f.AuthCheck != nil {
		if err := f.AuthCheck(ctx); err != nil {
			return nil, err
		}
	}
	if !opts.SkipDiscoveryCheck && f.DiscoveryCheck != nil {
		if err := f.DiscoveryCheck(ctx); err != nil {
			return nil, err
		}
	}

	target := rawURL
	if len(opts.Query) > 0 {
		parsed, err := url.Parse(rawURL)
		if err != nil {
			return nil, err
		}
		q := parsed.Query()
		for key, values := range opts.Query {
			for _, value := range values {
				q.Add(key, value)
			}
		}
		parsed.RawQuery = q.Encode()
		target = parsed.String()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", target, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	const maxResponseSize = 10 * 1024 * 1024
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       body,
	}, nil
}
