package offline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/forgefit/forge/internal/metrics"
)

const defaultMaxBodyBytes = 32 * megabyte

// ErrResponseTooLarge is returned for bodies over the buffering limit. Such
// responses are streamed through uncached instead.
var ErrResponseTooLarge = errors.New("upstream response too large to buffer")

// upstream fetches from the origin server into buffered responses.
type upstream struct {
	base    *url.URL
	client  *http.Client
	maxBody int64
	metrics *metrics.Manager
}

func newUpstream(base *url.URL, timeout time.Duration, maxBody int64, m *metrics.Manager) *upstream {
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &upstream{
		base:    base,
		maxBody: maxBody,
		client: &http.Client{
			Timeout:   timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		metrics: m,
	}
}

// fetch GETs requestURI from the origin, forwarding header.
func (u *upstream) fetch(ctx context.Context, requestURI string, header http.Header) (*Response, error) {
	target, err := u.base.Parse(requestURI)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", requestURI, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for _, k := range hopHeaders {
		req.Header.Del(k)
	}
	// Conditional requests would return 304s that cannot be cached.
	req.Header.Del("If-None-Match")
	req.Header.Del("If-Modified-Since")

	start := time.Now()
	resp, err := u.client.Do(req)
	if u.metrics != nil {
		u.metrics.HistogramUpstreamDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength > u.maxBody {
		return nil, fmt.Errorf("%s: %w", requestURI, ErrResponseTooLarge)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, u.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", requestURI, err)
	}
	if int64(len(body)) > u.maxBody {
		return nil, fmt.Errorf("%s: %w", requestURI, ErrResponseTooLarge)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header.Clone(), Body: body}, nil
}

func (u *upstream) close() {
	u.client.CloseIdleConnections()
}
