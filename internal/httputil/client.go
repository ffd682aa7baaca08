// Package httputil provides the shared throttled HTTP client and input
// sanitization helpers.
package httputil

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"stream2media/internal/capture"
	"stream2media/internal/logger"
)

// ErrNoResponse is returned for transport failures, timeouts and non-2xx statuses.
var ErrNoResponse = errors.New("no response")

// DefaultUserAgent emulates a common desktop browser.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodySize caps how much of a response body is read into memory.
const maxBodySize = 32 << 20

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	MinHostDelay time.Duration
	UserAgent    string
	Recorder     *capture.Recorder
}

// Client issues requests with shared default headers, a pooled transport and
// a minimum spacing between requests to the same host.
type Client struct {
	http     *http.Client
	headers  http.Header
	minDelay time.Duration
	recorder *capture.Recorder

	mu    sync.Mutex
	hosts map[string]*rate.Limiter
}

// NewClient creates a client with secure transport defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	headers := http.Header{}
	headers.Set("User-Agent", opts.UserAgent)
	headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	headers.Set("Accept-Language", "uk-UA,uk;q=0.9,en-US;q=0.8,en;q=0.7")

	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				ForceAttemptHTTP2:   true,
				MaxIdleConns:        50,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		headers:  headers,
		minDelay: opts.MinHostDelay,
		recorder: opts.Recorder,
		hosts:    make(map[string]*rate.Limiter),
	}
}

// Response is a fully read HTTP response.
type Response struct {
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// JSON decodes the body into v.
func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return errors.Wrapf(err, "decoding JSON from %s", r.URL)
	}
	return nil
}

// Document parses the body as HTML.
func (r *Response) Document() (*goquery.Document, error) {
	return NewDocument(r.Text())
}

// NewDocument parses an HTML string or fragment.
func NewDocument(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errors.Wrap(err, "parsing HTML")
	}
	return doc, nil
}

// Get performs a GET request. headers override the defaults.
func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, nil, headers)
}

// PostForm performs a form-encoded POST request.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, headers map[string]string) (*Response, error) {
	merged := map[string]string{"Content-Type": "application/x-www-form-urlencoded; charset=UTF-8"}
	for k, v := range headers {
		merged[k] = v
	}
	return c.do(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), merged)
}

func (c *Client) do(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) (*Response, error) {
	log := logger.From(ctx)

	if err := ValidateURL(rawURL); err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	u, _ := url.Parse(rawURL)

	if err := c.wait(ctx, u.Host); err != nil {
		return nil, errors.Wrapf(ErrNoResponse, "%s %s: %v", method, rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("request failed", "method", method, "url", rawURL, "err", err)
		c.record(ctx, rawURL, 0, http.Header{}, nil, err)
		return nil, errors.Wrapf(ErrNoResponse, "%s %s: %v", method, rawURL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		log.Warn("reading response failed", "url", rawURL, "err", err)
		return nil, errors.Wrapf(ErrNoResponse, "reading %s: %v", rawURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn("unexpected status", "method", method, "url", rawURL, "status", resp.StatusCode)
		c.record(ctx, rawURL, resp.StatusCode, resp.Header, data, nil)
		return nil, errors.Wrapf(ErrNoResponse, "%s %s: status %d", method, rawURL, resp.StatusCode)
	}

	c.record(ctx, rawURL, resp.StatusCode, resp.Header, data, nil)
	log.Debug("response", "method", method, "url", rawURL, "status", resp.StatusCode, "bytes", len(data))

	return &Response{
		URL:        resp.Request.URL.String(),
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
	}, nil
}

// Download streams the body of a GET request into w without the in-memory
// size cap. Responses are not captured.
func (c *Client) Download(ctx context.Context, rawURL string, w io.Writer) (int64, error) {
	if err := ValidateURL(rawURL); err != nil {
		return 0, errors.Wrap(err, "invalid URL")
	}
	u, _ := url.Parse(rawURL)

	if err := c.wait(ctx, u.Host); err != nil {
		return 0, errors.Wrapf(ErrNoResponse, "GET %s: %v", rawURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, errors.Wrap(err, "creating request")
	}
	for k, vs := range c.headers {
		req.Header[k] = append([]string(nil), vs...)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrapf(ErrNoResponse, "GET %s: %v", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, errors.Wrapf(ErrNoResponse, "GET %s: status %d", rawURL, resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, errors.Wrapf(ErrNoResponse, "reading %s: %v", rawURL, err)
	}
	return n, nil
}

// wait blocks until a request to host is allowed. The lock only covers the
// limiter lookup; the limiter itself serializes concurrent waiters.
func (c *Client) wait(ctx context.Context, host string) error {
	if c.minDelay <= 0 {
		return nil
	}

	c.mu.Lock()
	lim, ok := c.hosts[host]
	if !ok {
		lim = rate.NewLimiter(rate.Every(c.minDelay), 1)
		c.hosts[host] = lim
	}
	c.mu.Unlock()

	return lim.Wait(ctx)
}

func (c *Client) record(ctx context.Context, rawURL string, status int, header http.Header, body []byte, reqErr error) {
	if c.recorder == nil {
		return
	}
	if _, err := c.recorder.Record(ctx, rawURL, status, header, body, reqErr); err != nil {
		logger.From(ctx).Debug("capture failed", "err", err)
	}
}
