package render

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/cockroachdb/errors"
	"github.com/gocolly/colly"
	"github.com/gocolly/colly/extensions"
	"github.com/temoto/robotstxt"
	"golang.org/x/net/html/charset"

	"profile_spider/internal/logger"
	"profile_spider/internal/models"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	robotsAgent        = "*"
	maxHops            = 15
)

type HTTPOptions struct {
	Timeout time.Duration
	// UserAgent pins the agent; empty rotates random agents per request.
	UserAgent        string
	RespectRobots    bool
	CloudflareBypass bool
	// Transport replaces the default transport, mostly for tests.
	Transport http.RoundTripper
}

// HTTP renders pages with a plain fetch. Session cookies set with SetCookies
// are sent on every request.
type HTTP struct {
	opts      HTTPOptions
	base      *colly.Collector
	transport http.RoundTripper

	// renders share the collector's client and its redirect hook
	renderMu sync.Mutex

	mu     sync.Mutex
	robots map[string]*robotstxt.Group
}

func NewHTTP(opts HTTPOptions) *HTTP {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultHTTPTimeout
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: opts.Timeout}).DialContext,
			TLSHandshakeTimeout: opts.Timeout,
			DisableKeepAlives:   true,
		}
	}
	if opts.CloudflareBypass {
		transport = cloudflarebp.AddCloudFlareByPass(transport)
	}

	c := colly.NewCollector(colly.AllowURLRevisit())
	// robots.txt is checked per target in Render.
	c.IgnoreRobotsTxt = true
	if opts.UserAgent != "" {
		c.UserAgent = opts.UserAgent
	}
	c.SetRequestTimeout(opts.Timeout)
	c.WithTransport(transport)
	// clones share the base client, whose redirect check reads this field
	c.RedirectHandler = func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxHops {
			return errors.Newf("stopped after %d redirects", maxHops)
		}
		return nil
	}

	return &HTTP{
		opts:      opts,
		base:      c,
		transport: transport,
		robots:    make(map[string]*robotstxt.Group),
	}
}

// SetCookies installs session cookies for the host of rawURL.
func (h *HTTP) SetCookies(rawURL string, cookies []*http.Cookie) error {
	return errors.Wrap(h.base.SetCookies(rawURL, cookies), "set cookies")
}

func (h *HTTP) Render(ctx context.Context, rawURL string) (models.Page, error) {
	if err := ctx.Err(); err != nil {
		return models.Page{}, err
	}
	h.renderMu.Lock()
	defer h.renderMu.Unlock()

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return models.Page{}, errors.Newf("invalid url %q", rawURL)
	}
	if h.opts.RespectRobots && !h.allowed(ctx, u) {
		return models.Page{}, errors.Wrapf(ErrDisallowed, "%s", rawURL)
	}

	c := h.base.Clone()
	if h.opts.UserAgent == "" {
		extensions.RandomUserAgent(c)
	}
	extensions.Referer(c)

	page := models.Page{RequestedURL: rawURL}
	var fetchErr error

	c.OnResponse(func(r *colly.Response) {
		// colly rewrites the request URL as redirects are followed
		page.FinalURL = r.Request.URL.String()
		body, derr := decodeBody(r.Body, r.Headers.Get("Content-Type"))
		if derr != nil {
			fetchErr = derr
			return
		}
		page.HTML = body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = errors.Wrapf(err, "HTTP %d", r.StatusCode)
	})

	if err := c.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = err
	}
	if fetchErr != nil {
		return models.Page{}, errors.Wrapf(fetchErr, "fetch %s", rawURL)
	}
	return page, nil
}

// Close is a no-op; the collector holds no process-level resources.
func (h *HTTP) Close() error {
	return nil
}

// decodeBody converts body to UTF-8. colly already converts bodies whose
// Content-Type names a charset; everything else is sniffed from BOM and
// meta tags.
func decodeBody(body []byte, contentType string) (string, error) {
	if strings.Contains(strings.ToLower(contentType), "charset") {
		return string(body), nil
	}
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return string(body), nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", errors.Wrap(err, "decode body")
	}
	return string(decoded), nil
}

func (h *HTTP) allowed(ctx context.Context, u *url.URL) bool {
	group := h.robotsGroup(ctx, u)
	if group == nil {
		return true
	}
	return group.Test(u.Path)
}

// robotsGroup loads and caches robots.txt per host. A robots.txt that cannot
// be fetched or parsed allows everything; only answers from the host are
// cached, so a failed fetch is retried on the next target.
func (h *HTTP) robotsGroup(ctx context.Context, u *url.URL) *robotstxt.Group {
	h.mu.Lock()
	defer h.mu.Unlock()

	if g, ok := h.robots[u.Host]; ok {
		return g
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	log := logger.Named("render").With(logger.FieldTarget, robotsURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil
	}
	client := &http.Client{Transport: h.transport, Timeout: h.opts.Timeout}
	resp, err := client.Do(req)
	if err != nil {
		log.Warnw("could not load robots.txt, ignoring", logger.FieldError, err)
		return nil
	}
	defer resp.Body.Close()

	var group *robotstxt.Group
	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		log.Warnw("could not parse robots.txt, ignoring", logger.FieldError, err)
	} else {
		agent := h.opts.UserAgent
		if agent == "" {
			agent = robotsAgent
		}
		group = data.FindGroup(agent)
		log.Debugw("robots.txt loaded")
	}
	h.robots[u.Host] = group
	return group
}
