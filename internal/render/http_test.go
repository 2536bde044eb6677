package render

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProfileServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	mux.HandleFunc("/in/alice/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><head><title>Alice | LinkedIn</title></head><body><h1>Alice</h1></body></html>`))
	})
	mux.HandleFunc("/in/bob/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/authwall?trk=bob", http.StatusFound)
	})
	mux.HandleFunc("/authwall", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>Sign in to continue</body></html>`))
	})
	mux.HandleFunc("/in/latin/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><head><meta charset=\"iso-8859-1\"></head><body><h1>Caf\xe9</h1></body></html>"))
	})
	mux.HandleFunc("/private/carol/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>secret</body></html>`))
	})
	mux.HandleFunc("/gone/", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	mux.HandleFunc("/cookie/", func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("li_at")
		if err != nil {
			w.Write([]byte(`<html><body>anonymous</body></html>`))
			return
		}
		w.Write([]byte(`<html><body>session ` + c.Value + `</body></html>`))
	})
	mux.HandleFunc("/hop/{n}", func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.PathValue("n"))
		if n == 0 {
			w.Write([]byte(`<html><body>landed</body></html>`))
			return
		}
		http.Redirect(w, r, "/hop/"+strconv.Itoa(n-1), http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// flakyRobots fails the first robots.txt request and passes everything else
// through.
type flakyRobots struct {
	mu     sync.Mutex
	failed bool
	next   http.RoundTripper
}

func (f *flakyRobots) RoundTrip(req *http.Request) (*http.Response, error) {
	f.mu.Lock()
	fail := !f.failed && strings.HasSuffix(req.URL.Path, "/robots.txt")
	if fail {
		f.failed = true
	}
	f.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return f.next.RoundTrip(req)
}

func TestHTTPRender(t *testing.T) {
	srv := newProfileServer(t)
	h := NewHTTP(HTTPOptions{Timeout: 5 * time.Second})
	defer h.Close()

	page, err := h.Render(context.Background(), srv.URL+"/in/alice/")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/in/alice/", page.RequestedURL)
	assert.Equal(t, srv.URL+"/in/alice/", page.FinalURL)
	assert.Contains(t, page.HTML, "<h1>Alice</h1>")
}

func TestHTTPRenderFollowsRedirect(t *testing.T) {
	srv := newProfileServer(t)
	h := NewHTTP(HTTPOptions{Timeout: 5 * time.Second})

	page, err := h.Render(context.Background(), srv.URL+"/in/bob/")
	require.NoError(t, err)
	assert.Contains(t, page.FinalURL, "/authwall")
	assert.Contains(t, page.HTML, "Sign in")
}

func TestHTTPRenderRedirectCap(t *testing.T) {
	srv := newProfileServer(t)
	h := NewHTTP(HTTPOptions{Timeout: 5 * time.Second})

	page, err := h.Render(context.Background(), srv.URL+"/hop/12")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/hop/0", page.FinalURL)
	assert.Contains(t, page.HTML, "landed")

	_, err = h.Render(context.Background(), srv.URL+"/hop/20")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 15 redirects")
}

func TestHTTPRenderDecodesCharset(t *testing.T) {
	srv := newProfileServer(t)
	h := NewHTTP(HTTPOptions{Timeout: 5 * time.Second})

	page, err := h.Render(context.Background(), srv.URL+"/in/latin/")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "Café")
}

func TestHTTPRenderRespectsRobots(t *testing.T) {
	srv := newProfileServer(t)

	h := NewHTTP(HTTPOptions{Timeout: 5 * time.Second, RespectRobots: true})
	_, err := h.Render(context.Background(), srv.URL+"/private/carol/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDisallowed))

	_, err = h.Render(context.Background(), srv.URL+"/in/alice/")
	assert.NoError(t, err)

	h = NewHTTP(HTTPOptions{Timeout: 5 * time.Second})
	page, err := h.Render(context.Background(), srv.URL+"/private/carol/")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "secret")
}

func TestHTTPRenderRetriesRobotsAfterFetchError(t *testing.T) {
	srv := newProfileServer(t)
	h := NewHTTP(HTTPOptions{
		Timeout:       5 * time.Second,
		RespectRobots: true,
		Transport:     &flakyRobots{next: http.DefaultTransport},
	})

	// robots.txt unreachable: allowed, but nothing is cached
	_, err := h.Render(context.Background(), srv.URL+"/private/carol/")
	require.NoError(t, err)

	_, err = h.Render(context.Background(), srv.URL+"/private/carol/")
	assert.True(t, errors.Is(err, ErrDisallowed))
}

func TestHTTPRenderStatusError(t *testing.T) {
	srv := newProfileServer(t)
	h := NewHTTP(HTTPOptions{Timeout: 5 * time.Second})

	_, err := h.Render(context.Background(), srv.URL+"/gone/")
	assert.Error(t, err)
}

func TestHTTPRenderSendsSessionCookie(t *testing.T) {
	srv := newProfileServer(t)
	h := NewHTTP(HTTPOptions{Timeout: 5 * time.Second})
	require.NoError(t, h.SetCookies(srv.URL, []*http.Cookie{{Name: "li_at", Value: "tok123", Path: "/"}}))

	page, err := h.Render(context.Background(), srv.URL+"/cookie/")
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "session tok123")
}

func TestHTTPRenderCancelled(t *testing.T) {
	h := NewHTTP(HTTPOptions{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Render(ctx, "http://127.0.0.1:1/in/x/")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPRenderInvalidURL(t *testing.T) {
	_, err := NewHTTP(HTTPOptions{}).Render(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestDecodeBody(t *testing.T) {
	got, err := decodeBody([]byte("already utf-8 é"), "text/html; charset=windows-1252")
	require.NoError(t, err)
	assert.Equal(t, "already utf-8 é", got)

	got, err = decodeBody([]byte("<meta charset=\"windows-1252\">caf\xe9"), "text/html")
	require.NoError(t, err)
	assert.Contains(t, got, "café")
}
