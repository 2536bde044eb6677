package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"

	"profile_spider/internal/logger"
	"profile_spider/internal/models"
)

type BrowserOptions struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	UserAgent    string
	UserDataDir  string
	ExecPath     string
	Proxy        string
	// PageLoadWait is the settle time after navigation and after each
	// scroll step.
	PageLoadWait time.Duration
	// Timeout bounds one Render call; zero means no limit.
	Timeout time.Duration
}

// Browser renders pages in a single Chrome tab shared by every call.
type Browser struct {
	opts BrowserOptions

	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	closeOnce   sync.Once

	mu sync.Mutex
}

// NewBrowser starts Chrome and opens a blank tab. Failure to start is marked
// ErrRendererUnavailable.
func NewBrowser(parent context.Context, opts BrowserOptions) (*Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.WindowWidth > 0 && opts.WindowHeight > 0 {
		allocOpts = append(allocOpts, chromedp.WindowSize(opts.WindowWidth, opts.WindowHeight))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.UserDataDir != "" {
		allocOpts = append(allocOpts, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, allocOpts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(tabCtx, chromedp.Navigate("about:blank")); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, errors.Mark(errors.Wrap(err, "start chrome"), ErrRendererUnavailable)
	}

	logger.Logger.Infow("browser started",
		logger.FieldRenderer, KindBrowser,
		"headless", opts.Headless,
	)
	return &Browser{
		opts:        opts,
		ctx:         tabCtx,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
	}, nil
}

// Context is the tab context, for actions such as logging in that must run
// in the same session as rendering.
func (b *Browser) Context() context.Context {
	return b.ctx
}

// Render navigates to url, scrolls to trigger lazy sections and returns the
// page source with the URL Chrome ended up on.
func (b *Browser) Render(ctx context.Context, url string) (models.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	runCtx := b.ctx
	var cancel context.CancelFunc
	if b.opts.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, b.opts.Timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	page := models.Page{RequestedURL: url}
	wait := b.opts.PageLoadWait

	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(wait),
		scrollTo("document.body.scrollHeight/2"),
		chromedp.Sleep(wait*2/3),
		scrollTo("document.body.scrollHeight"),
		chromedp.Sleep(wait*2/3),
		chromedp.Location(&page.FinalURL),
		chromedp.Title(&page.Title),
		chromedp.OuterHTML("html", &page.HTML, chromedp.ByQuery),
	)
	if err != nil {
		return models.Page{}, errors.Wrapf(err, "render %s", url)
	}
	return page, nil
}

func scrollTo(expr string) chromedp.Action {
	return chromedp.Evaluate(fmt.Sprintf("window.scrollTo(0, %s);", expr), nil)
}

// Close shuts the tab and the browser process. It is safe to call more than
// once.
func (b *Browser) Close() error {
	b.closeOnce.Do(func() {
		b.cancelTab()
		b.cancelAlloc()
		logger.Logger.Infow("browser closed", logger.FieldRenderer, KindBrowser)
	})
	return nil
}
