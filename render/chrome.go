package render

import (
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	fetchTimeout    = 90 * time.Second
	discoverTimeout = 60 * time.Second
	settleDelay     = 3 * time.Second
)

// ChromeClient renders pages with a headless Chrome instance driven over the
// DevTools protocol. A rate limiter spaces navigations so one client never
// hammers a source.
type ChromeClient struct {
	allocCtx      context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	limiter       *rate.Limiter
	log           *zap.Logger
}

// NewChromeClient starts a Chrome allocator and returns a ready client.
// rateLimitMs is the minimum spacing between navigations; chromeBin overrides
// binary auto-detection when non-empty.
func NewChromeClient(chromeBin string, rateLimitMs int, log *zap.Logger) (*ChromeClient, error) {
	if chromeBin == "" {
		chromeBin = findChromeBinary()
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-setuid-sandbox", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent("Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 "+
			"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	)
	if chromeBin != "" {
		opts = append(opts, chromedp.ExecPath(chromeBin))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	// Suppress chromedp log noise
	silentCtx, cancelBrowser := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(string, ...interface{}) {}))

	every := time.Duration(rateLimitMs) * time.Millisecond
	limit := rate.Inf
	if every > 0 {
		limit = rate.Every(every)
	}

	return &ChromeClient{
		allocCtx:      silentCtx,
		cancelBrowser: cancelBrowser,
		cancelAlloc:   cancelAlloc,
		limiter:       rate.NewLimiter(limit, 1),
		log:           log.Named("chrome"),
	}, nil
}

// Fetch navigates to url and returns the rendered document.
func (c *ChromeClient) Fetch(ctx context.Context, url string) (*Page, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, fetchTimeout)
	defer cancelTimeout()
	stop := propagateCancel(ctx, cancel)
	defer stop()

	var content string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settleDelay),
		chromedp.OuterHTML("html", &content, chromedp.ByQuery),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Wrapf(err, "render: fetch %s", url)
	}

	c.log.Debug("page fetched", zap.String("url", url), zap.Int("bytes", len(content)))
	return &Page{URL: url, Content: content}, nil
}

// Discover navigates to url and collects the href (or value, for dropdown
// options) of every element matching selector, in document order.
func (c *ChromeClient) Discover(ctx context.Context, url, selector string) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	runCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()
	runCtx, cancelTimeout := context.WithTimeout(runCtx, discoverTimeout)
	defer cancelTimeout()
	stop := propagateCancel(ctx, cancel)
	defer stop()

	var targets []string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(settleDelay),
		chromedp.Evaluate(`
			(function(sel) {
				var out = [];
				var els = document.querySelectorAll(sel);
				for (var i = 0; i < els.length; i++) {
					var el = els[i];
					if (el.href) {
						out.push(el.href);
					} else if (el.value) {
						out.push(el.value);
					}
				}
				return out;
			})(`+jsString(selector)+`)
		`, &targets),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, eris.Wrapf(err, "render: discover %q on %s", selector, url)
	}

	c.log.Debug("targets discovered", zap.String("url", url), zap.Int("count", len(targets)))
	return targets, nil
}

// Close tears down the browser context and the allocator behind it.
func (c *ChromeClient) Close() error {
	c.cancelBrowser()
	c.cancelAlloc()
	return nil
}

// propagateCancel forwards run-level cancellation into an in-flight chromedp
// navigation. The returned stop func must be called once the navigation ends.
func propagateCancel(ctx context.Context, cancel context.CancelFunc) func() {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}

// jsString quotes s as a JS string literal.
func jsString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'', '\\':
			out = append(out, '\\', s[i])
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, s[i])
		}
	}
	return string(append(out, '\''))
}

// findChromeBinary locates a Chrome/Chromium binary.
func findChromeBinary() string {
	if bin := os.Getenv("CHROME_BIN"); bin != "" {
		return bin
	}

	names := []string{"google-chrome-stable", "google-chrome", "chromium", "chromium-browser"}
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path
		}
	}

	paths := []string{
		"/usr/bin/google-chrome-stable",
		"/usr/bin/google-chrome",
		"/usr/bin/chromium-browser",
		"/usr/bin/chromium",
		"/snap/bin/chromium",
		"/opt/google/chrome/google-chrome",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}
