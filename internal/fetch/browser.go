package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpfetch "github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// MinContentLength is the shortest extracted posting accepted without trying
// the browser. Shorter text usually means the board renders client side.
const MinContentLength = 500

// settleDelay gives client-rendered boards time to load the posting.
const settleDelay = 3 * time.Second

// RenderFunc returns the rendered HTML of a page.
type RenderFunc func(ctx context.Context, url string) (string, error)

// ShouldUseBrowser reports whether extracted text is too short to be a posting.
func ShouldUseBrowser(extractedText string) bool {
	return len(strings.TrimSpace(extractedText)) < MinContentLength
}

var browserFlags = append(chromedp.DefaultExecAllocatorOptions[:],
	chromedp.Flag("headless", true),
	chromedp.Flag("disable-gpu", true),
	chromedp.Flag("no-sandbox", true),
	chromedp.Flag("disable-dev-shm-usage", true),
)

// BrowserRenderer returns a RenderFunc that loads pages in headless Chrome.
// Every call starts a fresh browser. Chrome or Chromium must be installed.
// Unless allowPrivate is set, every request the page makes, redirects and
// subresources included, is checked with CheckHost and failed when blocked.
func BrowserRenderer(timeout time.Duration, allowPrivate bool, logger *slog.Logger) RenderFunc {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, url string) (string, error) {
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, browserFlags...)
		defer cancelAlloc()
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
		defer cancelBrowser()
		runCtx, cancel := context.WithTimeout(browserCtx, timeout)
		defer cancel()

		actions := []chromedp.Action{
			chromedp.Navigate(url),
			chromedp.WaitReady("body"),
			chromedp.Sleep(settleDelay),
			dismissCookieBanner(),
		}
		if !allowPrivate {
			chromedp.ListenTarget(browserCtx, guardRequests(browserCtx, logger))
			actions = append([]chromedp.Action{cdpfetch.Enable()}, actions...)
		}

		started := time.Now()
		var html string
		if err := chromedp.Run(runCtx, append(actions, chromedp.OuterHTML("html", &html))...); err != nil {
			return "", fmt.Errorf("browser rendering failed: %w", err)
		}
		logger.Debug("rendered page", "url", url, "bytes", len(html), "elapsed", time.Since(started))
		return html, nil
	}
}

// guardRequests answers paused requests: public hosts continue, others fail.
func guardRequests(browserCtx context.Context, logger *slog.Logger) func(ev any) {
	return func(ev any) {
		paused, ok := ev.(*cdpfetch.EventRequestPaused)
		if !ok {
			return
		}
		go func() {
			c := chromedp.FromContext(browserCtx)
			execCtx := cdp.WithExecutor(browserCtx, c.Target)
			if err := CheckHost(browserCtx, paused.Request.URL); err != nil {
				logger.Warn("browser request blocked", "url", paused.Request.URL, "error", err)
				_ = cdpfetch.FailRequest(paused.RequestID, network.ErrorReasonBlockedByClient).Do(execCtx)
				return
			}
			_ = cdpfetch.ContinueRequest(paused.RequestID).Do(execCtx)
		}()
	}
}

// dismissCookieBanner clicks an accept button when one is visible.
func dismissCookieBanner() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_ = chromedp.Click(`button[id*="accept"], button[class*="accept"]`, chromedp.NodeVisible, chromedp.AtLeast(0)).Do(ctx)
		return nil
	})
}
