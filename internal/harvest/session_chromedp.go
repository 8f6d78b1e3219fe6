package harvest

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// fetchImageScript runs a same-origin fetch inside the page and resolves to
// the payload's base64 body, so the browser's cookies authorize the request.
const fetchImageScript = `(async (url) => {
	const resp = await fetch(url, {credentials: 'same-origin'});
	if (!resp.ok) {
		throw new Error('fetch failed with status ' + resp.status);
	}
	const blob = await resp.blob();
	const dataURL = await new Promise((resolve, reject) => {
		const reader = new FileReader();
		reader.onload = () => resolve(reader.result);
		reader.onerror = () => reject(reader.error);
		reader.readAsDataURL(blob);
	});
	const comma = dataURL.indexOf(',');
	return comma >= 0 ? dataURL.slice(comma + 1) : '';
})(%q)`

// ChromedpSession is a Session backed by one headless Chrome tab that lives
// for a whole scrape run.
type ChromedpSession struct {
	allocatorCancel context.CancelFunc
	browserCtx      context.Context
	browserCancel   context.CancelFunc
	navTimeout      time.Duration
	logger          *zap.Logger
}

// NewChromedpSession launches the browser and warms up a tab. The caller
// must Close the session on every exit path.
func NewChromedpSession(cfg ScrapeConfig, logger *zap.Logger) (*ChromedpSession, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := chromedp.DefaultExecAllocatorOptions[:]
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	warmup := chromedp.Tasks{
		network.Enable(),
		emulation.SetUserAgentOverride(cfg.UserAgent),
	}
	if err := chromedp.Run(browserCtx, warmup); err != nil {
		browserCancel()
		allocatorCancel()
		return nil, fmt.Errorf("chromedp warmup: %w", err)
	}

	return &ChromedpSession{
		allocatorCancel: allocatorCancel,
		browserCtx:      browserCtx,
		browserCancel:   browserCancel,
		navTimeout:      cfg.NavTimeout,
		logger:          logger,
	}, nil
}

// Navigate loads url in the session's tab, bounded by the nav timeout.
func (s *ChromedpSession) Navigate(ctx context.Context, url string) error {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	if err := chromedp.Run(taskCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible reports whether selector became visible within timeout. A
// timeout is an expected soft failure, not an error.
func (s *ChromedpSession) WaitVisible(ctx context.Context, selector string, timeout time.Duration) bool {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, timeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	err := chromedp.Run(taskCtx, chromedp.WaitVisible(selector, chromedp.ByQuery))
	if err != nil {
		s.logger.Debug("marker wait failed", zap.String("selector", selector), zap.Error(err))
	}
	return err == nil
}

// OuterHTML snapshots the rendered document.
func (s *ChromedpSession) OuterHTML(ctx context.Context) (string, error) {
	taskCtx, cancel := context.WithCancel(s.browserCtx)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var html string
	if err := chromedp.Run(taskCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("outer html: %w", err)
	}
	return html, nil
}

// FetchBase64 bridges a same-origin binary fetch out of the page as base64
// by evaluating an awaited promise in the page's execution context.
func (s *ChromedpSession) FetchBase64(ctx context.Context, url string) (string, error) {
	taskCtx, cancel := context.WithTimeout(s.browserCtx, s.navTimeout)
	defer cancel()
	stop := forwardCancel(ctx, cancel)
	defer stop()

	var encoded string
	script := fmt.Sprintf(fetchImageScript, url)
	err := chromedp.Run(taskCtx, chromedp.Evaluate(script, &encoded,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return "", fmt.Errorf("evaluate fetch bridge: %w", err)
	}
	return encoded, nil
}

// Close tears down the tab and the browser allocator.
func (s *ChromedpSession) Close(_ context.Context) error {
	s.browserCancel()
	s.allocatorCancel()
	return nil
}

// forwardCancel propagates cancellation of parent onto cancel until the
// returned stop function is called.
func forwardCancel(parent context.Context, cancel context.CancelFunc) func() {
	if parent == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-parent.Done():
			cancel()
		case <-done:
		}
	}()
	return func() { close(done) }
}
