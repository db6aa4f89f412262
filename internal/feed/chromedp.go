package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
)

// ChromedpSource drives the feed over the Chrome DevTools Protocol. Same
// contract as the Playwright driver; selected with BROWSER_ENGINE=chromedp.
type ChromedpSource struct {
	browserCtx  context.Context
	cancelChain []context.CancelFunc
	selectors   SelectorConfig
	signInURL   string
	timeout     time.Duration
}

func NewChromedpSource(cfg *config.Config, selectors SelectorConfig) (*ChromedpSource, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", cfg.Headless),
		chromedp.UserAgent(feedUserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser now so construction fails fast on a broken install.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &ChromedpSource{
		browserCtx:  browserCtx,
		cancelChain: []context.CancelFunc{browserCancel, allocCancel},
		selectors:   selectors,
		signInURL:   cfg.SignInURL,
		timeout:     cfg.RenderTimeout,
	}, nil
}

func (s *ChromedpSource) Login(ctx context.Context, email, password string) error {
	login := s.selectors.Login
	err := s.run(ctx,
		chromedp.Navigate(s.signInURL),
		chromedp.WaitVisible(login.EmailInput, chromedp.ByQuery),
		chromedp.SendKeys(login.EmailInput, email, chromedp.ByQuery),
		chromedp.SendKeys(login.PasswordInput, password+"\n", chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	return nil
}

func (s *ChromedpSource) Navigate(ctx context.Context, url string) error {
	err := s.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(s.selectors.Feed.Item, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *ChromedpSource) RenderNextPage(ctx context.Context) error {
	err := s.run(ctx,
		chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight);", nil),
		chromedp.Sleep(renderSettleWait),
	)
	if err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	return nil
}

func (s *ChromedpSource) CaptureHTML(ctx context.Context) (string, error) {
	var html string
	err := s.run(ctx,
		clickAllAction(s.selectors.Feed.SeeMore),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		clickAllAction(s.selectors.Feed.SeeLess),
	)
	if err != nil {
		return "", fmt.Errorf("capture rendered page: %w", err)
	}
	return html, nil
}

func (s *ChromedpSource) Close() error {
	for _, cancel := range s.cancelChain {
		cancel()
	}
	return nil
}

// run executes the actions against the long-lived browser tab under both the
// caller's context and the configured render timeout.
func (s *ChromedpSource) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.browserCtx, s.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// clickAllAction clicks every element matching the selector in-page. Missing
// affordances are fine.
func clickAllAction(selector string) chromedp.Action {
	js := fmt.Sprintf(`document.querySelectorAll(%q).forEach((el) => el.click());`, selector)
	return chromedp.Evaluate(js, nil)
}
