package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/kmorrow0/edge-alert-bot/internal/config"
)

// renderSettleWait is how long a scroll-triggered render gets to settle
// before the page is inspected again. 2s is too short for the feed's lazy
// loader under load.
const renderSettleWait = 4 * time.Second

const feedUserAgent = "Chrome/91.0.4472.124"

// PlaywrightSource drives the feed through a Playwright-managed Chromium
// instance.
type PlaywrightSource struct {
	pw        *playwright.Playwright
	browser   playwright.Browser
	page      playwright.Page
	selectors SelectorConfig
	signInURL string
	timeout   time.Duration
}

func NewPlaywrightSource(cfg *config.Config, selectors SelectorConfig) (*PlaywrightSource, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("start playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(feedUserAgent),
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("open page: %w", err)
	}

	return &PlaywrightSource{
		pw:        pw,
		browser:   browser,
		page:      page,
		selectors: selectors,
		signInURL: cfg.SignInURL,
		timeout:   cfg.RenderTimeout,
	}, nil
}

func (s *PlaywrightSource) Login(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	login := s.selectors.Login

	if _, err := s.page.Goto(s.signInURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   s.timeoutMillis(),
	}); err != nil {
		return fmt.Errorf("open sign-in page: %w", err)
	}

	if err := s.page.Fill(login.EmailInput, email); err != nil {
		return fmt.Errorf("fill email field: %w", err)
	}
	if err := s.page.Fill(login.PasswordInput, password); err != nil {
		return fmt.Errorf("fill password field: %w", err)
	}
	if err := s.page.Press(login.SubmitButton, "Enter"); err != nil {
		return fmt.Errorf("submit sign-in form: %w", err)
	}
	if err := s.page.WaitForURL(login.LoggedInURL, playwright.PageWaitForURLOptions{
		Timeout: s.timeoutMillis(),
	}); err != nil {
		return fmt.Errorf("wait for post-login redirect: %w", err)
	}
	return nil
}

func (s *PlaywrightSource) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   s.timeoutMillis(),
	}); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

func (s *PlaywrightSource) RenderNextPage(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.page.Evaluate("window.scrollTo(0, document.body.scrollHeight);"); err != nil {
		return fmt.Errorf("scroll to bottom: %w", err)
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(renderSettleWait):
	}
	return nil
}

func (s *PlaywrightSource) CaptureHTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// Long-form descriptions render truncated behind a "show more" toggle.
	// Expand them all, capture, then collapse so the next scroll pass sees
	// the feed in its default state.
	s.clickAll(s.selectors.Feed.SeeMore)
	html, err := s.page.Content()
	s.clickAll(s.selectors.Feed.SeeLess)
	if err != nil {
		return "", fmt.Errorf("capture rendered page: %w", err)
	}
	return html, nil
}

func (s *PlaywrightSource) Close() error {
	if err := s.browser.Close(); err != nil {
		s.pw.Stop()
		return fmt.Errorf("close browser: %w", err)
	}
	return s.pw.Stop()
}

// clickAll clicks every element matching the selector, ignoring elements
// that detach mid-click. A missing affordance is not an error.
func (s *PlaywrightSource) clickAll(selector string) {
	if selector == "" {
		return
	}
	locators, err := s.page.Locator(selector).All()
	if err != nil {
		return
	}
	for _, loc := range locators {
		_ = loc.Click(playwright.LocatorClickOptions{Timeout: playwright.Float(2000)})
	}
}

func (s *PlaywrightSource) timeoutMillis() *float64 {
	return playwright.Float(float64(s.timeout.Milliseconds()))
}
