package chromedp_extractor

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/user/quiz-runner-service/internal/entity"
	"github.com/user/quiz-runner-service/internal/repository"
	"github.com/user/quiz-runner-service/pkg/metrics"
)

// ChromedpExtractor drives a headless Chrome session to extract quiz pages.
// Every Extract call opens its own browser session and closes it on return,
// success or failure; sessions are never reused across questions.
type ChromedpExtractor struct {
	pageLoadTimeout time.Duration
	settleDelay     time.Duration
	fetcher         repository.ResourceFetcher
}

// NewChromedpExtractor creates a new extractor. The fetcher is used for
// provided-data file downloads that do not need a browser.
func NewChromedpExtractor(pageLoadTimeout time.Duration, fetcher repository.ResourceFetcher) repository.PageExtractor {
	return &ChromedpExtractor{
		pageLoadTimeout: pageLoadTimeout,
		settleDelay:     500 * time.Millisecond,
		fetcher:         fetcher,
	}
}

func browserOptions() []chromedp.ExecAllocatorOption {
	return append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.UserAgent(`Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36`),
	)
}

// Extract navigates to pageURL and captures everything the solving pipeline
// needs: rendered HTML, visible text, a full screenshot, code blocks,
// resource links and the provided-data resource.
func (e *ChromedpExtractor) Extract(ctx context.Context, pageURL string) (*entity.ExtractedPage, error) {
	start := time.Now()
	defer func() {
		metrics.ExtractionDuration.WithLabelValues(domainOf(pageURL)).Observe(time.Since(start).Seconds())
	}()

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browserOptions()...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, e.pageLoadTimeout)
	defer timeoutCancel()

	// An empty Run starts the browser process, so a launch failure is
	// distinguishable from a navigation failure.
	if err := chromedp.Run(taskCtx); err != nil {
		slog.Error("Failed to launch browser", "url", pageURL, "error", err)
		return nil, fmt.Errorf("%w: %v", repository.ErrBrowserLaunch, err)
	}

	var html string
	var screenshot []byte
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		// Give late XHR-rendered content a moment to land in the DOM.
		chromedp.Sleep(e.settleDelay),
		chromedp.OuterHTML("html", &html),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, err := page.CaptureScreenshot().Do(ctx)
			if err != nil {
				// The page itself is usable without a screenshot.
				slog.Warn("Screenshot capture failed", "url", pageURL, "error", err)
				return nil
			}
			screenshot = buf
			return nil
		}),
	)
	if err != nil {
		slog.Error("Failed to extract page", "url", pageURL, "error", err)
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, pageURL, err)
	}

	doc, err := parsePageDocument(html, pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", repository.ErrExtractionFailed, pageURL, err)
	}

	extracted := &entity.ExtractedPage{
		SourceURL:       pageURL,
		HTML:            html,
		VisibleText:     doc.visibleText,
		Screenshot:      screenshot,
		CodeBlocks:      doc.codeBlocks,
		ResourceLinks:   doc.links,
		ProvidedDataURL: doc.providedDataURL,
		ProvidedData:    entity.ProvidedData{Kind: entity.ProvidedDataNone},
	}

	if doc.providedDataURL != "" {
		extracted.ProvidedData = e.loadProvidedData(ctx, doc.providedDataURL)
	}

	slog.Info("Extracted page",
		"url", pageURL,
		"links", len(extracted.ResourceLinks),
		"code_blocks", len(extracted.CodeBlocks),
		"provided_data", string(extracted.ProvidedData.Kind),
	)
	return extracted, nil
}

// renderHTML runs a reduced browser-only extraction for provided-data pages.
// Only the rendered HTML is captured; no resource collection or screenshot.
func (e *ChromedpExtractor) renderHTML(ctx context.Context, pageURL string) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, browserOptions()...)
	defer allocCancel()

	taskCtx, taskCancel := chromedp.NewContext(allocCtx)
	defer taskCancel()

	taskCtx, timeoutCancel := context.WithTimeout(taskCtx, e.pageLoadTimeout)
	defer timeoutCancel()

	if err := chromedp.Run(taskCtx); err != nil {
		return "", fmt.Errorf("%w: %v", repository.ErrBrowserLaunch, err)
	}

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body"),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", repository.ErrNavigationFailed, pageURL, err)
	}
	return html, nil
}

func domainOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return "unknown"
	}
	return parsed.Hostname()
}
