package repository

import (
	"context"
	"errors"

	"github.com/user/quiz-runner-service/internal/entity"
)

var (
	// ErrBrowserLaunch indicates the headless browser could not be started.
	ErrBrowserLaunch = errors.New("failed to launch browser session")
	// ErrNavigationFailed indicates the page could not be navigated to or
	// did not settle within the page load timeout.
	ErrNavigationFailed = errors.New("page navigation failed")
	// ErrExtractionFailed indicates DOM state could not be read after a
	// successful navigation.
	ErrExtractionFailed = errors.New("page extraction failed")
)

// PageExtractor defines the contract for browser-driven quiz page extraction.
// An implementation owns one browser session per call and must release it
// even when extraction fails.
type PageExtractor interface {
	// Extract navigates to url and captures rendered HTML, visible text,
	// a screenshot, code blocks, resource links and the provided-data
	// resource, if the page references one.
	Extract(ctx context.Context, url string) (*entity.ExtractedPage, error)
}
