package repository

import "context"

// ResourceFetcher defines the contract for downloading non-browser resources
// such as provided-data files. Implementations retry transient failures
// internally and return an error only after exhausting all attempts.
type ResourceFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
