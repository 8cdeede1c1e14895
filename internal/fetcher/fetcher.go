// Package fetcher retrieves remote registry data: JSON answers from the
// registry APIs and bulk files (CSV, XLSX, ZIP) for the condominium registry.
package fetcher

import (
	"context"
	"io"
)

// Fetcher downloads bulk files.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path and returns the bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}
