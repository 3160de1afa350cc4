// Package downloader implements a small HTTP download manager used to fetch
// corpus archives.
package downloader

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/pkg/errors"
)

// ProgressCallback is called as download progresses. totalBytes is -1 when
// the server doesn't report a content length.
type ProgressCallback func(downloadedBytes, totalBytes int64)

// Manager handles downloads to local files.
type Manager struct {
	client *http.Client
}

// New creates a Manager with default settings.
func New() *Manager {
	return &Manager{client: http.DefaultClient}
}

// WithClient sets the HTTP client used for downloads.
func (m *Manager) WithClient(client *http.Client) *Manager {
	m.client = client
	return m
}

// Download fetches url into filePath, reporting progress through callback
// (which may be nil). The file is created (or truncated) at filePath; the
// caller is responsible for temporary naming and atomic renames.
func (m *Manager) Download(ctx context.Context, url, filePath string, callback ProgressCallback) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errors.Wrapf(err, "creating request for %q", url)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "fetching %q", url)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("fetching %q: unexpected status %s", url, resp.Status)
	}

	f, err := os.Create(filePath)
	if err != nil {
		return errors.Wrapf(err, "creating %q", filePath)
	}
	defer func() { _ = f.Close() }()

	var downloaded int64
	buf := make([]byte, 32*1024)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, err := f.Write(buf[:n]); err != nil {
				return errors.Wrapf(err, "writing %q", filePath)
			}
			downloaded += int64(n)
			if callback != nil {
				callback(downloaded, resp.ContentLength)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return errors.Wrapf(readErr, "reading body of %q", url)
		}
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "closing %q", filePath)
	}
	return nil
}
