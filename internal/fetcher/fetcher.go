package fetcher

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"

	"github.com/rotisserie/eris"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Options bundles the per-transport options used by ForURL.
type Options struct {
	HTTP HTTPOptions
	FTP  FTPOptions
}

// ForURL picks a Fetcher by URL scheme.
func ForURL(rawURL string, opts Options) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse url %q", rawURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewHTTPFetcher(opts.HTTP), nil
	case "ftp":
		return NewFTPFetcher(opts.FTP), nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q", u.Scheme)
	}
}

// FileNameFromURL returns the last path element of rawURL, or fallback when
// the URL has no usable file name.
func FileNameFromURL(rawURL, fallback string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fallback
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return fallback
	}
	return name
}
