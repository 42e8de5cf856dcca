package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout time.Duration
}

// FTPFetcher retrieves files from FTP mirrors, such as cadastral dumps.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher returns an FTPFetcher; a zero Timeout means 30s.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	return &FTPFetcher{opts: opts}
}

// ftpTarget is a parsed ftp:// URL.
type ftpTarget struct {
	addr     string // host:port
	path     string
	user     string
	password string
}

func parseFTPURL(rawURL string) (ftpTarget, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ftpTarget{}, eris.Wrap(err, "ftp: parse url")
	}
	if u.Scheme != "ftp" {
		return ftpTarget{}, eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		return ftpTarget{}, eris.Errorf("ftp: no file in %s", rawURL)
	}

	t := ftpTarget{addr: u.Host, path: u.Path, user: "anonymous", password: "anonymous@"}
	if u.Port() == "" {
		t.addr = net.JoinHostPort(u.Hostname(), "21")
	}
	if u.User != nil {
		t.user = u.User.Username()
		t.password, _ = u.User.Password()
	}
	return t, nil
}

// retrReader closes the transfer and then the control connection.
type retrReader struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (r *retrReader) Close() error {
	err := r.Response.Close()
	if qerr := r.conn.Quit(); err == nil && qerr != nil {
		return eris.Wrap(qerr, "ftp: quit")
	}
	if err != nil {
		return eris.Wrap(err, "ftp: close transfer")
	}
	return nil
}

// Download logs in (anonymously unless the URL carries credentials) and
// starts retrieving the file. Closing the reader ends the session.
func (f *FTPFetcher) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	t, err := parseFTPURL(rawURL)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("ftp retrieve",
		zap.String("component", "fetcher"),
		zap.String("addr", t.addr),
		zap.String("path", t.path),
	)

	conn, err := ftp.Dial(t.addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: dial %s", t.addr)
	}
	if err := conn.Login(t.user, t.password); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: login as %s", t.user)
	}
	resp, err := conn.Retr(t.path)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: retrieve %s", t.path)
	}
	return &retrReader{Response: resp, conn: conn}, nil
}

// DownloadToFile retrieves rawURL into path and returns the bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, rawURL string, path string) (int64, error) {
	rc, err := f.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	return writeToFile(path, rc)
}
