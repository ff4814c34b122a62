// Package source opens dataset locations: local paths and http(s) URLs, with
// gzip content decompressed transparently.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"github.com/klauspost/compress/gzip"
)

const (
	defaultTimeout   = 5 * time.Minute
	defaultKeepAlive = 90 * time.Second
)

var gzipMagic = []byte{0x1f, 0x8b}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Opener opens a location for reading.
type Opener interface {
	Open(ctx context.Context, location string) (io.ReadCloser, error)
}

type Source struct {
	client *http.Client
}

// New returns a Source using client for remote locations. A nil client gets
// a default one whose transport negotiates gzip content-encoding.
func New(client *http.Client) *Source {
	if client == nil {
		client = NewHTTPClient()
	}
	return &Source{client: client}
}

// NewHTTPClient returns a client that is safe for concurrent use.
func NewHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: defaultKeepAlive,
		}).DialContext,
		ForceAttemptHTTP2:   true,
		IdleConnTimeout:     defaultKeepAlive,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &http.Client{
		Timeout:   defaultTimeout,
		Transport: gzhttp.Transport(tr),
	}
}

func IsRemote(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}

// Open returns the decoded content at location. Content is sniffed for the
// gzip magic rather than trusting the file extension.
func (s *Source) Open(ctx context.Context, location string) (io.ReadCloser, error) {
	var (
		rc  io.ReadCloser
		err error
	)
	if IsRemote(location) {
		rc, err = s.get(ctx, location)
	} else {
		rc, err = os.Open(location)
	}
	if err != nil {
		return nil, err
	}
	return maybeGunzip(rc)
}

func (s *Source) get(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// ReadString returns the full decoded content at location.
func (s *Source) ReadString(ctx context.Context, location string) (string, error) {
	rc, err := s.Open(ctx, location)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", location, err)
	}
	return string(b), nil
}

type gzipReadCloser struct {
	*gzip.Reader
	under io.Closer
}

func (g *gzipReadCloser) Close() error {
	gerr := g.Reader.Close()
	if err := g.under.Close(); err != nil {
		return err
	}
	return gerr
}

type bufferedReadCloser struct {
	*bufio.Reader
	under io.Closer
}

func (b *bufferedReadCloser) Close() error { return b.under.Close() }

func maybeGunzip(rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		rc.Close()
		return nil, fmt.Errorf("peek: %w", err)
	}
	if len(head) == len(gzipMagic) && head[0] == gzipMagic[0] && head[1] == gzipMagic[1] {
		zr, err := gzip.NewReader(br)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("gzip reader: %w", err)
		}
		return &gzipReadCloser{Reader: zr, under: rc}, nil
	}
	return &bufferedReadCloser{Reader: br, under: rc}, nil
}
