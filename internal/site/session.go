// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package site is the shared HTTP core of every metadata fetcher and download.

Architecture:

  - Session: One client, cookie jar and user agent for all outbound traffic.
  - Lease: Exclusive use of the session between [Session.Begin] and [Lease.End].
  - Limiter: A minimum delay between two requests (x/time/rate, burst 1).
  - Classifier: [Session.HandleError] grades site responses (bad login, ban, challenge).
  - ExProperties: Per-site credentials and cookies persisted as JSON.

Only one lease exists at a time, so fetchers never interleave requests.
*/
package site

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/notify"
)

// Options configures a [Session].
type Options struct {
	// Delay is the minimum wait between two requests. Defaults to 5s.
	Delay time.Duration
	// Timeout bounds a single request. Defaults to 30s.
	Timeout time.Duration
	// UserAgent is sent with every request.
	UserAgent string
	// CABundle is a PEM file used as the TLS root pool. When empty, a
	// cacert.pem next to the executable is used if present.
	CABundle string
	// Sleep waits inside error handling. Defaults to a context-aware timer.
	Sleep    func(ctx context.Context, d time.Duration) error
	Notifier *notify.Notifier
	Logger   *slog.Logger
}

// Session is the shared outbound HTTP context.
type Session struct {
	client    *http.Client
	jar       http.CookieJar
	limiter   *rate.Limiter
	lock      chan struct{}
	userAgent string
	sleep     func(ctx context.Context, d time.Duration) error
	notifier  *notify.Notifier
	logger    *slog.Logger
}

// NewSession builds a session.
func NewSession(options Options) (*Session, error) {
	if options.Delay <= 0 {
		options.Delay = constants.DefaultWebDelay
	}
	if options.Timeout <= 0 {
		options.Timeout = constants.DefaultMetadataTimeout
	}
	if options.Sleep == nil {
		options.Sleep = sleep
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("site: cookie jar: %w", err)
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if pool, err := loadCABundle(options.CABundle); err != nil {
		return nil, err
	} else if pool != nil {
		transport.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &Session{
		client:    &http.Client{Jar: jar, Timeout: options.Timeout, Transport: transport},
		jar:       jar,
		limiter:   rate.NewLimiter(rate.Every(options.Delay), 1),
		lock:      make(chan struct{}, 1),
		userAgent: options.UserAgent,
		sleep:     options.Sleep,
		notifier:  options.Notifier,
		logger:    options.Logger.With(slog.String("component", "site")),
	}, nil
}

// loadCABundle reads the configured bundle, or the bundled one next to the executable.
func loadCABundle(bundle string) (*x509.CertPool, error) {
	if bundle == "" {
		executable, err := os.Executable()
		if err != nil {
			return nil, nil
		}
		candidate := filepath.Join(filepath.Dir(executable), constants.CABundleFile)
		if _, err := os.Stat(candidate); err != nil {
			return nil, nil
		}
		bundle = candidate
		_ = os.Setenv("REQUESTS_CA_BUNDLE", bundle)
	}

	pem, err := os.ReadFile(bundle)
	if err != nil {
		return nil, fmt.Errorf("site: read CA bundle: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("site: CA bundle %s holds no certificates", bundle)
	}
	return pool, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserAgent returns the shared user agent.
func (s *Session) UserAgent() string { return s.userAgent }

// Notifier returns the notice sink, possibly nil.
func (s *Session) Notifier() *notify.Notifier { return s.notifier }

// # Cookies

// MergeCookies stores name/value pairs for the host of rawURL.
func (s *Session) MergeCookies(rawURL string, cookies map[string]string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("site: cookie url: %w", err)
	}
	jarCookies := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		jarCookies = append(jarCookies, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	s.jar.SetCookies(u, jarCookies)
	return nil
}

// Cookies returns the cookies the jar would send to rawURL.
func (s *Session) Cookies(rawURL string) map[string]string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	cookies := make(map[string]string)
	for _, cookie := range s.jar.Cookies(u) {
		cookies[cookie.Name] = cookie.Value
	}
	return cookies
}

// # Leases

// Lease is exclusive use of the session. Call End exactly once.
type Lease struct {
	session *Session
	ended   bool
}

// Begin waits for exclusive use of the session.
func (s *Session) Begin(ctx context.Context) (*Lease, error) {
	select {
	case s.lock <- struct{}{}:
		return &Lease{session: s}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// End releases the session.
func (lease *Lease) End() {
	if lease.ended {
		return
	}
	lease.ended = true
	<-lease.session.lock
}

/*
Do sends req after the inter-request delay has passed.

The returned body is already decoded (gzip, deflate, zlib or brotli).
*/
func (lease *Lease) Do(req *http.Request) (*http.Response, error) {
	if lease.ended {
		return nil, errors.New("site: lease already ended")
	}
	s := lease.session
	if err := s.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}

	if s.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	started := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("site_request_failed", slog.String("url", req.URL.String()), slog.Any("error", err))
		return nil, err
	}
	s.logger.Debug("site_request",
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("latency", time.Since(started)),
	)

	if err := decodeBody(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

// Fetch sends req under a fresh lease and returns the response with its whole body.
func (s *Session) Fetch(req *http.Request) (*http.Response, []byte, error) {
	lease, err := s.Begin(req.Context())
	if err != nil {
		return nil, nil, err
	}
	defer lease.End()

	resp, err := lease.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	return resp, body, err
}

// decodedBody closes both the decoder and the raw body.
type decodedBody struct {
	io.Reader
	closers []io.Closer
}

func (d *decodedBody) Close() error {
	var errs []error
	for _, closer := range d.closers {
		errs = append(errs, closer.Close())
	}
	return errors.Join(errs...)
}

// decodeBody replaces resp.Body with a reader over the decoded content.
func decodeBody(resp *http.Response) error {
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	raw := resp.Body

	switch encoding {
	case "gzip":
		reader, err := gzip.NewReader(raw)
		if err != nil {
			return fmt.Errorf("site: gzip body: %w", err)
		}
		resp.Body = &decodedBody{Reader: reader, closers: []io.Closer{reader, raw}}
	case "deflate":
		reader := flate.NewReader(raw)
		resp.Body = &decodedBody{Reader: reader, closers: []io.Closer{reader, raw}}
	case "compress":
		reader, err := zlib.NewReader(raw)
		if err != nil {
			return fmt.Errorf("site: zlib body: %w", err)
		}
		resp.Body = &decodedBody{Reader: reader, closers: []io.Closer{reader, raw}}
	case "br":
		resp.Body = &decodedBody{Reader: brotli.NewReader(raw), closers: []io.Closer{raw}}
	default:
		return nil
	}

	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// Stream sends a download request outside any lease. It shares the cookie jar
// and user agent but not the delay; the body is returned undecoded.
func (s *Session) Stream(req *http.Request) (*http.Response, error) {
	if s.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	client := *s.client
	client.Timeout = 0
	return client.Do(req)
}
