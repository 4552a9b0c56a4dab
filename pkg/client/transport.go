package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 15 * time.Second

// TimeoutTransport bounds every round trip, including reading the response
// body, and reports an exceeded bound as ErrTimeout. Other transport failures
// are reported as ErrNetwork.
type TimeoutTransport struct {
	Base    http.RoundTripper
	Timeout time.Duration
}

func (t *TimeoutTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(req.Context(), timeout)
	resp, err := base(t.Base).RoundTrip(req.WithContext(ctx))
	if err != nil {
		err = transportError(ctx, err)
		cancel()
		return nil, err
	}
	resp.Body = &boundedBody{ReadCloser: resp.Body, ctx: ctx, cancel: cancel}
	return resp, nil
}

func transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(ctx.Err(), context.Canceled):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrNetwork, err)
	}
}

// boundedBody releases the request timeout once the caller is done with the body.
type boundedBody struct {
	io.ReadCloser
	ctx    context.Context
	cancel context.CancelFunc
}

func (b *boundedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	if err != nil && err != io.EOF && errors.Is(b.ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return n, err
}

func (b *boundedBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

// TokenSource supplies the current access token.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Refresher renews the access token.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// AuthTransport intercepts requests to the API origin. It attaches the bearer
// token unless the caller set Authorization itself, and recovers from a 401 by
// refreshing the token and retrying the request exactly once. A 401 on the
// retry is returned to the caller unchanged.
type AuthTransport struct {
	Base      http.RoundTripper
	Origin    *url.URL
	Tokens    TokenSource
	Refresher Refresher
	// OnExpired runs when the refresh triggered by a 401 fails.
	OnExpired func(error)
}

func (t *AuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if !matchesOrigin(t.Origin, req.URL) {
		return base(t.Base).RoundTrip(req)
	}

	req, err := replayable(req)
	if err != nil {
		return nil, err
	}
	var sent string
	if req.Header.Get("Authorization") == "" {
		if token, ok := t.Tokens.AccessToken(); ok {
			sent = token
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := base(t.Base).RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.Refresher == nil {
		return resp, err
	}
	current, ok := t.Tokens.AccessToken()
	if !ok {
		return resp, nil
	}
	discard(resp)

	// A 401 for a token that has since been replaced is stale: another
	// request already refreshed, so retry with the current token.
	token := current
	if sent == "" || current == sent {
		token, err = t.Refresher.Refresh(req.Context())
	}
	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, err
		}
		if t.OnExpired != nil {
			t.OnExpired(err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	retry.Header.Set("Authorization", "Bearer "+token)
	return base(t.Base).RoundTrip(retry)
}

// matchesOrigin reports whether u is under the configured API base URL.
func matchesOrigin(origin, u *url.URL) bool {
	if origin == nil || u == nil {
		return false
	}
	if !strings.EqualFold(origin.Scheme, u.Scheme) || !strings.EqualFold(origin.Host, u.Host) {
		return false
	}
	prefix := strings.TrimRight(origin.Path, "/")
	return prefix == "" || u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/")
}

// replayable clones req and buffers its body so it can be sent twice.
func replayable(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return out, nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close() //nolint:errcheck // fully read
	if err != nil {
		return nil, fmt.Errorf("buffer request body: %w", err)
	}
	out.Body = io.NopCloser(bytes.NewReader(data))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	return out, nil
}

func rewind(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retry.Body = body
	}
	return retry, nil
}

func discard(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10)) //nolint:errcheck // best-effort drain
	resp.Body.Close()                                      //nolint:errcheck
}

func base(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		return http.DefaultTransport
	}
	return rt
}

// NewJar returns the cookie jar that plays the role of credentials: "include".
func NewJar() http.CookieJar {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		// cookiejar.New never fails with a non-nil options value.
		panic(err)
	}
	return jar
}

// HTTPOptions configures the clients built by NewHTTPClient and NewBareClient.
type HTTPOptions struct {
	BaseURL   string
	Timeout   time.Duration
	Transport http.RoundTripper
	Jar       http.CookieJar
	Tokens    TokenSource
	Refresher Refresher
	OnExpired func(error)
}

// NewBareClient returns a client with the timeout bound and the cookie jar but
// no auth interception. Login and refresh calls go through it.
func NewBareClient(opts HTTPOptions) *http.Client {
	return &http.Client{
		Transport: &TimeoutTransport{Base: opts.Transport, Timeout: opts.Timeout},
		Jar:       opts.Jar,
	}
}

// NewHTTPClient returns the authenticated client: the auth interceptor over the
// timeout-bounded transport, sharing the cookie jar.
func NewHTTPClient(opts HTTPOptions) (*http.Client, error) {
	origin, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("client.NewHTTPClient: parse base url: %w", err)
	}
	if opts.Tokens == nil {
		return nil, errors.New("client.NewHTTPClient: token source is required")
	}
	return &http.Client{
		Transport: &AuthTransport{
			Base:      &TimeoutTransport{Base: opts.Transport, Timeout: opts.Timeout},
			Origin:    origin,
			Tokens:    opts.Tokens,
			Refresher: opts.Refresher,
			OnExpired: opts.OnExpired,
		},
		Jar: opts.Jar,
	}, nil
}
