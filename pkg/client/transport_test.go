package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	mu    sync.Mutex
	token string
}

func (s *staticTokens) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.token != ""
}

func (s *staticTokens) set(tok string) {
	s.mu.Lock()
	s.token = tok
	s.mu.Unlock()
}

type fakeRefresher struct {
	calls atomic.Int32
	fn    func() (string, error)
}

func (f *fakeRefresher) Refresh(context.Context) (string, error) {
	f.calls.Add(1)
	return f.fn()
}

func newAuthClient(t *testing.T, srvURL string, tokens TokenSource, r Refresher, onExpired func(error)) *http.Client {
	t.Helper()
	hc, err := NewHTTPClient(HTTPOptions{
		BaseURL:   srvURL,
		Timeout:   2 * time.Second,
		Jar:       NewJar(),
		Tokens:    tokens,
		Refresher: r,
		OnExpired: onExpired,
	})
	require.NoError(t, err)
	return hc
}

func TestAuthTransport_AttachesBearer(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	hc := newAuthClient(t, srv.URL, &staticTokens{token: "abc"}, nil, nil)
	resp, err := hc.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck

	if got != "Bearer abc" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc")
	}
}

func TestAuthTransport_KeepsCallerAuthorization(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
	}))
	defer srv.Close()

	hc := newAuthClient(t, srv.URL, &staticTokens{token: "abc"}, nil, nil)
	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/x", nil)
	req.Header.Set("Authorization", "Bearer mine")
	resp, err := hc.Do(req)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck

	if got != "Bearer mine" {
		t.Errorf("Authorization = %q, want caller's header", got)
	}
}

func TestAuthTransport_IgnoresOtherOrigins(t *testing.T) {
	var got string
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer other.Close()

	ref := &fakeRefresher{fn: func() (string, error) { return "new", nil }}
	hc := newAuthClient(t, "http://api.invalid", &staticTokens{token: "abc"}, ref, nil)
	resp, err := hc.Get(other.URL)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck

	if got != "" {
		t.Errorf("Authorization leaked to foreign origin: %q", got)
	}
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if n := ref.calls.Load(); n != 0 {
		t.Errorf("refresh calls = %d, want 0", n)
	}
}

func TestAuthTransport_RefreshAndRetryOnce(t *testing.T) {
	var bodies []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "stale"}
	ref := &fakeRefresher{fn: func() (string, error) {
		tokens.set("fresh")
		return "fresh", nil
	}}
	hc := newAuthClient(t, srv.URL, tokens, ref, nil)

	resp, err := hc.Post(srv.URL+"/api/verify/drug", "application/json", strings.NewReader(`{"a":1}`))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, int32(1), ref.calls.Load())
	require.Equal(t, []string{`{"a":1}`, `{"a":1}`}, bodies, "body must be replayed on retry")
}

func TestAuthTransport_StaleUnauthorizedRetriesWithoutRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer xyz" {
			w.Write([]byte(`{"ok":true}`)) //nolint:errcheck
			return
		}
		if r.URL.Path == "/slow" {
			time.Sleep(300 * time.Millisecond)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &staticTokens{token: "abc"}
	ref := &fakeRefresher{fn: func() (string, error) {
		tokens.set("xyz")
		return "xyz", nil
	}}
	hc := newAuthClient(t, srv.URL, tokens, ref, nil)

	slow := make(chan error, 1)
	go func() {
		resp, err := hc.Get(srv.URL + "/slow")
		if err == nil {
			resp.Body.Close() //nolint:errcheck
			if resp.StatusCode != http.StatusOK {
				err = errors.New(resp.Status)
			}
		}
		slow <- err
	}()
	time.Sleep(50 * time.Millisecond)

	resp, err := hc.Get(srv.URL + "/fast")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, <-slow)
	if n := ref.calls.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
}

func TestAuthTransport_SecondUnauthorizedPropagates(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ref := &fakeRefresher{fn: func() (string, error) { return "fresh", nil }}
	hc := newAuthClient(t, srv.URL, &staticTokens{token: "stale"}, ref, nil)

	resp, err := hc.Get(srv.URL + "/auth/me")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
	if n := hits.Load(); n != 2 {
		t.Errorf("server hits = %d, want 2 (original + one retry)", n)
	}
	if n := ref.calls.Load(); n != 1 {
		t.Errorf("refresh calls = %d, want 1", n)
	}
}

func TestAuthTransport_RefreshFailureExpires(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	refreshErr := errors.New("refresh rejected")
	ref := &fakeRefresher{fn: func() (string, error) { return "", refreshErr }}
	var expired error
	hc := newAuthClient(t, srv.URL, &staticTokens{token: "stale"}, ref, func(err error) { expired = err })

	_, err := hc.Get(srv.URL + "/auth/me")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrSessionExpired)
	require.ErrorIs(t, err, refreshErr)
	require.ErrorIs(t, expired, refreshErr)
	require.Equal(t, KindSessionExpired, Classify(err))
}

func TestAuthTransport_NoTokenSkipsRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	ref := &fakeRefresher{fn: func() (string, error) { return "fresh", nil }}
	hc := newAuthClient(t, srv.URL, &staticTokens{}, ref, nil)

	resp, err := hc.Get(srv.URL + "/referrals/")
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck

	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Zero(t, ref.calls.Load())
}

func TestTimeoutTransport_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	hc := &http.Client{Transport: &TimeoutTransport{Timeout: 50 * time.Millisecond}}
	start := time.Now()
	_, err := hc.Get(srv.URL)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrTimeout)
	require.Equal(t, KindTimeout, Classify(err))
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("request took %v, want it bounded near 50ms", elapsed)
	}
}

func TestTimeoutTransport_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	hc := &http.Client{Transport: &TimeoutTransport{Timeout: time.Second}}
	_, err := hc.Get(addr)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrNetwork)
	require.Equal(t, "Network error. Check your connection and try again.", UserMessage(err))
}

func TestTimeoutTransport_CallerCancelPassesThrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	hc := &http.Client{Transport: &TimeoutTransport{Timeout: 5 * time.Second}}
	_, err := hc.Do(req)
	require.Error(t, err)
	require.ErrorIs(t, err, context.Canceled)
	require.NotErrorIs(t, err, ErrNetwork)
}

func TestMatchesOrigin(t *testing.T) {
	origin, _ := url.Parse("https://api.nexahealth.test/v1")
	tests := []struct {
		raw  string
		want bool
	}{
		{"https://api.nexahealth.test/v1/auth/me", true},
		{"https://api.nexahealth.test/v1", true},
		{"https://API.nexahealth.test/v1/x", true},
		{"https://api.nexahealth.test/v10/x", false},
		{"http://api.nexahealth.test/v1/x", false},
		{"https://evil.test/v1/x", false},
	}
	for _, tt := range tests {
		u, _ := url.Parse(tt.raw)
		if got := matchesOrigin(origin, u); got != tt.want {
			t.Errorf("matchesOrigin(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
