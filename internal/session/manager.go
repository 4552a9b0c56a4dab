// Package session owns the authenticated session: it composes the token
// store, the refresh coordinator and the intercepting HTTP client, and drives
// the Anonymous → Authenticating → Authenticated → Refreshing → Expired
// state machine.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nexahealth/nexa/internal/logger"
	"github.com/nexahealth/nexa/internal/refresh"
	"github.com/nexahealth/nexa/internal/tokenstore"
	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

// ErrMissingCredentials is returned by Login before any network call.
var ErrMissingCredentials = errors.New("email and password are required")

// Options configures a Manager.
type Options struct {
	BaseURL    string
	Principal  domain.Principal
	Ephemeral  tokenstore.Backend
	Persistent tokenstore.Backend
	// Timeout bounds every request, refreshes included.
	Timeout         time.Duration
	RefreshInterval time.Duration
	// Transport is the base round tripper under the pipeline. Nil means
	// http.DefaultTransport.
	Transport http.RoundTripper
	Logger    logger.Logger
}

// Manager is the session. Construct one per process with New, call Init, and
// pass it to whatever needs the API.
type Manager struct {
	principal domain.Principal
	base      *url.URL
	interval  time.Duration
	log       logger.Logger

	tokens        *tokenstore.Store
	refreshTokens *tokenstore.Store
	cookies       *tokenstore.Store
	jar           *sessionJar

	coord  *refresh.Coordinator
	api    *client.Client // intercepted: bearer + refresh-and-retry
	auth   *client.Client // login and refresh, no bearer
	plain  *client.Client // bearer, no refresh
	closer sync.Once

	mu        sync.Mutex
	state     domain.State
	onExpired []func(error)

	ready     chan struct{}
	readyOnce sync.Once
}

// New wires the session. It performs no I/O.
func New(opts Options) (*Manager, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("session.New: base url is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("session.New: invalid base url %q", opts.BaseURL)
	}
	if opts.Principal.Name == "" {
		opts.Principal = domain.UserPrincipal
	}
	if opts.Ephemeral == nil {
		opts.Ephemeral = tokenstore.NewMemoryBackend()
	}
	if opts.Persistent == nil {
		opts.Persistent = tokenstore.NewMemoryBackend()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = client.DefaultTimeout
	}
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = refresh.DefaultInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}

	p := opts.Principal
	m := &Manager{
		principal:     p,
		base:          base,
		interval:      opts.RefreshInterval,
		log:           opts.Logger,
		tokens:        tokenstore.New(opts.Ephemeral, opts.Persistent, p.TokenKey),
		refreshTokens: tokenstore.New(opts.Ephemeral, opts.Persistent, p.RefreshTokenKey),
		cookies:       tokenstore.New(opts.Ephemeral, opts.Persistent, p.CookieKey),
		jar:           newSessionJar(),
		ready:         make(chan struct{}),
	}

	httpOpts := client.HTTPOptions{
		BaseURL:   base.String(),
		Timeout:   opts.Timeout,
		Transport: opts.Transport,
		Jar:       m.jar,
		Tokens:    m,
	}
	m.auth = client.New(base.String(), client.WithPrincipal(p), client.WithHTTPClient(client.NewBareClient(httpOpts)))

	plainHTTP, err := client.NewHTTPClient(httpOpts)
	if err != nil {
		return nil, fmt.Errorf("session.New: %w", err)
	}
	m.plain = client.New(base.String(), client.WithPrincipal(p), client.WithHTTPClient(plainHTTP))

	httpOpts.Refresher = m
	apiHTTP, err := client.NewHTTPClient(httpOpts)
	if err != nil {
		return nil, fmt.Errorf("session.New: %w", err)
	}
	m.api = client.New(base.String(), client.WithPrincipal(p), client.WithHTTPClient(apiHTTP))

	m.coord = refresh.New(refresh.Options{
		API:           m.auth,
		Principal:     p,
		Tokens:        m.tokens,
		RefreshTokens: m.refreshTokens,
		Timeout:       opts.Timeout,
		Logger:        opts.Logger,
	})
	return m, nil
}

// Init restores a stored session, if any, and then closes Ready. The restored
// token is trusted until a request proves otherwise; CheckSession validates it
// eagerly.
func (m *Manager) Init() error {
	defer m.readyOnce.Do(func() { close(m.ready) })

	if err := tokenstore.LoadCookies(m.cookies, m.jar, m.base); err != nil {
		m.log.Warn("session", "discarding unreadable cookie snapshot", map[string]any{"error": err.Error()})
		m.cookies.Clear() //nolint:errcheck // best effort
	}

	_, p, ok := m.tokens.Lookup()
	if !ok {
		m.setState(domain.Anonymous)
		return nil
	}
	m.setState(domain.Authenticated)
	m.coord.StartTimer(m.interval, m.onTimerFailure)
	m.log.Debug("session", "session restored", map[string]any{
		"principal":   m.principal.Name,
		"persistence": p.String(),
	})
	return nil
}

// Ready is closed once Init has finished.
func (m *Manager) Ready() <-chan struct{} { return m.ready }

// WaitReady blocks until Init has finished or ctx is done.
func (m *Manager) WaitReady(ctx context.Context) error {
	select {
	case <-m.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AccessToken returns the current token. It satisfies client.TokenSource.
func (m *Manager) AccessToken() (string, bool) {
	return m.tokens.Get()
}

// IsAuthenticated reports whether a token is held.
func (m *Manager) IsAuthenticated() bool {
	_, ok := m.tokens.Get()
	return ok
}

// Persistence reports where the token lives.
func (m *Manager) Persistence() (domain.Persistence, bool) {
	_, p, ok := m.tokens.Lookup()
	return p, ok
}

// State returns the current lifecycle state.
func (m *Manager) State() domain.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) setState(s domain.State) {
	m.mu.Lock()
	prev := m.state
	m.state = s
	m.mu.Unlock()
	if prev != s {
		m.log.Debug("session", "state change", map[string]any{"from": prev.String(), "to": s.String()})
	}
}

// Principal returns the token namespace this session belongs to.
func (m *Manager) Principal() domain.Principal { return m.principal }

// BaseURL returns the API origin.
func (m *Manager) BaseURL() *url.URL {
	u := *m.base
	return &u
}

// Client returns the API client whose requests carry the session token.
func (m *Manager) Client() *client.Client { return m.api }

// RefreshTimerRunning reports whether background renewal is active.
func (m *Manager) RefreshTimerRunning() bool { return m.coord.TimerRunning() }

// OnExpired registers fn to run when the session ends because a refresh
// failed. The store has already been cleared when fn runs.
func (m *Manager) OnExpired(fn func(error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpired = append(m.onExpired, fn)
}

// Login exchanges credentials for a token. Any existing session is ended
// first. On failure the session is Anonymous and the error is returned.
func (m *Manager) Login(ctx context.Context, creds domain.Credentials, remember bool) (*domain.TokenResponse, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if creds.Username == "" || creds.Password == "" {
		return nil, ErrMissingCredentials
	}

	m.coord.StopTimer()
	if err := m.clearStores(); err != nil {
		return nil, fmt.Errorf("session.Login: %w", err)
	}
	m.setState(domain.Authenticating)

	tok, err := m.auth.Login(ctx, creds)
	if err != nil {
		m.setState(domain.Anonymous)
		m.log.Info("session", "login failed", map[string]any{
			"principal": m.principal.Name,
			"kind":      client.Classify(err).String(),
		})
		return nil, fmt.Errorf("session.Login: %w", err)
	}

	if err := m.tokens.Set(tok.AccessToken, remember); err != nil {
		m.setState(domain.Anonymous)
		return nil, fmt.Errorf("session.Login: %w", err)
	}
	if tok.RefreshToken != "" {
		if err := m.refreshTokens.Set(tok.RefreshToken, remember); err != nil {
			m.log.Warn("session", "could not store refresh token", map[string]any{"error": err.Error()})
		}
	}
	m.saveCookies()
	m.setState(domain.Authenticated)
	m.coord.StartTimer(m.interval, m.onTimerFailure)

	m.log.Info("session", "login succeeded", map[string]any{
		"principal": m.principal.Name,
		"remember":  remember,
	})
	return tok, nil
}

// Logout ends the session. The remote call is best effort: its failure is
// logged and the local session is cleared regardless.
func (m *Manager) Logout(ctx context.Context) error {
	m.coord.StopTimer()
	if m.IsAuthenticated() {
		if err := m.plain.Logout(ctx); err != nil {
			m.log.Warn("session", "remote logout failed", map[string]any{
				"kind":  client.Classify(err).String(),
				"error": err.Error(),
			})
		}
	}
	err := m.clearStores()
	m.jar.reset()
	m.setState(domain.Anonymous)
	if err != nil {
		return fmt.Errorf("session.Logout: %w", err)
	}
	m.log.Info("session", "logged out", map[string]any{"principal": m.principal.Name})
	return nil
}

// CheckSession asks the backend whether the token is still valid, refreshing
// it if needed. Only an authentication failure ends the session; network and
// timeout errors are returned and the session is kept.
func (m *Manager) CheckSession(ctx context.Context) (bool, error) {
	if !m.IsAuthenticated() {
		return false, nil
	}
	err := m.api.Probe(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, client.ErrSessionExpired):
		return false, nil
	case client.IsStatus(err, http.StatusUnauthorized):
		// The refreshed token was rejected too.
		m.expire(err)
		return false, nil
	default:
		return m.IsAuthenticated(), fmt.Errorf("session.CheckSession: %w", err)
	}
}

// Refresh renews the token through the coordinator. It satisfies
// client.Refresher, so every 401 on the intercepted client lands here.
// A failed renewal ends the session unless the caller gave up first or the
// session was logged out or replaced while the renewal was in flight.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	if m.State() == domain.Authenticated {
		m.setState(domain.Refreshing)
	}
	tok, err := m.coord.Refresh(ctx)
	if err != nil {
		if errors.Is(err, refresh.ErrSessionEnded) {
			return "", err
		}
		if ctx.Err() != nil {
			m.restoreStateAfterRefresh()
			return "", err
		}
		m.expire(err)
		return "", err
	}
	m.saveCookies()
	m.setState(domain.Authenticated)
	return tok, nil
}

func (m *Manager) restoreStateAfterRefresh() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == domain.Refreshing {
		m.state = domain.Authenticated
	}
}

// expire clears the session after a failed refresh and notifies listeners
// once per session.
func (m *Manager) expire(cause error) {
	m.coord.StopTimer()
	if err := m.clearStores(); err != nil {
		m.log.Error("session", "clear after expiry failed", map[string]any{"error": err})
	}

	m.mu.Lock()
	already := m.state == domain.Expired
	m.state = domain.Expired
	hooks := append([]func(error){}, m.onExpired...)
	m.mu.Unlock()
	if already {
		return
	}

	m.log.Warn("session", "session expired", map[string]any{
		"principal": m.principal.Name,
		"kind":      client.Classify(cause).String(),
	})
	for _, fn := range hooks {
		fn(cause)
	}
}

func (m *Manager) onTimerFailure(err error) {
	m.log.Info("session", "background refresh failed; next request will re-check the session", map[string]any{
		"kind": client.Classify(err).String(),
	})
}

// TokenExpiry reads the exp claim of the current token without verifying its
// signature. It is for display only.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	tok, ok := m.tokens.Get()
	if !ok {
		return time.Time{}, false
	}
	return TokenExpiry(tok)
}

// TokenExpiry reads the exp claim of a JWT without verifying it.
func TokenExpiry(token string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Close stops background renewal and persists the cookie jar so the next
// process can refresh the session.
func (m *Manager) Close() error {
	m.closer.Do(func() {
		m.coord.StopTimer()
		m.saveCookies()
	})
	return nil
}

func (m *Manager) clearStores() error {
	return errors.Join(m.tokens.Clear(), m.refreshTokens.Clear(), m.cookies.Clear())
}

// saveCookies snapshots the jar next to the token. With no token (a guest)
// the snapshot goes to the persistent store.
func (m *Manager) saveCookies() {
	remember := true
	if _, p, ok := m.tokens.Lookup(); ok {
		remember = p == domain.Remembered
	}
	paths := []string{"/", "/auth/refresh"}
	if m.principal.PathPrefix != "" {
		paths = append(paths, m.principal.PathPrefix+"/auth/refresh")
	}
	if err := tokenstore.SaveCookies(m.cookies, m.jar, m.base, paths, remember); err != nil {
		m.log.Warn("session", "could not save cookies", map[string]any{"error": err.Error()})
	}
}
