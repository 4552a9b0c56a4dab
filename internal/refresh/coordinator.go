// Package refresh renews access tokens. Concurrent renewals collapse into one
// network call, and a background ticker renews ahead of expiry.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nexahealth/nexa/internal/logger"
	"github.com/nexahealth/nexa/internal/tokenstore"
	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

// DefaultInterval renews a 15 minute token one minute before it lapses.
const DefaultInterval = 14 * time.Minute

// TokenAPI is the refresh endpoint.
type TokenAPI interface {
	Refresh(ctx context.Context, refreshToken string) (*domain.TokenResponse, error)
}

// ErrSessionEnded reports that the session was cleared or replaced while a
// renewal was in flight. The renewed token is discarded.
var ErrSessionEnded = errors.New("session ended during refresh")

// Options configures a Coordinator.
type Options struct {
	API           TokenAPI
	Principal     domain.Principal
	Tokens        *tokenstore.Store
	RefreshTokens *tokenstore.Store
	// Timeout bounds one renewal. Zero means client.DefaultTimeout.
	Timeout time.Duration
	Logger  logger.Logger
}

// Coordinator performs token renewal.
type Coordinator struct {
	api           TokenAPI
	principal     domain.Principal
	tokens        *tokenstore.Store
	refreshTokens *tokenstore.Store
	timeout       time.Duration
	log           logger.Logger

	group singleflight.Group

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New returns a coordinator.
func New(opts Options) *Coordinator {
	if opts.Timeout <= 0 {
		opts.Timeout = client.DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNop()
	}
	return &Coordinator{
		api:           opts.API,
		principal:     opts.Principal,
		tokens:        opts.Tokens,
		refreshTokens: opts.RefreshTokens,
		timeout:       opts.Timeout,
		log:           opts.Logger,
	}
}

// Refresh renews the access token and returns it. Callers arriving while a
// renewal is in flight wait for that renewal instead of starting another. The
// shared renewal is not cancelled when one caller gives up; ctx only bounds
// how long this caller waits.
func (c *Coordinator) Refresh(ctx context.Context) (string, error) {
	ch := c.group.DoChan(c.principal.Name, func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
		defer cancel()
		return c.renew(rctx)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Coordinator) renew(ctx context.Context) (string, error) {
	current, ok := c.tokens.Get()
	if !ok {
		return "", fmt.Errorf("%w: %w", client.ErrRefresh, ErrSessionEnded)
	}
	var refreshToken string
	if c.principal.BearerRefresh {
		rt, ok := c.refreshTokens.Get()
		if !ok {
			return "", fmt.Errorf("%w: no refresh token stored", client.ErrRefresh)
		}
		refreshToken = rt
	}

	start := time.Now()
	tok, err := c.api.Refresh(ctx, refreshToken)
	if err != nil {
		c.log.Warn("refresh", "token refresh failed", map[string]any{
			"principal": c.principal.Name,
			"error":     err.Error(),
		})
		return "", fmt.Errorf("%w: %w", client.ErrRefresh, err)
	}

	// The token is swapped in place, keeping the persistence chosen at login.
	// A session cleared or replaced while the call was in flight is left alone.
	persistence, swapped, err := c.tokens.CompareAndSwap(current, tok.AccessToken)
	if err != nil {
		return "", fmt.Errorf("refresh.renew: %w", err)
	}
	if !swapped {
		return "", fmt.Errorf("%w: %w", client.ErrRefresh, ErrSessionEnded)
	}
	if tok.RefreshToken != "" && c.refreshTokens != nil {
		if refreshToken != "" {
			_, _, err = c.refreshTokens.CompareAndSwap(refreshToken, tok.RefreshToken)
		} else {
			err = c.refreshTokens.SetAs(tok.RefreshToken, persistence)
		}
		if err != nil {
			return "", fmt.Errorf("refresh.renew: %w", err)
		}
	}

	c.log.Info("refresh", "token refreshed", map[string]any{
		"principal":   c.principal.Name,
		"persistence": persistence.String(),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return tok.AccessToken, nil
}

// StartTimer renews the token every interval until StopTimer is called or a
// renewal fails. A failed tick stops the timer and is reported to onFailure;
// the stored token is left for the next request to discover. Starting a
// running timer restarts it.
func (c *Coordinator) StartTimer(interval time.Duration, onFailure func(error)) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	c.StopTimer()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.mu.Lock()
	c.cancel, c.done = cancel, done
	c.mu.Unlock()

	go c.run(ctx, interval, done, onFailure)
}

func (c *Coordinator) run(ctx context.Context, interval time.Duration, done chan struct{}, onFailure func(error)) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		_, err := c.Refresh(ctx)
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return
		}

		c.mu.Lock()
		if c.done == done {
			c.cancel()
			c.cancel, c.done = nil, nil
		}
		c.mu.Unlock()

		c.log.Warn("refresh", "background refresh stopped", map[string]any{"error": err.Error()})
		if onFailure != nil {
			onFailure(err)
		}
		return
	}
}

// StopTimer stops the background renewal and waits for it to exit. It is
// safe to call when no timer is running.
func (c *Coordinator) StopTimer() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.cancel, c.done = nil, nil
	c.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// TimerRunning reports whether background renewal is active.
func (c *Coordinator) TimerRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done != nil
}
