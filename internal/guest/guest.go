// Package guest tracks the server-issued anonymous session used before the
// user signs up. It is independent of the authenticated session.
package guest

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nexahealth/nexa/internal/logger"
	"github.com/nexahealth/nexa/internal/tokenstore"
	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

const (
	// DeviceIDKey stores the generated device id in the durable store.
	DeviceIDKey = "nexahealth_device_id"
	// DefaultLimit is how many times a guest may use a gated feature.
	DefaultLimit = 3
)

// DeviceID returns the persisted device id, generating one on first use. The
// backend wants 32 to 256 characters, so the uuid is used without dashes.
func DeviceID(store tokenstore.Backend) (string, error) {
	if id, ok := store.Get(DeviceIDKey); ok && len(id) >= 32 {
		return id, nil
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := store.Set(DeviceIDKey, id); err != nil {
		return "", fmt.Errorf("guest.DeviceID: %w", err)
	}
	return id, nil
}

// API is the guest session endpoint.
type API interface {
	CreateGuestSession(ctx context.Context, deviceID string) (*domain.GuestSession, error)
	GuestSession(ctx context.Context) (*domain.GuestSession, error)
	EndGuestSession(ctx context.Context) error
}

// Tracker keeps the current guest session valid and checks usage limits.
type Tracker struct {
	api   API
	store tokenstore.Backend
	limit int
	log   logger.Logger
	now   func() time.Time

	mu      sync.Mutex
	current *domain.GuestSession
}

// NewTracker returns a tracker. limit <= 0 means DefaultLimit.
func NewTracker(api API, store tokenstore.Backend, limit int, log logger.Logger) *Tracker {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Tracker{api: api, store: store, limit: limit, log: log, now: time.Now}
}

// Ensure returns a valid guest session. The session named by the cookie is
// reused; a missing (404) or expired (410) one is replaced.
func (t *Tracker) Ensure(ctx context.Context) (*domain.GuestSession, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, err := t.api.GuestSession(ctx)
	switch {
	case err == nil && !g.Expired(t.now()):
		t.current = g
		return g, nil
	case err == nil:
		t.log.Info("guest", "guest session expired locally", map[string]any{"id": g.ID.String()})
	case client.IsStatus(err, http.StatusNotFound), client.IsStatus(err, http.StatusGone):
	default:
		return nil, fmt.Errorf("guest.Ensure: %w", err)
	}
	return t.create(ctx)
}

func (t *Tracker) create(ctx context.Context) (*domain.GuestSession, error) {
	deviceID, err := DeviceID(t.store)
	if err != nil {
		return nil, err
	}
	g, err := t.api.CreateGuestSession(ctx, deviceID)
	if err != nil {
		return nil, fmt.Errorf("guest.Ensure: %w", err)
	}
	t.current = g
	t.log.Info("guest", "guest session created", map[string]any{"id": g.ID.String()})
	return g, nil
}

// Current returns the last session seen by Ensure.
func (t *Tracker) Current() *domain.GuestSession {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Remaining is how many more uses of feature the guest has.
func (t *Tracker) Remaining(feature string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	used := 0
	if t.current != nil {
		used = t.current.Usage(feature)
	}
	if used >= t.limit {
		return 0
	}
	return t.limit - used
}

// LimitReached reports whether the guest has used up feature.
func (t *Tracker) LimitReached(feature string) bool {
	return t.Remaining(feature) == 0
}

// End deletes the guest session on the server.
func (t *Tracker) End(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.api.EndGuestSession(ctx); err != nil {
		return fmt.Errorf("guest.End: %w", err)
	}
	t.current = nil
	return nil
}
