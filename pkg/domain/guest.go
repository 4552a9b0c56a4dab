package domain

import (
	"time"

	"github.com/google/uuid"
)

// GuestSession is the server-tracked identity of an anonymous user. The server
// issues it as the guest_session_id cookie and expires it after seven days.
type GuestSession struct {
	ID           uuid.UUID      `json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	ExpiresAt    time.Time      `json:"expires_at"`
	LastUsedAt   time.Time      `json:"last_used_at"`
	RequestCount int            `json:"request_count"`
	FeatureUsage map[string]int `json:"feature_usage"`
	CSRFToken    string         `json:"csrf_token,omitempty"`
	DeviceID     *string        `json:"device_id,omitempty"`
}

// FeatureRiskAssessment is the usage counter the backend seeds every guest with.
const FeatureRiskAssessment = "risk_assessment"

// Expired reports whether the session is past its expiry at now.
func (g *GuestSession) Expired(now time.Time) bool {
	return !g.ExpiresAt.IsZero() && !now.Before(g.ExpiresAt)
}

// Usage returns how many times the guest used feature.
func (g *GuestSession) Usage(feature string) int {
	if g.FeatureUsage == nil {
		return 0
	}
	return g.FeatureUsage[feature]
}
