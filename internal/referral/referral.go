// Package referral captures a referral code from an invite link and redeems
// it once the user has a session.
package referral

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"sync"

	"github.com/nexahealth/nexa/internal/logger"
	"github.com/nexahealth/nexa/internal/tokenstore"
	"github.com/nexahealth/nexa/pkg/client"
	"github.com/nexahealth/nexa/pkg/domain"
)

// PendingKey is where a captured code waits in the durable store.
const PendingKey = "nexahealth_pending_referral"

var (
	ErrNoPending        = errors.New("no pending referral code")
	ErrNotAuthenticated = errors.New("log in to apply a referral code")
	ErrInvalidCode      = errors.New("invalid referral code")
)

var codePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{4,32}$`)

// CodeFromURL returns the ref query parameter of an invite link. A bare code
// is accepted as is.
func CodeFromURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidCode
	}
	code := raw
	if strings.ContainsAny(raw, "?/=") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInvalidCode, err)
		}
		code = u.Query().Get("ref")
	}
	if !codePattern.MatchString(code) {
		return "", ErrInvalidCode
	}
	return strings.ToUpper(code), nil
}

// API is the backend call that redeems a code.
type API interface {
	UseReferral(ctx context.Context, code string, typ domain.ReferralType) (*domain.ReferralResult, error)
}

// Session is the part of the session manager the applier waits on.
type Session interface {
	WaitReady(ctx context.Context) error
	IsAuthenticated() bool
}

// Applier redeems the pending code at most once.
type Applier struct {
	store   tokenstore.Backend
	api     API
	session Session
	typ     domain.ReferralType
	log     logger.Logger

	mu sync.Mutex
}

// NewApplier returns an applier that keeps the pending code in store.
func NewApplier(store tokenstore.Backend, api API, session Session, typ domain.ReferralType, log logger.Logger) *Applier {
	if log == nil {
		log = logger.NewNop()
	}
	if typ == "" {
		typ = domain.ReferralUser
	}
	return &Applier{store: store, api: api, session: session, typ: typ, log: log}
}

// Capture records code for later redemption, replacing any earlier one.
func (a *Applier) Capture(code string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.store.Set(PendingKey, code); err != nil {
		return fmt.Errorf("referral.Capture: %w", err)
	}
	a.log.Info("referral", "referral code captured", map[string]any{"code": code})
	return nil
}

// Pending returns the captured code, if any.
func (a *Applier) Pending() (string, bool) {
	return a.store.Get(PendingKey)
}

// ApplyPending redeems the captured code. The record is removed right after
// the backend accepts it, and also when the backend rejects the code, since
// retrying a rejected code cannot succeed. Network failures keep it for the
// next attempt. Overlapping calls are serialised, so a double fire produces
// one backend call and ErrNoPending for the second caller.
func (a *Applier) ApplyPending(ctx context.Context) (*domain.ReferralResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	code, ok := a.store.Get(PendingKey)
	if !ok || code == "" {
		return nil, ErrNoPending
	}
	if err := a.session.WaitReady(ctx); err != nil {
		return nil, fmt.Errorf("referral.ApplyPending: %w", err)
	}
	if !a.session.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	res, err := a.api.UseReferral(ctx, code, a.typ)
	if err != nil {
		if client.IsValidation(err) {
			a.drop(code, "rejected")
		}
		return nil, fmt.Errorf("referral.ApplyPending: %w", err)
	}
	a.drop(code, "applied")
	return res, nil
}

func (a *Applier) drop(code, reason string) {
	if err := a.store.Delete(PendingKey); err != nil {
		a.log.Error("referral", "could not clear pending code", map[string]any{"error": err})
		return
	}
	a.log.Info("referral", "pending code cleared", map[string]any{"code": code, "reason": reason})
}

// Channels lists the share targets ShareURL knows.
var Channels = []string{"whatsapp", "twitter", "telegram", "email"}

// ShareURL builds the share link for channel.
func ShareURL(channel, link string) (string, error) {
	switch strings.ToLower(channel) {
	case "whatsapp":
		msg := "Join me on NexaHealth! Verify drugs, manage prescriptions, unlock AI health features. Use my link: " + link
		return "https://wa.me/?text=" + url.QueryEscape(msg), nil
	case "twitter", "x":
		msg := "I'm using NexaHealth! Verify drugs, track prescriptions & unlock AI health. Join via my link: " + link
		return "https://twitter.com/intent/tweet?text=" + url.QueryEscape(msg), nil
	case "telegram":
		msg := "NexaHealth is the future of healthcare in Naija! Join now: " + link
		return "https://t.me/share/url?url=" + url.QueryEscape(link) + "&text=" + url.QueryEscape(msg), nil
	case "email":
		subject := "Join NexaHealth with me!"
		body := "Hey! Check out NexaHealth. Use my link: " + link
		return "mailto:?subject=" + mailtoEscape(subject) + "&body=" + mailtoEscape(body), nil
	}
	return "", fmt.Errorf("unknown share channel %q (want one of %s)", channel, strings.Join(Channels, ", "))
}

// mailtoEscape escapes a mailto header value. Mail clients do not decode "+"
// as a space, so spaces are percent-encoded.
func mailtoEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Progress renders "n/goal referrals".
func Progress(count int) string {
	return fmt.Sprintf("%d/%d referrals", count, domain.ReferralGoal)
}
