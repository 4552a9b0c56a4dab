package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/nexahealth/nexa/pkg/domain"
)

// Client is the NexaHealth API client. It does not manage tokens itself: the
// injected *http.Client (see NewHTTPClient) attaches them and recovers from
// expired ones.
type Client struct {
	baseURL    string
	principal  domain.Principal
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client every request goes through.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithPrincipal selects the auth route family (user or pharmacy).
func WithPrincipal(p domain.Principal) Option {
	return func(c *Client) { c.principal = p }
}

// New creates a new API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		principal:  domain.UserPrincipal,
		httpClient: &http.Client{Transport: &TimeoutTransport{}},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API base URL without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Principal returns the auth route family this client talks to.
func (c *Client) Principal() domain.Principal { return c.principal }

func (c *Client) authPath(p string) string {
	return c.principal.PathPrefix + "/auth" + p
}

// --- Auth ---

// Login exchanges credentials for tokens. Users post the OAuth2 password form;
// pharmacies post JSON.
func (c *Client) Login(ctx context.Context, creds domain.Credentials) (*domain.TokenResponse, error) {
	var tok domain.TokenResponse
	var err error
	if c.principal.JSONLogin {
		body := map[string]string{"email": creds.Username, "password": creds.Password}
		err = c.post(ctx, c.authPath("/login"), body, &tok)
	} else {
		form := url.Values{}
		form.Set("username", creds.Username)
		form.Set("password", creds.Password)
		form.Set("grant_type", "password")
		err = c.postForm(ctx, c.authPath("/login"), form, &tok)
	}
	if err != nil {
		return nil, fmt.Errorf("client.Login: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("client.Login: response has no access token")
	}
	return &tok, nil
}

// Refresh asks the backend for a new access token. With an empty refreshToken
// the refresh cookie in the jar identifies the session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*domain.TokenResponse, error) {
	req, err := c.newRequest(ctx, http.MethodPost, c.authPath("/refresh"), nil)
	if err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", err)
	}
	if refreshToken != "" {
		req.Header.Set("Authorization", "Bearer "+refreshToken)
	}
	var tok domain.TokenResponse
	if err := c.do(req, &tok); err != nil {
		return nil, fmt.Errorf("client.Refresh: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, errors.New("client.Refresh: response has no access token")
	}
	return &tok, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*domain.User, error) {
	var u domain.User
	if err := c.get(ctx, c.authPath("/me"), &u); err != nil {
		return nil, fmt.Errorf("client.Me: %w", err)
	}
	return &u, nil
}

// PharmacyProfile returns the authenticated pharmacy's profile.
func (c *Client) PharmacyProfile(ctx context.Context) (*domain.PharmacyProfile, error) {
	var p domain.PharmacyProfile
	if err := c.get(ctx, domain.PharmacyPrincipal.PathPrefix+"/auth/me", &p); err != nil {
		return nil, fmt.Errorf("client.PharmacyProfile: %w", err)
	}
	return &p, nil
}

// Probe checks that the current token is accepted, discarding the profile.
func (c *Client) Probe(ctx context.Context) error {
	if err := c.get(ctx, c.authPath("/me"), nil); err != nil {
		return fmt.Errorf("client.Probe: %w", err)
	}
	return nil
}

// Logout invalidates the session server-side and clears the refresh cookie.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodPost, c.authPath("/logout"), nil, nil); err != nil {
		return fmt.Errorf("client.Logout: %w", err)
	}
	return nil
}

// RegisterPharmacy creates a pharmacy account.
func (c *Client) RegisterPharmacy(ctx context.Context, reg domain.PharmacyRegistration) error {
	if len(reg.Password) < domain.MinPasswordLen {
		return fmt.Errorf("client.RegisterPharmacy: password must be at least %d characters", domain.MinPasswordLen)
	}
	if err := c.post(ctx, domain.PharmacyPrincipal.PathPrefix+"/auth/register", reg, nil); err != nil {
		return fmt.Errorf("client.RegisterPharmacy: %w", err)
	}
	return nil
}

// --- Referrals ---

// ReferralInfo returns the caller's referral code and progress.
func (c *Client) ReferralInfo(ctx context.Context) (*domain.ReferralInfo, error) {
	var info domain.ReferralInfo
	if err := c.get(ctx, "/referrals/", &info); err != nil {
		return nil, fmt.Errorf("client.ReferralInfo: %w", err)
	}
	return &info, nil
}

// UseReferral credits the owner of code with the caller's signup.
func (c *Client) UseReferral(ctx context.Context, code string, typ domain.ReferralType) (*domain.ReferralResult, error) {
	if typ == "" {
		typ = domain.ReferralUser
	}
	var res domain.ReferralResult
	body := map[string]string{"type": string(typ)}
	if err := c.post(ctx, "/referrals/use/"+url.PathEscape(code), body, &res); err != nil {
		return nil, fmt.Errorf("client.UseReferral: %w", err)
	}
	return &res, nil
}

// ReferralLeaderboard returns the top referrers.
func (c *Client) ReferralLeaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	if err := c.get(ctx, "/referrals/leaderboard", &entries); err != nil {
		return nil, fmt.Errorf("client.ReferralLeaderboard: %w", err)
	}
	return entries, nil
}

// --- Guest sessions ---

// CreateGuestSession starts a guest session. The server sets the
// guest_session_id cookie on the jar.
func (c *Client) CreateGuestSession(ctx context.Context, deviceID string) (*domain.GuestSession, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/guest/session", nil)
	if err != nil {
		return nil, fmt.Errorf("client.CreateGuestSession: %w", err)
	}
	if deviceID != "" {
		req.Header.Set("Device-Id", deviceID)
	}
	var g domain.GuestSession
	if err := c.do(req, &g); err != nil {
		return nil, fmt.Errorf("client.CreateGuestSession: %w", err)
	}
	return &g, nil
}

// GuestSession returns the guest session identified by the cookie.
func (c *Client) GuestSession(ctx context.Context) (*domain.GuestSession, error) {
	var g domain.GuestSession
	if err := c.get(ctx, "/guest/session", &g); err != nil {
		return nil, fmt.Errorf("client.GuestSession: %w", err)
	}
	return &g, nil
}

// EndGuestSession deletes the current guest session.
func (c *Client) EndGuestSession(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodDelete, "/guest/session", nil, nil); err != nil {
		return fmt.Errorf("client.EndGuestSession: %w", err)
	}
	return nil
}

// --- Stats and verification ---

// Stat fetches one counter. An empty period uses the backend default.
func (c *Client) Stat(ctx context.Context, name, period string) (*domain.StatCount, error) {
	path := "/api/stats/" + url.PathEscape(name)
	if period != "" {
		if !domain.ValidPeriod(period) {
			return nil, fmt.Errorf("client.Stat: invalid period %q", period)
		}
		path += "?period=" + url.QueryEscape(period)
	}
	var s domain.StatCount
	if err := c.get(ctx, path, &s); err != nil {
		return nil, fmt.Errorf("client.Stat(%s): %w", name, err)
	}
	return &s, nil
}

// VerifyDrug checks a product against the NAFDAC registry.
func (c *Client) VerifyDrug(ctx context.Context, req domain.DrugVerificationRequest) (*domain.DrugVerificationResponse, error) {
	if req.Empty() {
		return nil, errors.New("client.VerifyDrug: product name or NAFDAC number is required")
	}
	var res domain.DrugVerificationResponse
	if err := c.post(ctx, "/api/verify/drug", req, &res); err != nil {
		return nil, fmt.Errorf("client.VerifyDrug: %w", err)
	}
	return &res, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) postForm(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	if resp.StatusCode >= 400 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB max error body
		if readErr != nil {
			return &HTTPError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("failed to read body: %v", readErr)}
		}
		return parseErrorBody(resp.StatusCode, respBody)
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// parseErrorBody extracts the backend message. FastAPI puts it in "detail",
// either as a string or as a list of validation errors.
func parseErrorBody(code int, body []byte) *HTTPError {
	var apiErr struct {
		Detail  json.RawMessage `json:"detail"`
		Error   string          `json:"error"`
		Message string          `json:"message"`
	}
	if json.Unmarshal(body, &apiErr) == nil {
		if msg := detailMessage(apiErr.Detail); msg != "" {
			return &HTTPError{StatusCode: code, Message: msg}
		}
		if apiErr.Error != "" {
			return &HTTPError{StatusCode: code, Message: apiErr.Error}
		}
		if apiErr.Message != "" {
			return &HTTPError{StatusCode: code, Message: apiErr.Message}
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		msg = http.StatusText(code)
	}
	return &HTTPError{StatusCode: code, Message: msg}
}

func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if json.Unmarshal(raw, &items) == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return ""
}
