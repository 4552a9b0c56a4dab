package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nexahealth/nexa/pkg/domain"
)

func TestLogin_UserForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/login" {
			http.NotFound(w, r)
			return
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("Content-Type = %q, want form", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("ParseForm: %v", err)
		}
		if r.Form.Get("grant_type") != "password" {
			t.Errorf("grant_type = %q, want password", r.Form.Get("grant_type"))
		}
		if r.Form.Get("username") != "ada@example.com" || r.Form.Get("password") != "secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"detail": "Incorrect email or password"}) //nolint:errcheck
			return
		}
		json.NewEncoder(w).Encode(domain.TokenResponse{AccessToken: "tok", TokenType: "bearer"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL)
	tok, err := c.Login(context.Background(), domain.Credentials{Username: "ada@example.com", Password: "secret123"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if tok.AccessToken != "tok" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "tok")
	}

	_, err = c.Login(context.Background(), domain.Credentials{Username: "ada@example.com", Password: "wrong"})
	if !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("error = %v, want HTTP 401", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.Message != "Incorrect email or password" {
		t.Errorf("message = %v, want backend detail", err)
	}
}

func TestLogin_PharmacyJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/pharmacy/auth/login" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["email"] != "shop@example.com" {
			t.Errorf("email = %q", body["email"])
		}
		json.NewEncoder(w).Encode(domain.TokenResponse{ //nolint:errcheck
			AccessToken:  "ptok",
			RefreshToken: "prefresh",
			PharmacyName: "Good Health",
		})
	}))
	defer srv.Close()

	c := New(srv.URL, WithPrincipal(domain.PharmacyPrincipal))
	tok, err := c.Login(context.Background(), domain.Credentials{Username: "shop@example.com", Password: "password1"})
	if err != nil {
		t.Fatalf("Login() error: %v", err)
	}
	if tok.RefreshToken != "prefresh" || tok.PharmacyName != "Good Health" {
		t.Errorf("token = %+v", tok)
	}
}

func TestRefresh_BearerHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/pharmacy/auth/refresh" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer rt" {
			t.Errorf("Authorization = %q, want %q", got, "Bearer rt")
		}
		json.NewEncoder(w).Encode(domain.TokenResponse{AccessToken: "new"}) //nolint:errcheck
	}))
	defer srv.Close()

	c := New(srv.URL, WithPrincipal(domain.PharmacyPrincipal))
	tok, err := c.Refresh(context.Background(), "rt")
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if tok.AccessToken != "new" {
		t.Errorf("AccessToken = %q, want %q", tok.AccessToken, "new")
	}
}

func TestRefresh_EmptyTokenRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`)) //nolint:errcheck
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Refresh(context.Background(), ""); err == nil {
		t.Fatal("expected error for response without access token")
	}
}

func TestMe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/me" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(domain.User{Email: "ada@example.com", FirstName: "Ada", LastName: "Obi"}) //nolint:errcheck
	}))
	defer srv.Close()

	me, err := New(srv.URL).Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error: %v", err)
	}
	if got := me.DisplayName(); got != "Ada Obi" {
		t.Errorf("DisplayName() = %q, want %q", got, "Ada Obi")
	}
}

func TestUseReferral(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/referrals/use/ABC123" {
			http.NotFound(w, r)
			return
		}
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body) //nolint:errcheck
		if body["type"] != "user" {
			t.Errorf("type = %q, want user", body["type"])
		}
		json.NewEncoder(w).Encode(domain.ReferralResult{Applied: true, NewCount: 2}) //nolint:errcheck
	}))
	defer srv.Close()

	res, err := New(srv.URL).UseReferral(context.Background(), "ABC123", "")
	if err != nil {
		t.Fatalf("UseReferral() error: %v", err)
	}
	if !res.Applied || res.NewCount != 2 {
		t.Errorf("result = %+v", res)
	}
}

func TestCreateGuestSession_DeviceHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Device-Id"); got != "0123456789abcdef0123456789abcdef" {
			t.Errorf("Device-Id = %q", got)
		}
		http.SetCookie(w, &http.Cookie{Name: "guest_session_id", Value: "g1", Path: "/"})
		w.Write([]byte(`{"id":"6f1c2f2e-3b0c-4a59-9f43-6a1f4f7c2b11","feature_usage":{"risk_assessment":0}}`)) //nolint:errcheck
	}))
	defer srv.Close()

	g, err := New(srv.URL).CreateGuestSession(context.Background(), "0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("CreateGuestSession() error: %v", err)
	}
	if g.ID.String() != "6f1c2f2e-3b0c-4a59-9f43-6a1f4f7c2b11" {
		t.Errorf("ID = %s", g.ID)
	}
}

func TestStat_InvalidPeriod(t *testing.T) {
	c := New("http://unused.invalid")
	if _, err := c.Stat(context.Background(), domain.StatReports, "decade"); err == nil {
		t.Fatal("expected error for invalid period")
	}
}

func TestStat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/stats/verification-count" || r.URL.Query().Get("period") != "week" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"total":42,"today":3}`)) //nolint:errcheck
	}))
	defer srv.Close()

	s, err := New(srv.URL).Stat(context.Background(), domain.StatVerifications, "week")
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if s.Total != 42 || s.Today != 3 {
		t.Errorf("stat = %+v", s)
	}
}

func TestVerifyDrug_RequiresInput(t *testing.T) {
	if _, err := New("http://unused.invalid").VerifyDrug(context.Background(), domain.DrugVerificationRequest{}); err == nil {
		t.Fatal("expected error for empty request")
	}
}

func TestParseErrorBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"detail string", `{"detail":"Code not found"}`, "Code not found"},
		{"detail list", `{"detail":[{"msg":"field required"},{"msg":"invalid email"}]}`, "field required; invalid email"},
		{"error field", `{"error":"bad input"}`, "bad input"},
		{"message field", `{"message":"nope"}`, "nope"},
		{"plain text", "gateway down", "gateway down"},
		{"empty", "", "Bad Request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseErrorBody(http.StatusBadRequest, []byte(tt.body))
			if got.Message != tt.want {
				t.Errorf("Message = %q, want %q", got.Message, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{&HTTPError{StatusCode: 401}, KindAuth},
		{&HTTPError{StatusCode: 404}, KindValidation},
		{&HTTPError{StatusCode: 502}, KindServer},
		{ErrRefresh, KindAuth},
		{errors.Join(ErrSessionExpired, ErrRefresh), KindSessionExpired},
		{context.Canceled, KindCanceled},
		{errors.New("boom"), KindOther},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestUserMessage_ValidationVerbatim(t *testing.T) {
	err := &HTTPError{StatusCode: 400, Message: "Referral code already used"}
	if got := UserMessage(err); got != "Referral code already used" {
		t.Errorf("UserMessage() = %q", got)
	}
	if !IsValidation(err) {
		t.Error("IsValidation() = false, want true")
	}
	if IsValidation(&HTTPError{StatusCode: 401}) {
		t.Error("401 must not count as validation")
	}
	if !strings.Contains(UserMessage(ErrTimeout), "timeout") {
		t.Errorf("UserMessage(ErrTimeout) = %q", UserMessage(ErrTimeout))
	}
}

func TestUserMessage_Unauthorized(t *testing.T) {
	withDetail := parseErrorBody(http.StatusUnauthorized, []byte(`{"detail":"Incorrect email or password"}`))
	if got := UserMessage(withDetail); got != "Incorrect email or password" {
		t.Errorf("UserMessage(401 with detail) = %q", got)
	}
	bare := parseErrorBody(http.StatusUnauthorized, nil)
	if got := UserMessage(bare); got != "You are not logged in." {
		t.Errorf("UserMessage(bare 401) = %q", got)
	}
}
