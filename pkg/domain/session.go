package domain

import "strings"

// Persistence selects which backing store holds the access token.
type Persistence int

const (
	// Ephemeral tokens live only as long as the shell (or process) that created them.
	Ephemeral Persistence = iota
	// Remembered tokens are written to the durable store and survive restarts.
	Remembered
)

func (p Persistence) String() string {
	if p == Remembered {
		return "remembered"
	}
	return "ephemeral"
}

// State is a Session Manager lifecycle state.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
	Refreshing
	Expired
)

func (s State) String() string {
	switch s {
	case Anonymous:
		return "anonymous"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	case Expired:
		return "expired"
	default:
		return "unknown"
	}
}

// Principal is a token namespace. The consumer app and the pharmacy dashboard
// authenticate against differently prefixed routes and keep their tokens under
// different storage keys.
type Principal struct {
	Name            string
	PathPrefix      string
	TokenKey        string
	RefreshTokenKey string
	CookieKey       string
	// JSONLogin posts {email, password} instead of the OAuth2 password form.
	JSONLogin bool
	// BearerRefresh sends the stored refresh token as the Authorization header
	// on /auth/refresh. Otherwise the refresh cookie carries it.
	BearerRefresh bool
}

var (
	UserPrincipal = Principal{
		Name:            "user",
		TokenKey:        "nexahealth_access_token",
		RefreshTokenKey: "nexahealth_refresh_token",
		CookieKey:       "nexahealth_cookies",
	}

	PharmacyPrincipal = Principal{
		Name:            "pharmacy",
		PathPrefix:      "/pharmacy",
		TokenKey:        "nexahealth_pharmacy_token",
		RefreshTokenKey: "nexahealth_pharmacy_refresh_token",
		CookieKey:       "nexahealth_pharmacy_cookies",
		JSONLogin:       true,
		BearerRefresh:   true,
	}
)

// PrincipalByName looks up a principal by its configured name.
func PrincipalByName(name string) (Principal, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", UserPrincipal.Name:
		return UserPrincipal, true
	case PharmacyPrincipal.Name:
		return PharmacyPrincipal, true
	}
	return Principal{}, false
}
