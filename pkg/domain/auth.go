package domain

import "time"

// Credentials are what the user types into the login form.
type Credentials struct {
	Username string
	Password string
}

// TokenResponse is returned by /auth/login and /auth/refresh.
// The pharmacy routes also return a refresh token and the pharmacy identity.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	TokenType    string `json:"token_type,omitempty"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	PharmacyID   string `json:"pharmacy_id,omitempty"`
	PharmacyName string `json:"pharmacy_name,omitempty"`
}

// User is the public profile returned by /auth/me.
type User struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	FirstName     string     `json:"first_name"`
	LastName      string     `json:"last_name"`
	EmailVerified bool       `json:"email_verified"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	LastLogin     *time.Time `json:"last_login,omitempty"`
}

// DisplayName prefers the full name and falls back to the email.
func (u User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Email
	}
	return name
}

// PharmacyProfile is returned by /pharmacy/auth/me.
type PharmacyProfile struct {
	ID                  string   `json:"id"`
	PharmacyName        string   `json:"pharmacy_name"`
	Email               string   `json:"email"`
	PhoneNumber         string   `json:"phone_number"`
	Status              string   `json:"status"`
	Badges              []string `json:"badges,omitempty"`
	ProfileCompleteness int      `json:"profile_completeness"`
	AvgRating           *float64 `json:"avg_rating,omitempty"`
	TotalVerifications  int      `json:"total_verifications"`
}

// PharmacyRegistration is the payload for /pharmacy/auth/register.
type PharmacyRegistration struct {
	PharmacyName string `json:"pharmacy_name"`
	Email        string `json:"email"`
	PhoneNumber  string `json:"phone_number"`
	Password     string `json:"password"`
}

// MinPasswordLen is the shortest password the registration form accepts.
const MinPasswordLen = 8
