package domain

// ReferralType says who joined through a referral code. Pharmacies earn the
// referrer more points than users.
type ReferralType string

const (
	ReferralUser     ReferralType = "user"
	ReferralPharmacy ReferralType = "pharmacy"
)

// ReferralInfo is the caller's referral summary from GET /referrals/.
type ReferralInfo struct {
	ReferralCode       string   `json:"referralCode"`
	ReferralLink       string   `json:"referralLink"`
	UsersReferred      int      `json:"usersReferred"`
	PharmaciesReferred int      `json:"pharmaciesReferred"`
	Points             int      `json:"points"`
	SuperAccess        bool     `json:"superAccess"`
	Badges             []string `json:"badges"`
}

// Referred is the total number of joiners credited to the caller.
func (r ReferralInfo) Referred() int {
	return r.UsersReferred + r.PharmaciesReferred
}

// ReferralResult is the response to POST /referrals/use/{code}.
// Applied is false when the code was already claimed by this user.
type ReferralResult struct {
	Applied  bool   `json:"applied"`
	Message  string `json:"message"`
	NewCount int    `json:"newCount,omitempty"`
}

// LeaderboardEntry is one row of the referral leaderboard.
type LeaderboardEntry struct {
	Username string `json:"username"`
	Count    int    `json:"count"`
}

// ReferralGoal is the number of referrals that unlocks early access.
const ReferralGoal = 3

// Badges returns the badges earned for a referral count.
func Badges(count int) []string {
	var badges []string
	if count >= 1 {
		badges = append(badges, "Plug")
	}
	if count >= 2 {
		badges = append(badges, "Hype Squad")
	}
	if count >= ReferralGoal {
		badges = append(badges, "Odogwu")
	}
	return badges
}
