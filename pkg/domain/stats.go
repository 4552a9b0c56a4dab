package domain

// Stat endpoints under /api/stats.
const (
	StatVerifications      = "verification-count"
	StatReports            = "report-count"
	StatReferredPharmacies = "referred-pharmacies-count"
)

// ValidPeriods are the windows accepted by the stats endpoints.
var ValidPeriods = []string{"day", "week", "month", "year"}

// ValidPeriod reports whether p is a known stats window.
func ValidPeriod(p string) bool {
	for _, v := range ValidPeriods {
		if v == p {
			return true
		}
	}
	return false
}

// StatCount is a counter with its value for today.
type StatCount struct {
	Total int    `json:"total"`
	Today int    `json:"today"`
	Error string `json:"error,omitempty"`
}
