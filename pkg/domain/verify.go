package domain

import "time"

// DrugVerificationRequest is the payload for POST /api/verify/drug.
// At least one of ProductName or NafdacRegNo should be set.
type DrugVerificationRequest struct {
	ProductName  string `json:"product_name,omitempty"`
	NafdacRegNo  string `json:"nafdac_reg_no,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	GenericName  string `json:"generic_name,omitempty"`
	DosageForm   string `json:"dosage_form,omitempty"`
}

// Empty reports whether the request has nothing to match on.
func (r DrugVerificationRequest) Empty() bool {
	return r.ProductName == "" && r.NafdacRegNo == ""
}

// DrugVerificationResponse is the verification verdict.
type DrugVerificationResponse struct {
	Status               string     `json:"status"`
	Message              string     `json:"message"`
	ProductName          string     `json:"product_name,omitempty"`
	DosageForm           string     `json:"dosage_form,omitempty"`
	Strength             string     `json:"strength,omitempty"`
	NafdacRegNo          string     `json:"nafdac_reg_no,omitempty"`
	Manufacturer         string     `json:"manufacturer,omitempty"`
	MatchScore           int        `json:"match_score"`
	ReportCount          int        `json:"report_count"`
	Confidence           string     `json:"confidence"`
	LastVerified         *time.Time `json:"last_verified,omitempty"`
	RequiresConfirmation bool       `json:"requires_confirmation"`
	RequiresNafdac       bool       `json:"requires_nafdac"`
}

// Verified reports whether the backend confirmed the product.
func (r DrugVerificationResponse) Verified() bool {
	return r.Status == "verified" || r.Status == "VERIFIED"
}
