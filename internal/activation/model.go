package activation

// Request is the inbound verification payload.
type Request struct {
	LicenseKey string `json:"license_key" validate:"required"`
	HWID       string `json:"hwid" validate:"required"`
}

// Reason explains a negative verification result.
type Reason string

const (
	ReasonNotFound  Reason = "NOT_FOUND"
	ReasonNotActive Reason = "NOT_ACTIVE"
)

// Result is the outcome of a verification. ProductType is only set when
// Valid is true; Reason and Message only when it is false.
type Result struct {
	Valid       bool   `json:"valid"`
	HWIDMatch   bool   `json:"hwid_match"`
	ProductType string `json:"product_type,omitempty"`
	Reason      Reason `json:"reason,omitempty"`
	Message     string `json:"message,omitempty"`
}

func notFound() *Result {
	return &Result{Reason: ReasonNotFound, Message: "license not found"}
}

func notActive() *Result {
	return &Result{Reason: ReasonNotActive, Message: "license not activated"}
}

func valid(productType string, match bool) *Result {
	return &Result{Valid: true, HWIDMatch: match, ProductType: productType}
}
