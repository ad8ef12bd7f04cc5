package domain

// Mode holds the process-wide policy flags read by the decision engine.
// Lockdown declines every join request; Strict declines unverified users
// instead of leaving them pending. The flags are orthogonal and take
// effect for subsequently evaluated requests only.
type Mode struct {
	Lockdown bool `json:"lockdown"`
	Strict   bool `json:"strict"`
}
