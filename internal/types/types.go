package types

import "time"

// GeneratedSample is a named unit of source code to verify.
type GeneratedSample struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// TypeCheckRequest is the input handed to a language oracle. Empty strings mean "not set".
type TypeCheckRequest struct {
	Code                 string `json:"code"`
	ClientDistPath       string `json:"client_dist_path,omitempty"`
	PackageNameToExclude string `json:"package_name_to_exclude,omitempty"`
}

type TypeCheckResult struct {
	Succeeded bool   `json:"succeeded"`
	Output    string `json:"output"`
}

// VerificationAttempt records one oracle invocation. Preflight is set on the synthetic
// attempt produced when verification ends before the first real attempt.
type VerificationAttempt struct {
	AttemptNumber      int           `json:"attempt_number"`
	TypeCheckSucceeded bool          `json:"type_check_succeeded"`
	TypeCheckOutput    string        `json:"type_check_output"`
	Duration           time.Duration `json:"duration"`
	DurationSeconds    float64       `json:"duration_seconds"`
	Preflight          bool          `json:"preflight,omitempty"`
}

// VerificationResult is the terminal outcome of one verification call.
type VerificationResult struct {
	Succeeded    bool                  `json:"succeeded"`
	Content      string                `json:"content"`
	AttemptsMade int                   `json:"attempts_made"`
	Attempts     []VerificationAttempt `json:"attempts"`
}

// VerificationRecord is a VerificationResult plus the run metadata persisted under results/.
type VerificationRecord struct {
	RunID                string             `json:"run_id"`
	Sample               string             `json:"sample"`
	Language             string             `json:"language"`
	ClientDistPath       string             `json:"client_dist_path,omitempty"`
	PackageNameToExclude string             `json:"package_name_to_exclude,omitempty"`
	VerifiedAt           time.Time          `json:"verified_at"`
	Result               VerificationResult `json:"result"`
}

// TotalDuration sums the duration of every recorded attempt.
func (r *VerificationResult) TotalDuration() time.Duration {
	if r == nil {
		return 0
	}
	var total time.Duration
	for _, a := range r.Attempts {
		total += a.Duration
	}
	return total
}
