package gate

import (
	"errors"
	"time"
)

// DefaultMinDuration is the minimum recording length used when the caller
// has no more specific requirement.
const DefaultMinDuration = 12 * time.Second

// ErrInvalidThreshold is returned for a non-positive minimum duration.
var ErrInvalidThreshold = errors.New("gate: minimum duration must be positive")

// Severity classifies an issue.
type Severity string

const (
	// SeverityWarning is advisory and never blocks acceptance.
	SeverityWarning Severity = "warning"

	// SeverityError blocks acceptance.
	SeverityError Severity = "error"
)

// IssueCode identifies the check that produced an issue.
type IssueCode string

const (
	CodePortrait       IssueCode = "portrait"
	CodeResolutionLow  IssueCode = "resolution_low"
	CodeResolutionHint IssueCode = "resolution_recommended"
	CodeTooShort       IssueCode = "too_short"
	CodeTooSmall       IssueCode = "too_small"
	CodeProbeFailed    IssueCode = "probe_failed"

	// CodeContainerMismatch marks a segment whose container differs from
	// the segments already accepted in the same session.
	CodeContainerMismatch IssueCode = "container_mismatch"
)

// Issue is one finding of a check.
type Issue struct {
	Code     IssueCode `json:"code"`
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
}

// Blocking reports whether the issue prevents acceptance.
func (i Issue) Blocking() bool {
	return i.Severity == SeverityError
}

// CheckResult is the verdict for one segment.
//
// Warnings and Errors hold the user-facing messages in check order. Issues
// carries the same findings with their codes.
type CheckResult struct {
	Accepted bool     `json:"accepted"`
	Warnings []string `json:"warnings"`
	Errors   []string `json:"errors"`
	Issues   []Issue  `json:"issues"`
}

// newResult derives Accepted, Warnings and Errors from issues.
func newResult(issues []Issue) CheckResult {
	r := CheckResult{
		Warnings: []string{},
		Errors:   []string{},
		Issues:   issues,
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
	for _, is := range r.Issues {
		if is.Blocking() {
			r.Errors = append(r.Errors, is.Message)
		} else {
			r.Warnings = append(r.Warnings, is.Message)
		}
	}
	r.Accepted = len(r.Errors) == 0
	return r
}

// With returns a copy of r with is added and the verdict recomputed.
func (r CheckResult) With(is Issue) CheckResult {
	issues := make([]Issue, 0, len(r.Issues)+1)
	issues = append(issues, r.Issues...)
	return newResult(append(issues, is))
}

// HasCode reports whether the result contains an issue with the given code.
func (r CheckResult) HasCode(code IssueCode) bool {
	for _, is := range r.Issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

// Thresholds are the fixed floors applied by the gate.
type Thresholds struct {
	// MinHeight is the lowest accepted frame height in pixels.
	MinHeight int `koanf:"min_height" json:"min_height"`

	// RecommendedHeight is the height below which a warning is emitted.
	RecommendedHeight int `koanf:"recommended_height" json:"recommended_height"`

	// MinBytes is the smallest payload that is not treated as degenerate.
	MinBytes int64 `koanf:"min_bytes" json:"min_bytes"`
}

// DefaultThresholds returns 720p minimum, 1080p recommended and 100 KiB.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinHeight:         720,
		RecommendedHeight: 1080,
		MinBytes:          100 * 1024,
	}
}

// Validate checks that the thresholds are usable.
func (t Thresholds) Validate() error {
	if t.MinHeight <= 0 {
		return errors.New("gate: min_height must be positive")
	}
	if t.RecommendedHeight < t.MinHeight {
		return errors.New("gate: recommended_height must be >= min_height")
	}
	if t.MinBytes < 0 {
		return errors.New("gate: min_bytes must not be negative")
	}
	return nil
}
