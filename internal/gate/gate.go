package gate

import (
	"fmt"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
)

const (
	msgPortrait    = "Video is in portrait mode. Please record in landscape (horizontal)."
	msgTooSmall    = "Video file is suspiciously small. Please check your camera."
	msgProbeFailed = "Failed to process video data. The file may be corrupted."
)

// Gate applies the quality checks to recorded segments.
type Gate struct {
	thresholds Thresholds
}

// New creates a gate with the given thresholds.
func New(t Thresholds) (*Gate, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Gate{thresholds: t}, nil
}

// NewDefault creates a gate with DefaultThresholds.
func NewDefault() *Gate {
	return &Gate{thresholds: DefaultThresholds()}
}

// Name returns the gate identifier
func (g *Gate) Name() string {
	return "quality-gate"
}

// Thresholds returns the configured floors.
func (g *Gate) Thresholds() Thresholds {
	return g.thresholds
}

// Check evaluates seg against the thresholds and minDuration.
//
// A segment whose metadata could not be probed yields exactly one
// probe_failed error and no other checks run. Otherwise every check runs
// and errors accumulate.
func (g *Gate) Check(seg *capture.Segment, minDuration time.Duration) CheckResult {
	if seg == nil || seg.ProbeErr() != nil {
		return newResult([]Issue{{Code: CodeProbeFailed, Severity: SeverityError, Message: msgProbeFailed}})
	}

	md := seg.Metadata()
	var issues []Issue

	if !md.Landscape() {
		issues = append(issues, Issue{Code: CodePortrait, Severity: SeverityError, Message: msgPortrait})
	}

	switch {
	case md.Height < g.thresholds.MinHeight:
		issues = append(issues, Issue{
			Code:     CodeResolutionLow,
			Severity: SeverityError,
			Message:  fmt.Sprintf("Resolution too low (%dx%d). Minimum %dp required.", md.Width, md.Height, g.thresholds.MinHeight),
		})
	case md.Height < g.thresholds.RecommendedHeight:
		issues = append(issues, Issue{
			Code:     CodeResolutionHint,
			Severity: SeverityWarning,
			Message:  fmt.Sprintf("Resolution is %dx%d. %dp is recommended for better 3D results.", md.Width, md.Height, g.thresholds.RecommendedHeight),
		})
	}

	if md.Duration < minDuration {
		issues = append(issues, Issue{
			Code:     CodeTooShort,
			Severity: SeverityError,
			Message: fmt.Sprintf("Recording is too short (%.1fs). Minimum %s seconds required.",
				md.DurationSeconds(), strconv.FormatFloat(minDuration.Seconds(), 'f', -1, 64)),
		})
	}

	if seg.ByteSize() < g.thresholds.MinBytes {
		issues = append(issues, Issue{Code: CodeTooSmall, Severity: SeverityError, Message: msgTooSmall})
	}

	return newResult(issues)
}

// ContainerMismatch is the blocking issue for a segment recorded in a
// different container than the earlier angles of its session.
func ContainerMismatch(got, want capture.MediaType) Issue {
	return Issue{
		Code:     CodeContainerMismatch,
		Severity: SeverityError,
		Message: fmt.Sprintf("Recording format (%s) does not match the earlier angles (%s). Please record this angle again.",
			got.Container(), want.Container()),
	}
}

// CheckMinDuration validates a caller-supplied minimum duration.
func CheckMinDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidThreshold, d)
	}
	return nil
}
