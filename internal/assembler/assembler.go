// Package assembler joins accepted segments into the final artifact.
//
// Assembly is plain byte concatenation in angle order. Container timestamps
// are not renumbered, so the result plays sequentially in common players but
// does not support frame-accurate seeking across segment boundaries.
package assembler

import (
	"errors"
	"fmt"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/google/uuid"
)

var (
	// ErrInsufficientInput means assembly was requested before every angle
	// was accepted. It indicates a caller bug.
	ErrInsufficientInput = errors.New("insufficient input")

	// ErrMediaTypeMismatch means the segments do not share one container type.
	ErrMediaTypeMismatch = errors.New("media type mismatch")

	// ErrOutOfOrder means the segments are not in angle order.
	ErrOutOfOrder = errors.New("segments out of angle order")
)

// AssemblyError carries the offending segment index.
type AssemblyError struct {
	Index int
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("assemble: %v", e.Err)
	}
	return fmt.Sprintf("assemble: segment %d: %v", e.Index, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Assembler builds artifacts from a fixed number of segments.
type Assembler struct {
	expected int
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithExpectedCount overrides the number of segments required.
func WithExpectedCount(n int) Option {
	return func(a *Assembler) {
		if n > 0 {
			a.expected = n
		}
	}
}

// New creates an assembler expecting capture.AngleCount segments.
func New(opts ...Option) *Assembler {
	a := &Assembler{expected: capture.AngleCount}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Assemble concatenates the segment payloads in order. The artifact takes
// the first segment's media type. On error no artifact is returned.
func (a *Assembler) Assemble(segments []*capture.Segment) (*capture.Artifact, error) {
	if len(segments) == 0 {
		return nil, &AssemblyError{Index: -1, Err: ErrInsufficientInput}
	}
	if len(segments) != a.expected {
		return nil, &AssemblyError{Index: -1, Err: fmt.Errorf("%w: have %d segments, need %d", ErrInsufficientInput, len(segments), a.expected)}
	}

	first := segments[0]
	var total int64
	for i, seg := range segments {
		if seg == nil {
			return nil, &AssemblyError{Index: i, Err: ErrInsufficientInput}
		}
		if seg.MediaType().Container() != first.MediaType().Container() {
			return nil, &AssemblyError{Index: i, Err: fmt.Errorf("%w: %s != %s", ErrMediaTypeMismatch, seg.MediaType(), first.MediaType())}
		}
		if a.expected == capture.AngleCount && seg.Angle() != capture.Angle(i+1) {
			return nil, &AssemblyError{Index: i, Err: fmt.Errorf("%w: got %s at position %d", ErrOutOfOrder, seg.Angle(), i+1)}
		}
		total += seg.ByteSize()
	}

	payload := make([]byte, 0, total)
	ids := make([]string, 0, len(segments))
	for _, seg := range segments {
		payload = append(payload, seg.Payload()...)
		ids = append(ids, seg.ID())
	}

	return &capture.Artifact{
		ID:         uuid.New().String(),
		MediaType:  first.MediaType(),
		Payload:    payload,
		SegmentIDs: ids,
		CreatedAt:  time.Now(),
	}, nil
}
