package orchestrator

import (
	"fmt"

	"github.com/fyrsmithlabs/scancap/internal/capture"
)

// SegmentStore holds the accepted segments of one session in angle order.
// It is append-only and not safe for concurrent use; the Orchestrator
// guards it with its own lock.
type SegmentStore struct {
	segments []*capture.Segment
}

// NewSegmentStore creates an empty store.
func NewSegmentStore() *SegmentStore {
	return &SegmentStore{segments: make([]*capture.Segment, 0, capture.AngleCount)}
}

// Append adds seg. The segment's angle must be the next one expected.
func (s *SegmentStore) Append(seg *capture.Segment) error {
	if seg == nil {
		return fmt.Errorf("append: nil segment")
	}
	want := capture.Angle(len(s.segments) + 1)
	if seg.Angle() != want {
		return fmt.Errorf("append: got %s segment, expected %s", seg.Angle(), want)
	}
	s.segments = append(s.segments, seg)
	return nil
}

// Len returns the number of accepted segments.
func (s *SegmentStore) Len() int {
	return len(s.segments)
}

// Complete reports whether every angle has an accepted segment.
func (s *SegmentStore) Complete() bool {
	return len(s.segments) == capture.AngleCount
}

// MediaType returns the container of the first accepted segment, or ""
// while the store is empty.
func (s *SegmentStore) MediaType() capture.MediaType {
	if len(s.segments) == 0 {
		return ""
	}
	return s.segments[0].MediaType().Container()
}

// Segments returns the accepted segments in angle order. The slice is a
// copy; the segments themselves are shared and immutable.
func (s *SegmentStore) Segments() []*capture.Segment {
	out := make([]*capture.Segment, len(s.segments))
	copy(out, s.segments)
	return out
}

// IDs returns the accepted segment IDs in angle order.
func (s *SegmentStore) IDs() []string {
	ids := make([]string, len(s.segments))
	for i, seg := range s.segments {
		ids[i] = seg.ID()
	}
	return ids
}
