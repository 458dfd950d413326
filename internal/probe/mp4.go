package probe

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/abema/go-mp4"
	"github.com/fyrsmithlabs/scancap/internal/capture"
)

// MP4Prober reads the moov box of ISO base media files.
type MP4Prober struct{}

// NewMP4Prober creates an MP4Prober.
func NewMP4Prober() *MP4Prober {
	return &MP4Prober{}
}

// Probe implements Prober.
func (p *MP4Prober) Probe(_ context.Context, _ capture.MediaType, payload []byte) (capture.Metadata, error) {
	r := bytes.NewReader(payload)

	info, err := mp4.Probe(r)
	if err != nil {
		return capture.Metadata{}, fmt.Errorf("read moov: %w", err)
	}

	var md capture.Metadata
	if info.Timescale > 0 {
		md.Duration = ticks(info.Duration, info.Timescale)
	}

	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return capture.Metadata{}, err
	}
	w, h, err := videoDimensions(r)
	if err != nil {
		return capture.Metadata{}, err
	}
	md.Width, md.Height = w, h

	if md.Duration == 0 {
		// Fragmented files may leave mvhd empty; fall back to the longest track.
		for _, tr := range info.Tracks {
			if tr.Timescale == 0 {
				continue
			}
			if d := ticks(tr.Duration, tr.Timescale); d > md.Duration {
				md.Duration = d
			}
		}
	}
	if md.Duration == 0 {
		return capture.Metadata{}, ErrUnknownDuration
	}
	return md, nil
}

// videoDimensions returns the display size of the first track with a
// non-zero frame size, honoring a 90 or 270 degree rotation matrix.
func videoDimensions(r *bytes.Reader) (int, int, error) {
	boxes, err := mp4.ExtractBoxWithPayload(r, nil, mp4.BoxPath{mp4.BoxTypeMoov(), mp4.BoxTypeTrak(), mp4.BoxTypeTkhd()})
	if err != nil {
		return 0, 0, fmt.Errorf("read tkhd: %w", err)
	}
	for _, b := range boxes {
		tkhd, ok := b.Payload.(*mp4.Tkhd)
		if !ok {
			continue
		}
		w, h := int(tkhd.GetWidthInt()), int(tkhd.GetHeightInt())
		if w == 0 || h == 0 {
			continue
		}
		if tkhd.Matrix[0] == 0 && tkhd.Matrix[4] == 0 {
			w, h = h, w
		}
		return w, h, nil
	}
	return 0, 0, ErrNoVideoTrack
}

func ticks(n uint64, timescale uint32) time.Duration {
	return time.Duration(float64(n) / float64(timescale) * float64(time.Second))
}
