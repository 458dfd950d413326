package probe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/abema/go-mp4"
	"github.com/stretchr/testify/require"
)

// mp4Movie describes a single-track moov. A zero width or height writes an
// audio-style tkhd.
type mp4Movie struct {
	timescale      uint32
	duration       uint32
	width, height  uint32
	rotated        bool
	trackTimescale uint32
	trackDuration  uint32
}

var (
	identityMatrix = [9]int32{0x00010000, 0, 0, 0, 0x00010000, 0, 0, 0, 0x40000000}
	rotate90Matrix = [9]int32{0, 0x00010000, 0, -0x00010000, 0, 0, 0, 0, 0x40000000}
)

// buildMP4 writes ftyp and a moov with mvhd and one trak carrying tkhd,
// mdhd and an empty sample table.
func buildMP4(t *testing.T, m mp4Movie) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.mp4")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := mp4.NewWriter(f)

	box := func(typ mp4.BoxType, payload mp4.IImmutableBox, children ...func()) {
		_, err := w.StartBox(&mp4.BoxInfo{Type: typ})
		require.NoError(t, err)
		if payload != nil {
			_, err = mp4.Marshal(w, payload, mp4.Context{})
			require.NoError(t, err)
		}
		for _, child := range children {
			child()
		}
		_, err = w.EndBox()
		require.NoError(t, err)
	}

	matrix := identityMatrix
	if m.rotated {
		matrix = rotate90Matrix
	}

	box(mp4.BoxTypeFtyp(), &mp4.Ftyp{
		MajorBrand:       [4]byte{'i', 's', 'o', 'm'},
		MinorVersion:     0x200,
		CompatibleBrands: []mp4.CompatibleBrandElem{{CompatibleBrand: [4]byte{'i', 's', 'o', 'm'}}},
	})
	box(mp4.BoxTypeMoov(), nil,
		func() {
			box(mp4.BoxTypeMvhd(), &mp4.Mvhd{
				Timescale:   m.timescale,
				DurationV0:  m.duration,
				Rate:        0x00010000,
				Volume:      0x0100,
				Matrix:      identityMatrix,
				NextTrackID: 2,
			})
		},
		func() {
			box(mp4.BoxTypeTrak(), nil,
				func() {
					box(mp4.BoxTypeTkhd(), &mp4.Tkhd{
						TrackID:    1,
						DurationV0: m.duration,
						Matrix:     matrix,
						Width:      m.width << 16,
						Height:     m.height << 16,
					})
				},
				func() {
					box(mp4.BoxTypeMdia(), nil,
						func() {
							box(mp4.BoxTypeMdhd(), &mp4.Mdhd{
								Timescale:  m.trackTimescale,
								DurationV0: m.trackDuration,
							})
						},
						func() {
							box(mp4.BoxTypeMinf(), nil, func() {
								box(mp4.BoxTypeStbl(), nil,
									func() { box(mp4.BoxTypeStts(), &mp4.Stts{}) },
									func() { box(mp4.BoxTypeStsc(), &mp4.Stsc{}) },
									func() { box(mp4.BoxTypeStco(), &mp4.Stco{}) },
								)
							})
						},
					)
				},
			)
		},
	)
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}
