package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

// FileDevice serves a pre-recorded file per angle. Each Open reads the
// file again, so a replaced file is picked up on retry.
type FileDevice struct {
	files  map[capture.Angle]string
	prober capture.MetadataProber
}

// NewFileDevice creates a FileDevice for the given angle-to-path mapping.
func NewFileDevice(files map[capture.Angle]string, prober capture.MetadataProber) *FileDevice {
	cp := make(map[capture.Angle]string, len(files))
	for a, p := range files {
		cp[a] = p
	}
	return &FileDevice{files: cp, prober: prober}
}

// Open starts reading the file for the requested angle.
func (d *FileDevice) Open(ctx context.Context, req orchestrator.RecordingRequest) (orchestrator.Recording, error) {
	path, ok := d.files[req.Token.Angle]
	if !ok {
		return nil, fmt.Errorf("%w: no file for %s angle", orchestrator.ErrDeviceUnavailable, req.Token.Angle)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", orchestrator.ErrDeviceUnavailable, err)
	}

	rec := &fileRecording{
		out:  make(chan orchestrator.Outcome, 1),
		stop: make(chan struct{}),
	}
	go func() {
		out := d.read(context.WithoutCancel(ctx), req.Token.Angle, path)
		select {
		case rec.out <- out:
		case <-rec.stop:
		}
	}()
	return rec, nil
}

func (d *FileDevice) read(ctx context.Context, angle capture.Angle, path string) orchestrator.Outcome {
	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.Outcome{Err: err}
	}
	mediaType, ok := capture.MediaTypeFromExtension(filepath.Ext(path))
	if !ok {
		mediaType = capture.MediaTypeMP4
	}
	seg, err := capture.ProbeSegment(ctx, angle, mediaType, data, d.prober)
	if err != nil {
		return orchestrator.Outcome{Err: err}
	}
	return orchestrator.Outcome{Segment: seg}
}

type fileRecording struct {
	out  chan orchestrator.Outcome
	stop chan struct{}
	once sync.Once
}

func (r *fileRecording) Outcomes() <-chan orchestrator.Outcome { return r.out }

func (r *fileRecording) Close() error {
	r.once.Do(func() { close(r.stop) })
	return nil
}
