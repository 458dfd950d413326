package device

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedProber struct {
	md capture.Metadata
}

func (p fixedProber) Probe(context.Context, capture.MediaType, []byte) (capture.Metadata, error) {
	return p.md, nil
}

var hd = fixedProber{md: capture.Metadata{Width: 1920, Height: 1080, Duration: 15 * time.Second}}

func request(angle capture.Angle, attempt int) orchestrator.RecordingRequest {
	return orchestrator.RecordingRequest{
		SessionID: "sess-1",
		Token:     orchestrator.AttemptToken{Angle: angle, Attempt: attempt},
		Options:   orchestrator.DefaultRecordingOptions(),
	}
}

func waitOutcome(t *testing.T, rec orchestrator.Recording) orchestrator.Outcome {
	t.Helper()
	select {
	case out := <-rec.Outcomes():
		return out
	case <-time.After(3 * time.Second):
		t.Fatal("no outcome")
		return orchestrator.Outcome{}
	}
}

func TestInboxDevice_PicksUpNewFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.mp4"), []byte("stale"), 0o644))

	dev := NewInboxDevice(dir, hd, WithSettleDelay(50*time.Millisecond))
	rec, err := dev.Open(context.Background(), request(capture.AngleTop, 2))
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "take.webm"), []byte("fresh recording"), 0o644))

	out := waitOutcome(t, rec)
	require.NoError(t, out.Err)
	require.NotNil(t, out.Segment)
	assert.Equal(t, capture.AngleTop, out.Segment.Angle())
	assert.Equal(t, capture.MediaTypeWebM, out.Segment.MediaType())
	assert.Equal(t, []byte("fresh recording"), out.Segment.Payload())
	assert.Equal(t, 1920, out.Segment.Metadata().Width)
}

func TestInboxDevice_AbandonMarker(t *testing.T) {
	dir := t.TempDir()
	dev := NewInboxDevice(dir, hd, WithSettleDelay(time.Minute))
	rec, err := dev.Open(context.Background(), request(capture.AngleMiddle, 1))
	require.NoError(t, err)
	defer rec.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, AbandonMarker), nil, 0o644))

	out := waitOutcome(t, rec)
	assert.True(t, out.Abandoned)
}

func TestInboxDevice_MissingDirectory(t *testing.T) {
	dev := NewInboxDevice(filepath.Join(t.TempDir(), "missing"), hd)
	_, err := dev.Open(context.Background(), request(capture.AngleMiddle, 1))
	assert.ErrorIs(t, err, orchestrator.ErrDeviceUnavailable)
}

func TestInboxDevice_CloseIsIdempotent(t *testing.T) {
	dev := NewInboxDevice(t.TempDir(), hd)
	rec, err := dev.Open(context.Background(), request(capture.AngleMiddle, 1))
	require.NoError(t, err)

	require.NoError(t, rec.Close())
	assert.NoError(t, rec.Close())
}

func TestFileDevice(t *testing.T) {
	dir := t.TempDir()
	middle := filepath.Join(dir, "middle.mp4")
	require.NoError(t, os.WriteFile(middle, []byte("middle bytes"), 0o644))

	dev := NewFileDevice(map[capture.Angle]string{capture.AngleMiddle: middle}, hd)

	rec, err := dev.Open(context.Background(), request(capture.AngleMiddle, 1))
	require.NoError(t, err)
	out := waitOutcome(t, rec)
	require.NoError(t, out.Err)
	assert.Equal(t, capture.MediaTypeMP4, out.Segment.MediaType())
	require.NoError(t, rec.Close())

	_, err = dev.Open(context.Background(), request(capture.AngleTop, 2))
	assert.ErrorIs(t, err, orchestrator.ErrDeviceUnavailable)
}

func TestFileDevice_RereadsOnEachOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.mp4")
	require.NoError(t, os.WriteFile(path, []byte("first"), 0o644))
	dev := NewFileDevice(map[capture.Angle]string{capture.AngleMiddle: path}, hd)

	rec, err := dev.Open(context.Background(), request(capture.AngleMiddle, 1))
	require.NoError(t, err)
	first := waitOutcome(t, rec)

	require.NoError(t, os.WriteFile(path, []byte("second"), 0o644))
	rec, err = dev.Open(context.Background(), request(capture.AngleMiddle, 2))
	require.NoError(t, err)
	second := waitOutcome(t, rec)

	assert.Equal(t, []byte("first"), first.Segment.Payload())
	assert.Equal(t, []byte("second"), second.Segment.Payload())
	assert.NotEqual(t, first.Segment.ID(), second.Segment.ID())
}

func TestRemoteDevice_ArmAndCancel(t *testing.T) {
	dev := NewRemoteDevice()
	_, ok := dev.Armed()
	assert.False(t, ok)

	first, err := dev.Open(context.Background(), request(capture.AngleMiddle, 1))
	require.NoError(t, err)
	second, err := dev.Open(context.Background(), request(capture.AngleMiddle, 2))
	require.NoError(t, err)

	tok, ok := dev.Armed()
	require.True(t, ok)
	assert.Equal(t, 2, tok.Attempt)

	require.NoError(t, first.Close())
	_, ok = dev.Armed()
	assert.True(t, ok, "closing a replaced recording leaves the new one armed")

	assert.False(t, dev.Cancel(orchestrator.AttemptToken{Angle: capture.AngleMiddle, Attempt: 1}))
	assert.True(t, dev.Cancel(tok))
	assert.True(t, waitOutcome(t, second).Abandoned)

	require.NoError(t, second.Close())
	_, ok = dev.Armed()
	assert.False(t, ok)
}
