package probe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
)

// DefaultFFProbePath is looked up on PATH.
const DefaultFFProbePath = "ffprobe"

// FFProbe reads metadata by running ffprobe with the payload on stdin.
type FFProbe struct {
	path    string
	timeout time.Duration
}

// NewFFProbe creates an FFProbe. An empty path uses DefaultFFProbePath.
func NewFFProbe(path string, timeout time.Duration) *FFProbe {
	if path == "" {
		path = DefaultFFProbePath
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &FFProbe{path: path, timeout: timeout}
}

type ffprobeOutput struct {
	Streams []struct {
		CodecType string            `json:"codec_type"`
		Width     int               `json:"width"`
		Height    int               `json:"height"`
		Duration  string            `json:"duration"`
		Tags      map[string]string `json:"tags"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe implements Prober.
func (p *FFProbe) Probe(ctx context.Context, _ capture.MediaType, payload []byte) (capture.Metadata, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.path,
		"-v", "error",
		"-print_format", "json",
		"-show_streams",
		"-show_format",
		"-i", "pipe:0",
	)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return capture.Metadata{}, fmt.Errorf("ffprobe: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return parseFFProbe(stdout.Bytes())
}

func parseFFProbe(data []byte) (capture.Metadata, error) {
	var out ffprobeOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return capture.Metadata{}, fmt.Errorf("decode ffprobe output: %w", err)
	}

	var md capture.Metadata
	found := false
	for _, s := range out.Streams {
		if s.CodecType != "video" || s.Width == 0 || s.Height == 0 {
			continue
		}
		md.Width, md.Height = s.Width, s.Height
		if rot, err := strconv.Atoi(s.Tags["rotate"]); err == nil && (rot == 90 || rot == -90 || rot == 270 || rot == -270) {
			md.Width, md.Height = md.Height, md.Width
		}
		md.Duration = seconds(s.Duration)
		found = true
		break
	}
	if !found {
		return capture.Metadata{}, ErrNoVideoTrack
	}
	// WebM streams from MediaRecorder usually carry no per-stream duration.
	if d := seconds(out.Format.Duration); d > 0 {
		md.Duration = d
	}
	// MediaRecorder output without cues reports "N/A" everywhere.
	if md.Duration == 0 {
		return capture.Metadata{}, ErrUnknownDuration
	}
	return md, nil
}

// seconds parses an ffprobe duration. "N/A", empty and non-positive values
// yield 0.
func seconds(s string) time.Duration {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) {
		return 0
	}
	return time.Duration(f * float64(time.Second))
}
