package capture

import (
	"strings"
	"time"
)

// MediaType is a declared media-container type such as "video/mp4" or
// "video/webm;codecs=vp9".
type MediaType string

const (
	MediaTypeMP4  MediaType = "video/mp4"
	MediaTypeWebM MediaType = "video/webm"
)

// Container returns the media type without codec parameters.
func (m MediaType) Container() MediaType {
	s := string(m)
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	return MediaType(strings.ToLower(strings.TrimSpace(s)))
}

// Extension returns the file extension conventionally used for the container.
func (m MediaType) Extension() string {
	switch m.Container() {
	case MediaTypeMP4:
		return ".mp4"
	case MediaTypeWebM:
		return ".webm"
	case "video/quicktime":
		return ".mov"
	case "video/x-matroska":
		return ".mkv"
	default:
		return ".bin"
	}
}

// MediaTypeFromExtension maps a file extension to its media type.
func MediaTypeFromExtension(ext string) (MediaType, bool) {
	switch strings.ToLower(ext) {
	case ".mp4", ".m4v":
		return MediaTypeMP4, true
	case ".webm":
		return MediaTypeWebM, true
	case ".mov":
		return "video/quicktime", true
	case ".mkv":
		return "video/x-matroska", true
	default:
		return "", false
	}
}

// Metadata is the container-level information read once after recording.
type Metadata struct {
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	Duration time.Duration `json:"duration"`
}

// DurationSeconds returns the duration as fractional seconds.
func (m Metadata) DurationSeconds() float64 {
	return m.Duration.Seconds()
}

// Landscape reports whether the frame is at least as wide as it is tall.
func (m Metadata) Landscape() bool {
	return m.Width >= m.Height
}
