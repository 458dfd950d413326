package probe

import (
	"fmt"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/h2non/filetype"
)

// sniffLen is enough for every matcher used by filetype.
const sniffLen = 8192

type containerFamily int

const (
	familyUnknown containerFamily = iota
	familyISO
	familyMatroska
)

func family(m capture.MediaType) containerFamily {
	switch m.Container() {
	case "video/mp4", "video/quicktime", "video/x-m4v":
		return familyISO
	case "video/webm", "video/x-matroska":
		return familyMatroska
	default:
		return familyUnknown
	}
}

// Sniff detects the container type from the payload's magic bytes.
func Sniff(payload []byte) (capture.MediaType, error) {
	head := payload
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return "", fmt.Errorf("sniff: %w", err)
	}
	if kind == filetype.Unknown || !filetype.IsVideo(head) {
		return "", fmt.Errorf("%w: unrecognized container", capture.ErrUnsupportedMedia)
	}
	return capture.MediaType(kind.MIME.Value), nil
}
