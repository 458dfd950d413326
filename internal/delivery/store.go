package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

// DefaultOwner names artifacts whose request carries no owner.
const DefaultOwner = "guest"

var (
	// ErrNoArtifact is returned when a request carries no artifact.
	ErrNoArtifact = errors.New("no artifact to deliver")

	// ErrInvalidBasePath is returned for an empty store directory.
	ErrInvalidBasePath = errors.New("store base path is required")
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// SanitizeOwner replaces characters that are unsafe in a file name.
func SanitizeOwner(owner string) string {
	s := unsafeKeyChars.ReplaceAllString(owner, "_")
	if s == "" || s == "." || s == ".." {
		return DefaultOwner
	}
	return s
}

// ArtifactKey returns capture-<owner>-<unixmillis><ext>.
func ArtifactKey(owner string, at time.Time, ext string) string {
	if owner == "" {
		owner = DefaultOwner
	}
	return "capture-" + SanitizeOwner(owner) + "-" + strconv.FormatInt(at.UnixMilli(), 10) + ext
}

// FileStore writes artifacts into a directory.
type FileStore struct {
	dir string
	now func() time.Time
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, ErrInvalidBasePath
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir, now: time.Now}, nil
}

// Dir returns the store directory.
func (s *FileStore) Dir() string { return s.dir }

// Deliver writes the artifact and returns its key and path. The file is
// written to a temporary name and renamed into place.
func (s *FileStore) Deliver(ctx context.Context, req orchestrator.DeliveryRequest) (orchestrator.DeliveryReceipt, error) {
	if req.Artifact == nil {
		return orchestrator.DeliveryReceipt{}, ErrNoArtifact
	}
	if err := ctx.Err(); err != nil {
		return orchestrator.DeliveryReceipt{}, err
	}

	key := ArtifactKey(req.Owner, s.now(), req.Artifact.MediaType.Extension())
	path := filepath.Join(s.dir, key)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return orchestrator.DeliveryReceipt{}, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(req.Artifact.Payload); err != nil {
		_ = tmp.Close()
		return orchestrator.DeliveryReceipt{}, fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return orchestrator.DeliveryReceipt{}, fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return orchestrator.DeliveryReceipt{}, fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return orchestrator.DeliveryReceipt{}, fmt.Errorf("store artifact: %w", err)
	}

	return orchestrator.DeliveryReceipt{
		Key:       key,
		Location:  path,
		Size:      req.Artifact.Size(),
		MediaType: req.Artifact.MediaType,
	}, nil
}
