package device

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"go.uber.org/zap"
)

// AbandonMarker is the file name that abandons the armed recording when it
// appears in the inbox.
const AbandonMarker = ".abandon"

// DefaultSettleDelay is how long a file must go without writes before it
// is treated as a finished recording.
const DefaultSettleDelay = 2 * time.Second

// InboxDevice turns video files dropped into a directory into segments,
// for cameras that sync recordings to a shared folder.
type InboxDevice struct {
	dir    string
	settle time.Duration
	prober capture.MetadataProber
	logger *logging.Logger
}

// InboxOption configures an InboxDevice.
type InboxOption func(*InboxDevice)

// WithSettleDelay overrides DefaultSettleDelay.
func WithSettleDelay(d time.Duration) InboxOption {
	return func(in *InboxDevice) {
		if d > 0 {
			in.settle = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) InboxOption {
	return func(in *InboxDevice) {
		if l != nil {
			in.logger = l
		}
	}
}

// NewInboxDevice watches dir. prober reads metadata from each file once.
func NewInboxDevice(dir string, prober capture.MetadataProber, opts ...InboxOption) *InboxDevice {
	in := &InboxDevice{
		dir:    dir,
		settle: DefaultSettleDelay,
		prober: prober,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(in)
	}
	in.logger = in.logger.Named("inbox")
	return in
}

// Open arms a fresh watcher. Files already in the directory are ignored.
func (in *InboxDevice) Open(ctx context.Context, req orchestrator.RecordingRequest) (orchestrator.Recording, error) {
	info, err := os.Stat(in.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: inbox: %w", orchestrator.ErrDeviceUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: inbox %s is not a directory", orchestrator.ErrDeviceUnavailable, in.dir)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("%w: watcher: %w", orchestrator.ErrDeviceUnavailable, err)
	}
	if err := watcher.Add(in.dir); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("%w: watch %s: %w", orchestrator.ErrDeviceUnavailable, in.dir, err)
	}

	rec := &inboxRecording{
		device:  in,
		req:     req,
		watcher: watcher,
		out:     make(chan orchestrator.Outcome, 1),
		stop:    make(chan struct{}),
		pending: make(map[string]time.Time),
	}
	go rec.run(logging.WithSessionID(context.WithoutCancel(ctx), req.SessionID))

	in.logger.Info(ctx, "inbox armed",
		zap.String("dir", in.dir),
		zap.String("angle", req.Token.Angle.String()),
		zap.Int("attempt", req.Token.Attempt),
	)
	return rec, nil
}

type inboxRecording struct {
	device  *InboxDevice
	req     orchestrator.RecordingRequest
	watcher *fsnotify.Watcher
	out     chan orchestrator.Outcome
	stop    chan struct{}
	once    sync.Once

	// pending maps candidate files to their last write time.
	pending map[string]time.Time
}

func (r *inboxRecording) Outcomes() <-chan orchestrator.Outcome {
	return r.out
}

func (r *inboxRecording) Close() error {
	var err error
	r.once.Do(func() {
		close(r.stop)
		err = r.watcher.Close()
	})
	return err
}

func (r *inboxRecording) run(ctx context.Context) {
	interval := r.device.settle / 4
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-r.stop:
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			r.observe(ev)
			if filepath.Base(ev.Name) == AbandonMarker && ev.Has(fsnotify.Create) {
				_ = os.Remove(ev.Name)
				r.emit(orchestrator.Outcome{Abandoned: true})
				return
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			r.emit(orchestrator.Outcome{Err: fmt.Errorf("inbox watcher: %w", err)})
			return
		case now := <-tick.C:
			if path, ok := r.settled(now); ok {
				r.emit(r.load(ctx, path))
				return
			}
		}
	}
}

func (r *inboxRecording) observe(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
			delete(r.pending, ev.Name)
		}
		return
	}
	if _, ok := capture.MediaTypeFromExtension(filepath.Ext(ev.Name)); !ok {
		return
	}
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return
	}
	r.pending[ev.Name] = time.Now()
}

// settled returns the oldest candidate with no writes for the settle delay.
func (r *inboxRecording) settled(now time.Time) (string, bool) {
	var (
		best   string
		bestAt time.Time
	)
	for path, at := range r.pending {
		if now.Sub(at) < r.device.settle {
			continue
		}
		if best == "" || at.Before(bestAt) {
			best, bestAt = path, at
		}
	}
	return best, best != ""
}

func (r *inboxRecording) load(ctx context.Context, path string) orchestrator.Outcome {
	mediaType, _ := capture.MediaTypeFromExtension(filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return orchestrator.Outcome{Err: fmt.Errorf("read %s: %w", path, err)}
	}
	seg, err := capture.ProbeSegment(ctx, r.req.Token.Angle, mediaType, data, r.device.prober)
	if err != nil {
		return orchestrator.Outcome{Err: err}
	}
	r.device.logger.Info(ctx, "inbox file picked up",
		zap.String("path", path),
		zap.Int64("bytes", seg.ByteSize()),
		zap.Bool("probed", seg.ProbeErr() == nil),
	)
	return orchestrator.Outcome{Segment: seg}
}

func (r *inboxRecording) emit(out orchestrator.Outcome) {
	select {
	case r.out <- out:
	case <-r.stop:
	}
}
