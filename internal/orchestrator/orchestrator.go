package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config configures a capture session.
type Config struct {
	// MinDuration is the shortest accepted recording.
	MinDuration time.Duration

	// Owner is recorded on delivered artifacts. Empty means "guest".
	Owner string

	// Recording is passed to the device unchanged.
	Recording RecordingOptions

	// AutoDeliver hands the artifact to Delivery as soon as the session
	// completes.
	AutoDeliver bool
}

// DefaultConfig returns a 12 second minimum with automatic delivery.
func DefaultConfig() Config {
	return Config{
		MinDuration: gate.DefaultMinDuration,
		Owner:       "guest",
		Recording:   DefaultRecordingOptions(),
		AutoDeliver: true,
	}
}

// Deps are the collaborators of a session. Delivery and Events are optional.
type Deps struct {
	Device    Device
	Presenter Presenter
	Gate      SegmentGate
	Assembler SegmentAssembler
	Delivery  Delivery
	Events    EventRecorder
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithObserver adds a measurement observer.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) {
		if t != nil {
			o.tracer = t
		}
	}
}

// DefaultCloseTimeout bounds how long Close waits for background work
// before cancelling it.
const DefaultCloseTimeout = 10 * time.Second

// WithCloseTimeout overrides DefaultCloseTimeout.
func WithCloseTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.closeTimeout = d
		}
	}
}

// WithProgress sets the progress callback.
func WithProgress(cb ProgressCallback) Option {
	return func(o *Orchestrator) {
		o.progress = cb
	}
}

// Orchestrator runs one capture session.
type Orchestrator struct {
	cfg       Config
	deps      Deps
	logger    *logging.Logger
	tracer    trace.Tracer
	metrics   *Metrics
	observers []Observer
	progress  ProgressCallback

	closeTimeout time.Duration

	// ctx bounds device waits and background delivery.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	settled    chan struct{}
	settleOnce sync.Once

	mu             sync.Mutex
	id             string
	phase          Phase
	angle          capture.Angle
	attempt        int
	started        bool
	closed         bool
	store          *SegmentStore
	rec            Recording
	recToken       AttemptToken
	recStop        context.CancelFunc
	lastCheck      *gate.CheckResult
	lastErrors     []string
	fatalErr       error
	assemblyFailed bool
	artifact       *capture.Artifact
	delivery       *DeliveryStatus
	delivering     bool
	startedAt      time.Time
	updatedAt      time.Time
}

// New creates a session in AwaitingTutorial for the first angle.
func New(cfg Config, deps Deps, opts ...Option) (*Orchestrator, error) {
	if deps.Device == nil || deps.Presenter == nil || deps.Gate == nil || deps.Assembler == nil {
		return nil, errors.New("orchestrator: device, presenter, gate and assembler are required")
	}
	if err := gate.CheckMinDuration(cfg.MinDuration); err != nil {
		return nil, err
	}
	if cfg.Owner == "" {
		cfg.Owner = "guest"
	}
	if deps.Events == nil {
		deps.Events = nopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	o := &Orchestrator{
		cfg:          cfg,
		deps:         deps,
		logger:       logging.NewNop(),
		tracer:       Tracer(),
		closeTimeout: DefaultCloseTimeout,
		ctx:          ctx,
		cancel:       cancel,
		settled:      make(chan struct{}),
		id:           uuid.New().String(),
		phase:        PhaseAwaitingTutorial,
		angle:        capture.AngleMiddle,
		store:        NewSegmentStore(),
		startedAt:    now,
		updatedAt:    now,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.logger = o.logger.Named("orchestrator")
	for _, obs := range o.observers {
		if m, ok := obs.(*Metrics); ok {
			o.metrics = m
		}
	}
	return o, nil
}

// ID returns the session ID.
func (o *Orchestrator) ID() string {
	return o.id
}

// Start runs the entry action of the first tutorial.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.started {
		return ErrAlreadyStarted
	}
	o.started = true
	ctx = o.logCtx(ctx)

	o.logger.Info(ctx, "capture session started",
		zap.Duration("min_duration", o.cfg.MinDuration),
		zap.String("owner", o.cfg.Owner),
	)
	o.record(ctx, Event{Type: EventSessionStarted})
	o.emitProgress()
	o.deps.Presenter.ShowTutorial(ctx, o.angle)
	return nil
}

// TutorialAcknowledged opens a fresh recording for the current angle.
func (o *Orchestrator) TutorialAcknowledged(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ready("tutorial acknowledged", PhaseAwaitingTutorial); err != nil {
		return err
	}
	ctx, span := o.startSpan(o.logCtx(ctx), "capture.tutorial_ack")
	defer span.End()

	err := o.openRecording(ctx, "tutorial acknowledged")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "device open failed")
	}
	return err
}

// RetryAcknowledged re-arms the rejected angle with a fresh recording.
func (o *Orchestrator) RetryAcknowledged(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.ready("retry acknowledged", PhaseRejected); err != nil {
		return err
	}
	o.lastErrors = nil
	return o.openRecording(o.logCtx(ctx), "retry acknowledged")
}

// RecordingFinished validates seg and advances the session.
//
// token must be the token of the live attempt. Outcomes for any other
// attempt, or arriving when no recording is open, return
// ErrStaleRecording and leave the session untouched.
func (o *Orchestrator) RecordingFinished(ctx context.Context, token AttemptToken, seg *capture.Segment) (gate.CheckResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return gate.CheckResult{}, ErrClosed
	}
	if !o.current(token) {
		return gate.CheckResult{}, fmt.Errorf("%w: %s attempt %d", ErrStaleRecording, token.Angle, token.Attempt)
	}
	if seg == nil {
		return gate.CheckResult{}, errors.New("recording finished without a segment")
	}
	if seg.Angle() != o.angle {
		return gate.CheckResult{}, fmt.Errorf("segment angle %s does not match current angle %s", seg.Angle(), o.angle)
	}

	ctx, span := o.startSpan(o.logCtx(ctx), "capture.validate")
	defer span.End()

	o.releaseRecording()
	_ = o.transition("recording finished", PhaseValidating)

	begin := time.Now()
	res := o.deps.Gate.Check(seg, o.cfg.MinDuration)
	if want := o.store.MediaType(); want != "" && seg.MediaType().Container() != want {
		res = res.With(gate.ContainerMismatch(seg.MediaType(), want))
	}
	o.metrics.recordValidate(ctx, time.Since(begin))
	o.lastCheck = &res
	for _, obs := range o.observers {
		obs.SegmentChecked(ctx, o.angle, res)
	}
	span.SetAttributes(
		attribute.Bool("capture.accepted", res.Accepted),
		attribute.Int("capture.errors", len(res.Errors)),
		attribute.Int("capture.warnings", len(res.Warnings)),
	)

	if !res.Accepted {
		o.lastErrors = append([]string(nil), res.Errors...)
		_ = o.transition("segment rejected", PhaseRejected)
		o.logger.Info(ctx, "segment rejected",
			zap.String("segment.id", seg.ID()),
			zap.Strings("errors", res.Errors),
		)
		o.record(ctx, Event{Type: EventSegmentRejected, Messages: res.Errors})
		o.deps.Presenter.ShowRejection(ctx, o.angle, res.Errors)
		return res, nil
	}

	if err := o.store.Append(seg); err != nil {
		o.fail(ctx, err)
		return res, err
	}
	o.lastErrors = nil
	o.logger.Info(ctx, "segment accepted",
		zap.String("segment.id", seg.ID()),
		zap.Int64("bytes", seg.ByteSize()),
		zap.Strings("warnings", res.Warnings),
	)
	o.record(ctx, Event{Type: EventSegmentAccepted, Messages: res.Warnings})
	if len(res.Warnings) > 0 {
		o.deps.Presenter.ShowWarnings(ctx, o.angle, res.Warnings)
	}

	if o.angle.Last() {
		_ = o.transition("segment accepted", PhaseAssembling)
		_ = o.assemble(ctx)
		return res, nil
	}

	o.angle = o.angle.Next()
	_ = o.transition("segment accepted", PhaseAwaitingTutorial)
	o.deps.Presenter.ShowTutorial(o.logCtx(ctx), o.angle)
	return res, nil
}

// RetryAssembly runs the assembler again after a failure. Accepted
// segments are kept.
func (o *Orchestrator) RetryAssembly(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.phase != PhaseAssembling || !o.assemblyFailed {
		return &TransitionError{Action: "retry assembly", From: o.phase}
	}
	return o.assemble(o.logCtx(ctx))
}

// Abandon ends the session from any non-terminal phase and releases the
// device.
func (o *Orchestrator) Abandon(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}
	if o.phase.IsTerminal() {
		return &TransitionError{Action: "abandon", From: o.phase, To: PhaseAbandoned}
	}
	o.abandon(o.logCtx(ctx), "user")
	return nil
}

// Deliver hands the completed artifact to Delivery. Delivery runs at most
// once per session; later calls return the recorded outcome. A failed
// delivery never reopens the session.
func (o *Orchestrator) Deliver(ctx context.Context) (DeliveryReceipt, error) {
	o.mu.Lock()
	if o.deps.Delivery == nil {
		o.mu.Unlock()
		return DeliveryReceipt{}, ErrNoDelivery
	}
	if o.phase != PhaseCompleted {
		from := o.phase
		o.mu.Unlock()
		return DeliveryReceipt{}, &TransitionError{Action: "deliver", From: from}
	}
	if o.delivering {
		o.mu.Unlock()
		return DeliveryReceipt{}, ErrDeliveryInProgress
	}
	if st := o.delivery; st != nil {
		o.mu.Unlock()
		if st.Succeeded() {
			return *st.Receipt, nil
		}
		return DeliveryReceipt{}, fmt.Errorf("delivery already attempted: %s", st.Err)
	}
	o.delivering = true
	o.mu.Unlock()

	return o.runDelivery(ctx)
}

// Wait blocks until the session is terminal and any automatic delivery
// has finished.
func (o *Orchestrator) Wait(ctx context.Context) (Session, error) {
	select {
	case <-o.settled:
		return o.Snapshot(), nil
	case <-ctx.Done():
		return o.Snapshot(), ctx.Err()
	}
}

// Done is closed once Wait would return.
func (o *Orchestrator) Done() <-chan struct{} {
	return o.settled
}

// Snapshot returns a copy of the session state.
func (o *Orchestrator) Snapshot() Session {
	o.mu.Lock()
	defer o.mu.Unlock()

	s := Session{
		ID:         o.id,
		Angle:      o.angle,
		Phase:      o.phase,
		Attempt:    o.attempt,
		Accepted:   o.store.Len(),
		LastErrors: append([]string(nil), o.lastErrors...),
		Artifact:   artifactInfo(o.artifact),
		StartedAt:  o.startedAt,
		UpdatedAt:  o.updatedAt,
	}
	if o.rec != nil {
		tok := o.recToken
		s.Token = &tok
	}
	if o.lastCheck != nil {
		lc := *o.lastCheck
		s.LastCheck = &lc
	}
	if o.fatalErr != nil {
		s.Err = o.fatalErr.Error()
	}
	if o.delivery != nil {
		d := *o.delivery
		s.Delivery = &d
	}
	return s
}

// Artifact returns the completed artifact.
func (o *Orchestrator) Artifact() (*capture.Artifact, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.artifact, o.artifact != nil
}

// Close abandons an unfinished session, releases the device, and waits for
// background work, including a running delivery.
//
// Work still running after the close timeout is cancelled. If it ignores
// cancellation for another timeout, Close gives up and returns
// ErrCloseTimeout.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	if !o.phase.IsTerminal() {
		o.abandon(o.logCtx(context.Background()), "closed")
	}
	o.releaseRecording()
	o.closed = true
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(o.closeTimeout):
		o.logger.Warn(logging.WithSessionID(context.Background(), o.id), "background work still running, cancelling",
			zap.Duration("timeout", o.closeTimeout))
		o.cancel()
		select {
		case <-done:
		case <-time.After(o.closeTimeout):
			err = ErrCloseTimeout
		}
	}
	o.cancel()
	o.settle()
	return err
}

// openRecording closes any previous device session and opens a fresh one.
// Callers hold o.mu.
func (o *Orchestrator) openRecording(ctx context.Context, action string) error {
	if !o.phase.CanTransitionTo(PhaseRecording) {
		return &TransitionError{Action: action, From: o.phase, To: PhaseRecording}
	}
	o.releaseRecording()

	o.attempt++
	token := AttemptToken{Angle: o.angle, Attempt: o.attempt}
	rec, err := o.deps.Device.Open(ctx, RecordingRequest{
		SessionID: o.id,
		Token:     token,
		Options:   o.cfg.Recording,
	})
	if err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
		}
		o.fail(ctx, err)
		return err
	}

	o.rec, o.recToken = rec, token
	waitCtx, stop := context.WithCancel(o.ctx)
	o.recStop = stop
	_ = o.transition(action, PhaseRecording)

	o.wg.Add(1)
	go o.await(waitCtx, token, rec)

	o.logger.Info(ctx, "recording armed", zap.Int("attempt", token.Attempt))
	return nil
}

// await waits for the single outcome of one recording.
func (o *Orchestrator) await(ctx context.Context, token AttemptToken, rec Recording) {
	defer o.wg.Done()

	var out Outcome
	select {
	case <-ctx.Done():
		return
	case got, ok := <-rec.Outcomes():
		if !ok {
			got = Outcome{Err: errors.New("device closed without a recording")}
		}
		out = got
	}

	switch {
	case out.Err != nil:
		o.deviceFailed(token, out.Err)
	case out.Abandoned:
		o.deviceAbandoned(token)
	default:
		if _, err := o.RecordingFinished(o.ctx, token, out.Segment); err != nil && !errors.Is(err, ErrStaleRecording) {
			o.logger.Warn(o.logCtx(o.ctx), "recording outcome not applied", zap.Error(err))
		}
	}
}

func (o *Orchestrator) deviceFailed(token AttemptToken, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.current(token) {
		return
	}
	if !errors.Is(err, ErrDeviceUnavailable) {
		err = fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}
	o.fail(o.logCtx(o.ctx), err)
}

func (o *Orchestrator) deviceAbandoned(token AttemptToken) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.current(token) {
		return
	}
	o.abandon(o.logCtx(o.ctx), "device")
}

// assemble builds the artifact from the accepted segments. On failure the
// session stays in Assembling. Callers hold o.mu.
func (o *Orchestrator) assemble(ctx context.Context) error {
	ctx, span := o.startSpan(ctx, "capture.assemble")
	defer span.End()

	var (
		art *capture.Artifact
		err error
	)
	if o.store.Complete() {
		art, err = o.deps.Assembler.Assemble(o.store.Segments())
	} else {
		err = fmt.Errorf("%d of %d segments accepted", o.store.Len(), capture.AngleCount)
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrAssemblyFailed, err)
		o.assemblyFailed = true
		o.fatalErr = err
		o.updatedAt = time.Now()
		span.RecordError(err)
		span.SetStatus(codes.Error, "assembly failed")
		o.logger.Error(ctx, "assembly failed", zap.Error(err), zap.Strings("segments", o.store.IDs()))
		o.record(ctx, Event{Type: EventAssemblyFailed, Error: err.Error()})
		o.deps.Presenter.ShowFailure(ctx, err)
		return err
	}

	o.assemblyFailed = false
	o.fatalErr = nil
	o.artifact = art
	span.SetAttributes(attribute.Int64("capture.artifact_bytes", art.Size()))
	for _, obs := range o.observers {
		obs.ArtifactAssembled(ctx, art.Size())
	}
	_ = o.transition("assembled", PhaseCompleted)

	o.logger.Info(ctx, "capture completed",
		zap.String("artifact.id", art.ID),
		zap.Int64("bytes", art.Size()),
		zap.String("media_type", string(art.MediaType)),
	)
	o.record(ctx, Event{Type: EventSessionCompleted, Artifact: artifactInfo(art)})
	o.deps.Presenter.ShowCompleted(ctx, art)

	if o.cfg.AutoDeliver && o.deps.Delivery != nil {
		o.delivering = true
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			_, _ = o.runDelivery(o.ctx)
		}()
	} else {
		o.settle()
	}
	return nil
}

// runDelivery performs the delivery. The caller has set o.delivering.
func (o *Orchestrator) runDelivery(ctx context.Context) (DeliveryReceipt, error) {
	o.mu.Lock()
	art, owner := o.artifact, o.cfg.Owner
	o.mu.Unlock()

	ctx = logging.WithSessionID(ctx, o.id)
	ctx, span := o.tracer.Start(ctx, "capture.deliver")
	defer span.End()
	span.SetAttributes(
		attribute.String("capture.session_id", o.id),
		attribute.Int64("capture.artifact_bytes", art.Size()),
	)

	receipt, err := o.deps.Delivery.Deliver(ctx, DeliveryRequest{
		SessionID: o.id,
		Owner:     owner,
		Artifact:  art,
	})

	o.mu.Lock()
	defer o.mu.Unlock()

	o.delivering = false
	status := &DeliveryStatus{CompletedAt: time.Now()}
	if err != nil {
		status.Err = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		o.logger.Error(ctx, "delivery failed", zap.Error(err))
		o.record(ctx, Event{Type: EventDeliveryFailed, Artifact: artifactInfo(art), Error: err.Error()})
	} else {
		status.Receipt = &receipt
		o.logger.Info(ctx, "artifact delivered", zap.String("key", receipt.Key), zap.Bool("notified", receipt.Notified))
		o.record(ctx, Event{Type: EventDeliverySucceeded, Artifact: artifactInfo(art)})
	}
	o.delivery = status
	o.updatedAt = status.CompletedAt
	o.settle()
	return receipt, err
}

// Callers hold o.mu for everything below.

func (o *Orchestrator) abandon(ctx context.Context, reason string) {
	o.releaseRecording()
	if err := o.transition("abandon", PhaseAbandoned); err != nil {
		o.logger.Warn(ctx, "abandon ignored", zap.Error(err))
		return
	}
	o.logger.Info(ctx, "capture session abandoned",
		zap.String("reason", reason),
		zap.Int("accepted", o.store.Len()),
	)
	o.record(ctx, Event{Type: EventSessionAbandoned, Messages: []string{reason}})
	o.settle()
}

func (o *Orchestrator) fail(ctx context.Context, err error) {
	o.releaseRecording()
	o.fatalErr = err
	if terr := o.transition("fail", PhaseFailed); terr != nil {
		o.logger.Error(ctx, "cannot mark session failed", zap.Error(terr), zap.NamedError("cause", err))
		return
	}
	o.logger.Error(ctx, "capture session failed", zap.Error(err))
	o.record(ctx, Event{Type: EventSessionFailed, Error: err.Error()})
	o.deps.Presenter.ShowFailure(ctx, err)
	o.settle()
}

func (o *Orchestrator) ready(action string, want Phase) error {
	if o.closed {
		return ErrClosed
	}
	if !o.started {
		return ErrNotStarted
	}
	if o.phase != want {
		return &TransitionError{Action: action, From: o.phase}
	}
	return nil
}

func (o *Orchestrator) current(token AttemptToken) bool {
	return o.rec != nil && o.phase == PhaseRecording && token.Attempt > 0 && token == o.recToken
}

func (o *Orchestrator) transition(action string, to Phase) error {
	if !o.phase.CanTransitionTo(to) {
		return &TransitionError{Action: action, From: o.phase, To: to}
	}
	o.phase = to
	o.updatedAt = time.Now()
	o.emitProgress()
	if to.IsTerminal() {
		for _, obs := range o.observers {
			obs.SessionEnded(o.ctx, to)
		}
	}
	return nil
}

func (o *Orchestrator) releaseRecording() {
	if o.recStop != nil {
		o.recStop()
		o.recStop = nil
	}
	if o.rec != nil {
		if err := o.rec.Close(); err != nil {
			o.logger.Warn(o.logCtx(o.ctx), "closing recording failed", zap.Error(err))
		}
		o.rec = nil
	}
	o.recToken = AttemptToken{}
}

func (o *Orchestrator) emitProgress() {
	if o.progress == nil {
		return
	}
	o.progress(Progress{
		SessionID: o.id,
		Phase:     o.phase,
		Angle:     o.angle,
		Attempt:   o.attempt,
		Accepted:  o.store.Len(),
	})
}

func (o *Orchestrator) record(ctx context.Context, ev Event) {
	ev.SessionID = o.id
	if ev.Angle == 0 {
		ev.Angle = o.angle
	}
	ev.Attempt = o.attempt
	ev.Phase = o.phase
	ev.Time = time.Now()
	if err := o.deps.Events.Record(ctx, ev); err != nil {
		o.logger.Warn(ctx, "event not recorded", zap.String("event", string(ev.Type)), zap.Error(err))
	}
}

func (o *Orchestrator) logCtx(ctx context.Context) context.Context {
	ctx = logging.WithSessionID(ctx, o.id)
	return logging.WithAngle(ctx, o.angle.String())
}

func (o *Orchestrator) settle() {
	o.settleOnce.Do(func() { close(o.settled) })
}

type nopRecorder struct{}

func (nopRecorder) Record(context.Context, Event) error { return nil }
