package http

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/fyrsmithlabs/scancap/internal/telemetry"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string             `json:"status"`
	Session string             `json:"session,omitempty"`
	Phase   orchestrator.Phase `json:"phase,omitempty"`

	Telemetry *telemetry.HealthStatus `json:"telemetry,omitempty"`
}

// UploadResponse is the response body for a segment upload. A rejected
// segment is a normal outcome: Check.Errors holds the messages to show.
type UploadResponse struct {
	Check   gate.CheckResult     `json:"check"`
	Session orchestrator.Session `json:"session"`
}

// CancelResponse is the response body for POST /recording/cancel.
type CancelResponse struct {
	Canceled bool                      `json:"canceled"`
	Token    orchestrator.AttemptToken `json:"token"`
}

func (s *Server) handleHealth(c echo.Context) error {
	resp := HealthResponse{Status: "ok"}
	if sess, err := s.sessions.Current(); err == nil {
		snap := sess.Orchestrator.Snapshot()
		resp.Session, resp.Phase = snap.ID, snap.Phase
	}
	if s.telemetry != nil {
		th := s.telemetry()
		resp.Telemetry = &th
		if th.Degraded {
			resp.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleStart(c echo.Context) error {
	replace, _ := strconv.ParseBool(c.QueryParam("replace"))
	sess, err := s.sessions.Start(c.Request().Context(), replace)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, sess.Orchestrator.Snapshot())
}

func (s *Server) handleSnapshot(c echo.Context) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Orchestrator.Snapshot())
}

// sessionAction runs fn against the active orchestrator and replies with
// the resulting snapshot.
func (s *Server) sessionAction(c echo.Context, fn func(*orchestrator.Orchestrator, context.Context) error) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	if err := fn(sess.Orchestrator, c.Request().Context()); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Orchestrator.Snapshot())
}

func (s *Server) handleAbandon(c echo.Context) error {
	return s.sessionAction(c, (*orchestrator.Orchestrator).Abandon)
}

func (s *Server) handleTutorialAck(c echo.Context) error {
	return s.sessionAction(c, (*orchestrator.Orchestrator).TutorialAcknowledged)
}

func (s *Server) handleRetryAck(c echo.Context) error {
	return s.sessionAction(c, (*orchestrator.Orchestrator).RetryAcknowledged)
}

func (s *Server) handleAssemblyRetry(c echo.Context) error {
	return s.sessionAction(c, (*orchestrator.Orchestrator).RetryAssembly)
}

func (s *Server) handleCancelRecording(c echo.Context) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	token, ok := sess.Device.Armed()
	if !ok {
		return echo.NewHTTPError(http.StatusConflict, "no recording is armed")
	}
	if !sess.Device.Cancel(token) {
		return echo.NewHTTPError(http.StatusConflict, "recording already finished")
	}
	return c.JSON(http.StatusAccepted, CancelResponse{Canceled: true, Token: token})
}

// handleUpload accepts the finished recording for the armed attempt.
//
// PUT /api/v1/session/segments/:angle?attempt=N
// Content-Type: video/webm;codecs=vp9
func (s *Server) handleUpload(c echo.Context) error {
	if !s.limiter.Allow() {
		return echo.NewHTTPError(http.StatusTooManyRequests, "upload rate limit exceeded")
	}
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}

	angle, err := capture.ParseAngle(c.Param("angle"))
	if err != nil {
		return err
	}
	attempt, err := strconv.Atoi(c.QueryParam("attempt"))
	if err != nil || attempt < 1 {
		return echo.NewHTTPError(http.StatusBadRequest, "attempt query parameter must be a positive integer")
	}
	mediaType := capture.MediaType(c.Request().Header.Get(echo.HeaderContentType))
	if mediaType.Container() == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Content-Type is required")
	}

	req := c.Request()
	body := http.MaxBytesReader(c.Response(), req.Body, s.config.MaxUploadBytes)
	payload, err := io.ReadAll(body)
	if err != nil {
		if isTooLarge(err) {
			return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "upload too large")
		}
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read upload")
	}

	ctx := logging.WithSessionID(req.Context(), sess.Orchestrator.ID())
	ctx = logging.WithAngle(ctx, angle.String())
	seg, err := capture.ProbeSegment(ctx, angle, mediaType, payload, s.prober)
	if err != nil {
		return err
	}
	if perr := seg.ProbeErr(); perr != nil {
		s.logger.Warn(ctx, "upload could not be probed", zap.Error(perr))
	}

	token := orchestrator.AttemptToken{Angle: angle, Attempt: attempt}
	res, err := sess.Orchestrator.RecordingFinished(ctx, token, seg)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, UploadResponse{Check: res, Session: sess.Orchestrator.Snapshot()})
}

func (s *Server) handleArtifact(c echo.Context) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	art, ok := sess.Orchestrator.Artifact()
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "artifact not ready")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition,
		`inline; filename="capture-`+art.ID+art.MediaType.Extension()+`"`)
	return c.Blob(http.StatusOK, string(art.MediaType), art.Payload)
}

func (s *Server) handleDeliver(c echo.Context) error {
	sess, err := s.sessions.Current()
	if err != nil {
		return err
	}
	receipt, err := sess.Orchestrator.Deliver(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, receipt)
}
