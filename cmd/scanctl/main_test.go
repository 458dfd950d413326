package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/config"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

// execute runs rootCmd with args and returns its output.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		assembleOut = ""
		checkJSON = false
		statusJSON = false
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "scanctl dev")
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	m := writeFile(t, dir, "m.webm", "MIDDLE")
	top := writeFile(t, dir, "t.webm", "TOP")
	b := writeFile(t, dir, "b.webm", "BOTTOM")
	outPath := filepath.Join(dir, "scan.webm")

	out, err := execute(t, "assemble", m, top, b, "-o", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote "+outPath)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "MIDDLETOPBOTTOM", string(data))
}

func TestAssemble_MixedContainers(t *testing.T) {
	dir := t.TempDir()
	m := writeFile(t, dir, "m.webm", "MIDDLE")
	top := writeFile(t, dir, "t.mp4", "TOP")
	b := writeFile(t, dir, "b.webm", "BOTTOM")

	_, err := execute(t, "assemble", m, top, b, "-o", filepath.Join(dir, "out.webm"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "media type mismatch")
}

func TestAssemble_WrongArgCount(t *testing.T) {
	_, err := execute(t, "assemble", "only-one.webm")
	assert.Error(t, err)
}

func TestCheck_UnreadableRecordingIsRejected(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.webm", "definitely not a video")

	out, err := execute(t, "check", path)
	require.ErrorIs(t, err, errRejected)
	assert.Contains(t, out, "rejected")
	assert.Contains(t, out, "✗")
}

func TestCheck_JSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.mp4", "nope")

	out, err := execute(t, "check", "--json", path)
	require.ErrorIs(t, err, errRejected)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, false, res["accepted"])
}

func TestCheck_InvalidAngle(t *testing.T) {
	path := writeFile(t, t.TempDir(), "x.webm", "x")
	t.Cleanup(func() { checkAngle = "middle" })

	_, err := execute(t, "check", "--angle", "side", path)
	require.ErrorIs(t, err, capture.ErrInvalidAngle)
}

func TestStatus(t *testing.T) {
	var session *orchestrator.Session
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/session", r.URL.Path)
		if session == nil {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"no capture session"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(session)
	}))
	defer srv.Close()

	out, err := execute(t, "status", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "no capture session")

	session = &orchestrator.Session{
		ID:         "s-1",
		Phase:      orchestrator.PhaseRejected,
		Angle:      capture.AngleTop,
		Accepted:   1,
		LastErrors: []string{"Recording is too short (5.0s). Minimum 12 seconds required."},
	}
	out, err = execute(t, "status", "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "Phase:    rejected")
	assert.Contains(t, out, "Accepted: 1/3")
	assert.Contains(t, out, "Minimum 12 seconds required.")
}

func TestStatus_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := execute(t, "status", "--server", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestNewCaptureDevice(t *testing.T) {
	t.Cleanup(func() {
		captureFlags.middle, captureFlags.top, captureFlags.bottom = "", "", ""
	})
	cfg := config.Default()
	cfg.Device.InboxDir = filepath.Join(t.TempDir(), "inbox")

	dev, err := newCaptureDevice(cfg)
	require.NoError(t, err)
	assert.NotNil(t, dev)
	assert.DirExists(t, cfg.Device.InboxDir)

	captureFlags.middle = "m.webm"
	_, err = newCaptureDevice(cfg)
	assert.Error(t, err)

	captureFlags.top, captureFlags.bottom = "t.webm", "b.webm"
	dev, err = newCaptureDevice(cfg)
	require.NoError(t, err)
	assert.NotNil(t, dev)
}

func TestPrintOutcome(t *testing.T) {
	var buf bytes.Buffer
	printOutcome(&buf, orchestrator.Session{
		Phase:    orchestrator.PhaseCompleted,
		Accepted: 3,
		Delivery: &orchestrator.DeliveryStatus{Receipt: &orchestrator.DeliveryReceipt{Location: "/tmp/capture-guest-1.webm"}},
	})
	assert.Contains(t, buf.String(), "Saved to /tmp/capture-guest-1.webm")

	buf.Reset()
	printOutcome(&buf, orchestrator.Session{Phase: orchestrator.PhaseAbandoned, Accepted: 1})
	assert.Contains(t, buf.String(), "abandoned after 1 of 3")
}
