package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scancap/internal/assembler"
	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/config"
	"github.com/fyrsmithlabs/scancap/internal/delivery"
	"github.com/fyrsmithlabs/scancap/internal/device"
	"github.com/fyrsmithlabs/scancap/internal/gate"
	"github.com/fyrsmithlabs/scancap/internal/logging"
	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
	"github.com/fyrsmithlabs/scancap/internal/tui"
)

var captureFlags struct {
	middle, top, bottom string
	inbox               string
	owner               string
	outDir              string
}

// captureCmd runs a guided session in the terminal.
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run a guided three-angle capture",
	Long: `Run a guided capture session in the terminal.

By default recordings are picked up from the inbox directory: after each
tutorial, drop the finished recording there (or create a file ending in
.abandon to give up). With --middle, --top and --bottom the three files are
used instead, which is useful for replaying a capture.

Examples:
  # Record into the configured inbox
  scanctl capture

  # Replay existing recordings
  scanctl capture --middle m.webm --top t.webm --bottom b.webm`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	f := captureCmd.Flags()
	f.StringVar(&captureFlags.middle, "middle", "", "middle recording")
	f.StringVar(&captureFlags.top, "top", "", "top recording")
	f.StringVar(&captureFlags.bottom, "bottom", "", "bottom recording")
	f.StringVar(&captureFlags.inbox, "inbox", "", "inbox directory (default from config)")
	f.StringVar(&captureFlags.owner, "owner", "", "owner recorded on the artifact (default from config)")
	f.StringVar(&captureFlags.outDir, "out", "", "artifact directory (default from config)")
}

func runCapture(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if captureFlags.owner != "" {
		cfg.Capture.Owner = captureFlags.owner
	}
	if captureFlags.outDir != "" {
		cfg.Delivery.Dir = captureFlags.outDir
	}
	if captureFlags.inbox != "" {
		cfg.Device.InboxDir = captureFlags.inbox
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := newCaptureDevice(cfg)
	if err != nil {
		return err
	}
	store, err := delivery.NewFileStore(cfg.Delivery.Dir)
	if err != nil {
		return err
	}
	g, err := gate.New(cfg.Gate)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so the session logs nowhere.
	logger := logging.NewNop()
	presenter := tui.NewPresenter()
	orch, err := orchestrator.New(cfg.Capture.Orchestrator(), orchestrator.Deps{
		Device:    dev,
		Presenter: presenter,
		Gate:      g,
		Assembler: assembler.New(),
		Delivery:  delivery.NewChain(store, delivery.WithLogger(logger)),
	},
		orchestrator.WithLogger(logger),
		orchestrator.WithProgress(presenter.Progress),
	)
	if err != nil {
		return err
	}
	defer orch.Close()

	if _, err := tui.Run(ctx, orch, presenter, orch.Start); err != nil {
		return err
	}

	waitCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	snap, err := orch.Wait(waitCtx)
	if err != nil && !snap.Phase.IsTerminal() {
		// The user quit before the abandon landed.
		_ = orch.Abandon(context.Background())
		snap = orch.Snapshot()
	}
	printOutcome(cmd.OutOrStdout(), snap)
	if snap.Phase != orchestrator.PhaseCompleted {
		return fmt.Errorf("capture %s", snap.Phase)
	}
	return nil
}

func newCaptureDevice(cfg *config.Config) (orchestrator.Device, error) {
	prober := newProber(cfg)
	files := map[capture.Angle]string{}
	for angle, path := range map[capture.Angle]string{
		capture.AngleMiddle: captureFlags.middle,
		capture.AngleTop:    captureFlags.top,
		capture.AngleBottom: captureFlags.bottom,
	} {
		if path != "" {
			files[angle] = path
		}
	}
	switch len(files) {
	case 0:
		if err := os.MkdirAll(cfg.Device.InboxDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create inbox: %w", err)
		}
		return device.NewInboxDevice(cfg.Device.InboxDir, prober,
			device.WithSettleDelay(cfg.Device.SettleDelay.Duration()),
		), nil
	case capture.AngleCount:
		return device.NewFileDevice(files, prober), nil
	default:
		return nil, fmt.Errorf("--middle, --top and --bottom must be given together")
	}
}

func printOutcome(w io.Writer, s orchestrator.Session) {
	switch s.Phase {
	case orchestrator.PhaseCompleted:
		fmt.Fprintf(w, "Capture complete: %d segments\n", s.Accepted)
		if d := s.Delivery; d != nil {
			if d.Succeeded() {
				fmt.Fprintf(w, "Saved to %s\n", d.Receipt.Location)
			} else {
				fmt.Fprintf(w, "Saving failed: %s\n", d.Err)
			}
		}
	case orchestrator.PhaseFailed:
		fmt.Fprintf(w, "Capture failed: %s\n", s.Err)
	default:
		fmt.Fprintf(w, "Capture %s after %d of 3 angles\n", s.Phase, s.Accepted)
	}
}
