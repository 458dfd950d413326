package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/gate"
)

var (
	checkAngle string
	checkJSON  bool
)

// checkCmd runs the quality gate on one file.
var checkCmd = &cobra.Command{
	Use:   "check <file>",
	Short: "Check one recording against the quality gate",
	Long: `Check one recording against the quality gate and print the verdict.
The command exits with status 1 when the recording is rejected.

Examples:
  # Check a recording
  scanctl check middle.webm

  # Machine-readable output
  scanctl check --json top.mp4`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkAngle, "angle", "middle", "angle the recording belongs to")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the result as JSON")
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	angle, err := capture.ParseAngle(checkAngle)
	if err != nil {
		return err
	}
	payload, mediaType, err := readRecording(args[0])
	if err != nil {
		return err
	}

	g, err := gate.New(cfg.Gate)
	if err != nil {
		return err
	}
	seg, err := capture.ProbeSegment(cmd.Context(), angle, mediaType, payload, newProber(cfg))
	if err != nil {
		return err
	}
	res := g.Check(seg, cfg.Capture.MinDuration.Duration())

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		printCheck(out, args[0], seg, res)
	}
	if !res.Accepted {
		return errRejected
	}
	return nil
}

func printCheck(w io.Writer, path string, seg *capture.Segment, res gate.CheckResult) {
	if seg.ProbeErr() == nil {
		md := seg.Metadata()
		fmt.Fprintf(w, "%s: %dx%d, %.1fs, %d bytes\n", path, md.Width, md.Height, md.DurationSeconds(), seg.ByteSize())
	} else {
		fmt.Fprintf(w, "%s: %d bytes\n", path, seg.ByteSize())
	}
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "  ! %s\n", warn)
	}
	if res.Accepted {
		fmt.Fprintln(w, "accepted")
	} else {
		fmt.Fprintln(w, "rejected")
	}
}
