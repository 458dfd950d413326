package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scancap/internal/assembler"
	"github.com/fyrsmithlabs/scancap/internal/capture"
)

var assembleOut string

// assembleCmd joins three recordings without checking them.
var assembleCmd = &cobra.Command{
	Use:   "assemble <middle> <top> <bottom>",
	Short: "Join three recordings into one artifact",
	Long: `Join the middle, top and bottom recordings, in that order, into one
artifact. The recordings must share a container type. No quality checks
are run; use "scanctl check" first.

Examples:
  scanctl assemble middle.webm top.webm bottom.webm -o scan.webm`,
	Args: cobra.ExactArgs(capture.AngleCount),
	RunE: runAssemble,
}

func init() {
	assembleCmd.Flags().StringVarP(&assembleOut, "output", "o", "", "output file (default capture-<id> with the container extension)")
}

func runAssemble(cmd *cobra.Command, args []string) error {
	segments := make([]*capture.Segment, 0, len(args))
	for i, path := range args {
		payload, mediaType, err := readRecording(path)
		if err != nil {
			return err
		}
		seg, err := capture.NewSegment(capture.Angle(i+1), mediaType, payload, capture.Metadata{})
		if err != nil {
			return err
		}
		segments = append(segments, seg)
	}

	art, err := assembler.New().Assemble(segments)
	if err != nil {
		return err
	}

	out := assembleOut
	if out == "" {
		out = "capture-" + art.ID + art.MediaType.Extension()
	}
	if err := os.WriteFile(out, art.Payload, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d bytes, %s)\n", out, art.Size(), art.MediaType.Container())
	return nil
}
