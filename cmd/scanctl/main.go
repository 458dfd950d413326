// Package main implements scanctl, the scancap command-line client.
//
// scanctl runs guided captures in the terminal, checks and assembles
// recordings offline, and queries a running scancapd.
package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scancap/internal/capture"
	"github.com/fyrsmithlabs/scancap/internal/config"
	"github.com/fyrsmithlabs/scancap/internal/probe"
)

var (
	// configPath overrides the default config file location.
	configPath string
	// serverURL is the base URL of scancapd.
	serverURL string
	// version information (set via ldflags during build)
	version   = "dev"
	gitCommit = "unknown"
)

// errRejected signals a rejected recording. It maps to exit code 1 without
// an error message, since the verdict was already printed.
var errRejected = errors.New("recording rejected")

func main() {
	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errRejected) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scanctl",
	Short: "Guided three-angle video capture",
	Long: `scanctl records an object from three angles (middle, top, bottom),
checks every recording against the quality gate and joins them into one
artifact for 3D reconstruction.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config.yaml (default ~/.config/scancap/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:9190", "scancapd URL")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(assembleCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "scanctl %s (%s)\n", version, gitCommit)
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func newProber(cfg *config.Config) *probe.Chain {
	return probe.NewChain(probe.WithFallback(
		probe.NewFFProbe(cfg.Device.FFProbePath, cfg.Device.ProbeTimeout.Duration()),
	))
}

// readRecording loads a recording and determines its media type from the
// file extension, falling back to the content.
func readRecording(path string) ([]byte, capture.MediaType, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if mt, ok := capture.MediaTypeFromExtension(filepath.Ext(path)); ok {
		return payload, mt, nil
	}
	mt, err := probe.Sniff(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return payload, mt, nil
}
