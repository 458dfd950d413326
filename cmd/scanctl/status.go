package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/scancap/internal/orchestrator"
)

var statusJSON bool

// statusCmd shows the daemon's current session.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current scancapd session",
	Long: `Show the state of the capture session hosted by scancapd.

Examples:
  scanctl status
  scanctl status --server http://scanner.local:9190 --json`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw session JSON")
}

func runStatus(cmd *cobra.Command, _ []string) error {
	url := strings.TrimRight(serverURL, "/") + "/api/v1/session"
	client := &http.Client{Timeout: 5 * time.Second}

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	out := cmd.OutOrStdout()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		fmt.Fprintln(out, "no capture session")
		return nil
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if statusJSON {
		_, err := out.Write(body)
		return err
	}

	var snap orchestrator.Session
	if err := json.Unmarshal(body, &snap); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	printSession(out, snap)
	return nil
}

func printSession(w io.Writer, s orchestrator.Session) {
	fmt.Fprintf(w, "Session:  %s\n", s.ID)
	fmt.Fprintf(w, "Phase:    %s\n", s.Phase)
	fmt.Fprintf(w, "Angle:    %s (%s)\n", s.Angle, s.Angle.Title())
	fmt.Fprintf(w, "Accepted: %d/3\n", s.Accepted)
	if s.Token != nil {
		fmt.Fprintf(w, "Attempt:  %d\n", s.Token.Attempt)
	}
	for _, e := range s.LastErrors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
	if s.Err != "" {
		fmt.Fprintf(w, "Error:    %s\n", s.Err)
	}
	if a := s.Artifact; a != nil {
		fmt.Fprintf(w, "Artifact: %s (%d bytes)\n", a.ID, a.Size)
	}
	if d := s.Delivery; d != nil {
		if d.Succeeded() {
			fmt.Fprintf(w, "Delivered: %s\n", d.Receipt.Key)
		} else {
			fmt.Fprintf(w, "Delivery failed: %s\n", d.Err)
		}
	}
}
