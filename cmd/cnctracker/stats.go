package main

import (
	"bufio"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var headlineMetrics = []string{
	"cnc_machines_tracked",
	"cnc_advances_total",
	"cnc_refreshes_total",
	"cnc_export_queue_length",
	"cnc_export_dropped_total",
}

func newStatsCommand() *cobra.Command {
	var (
		url      string
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Poll the Prometheus metrics endpoint and print live counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			client := &http.Client{Timeout: interval}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Streaming metrics from %s (Ctrl+C to stop)\n", url)
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := printMetricsSnapshot(out, client, url); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "stats error: %v\n", err)
					}
				}
			}
		},
	}
	cmd.Flags().StringVar(&url, "url", "http://localhost:8080/metrics", "Prometheus metrics endpoint")
	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "refresh interval")
	return cmd
}

func printMetricsSnapshot(out io.Writer, client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	targets, err := scanMetrics(resp.Body)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "[%s] machines=%.0f advances=%.0f refreshes=%.0f queue=%.0f dropped=%.0f\n",
		time.Now().Format(time.RFC3339),
		targets["cnc_machines_tracked"],
		targets["cnc_advances_total"],
		targets["cnc_refreshes_total"],
		targets["cnc_export_queue_length"],
		targets["cnc_export_dropped_total"],
	)
	return nil
}

func scanMetrics(r io.Reader) (map[string]float64, error) {
	targets := make(map[string]float64, len(headlineMetrics))
	for _, key := range headlineMetrics {
		targets[key] = 0
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") {
			continue
		}
		for key := range targets {
			if strings.HasPrefix(line, key+" ") {
				var value float64
				if _, err := fmt.Sscanf(line, key+" %g", &value); err == nil {
					targets[key] = value
				}
			}
		}
	}
	return targets, scanner.Err()
}
