package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-sync/internal/service"
)

func newSyncCmd() *cobra.Command {
	var (
		date   string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one timetable sync and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			window, err := parseSyncWindow(date)
			if err != nil {
				return err
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.sync.Sync(cmd.Context(), window)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			_, err = fmt.Fprintln(out, report.Log())
			return err
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "sync date as YYYY-MM-DD (default today)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func parseSyncWindow(raw string) (service.SyncWindow, error) {
	if raw == "" {
		return service.SyncWindow{}, nil
	}
	date, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return service.SyncWindow{}, fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", raw)
	}
	return service.SyncWindow{Date: date}, nil
}
