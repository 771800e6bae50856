package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/sma-timetable-sync/internal/models"
)

func newAffectedCmd() *cobra.Command {
	var (
		eventID string
		start   string
		end     string
		classes string
	)
	cmd := &cobra.Command{
		Use:   "affected",
		Short: "List the recurring lessons an event collides with",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			location, err := time.LoadLocation(a.cfg.Matcher.Timezone)
			if err != nil {
				return err
			}
			event, err := parseEvent(eventID, start, end, classes, location)
			if err != nil {
				return err
			}

			lessons, err := a.matcher.AffectedLessons(cmd.Context(), event)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(lessons)
		},
	}
	cmd.Flags().StringVar(&eventID, "event-id", "cli", "event identifier")
	cmd.Flags().StringVar(&start, "start", "", "event start, RFC3339 or YYYY-MM-DDTHH:MM in the school time zone")
	cmd.Flags().StringVar(&end, "end", "", "event end, same formats as --start")
	cmd.Flags().StringVar(&classes, "classes", "", "comma separated class names or group prefixes")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func parseEvent(id, start, end, classes string, location *time.Location) (models.Event, error) {
	startAt, err := parseEventTime(start, location)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid --start: %w", err)
	}
	endAt, err := parseEventTime(end, location)
	if err != nil {
		return models.Event{}, fmt.Errorf("invalid --end: %w", err)
	}
	var tokens []string
	for _, token := range strings.Split(classes, ",") {
		if token = strings.TrimSpace(token); token != "" {
			tokens = append(tokens, token)
		}
	}
	return models.Event{ID: id, Start: startAt, End: endAt, Classes: tokens}, nil
}

func parseEventTime(raw string, location *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02T15:04", raw, location)
}
