package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"smallsched/src-server/feed"
	"smallsched/src-server/ical"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	exploreTag string
	exploreAll bool
	exportFile string
)

func init() {
	exploreCmd.Flags().StringVarP(&exploreTag, "tag", "t", "", "only suggestions with this tag")
	exploreCmd.Flags().BoolVar(&exploreAll, "all", false, "include suggestions that started long ago")
	exportCmd.Flags().StringVarP(&exportFile, "output", "o", "", "write to a file instead of stdout")
}

var exploreCmd = &cobra.Command{
	Use:   "explore [id]",
	Short: "List suggested events from the feed, or add one by id",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid suggestion id %q", args[0])
			}
			suggestion, ok, err := as.Catalog.Find(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no suggestion %s", id)
			}
			e := suggestion.ToEvent()
			if err := as.Events.Insert(cmd.Context(), &e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", e.String())
			return nil
		}

		events, err := as.Catalog.Events(cmd.Context())
		if err != nil {
			return err
		}
		if !exploreAll {
			events = feed.FilterByDateRange(events, time.Now())
		}
		events = feed.FilterByTag(events, exploreTag)
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), events)
		}
		for _, e := range events {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s x%d  [%s]\n  %s\n",
				e.ID, e.StartDate.Format(time.DateOnly), e.Frequency, e.Count, strings.Join(e.Tags, ", "), e.Name)
		}
		return nil
	},
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every event as an iCalendar file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventModels, err := as.Events.All(cmd.Context())
		if err != nil {
			return err
		}
		out := ical.Export(eventModels, time.Now())
		if exportFile == "" {
			_, err := fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		}
		if err := os.WriteFile(exportFile, []byte(out), 0o644); err != nil {
			return fmt.Errorf("can't write %s: %w", exportFile, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d events to %s\n", len(eventModels), exportFile)
		return nil
	},
}
