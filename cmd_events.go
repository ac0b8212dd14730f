package main

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"smallsched/src-server/model"
	"smallsched/src-server/recurrence"
	"smallsched/src-server/utils"

	"github.com/spf13/cobra"
)

var (
	addFrequency   string
	addOccurrences int
)

func init() {
	addCmd.Flags().StringVarP(&addFrequency, "frequency", "f", "weekly", "daily, weekly, bi-weekly or monthly")
	addCmd.Flags().IntVarP(&addOccurrences, "occurrences", "n", 1, "number of occurrences")
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func now() time.Time {
	return time.Now().In(as.Config.GetLocation())
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event id %q", s)
	}
	return id, nil
}

var addCmd = &cobra.Command{
	Use:   "add <name> <start>",
	Short: "Add a recurring event; start is YYYY-MM-DD or e.g. \"next monday\"",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		start, err := utils.ParseDate(as.When, args[1], now())
		if err != nil {
			return err
		}
		frequency, err := model.ParseFrequency(addFrequency)
		if err != nil {
			return err
		}
		e := model.Event{
			Name:        utils.CleanupString(args[0]),
			StartDate:   start,
			Frequency:   frequency,
			Occurrences: addOccurrences,
		}
		if err := as.Events.Insert(cmd.Context(), &e); err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), e)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s\n", e.String())
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every event",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eventModels, err := as.Events.All(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), eventModels)
		}
		for _, e := range eventModels {
			fmt.Fprintln(cmd.OutOrStdout(), e.String())
		}
		return nil
	},
}

var dayCmd = &cobra.Command{
	Use:   "day [date]",
	Short: "Show the events on a date (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day := recurrence.Date(now())
		if len(args) == 1 {
			var err error
			if day, err = utils.ParseDate(as.When, args[0], now()); err != nil {
				return err
			}
		}
		eventModels, err := as.Events.EventsOn(cmd.Context(), day)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), eventModels)
		}
		fmt.Fprintln(cmd.OutOrStdout(), day.Format("Monday, 02 January 2006"))
		for _, e := range eventModels {
			index := recurrence.IndexOf(recurrence.Occurrences(e), day)
			fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s (%d of %d)\n", e.ID, e.Name, index+1, e.Occurrences)
		}
		return nil
	},
}

var monthCmd = &cobra.Command{
	Use:   "month [year] [month]",
	Short: "Show the events of a month (default this month)",
	Args:  cobra.RangeArgs(0, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		year, month := now().Year(), now().Month()
		if len(args) >= 1 {
			y, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid year %q", args[0])
			}
			year = y
		}
		if len(args) == 2 {
			m, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid month %q", args[1])
			}
			month = time.Month(m)
		}

		eventsInMonth, err := as.Events.EventsForMonth(cmd.Context(), year, month)
		if err != nil {
			return err
		}
		days := make([]time.Time, 0, len(eventsInMonth))
		for day := range eventsInMonth {
			days = append(days, day)
		}
		slices.SortFunc(days, func(a, b time.Time) int { return a.Compare(b) })

		if jsonOutput {
			out := make(map[string][]model.Event, len(days))
			for _, day := range days {
				out[day.Format(time.DateOnly)] = eventsInMonth[day]
			}
			return printJSON(cmd.OutOrStdout(), out)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", month, year)
		for _, day := range days {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", day.Format("Mon 02"))
			for _, e := range eventsInMonth[day] {
				fmt.Fprintf(cmd.OutOrStdout(), "    #%d %s\n", e.ID, e.Name)
			}
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>...",
	Short: "Delete whole events",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, arg := range args {
			id, err := parseID(arg)
			if err != nil {
				return err
			}
			removed, err := as.Events.DeleteWhole(cmd.Context(), id)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted #%d\n", id)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "No event #%d\n", id)
			}
		}
		return nil
	},
}

var skipCmd = &cobra.Command{
	Use:   "skip <id> <date>",
	Short: "Delete one occurrence of an event",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		day, err := utils.ParseDate(as.When, args[1], now())
		if err != nil {
			return err
		}
		result, err := as.Events.DeleteOccurrence(cmd.Context(), id, day)
		if err != nil {
			return err
		}
		if jsonOutput {
			return printJSON(cmd.OutOrStdout(), result)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", result.Outcome)
		for _, e := range []*model.Event{result.Updated, result.Before, result.After} {
			if e != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", e.String())
			}
		}
		return nil
	},
}
