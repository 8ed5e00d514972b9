package main

import (
	"fmt"
	"time"

	"github.com/medflow/shift-timer/internal/timer/service"
	"github.com/spf13/cobra"
)

var (
	hoursStart string
	hoursEnd   string
)

var hoursCmd = &cobra.Command{
	Use:   "hours",
	Short: "Total a user's worked hours over a date range",
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(hoursStart, hoursEnd, time.Now().UTC())
		if err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		timers := service.NewTimerService(rt.backend.Sources, nil, service.OptionsFromConfig(&rt.cfg.Timer), rt.log)
		report, err := timers.Hours(rt.context(cmd.Context()), rt.userID, start, end)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "User %d, %s to %s: %s (%d entries)\n",
			report.UserID, start.Format("2006-01-02"), end.Format("2006-01-02"), report.Hours, len(report.Entries))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hoursCmd)

	hoursCmd.Flags().StringVar(&hoursStart, "start", "", "First date, YYYY-MM-DD (default today)")
	hoursCmd.Flags().StringVar(&hoursEnd, "end", "", "Last date, YYYY-MM-DD (default today)")
}
