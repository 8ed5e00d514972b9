package main

import (
	"fmt"
	"os"
	"time"

	"github.com/medflow/shift-timer/internal/reconcile"
	"github.com/medflow/shift-timer/internal/timer/service"
	"github.com/spf13/cobra"
)

var (
	exportStart    string
	exportEnd      string
	exportTimezone string
	exportOutput   string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a user's entries and worked hours to Excel",
	Example: `
  timerctl export --user 5 --start 2024-03-01 --end 2024-03-31 --tz America/Caracas --output march.xlsx
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		start, end, err := parseRange(exportStart, exportEnd, time.Now().UTC())
		if err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		loc, err := reconcile.LoadZone(exportTimezone, rt.cfg.Timer.DefaultTimezone)
		if err != nil {
			return err
		}

		timers := service.NewTimerService(rt.backend.Sources, nil, service.OptionsFromConfig(&rt.cfg.Timer), rt.log)
		report, err := timers.Hours(rt.context(cmd.Context()), rt.userID, start, end)
		if err != nil {
			return err
		}

		file, err := os.Create(exportOutput)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOutput, err)
		}
		defer file.Close()

		if err := service.WriteHoursXLSX(file, report, loc); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Export completed. Entries: %d, Total: %s, File: %s\n",
			len(report.Entries), report.Hours, exportOutput)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringVar(&exportStart, "start", "", "First date, YYYY-MM-DD (default today)")
	exportCmd.Flags().StringVar(&exportEnd, "end", "", "Last date, YYYY-MM-DD (default today)")
	exportCmd.Flags().StringVar(&exportTimezone, "tz", "", "Timezone for the times in the sheet")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path")

	_ = exportCmd.MarkFlagRequired("output")
}
