package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/medflow/shift-timer/internal/timer/service"
	"github.com/medflow/shift-timer/pkg/session"
	"github.com/spf13/cobra"
)

var (
	watchTimezone string
	watchInterval time.Duration
	watchOnce     bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a user's live timer",
	Long: `Open a timer session for one user and print its status on every tick
until interrupted. With --once the status is printed a single time.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateInterval(watchInterval); err != nil {
			return err
		}

		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		ctx = rt.context(ctx)

		opts := service.OptionsFromConfig(&rt.cfg.Timer)
		owner, _ := session.FromContext(ctx)
		sess, err := service.NewSession(rt.userID, watchTimezone, owner, rt.backend.Sources, nil, opts, rt.log)
		if err != nil {
			return err
		}
		defer sess.Close()

		if err := sess.Start(ctx); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		printStatus(out, sess.Status())
		if watchOnce {
			return nil
		}

		ticker := time.NewTicker(watchInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				printStatus(out, sess.Status())
			}
		}
	},
}

func validateInterval(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", d)
	}
	return nil
}

func printStatus(w io.Writer, st service.Status) {
	window := "no schedule today"
	if st.ValidStartLocal != nil && st.ValidEndLocal != nil {
		window = fmt.Sprintf("%s-%s", st.ValidStartLocal.Format("15:04"), st.ValidEndLocal.Format("15:04"))
	}

	elapsed := st.Started
	if st.TimeRef != "" {
		elapsed += " " + st.TimeRef
	}

	leave := ""
	if st.HasLeaveRequest {
		leave = " [on leave]"
	}

	fmt.Fprintf(w, "%s  window %s  %-12s  running %s  total %s%s\n",
		st.Timezone, window, st.Classification, elapsed, st.TotalHours, leave)
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVar(&watchTimezone, "tz", "", "Display timezone (default timer.default_timezone)")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", time.Second, "Print interval")
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Print the status once and exit")
}
