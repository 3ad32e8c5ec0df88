package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpalmerr/clipwatch"
	"github.com/jpalmerr/clipwatch/config"
	"github.com/jpalmerr/clipwatch/page"
)

// watchCmd follows a single session from the terminal.
var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Follow one job's progress in the terminal",
	Long: `Poll the status of one session until the job completes, printing
every update.

The upstream application is taken from --upstream, or from the config file
when -c is given. Exits non-zero if a status request fails.

Example:
  clipwatch watch 3f1c2a9e-... --upstream http://localhost:5000
  clipwatch watch 3f1c2a9e-... -c config.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringP("upstream", "u", "", "base URL of the clip application")
	watchCmd.Flags().StringP("config", "c", "", "path to config file")
	watchCmd.Flags().Duration("interval", 2*time.Second, "delay between polls")
	watchCmd.Flags().Duration("timeout", 10*time.Second, "timeout of each status request")
	watchCmd.Flags().Bool("verbose", false, "log every poll to stderr")
}

func runWatch(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	upstream, _ := cmd.Flags().GetString("upstream")
	configFile, _ := cmd.Flags().GetString("config")
	interval, _ := cmd.Flags().GetDuration("interval")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := newLogger(level)

	opts := []clipwatch.Option{clipwatch.WithLogger(logger)}
	if configFile != "" {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if upstream == "" {
			upstream = cfg.Upstream
		}
		opts = pollerOptions(cfg, logger)
	}

	// explicit flags win over the config file
	if configFile == "" || cmd.Flags().Changed("interval") {
		opts = append(opts, clipwatch.WithInterval(interval))
	}
	if configFile == "" || cmd.Flags().Changed("timeout") {
		opts = append(opts, clipwatch.WithRequestTimeout(timeout))
	}
	if upstream == "" {
		return errors.New("an upstream is required: pass --upstream or -c")
	}

	out := cmd.OutOrStdout()
	opts = append(opts, clipwatch.WithStatusCallback(printPoll(out)))

	p, err := clipwatch.New(upstream, opts...)
	if err != nil {
		return err
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	doc := page.NewProgressPage()
	h, err := p.PollInto(ctx, sessionID, clipwatch.DocumentView(doc))
	if err != nil {
		return err
	}

	if err := h.Wait(context.Background()); err != nil {
		return fmt.Errorf("watch %s: %w", sessionID, err)
	}

	if h.State() == clipwatch.StateCompleted {
		fmt.Fprintf(out, "%s completed\n", sessionID)
		return nil
	}
	fmt.Fprintf(out, "%s stopped at %s (%s)\n",
		sessionID,
		doc.Element(page.ProgressID).Style("width"),
		doc.Element(page.StatusID).Text(),
	)
	return nil
}

// printPoll writes one line per poll.
func printPoll(w io.Writer) func(clipwatch.PollResult) {
	return func(r clipwatch.PollResult) {
		if r.Error != nil {
			fmt.Fprintf(w, "%s  error  %v\n", r.CheckedAt.Format(time.TimeOnly), r.Error)
			return
		}
		fmt.Fprintf(w, "%s  %6s%%  %-12s %s\n",
			r.CheckedAt.Format(time.TimeOnly),
			strconv.FormatFloat(r.Payload.Progress, 'f', -1, 64),
			r.Payload.Status,
			r.Payload.Message,
		)
	}
}
