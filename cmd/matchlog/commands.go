package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"matchlog/config"
	"matchlog/eventlog"
	"matchlog/sessions"
	"matchlog/storage"
)

type cliOptions struct {
	configPath string
	matchID    string
}

func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	root := &cobra.Command{
		Use:           "matchlog",
		Short:         "Inspect and maintain match event logs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "matchlog.yaml", "config file path")
	root.PersistentFlags().StringVar(&opts.matchID, "match", "default", "match session id")

	root.AddCommand(
		newLogCmd(opts),
		newTimelineCmd(opts),
		newStatsCmd(opts),
		newRecoverCmd(opts),
		newClearCmd(opts),
	)
	return root
}

// openRegistry builds the configured registry; the caller must Close it
func openRegistry(ctx context.Context, opts *cliOptions) (*sessions.Registry, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	kv, err := cfg.OpenKV(ctx)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return sessions.NewRegistry(kv, sessions.WithLogger(logger)), nil
}

func newLogCmd(opts *cliOptions) *cobra.Command {
	var dataJSON string
	var atMS int64
	var period int

	cmd := &cobra.Command{
		Use:   "log <event-type>",
		Short: "Append an event to the match log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := openRegistry(ctx, opts)
			if err != nil {
				return err
			}
			defer reg.Close()

			data := map[string]interface{}{}
			if dataJSON != "" {
				if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
					return fmt.Errorf("parse --data: %w", err)
				}
			}

			var appendOpts []storage.AppendOption
			if atMS > 0 {
				appendOpts = append(appendOpts, storage.At(atMS))
			}
			if period > 0 {
				appendOpts = append(appendOpts, storage.InPeriod(period))
			}

			ev, err := reg.Get(ctx, opts.matchID).LogEvent(ctx, eventlog.EventType(args[0]), data, appendOpts...)
			if err != nil {
				return err
			}
			fmt.Printf("logged %s seq=%d id=%s at %s\n", ev.Type, ev.Sequence, ev.ID, ev.MatchTime)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataJSON, "data", "", "event payload as JSON")
	cmd.Flags().Int64Var(&atMS, "at", 0, "explicit timestamp (ms since epoch)")
	cmd.Flags().IntVar(&period, "period", 0, "match period number")
	return cmd
}

func newTimelineCmd(opts *cliOptions) *cobra.Command {
	var includeUndone bool

	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the match timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := openRegistry(ctx, opts)
			if err != nil {
				return err
			}
			defer reg.Close()

			events := reg.Get(ctx, opts.matchID).GetMatchEvents(storage.QueryOptions{IncludeUndone: includeUndone})
			for _, e := range events {
				marker := " "
				if e.Undone {
					marker = "x"
				}
				fmt.Printf("%s %4d  %s  %-22s %s\n", marker, e.Sequence, e.MatchTime, e.Type, e.ID)
			}
			fmt.Printf("%d events\n", len(events))
			return nil
		},
	}
	cmd.Flags().BoolVar(&includeUndone, "all", false, "include undone events")
	return cmd
}

func newStatsCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show derived match statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := openRegistry(ctx, opts)
			if err != nil {
				return err
			}
			defer reg.Close()

			logger := reg.Get(ctx, opts.matchID)
			ept := logger.GetEffectivePlayingTime()
			fmt.Printf("effective playing time: %02d:%02d\n", ept/60000, (ept%60000)/1000)

			scorers := logger.GoalScorers()
			ids := make([]string, 0, len(scorers))
			for id := range scorers {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				fmt.Printf("goals %-16s %d\n", id, scorers[id])
			}

			for _, p := range logger.ScoreTimeline() {
				fmt.Printf("score %s  %d-%d\n", p.MatchTime, p.Home, p.Away)
			}
			return nil
		},
	}
}

func newRecoverCmd(opts *cliOptions) *cobra.Command {
	var restore bool

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Salvage events from a damaged snapshot",
		Long: "Salvage extracts individually well-formed events from the persisted\n" +
			"snapshot even when it fails checksum or chronology validation, sorts and\n" +
			"re-sequences them, and (with --restore) replaces the session content.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			reg, err := openRegistry(ctx, opts)
			if err != nil {
				return err
			}
			defer reg.Close()

			salvaged, report := reg.Get(ctx, opts.matchID).Recover(ctx, restore)
			fmt.Printf("candidates=%d salvaged=%d malformed=%d duplicates=%d\n",
				report.Candidates, report.Salvaged, report.DroppedMalformed, report.DroppedDuplicates)
			for _, e := range salvaged {
				fmt.Printf("%4d  %s  %s\n", e.Sequence, e.MatchTime, e.Type)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&restore, "restore", false, "replace the session with the salvaged events")
	return cmd
}

func newClearCmd(opts *cliOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Hard-reset a match session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear %q without --yes", opts.matchID)
			}
			ctx := cmd.Context()
			reg, err := openRegistry(ctx, opts)
			if err != nil {
				return err
			}
			defer reg.Close()

			if !reg.Drop(ctx, opts.matchID) {
				return fmt.Errorf("clear failed for %q", opts.matchID)
			}
			fmt.Printf("cleared %s\n", opts.matchID)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}
