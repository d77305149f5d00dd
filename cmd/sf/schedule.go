package main

import (
	"fmt"
	"time"

	"github.com/okton/shopfloor/internal/scheduler"
	"github.com/spf13/cobra"
)

func newScheduleCmd() *cobra.Command {
	var (
		configPath string
		anchorStr  string
		horizon    int
	)

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run one scheduling pass",
		Long: `Runs one complete scheduling pass: snapshots orders, routes, machines and
logs, solves the assignment and commits the resulting plan. An infeasible
model leaves the existing schedule untouched.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchedule(cmd, configPath, anchorStr, horizon)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shopfloor.yaml", "path to config file")
	cmd.Flags().StringVar(&anchorStr, "anchor", "", "scheduling anchor as RFC 3339 (default: now)")
	cmd.Flags().IntVar(&horizon, "horizon", 0, "horizon override in minutes (default: computed)")
	return cmd
}

func runSchedule(cmd *cobra.Command, configPath, anchorStr string, horizon int) error {
	out := cmd.OutOrStdout()

	anchor := time.Now().UTC()
	if anchorStr != "" {
		parsed, err := time.Parse(time.RFC3339, anchorStr)
		if err != nil {
			return fmt.Errorf("parse --anchor: %w", err)
		}
		anchor = parsed
	}

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	result, err := scheduler.RunSchedulingPass(gormDB, cfg.Scheduler, anchor, horizon)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Pass finished: %s\n", result.Status)
	if result.Committed() {
		fmt.Fprintf(out, "Makespan: %d min, %d placements committed\n",
			result.MakespanMins, len(result.Placements))
		for _, p := range result.Placements {
			fmt.Fprintf(out, "  %s  machine %d  [%d, %d)\n", p.Key, p.MachineID, p.StartMins, p.EndMins)
		}
	}
	for _, d := range result.Diagnostics {
		fmt.Fprintf(out, "Skipped %s: %s\n", d.Key, d.Reason)
	}
	return nil
}
