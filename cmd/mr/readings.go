package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/motionrelay/internal/client"
)

var latestCmd = &cobra.Command{
	Use:     "latest",
	Short:   "Show the most recent reading",
	GroupID: "readings",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := motionClient.Latest(context.Background())
		if client.IsNotFound(err) {
			return fmt.Errorf("no readings received yet")
		}
		if err != nil {
			return fmt.Errorf("getting latest reading: %w", err)
		}
		if jsonOutput {
			return printJSON(r)
		}
		printReading(os.Stdout, r)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:     "history",
	Short:   "List recent readings, newest first",
	GroupID: "readings",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		source, _ := cmd.Flags().GetString("source")
		since, _ := cmd.Flags().GetDuration("since")

		req := &client.ListReadingsRequest{Source: source, Limit: limit}
		if since > 0 {
			req.Since = time.Now().Add(-since)
		}
		resp, err := httpClient.ListReadings(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing readings: %w", err)
		}
		if jsonOutput {
			return printJSON(resp)
		}
		if len(resp.Readings) == 0 {
			fmt.Println("no readings")
			return nil
		}
		printReadingsTable(resp.Readings, resp.Total)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Summarise the readings held by the relay",
	GroupID: "readings",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := httpClient.Stats(context.Background())
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		if jsonOutput {
			return printJSON(st)
		}
		printStats(os.Stdout, st)
		return nil
	},
}

var reportersCmd = &cobra.Command{
	Use:     "reporters",
	Short:   "List devices currently reporting motion",
	GroupID: "devices",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		resp, err := httpClient.Reporters(context.Background())
		if err != nil {
			return fmt.Errorf("listing reporters: %w", err)
		}
		if jsonOutput {
			return printJSON(resp.Reporters)
		}
		printReporters(os.Stdout, resp.Reporters)
		return nil
	},
}

var healthCmd = &cobra.Command{
	Use:     "health",
	Short:   "Check the health of the relay",
	GroupID: "system",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := motionClient.Health(context.Background())
		if err != nil {
			return fmt.Errorf("checking health: %w", err)
		}
		if jsonOutput {
			if err := printJSON(map[string]string{"status": status}); err != nil {
				return err
			}
		} else {
			fmt.Printf("Health: %s\n", status)
		}
		if status != "ok" {
			return fmt.Errorf("unhealthy: %s", status)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntP("limit", "n", 20, "maximum readings to show (0 = all held)")
	historyCmd.Flags().String("source", "", "only readings from this source address")
	historyCmd.Flags().Duration("since", 0, "only readings newer than this (e.g. 5m)")
}
