package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lexohub/lexsync/internal/models"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync engine status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s := apiClient.Engine.Status()

		state := "idle"
		if s.IsActive {
			state = "active"
		}
		fmt.Printf("State:     %s\n", state)
		if !s.LastSync.IsZero() {
			fmt.Printf("Last sync: %s\n", s.LastSync.Format("2006-01-02 15:04:05"))
		}
		if !s.NextSync.IsZero() {
			fmt.Printf("Next sync: %s\n", s.NextSync.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show local storage statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		stats, err := apiClient.Store.Stats()
		if err != nil {
			return err
		}

		fmt.Printf("Total records:    %d\n", stats.TotalRecords)

		types := make([]string, 0, len(stats.RecordsByType))
		for t := range stats.RecordsByType {
			types = append(types, string(t))
		}
		sort.Strings(types)
		for _, t := range types {
			fmt.Printf("  %-14s  %d\n", t, stats.RecordsByType[models.RecordType(t)])
		}

		fmt.Printf("Pending sync:     %d\n", stats.PendingSync)
		fmt.Printf("Failed sync:      %d\n", stats.FailedSync)
		if stats.DecryptFailures > 0 {
			color.Red("Decrypt failures: %d", stats.DecryptFailures)
		}
		if stats.QuotaBytes > 0 {
			fmt.Printf("Database size:    %d / %d bytes\n", stats.DatabaseBytes, stats.QuotaBytes)
		}
		return nil
	},
}

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Retry previously failed sync items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		result, err := apiClient.Engine.RetryFailed(ctx)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run auto-sync until interrupted",
	Long: `Watch runs sync passes on the configured interval and whenever the
remote change feed reports activity. Stop with Ctrl-C.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		fmt.Println("Watching for changes, Ctrl-C to stop")
		err := apiClient.Scheduler.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Wipe all local records and the sync queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !clearYes {
			return fmt.Errorf("refusing to wipe local data without --yes")
		}
		return apiClient.Store.ClearAll()
	},
}

var clearYes bool

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "Confirm the wipe")
}
