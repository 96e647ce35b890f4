package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lexohub/lexsync/internal/models"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass against the remote API",
	Long: `Sync drains the current queue snapshot: local creates, updates and
deletes are pushed to the remote API, conflicts are detected and
resolved per the configured policy.`,
	Example: `  lexsync sync
  lexsync sync --progress`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

var syncProgress bool

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().BoolVar(&syncProgress, "progress", false,
		"Print progress updates during the pass")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		apiClient.Engine.Cancel()
	}()

	if syncProgress {
		unsubscribe := apiClient.Engine.OnStatusChange(func(s models.EngineStatus) {
			if s.IsActive && s.CurrentItem != "" {
				fmt.Printf("\r%3d%% %s    ", s.Progress, s.CurrentItem)
			}
		})
		defer unsubscribe()
	}

	result, err := apiClient.Engine.SyncAll(ctx)
	if err != nil {
		return err
	}
	if syncProgress {
		fmt.Println()
	}

	printResult(result)
	return nil
}

func printResult(result *models.SyncResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("Synced:    %s\n", green(result.SyncedCount))
	fmt.Printf("Failed:    %s\n", red(result.FailedCount))
	fmt.Printf("Conflicts: %s\n", yellow(result.ConflictCount))

	for _, e := range result.Errors {
		fmt.Printf("  %s item %s: %s\n", red("error"), e.ItemID, e.Error)
	}
	for _, c := range result.Conflicts {
		fmt.Printf("  %s %s %s (%s): local %s, remote %s\n",
			yellow("conflict"), c.RecordType, c.RecordID, c.Type,
			c.LocalTimestamp.Format("2006-01-02 15:04:05"),
			c.RemoteTimestamp.Format("2006-01-02 15:04:05"))
	}
}
