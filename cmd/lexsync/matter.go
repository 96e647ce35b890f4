package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lexohub/lexsync/internal/billing"
	"github.com/lexohub/lexsync/internal/models"
)

var matterCmd = &cobra.Command{
	Use:   "matter",
	Short: "Manage matters in the offline store",
}

var matterAddCmd = &cobra.Command{
	Use:   "add <file.json>",
	Short: "Validate and store a matter from a JSON file",
	Long: `Add reads a matter definition, validates it against its billing model
and stores it locally with a pending sync status.`,
	Example: `  lexsync matter add brief.json
  lexsync matter add opinion.json --no-encrypt`,
	Args: cobra.ExactArgs(1),
	RunE: runMatterAdd,
}

var matterListCmd = &cobra.Command{
	Use:   "list",
	Short: "List locally stored matters",
	Args:  cobra.NoArgs,
	RunE:  runMatterList,
}

var matterNoEncrypt bool

func init() {
	rootCmd.AddCommand(matterCmd)
	matterCmd.AddCommand(matterAddCmd)
	matterCmd.AddCommand(matterListCmd)

	matterAddCmd.Flags().BoolVar(&matterNoEncrypt, "no-encrypt", false,
		"Store the matter without encryption")
}

func runMatterAdd(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read matter file: %w", err)
	}

	var matter models.Matter
	if err := json.Unmarshal(data, &matter); err != nil {
		return fmt.Errorf("parse matter: %w", err)
	}

	strategy := apiClient.Billing.ForMatter(&matter)
	result := strategy.Validate(&matter)
	printValidation(result)
	if !result.IsValid {
		return fmt.Errorf("matter failed %s validation", strategy.Model())
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(data, &payload); err != nil {
		return fmt.Errorf("parse matter payload: %w", err)
	}

	id, err := apiClient.Store.Store(models.RecordMatter, payload, !matterNoEncrypt)
	if err != nil {
		return err
	}

	if amount, err := strategy.InvoiceAmount(&matter); err == nil {
		fmt.Printf("Invoice amount: R%d\n", amount)
	}
	fmt.Printf("Stored matter %s (pending sync)\n", id)
	return nil
}

func runMatterList(cmd *cobra.Command, args []string) error {
	records, err := apiClient.Store.GetAll(models.RecordMatter)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No matters stored")
		return nil
	}

	for _, rec := range records {
		title, _ := rec.Data["title"].(string)
		client, _ := rec.Data["client_name"].(string)
		fmt.Printf("%-36s  %-10s  %s (%s)\n", rec.ID, rec.SyncStatus, title, client)
	}
	return nil
}

func printValidation(result billing.ValidationResult) {
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, issue := range result.Errors {
		fmt.Printf("%s %s: %s [%s]\n", red("error"), issue.Field, issue.Message, issue.Code)
	}
	for _, issue := range result.Warnings {
		fmt.Printf("%s %s: %s [%s]\n", yellow("warning"), issue.Field, issue.Message, issue.Code)
	}
}
