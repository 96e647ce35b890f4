package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/lexohub/lexsync/internal/client"
	"github.com/lexohub/lexsync/internal/config"
	"github.com/lexohub/lexsync/internal/events"
)

var (
	cfgPath   string
	logLevel  string
	promptKey bool
	cfg       *config.Config
	apiClient *client.Client
	logFile   *os.File
)

var rootCmd = &cobra.Command{
	Use:   "lexsync",
	Short: "Offline record store and sync for legal-practice billing",
	Long: `lexsync keeps matters, disbursements, time entries and payments in an
encrypted local store and reconciles them with the practice API.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loader := config.NewLoader(cfgPath)
		var err error
		cfg, err = loader.Load()
		if err != nil {
			return err
		}

		if logLevel != "" {
			cfg.Log.Level = logLevel
		}

		if promptKey && cfg.Storage.EncryptionKey == "" {
			key, err := promptPassphrase("Encryption passphrase: ")
			if err != nil {
				return err
			}
			cfg.Storage.EncryptionKey = key
		}

		var output io.Writer = os.Stderr
		if cfg.Log.File != "" {
			f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logFile = f
			output = f
		}
		logger := events.NewLogger(events.ParseLevel(cfg.Log.Level), cfg.Log.Format, output)

		apiClient, err = client.New(cfg, logger)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if apiClient != nil {
			err = apiClient.Close()
		}
		if logFile != nil {
			logFile.Close()
		}
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "",
		"Config file path (default: lexsync.json, ~/.config/lexsync/config.json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&promptKey, "prompt-key", false,
		"Prompt for the encryption passphrase instead of reading it from config")
}

// promptPassphrase reads a passphrase without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	data, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(data), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
