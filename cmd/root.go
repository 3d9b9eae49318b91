package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// logger is configured in initConfig before any command runs
var logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

var rootCmd = &cobra.Command{
	Use:   "securenet",
	Short: "Door camera intruder detection with Telegram alerts",
	Long: `SecureNet receives snapshots from a door camera, compares the faces in
them with a gallery of authorized people and alerts a Telegram chat when an
unknown face shows up. Chat members can authorize the visitor from the alert.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()

	level, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}
