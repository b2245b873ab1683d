package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	host       string
	webhookURL string
	secret     string
)

var rootCmd = &cobra.Command{
	Use:   "ladder-cli",
	Short: "A CLI to interact with the rating-ladder server",
	Long: `A command-line interface for the rating-ladder admin endpoints and
for posting chat events to its webhook listener.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8081", "The admin address of the server")
	rootCmd.PersistentFlags().StringVar(&webhookURL, "webhook", "http://localhost:8080/webhook", "The webhook listener URL")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", os.Getenv("WEBHOOK_SECRET"), "The webhook shared secret")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Whoops. There was an error while executing your command '%s'", err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
