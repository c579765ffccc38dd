// Command newsmarket runs the news and marketplace Telegram bot.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const configEnvVar = "CONFIG_PATH"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "newsmarket",
		Short:         "AI news aggregator and marketplace bot for Telegram",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to config.yaml (default: $"+configEnvVar+" or config.yaml)")

	root.AddCommand(
		newRunCmd(&configPath),
		newMigrateCmd(&configPath),
		newPromptsCmd(),
		newVersionCmd(),
	)
	return root
}
