// Command enginectl is the thin operator entry point onto the game engine:
// create/schedule/cancel/emergency-end a game and register a user, standing
// in for a full admin dashboard for the slice the engine itself needs to be
// driven end to end without a browser.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	log.SetFlags(0)
	cobra.CheckErr(newRootCmd().Execute())
	os.Exit(0)
}

func newRootCmd() *cobra.Command {
	cfg := &rootConfig{}

	cmd := &cobra.Command{
		Use:           "enginectl",
		Short:         "Operate qrush games from the command line",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	cmd.PersistentFlags().StringVar(&cfg.configPath, "config", os.Getenv("CONFIG_PATH"), "path to config file (env: CONFIG_PATH)")

	cmd.AddCommand(
		newGameCmd(cfg),
		newUserCmd(cfg),
	)

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})

	return cmd
}

// rootConfig carries flags shared by every subcommand.
type rootConfig struct {
	configPath string
}
