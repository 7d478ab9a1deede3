// Package cli описывает команды cobra для mentor_sessions.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev" // задаётся через ldflags при сборке

var rootCmd = &cobra.Command{
	Use:   "mentor_sessions",
	Short: "Mentor session lifecycle and availability service",
	Long: `mentor_sessions serves the mentor calendar: weekly availability,
bookable slots, session booking, rescheduling, join admission and
mentee summaries.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute запускает корневую команду. Вызывается из main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}
