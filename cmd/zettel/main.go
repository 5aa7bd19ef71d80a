package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var noColor bool
var configPath string

var rootCmd = &cobra.Command{
	Use:           "zettel",
	Short:         "zettel — a personal zettelkasten with semantic search and background content pipelines",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage the zettel server",
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the zettel version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file path (default ~/.zettel/config.toml)")

	serverCmd.AddCommand(startCmd, stopCmd, statusCmd)
	rootCmd.AddCommand(
		serverCmd,
		noteCmd,
		searchCmd,
		generateCmd,
		voiceCmd,
		importCmd,
		configCmd,
		versionCmd,
	)

	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}
