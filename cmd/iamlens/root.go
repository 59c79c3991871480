package main

import "github.com/spf13/cobra"

// commandPathForLogging is updated by the running subcommand so fatal-path
// log lines carry the command name.
var commandPathForLogging = "iamlens"

var rootCmd = &cobra.Command{
	Use:           "iamlens",
	Short:         "IAM Lens serves a merged view of IAM inventory across environments.",
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		commandPathForLogging = cmd.CommandPath()
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(serveCmd, collectCmd, exportCmd)
}
