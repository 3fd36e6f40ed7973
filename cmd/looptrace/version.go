package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/timewinder-dev/looptrace"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of looptrace",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("looptrace version " + looptrace.Version)
	},
}
